package handler

import (
	"errors"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/edupacket-api/pkg/errors"
	"github.com/noah-isme/edupacket-api/pkg/response"
	"github.com/noah-isme/edupacket-api/pkg/storage"
)

type blobOpener interface {
	Open(key string) (*os.File, error)
}

// FilesHandler serves blobs stored by the local gateway.
type FilesHandler struct {
	store blobOpener
}

// NewFilesHandler constructs the handler.
func NewFilesHandler(store blobOpener) *FilesHandler {
	return &FilesHandler{store: store}
}

// Serve godoc
// @Summary Download a locally stored blob
// @Tags Files
// @Param version path string true "Upload version"
// @Param name path string true "Blob name"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /files/{version}/{name} [get]
func (h *FilesHandler) Serve(c *gin.Context) {
	name := c.Param("name")
	key := strings.TrimSuffix(name, path.Ext(name))
	file, err := h.store.Open(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat file"))
		return
	}
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), file)
}
