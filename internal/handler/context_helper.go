package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupacket-api/internal/dto"
	"github.com/noah-isme/edupacket-api/internal/middleware"
	"github.com/noah-isme/edupacket-api/internal/models"
	appErrors "github.com/noah-isme/edupacket-api/pkg/errors"
)

func principalFromContext(c *gin.Context) *models.Principal {
	return middleware.Principal(c)
}

// formFile opens the multipart "file" part. A missing part yields (nil, nil).
func formFile(c *gin.Context) (*dto.UploadFile, io.Closer, error) {
	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum upload size")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid multipart payload")
	}
	return openUpload(header)
}

func openUpload(header *multipart.FileHeader) (*dto.UploadFile, io.Closer, error) {
	src, err := header.Open()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return &dto.UploadFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        src,
	}, src, nil
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("pageSize"))
	return page, size
}

func invalidPayload(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}
