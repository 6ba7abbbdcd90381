package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupacket-api/internal/models"
	"github.com/noah-isme/edupacket-api/internal/service"
	"github.com/noah-isme/edupacket-api/pkg/response"
)

type sweeper interface {
	Sweep(ctx context.Context) (*models.PurgeReport, error)
}

type ledgerExporter interface {
	ExportDeleted(ctx context.Context, format string) (*service.ExportResult, error)
}

// AdminHandler serves maintenance endpoints.
type AdminHandler struct {
	sweeper  sweeper
	exporter ledgerExporter
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(sweeper sweeper, exporter ledgerExporter) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, exporter: exporter}
}

// Purge godoc
// @Summary Run the retention sweep now
// @Description Permanently removes records soft-deleted 90 or more days ago together with their blobs.
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/purge [post]
func (h *AdminHandler) Purge(c *gin.Context) {
	report, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil && report == nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{}
	if err != nil {
		meta["warning"] = err.Error()
	}
	response.JSON(c, http.StatusOK, report, nil, meta)
}

// ExportDeleted godoc
// @Summary Download the deleted-items ledger
// @Tags Admin
// @Security BearerAuth
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /admin/deleted/export [get]
func (h *AdminHandler) ExportDeleted(c *gin.Context) {
	result, err := h.exporter.ExportDeleted(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}
