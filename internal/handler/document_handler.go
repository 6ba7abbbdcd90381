package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupacket-api/internal/dto"
	"github.com/noah-isme/edupacket-api/internal/models"
	"github.com/noah-isme/edupacket-api/pkg/response"
)

type documentService interface {
	UploadSubjectFile(ctx context.Context, req dto.UploadSubjectFileRequest, file *dto.UploadFile, principal *models.Principal) (*models.Document, error)
	UploadNotification(ctx context.Context, category models.DocumentType, req dto.UploadNotificationRequest, file *dto.UploadFile, principal *models.Principal) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, *models.Pagination, error)
	ListDeleted(ctx context.Context, docType models.DocumentType, page, pageSize int) ([]models.Document, *models.Pagination, error)
	Get(ctx context.Context, id string, docType models.DocumentType) (*models.Document, error)
	DownloadURL(ctx context.Context, id string, docType models.DocumentType) (string, error)
	Update(ctx context.Context, id string, docType models.DocumentType, req dto.UpdateDocumentRequest, principal *models.Principal) (*models.Document, error)
	BulkDelete(ctx context.Context, principal *models.Principal) (*dto.BulkDeleteResult, error)
	DeleteByClassGroup(ctx context.Context, classGroup string, principal *models.Principal) (*dto.BulkDeleteResult, error)
	CleanupLegacy(ctx context.Context, principal *models.Principal) (*dto.LegacyCleanupResult, error)
}

type lifecycleService interface {
	SoftDelete(ctx context.Context, target models.LifecycleTarget, id string, principal *models.Principal) (*models.LifecycleRecord, error)
	Restore(ctx context.Context, target models.LifecycleTarget, id string, principal *models.Principal) (*models.LifecycleRecord, error)
	HardDelete(ctx context.Context, target models.LifecycleTarget, id string, principal *models.Principal) error
}

type capabilityChecker interface {
	Authorize(principal *models.Principal, capability models.Capability) error
}

// DocumentHandler serves subject files under /pdfs and the notification feeds.
type DocumentHandler struct {
	documents documentService
	lifecycle lifecycleService
	gate      capabilityChecker
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(documents documentService, lifecycle lifecycleService, gate capabilityChecker) *DocumentHandler {
	return &DocumentHandler{documents: documents, lifecycle: lifecycle, gate: gate}
}

var subjectFileTarget = models.LifecycleTarget{Kind: models.KindSubjectFile}

// ListSubjectFiles godoc
// @Summary List subject files
// @Tags PDFs
// @Produce json
// @Param classGroup query string false "Class group"
// @Param year query int false "Year"
// @Param semester query int false "Semester"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /pdfs [get]
func (h *DocumentHandler) ListSubjectFiles(c *gin.Context) {
	var query dto.DocumentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid query parameters"))
		return
	}
	docs, page, err := h.documents.List(c.Request.Context(), models.DocumentFilter{
		Type:       models.DocumentTypeSubject,
		ClassGroup: strings.TrimSpace(query.ClassGroup),
		Year:       query.Year,
		Semester:   query.Semester,
		Page:       query.Page,
		PageSize:   query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, page)
}

// UploadSubjectFile godoc
// @Summary Upload a subject file
// @Tags PDFs
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param classGroup formData string true "Class group"
// @Param year formData int true "Year"
// @Param semester formData int true "Semester"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /pdfs/upload [post]
func (h *DocumentHandler) UploadSubjectFile(c *gin.Context) {
	var req dto.UploadSubjectFileRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, invalidPayload(err, "year and semester must be numbers"))
		return
	}
	file, closer, err := formFile(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	doc, err := h.documents.UploadSubjectFile(c.Request.Context(), req, file, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": "File uploaded successfully", "pdf": doc})
}

// UpdateSubjectFile godoc
// @Summary Edit subject file metadata
// @Tags PDFs
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.UpdateDocumentRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /pdfs/{id} [put]
func (h *DocumentHandler) UpdateSubjectFile(c *gin.Context) {
	var req dto.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid update payload"))
		return
	}
	doc, err := h.documents.Update(c.Request.Context(), c.Param("id"), models.DocumentTypeSubject, req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "PDF updated successfully", "pdf": doc}, nil)
}

// ListDeletedSubjectFiles godoc
// @Summary List soft-deleted subject files
// @Tags PDFs
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /pdfs/deleted [get]
func (h *DocumentHandler) ListDeletedSubjectFiles(c *gin.Context) {
	h.listDeleted(c, models.DocumentTypeSubject)
}

// DeleteSubjectFile godoc
// @Summary Delete a subject file
// @Description Soft delete by default; hard=true removes the record and its blob immediately and requires the hard delete capability.
// @Tags PDFs
// @Security BearerAuth
// @Produce json
// @Param id path string true "Document ID"
// @Param hard query bool false "Permanently delete"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pdfs/{id} [delete]
func (h *DocumentHandler) DeleteSubjectFile(c *gin.Context) {
	principal := principalFromContext(c)
	if c.Query("hard") == "true" {
		if err := h.gate.Authorize(principal, models.CapHardDelete); err != nil {
			response.Error(c, err)
			return
		}
		if err := h.lifecycle.HardDelete(c.Request.Context(), subjectFileTarget, c.Param("id"), principal); err != nil {
			response.Error(c, err)
			return
		}
		response.Message(c, "PDF permanently deleted")
		return
	}
	h.softDelete(c, subjectFileTarget, "PDF soft deleted")
}

// RestoreSubjectFile godoc
// @Summary Restore a soft-deleted subject file
// @Tags PDFs
// @Security BearerAuth
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pdfs/{id}/restore [post]
func (h *DocumentHandler) RestoreSubjectFile(c *gin.Context) {
	h.restore(c, subjectFileTarget, "PDF restored")
}

// DeleteAllSubjectFiles godoc
// @Summary Permanently delete every subject file
// @Tags PDFs
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /pdfs/all [delete]
func (h *DocumentHandler) DeleteAllSubjectFiles(c *gin.Context) {
	result, err := h.documents.BulkDelete(c.Request.Context(), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DeleteClassGroupFiles godoc
// @Summary Permanently delete the subject files of a class group
// @Tags PDFs
// @Security BearerAuth
// @Produce json
// @Param classGroup path string true "Class group"
// @Success 200 {object} response.Envelope
// @Router /pdfs/subject/{classGroup} [delete]
func (h *DocumentHandler) DeleteClassGroupFiles(c *gin.Context) {
	result, err := h.documents.DeleteByClassGroup(c.Request.Context(), c.Param("classGroup"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CleanupLegacy godoc
// @Summary Soft-delete subject files outside the accepted calendar
// @Tags PDFs
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /pdfs/cleanup-legacy [post]
func (h *DocumentHandler) CleanupLegacy(c *gin.Context) {
	result, err := h.documents.CleanupLegacy(c.Request.Context(), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListNotifications godoc
// @Summary List notifications of a category, newest first
// @Tags Notifications
// @Produce json
// @Param category path string true "examination, circulars or jobs"
// @Success 200 {object} response.Envelope
// @Router /{category} [get]
func (h *DocumentHandler) ListNotifications(category models.DocumentType) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, size := pageParams(c)
		docs, pagination, err := h.documents.List(c.Request.Context(), models.DocumentFilter{Type: category, Page: page, PageSize: size})
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, docs, pagination)
	}
}

// UploadNotification godoc
// @Summary Publish a notification
// @Tags Notifications
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param category path string true "examination, circulars or jobs"
// @Param title formData string true "Title"
// @Param link formData string false "External link"
// @Param file formData file false "Attachment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /{category}/upload [post]
func (h *DocumentHandler) UploadNotification(category models.DocumentType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.UploadNotificationRequest
		if err := c.ShouldBind(&req); err != nil {
			response.Error(c, invalidPayload(err, "invalid notification payload"))
			return
		}
		file, closer, err := formFile(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		if closer != nil {
			defer closer.Close()
		}

		doc, err := h.documents.UploadNotification(c.Request.Context(), category, req, file, principalFromContext(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, gin.H{"message": categoryLabel(category) + " notification uploaded", "pdf": doc})
	}
}

// ListDeletedNotifications godoc
// @Summary List soft-deleted notifications of a category
// @Tags Notifications
// @Security BearerAuth
// @Produce json
// @Param category path string true "examination, circulars or jobs"
// @Success 200 {object} response.Envelope
// @Router /{category}/deleted [get]
func (h *DocumentHandler) ListDeletedNotifications(category models.DocumentType) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.listDeleted(c, category)
	}
}

// GetNotification godoc
// @Summary Get an active notification
// @Tags Notifications
// @Produce json
// @Param category path string true "examination, circulars or jobs"
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /{category}/{id} [get]
func (h *DocumentHandler) GetNotification(category models.DocumentType) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := h.documents.Get(c.Request.Context(), c.Param("id"), category)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, doc, nil)
	}
}

// DownloadNotification godoc
// @Summary Redirect to a notification's file or link
// @Tags Notifications
// @Param category path string true "examination, circulars or jobs"
// @Param id path string true "Notification ID"
// @Success 302
// @Failure 404 {object} response.Envelope
// @Router /{category}/{id}/download [get]
func (h *DocumentHandler) DownloadNotification(category models.DocumentType) gin.HandlerFunc {
	return func(c *gin.Context) {
		target, err := h.documents.DownloadURL(c.Request.Context(), c.Param("id"), category)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Redirect(http.StatusFound, target)
	}
}

// DeleteNotification godoc
// @Summary Soft delete a notification
// @Tags Notifications
// @Security BearerAuth
// @Produce json
// @Param category path string true "examination, circulars or jobs"
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /{category}/{id} [delete]
func (h *DocumentHandler) DeleteNotification(category models.DocumentType) gin.HandlerFunc {
	target := models.LifecycleTarget{Kind: models.KindNotification, Category: category}
	return func(c *gin.Context) {
		h.softDelete(c, target, "Notification deleted")
	}
}

// RestoreNotification godoc
// @Summary Restore a soft-deleted notification
// @Tags Notifications
// @Security BearerAuth
// @Produce json
// @Param category path string true "examination, circulars or jobs"
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /{category}/{id}/restore [post]
func (h *DocumentHandler) RestoreNotification(category models.DocumentType) gin.HandlerFunc {
	target := models.LifecycleTarget{Kind: models.KindNotification, Category: category}
	return func(c *gin.Context) {
		h.restore(c, target, "Notification restored")
	}
}

func (h *DocumentHandler) listDeleted(c *gin.Context, docType models.DocumentType) {
	page, size := pageParams(c)
	docs, pagination, err := h.documents.ListDeleted(c.Request.Context(), docType, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}

func (h *DocumentHandler) softDelete(c *gin.Context, target models.LifecycleTarget, message string) {
	rec, err := h.lifecycle.SoftDelete(c.Request.Context(), target, c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": message, "deletedAt": rec.DeletedAt, "purgeEligibleAt": rec.PurgeEligibleAt()}, nil)
}

func (h *DocumentHandler) restore(c *gin.Context, target models.LifecycleTarget, message string) {
	if _, err := h.lifecycle.Restore(c.Request.Context(), target, c.Param("id"), principalFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, message)
}

func categoryLabel(category models.DocumentType) string {
	switch category {
	case models.DocumentTypeExamination:
		return "Examination"
	case models.DocumentTypeCirculars:
		return "Circular"
	case models.DocumentTypeJobs:
		return "Job"
	}
	return "Unknown"
}
