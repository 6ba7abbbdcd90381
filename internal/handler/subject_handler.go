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

type subjectService interface {
	Create(ctx context.Context, req dto.CreateSubjectRequest, principal *models.Principal) (*models.Subject, error)
	List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, *models.Pagination, error)
	ListDeleted(ctx context.Context, page, pageSize int) ([]models.Subject, *models.Pagination, error)
	Update(ctx context.Context, id string, req dto.UpdateSubjectRequest, principal *models.Principal) (*models.Subject, error)
	BulkDelete(ctx context.Context, principal *models.Principal) (*dto.BulkDeleteResult, error)
}

// SubjectHandler handles subject endpoints.
type SubjectHandler struct {
	subjects  subjectService
	lifecycle lifecycleService
}

// NewSubjectHandler constructs a subject handler.
func NewSubjectHandler(subjects subjectService, lifecycle lifecycleService) *SubjectHandler {
	return &SubjectHandler{subjects: subjects, lifecycle: lifecycle}
}

var subjectLifecycleTarget = models.LifecycleTarget{Kind: models.KindSubject}

// List godoc
// @Summary List subjects
// @Tags Subjects
// @Produce json
// @Param year query int false "Year"
// @Param semester query int false "Semester"
// @Param group query string false "Group"
// @Param dataType query string false "Data type"
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *SubjectHandler) List(c *gin.Context) {
	var query dto.SubjectQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid query parameters"))
		return
	}
	subjects, page, err := h.subjects.List(c.Request.Context(), models.SubjectFilter{
		Year:     query.Year,
		Semester: query.Semester,
		Group:    strings.TrimSpace(query.Group),
		DataType: strings.TrimSpace(query.DataType),
		Page:     query.Page,
		PageSize: query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, page)
}

// ListDeleted godoc
// @Summary List soft-deleted subjects
// @Tags Subjects
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /subjects/deleted [get]
func (h *SubjectHandler) ListDeleted(c *gin.Context) {
	page, size := pageParams(c)
	subjects, pagination, err := h.subjects.ListDeleted(c.Request.Context(), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subjects, pagination)
}

// Create godoc
// @Summary Create subject
// @Tags Subjects
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.CreateSubjectRequest true "Subject payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /subjects [post]
func (h *SubjectHandler) Create(c *gin.Context) {
	var req dto.CreateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "Missing required fields"))
		return
	}
	subject, err := h.subjects.Create(c.Request.Context(), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, subject)
}

// Update godoc
// @Summary Update subject
// @Tags Subjects
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param payload body dto.UpdateSubjectRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /subjects/{id} [put]
func (h *SubjectHandler) Update(c *gin.Context) {
	var req dto.UpdateSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid subject payload"))
		return
	}
	subject, err := h.subjects.Update(c.Request.Context(), c.Param("id"), req, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, subject, nil)
}

// Delete godoc
// @Summary Soft delete subject
// @Tags Subjects
// @Security BearerAuth
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /subjects/{id} [delete]
func (h *SubjectHandler) Delete(c *gin.Context) {
	rec, err := h.lifecycle.SoftDelete(c.Request.Context(), subjectLifecycleTarget, c.Param("id"), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "Subject soft deleted", "deletedAt": rec.DeletedAt, "purgeEligibleAt": rec.PurgeEligibleAt()}, nil)
}

// Restore godoc
// @Summary Restore a soft-deleted subject
// @Tags Subjects
// @Security BearerAuth
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /subjects/{id}/restore [post]
func (h *SubjectHandler) Restore(c *gin.Context) {
	if _, err := h.lifecycle.Restore(c.Request.Context(), subjectLifecycleTarget, c.Param("id"), principalFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Subject restored")
}

// DeleteAll godoc
// @Summary Permanently delete every subject
// @Tags Subjects
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /subjects/all [delete]
func (h *SubjectHandler) DeleteAll(c *gin.Context) {
	result, err := h.subjects.BulkDelete(c.Request.Context(), principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
