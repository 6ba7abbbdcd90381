package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupacket-api/internal/dto"
	"github.com/noah-isme/edupacket-api/internal/models"
	"github.com/noah-isme/edupacket-api/pkg/response"
)

type accountService interface {
	ListPending(ctx context.Context) ([]models.AccountInfo, error)
	Approve(ctx context.Context, id string, principal *models.Principal) (*models.AccountInfo, error)
	Reject(ctx context.Context, id string, principal *models.Principal) (*models.AccountInfo, error)
}

// UserHandler serves the admin account approval endpoints.
type UserHandler struct {
	service accountService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc accountService) *UserHandler {
	return &UserHandler{service: svc}
}

// Pending godoc
// @Summary List accounts awaiting approval
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/pending-users [get]
func (h *UserHandler) Pending(c *gin.Context) {
	accounts, err := h.service.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, accounts, nil)
}

// Approve godoc
// @Summary Approve a pending account
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.AccountDecisionRequest true "Account to approve"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/approve-user [post]
func (h *UserHandler) Approve(c *gin.Context) {
	h.decide(c, h.service.Approve, "User approved")
}

// Reject godoc
// @Summary Reject a pending account
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.AccountDecisionRequest true "Account to reject"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/reject-user [post]
func (h *UserHandler) Reject(c *gin.Context) {
	h.decide(c, h.service.Reject, "User rejected")
}

type accountDecision func(ctx context.Context, id string, principal *models.Principal) (*models.AccountInfo, error)

func (h *UserHandler) decide(c *gin.Context, decide accountDecision, message string) {
	var req dto.AccountDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}
	account, err := decide(c.Request.Context(), req.UserID, principalFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": message, "user": account}, nil)
}
