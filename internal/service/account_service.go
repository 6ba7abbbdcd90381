package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edupacket-api/internal/models"
	appErrors "github.com/noah-isme/edupacket-api/pkg/errors"
)

type accountStore interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	ListPending(ctx context.Context) ([]models.Account, error)
	UpdateStatus(ctx context.Context, id string, status models.AccountStatus) error
	Promote(ctx context.Context, id string, role models.Role, passwordHash string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AccountService implements the administrator approval workflow.
type AccountService struct {
	repo   accountStore
	logger *zap.Logger
}

// NewAccountService constructs the service.
func NewAccountService(repo accountStore, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{repo: repo, logger: logger}
}

// ListPending returns teacher and class representative accounts awaiting review.
func (s *AccountService) ListPending(ctx context.Context) ([]models.AccountInfo, error) {
	accounts, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, internal(err, "failed to list pending accounts")
	}
	out := make([]models.AccountInfo, 0, len(accounts))
	for i := range accounts {
		out = append(out, accounts[i].Info())
	}
	return out, nil
}

// Approve marks an account approved.
func (s *AccountService) Approve(ctx context.Context, id string, principal *models.Principal) (*models.AccountInfo, error) {
	return s.decide(ctx, id, models.StatusApproved, models.AuditActionAccountApprove, principal)
}

// Reject marks an account rejected.
func (s *AccountService) Reject(ctx context.Context, id string, principal *models.Principal) (*models.AccountInfo, error) {
	return s.decide(ctx, id, models.StatusRejected, models.AuditActionAccountReject, principal)
}

func (s *AccountService) decide(ctx context.Context, id string, status models.AccountStatus, action string, principal *models.Principal) (*models.AccountInfo, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("userId is required")
	}
	if !isRecordID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
	}
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, internal(err, "failed to load account")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, internal(err, "failed to update account status")
	}
	account.Status = status

	recordAudit(ctx, s.repo, s.logger, "account-service", principal, &models.AuditLog{
		Action:     action,
		Resource:   "account",
		ResourceID: strPtr(account.ID),
		NewValues:  jsonString(map[string]interface{}{"status": status}),
	})
	s.logger.Info("account status changed", zap.String("account_id", account.ID), zap.String("status", string(status)))

	info := account.Info()
	return &info, nil
}

// EnsureAdmin creates an approved administrator or promotes the account that
// already owns the email. It reports whether a new account was created.
func (s *AccountService) EnsureAdmin(ctx context.Context, name, email, password string) (*models.Account, bool, error) {
	email = models.NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, false, invalid("a valid email is required")
	}
	if len(password) < 6 {
		return nil, false, invalid("password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, internal(err, "failed to hash password")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.repo.Promote(ctx, existing.ID, models.RoleAdmin, string(hash)); err != nil {
			return nil, false, internal(err, "failed to promote account")
		}
		existing.Role = models.RoleAdmin
		existing.Status = models.StatusApproved
		existing.PasswordHash = string(hash)
		return existing, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, internal(err, "failed to look up account")
	}

	if name == "" {
		name = "Administrator"
	}
	account := &models.Account{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Status:       models.StatusApproved,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, false, internal(err, "failed to create admin")
	}
	return account, true, nil
}
