package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/edupacket-api/internal/models"
	appErrors "github.com/noah-isme/edupacket-api/pkg/errors"
)

const bearerPrefix = "bearer "

type tokenParser interface {
	ParseToken(token string) (*models.JWTClaims, error)
}

type accessAccountStore interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

// AccessService is the single gate every protected operation passes through.
type AccessService struct {
	tokens   tokenParser
	accounts accessAccountStore
	logger   *zap.Logger
}

// NewAccessService constructs the gate.
func NewAccessService(tokens tokenParser, accounts accessAccountStore, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{tokens: tokens, accounts: accounts, logger: logger}
}

// Authenticate resolves an Authorization header into a principal. The role is
// read from the stored account so approval changes apply to live tokens.
func (s *AccessService) Authenticate(ctx context.Context, header string) (*models.Principal, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, appErrors.ErrUnauthenticated
	}
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return nil, appErrors.ErrUnauthenticated
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return nil, appErrors.ErrUnauthenticated
	}

	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, err
	}

	if !isRecordID(claims.UserID) {
		return nil, appErrors.ErrInvalidCredential
	}
	account, err := s.accounts.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "account no longer exists")
		}
		return nil, internal(err, "failed to load account")
	}
	if !account.CanAct() {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredential, "account is not approved")
	}

	return &models.Principal{
		AccountID: account.ID,
		Name:      account.Name,
		Email:     account.Email,
		Role:      account.Role,
	}, nil
}

// Authorize checks the principal against the capability table.
func (s *AccessService) Authorize(principal *models.Principal, capability models.Capability) error {
	if principal == nil {
		return appErrors.ErrUnauthenticated
	}
	if !principal.Can(capability) {
		s.logger.Debug("capability denied",
			zap.String("account_id", principal.AccountID),
			zap.String("role", string(principal.Role)),
			zap.String("capability", string(capability)))
		return appErrors.ErrForbidden
	}
	return nil
}
