package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edupacket-api/internal/models"
	"github.com/noah-isme/edupacket-api/internal/repository"
	appErrors "github.com/noah-isme/edupacket-api/pkg/errors"
)

const pendingReviewNotice = "Your account will be reviewed by an admin before you can login."

type authAccountStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	TokenSecret string
	TokenExpiry time.Duration
}

// AuthService handles signup, login and bearer token issuance.
type AuthService struct {
	repo      authAccountStore
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authAccountStore, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TokenExpiry <= 0 {
		config.TokenExpiry = 7 * 24 * time.Hour
	}
	return &AuthService{repo: repo, validator: validate, logger: logger, config: config, now: time.Now}
}

// Signup registers a student, teacher or class representative. Students are
// approved immediately; the other roles wait for an administrator.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (*models.SignupResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = models.NormalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid signup payload")
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "User already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, internal(err, "failed to check existing account")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internal(err, "failed to hash password")
	}

	account := &models.Account{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         req.Role,
		Status:       models.InitialStatus(req.Role),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "User already exists")
		}
		return nil, internal(err, "failed to create account")
	}

	s.audit(ctx, &models.AuditLog{
		UserID:     &account.ID,
		Action:     models.AuditActionSignup,
		Resource:   "account",
		ResourceID: &account.ID,
		NewValues:  jsonString(map[string]interface{}{"role": account.Role, "status": account.Status}),
	})

	message := "User registered successfully."
	if account.Status == models.StatusPending {
		message += " " + pendingReviewNotice
	}
	s.logger.Info("account registered", zap.String("account_id", account.ID), zap.String("role", string(account.Role)), zap.String("status", string(account.Status)))
	return &models.SignupResponse{Message: message, User: account.Info()}, nil
}

// Login verifies credentials and issues a bearer token. Privileged accounts
// must be approved first.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	req.Email = models.NormalizeEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid login payload")
	}

	account, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, internal(err, "failed to fetch account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	if account.Role.Privileged() {
		switch account.Status {
		case models.StatusApproved:
		case models.StatusRejected:
			return nil, appErrors.ErrAccountRejected
		default:
			return nil, appErrors.Clone(appErrors.ErrAccountPending, fmt.Sprintf("Your account is %s. Please wait for admin approval.", account.Status))
		}
	}

	token, err := s.IssueToken(account)
	if err != nil {
		return nil, internal(err, "failed to create token")
	}

	s.audit(ctx, &models.AuditLog{
		UserID:     &account.ID,
		Action:     models.AuditActionLogin,
		Resource:   "auth",
		ResourceID: &account.ID,
		NewValues:  jsonString(map[string]interface{}{"status": "success"}),
	})

	return &models.LoginResponse{
		Token:     token,
		ExpiresIn: int64(s.config.TokenExpiry.Seconds()),
		User:      account.Info(),
	}, nil
}

// IssueToken signs an HS256 bearer token carrying the account id and role.
func (s *AuthService) IssueToken(account *models.Account) (string, error) {
	now := s.now().UTC()
	claims := models.JWTClaims{
		UserID: account.ID,
		Role:   account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenExpiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.TokenSecret))
}

// ParseToken verifies signature and expiry of a bearer token.
func (s *AuthService) ParseToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.WithCause(appErrors.ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, appErrors.ErrInvalidCredential
	}
	return claims, nil
}

func (s *AuthService) audit(ctx context.Context, log *models.AuditLog) {
	recordAudit(ctx, s.repo, s.logger, "auth-service", nil, log)
}
