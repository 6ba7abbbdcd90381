package models

import "github.com/golang-jwt/jwt/v5"

// SignupRequest registers a new account.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     Role   `json:"role" validate:"required,oneof=student teacher cr"`
}

// SignupResponse echoes the created account with a status message.
type SignupResponse struct {
	Message string      `json:"message"`
	User    AccountInfo `json:"user"`
}

// LoginRequest holds credentials for authenticating an account.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the bearer token and account info.
type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresIn int64       `json:"expiresIn"`
	User      AccountInfo `json:"user"`
}

// JWTClaims is the bearer token payload.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller of a request.
type Principal struct {
	AccountID string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

// Can reports whether the principal holds capability c.
func (p *Principal) Can(c Capability) bool {
	if p == nil {
		return false
	}
	for _, role := range capabilityTable[c] {
		if role == p.Role {
			return true
		}
	}
	return false
}
