package models

import (
	"strings"
	"time"
)

// Role is the permission level of an account.
type Role string

const (
	RoleStudent Role = "student"
	RoleCR      Role = "cr"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleCR, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// Privileged reports whether the role must be approved before it can act.
func (r Role) Privileged() bool {
	return r == RoleCR || r == RoleTeacher || r == RoleAdmin
}

// AccountStatus tracks the approval workflow of an account.
type AccountStatus string

const (
	StatusPending  AccountStatus = "pending"
	StatusApproved AccountStatus = "approved"
	StatusRejected AccountStatus = "rejected"
)

// InitialStatus is the status assigned when an account with role r signs up.
func InitialStatus(r Role) AccountStatus {
	if r == RoleStudent {
		return StatusApproved
	}
	return StatusPending
}

// Account represents a row in the accounts table.
type Account struct {
	ID           string        `db:"id" json:"id"`
	Name         string        `db:"name" json:"name"`
	Email        string        `db:"email" json:"email"`
	PasswordHash string        `db:"password_hash" json:"-"`
	Role         Role          `db:"role" json:"role"`
	Status       AccountStatus `db:"status" json:"status"`
	CreatedAt    time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updatedAt"`
}

// CanAct reports whether the account may use privileged capabilities.
func (a *Account) CanAct() bool {
	return !a.Role.Privileged() || a.Status == StatusApproved
}

// Info strips the account down to what is returned to clients.
func (a *Account) Info() AccountInfo {
	return AccountInfo{ID: a.ID, Name: a.Name, Email: a.Email, Role: a.Role, Status: a.Status}
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountInfo describes an account in responses.
type AccountInfo struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Email  string        `json:"email"`
	Role   Role          `json:"role"`
	Status AccountStatus `json:"status,omitempty"`
}
