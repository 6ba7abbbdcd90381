package models

import (
	"context"
	"time"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin          = "LOGIN"
	AuditActionSignup         = "SIGNUP"
	AuditActionAccountApprove = "ACCOUNT_APPROVE"
	AuditActionAccountReject  = "ACCOUNT_REJECT"
	AuditActionUpload         = "DOCUMENT_UPLOAD"
	AuditActionUpdate         = "DOCUMENT_UPDATE"
	AuditActionSoftDelete     = "SOFT_DELETE"
	AuditActionRestore        = "RESTORE"
	AuditActionHardDelete     = "HARD_DELETE"
	AuditActionBulkDelete     = "BULK_DELETE"
	AuditActionLegacyCleanup  = "LEGACY_CLEANUP"
	AuditActionPurge          = "PURGE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  *string   `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// RequestOrigin identifies where an audited request came from.
type RequestOrigin struct {
	IPAddress string
	UserAgent string
}

type requestOriginKey struct{}

// WithRequestOrigin returns a context carrying origin.
func WithRequestOrigin(ctx context.Context, origin RequestOrigin) context.Context {
	return context.WithValue(ctx, requestOriginKey{}, origin)
}

// RequestOriginFrom returns the origin stored in ctx, if any.
func RequestOriginFrom(ctx context.Context) (RequestOrigin, bool) {
	origin, ok := ctx.Value(requestOriginKey{}).(RequestOrigin)
	return origin, ok
}
