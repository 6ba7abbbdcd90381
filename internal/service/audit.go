package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/edupacket-api/internal/models"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// recordAudit writes an audit entry attributed to the principal, logging
// rather than failing when the write is rejected.
func recordAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, source string, principal *models.Principal, log *models.AuditLog) {
	if audit == nil || log == nil {
		return
	}
	if principal != nil && log.UserID == nil {
		id := principal.AccountID
		log.UserID = &id
	}
	if origin, ok := models.RequestOriginFrom(ctx); ok {
		log.IPAddress = origin.IPAddress
		log.UserAgent = origin.UserAgent
	} else {
		log.IPAddress = "internal"
		log.UserAgent = source
	}
	if err := audit.CreateAuditLog(ctx, log); err != nil {
		logger.Warn("failed to record audit log", zap.String("source", source), zap.String("action", log.Action), zap.Error(err))
	}
}

func jsonString(v interface{}) *string {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(raw)
	return &s
}

func strPtr(s string) *string {
	return &s
}
