package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/pattern-signup-api/internal/models"
)

// writeAudit persists an audit entry. Failures are logged and never surface to the caller.
func writeAudit(ctx context.Context, sink auditLogger, logger *zap.Logger, agent string, log *models.AuditLog) {
	if sink == nil || log == nil {
		return
	}
	if log.IPAddress == "" {
		log.IPAddress = "system"
	}
	if log.UserAgent == "" {
		log.UserAgent = agent
	}
	if err := sink.CreateAuditLog(ctx, log); err != nil {
		logger.Warn("failed to persist audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func marshalAudit(v interface{}) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
