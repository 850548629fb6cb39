// Package audit delivers authorization audit events: every denial and every
// access granted through a cross-business grant.
package audit

import (
	"context"
	"errors"
	"log/slog"

	"tenantchat/internal/domain/models"
	"tenantchat/internal/domain/services"
)

// LogSink writes events to the structured log
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs each event at info level
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "audit")}
}

func (s *LogSink) Record(ctx context.Context, e models.AuditEvent) error {
	attrs := []any{
		"decision", e.Decision,
		"reason", e.Reason,
		"principal_user_id", e.PrincipalUserID,
		"resource_kind", e.ResourceKind,
		"resource_id", e.ResourceID,
		"access_type", e.AccessType,
		"operation", e.Operation,
		"timestamp", e.Timestamp,
	}
	if e.PrincipalBusinessID != nil {
		attrs = append(attrs, "principal_business_id", *e.PrincipalBusinessID)
	}
	if e.TargetBusinessID != nil {
		attrs = append(attrs, "target_business_id", *e.TargetBusinessID)
	}
	s.logger.InfoContext(ctx, "authorization audit", attrs...)
	return nil
}

// MultiSink fans an event out to every sink and joins their errors
type MultiSink []services.AuditSink

func (m MultiSink) Record(ctx context.Context, e models.AuditEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
