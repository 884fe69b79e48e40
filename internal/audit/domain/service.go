package domain

import (
	"context"
	"errors"
)

type Service interface {
	AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
	// RecordWorkflowErrors persists each entry as a "rollback.failed" log.
	// Individual write failures are logged and skipped.
	RecordWorkflowErrors(ctx context.Context, errs []DeletionWorkflowError) int
	List(ctx context.Context, filter ListFilter) ([]AuditLog, error)
}

const ActionRollbackFailed = "rollback.failed"

var (
	ErrInvalidAction = errors.New("invalid_action")
)
