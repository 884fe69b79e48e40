package account

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	auditdomain "github.com/smallbiznis/counseling/internal/audit/domain"
	"github.com/smallbiznis/counseling/internal/clock"
	identitydomain "github.com/smallbiznis/counseling/internal/identity/domain"
	"github.com/smallbiznis/counseling/internal/observability/metrics"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
	userdomain "github.com/smallbiznis/counseling/internal/user/domain"
)

const sourceTypeAsker = "ASKER"

// RollbackInfo names what a failed registration committed.
type RollbackInfo struct {
	IdentityID string
	UserID     snowflake.ID
	SessionID  snowflake.ID

	DeleteIdentity bool
	DeleteUser     bool
	DeleteSession  bool
}

// RollbackCoordinator deletes the parts of an account that were committed,
// newest first. It never fails; every step that could not be undone is
// reported as a DeletionWorkflowError.
type RollbackCoordinator struct {
	log        *zap.Logger
	identity   identitydomain.Client
	userSvc    userdomain.Service
	sessionSvc sessiondomain.Service
	clock      clock.Clock
	metrics    *metrics.Metrics
}

func NewRollbackCoordinator(p RollbackParams) *RollbackCoordinator {
	c := p.Clock
	if c == nil {
		c = clock.System{}
	}
	return &RollbackCoordinator{
		log:        p.Log.Named("account.rollback"),
		identity:   p.Identity,
		userSvc:    p.UserSvc,
		sessionSvc: p.SessionSvc,
		clock:      c,
		metrics:    p.Metrics,
	}
}

type rollbackStep struct {
	target     string
	identifier string
	undo       func(context.Context) error
}

func (r *RollbackCoordinator) Rollback(ctx context.Context, info RollbackInfo) []auditdomain.DeletionWorkflowError {
	// Steps are pushed in commit order and undone in reverse.
	var steps []rollbackStep
	if info.DeleteIdentity && info.IdentityID != "" {
		steps = append(steps, rollbackStep{
			target:     auditdomain.TargetIdentity,
			identifier: info.IdentityID,
			undo: func(ctx context.Context) error {
				return r.identity.DeleteAccount(ctx, info.IdentityID)
			},
		})
	}
	if info.DeleteUser && info.UserID != 0 {
		steps = append(steps, rollbackStep{
			target:     auditdomain.TargetDatabase,
			identifier: info.UserID.String(),
			undo: func(ctx context.Context) error {
				return ignoreMissing(r.userSvc.Delete(ctx, info.UserID), userdomain.ErrNotFound)
			},
		})
	}
	if info.DeleteSession && info.SessionID != 0 {
		steps = append(steps, rollbackStep{
			target:     auditdomain.TargetDatabase,
			identifier: info.SessionID.String(),
			undo: func(ctx context.Context) error {
				return ignoreMissing(r.sessionSvc.Delete(ctx, info.SessionID), sessiondomain.ErrNotFound)
			},
		})
	}

	// Compensation must run even when the request was cancelled.
	ctx = context.WithoutCancel(ctx)

	var failures []auditdomain.DeletionWorkflowError
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.undo(ctx); err != nil {
			failures = append(failures, auditdomain.DeletionWorkflowError{
				SourceType: sourceTypeAsker,
				TargetType: step.target,
				Identifier: step.identifier,
				Reason:     err.Error(),
				Timestamp:  r.clock.Now().UTC(),
			})
			r.log.Error("account rollback step failed",
				zap.String("target_type", step.target),
				zap.String("identifier", step.identifier),
				zap.String("identity_id", info.IdentityID),
				zap.Error(err),
			)
		}
	}

	outcome := metrics.OutcomeSuccess
	if len(failures) > 0 {
		outcome = metrics.OutcomeRollbackFailed
	}
	r.metrics.RecordRollback(ctx, "account", outcome)
	return failures
}

func ignoreMissing(err, notFound error) error {
	if errors.Is(err, notFound) {
		return nil
	}
	return err
}
