// Package groupmembership adds consultants to and removes them from the chat
// groups backing counseling sessions, compensating partial progress when the
// chat backend fails halfway through a batch.
package groupmembership

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/counseling/internal/apperror"
	"github.com/smallbiznis/counseling/internal/authorization"
	chatdomain "github.com/smallbiznis/counseling/internal/chat/domain"
	consultantdomain "github.com/smallbiznis/counseling/internal/consultant/domain"
	"github.com/smallbiznis/counseling/internal/observability/metrics"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
)

var Module = fx.Module("groupmembership",
	fx.Provide(New),
)

const (
	operationAdd    = "add"
	operationRemove = "remove"
	rollbackSource  = "group_membership"
)

// SessionConsultants pairs a session with the consultants a membership change applies to.
type SessionConsultants struct {
	Session     sessiondomain.Session
	Consultants []consultantdomain.Consultant

	// UserChatID and AssignedChatID are the active parties of the session.
	// The remove variant never touches them.
	UserChatID     string
	AssignedChatID string
}

// AuthorityChecker decides which consultants keep their group memberships.
type AuthorityChecker interface {
	HasElevatedAuthority(ctx context.Context, identityID string) (bool, error)
}

type Params struct {
	fx.In

	Chat    chatdomain.Client
	Authz   authorization.Service
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

type Operation struct {
	chat    chatdomain.Client
	authz   AuthorityChecker
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(p Params) *Operation {
	return NewOperation(p.Chat, p.Authz, p.Log, p.Metrics)
}

func NewOperation(chat chatdomain.Client, authz AuthorityChecker, log *zap.Logger, m *metrics.Metrics) *Operation {
	return &Operation{
		chat:    chat,
		authz:   authz,
		log:     log.Named("groupmembership"),
		metrics: m,
	}
}

type membership struct {
	sessionID snowflake.ID
	chatID    string
	groupID   string
}

// Add adds every consultant to the main and feedback group of every session.
// On the first failure every membership added by this call is removed again
// and the error names the failing session and group.
func (o *Operation) Add(ctx context.Context, batch []SessionConsultants) error {
	added := make([]membership, 0, len(batch))

	for _, item := range batch {
		for _, consultant := range item.Consultants {
			for _, groupID := range item.Session.GroupIDs() {
				m := membership{sessionID: item.Session.ID, chatID: consultant.ChatID, groupID: groupID}

				err := o.addMember(ctx, consultant, groupID)
				if err == nil {
					added = append(added, m)
					continue
				}

				primary := apperror.Internal(err,
					"could not add consultant %s to group %s of session %d",
					consultant.ID, groupID, item.Session.ID)
				return o.compensate(ctx, operationAdd, primary, added, o.chat.RemoveMember)
			}
		}
	}

	o.metrics.RecordGroupMembership(ctx, operationAdd, metrics.OutcomeSuccess)
	return nil
}

func (o *Operation) addMember(ctx context.Context, consultant consultantdomain.Consultant, groupID string) error {
	if !consultant.HasChatID() {
		return fmt.Errorf("consultant %s has no chat id", consultant.ID)
	}
	return o.chat.AddMember(ctx, consultant.ChatID, groupID)
}

// Remove removes the given consultants from the groups of each session they
// are members of. The session user, the assigned consultant and consultants
// with elevated authority are kept. A failure compensates only the session
// being processed; sessions finished before it stay as they are.
//
// The returned batch lists, per session, the consultants that were actually
// removed and still are, also when an error is returned. Passing it to Add
// restores exactly those memberships.
func (o *Operation) Remove(ctx context.Context, batch []SessionConsultants) ([]SessionConsultants, error) {
	removed := make([]SessionConsultants, 0, len(batch))
	for _, item := range batch {
		done, err := o.removeFromSession(ctx, item)
		if err != nil {
			return removed, err
		}
		if len(done.Consultants) > 0 {
			removed = append(removed, done)
		}
	}

	o.metrics.RecordGroupMembership(ctx, operationRemove, metrics.OutcomeSuccess)
	return removed, nil
}

func (o *Operation) removeFromSession(ctx context.Context, item SessionConsultants) (SessionConsultants, error) {
	s := item.Session
	done := SessionConsultants{
		Session:        s,
		UserChatID:     item.UserChatID,
		AssignedChatID: item.AssignedChatID,
	}
	if s.GroupID == "" {
		return done, nil
	}

	members, err := o.chat.ListMembers(ctx, s.GroupID)
	if err != nil {
		o.metrics.RecordGroupMembership(ctx, operationRemove, metrics.OutcomeRejected)
		return done, apperror.Internal(err, "could not list members of group %s of session %d", s.GroupID, s.ID)
	}

	candidates, err := o.removalCandidates(ctx, item, members)
	if err != nil {
		o.metrics.RecordGroupMembership(ctx, operationRemove, metrics.OutcomeRejected)
		return done, apperror.Internal(err, "could not resolve removal candidates of session %d", s.ID)
	}

	removed := make([]membership, 0, len(candidates)*2)
	for _, consultant := range candidates {
		for _, groupID := range s.GroupIDs() {
			if err := o.chat.RemoveMember(ctx, consultant.ChatID, groupID); err != nil {
				primary := apperror.Internal(err,
					"could not remove consultant %s from group %s of session %d",
					consultant.ID, groupID, s.ID)
				return SessionConsultants{Session: s}, o.compensate(ctx, operationRemove, primary, removed, o.chat.AddMember)
			}
			removed = append(removed, membership{sessionID: s.ID, chatID: consultant.ChatID, groupID: groupID})
		}
	}
	done.Consultants = candidates
	return done, nil
}

func (o *Operation) removalCandidates(ctx context.Context, item SessionConsultants, members []chatdomain.Member) ([]consultantdomain.Consultant, error) {
	inGroup := make(map[string]struct{}, len(members))
	for _, m := range members {
		inGroup[m.ID] = struct{}{}
	}

	out := make([]consultantdomain.Consultant, 0, len(item.Consultants))
	for _, consultant := range item.Consultants {
		if !consultant.HasChatID() {
			continue
		}
		if consultant.ChatID == item.UserChatID || consultant.ChatID == item.AssignedChatID {
			continue
		}
		if item.Session.AssignedTo(consultant.ID) {
			continue
		}
		if _, ok := inGroup[consultant.ChatID]; !ok {
			continue
		}

		elevated, err := o.authz.HasElevatedAuthority(ctx, consultant.IdentityID)
		if err != nil {
			return nil, err
		}
		if elevated {
			o.log.Debug("keeping consultant with elevated authority in group",
				zap.String("consultant_id", consultant.ID.String()),
				zap.String("group_id", item.Session.GroupID),
			)
			continue
		}
		out = append(out, consultant)
	}
	return out, nil
}

// compensate undoes done in reverse order with undo. The primary error is
// always returned; if compensation fails too it is wrapped in a secondary error.
func (o *Operation) compensate(
	ctx context.Context,
	operation string,
	primary error,
	done []membership,
	undo func(ctx context.Context, chatUserID, groupID string) error,
) error {
	o.metrics.RecordGroupMembership(ctx, operation, metrics.OutcomeRolledBack)

	var rollbackErr *multierror.Error
	for i := len(done) - 1; i >= 0; i-- {
		m := done[i]
		if err := undo(ctx, m.chatID, m.groupID); err != nil {
			rollbackErr = multierror.Append(rollbackErr,
				fmt.Errorf("undo %s of chat user %s in group %s: %w", operation, m.chatID, m.groupID, err))
			o.log.Error("group membership rollback failed",
				zap.String("operation", operation),
				zap.String("session_id", m.sessionID.String()),
				zap.String("chat_user_id", m.chatID),
				zap.String("group_id", m.groupID),
				zap.Error(err),
			)
		}
	}

	if secondary := apperror.Secondary(primary, rollbackErr); secondary != nil {
		o.metrics.RecordRollback(ctx, rollbackSource, metrics.OutcomeRollbackFailed)
		return secondary
	}
	o.metrics.RecordRollback(ctx, rollbackSource, metrics.OutcomeSuccess)
	return primary
}
