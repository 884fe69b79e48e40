package enquiry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/smallbiznis/counseling/internal/apperror"
	chatdomain "github.com/smallbiznis/counseling/internal/chat/domain"
	"github.com/smallbiznis/counseling/internal/consultingtype"
	"github.com/smallbiznis/counseling/internal/observability/logger"
	"github.com/smallbiznis/counseling/internal/observability/metrics"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
	userdomain "github.com/smallbiznis/counseling/internal/user/domain"
)

// undoStack holds the compensations of the committed steps.
type undoStack struct {
	steps []undoStep
}

type undoStep struct {
	name string
	fn   func(context.Context) error
}

func (u *undoStack) push(name string, fn func(context.Context) error) {
	u.steps = append(u.steps, undoStep{name: name, fn: fn})
}

func (u *undoStack) unwind(ctx context.Context) *multierror.Error {
	var result *multierror.Error
	for i := len(u.steps) - 1; i >= 0; i-- {
		if err := u.steps[i].fn(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", u.steps[i].name, err))
		}
	}
	return result
}

// CreateEnquiryMessage writes the first message of a session. It creates the
// session group, optionally a feedback group and monitoring, posts the
// message and records the enquiry. A failure in any of those steps undoes the
// previous ones. Consultant membership and notifications afterwards are best
// effort.
func (s *Service) CreateEnquiryMessage(ctx context.Context, req Request) (Created, error) {
	log := logger.WithContext(ctx, s.log).With(zap.String("session_id", req.SessionID.String()))

	if strings.TrimSpace(req.Message) == "" {
		return Created{}, s.reject(ctx, apperror.Validation("empty_message", "message must not be empty"))
	}
	if !req.Credentials.Valid() {
		return Created{}, s.reject(ctx, apperror.Validation("invalid_chat_credentials", "chat credentials are missing"))
	}

	session, err := s.sessionSvc.Get(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, sessiondomain.ErrNotFound) {
			return Created{}, s.reject(ctx, apperror.Validation("session_not_found", "session %s does not exist", req.SessionID))
		}
		return Created{}, s.reject(ctx, apperror.Internal(err, "could not load session %s", req.SessionID))
	}
	if session.HasEnquiry() {
		return Created{}, s.reject(ctx, apperror.Conflict("enquiry_already_written", "session %s already has an enquiry message", session.ID))
	}
	if !sessiondomain.UserOwnsSession(req.UserID, session) {
		return Created{}, s.reject(ctx, apperror.Forbidden("session_not_owned", "session %s belongs to another user", session.ID))
	}
	if err := s.verifyChatIdentity(ctx, session, req.Credentials); err != nil {
		return Created{}, err
	}

	ct := consultingtype.ConsultingType(session.ConsultingType)
	settings, err := s.consultingTypes.SettingsFor(ct)
	if err != nil {
		return Created{}, s.reject(ctx, apperror.Internal(err, "no settings for consulting type %s", ct))
	}

	var undo undoStack
	created := Created{SessionID: session.ID}

	group, err := s.chat.CreatePrivateGroup(ctx, chatdomain.GroupName(settings.Name, session.ID.String()), req.Credentials)
	if err != nil {
		return Created{}, s.reject(ctx, apperror.Internal(err, "could not create chat group for session %s", session.ID))
	}
	created.GroupID = group.ID
	undo.push("delete group "+group.ID, s.deleteGroup(group.ID, req.Credentials))

	if settings.FeedbackChat {
		feedback, err := s.chat.CreatePrivateGroup(ctx, chatdomain.FeedbackGroupName(settings.Name, session.ID.String()), s.system)
		if err != nil {
			return Created{}, s.abort(ctx, log, &undo, apperror.Internal(err, "could not create feedback group for session %s", session.ID))
		}
		created.FeedbackGroupID = feedback.ID
		undo.push("delete feedback group "+feedback.ID, s.deleteGroup(feedback.ID, s.system))
	}

	if settings.Monitoring.Enabled && session.Monitoring {
		if _, err := s.monitoringSvc.CreateInitialMonitoring(ctx, session.ID, settings.Monitoring.Template); err != nil {
			return Created{}, s.abort(ctx, log, &undo, apperror.Internal(err, "could not initialize monitoring for session %s", session.ID))
		}
		undo.push("delete monitoring", func(ctx context.Context) error {
			return s.monitoringSvc.DeleteInitialMonitoring(ctx, session.ID)
		})
	}

	if err := s.chat.PostMessage(ctx, group.ID, req.Credentials, req.Message); err != nil {
		return Created{}, s.abort(ctx, log, &undo, apperror.Internal(err, "could not post enquiry message to group %s", group.ID))
	}

	session, err = s.sessionSvc.MarkEnquiry(ctx, sessiondomain.MarkEnquiryRequest{
		SessionID:       session.ID,
		GroupID:         created.GroupID,
		FeedbackGroupID: created.FeedbackGroupID,
	})
	if err != nil {
		if errors.Is(err, sessiondomain.ErrEnquiryAlreadyWritten) {
			return Created{}, s.abort(ctx, log, &undo, apperror.Conflict("enquiry_already_written", "session %s already has an enquiry message", req.SessionID))
		}
		return Created{}, s.abort(ctx, log, &undo, apperror.Internal(err, "could not save enquiry of session %s", req.SessionID))
	}

	s.metrics.RecordEnquiry(ctx, metrics.OutcomeSuccess)
	log.Info("enquiry created", zap.String("group_id", created.GroupID))

	s.afterEnquiry(ctx, log, session, settings, req.Credentials)
	return created, nil
}

// verifyChatIdentity checks that the chat user acting is the asker owning the session.
func (s *Service) verifyChatIdentity(ctx context.Context, session sessiondomain.Session, creds chatdomain.Credentials) error {
	user, err := s.userSvc.GetByID(ctx, session.UserID)
	if err != nil {
		return s.reject(ctx, apperror.Internal(err, "could not load user of session %s", session.ID))
	}
	info, err := s.chat.GetUserInfo(ctx, creds.UserID)
	if err != nil {
		return s.reject(ctx, apperror.Internal(err, "could not load chat user %s", creds.UserID))
	}
	if !userdomain.UsernamesMatch(info.Username, user.Username) {
		return s.reject(ctx, apperror.Validation("chat_user_mismatch", "chat user does not match the session user"))
	}
	return nil
}

func (s *Service) deleteGroup(groupID string, creds chatdomain.Credentials) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.chat.DeleteGroup(ctx, groupID, creds)
		return err
	}
}

// abort unwinds the committed steps and returns primary. Compensation
// failures are logged with the group ids involved.
func (s *Service) abort(ctx context.Context, log *zap.Logger, undo *undoStack, primary error) error {
	rollbackErr := undo.unwind(context.WithoutCancel(ctx))
	if secondary := apperror.Secondary(primary, rollbackErr); secondary != nil {
		log.Error("enquiry rollback incomplete", zap.Error(secondary))
		s.metrics.RecordRollback(ctx, "enquiry", metrics.OutcomeRollbackFailed)
		s.metrics.RecordEnquiry(ctx, metrics.OutcomeRollbackFailed)
		return primary
	}
	log.Warn("enquiry rolled back", zap.Error(primary))
	s.metrics.RecordRollback(ctx, "enquiry", metrics.OutcomeSuccess)
	s.metrics.RecordEnquiry(ctx, metrics.OutcomeRolledBack)
	return primary
}

func (s *Service) reject(ctx context.Context, err error) error {
	s.metrics.RecordEnquiry(ctx, metrics.OutcomeRejected)
	return err
}
