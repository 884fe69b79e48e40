// Package assignment hands counseling sessions to consultants.
package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/counseling/internal/apperror"
	"github.com/smallbiznis/counseling/internal/config"
	consultantdomain "github.com/smallbiznis/counseling/internal/consultant/domain"
	"github.com/smallbiznis/counseling/internal/groupmembership"
	"github.com/smallbiznis/counseling/internal/observability/logger"
	"github.com/smallbiznis/counseling/internal/observability/metrics"
	"github.com/smallbiznis/counseling/internal/ratelimit"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
	userdomain "github.com/smallbiznis/counseling/internal/user/domain"
)

var Module = fx.Module("assignment.service",
	fx.Provide(NewVerifier),
	fx.Provide(New),
)

const lockKeyPrefix = "session:assign:"

// Membership is the part of the group membership operation assignment drives.
type Membership interface {
	Add(ctx context.Context, batch []groupmembership.SessionConsultants) error
	Remove(ctx context.Context, batch []groupmembership.SessionConsultants) ([]groupmembership.SessionConsultants, error)
}

type Params struct {
	fx.In

	Config        config.Config
	Log           *zap.Logger
	Locker        ratelimit.Locker
	Verifier      *Verifier
	SessionSvc    sessiondomain.Service
	UserSvc       userdomain.Service
	ConsultantSvc consultantdomain.Service
	Membership    *groupmembership.Operation
	Metrics       *metrics.Metrics `optional:"true"`
}

type Service struct {
	log           *zap.Logger
	locker        ratelimit.Locker
	lockTTL       time.Duration
	verifier      *Verifier
	sessionSvc    sessiondomain.Service
	userSvc       userdomain.Service
	consultantSvc consultantdomain.Service
	membership    Membership
	metrics       *metrics.Metrics
}

func New(p Params) *Service {
	return NewService(p.Log, p.Locker, p.Config.AssignmentLockTTL, p.Verifier, p.SessionSvc, p.UserSvc, p.ConsultantSvc, p.Membership, p.Metrics)
}

func NewService(
	log *zap.Logger,
	locker ratelimit.Locker,
	lockTTL time.Duration,
	verifier *Verifier,
	sessionSvc sessiondomain.Service,
	userSvc userdomain.Service,
	consultantSvc consultantdomain.Service,
	membership Membership,
	m *metrics.Metrics,
) *Service {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Service{
		log:           log.Named("assignment.service"),
		locker:        locker,
		lockTTL:       lockTTL,
		verifier:      verifier,
		sessionSvc:    sessionSvc,
		userSvc:       userSvc,
		consultantSvc: consultantSvc,
		membership:    membership,
		metrics:       m,
	}
}

// AssignSession makes consultantID the consultant of the session and moves
// it to IN_PROGRESS. The consultant joins the session groups; for sessions
// that are not team sessions every other consultant leaves them.
func (s *Service) AssignSession(ctx context.Context, sessionID, consultantID snowflake.ID, purpose Purpose) (sessiondomain.Session, error) {
	log := logger.WithContext(ctx, s.log).With(
		zap.String("session_id", sessionID.String()),
		zap.String("consultant_id", consultantID.String()),
	)

	key := lockKeyPrefix + sessionID.String()
	token, ok, err := s.locker.TryLock(ctx, key, s.lockTTL)
	if err != nil {
		return sessiondomain.Session{}, s.reject(ctx, apperror.Internal(err, "could not lock session %s", sessionID))
	}
	if !ok {
		return sessiondomain.Session{}, s.reject(ctx, apperror.Conflict("assignment_in_progress", "session %s is being assigned", sessionID))
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			log.Warn("could not release assignment lock", zap.Error(err))
		}
	}()

	req, previous, err := s.load(ctx, sessionID, consultantID, purpose)
	if err != nil {
		return sessiondomain.Session{}, s.reject(ctx, err)
	}
	if err := s.verifier.Verify(req); err != nil {
		return sessiondomain.Session{}, s.reject(ctx, err)
	}

	session := req.Session
	consultant := req.Consultant
	if err := s.sessionSvc.UpdateConsultantAndStatus(ctx, session.ID, &consultant.ID, sessiondomain.StatusInProgress); err != nil {
		return sessiondomain.Session{}, s.reject(ctx, apperror.Internal(err, "could not assign session %s", session.ID))
	}

	assigned := session
	assigned.ConsultantID = &consultant.ID
	assigned.Status = sessiondomain.StatusInProgress

	if err := s.membership.Add(ctx, []groupmembership.SessionConsultants{{
		Session:     assigned,
		Consultants: []consultantdomain.Consultant{consultant},
	}}); err != nil {
		if restoreErr := s.sessionSvc.UpdateConsultantAndStatus(context.WithoutCancel(ctx), session.ID, session.ConsultantID, session.Status); restoreErr != nil {
			log.Error("could not restore session after failed group add",
				zap.String("status", string(session.Status)),
				zap.Error(restoreErr),
			)
		}
		s.metrics.RecordAssignment(ctx, metrics.OutcomeRolledBack)
		return sessiondomain.Session{}, err
	}

	if !session.TeamSession {
		s.removeOthers(ctx, log, assigned, req.SessionUser, consultant, previous)
	}

	s.metrics.RecordAssignment(ctx, metrics.OutcomeSuccess)
	log.Info("session assigned", zap.String("purpose", string(purpose)))
	return assigned, nil
}

func (s *Service) load(ctx context.Context, sessionID, consultantID snowflake.ID, purpose Purpose) (Request, *consultantdomain.Consultant, error) {
	session, err := s.sessionSvc.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessiondomain.ErrNotFound) {
			return Request{}, nil, apperror.NotFound("session_not_found", "session %s does not exist", sessionID)
		}
		return Request{}, nil, apperror.Internal(err, "could not load session %s", sessionID)
	}
	consultant, err := s.consultantSvc.GetByID(ctx, consultantID)
	if err != nil {
		if errors.Is(err, consultantdomain.ErrNotFound) {
			return Request{}, nil, apperror.NotFound("consultant_not_found", "consultant %s does not exist", consultantID)
		}
		return Request{}, nil, apperror.Internal(err, "could not load consultant %s", consultantID)
	}
	user, err := s.userSvc.GetByID(ctx, session.UserID)
	if err != nil {
		return Request{}, nil, apperror.Internal(err, "could not load user of session %s", sessionID)
	}

	var previous *consultantdomain.Consultant
	if session.HasConsultant() && !session.AssignedTo(consultantID) {
		prev, err := s.consultantSvc.GetByID(ctx, *session.ConsultantID)
		switch {
		case err == nil:
			previous = &prev
		case !errors.Is(err, consultantdomain.ErrNotFound):
			return Request{}, nil, apperror.Internal(err, "could not load previous consultant of session %s", sessionID)
		}
	}

	return Request{Session: session, SessionUser: user, Consultant: consultant, Purpose: purpose}, previous, nil
}

// removeOthers takes every consultant but the new one out of the session
// groups. The assignment stands when this fails; the error is logged.
func (s *Service) removeOthers(
	ctx context.Context,
	log *zap.Logger,
	session sessiondomain.Session,
	user userdomain.User,
	consultant consultantdomain.Consultant,
	previous *consultantdomain.Consultant,
) {
	candidates, err := s.consultantSvc.ListByAgency(ctx, session.AgencyID)
	if err != nil {
		log.Error("could not list agency consultants for group cleanup", zap.Error(err))
		return
	}
	if previous != nil && !previous.ServesAgency(session.AgencyID) {
		candidates = append(candidates, *previous)
	}

	userChatID := ""
	if user.ChatID != nil {
		userChatID = *user.ChatID
	}
	_, err = s.membership.Remove(ctx, []groupmembership.SessionConsultants{{
		Session:        session,
		Consultants:    candidates,
		UserChatID:     userChatID,
		AssignedChatID: consultant.ChatID,
	}})
	if err != nil {
		log.Error("could not remove other consultants from session groups", zap.Error(err))
	}
}

func (s *Service) reject(ctx context.Context, err error) error {
	s.metrics.RecordAssignment(ctx, metrics.OutcomeRejected)
	return err
}
