package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/counseling/internal/clock"
	"github.com/smallbiznis/counseling/internal/session/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	c := p.Clock
	if c == nil {
		c = clock.System{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("session.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: c,
	}
}

func (s *Service) Initialize(ctx context.Context, req domain.InitializeRequest) (domain.Session, error) {
	if req.UserID == 0 {
		return domain.Session{}, domain.ErrInvalidUser
	}
	if req.AgencyID == 0 {
		return domain.Session{}, domain.ErrInvalidAgency
	}
	status, err := domain.ParseStatus(string(req.Status))
	if err != nil {
		return domain.Session{}, err
	}
	if status == domain.StatusInProgress {
		return domain.Session{}, domain.ErrConsultantRequired
	}
	regType, err := domain.ParseRegistrationType(string(req.RegistrationType))
	if err != nil {
		return domain.Session{}, err
	}

	lang := strings.TrimSpace(req.LanguageCode)
	if lang == "" {
		lang = "de"
	}

	now := s.clock.Now().UTC()
	session := domain.Session{
		ID:               s.genID.Generate(),
		UserID:           req.UserID,
		ConsultingType:   req.ConsultingType,
		Status:           status,
		RegistrationType: regType,
		Postcode:         req.Postcode,
		AgencyID:         req.AgencyID,
		TeamSession:      req.TeamSession,
		Monitoring:       req.Monitoring,
		LanguageCode:     lang,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Insert(ctx, s.db, &session); err != nil {
		return domain.Session{}, err
	}

	s.log.Debug("session initialized",
		zap.String("session_id", session.ID.String()),
		zap.String("status", string(session.Status)),
	)
	return session, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Session, error) {
	return found(s.repo.FindByID(ctx, s.db, id))
}

func (s *Service) FindByGroupID(ctx context.Context, groupID string) (domain.Session, error) {
	if strings.TrimSpace(groupID) == "" {
		return domain.Session{}, domain.ErrInvalidGroupID
	}
	return found(s.repo.FindByGroupID(ctx, s.db, groupID))
}

func (s *Service) FindByFeedbackGroupID(ctx context.Context, groupID string) (domain.Session, error) {
	if strings.TrimSpace(groupID) == "" {
		return domain.Session{}, domain.ErrInvalidGroupID
	}
	return found(s.repo.FindByFeedbackGroupID(ctx, s.db, groupID))
}

func found(session *domain.Session, err error) (domain.Session, error) {
	if err != nil {
		return domain.Session{}, err
	}
	if session == nil {
		return domain.Session{}, domain.ErrNotFound
	}
	return *session, nil
}

// UpdateConsultantAndStatus keeps the rule that IN_PROGRESS needs a consultant.
func (s *Service) UpdateConsultantAndStatus(ctx context.Context, id snowflake.ID, consultantID *snowflake.ID, status domain.Status) error {
	if _, err := domain.ParseStatus(string(status)); err != nil {
		return err
	}
	if status == domain.StatusInProgress && (consultantID == nil || *consultantID == 0) {
		return domain.ErrConsultantRequired
	}
	return s.repo.UpdateConsultantAndStatus(ctx, s.db, id, consultantID, status, s.clock.Now().UTC())
}

// MarkEnquiry records the first message. It fails with ErrEnquiryAlreadyWritten
// when the session already has one.
func (s *Service) MarkEnquiry(ctx context.Context, req domain.MarkEnquiryRequest) (domain.Session, error) {
	if strings.TrimSpace(req.GroupID) == "" {
		return domain.Session{}, domain.ErrInvalidGroupID
	}

	var out domain.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := found(s.repo.FindByID(ctx, tx, req.SessionID))
		if err != nil {
			return err
		}
		if current.HasEnquiry() {
			return domain.ErrEnquiryAlreadyWritten
		}

		now := s.clock.Now().UTC()
		n, err := s.repo.MarkEnquiry(ctx, tx, req.SessionID, req.GroupID, req.FeedbackGroupID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrEnquiryAlreadyWritten
		}

		current.GroupID = req.GroupID
		current.FeedbackGroupID = req.FeedbackGroupID
		current.EnquiryMessageAt = &now
		current.Status = domain.StatusNew
		current.UpdatedAt = now
		out = current
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	return out, nil
}

func (s *Service) ListEnquiriesForAgencies(ctx context.Context, agencyIDs []snowflake.ID, registrationType domain.RegistrationType) ([]domain.Session, error) {
	if len(agencyIDs) == 0 {
		return nil, nil
	}
	return s.repo.List(ctx, s.db, domain.ListFilter{
		AgencyIDs:        agencyIDs,
		Status:           domain.StatusNew,
		Unassigned:       true,
		RegistrationType: registrationType,
	})
}

func (s *Service) ListTeamSessionsForAgencies(ctx context.Context, agencyIDs []snowflake.ID) ([]domain.Session, error) {
	if len(agencyIDs) == 0 {
		return nil, nil
	}
	team := true
	return s.repo.List(ctx, s.db, domain.ListFilter{
		AgencyIDs:   agencyIDs,
		Status:      domain.StatusInProgress,
		TeamSession: &team,
	})
}

func (s *Service) ListByConsultantAndStatus(ctx context.Context, consultantID snowflake.ID, status domain.Status) ([]domain.Session, error) {
	return s.repo.List(ctx, s.db, domain.ListFilter{ConsultantID: &consultantID, Status: status})
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	n, err := s.repo.Delete(ctx, s.db, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
