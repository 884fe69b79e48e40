package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	agencydomain "github.com/smallbiznis/counseling/internal/agency/domain"
	"github.com/smallbiznis/counseling/internal/clock"
	"github.com/smallbiznis/counseling/internal/consultant/domain"
	"github.com/smallbiznis/counseling/internal/groupmembership"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
	"github.com/smallbiznis/counseling/pkg/db"
)

// Membership is the part of the group membership operation the service drives.
type Membership interface {
	Add(ctx context.Context, batch []groupmembership.SessionConsultants) error
	Remove(ctx context.Context, batch []groupmembership.SessionConsultants) ([]groupmembership.SessionConsultants, error)
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	AgencySvc  agencydomain.Service
	SessionSvc sessiondomain.Service
	Membership *groupmembership.Operation
	Clock      clock.Clock `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	agencySvc  agencydomain.Service
	sessionSvc sessiondomain.Service
	membership Membership
	clock      clock.Clock
}

func New(p Params) domain.Service {
	return NewService(p.DB, p.Log, p.GenID, p.Repo, p.AgencySvc, p.SessionSvc, p.Membership, p.Clock)
}

func NewService(
	conn *gorm.DB,
	log *zap.Logger,
	genID *snowflake.Node,
	repo domain.Repository,
	agencySvc agencydomain.Service,
	sessionSvc sessiondomain.Service,
	membership Membership,
	c clock.Clock,
) *Service {
	if c == nil {
		c = clock.System{}
	}
	return &Service{
		db:         conn,
		log:        log.Named("consultant.service"),
		genID:      genID,
		repo:       repo,
		agencySvc:  agencySvc,
		sessionSvc: sessionSvc,
		membership: membership,
		clock:      c,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateConsultantRequest) (domain.Consultant, error) {
	identityID := strings.TrimSpace(req.IdentityID)
	if identityID == "" {
		return domain.Consultant{}, domain.ErrInvalidIdentityID
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return domain.Consultant{}, domain.ErrInvalidUsername
	}

	now := s.clock.Now().UTC()
	consultant := domain.Consultant{
		ID:             s.genID.Generate(),
		IdentityID:     identityID,
		ChatID:         strings.TrimSpace(req.ChatID),
		Username:       username,
		Email:          strings.TrimSpace(req.Email),
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		TeamConsultant: req.TeamConsultant,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, s.db, &consultant); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Consultant{}, domain.ErrAlreadyExists
		}
		return domain.Consultant{}, err
	}
	return consultant, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Consultant, error) {
	return s.withAgencies(ctx)(s.repo.FindByID(ctx, s.db, id))
}

func (s *Service) GetByChatID(ctx context.Context, chatID string) (domain.Consultant, error) {
	return s.withAgencies(ctx)(s.repo.FindByChatID(ctx, s.db, strings.TrimSpace(chatID)))
}

func (s *Service) GetByIdentityID(ctx context.Context, identityID string) (domain.Consultant, error) {
	return s.withAgencies(ctx)(s.repo.FindByIdentityID(ctx, s.db, strings.TrimSpace(identityID)))
}

func (s *Service) withAgencies(ctx context.Context) func(*domain.Consultant, error) (domain.Consultant, error) {
	return func(c *domain.Consultant, err error) (domain.Consultant, error) {
		if err != nil {
			return domain.Consultant{}, err
		}
		if c == nil {
			return domain.Consultant{}, domain.ErrNotFound
		}
		rels, err := s.repo.ListAgencies(ctx, s.db, c.ID)
		if err != nil {
			return domain.Consultant{}, err
		}
		c.Agencies = rels
		return *c, nil
	}
}

func (s *Service) ListByAgency(ctx context.Context, agencyID snowflake.ID) ([]domain.Consultant, error) {
	consultants, err := s.repo.ListByAgency(ctx, s.db, agencyID)
	if err != nil {
		return nil, err
	}
	for i := range consultants {
		rels, err := s.repo.ListAgencies(ctx, s.db, consultants[i].ID)
		if err != nil {
			return nil, err
		}
		consultants[i].Agencies = rels
	}
	return consultants, nil
}

func (s *Service) AddAgency(ctx context.Context, consultantID, agencyID snowflake.ID) error {
	consultant, err := s.GetByID(ctx, consultantID)
	if err != nil {
		return err
	}
	if consultant.ServesAgency(agencyID) {
		return domain.ErrAgencyRelationExists
	}
	agency, err := s.agencySvc.GetByID(ctx, agencyID)
	if err != nil {
		return err
	}

	batch, err := s.agencyGroups(ctx, consultant, agency.ID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rel := domain.ConsultantAgency{
			ID:             s.genID.Generate(),
			ConsultantID:   consultant.ID,
			AgencyID:       agency.ID,
			ConsultingType: agency.ConsultingType,
			CreatedAt:      s.clock.Now().UTC(),
		}
		if err := s.repo.InsertAgency(ctx, tx, &rel); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrAgencyRelationExists
			}
			return err
		}

		if !consultant.HasChatID() {
			s.log.Info("consultant has no chat id yet, skipping group membership",
				zap.String("consultant_id", consultant.ID.String()),
				zap.String("agency_id", agency.ID.String()),
			)
			return nil
		}
		return s.membership.Add(ctx, batch)
	})
}

func (s *Service) RemoveAgency(ctx context.Context, consultantID, agencyID snowflake.ID) error {
	consultant, err := s.GetByID(ctx, consultantID)
	if err != nil {
		return err
	}
	if !consultant.ServesAgency(agencyID) {
		return domain.ErrAgencyRelationAbsent
	}

	var removed []groupmembership.SessionConsultants
	if consultant.HasChatID() {
		batch, err := s.agencyGroups(ctx, consultant, agencyID)
		if err != nil {
			return err
		}
		removed, err = s.membership.Remove(ctx, batch)
		if err != nil {
			return err
		}
	}

	n, err := s.repo.DeleteAgency(ctx, s.db, consultant.ID, agencyID)
	if err == nil && n == 0 {
		err = domain.ErrAgencyRelationAbsent
	}
	if err != nil {
		s.restoreMemberships(ctx, consultant, agencyID, removed)
		return err
	}
	return nil
}

// restoreMemberships re-adds the memberships a RemoveAgency call took away.
func (s *Service) restoreMemberships(ctx context.Context, consultant domain.Consultant, agencyID snowflake.ID, removed []groupmembership.SessionConsultants) {
	if len(removed) == 0 {
		return
	}
	if err := s.membership.Add(ctx, removed); err != nil {
		s.log.Error("restoring group membership after failed relation delete",
			zap.String("consultant_id", consultant.ID.String()),
			zap.String("agency_id", agencyID.String()),
			zap.Int("sessions", len(removed)),
			zap.Error(err),
		)
	}
}

// agencyGroups lists the sessions of an agency whose groups the consultant
// belongs in: open enquiries, and running team sessions for team consultants.
func (s *Service) agencyGroups(ctx context.Context, consultant domain.Consultant, agencyID snowflake.ID) ([]groupmembership.SessionConsultants, error) {
	ids := []snowflake.ID{agencyID}

	sessions, err := s.sessionSvc.ListEnquiriesForAgencies(ctx, ids, "")
	if err != nil {
		return nil, err
	}
	if consultant.TeamConsultant {
		team, err := s.sessionSvc.ListTeamSessionsForAgencies(ctx, ids)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, team...)
	}

	batch := make([]groupmembership.SessionConsultants, 0, len(sessions))
	for _, session := range sessions {
		if session.GroupID == "" {
			continue
		}
		batch = append(batch, groupmembership.SessionConsultants{
			Session:     session,
			Consultants: []domain.Consultant{consultant},
		})
	}
	return batch, nil
}

