package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/counseling/internal/agency/domain"
)

var postcodePattern = regexp.MustCompile(`^[0-9]{5}$`)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("agency.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAgencyRequest) (domain.Agency, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Agency{}, domain.ErrInvalidName
	}
	if !postcodePattern.MatchString(req.Postcode) {
		return domain.Agency{}, domain.ErrInvalidPostcode
	}

	now := time.Now().UTC()
	agency := domain.Agency{
		ID:             s.genID.Generate(),
		Name:           name,
		Postcode:       req.Postcode,
		ConsultingType: req.ConsultingType,
		TeamAgency:     req.TeamAgency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, s.db, &agency); err != nil {
		return domain.Agency{}, err
	}
	return agency, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Agency, error) {
	agency, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Agency{}, err
	}
	if agency == nil {
		return domain.Agency{}, domain.ErrNotFound
	}
	return *agency, nil
}
