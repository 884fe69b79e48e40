package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/counseling/internal/clock"
	"github.com/smallbiznis/counseling/internal/user/domain"
	"github.com/smallbiznis/counseling/pkg/db"
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
		log:   p.Log.Named("user.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: c,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateUserRequest) (domain.User, error) {
	identityID := strings.TrimSpace(req.IdentityID)
	if identityID == "" {
		return domain.User{}, domain.ErrInvalidIdentityID
	}
	if err := domain.ValidateUsername(req.Username); err != nil {
		return domain.User{}, err
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, domain.ErrInvalidEmail
	}

	now := s.clock.Now().UTC()
	user := domain.User{
		ID:             s.genID.Generate(),
		IdentityID:     identityID,
		Username:       domain.Encode(req.Username),
		Email:          email,
		LanguageFormal: req.LanguageFormal,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.User{}, domain.ErrAlreadyExists
		}
		return domain.User{}, err
	}

	s.log.Debug("user created", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.User, error) {
	return s.found(s.repo.FindByID(ctx, s.db, id))
}

func (s *Service) GetByIdentityID(ctx context.Context, identityID string) (domain.User, error) {
	return s.found(s.repo.FindByIdentityID(ctx, s.db, identityID))
}

func (s *Service) GetByChatID(ctx context.Context, chatID string) (domain.User, error) {
	return s.found(s.repo.FindByChatID(ctx, s.db, chatID))
}

func (s *Service) found(user *domain.User, err error) (domain.User, error) {
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *user, nil
}

func (s *Service) SetChatID(ctx context.Context, id snowflake.ID, chatID string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return domain.ErrInvalidChatID
	}
	return s.repo.UpdateChatID(ctx, s.db, id, chatID)
}

// Delete removes the user row. Deleting a missing row reports ErrNotFound.
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
