package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/smallbiznis/counseling/internal/monitoring/domain"
	"github.com/smallbiznis/counseling/pkg/db"
)

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
		log:   p.Log.Named("monitoring.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) CreateInitialMonitoring(ctx context.Context, sessionID snowflake.ID, template []string) ([]domain.Entry, error) {
	if sessionID == 0 {
		return nil, domain.ErrInvalidSession
	}
	if len(template) == 0 {
		return nil, domain.ErrEmptyTemplate
	}

	now := time.Now().UTC()
	seen := make(map[string]struct{}, len(template))
	entries := make([]domain.Entry, 0, len(template))
	for _, raw := range template {
		key := strings.TrimSpace(raw)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			return nil, domain.ErrDuplicateKey
		}
		seen[key] = struct{}{}
		entries = append(entries, domain.Entry{
			ID:        s.genID.Generate(),
			SessionID: sessionID,
			Key:       key,
			Value:     datatypes.JSONMap{"checked": false},
			CreatedAt: now,
		})
	}
	if len(entries) == 0 {
		return nil, domain.ErrEmptyTemplate
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.InsertBatch(ctx, tx, entries)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyExisting
		}
		return nil, err
	}

	s.log.Debug("monitoring initialized",
		zap.String("session_id", sessionID.String()),
		zap.Int("entries", len(entries)),
	)
	return entries, nil
}

// DeleteInitialMonitoring is idempotent.
func (s *Service) DeleteInitialMonitoring(ctx context.Context, sessionID snowflake.ID) error {
	n, err := s.repo.DeleteBySession(ctx, s.db, sessionID)
	if err != nil {
		return err
	}
	s.log.Debug("monitoring deleted", zap.String("session_id", sessionID.String()), zap.Int64("entries", n))
	return nil
}

func (s *Service) List(ctx context.Context, sessionID snowflake.ID) ([]domain.Entry, error) {
	return s.repo.ListBySession(ctx, s.db, sessionID)
}
