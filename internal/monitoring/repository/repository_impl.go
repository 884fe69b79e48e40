package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/smallbiznis/counseling/internal/monitoring/domain"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertBatch(ctx context.Context, db *gorm.DB, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&entries).Error
}

func (r *repo) ListBySession(ctx context.Context, db *gorm.DB, sessionID snowflake.ID) ([]domain.Entry, error) {
	var out []domain.Entry
	err := db.WithContext(ctx).Raw(
		`SELECT id, session_id, monitoring_key, value, created_at
		 FROM session_monitoring WHERE session_id = ? ORDER BY id`,
		sessionID,
	).Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) DeleteBySession(ctx context.Context, db *gorm.DB, sessionID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM session_monitoring WHERE session_id = ?`, sessionID)
	return res.RowsAffected, res.Error
}
