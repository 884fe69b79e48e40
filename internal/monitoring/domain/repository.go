package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertBatch(ctx context.Context, db *gorm.DB, entries []Entry) error
	ListBySession(ctx context.Context, db *gorm.DB, sessionID snowflake.ID) ([]Entry, error)
	DeleteBySession(ctx context.Context, db *gorm.DB, sessionID snowflake.ID) (int64, error)
}
