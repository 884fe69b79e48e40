package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByIdentityID(ctx context.Context, db *gorm.DB, identityID string) (*User, error)
	FindByChatID(ctx context.Context, db *gorm.DB, chatID string) (*User, error)
	UpdateChatID(ctx context.Context, db *gorm.DB, id snowflake.ID, chatID string) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
