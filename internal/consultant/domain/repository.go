package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, consultant *Consultant) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Consultant, error)
	FindByChatID(ctx context.Context, db *gorm.DB, chatID string) (*Consultant, error)
	FindByIdentityID(ctx context.Context, db *gorm.DB, identityID string) (*Consultant, error)
	ListByAgency(ctx context.Context, db *gorm.DB, agencyID snowflake.ID) ([]Consultant, error)

	ListAgencies(ctx context.Context, db *gorm.DB, consultantID snowflake.ID) ([]ConsultantAgency, error)
	InsertAgency(ctx context.Context, db *gorm.DB, rel *ConsultantAgency) error
	DeleteAgency(ctx context.Context, db *gorm.DB, consultantID, agencyID snowflake.ID) (int64, error)
}
