package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	AgencyIDs        []snowflake.ID
	Status           Status
	Unassigned       bool
	TeamSession      *bool
	RegistrationType RegistrationType
	ConsultantID     *snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, session *Session) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Session, error)
	FindByGroupID(ctx context.Context, db *gorm.DB, groupID string) (*Session, error)
	FindByFeedbackGroupID(ctx context.Context, db *gorm.DB, groupID string) (*Session, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Session, error)
	UpdateConsultantAndStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, consultantID *snowflake.ID, status Status, now time.Time) error
	MarkEnquiry(ctx context.Context, db *gorm.DB, id snowflake.ID, groupID, feedbackGroupID string, at time.Time) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
