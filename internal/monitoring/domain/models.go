package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Entry is one monitoring topic tracked for a session.
type Entry struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	SessionID snowflake.ID      `gorm:"not null;uniqueIndex:ux_session_monitoring_key" json:"session_id"`
	Key       string            `gorm:"column:monitoring_key;not null;uniqueIndex:ux_session_monitoring_key" json:"key"`
	Value     datatypes.JSONMap `gorm:"type:json;not null" json:"value"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Entry) TableName() string { return "session_monitoring" }
