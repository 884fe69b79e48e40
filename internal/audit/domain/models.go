package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem     ActorType = "system"
	ActorTypeUser       ActorType = "user"
	ActorTypeConsultant ActorType = "consultant"
)

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  string            `gorm:"not null" json:"actor_type"`
	ActorID    *string           `json:"actor_id,omitempty"`
	Action     string            `gorm:"not null;index" json:"action"`
	TargetType string            `gorm:"not null" json:"target_type"`
	TargetID   *string           `gorm:"index" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:json;not null" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

// Target systems of a DeletionWorkflowError.
const (
	TargetIdentity = "IDENTITY"
	TargetDatabase = "DATABASE"
	TargetChat     = "CHAT"
)

// DeletionWorkflowError records a compensation step that could not be
// completed. Such errors are collected and persisted, never raised.
type DeletionWorkflowError struct {
	SourceType string    `json:"source_type"`
	TargetType string    `json:"target_type"`
	Identifier string    `json:"identifier"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	Limit      int
}
