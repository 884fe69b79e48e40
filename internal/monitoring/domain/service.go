package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// CreateInitialMonitoring inserts one entry per template key.
	CreateInitialMonitoring(ctx context.Context, sessionID snowflake.ID, template []string) ([]Entry, error)
	DeleteInitialMonitoring(ctx context.Context, sessionID snowflake.ID) error
	List(ctx context.Context, sessionID snowflake.ID) ([]Entry, error)
}

var (
	ErrInvalidSession  = errors.New("invalid_session")
	ErrEmptyTemplate   = errors.New("empty_monitoring_template")
	ErrDuplicateKey    = errors.New("duplicate_monitoring_key")
	ErrAlreadyExisting = errors.New("monitoring_already_initialized")
)
