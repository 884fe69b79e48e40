package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateUserRequest struct {
	IdentityID     string
	Username       string
	Email          string
	LanguageFormal bool
}

type Service interface {
	Create(context.Context, CreateUserRequest) (User, error)
	GetByID(context.Context, snowflake.ID) (User, error)
	GetByIdentityID(context.Context, string) (User, error)
	GetByChatID(context.Context, string) (User, error)
	SetChatID(ctx context.Context, id snowflake.ID, chatID string) error
	Delete(context.Context, snowflake.ID) error
}

var (
	ErrInvalidUsername   = errors.New("invalid_username")
	ErrInvalidIdentityID = errors.New("invalid_identity_id")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrInvalidChatID     = errors.New("invalid_chat_id")
	ErrNotFound          = errors.New("user_not_found")
	ErrAlreadyExists     = errors.New("user_already_exists")
)
