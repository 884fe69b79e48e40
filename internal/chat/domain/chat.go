package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/gosimple/slug"
)

// Credentials identify the chat user a call acts as.
type Credentials struct {
	Token  string
	UserID string
}

func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.UserID) != ""
}

type GroupRef struct {
	ID   string
	Name string
}

type Member struct {
	ID       string
	Username string
}

type UserInfo struct {
	ID       string
	Username string
}

// Client is the chat backend as seen by the coordination services.
// Membership calls act as the technical user.
type Client interface {
	CreatePrivateGroup(ctx context.Context, name string, creds Credentials) (GroupRef, error)
	DeleteGroup(ctx context.Context, groupID string, creds Credentials) (bool, error)
	AddMember(ctx context.Context, chatUserID, groupID string) error
	RemoveMember(ctx context.Context, chatUserID, groupID string) error
	ListMembers(ctx context.Context, groupID string) ([]Member, error)
	PostMessage(ctx context.Context, groupID string, creds Credentials, body string) error
	GetUserInfo(ctx context.Context, chatUserID string) (UserInfo, error)
}

var (
	ErrInvalidCredentials = errors.New("invalid_chat_credentials")
	ErrGroupNotFound      = errors.New("chat_group_not_found")
	ErrChatFailure        = errors.New("chat_backend_failure")
	ErrEmptyGroupID       = errors.New("empty_group_id")
)

// GroupName derives the deterministic room name of a session group.
func GroupName(consultingTypeName, sessionID string) string {
	return slug.Make(consultingTypeName + " " + sessionID)
}

// FeedbackGroupName derives the room name of a session's feedback group.
func FeedbackGroupName(consultingTypeName, sessionID string) string {
	return slug.Make(consultingTypeName + " " + sessionID + " feedback")
}
