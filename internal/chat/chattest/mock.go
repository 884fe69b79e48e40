// Package chattest provides a testify mock of the chat client.
package chattest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/smallbiznis/counseling/internal/chat/domain"
)

type Client struct {
	mock.Mock
}

var _ domain.Client = (*Client)(nil)

func (m *Client) CreatePrivateGroup(ctx context.Context, name string, creds domain.Credentials) (domain.GroupRef, error) {
	args := m.Called(ctx, name, creds)
	return args.Get(0).(domain.GroupRef), args.Error(1)
}

func (m *Client) DeleteGroup(ctx context.Context, groupID string, creds domain.Credentials) (bool, error) {
	args := m.Called(ctx, groupID, creds)
	return args.Bool(0), args.Error(1)
}

func (m *Client) AddMember(ctx context.Context, chatUserID, groupID string) error {
	return m.Called(ctx, chatUserID, groupID).Error(0)
}

func (m *Client) RemoveMember(ctx context.Context, chatUserID, groupID string) error {
	return m.Called(ctx, chatUserID, groupID).Error(0)
}

func (m *Client) ListMembers(ctx context.Context, groupID string) ([]domain.Member, error) {
	args := m.Called(ctx, groupID)
	members, _ := args.Get(0).([]domain.Member)
	return members, args.Error(1)
}

func (m *Client) PostMessage(ctx context.Context, groupID string, creds domain.Credentials, body string) error {
	return m.Called(ctx, groupID, creds, body).Error(0)
}

func (m *Client) GetUserInfo(ctx context.Context, chatUserID string) (domain.UserInfo, error) {
	args := m.Called(ctx, chatUserID)
	return args.Get(0).(domain.UserInfo), args.Error(1)
}
