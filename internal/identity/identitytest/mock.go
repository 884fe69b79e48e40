// Package identitytest provides a testify mock of the identity client.
package identitytest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/smallbiznis/counseling/internal/identity/domain"
)

type Client struct {
	mock.Mock
}

var _ domain.Client = (*Client)(nil)

func (m *Client) CreateAccount(ctx context.Context, profile domain.Profile) (domain.AccountRef, error) {
	args := m.Called(ctx, profile)
	return args.Get(0).(domain.AccountRef), args.Error(1)
}

func (m *Client) AssignRole(ctx context.Context, accountID string, role domain.Role) error {
	return m.Called(ctx, accountID, role).Error(0)
}

func (m *Client) SetPassword(ctx context.Context, accountID, password string) error {
	return m.Called(ctx, accountID, password).Error(0)
}

func (m *Client) SetEmail(ctx context.Context, accountID, email string) error {
	return m.Called(ctx, accountID, email).Error(0)
}

func (m *Client) DeleteAccount(ctx context.Context, accountID string) error {
	return m.Called(ctx, accountID).Error(0)
}

func (m *Client) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *Client) FindByUsername(ctx context.Context, username string) ([]domain.AccountRef, error) {
	args := m.Called(ctx, username)
	refs, _ := args.Get(0).([]domain.AccountRef)
	return refs, args.Error(1)
}

func (m *Client) ListRoles(ctx context.Context, accountID string) ([]domain.Role, error) {
	args := m.Called(ctx, accountID)
	roles, _ := args.Get(0).([]domain.Role)
	return roles, args.Error(1)
}
