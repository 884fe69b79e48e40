package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/counseling/internal/clock"
	"github.com/smallbiznis/counseling/internal/user/domain"
	"github.com/smallbiznis/counseling/internal/user/repository"
	"github.com/smallbiznis/counseling/internal/user/service"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}))
	return db
}

func newService(t *testing.T) domain.Service {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return service.New(service.Params{
		DB:    setupTestDB(t),
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)),
	})
}

func TestCreateStoresEncodedUsername(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	user, err := svc.Create(ctx, domain.CreateUserRequest{
		IdentityID: "kc-1",
		Username:   "max94",
		Email:      "kc-1@dummy.example",
	})
	require.NoError(t, err)
	assert.Equal(t, "enc.NVQXQOJU", user.Username)
	assert.Nil(t, user.ChatID)

	loaded, err := svc.GetByIdentityID(ctx, "kc-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loaded.ID)
	assert.Equal(t, "kc-1@dummy.example", loaded.Email)
}

func TestCreateValidation(t *testing.T) {
	svc := newService(t)

	tests := []struct {
		name    string
		req     domain.CreateUserRequest
		wantErr error
	}{
		{name: "missing identity", req: domain.CreateUserRequest{Username: "max94", Email: "a@b.de"}, wantErr: domain.ErrInvalidIdentityID},
		{name: "short username", req: domain.CreateUserRequest{IdentityID: "x", Username: "max", Email: "a@b.de"}, wantErr: domain.ErrInvalidUsername},
		{name: "bad email", req: domain.CreateUserRequest{IdentityID: "x", Username: "max94", Email: "nope"}, wantErr: domain.ErrInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateDuplicateIdentity(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.Create(ctx, domain.CreateUserRequest{IdentityID: "kc-1", Username: "max94", Email: "a@b.de"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.CreateUserRequest{IdentityID: "kc-1", Username: "other1", Email: "a@b.de"})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestSetChatIDAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	user, err := svc.Create(ctx, domain.CreateUserRequest{IdentityID: "kc-2", Username: "anna88", Email: "a@b.de"})
	require.NoError(t, err)

	require.NoError(t, svc.SetChatID(ctx, user.ID, "rc-anna"))
	byChat, err := svc.GetByChatID(ctx, "rc-anna")
	require.NoError(t, err)
	assert.True(t, byChat.HasChatID())

	require.NoError(t, svc.Delete(ctx, user.ID))
	_, err = svc.GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, user.ID), domain.ErrNotFound)
}
