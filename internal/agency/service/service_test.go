package service_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/counseling/internal/agency/domain"
	"github.com/smallbiznis/counseling/internal/agency/repository"
	"github.com/smallbiznis/counseling/internal/agency/service"
)

func TestCreateAndGet(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:agency_service?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Agency{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := service.New(service.Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: repository.Provide()})

	ctx := context.Background()
	_, err = svc.Create(ctx, domain.CreateAgencyRequest{Name: "Caritas Freiburg", Postcode: "7909"})
	assert.ErrorIs(t, err, domain.ErrInvalidPostcode)

	created, err := svc.Create(ctx, domain.CreateAgencyRequest{Name: "Caritas Freiburg", Postcode: "79098", TeamAgency: true})
	require.NoError(t, err)

	loaded, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, loaded.TeamAgency)
	assert.Equal(t, "79098", loaded.Postcode)

	_, err = svc.GetByID(ctx, snowflake.ID(12345))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
