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
	"github.com/smallbiznis/counseling/internal/session/domain"
	"github.com/smallbiznis/counseling/internal/session/repository"
	"github.com/smallbiznis/counseling/internal/session/service"
)

func newService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Session{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	return service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clk,
	}), clk
}

func initialize(t *testing.T, svc domain.Service, agencyID snowflake.ID, status domain.Status, team bool) domain.Session {
	t.Helper()
	s, err := svc.Initialize(context.Background(), domain.InitializeRequest{
		UserID:           snowflake.ID(7),
		ConsultingType:   0,
		AgencyID:         agencyID,
		Postcode:         "79098",
		RegistrationType: domain.RegistrationRegistered,
		Status:           status,
		TeamSession:      team,
	})
	require.NoError(t, err)
	return s
}

func TestInitializeValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     domain.InitializeRequest
		wantErr error
	}{
		{name: "no user", req: domain.InitializeRequest{AgencyID: 1, Status: domain.StatusInitial, RegistrationType: domain.RegistrationRegistered}, wantErr: domain.ErrInvalidUser},
		{name: "no agency", req: domain.InitializeRequest{UserID: 1, Status: domain.StatusInitial, RegistrationType: domain.RegistrationRegistered}, wantErr: domain.ErrInvalidAgency},
		{name: "in progress without consultant", req: domain.InitializeRequest{UserID: 1, AgencyID: 1, Status: domain.StatusInProgress, RegistrationType: domain.RegistrationRegistered}, wantErr: domain.ErrConsultantRequired},
		{name: "bad registration type", req: domain.InitializeRequest{UserID: 1, AgencyID: 1, Status: domain.StatusNew, RegistrationType: "GUEST"}, wantErr: domain.ErrInvalidRegistrationType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Initialize(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMarkEnquiryOnlyOnce(t *testing.T) {
	svc, clk := newService(t)
	ctx := context.Background()
	s := initialize(t, svc, 15, domain.StatusInitial, false)

	marked, err := svc.MarkEnquiry(ctx, domain.MarkEnquiryRequest{SessionID: s.ID, GroupID: "grp-1", FeedbackGroupID: "fb-1"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNew, marked.Status)
	require.NotNil(t, marked.EnquiryMessageAt)
	assert.True(t, marked.EnquiryMessageAt.Equal(clk.Now()))

	_, err = svc.MarkEnquiry(ctx, domain.MarkEnquiryRequest{SessionID: s.ID, GroupID: "grp-2"})
	assert.ErrorIs(t, err, domain.ErrEnquiryAlreadyWritten)

	byGroup, err := svc.FindByGroupID(ctx, "grp-1")
	require.NoError(t, err)
	assert.Equal(t, s.ID, byGroup.ID)

	byFeedback, err := svc.FindByFeedbackGroupID(ctx, "fb-1")
	require.NoError(t, err)
	assert.Equal(t, s.ID, byFeedback.ID)
}

func TestUpdateConsultantAndStatus(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	s := initialize(t, svc, 15, domain.StatusNew, false)

	assert.ErrorIs(t, svc.UpdateConsultantAndStatus(ctx, s.ID, nil, domain.StatusInProgress), domain.ErrConsultantRequired)

	consultant := snowflake.ID(99)
	require.NoError(t, svc.UpdateConsultantAndStatus(ctx, s.ID, &consultant, domain.StatusInProgress))

	loaded, err := svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, loaded.AssignedTo(consultant))
	assert.Equal(t, domain.StatusInProgress, loaded.Status)

	mine, err := svc.ListByConsultantAndStatus(ctx, consultant, domain.StatusInProgress)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestListingsForAgencies(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	open := initialize(t, svc, 15, domain.StatusInitial, false)
	_, err := svc.MarkEnquiry(ctx, domain.MarkEnquiryRequest{SessionID: open.ID, GroupID: "grp-open"})
	require.NoError(t, err)

	team := initialize(t, svc, 15, domain.StatusNew, true)
	consultant := snowflake.ID(5)
	require.NoError(t, svc.UpdateConsultantAndStatus(ctx, team.ID, &consultant, domain.StatusInProgress))

	initialize(t, svc, 16, domain.StatusNew, false)

	enquiries, err := svc.ListEnquiriesForAgencies(ctx, []snowflake.ID{15}, "")
	require.NoError(t, err)
	require.Len(t, enquiries, 1)
	assert.Equal(t, open.ID, enquiries[0].ID)

	teamSessions, err := svc.ListTeamSessionsForAgencies(ctx, []snowflake.ID{15, 16})
	require.NoError(t, err)
	require.Len(t, teamSessions, 1)
	assert.Equal(t, team.ID, teamSessions[0].ID)

	none, err := svc.ListEnquiriesForAgencies(ctx, nil, "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	s := initialize(t, svc, 15, domain.StatusInitial, false)

	require.NoError(t, svc.Delete(ctx, s.ID))
	assert.ErrorIs(t, svc.Delete(ctx, s.ID), domain.ErrNotFound)
	_, err := svc.Get(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPermissions(t *testing.T) {
	consultant := snowflake.ID(3)
	s := domain.Session{UserID: 7, AgencyID: 15, TeamSession: true}

	assert.True(t, domain.UserOwnsSession(7, s))
	assert.False(t, domain.UserOwnsSession(8, s))
	assert.True(t, domain.ConsultantCanAccess(consultant, []snowflake.ID{15}, s))
	assert.False(t, domain.ConsultantCanAccess(consultant, []snowflake.ID{16}, s))

	s.TeamSession = false
	s.ConsultantID = &consultant
	assert.True(t, domain.ConsultantCanAccess(consultant, nil, s))
	assert.False(t, domain.ConsultantCanAccess(snowflake.ID(4), []snowflake.ID{15}, s))
}
