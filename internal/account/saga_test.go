package account

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	agencydomain "github.com/smallbiznis/counseling/internal/agency/domain"
	agencyrepository "github.com/smallbiznis/counseling/internal/agency/repository"
	agencyservice "github.com/smallbiznis/counseling/internal/agency/service"
	"github.com/smallbiznis/counseling/internal/apperror"
	auditdomain "github.com/smallbiznis/counseling/internal/audit/domain"
	"github.com/smallbiznis/counseling/internal/clock"
	"github.com/smallbiznis/counseling/internal/config"
	"github.com/smallbiznis/counseling/internal/consultingtype"
	identitydomain "github.com/smallbiznis/counseling/internal/identity/domain"
	"github.com/smallbiznis/counseling/internal/identity/identitytest"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
	sessionrepository "github.com/smallbiznis/counseling/internal/session/repository"
	sessionservice "github.com/smallbiznis/counseling/internal/session/service"
	userdomain "github.com/smallbiznis/counseling/internal/user/domain"
	userrepository "github.com/smallbiznis/counseling/internal/user/repository"
	userservice "github.com/smallbiznis/counseling/internal/user/service"
)

type recordingAudit struct {
	auditdomain.Service
	failures []auditdomain.DeletionWorkflowError
}

func (r *recordingAudit) RecordWorkflowErrors(_ context.Context, errs []auditdomain.DeletionWorkflowError) int {
	r.failures = append(r.failures, errs...)
	return len(errs)
}

type failingUsers struct {
	userdomain.Service
}

func (failingUsers) Create(context.Context, userdomain.CreateUserRequest) (userdomain.User, error) {
	return userdomain.User{}, errors.New("insert failed")
}

type failingSessions struct {
	sessiondomain.Service
}

func (failingSessions) Initialize(context.Context, sessiondomain.InitializeRequest) (sessiondomain.Session, error) {
	return sessiondomain.Session{}, errors.New("insert failed")
}

type fixture struct {
	db       *gorm.DB
	identity *identitytest.Client
	users    userdomain.Service
	sessions sessiondomain.Service
	agencies agencydomain.Service
	audit    *recordingAudit
	clock    *clock.FakeClock
}

const agencyID = snowflake.ID(15)

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&userdomain.User{}, &sessiondomain.Session{}, &agencydomain.Agency{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	agencyRepo := agencyrepository.Provide()
	require.NoError(t, agencyRepo.Insert(context.Background(), db, &agencydomain.Agency{
		ID:             agencyID,
		Name:           "Suchtberatung Freiburg",
		Postcode:       "79098",
		ConsultingType: 0,
		CreatedAt:      clk.Now(),
		UpdatedAt:      clk.Now(),
	}))

	return &fixture{
		db:       db,
		identity: &identitytest.Client{},
		users:    userservice.New(userservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: userrepository.Provide(), Clock: clk}),
		sessions: sessionservice.New(sessionservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: sessionrepository.Provide(), Clock: clk}),
		agencies: agencyservice.New(agencyservice.Params{DB: db, Log: zap.NewNop(), GenID: node, Repo: agencyRepo}),
		audit:    &recordingAudit{},
		clock:    clk,
	}
}

func (f *fixture) service() *Service {
	rollback := NewRollbackCoordinator(RollbackParams{
		Log:        zap.NewNop(),
		Identity:   f.identity,
		UserSvc:    f.users,
		SessionSvc: f.sessions,
		Clock:      f.clock,
	})
	return New(Params{
		Config:          config.Config{DummyEmailSuffix: "@dummy.example"},
		Log:             zap.NewNop(),
		Identity:        f.identity,
		UserSvc:         f.users,
		SessionSvc:      f.sessions,
		AgencySvc:       f.agencies,
		ConsultingTypes: consultingtype.NewStatic(config.DefaultConsultingTypes()),
		Rollback:        rollback,
		AuditSvc:        f.audit,
	})
}

func (f *fixture) countRows(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Table(table).Count(&n).Error)
	return n
}

func validInput() RegistrationInput {
	return RegistrationInput{
		Username:       "max94",
		Password:       "s3cret!",
		Postcode:       "79098",
		AgencyID:       agencyID,
		ConsultingType: "0",
	}
}

func (f *fixture) expectAccountCreated() {
	f.identity.On("FindByUsername", mock.Anything, userdomain.Encode("max94")).Return([]identitydomain.AccountRef(nil), nil).Once()
	f.identity.On("CreateAccount", mock.Anything, identitydomain.Profile{
		Username: userdomain.Encode("max94"),
		Locale:   "de",
	}).Return(identitydomain.AccountRef{ID: "kc-1", Username: userdomain.Encode("max94")}, nil).Once()
}

func TestCreateAccount_WithoutEmail(t *testing.T) {
	f := setup(t)
	f.expectAccountCreated()
	f.identity.On("AssignRole", mock.Anything, "kc-1", identitydomain.RoleUser).Return(nil).Once()
	f.identity.On("SetPassword", mock.Anything, "kc-1", "s3cret!").Return(nil).Once()
	f.identity.On("SetEmail", mock.Anything, "kc-1", "kc-1@dummy.example").Return(nil).Once()

	acc, err := f.service().CreateAccount(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, "kc-1", acc.IdentityID)
	assert.Equal(t, "kc-1@dummy.example", acc.User.Email)
	assert.Equal(t, userdomain.Encode("max94"), acc.User.Username)
	assert.Equal(t, sessiondomain.StatusInitial, acc.Session.Status)
	assert.Equal(t, sessiondomain.RegistrationRegistered, acc.Session.RegistrationType)
	assert.Equal(t, int(consultingtype.Addiction), acc.Session.ConsultingType)
	assert.Equal(t, agencyID, acc.Session.AgencyID)
	assert.Equal(t, "79098", acc.Session.Postcode)
	assert.True(t, acc.Session.Monitoring)

	stored, err := f.users.GetByIdentityID(context.Background(), "kc-1")
	require.NoError(t, err)
	assert.Equal(t, acc.User.ID, stored.ID)
	assert.EqualValues(t, 1, f.countRows(t, "sessions"))
	f.identity.AssertExpectations(t)
}

func TestCreateAccount_AnonymousPath(t *testing.T) {
	f := setup(t)
	f.identity.On("FindByUsername", mock.Anything, mock.Anything).Return([]identitydomain.AccountRef(nil), nil).Once()
	f.identity.On("CreateAccount", mock.Anything, mock.Anything).Return(identitydomain.AccountRef{ID: "kc-anon"}, nil).Once()
	f.identity.On("AssignRole", mock.Anything, "kc-anon", identitydomain.RoleAnonymous).Return(nil).Once()
	f.identity.On("SetPassword", mock.Anything, "kc-anon", mock.Anything).Return(nil).Once()
	f.identity.On("SetEmail", mock.Anything, "kc-anon", "kc-anon@dummy.example").Return(nil).Once()

	acc, err := f.service().CreateAccount(context.Background(), RegistrationInput{
		Postcode:       "79098",
		AgencyID:       agencyID,
		ConsultingType: "0",
		Anonymous:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, sessiondomain.StatusNew, acc.Session.Status)
	assert.Equal(t, sessiondomain.RegistrationAnonymous, acc.Session.RegistrationType)
	f.identity.AssertNotCalled(t, "AssignRole", mock.Anything, mock.Anything, identitydomain.RoleUser)
}

func TestCreateAccount_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegistrationInput)
		reason string
	}{
		{name: "short username", mutate: func(in *RegistrationInput) { in.Username = "max" }, reason: "invalid_username"},
		{name: "no password", mutate: func(in *RegistrationInput) { in.Password = "" }, reason: "invalid_password"},
		{name: "bad postcode", mutate: func(in *RegistrationInput) { in.Postcode = "7909" }, reason: "invalid_postcode"},
		{name: "unknown consulting type", mutate: func(in *RegistrationInput) { in.ConsultingType = "42" }, reason: "invalid_consulting_type"},
		{name: "unknown agency", mutate: func(in *RegistrationInput) { in.AgencyID = 99 }, reason: "invalid_agency"},
		{name: "agency of other consulting type", mutate: func(in *RegistrationInput) { in.ConsultingType = "3" }, reason: "invalid_agency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			in := validInput()
			tt.mutate(&in)

			_, err := f.service().CreateAccount(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
			assert.Equal(t, tt.reason, apperror.ReasonOf(err))
			f.identity.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
		})
	}
}

func TestValidateAge(t *testing.T) {
	rules := consultingtype.Registration{MinAge: 14, MaxAge: 25, RequireAge: true}
	assert.NoError(t, validateAge(rules, "17"))
	assert.Error(t, validateAge(rules, ""))
	assert.Error(t, validateAge(rules, "13"))
	assert.Error(t, validateAge(rules, "26"))
	assert.Error(t, validateAge(rules, "abc"))
	assert.NoError(t, validateAge(consultingtype.Registration{}, ""))
}

func TestCreateAccount_UsernameTaken(t *testing.T) {
	f := setup(t)
	f.identity.On("FindByUsername", mock.Anything, userdomain.Encode("max94")).
		Return([]identitydomain.AccountRef{{ID: "kc-other", Username: "enc.nvqxqoju"}}, nil).Once()

	_, err := f.service().CreateAccount(context.Background(), validInput())
	assert.ErrorIs(t, err, apperror.ErrUsernameConflict)
	f.identity.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
	f.identity.AssertNotCalled(t, "DeleteAccount", mock.Anything, mock.Anything)
}

func TestCreateAccount_ProviderConflict(t *testing.T) {
	tests := []struct {
		name     string
		conflict *identitydomain.ConflictError
		want     error
	}{
		{name: "email taken", conflict: &identitydomain.ConflictError{UsernameAvailable: true}, want: apperror.ErrEmailConflict},
		{name: "username taken", conflict: &identitydomain.ConflictError{EmailAvailable: true}, want: apperror.ErrUsernameConflict},
		{name: "both taken", conflict: &identitydomain.ConflictError{}, want: apperror.ErrUsernameConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			f.identity.On("FindByUsername", mock.Anything, mock.Anything).Return([]identitydomain.AccountRef(nil), nil).Once()
			f.identity.On("CreateAccount", mock.Anything, mock.Anything).
				Return(identitydomain.AccountRef{}, fmt.Errorf("create: %w", tt.conflict)).Once()

			_, err := f.service().CreateAccount(context.Background(), validInput())
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
			f.identity.AssertNotCalled(t, "DeleteAccount", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateAccount_ProviderFailureIsInternal(t *testing.T) {
	f := setup(t)
	f.identity.On("FindByUsername", mock.Anything, mock.Anything).Return([]identitydomain.AccountRef(nil), nil).Once()
	f.identity.On("CreateAccount", mock.Anything, mock.Anything).
		Return(identitydomain.AccountRef{}, identitydomain.ErrProviderFailure).Once()

	_, err := f.service().CreateAccount(context.Background(), validInput())
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	f.identity.AssertNotCalled(t, "DeleteAccount", mock.Anything, mock.Anything)
}

// Every failure after the identity account exists leaves neither the
// account nor any local row behind.
func TestCreateAccount_RollsBackEveryStep(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{
			name: "assign role",
			setup: func(f *fixture) {
				f.identity.On("AssignRole", mock.Anything, "kc-1", identitydomain.RoleUser).Return(boom).Once()
			},
		},
		{
			name: "set password",
			setup: func(f *fixture) {
				f.identity.On("AssignRole", mock.Anything, "kc-1", mock.Anything).Return(nil).Once()
				f.identity.On("SetPassword", mock.Anything, "kc-1", mock.Anything).Return(boom).Once()
			},
		},
		{
			name: "set dummy email",
			setup: func(f *fixture) {
				f.identity.On("AssignRole", mock.Anything, "kc-1", mock.Anything).Return(nil).Once()
				f.identity.On("SetPassword", mock.Anything, "kc-1", mock.Anything).Return(nil).Once()
				f.identity.On("SetEmail", mock.Anything, "kc-1", mock.Anything).Return(boom).Once()
			},
		},
		{
			name: "create user",
			setup: func(f *fixture) {
				f.identity.On("AssignRole", mock.Anything, "kc-1", mock.Anything).Return(nil).Once()
				f.identity.On("SetPassword", mock.Anything, "kc-1", mock.Anything).Return(nil).Once()
				f.identity.On("SetEmail", mock.Anything, "kc-1", mock.Anything).Return(nil).Once()
				f.users = failingUsers{Service: f.users}
			},
		},
		{
			name: "initialize session",
			setup: func(f *fixture) {
				f.identity.On("AssignRole", mock.Anything, "kc-1", mock.Anything).Return(nil).Once()
				f.identity.On("SetPassword", mock.Anything, "kc-1", mock.Anything).Return(nil).Once()
				f.identity.On("SetEmail", mock.Anything, "kc-1", mock.Anything).Return(nil).Once()
				f.sessions = failingSessions{Service: f.sessions}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			f.expectAccountCreated()
			f.identity.On("DeleteAccount", mock.Anything, "kc-1").Return(nil).Once()
			tt.setup(f)

			_, err := f.service().CreateAccount(context.Background(), validInput())
			require.Error(t, err)
			assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))

			f.identity.AssertCalled(t, "DeleteAccount", mock.Anything, "kc-1")
			assert.Zero(t, f.countRows(t, "users"))
			assert.Zero(t, f.countRows(t, "sessions"))
			assert.Empty(t, f.audit.failures)
		})
	}
}

func TestCreateAccount_RollbackFailureKeepsPrimaryError(t *testing.T) {
	f := setup(t)
	f.expectAccountCreated()
	f.identity.On("AssignRole", mock.Anything, "kc-1", mock.Anything).Return(errors.New("role service down")).Once()
	f.identity.On("DeleteAccount", mock.Anything, "kc-1").Return(errors.New("delete refused")).Once()

	_, err := f.service().CreateAccount(context.Background(), validInput())
	require.Error(t, err)

	var secondary *apperror.SecondaryError
	assert.False(t, errors.As(err, &secondary))
	assert.Contains(t, err.Error(), "could not assign role")

	require.Len(t, f.audit.failures, 1)
	assert.Equal(t, auditdomain.TargetIdentity, f.audit.failures[0].TargetType)
	assert.Equal(t, "kc-1", f.audit.failures[0].Identifier)
	assert.Equal(t, "ASKER", f.audit.failures[0].SourceType)
}
