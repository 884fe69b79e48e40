package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	agencydomain "github.com/smallbiznis/counseling/internal/agency/domain"
	agencyrepository "github.com/smallbiznis/counseling/internal/agency/repository"
	agencyservice "github.com/smallbiznis/counseling/internal/agency/service"
	"github.com/smallbiznis/counseling/internal/apperror"
	"github.com/smallbiznis/counseling/internal/authorization"
	"github.com/smallbiznis/counseling/internal/clock"
	"github.com/smallbiznis/counseling/internal/config"
	consultantdomain "github.com/smallbiznis/counseling/internal/consultant/domain"
	consultantrepository "github.com/smallbiznis/counseling/internal/consultant/repository"
	consultantservice "github.com/smallbiznis/counseling/internal/consultant/service"
	"github.com/smallbiznis/counseling/internal/groupmembership"
	identitydomain "github.com/smallbiznis/counseling/internal/identity/domain"
	"github.com/smallbiznis/counseling/internal/identity/identitytest"
	"github.com/smallbiznis/counseling/internal/ratelimit"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
	sessionrepository "github.com/smallbiznis/counseling/internal/session/repository"
	sessionservice "github.com/smallbiznis/counseling/internal/session/service"
	userdomain "github.com/smallbiznis/counseling/internal/user/domain"
	userrepository "github.com/smallbiznis/counseling/internal/user/repository"
	userservice "github.com/smallbiznis/counseling/internal/user/service"
)

type noopMembership struct{}

func (noopMembership) Add(context.Context, []groupmembership.SessionConsultants) error { return nil }
func (noopMembership) Remove(_ context.Context, batch []groupmembership.SessionConsultants) ([]groupmembership.SessionConsultants, error) {
	return batch, nil
}

type testEnv struct {
	router      *gin.Engine
	agencies    agencydomain.Service
	sessions    sessiondomain.Service
	consultants consultantdomain.Service
	identity    *identitytest.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&userdomain.User{}, &sessiondomain.Session{}, &agencydomain.Agency{},
		&consultantdomain.Consultant{}, &consultantdomain.ConsultantAgency{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	agencies := agencyservice.New(agencyservice.Params{DB: db, Log: log, GenID: node, Repo: agencyrepository.Provide()})
	sessions := sessionservice.New(sessionservice.Params{DB: db, Log: log, GenID: node, Repo: sessionrepository.Provide(), Clock: clk})
	users := userservice.New(userservice.Params{DB: db, Log: log, GenID: node, Repo: userrepository.Provide(), Clock: clk})
	consultants := consultantservice.NewService(db, log, node, consultantrepository.Provide(), agencies, sessions, noopMembership{}, clk)

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	identity := &identitytest.Client{}
	authz := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer, Identity: identity})

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())
	srv := &Server{
		engine:        router,
		cfg:           config.Config{},
		log:           log,
		userSvc:       users,
		sessionSvc:    sessions,
		consultantSvc: consultants,
		identity:      identity,
		authz:         authz,
		registrations: ratelimit.NewRegistrationLimiter(nil, config.Config{}, log),
	}
	srv.registerUserRoutes()
	srv.registerConsultantRoutes()
	srv.registerAgencyRoutes()
	srv.registerFallback()

	return &testEnv{router: router, agencies: agencies, sessions: sessions, consultants: consultants, identity: identity}
}

func (e *testEnv) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	return out.Error
}

func TestMapError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", apperror.Validation("invalid_postcode", "postcode must have five digits"), http.StatusBadRequest, "validation_error"},
		{"username taken", apperror.ErrUsernameConflict, http.StatusConflict, "conflict"},
		{"email taken", apperror.ErrEmailConflict, http.StatusConflict, "conflict"},
		{"conflict", apperror.Conflict("session_in_progress", "busy"), http.StatusConflict, "conflict"},
		{"forbidden", apperror.Forbidden("agency_not_served", "no"), http.StatusForbidden, "forbidden"},
		{"not found", apperror.NotFound("session_not_found", "gone"), http.StatusNotFound, "not_found"},
		{"internal", apperror.Internal(errors.New("boom"), "chat failed"), http.StatusInternalServerError, "internal_error"},
		{"secondary", apperror.Secondary(apperror.Internal(errors.New("boom"), "x"), multierror.Append(nil, errors.New("rollback"))), http.StatusInternalServerError, "internal_error"},
		{"relation exists", consultantdomain.ErrAgencyRelationExists, http.StatusConflict, "conflict"},
		{"relation absent", consultantdomain.ErrAgencyRelationAbsent, http.StatusNotFound, "not_found"},
		{"domain validation", sessiondomain.ErrInvalidGroupID, http.StatusBadRequest, "validation_error"},
		{"record not found", gorm.ErrRecordNotFound, http.StatusNotFound, "not_found"},
		{"throttled", ErrTooManyRequests, http.StatusTooManyRequests, "too_many_requests"},
		{"unclassified", errors.New("socket closed"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, payload.Type)
		})
	}
}

func TestMapError_InternalHidesCause(t *testing.T) {
	_, payload := mapError(apperror.Internal(errors.New("password=hunter2"), "identity provider failed"))
	assert.Equal(t, "internal server error", payload.Message)
	assert.Empty(t, payload.Errors)
}

func TestClassifyErrorForLog(t *testing.T) {
	kind, code := classifyErrorForLog(apperror.Validation("invalid_age", "too young"))
	assert.Equal(t, "validation_error", kind)
	assert.Equal(t, "invalid_age", code)

	kind, _ = classifyErrorForLog(apperror.Secondary(errors.New("primary"), multierror.Append(nil, errors.New("rollback"))))
	assert.Equal(t, "rollback_failed", kind)
}

func TestCallerHeadersRequired(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/consultants/enquiries", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.do(http.MethodGet, "/consultants/enquiries", nil, map[string]string{HeaderConsultantID: "kc-unknown"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.do(http.MethodPost, "/users/sessions/1/enquiry/new", map[string]string{"message": "hi"}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestListEnquiries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	agency, err := env.agencies.Create(ctx, agencydomain.CreateAgencyRequest{Name: "Suchtberatung", Postcode: "79098", ConsultingType: 0})
	require.NoError(t, err)
	consultant, err := env.consultants.Create(ctx, consultantdomain.CreateConsultantRequest{IdentityID: "kc-anna", ChatID: "rc-anna", Username: "anna"})
	require.NoError(t, err)
	require.NoError(t, env.consultants.AddAgency(ctx, consultant.ID, agency.ID))

	s, err := env.sessions.Initialize(ctx, sessiondomain.InitializeRequest{
		UserID:           snowflake.ID(7),
		AgencyID:         agency.ID,
		Postcode:         "79098",
		RegistrationType: sessiondomain.RegistrationRegistered,
		Status:           sessiondomain.StatusInitial,
	})
	require.NoError(t, err)
	_, err = env.sessions.MarkEnquiry(ctx, sessiondomain.MarkEnquiryRequest{SessionID: s.ID, GroupID: "group-1"})
	require.NoError(t, err)

	env.identity.On("ListRoles", mock.Anything, "kc-anna").Return([]identitydomain.Role{identitydomain.RoleConsultant}, nil)

	headers := map[string]string{HeaderConsultantID: "kc-anna"}
	resp := env.do(http.MethodGet, "/consultants/enquiries", nil, headers)
	require.Equal(t, http.StatusOK, resp.Code)

	var out struct {
		Data []sessiondomain.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.Len(t, out.Data, 1)
	assert.Equal(t, s.ID, out.Data[0].ID)

	resp = env.do(http.MethodGet, "/consultants/enquiries?registration_type=anonymous", nil, headers)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.Empty(t, out.Data)

	resp = env.do(http.MethodGet, "/consultants/enquiries?registration_type=guest", nil, headers)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.do(http.MethodGet, "/consultants/team-sessions", nil, headers)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestAgencyRelationRoutes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	agency, err := env.agencies.Create(ctx, agencydomain.CreateAgencyRequest{Name: "Schwangerschaftsberatung", Postcode: "10115", ConsultingType: 2})
	require.NoError(t, err)
	consultant, err := env.consultants.Create(ctx, consultantdomain.CreateConsultantRequest{IdentityID: "kc-ben", ChatID: "rc-ben", Username: "ben"})
	require.NoError(t, err)

	env.identity.On("ListRoles", mock.Anything, "kc-admin").Return([]identitydomain.Role{identitydomain.RoleUserAdmin}, nil)
	admin := map[string]string{HeaderAdminID: "kc-admin"}
	path := fmt.Sprintf("/agencies/%s/consultants/%s", agency.ID, consultant.ID)

	resp := env.do(http.MethodPost, path, nil, admin)
	assert.Equal(t, http.StatusCreated, resp.Code)

	resp = env.do(http.MethodPost, path, nil, admin)
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, consultantdomain.ErrAgencyRelationExists.Error(), resp.Header().Get("X-Reason"))

	resp = env.do(http.MethodDelete, path, nil, admin)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = env.do(http.MethodDelete, path, nil, admin)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = env.do(http.MethodPost, "/agencies/abc/consultants/1", nil, admin)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	payload := decodeError(t, resp)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_agency", payload.Errors[0].Code)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(http.MethodGet, "/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAgencyRoutesRequireAgencyManagement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	agency, err := env.agencies.Create(ctx, agencydomain.CreateAgencyRequest{Name: "Elternberatung", Postcode: "20095", ConsultingType: 0})
	require.NoError(t, err)
	consultant, err := env.consultants.Create(ctx, consultantdomain.CreateConsultantRequest{IdentityID: "kc-carla", ChatID: "rc-carla", Username: "carla"})
	require.NoError(t, err)
	path := fmt.Sprintf("/agencies/%s/consultants/%s", agency.ID, consultant.ID)

	resp := env.do(http.MethodPost, path, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	env.identity.On("ListRoles", mock.Anything, "kc-carla").Return([]identitydomain.Role{identitydomain.RoleConsultant}, nil)
	resp = env.do(http.MethodPost, path, nil, map[string]string{HeaderAdminID: "kc-carla"})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do(http.MethodDelete, path, nil, map[string]string{HeaderAdminID: "kc-carla"})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	stored, err := env.consultants.GetByID(ctx, consultant.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.AgencyIDs())
}

func TestConsultantRoutesCheckRoles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.consultants.Create(ctx, consultantdomain.CreateConsultantRequest{IdentityID: "kc-dana", ChatID: "rc-dana", Username: "dana"})
	require.NoError(t, err)
	env.identity.On("ListRoles", mock.Anything, "kc-dana").Return([]identitydomain.Role{identitydomain.RoleUser}, nil)
	headers := map[string]string{HeaderConsultantID: "kc-dana"}

	resp := env.do(http.MethodPut, "/consultants/sessions/1/assign", map[string]string{"purpose": "accept"}, headers)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do(http.MethodPut, "/consultants/sessions/1/assign", map[string]string{"purpose": "reassign"}, headers)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.do(http.MethodGet, "/consultants/enquiries", nil, headers)
	assert.Equal(t, http.StatusForbidden, resp.Code)
}
