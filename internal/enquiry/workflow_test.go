package enquiry

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
	chatdomain "github.com/smallbiznis/counseling/internal/chat/domain"
	"github.com/smallbiznis/counseling/internal/chat/chattest"
	"github.com/smallbiznis/counseling/internal/clock"
	"github.com/smallbiznis/counseling/internal/config"
	consultantdomain "github.com/smallbiznis/counseling/internal/consultant/domain"
	consultantrepository "github.com/smallbiznis/counseling/internal/consultant/repository"
	consultantservice "github.com/smallbiznis/counseling/internal/consultant/service"
	"github.com/smallbiznis/counseling/internal/consultingtype"
	monitoringdomain "github.com/smallbiznis/counseling/internal/monitoring/domain"
	monitoringrepository "github.com/smallbiznis/counseling/internal/monitoring/repository"
	monitoringservice "github.com/smallbiznis/counseling/internal/monitoring/service"
	"github.com/smallbiznis/counseling/internal/notification"
	"github.com/smallbiznis/counseling/internal/notification/notificationtest"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
	sessionrepository "github.com/smallbiznis/counseling/internal/session/repository"
	sessionservice "github.com/smallbiznis/counseling/internal/session/service"
	userdomain "github.com/smallbiznis/counseling/internal/user/domain"
	userrepository "github.com/smallbiznis/counseling/internal/user/repository"
	userservice "github.com/smallbiznis/counseling/internal/user/service"
)

var userCreds = chatdomain.Credentials{Token: "user-token", UserID: "rc-user"}

var systemCreds = chatdomain.Credentials{Token: "system-token", UserID: "rc-system"}

type fixture struct {
	db          *gorm.DB
	node        *snowflake.Node
	clock       *clock.FakeClock
	chat        *chattest.Client
	dispatcher  *notificationtest.Dispatcher
	sessions    sessiondomain.Service
	users       userdomain.Service
	monitoring  monitoringdomain.Service
	agencyRepo  agencydomain.Repository
	consultRepo consultantdomain.Repository
	svc         *Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&userdomain.User{}, &sessiondomain.Session{}, &agencydomain.Agency{},
		&consultantdomain.Consultant{}, &consultantdomain.ConsultantAgency{}, &monitoringdomain.Entry{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	agencyRepo := agencyrepository.Provide()
	agencies := agencyservice.New(agencyservice.Params{DB: db, Log: log, GenID: node, Repo: agencyRepo})
	sessions := sessionservice.New(sessionservice.Params{DB: db, Log: log, GenID: node, Repo: sessionrepository.Provide(), Clock: clk})
	users := userservice.New(userservice.Params{DB: db, Log: log, GenID: node, Repo: userrepository.Provide(), Clock: clk})
	monitoring := monitoringservice.New(monitoringservice.Params{DB: db, Log: log, GenID: node, Repo: monitoringrepository.Provide()})
	consultRepo := consultantrepository.Provide()
	consultants := consultantservice.NewService(db, log, node, consultRepo, agencies, sessions, nil, clk)

	f := &fixture{
		db:          db,
		node:        node,
		clock:       clk,
		chat:        &chattest.Client{},
		dispatcher:  &notificationtest.Dispatcher{},
		sessions:    sessions,
		users:       users,
		monitoring:  monitoring,
		agencyRepo:  agencyRepo,
		consultRepo: consultRepo,
	}
	cfg := config.Config{Chat: config.ChatConfig{SystemToken: systemCreds.Token, SystemUserID: systemCreds.UserID}}
	f.svc = New(Params{
		Config:          cfg,
		Log:             log,
		Chat:            f.chat,
		SessionSvc:      sessions,
		UserSvc:         users,
		ConsultantSvc:   consultants,
		AgencySvc:       agencies,
		MonitoringSvc:   monitoring,
		ConsultingTypes: consultingtype.NewStatic(config.DefaultConsultingTypes()),
		Dispatcher:      f.dispatcher,
	})
	return f
}

func (f *fixture) agency(t *testing.T, ct consultingtype.ConsultingType, team bool) agencydomain.Agency {
	t.Helper()
	a := agencydomain.Agency{
		ID:             f.node.Generate(),
		Name:           "Beratungsstelle Freiburg",
		Postcode:       "79098",
		ConsultingType: int(ct),
		TeamAgency:     team,
		CreatedAt:      f.clock.Now(),
		UpdatedAt:      f.clock.Now(),
	}
	require.NoError(t, f.agencyRepo.Insert(context.Background(), f.db, &a))
	return a
}

func (f *fixture) session(t *testing.T, agency agencydomain.Agency) (userdomain.User, sessiondomain.Session) {
	t.Helper()
	ctx := context.Background()
	user, err := f.users.Create(ctx, userdomain.CreateUserRequest{IdentityID: "kc-1", Username: "max94", Email: "kc-1@dummy.example"})
	require.NoError(t, err)
	s, err := f.sessions.Initialize(ctx, sessiondomain.InitializeRequest{
		UserID:           user.ID,
		ConsultingType:   agency.ConsultingType,
		AgencyID:         agency.ID,
		Postcode:         "79098",
		RegistrationType: sessiondomain.RegistrationRegistered,
		Status:           sessiondomain.StatusInitial,
		TeamSession:      agency.TeamAgency,
		Monitoring:       true,
	})
	require.NoError(t, err)
	return user, s
}

func (f *fixture) expectChatUser() {
	f.chat.On("GetUserInfo", mock.Anything, userCreds.UserID).
		Return(chatdomain.UserInfo{ID: userCreds.UserID, Username: "enc.nvqxqoju"}, nil)
}

func request(user userdomain.User, s sessiondomain.Session) Request {
	return Request{UserID: user.ID, SessionID: s.ID, Message: "Hallo, ich brauche Hilfe.", Credentials: userCreds}
}

func TestCreateEnquiryMessage_Success(t *testing.T) {
	f := setup(t)
	user, s := f.session(t, f.agency(t, consultingtype.Addiction, false))
	f.expectChatUser()
	f.chat.On("CreatePrivateGroup", mock.Anything, chatdomain.GroupName("addiction", s.ID.String()), userCreds).
		Return(chatdomain.GroupRef{ID: "group-1"}, nil).Once()
	f.chat.On("PostMessage", mock.Anything, "group-1", userCreds, "Hallo, ich brauche Hilfe.").Return(nil).Once()

	created, err := f.svc.CreateEnquiryMessage(context.Background(), request(user, s))
	require.NoError(t, err)
	assert.Equal(t, "group-1", created.GroupID)
	assert.Empty(t, created.FeedbackGroupID)

	stored, err := f.sessions.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasEnquiry())
	assert.Equal(t, sessiondomain.StatusNew, stored.Status)
	assert.Equal(t, "group-1", stored.GroupID)

	entries, err := f.monitoring.List(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	f.chat.AssertExpectations(t)
	f.dispatcher.AssertNotCalled(t, "NewEnquiry", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateEnquiryMessage_SecondCallConflicts(t *testing.T) {
	f := setup(t)
	user, s := f.session(t, f.agency(t, consultingtype.Aids, false))
	f.expectChatUser()
	f.chat.On("CreatePrivateGroup", mock.Anything, mock.Anything, userCreds).Return(chatdomain.GroupRef{ID: "group-1"}, nil).Once()
	f.chat.On("PostMessage", mock.Anything, "group-1", userCreds, mock.Anything).Return(nil).Once()

	_, err := f.svc.CreateEnquiryMessage(context.Background(), request(user, s))
	require.NoError(t, err)

	_, err = f.svc.CreateEnquiryMessage(context.Background(), request(user, s))
	assert.ErrorIs(t, err, apperror.ErrConflict)
	f.chat.AssertNumberOfCalls(t, "CreatePrivateGroup", 1)
	f.chat.AssertNumberOfCalls(t, "PostMessage", 1)
}

func TestCreateEnquiryMessage_InProgressSessionConflicts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user, s := f.session(t, f.agency(t, consultingtype.Aids, false))

	_, err := f.sessions.MarkEnquiry(ctx, sessiondomain.MarkEnquiryRequest{SessionID: s.ID, GroupID: "group-old"})
	require.NoError(t, err)
	consultantID := snowflake.ID(99)
	require.NoError(t, f.sessions.UpdateConsultantAndStatus(ctx, s.ID, &consultantID, sessiondomain.StatusInProgress))

	_, err = f.svc.CreateEnquiryMessage(ctx, request(user, s))
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
	f.chat.AssertNotCalled(t, "CreatePrivateGroup", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateEnquiryMessage_BadRequests(t *testing.T) {
	f := setup(t)
	user, s := f.session(t, f.agency(t, consultingtype.Aids, false))

	_, err := f.svc.CreateEnquiryMessage(context.Background(), Request{UserID: user.ID, SessionID: 12345, Message: "hi", Credentials: userCreds})
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Equal(t, "session_not_found", apperror.ReasonOf(err))

	req := request(user, s)
	req.Credentials = chatdomain.Credentials{}
	_, err = f.svc.CreateEnquiryMessage(context.Background(), req)
	assert.Equal(t, "invalid_chat_credentials", apperror.ReasonOf(err))

	req = request(user, s)
	req.UserID = 4242
	_, err = f.svc.CreateEnquiryMessage(context.Background(), req)
	assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))

	f.chat.AssertNotCalled(t, "CreatePrivateGroup", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateEnquiryMessage_ChatIdentityMismatch(t *testing.T) {
	f := setup(t)
	user, s := f.session(t, f.agency(t, consultingtype.Aids, false))
	f.chat.On("GetUserInfo", mock.Anything, userCreds.UserID).
		Return(chatdomain.UserInfo{ID: userCreds.UserID, Username: userdomain.Encode("someone")}, nil)

	_, err := f.svc.CreateEnquiryMessage(context.Background(), request(user, s))
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
	assert.Equal(t, "chat_user_mismatch", apperror.ReasonOf(err))
	f.chat.AssertNotCalled(t, "CreatePrivateGroup", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateEnquiryMessage_GroupCreationFails(t *testing.T) {
	f := setup(t)
	user, s := f.session(t, f.agency(t, consultingtype.Aids, false))
	f.expectChatUser()
	f.chat.On("CreatePrivateGroup", mock.Anything, mock.Anything, userCreds).Return(chatdomain.GroupRef{}, errors.New("rc down")).Once()

	_, err := f.svc.CreateEnquiryMessage(context.Background(), request(user, s))
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	f.chat.AssertNotCalled(t, "DeleteGroup", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateEnquiryMessage_PostFailsRollsBackGroupAndMonitoring(t *testing.T) {
	f := setup(t)
	user, s := f.session(t, f.agency(t, consultingtype.Addiction, false))
	f.expectChatUser()
	f.chat.On("CreatePrivateGroup", mock.Anything, mock.Anything, userCreds).Return(chatdomain.GroupRef{ID: "group-1"}, nil).Once()
	f.chat.On("PostMessage", mock.Anything, "group-1", userCreds, mock.Anything).Return(errors.New("rc down")).Once()
	f.chat.On("DeleteGroup", mock.Anything, "group-1", userCreds).Return(true, nil).Once()

	_, err := f.svc.CreateEnquiryMessage(context.Background(), request(user, s))
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))

	entries, err := f.monitoring.List(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	stored, err := f.sessions.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasEnquiry())
	f.chat.AssertExpectations(t)
}

func TestCreateEnquiryMessage_MonitoringFailureDeletesGroup(t *testing.T) {
	f := setup(t)
	user, s := f.session(t, f.agency(t, consultingtype.Addiction, false))
	_, err := f.monitoring.CreateInitialMonitoring(context.Background(), s.ID, []string{"alcohol"})
	require.NoError(t, err)

	f.expectChatUser()
	f.chat.On("CreatePrivateGroup", mock.Anything, mock.Anything, userCreds).Return(chatdomain.GroupRef{ID: "group-1"}, nil).Once()
	f.chat.On("DeleteGroup", mock.Anything, "group-1", userCreds).Return(true, nil).Once()

	_, err = f.svc.CreateEnquiryMessage(context.Background(), request(user, s))
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	f.chat.AssertNotCalled(t, "PostMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.chat.AssertExpectations(t)
}

func TestCreateEnquiryMessage_FeedbackGroupFailureDeletesMainGroup(t *testing.T) {
	f := setup(t)
	user, s := f.session(t, f.agency(t, consultingtype.U25, false))
	f.expectChatUser()
	f.chat.On("CreatePrivateGroup", mock.Anything, chatdomain.GroupName("u25", s.ID.String()), userCreds).
		Return(chatdomain.GroupRef{ID: "group-1"}, nil).Once()
	f.chat.On("CreatePrivateGroup", mock.Anything, chatdomain.FeedbackGroupName("u25", s.ID.String()), systemCreds).
		Return(chatdomain.GroupRef{}, errors.New("rc down")).Once()
	f.chat.On("DeleteGroup", mock.Anything, "group-1", userCreds).Return(true, nil).Once()

	_, err := f.svc.CreateEnquiryMessage(context.Background(), request(user, s))
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	f.chat.AssertExpectations(t)
}

func TestCreateEnquiryMessage_RollbackFailureKeepsPrimary(t *testing.T) {
	f := setup(t)
	user, s := f.session(t, f.agency(t, consultingtype.Aids, false))
	f.expectChatUser()
	f.chat.On("CreatePrivateGroup", mock.Anything, mock.Anything, userCreds).Return(chatdomain.GroupRef{ID: "group-1"}, nil).Once()
	f.chat.On("PostMessage", mock.Anything, "group-1", userCreds, mock.Anything).Return(errors.New("post failed")).Once()
	f.chat.On("DeleteGroup", mock.Anything, "group-1", userCreds).Return(false, errors.New("delete failed")).Once()

	_, err := f.svc.CreateEnquiryMessage(context.Background(), request(user, s))
	require.Error(t, err)
	assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
	assert.Contains(t, err.Error(), "could not post enquiry message")
}

func TestCreateEnquiryMessage_TeamAgencyNotifiesConsultants(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	agency := f.agency(t, consultingtype.Pregnancy, true)
	user, s := f.session(t, agency)

	for i, chatID := range []string{"rc-c1", "rc-c2"} {
		c := consultantdomain.Consultant{
			ID: f.node.Generate(), IdentityID: fmt.Sprintf("kc-c%d", i), ChatID: chatID,
			Username: fmt.Sprintf("consultant%d", i), Email: fmt.Sprintf("c%d@example.org", i),
			CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now(),
		}
		require.NoError(t, f.consultRepo.Insert(ctx, f.db, &c))
		require.NoError(t, f.consultRepo.InsertAgency(ctx, f.db, &consultantdomain.ConsultantAgency{
			ID: f.node.Generate(), ConsultantID: c.ID, AgencyID: agency.ID, ConsultingType: agency.ConsultingType, CreatedAt: f.clock.Now(),
		}))
	}

	f.expectChatUser()
	f.chat.On("CreatePrivateGroup", mock.Anything, mock.Anything, userCreds).Return(chatdomain.GroupRef{ID: "group-1"}, nil).Once()
	f.chat.On("PostMessage", mock.Anything, "group-1", userCreds, mock.Anything).Return(nil).Once()
	f.chat.On("AddMember", mock.Anything, "rc-c1", "group-1").Return(errors.New("not allowed")).Once()
	f.chat.On("AddMember", mock.Anything, "rc-c2", "group-1").Return(nil).Once()
	f.dispatcher.On("NewEnquiry", mock.Anything, agency.Name, mock.MatchedBy(func(r []notification.Recipient) bool { return len(r) == 2 })).Once()
	f.dispatcher.On("DirectMessage", mock.Anything, userCreds.UserID, []string{"rc-c1", "rc-c2"}).Once()

	created, err := f.svc.CreateEnquiryMessage(ctx, request(user, s))
	require.NoError(t, err)
	assert.Equal(t, "group-1", created.GroupID)
	f.chat.AssertExpectations(t)
	f.dispatcher.AssertExpectations(t)
}
