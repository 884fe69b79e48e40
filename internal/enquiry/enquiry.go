// Package enquiry turns the first message of an asker into a chat group.
package enquiry

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	agencydomain "github.com/smallbiznis/counseling/internal/agency/domain"
	chatdomain "github.com/smallbiznis/counseling/internal/chat/domain"
	"github.com/smallbiznis/counseling/internal/config"
	consultantdomain "github.com/smallbiznis/counseling/internal/consultant/domain"
	"github.com/smallbiznis/counseling/internal/consultingtype"
	monitoringdomain "github.com/smallbiznis/counseling/internal/monitoring/domain"
	"github.com/smallbiznis/counseling/internal/notification"
	"github.com/smallbiznis/counseling/internal/observability/metrics"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
	userdomain "github.com/smallbiznis/counseling/internal/user/domain"
)

var Module = fx.Module("enquiry.service",
	fx.Provide(New),
)

type Request struct {
	UserID      snowflake.ID
	SessionID   snowflake.ID
	Message     string
	Credentials chatdomain.Credentials
}

type Created struct {
	SessionID       snowflake.ID
	GroupID         string
	FeedbackGroupID string
}

type Params struct {
	fx.In

	Config          config.Config
	Log             *zap.Logger
	Chat            chatdomain.Client
	SessionSvc      sessiondomain.Service
	UserSvc         userdomain.Service
	ConsultantSvc   consultantdomain.Service
	AgencySvc       agencydomain.Service
	MonitoringSvc   monitoringdomain.Service
	ConsultingTypes *consultingtype.Config
	Dispatcher      notification.Dispatcher
	Metrics         *metrics.Metrics `optional:"true"`
}

type Service struct {
	log             *zap.Logger
	chat            chatdomain.Client
	sessionSvc      sessiondomain.Service
	userSvc         userdomain.Service
	consultantSvc   consultantdomain.Service
	agencySvc       agencydomain.Service
	monitoringSvc   monitoringdomain.Service
	consultingTypes *consultingtype.Config
	dispatcher      notification.Dispatcher
	metrics         *metrics.Metrics
	system          chatdomain.Credentials
}

func New(p Params) *Service {
	return &Service{
		log:             p.Log.Named("enquiry.service"),
		chat:            p.Chat,
		sessionSvc:      p.SessionSvc,
		userSvc:         p.UserSvc,
		consultantSvc:   p.ConsultantSvc,
		agencySvc:       p.AgencySvc,
		monitoringSvc:   p.MonitoringSvc,
		consultingTypes: p.ConsultingTypes,
		dispatcher:      p.Dispatcher,
		metrics:         p.Metrics,
		system: chatdomain.Credentials{
			Token:  p.Config.Chat.SystemToken,
			UserID: p.Config.Chat.SystemUserID,
		},
	}
}
