// Package account registers askers across the identity provider and the
// relational store. Registration is a saga: every committed step has a
// compensation that runs when a later step fails.
package account

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	agencydomain "github.com/smallbiznis/counseling/internal/agency/domain"
	auditdomain "github.com/smallbiznis/counseling/internal/audit/domain"
	"github.com/smallbiznis/counseling/internal/clock"
	"github.com/smallbiznis/counseling/internal/config"
	"github.com/smallbiznis/counseling/internal/consultingtype"
	identitydomain "github.com/smallbiznis/counseling/internal/identity/domain"
	"github.com/smallbiznis/counseling/internal/observability/metrics"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
	userdomain "github.com/smallbiznis/counseling/internal/user/domain"
)

var Module = fx.Module("account.service",
	fx.Provide(NewRollbackCoordinator),
	fx.Provide(New),
)

// RegistrationInput is the registration form of an asker.
type RegistrationInput struct {
	Username       string
	Password       string
	Email          string
	Postcode       string
	AgencyID       snowflake.ID
	ConsultingType string
	Age            string
	State          string
	LanguageCode   string
	Anonymous      bool
}

// Account is the result of a completed registration.
type Account struct {
	IdentityID string
	User       userdomain.User
	Session    sessiondomain.Session
}

type Params struct {
	fx.In

	Config          config.Config
	Log             *zap.Logger
	Identity        identitydomain.Client
	UserSvc         userdomain.Service
	SessionSvc      sessiondomain.Service
	AgencySvc       agencydomain.Service
	ConsultingTypes *consultingtype.Config
	Rollback        *RollbackCoordinator
	AuditSvc        auditdomain.Service `optional:"true"`
	Metrics         *metrics.Metrics    `optional:"true"`
}

type Service struct {
	log             *zap.Logger
	identity        identitydomain.Client
	userSvc         userdomain.Service
	sessionSvc      sessiondomain.Service
	agencySvc       agencydomain.Service
	consultingTypes *consultingtype.Config
	rollback        *RollbackCoordinator
	auditSvc        auditdomain.Service
	metrics         *metrics.Metrics
	dummySuffix     string
}

func New(p Params) *Service {
	return &Service{
		log:             p.Log.Named("account.service"),
		identity:        p.Identity,
		userSvc:         p.UserSvc,
		sessionSvc:      p.SessionSvc,
		agencySvc:       p.AgencySvc,
		consultingTypes: p.ConsultingTypes,
		rollback:        p.Rollback,
		auditSvc:        p.AuditSvc,
		metrics:         p.Metrics,
		dummySuffix:     p.Config.DummyEmailSuffix,
	}
}

type RollbackParams struct {
	fx.In

	Log        *zap.Logger
	Identity   identitydomain.Client
	UserSvc    userdomain.Service
	SessionSvc sessiondomain.Service
	Clock      clock.Clock      `optional:"true"`
	Metrics    *metrics.Metrics `optional:"true"`
}
