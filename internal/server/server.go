package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/counseling/internal/account"
	"github.com/smallbiznis/counseling/internal/agency"
	"github.com/smallbiznis/counseling/internal/assignment"
	"github.com/smallbiznis/counseling/internal/audit"
	"github.com/smallbiznis/counseling/internal/authorization"
	"github.com/smallbiznis/counseling/internal/chat"
	"github.com/smallbiznis/counseling/internal/clock"
	"github.com/smallbiznis/counseling/internal/config"
	"github.com/smallbiznis/counseling/internal/consultant"
	consultantdomain "github.com/smallbiznis/counseling/internal/consultant/domain"
	"github.com/smallbiznis/counseling/internal/consultingtype"
	"github.com/smallbiznis/counseling/internal/enquiry"
	"github.com/smallbiznis/counseling/internal/groupmembership"
	"github.com/smallbiznis/counseling/internal/identity"
	identitydomain "github.com/smallbiznis/counseling/internal/identity/domain"
	"github.com/smallbiznis/counseling/internal/monitoring"
	"github.com/smallbiznis/counseling/internal/notification"
	"github.com/smallbiznis/counseling/internal/observability"
	obslogger "github.com/smallbiznis/counseling/internal/observability/logger"
	obstracing "github.com/smallbiznis/counseling/internal/observability/tracing"
	"github.com/smallbiznis/counseling/internal/providers/email"
	"github.com/smallbiznis/counseling/internal/ratelimit"
	"github.com/smallbiznis/counseling/internal/session"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
	"github.com/smallbiznis/counseling/internal/user"
	userdomain "github.com/smallbiznis/counseling/internal/user/domain"
	"github.com/smallbiznis/counseling/pkg/telemetry"
)

var Module = fx.Module("http.server",
	clock.Module,
	telemetry.Module,
	fx.Provide(registerGin),
	identity.Module,
	chat.Module,
	email.Module,
	consultingtype.Module,
	authorization.Module,
	audit.Module,
	ratelimit.Module,
	notification.Module,
	agency.Module,
	user.Module,
	session.Module,
	monitoring.Module,
	groupmembership.Module,
	consultant.Module,
	account.Module,
	enquiry.Module,
	assignment.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *telemetry.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(telemetry.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *telemetry.Metrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	accounts      *account.Service
	enquiries     *enquiry.Service
	assignments   *assignment.Service
	userSvc       userdomain.Service
	sessionSvc    sessiondomain.Service
	consultantSvc consultantdomain.Service
	identity      identitydomain.Client
	authz         authorization.Service
	registrations *ratelimit.RegistrationLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Accounts      *account.Service
	Enquiries     *enquiry.Service
	Assignments   *assignment.Service
	UserSvc       userdomain.Service
	SessionSvc    sessiondomain.Service
	ConsultantSvc consultantdomain.Service
	Identity      identitydomain.Client
	Authz         authorization.Service
	Registrations *ratelimit.RegistrationLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		accounts:      p.Accounts,
		enquiries:     p.Enquiries,
		assignments:   p.Assignments,
		userSvc:       p.UserSvc,
		sessionSvc:    p.SessionSvc,
		consultantSvc: p.ConsultantSvc,
		identity:      p.Identity,
		authz:         p.Authz,
		registrations: p.Registrations,
	}

	svc.registerUserRoutes()
	svc.registerConsultantRoutes()
	svc.registerAgencyRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerUserRoutes() {
	users := s.engine.Group("/users")

	users.POST("", s.RegistrationRateLimit(), s.RegisterUser)
	users.POST("/anonymous", s.RegistrationRateLimit(), s.RegisterAnonymous)
	users.POST("/sessions/:sessionId/enquiry/new",
		s.UserRequired(),
		s.Authorized(authorization.ObjectEnquiry, authorization.ActionEnquiryCreate),
		s.CreateEnquiryMessage,
	)
}

func (s *Server) registerConsultantRoutes() {
	consultants := s.engine.Group("/consultants", s.ConsultantRequired())

	consultants.PUT("/sessions/:sessionId/assign", s.AssignSession)
	consultants.GET("/enquiries", s.Authorized(authorization.ObjectSession, authorization.ActionSessionView), s.ListEnquiries)
	consultants.GET("/team-sessions", s.Authorized(authorization.ObjectSession, authorization.ActionSessionView), s.ListTeamSessions)
}

func (s *Server) registerAgencyRoutes() {
	agencies := s.engine.Group("/agencies",
		s.AdminRequired(),
		s.Authorized(authorization.ObjectAgency, authorization.ActionAgencyManage),
	)

	agencies.POST("/:agencyId/consultants/:consultantId", s.AddConsultantAgency)
	agencies.DELETE("/:agencyId/consultants/:consultantId", s.RemoveConsultantAgency)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
