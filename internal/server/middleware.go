package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	chatdomain "github.com/smallbiznis/counseling/internal/chat/domain"
	consultantdomain "github.com/smallbiznis/counseling/internal/consultant/domain"
	"github.com/smallbiznis/counseling/internal/observability/logger"
	userdomain "github.com/smallbiznis/counseling/internal/user/domain"
)

// Caller identity is resolved upstream; these headers carry the result.
const (
	HeaderUserID       = "X-User-Id"
	HeaderConsultantID = "X-Consultant-Id"
	HeaderAdminID      = "X-Admin-Id"
	HeaderChatToken    = "RCToken"
	HeaderChatUserID   = "RCUserId"

	contextUserKey       = "caller_user"
	contextConsultantKey = "caller_consultant"
	contextIdentityKey   = "caller_identity"
)

// UserRequired resolves the asker behind X-User-Id.
func (s *Server) UserRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identityID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if identityID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.userSvc.GetByIdentityID(c.Request.Context(), identityID)
		if err != nil {
			if errors.Is(err, userdomain.ErrNotFound) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, err)
			return
		}

		c.Request = c.Request.WithContext(logger.ContextWithActor(c.Request.Context(), "user", user.ID.String()))
		c.Set(contextUserKey, user)
		c.Set(contextIdentityKey, identityID)
		c.Next()
	}
}

// ConsultantRequired resolves the consultant behind X-Consultant-Id.
func (s *Server) ConsultantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identityID := strings.TrimSpace(c.GetHeader(HeaderConsultantID))
		if identityID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		consultant, err := s.consultantSvc.GetByIdentityID(c.Request.Context(), identityID)
		if err != nil {
			if errors.Is(err, consultantdomain.ErrNotFound) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, err)
			return
		}

		c.Request = c.Request.WithContext(logger.ContextWithActor(c.Request.Context(), "consultant", consultant.ID.String()))
		c.Set(contextConsultantKey, consultant)
		c.Set(contextIdentityKey, identityID)
		c.Next()
	}
}

// AdminRequired accepts any caller that names an identity account in
// X-Admin-Id; what the account may do is decided by Authorized.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		identityID := strings.TrimSpace(c.GetHeader(HeaderAdminID))
		if identityID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Request = c.Request.WithContext(logger.ContextWithActor(c.Request.Context(), "admin", identityID))
		c.Set(contextIdentityKey, identityID)
		c.Next()
	}
}

// Authorized rejects callers whose roles do not grant action on object.
// It must run after one of the *Required middlewares.
func (s *Server) Authorized(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorize(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorize(c *gin.Context, object, action string) error {
	identityID := c.GetString(contextIdentityKey)
	if identityID == "" {
		return ErrUnauthorized
	}

	ctx := c.Request.Context()
	roles, err := s.identity.ListRoles(ctx, identityID)
	if err != nil {
		return err
	}
	return s.authz.Authorize(ctx, roles, object, action)
}

func callerUser(c *gin.Context) (userdomain.User, bool) {
	v, ok := c.Get(contextUserKey)
	if !ok {
		return userdomain.User{}, false
	}
	user, ok := v.(userdomain.User)
	return user, ok
}

func callerConsultant(c *gin.Context) (consultantdomain.Consultant, bool) {
	v, ok := c.Get(contextConsultantKey)
	if !ok {
		return consultantdomain.Consultant{}, false
	}
	consultant, ok := v.(consultantdomain.Consultant)
	return consultant, ok
}

func chatCredentials(c *gin.Context) chatdomain.Credentials {
	return chatdomain.Credentials{
		Token:  strings.TrimSpace(c.GetHeader(HeaderChatToken)),
		UserID: strings.TrimSpace(c.GetHeader(HeaderChatUserID)),
	}
}

// RegistrationRateLimit throttles registrations per client address.
func (s *Server) RegistrationRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.registrations.Enabled() {
			c.Next()
			return
		}

		decision := s.registrations.Allow(c.Request.Context(), c.ClientIP())
		if !decision.Allowed {
			if decision.RetryAfter > 0 {
				seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
				c.Header("Retry-After", strconv.Itoa(seconds))
			}
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}

func respondCreated(c *gin.Context, body any) {
	c.JSON(http.StatusCreated, body)
}
