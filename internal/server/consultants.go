package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/counseling/internal/assignment"
	"github.com/smallbiznis/counseling/internal/authorization"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
)

type assignSessionRequest struct {
	ConsultantID string `json:"consultant_id"`
	Purpose      string `json:"purpose"`
}

// AssignSession assigns the session to consultant_id, or to the caller when
// the body names nobody.
func (s *Server) AssignSession(c *gin.Context) {
	caller, ok := callerConsultant(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	sessionID, err := parseSnowflakeID(c.Param("sessionId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req assignSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	target, err := parseOptionalSnowflakeID(req.ConsultantID)
	if err != nil {
		AbortWithError(c, newValidationError("consultant_id", "invalid_consultant", "consultant_id must be a valid id"))
		return
	}
	consultantID := caller.ID
	if target != nil {
		consultantID = *target
	}
	purpose, err := assignment.ParsePurpose(strings.TrimSpace(req.Purpose))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	object, action := authorization.ObjectSession, authorization.ActionSessionAssign
	if purpose == assignment.PurposeAccept {
		object, action = authorization.ObjectEnquiry, authorization.ActionEnquiryAccept
	}
	if err := s.authorize(c, object, action); err != nil {
		AbortWithError(c, err)
		return
	}

	session, err := s.assignments.AssignSession(c.Request.Context(), sessionID, consultantID, purpose)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session})
}

func (s *Server) ListEnquiries(c *gin.Context) {
	caller, ok := callerConsultant(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var registrationType sessiondomain.RegistrationType
	if raw := strings.TrimSpace(c.Query("registration_type")); raw != "" {
		parsed, err := sessiondomain.ParseRegistrationType(strings.ToUpper(raw))
		if err != nil {
			AbortWithError(c, sessiondomain.ErrInvalidRegistrationType)
			return
		}
		registrationType = parsed
	}

	sessions, err := s.sessionSvc.ListEnquiriesForAgencies(c.Request.Context(), caller.AgencyIDs(), registrationType)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": nonNil(sessions)})
}

func (s *Server) ListTeamSessions(c *gin.Context) {
	caller, ok := callerConsultant(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if !caller.TeamConsultant {
		AbortWithError(c, ErrForbidden)
		return
	}

	sessions, err := s.sessionSvc.ListTeamSessionsForAgencies(c.Request.Context(), caller.AgencyIDs())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": nonNil(sessions)})
}

func nonNil(sessions []sessiondomain.Session) []sessiondomain.Session {
	if sessions == nil {
		return []sessiondomain.Session{}
	}
	return sessions
}
