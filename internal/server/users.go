package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/counseling/internal/account"
	"github.com/smallbiznis/counseling/internal/enquiry"
	userdomain "github.com/smallbiznis/counseling/internal/user/domain"
)

type registerUserRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	Email          string `json:"email"`
	Postcode       string `json:"postcode"`
	AgencyID       string `json:"agency_id"`
	ConsultingType string `json:"consulting_type"`
	Age            string `json:"age"`
	State          string `json:"state"`
	LanguageCode   string `json:"language_code"`
}

type registerAnonymousRequest struct {
	Postcode       string `json:"postcode"`
	AgencyID       string `json:"agency_id"`
	ConsultingType string `json:"consulting_type"`
	LanguageCode   string `json:"language_code"`
}

type registrationResponse struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Username  string `json:"username,omitempty"`
}

func (s *Server) RegisterUser(c *gin.Context) {
	var req registerUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	agencyID, err := parseSnowflakeID(req.AgencyID)
	if err != nil {
		AbortWithError(c, newValidationError("agency_id", "invalid_agency", "agency_id must be a valid id"))
		return
	}

	created, err := s.accounts.CreateAccount(c.Request.Context(), account.RegistrationInput{
		Username:       strings.TrimSpace(req.Username),
		Password:       req.Password,
		Email:          strings.TrimSpace(req.Email),
		Postcode:       strings.TrimSpace(req.Postcode),
		AgencyID:       agencyID,
		ConsultingType: strings.TrimSpace(req.ConsultingType),
		Age:            strings.TrimSpace(req.Age),
		State:          strings.TrimSpace(req.State),
		LanguageCode:   strings.TrimSpace(req.LanguageCode),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, registrationResponse{
		UserID:    created.User.ID.String(),
		SessionID: created.Session.ID.String(),
	})
}

// RegisterAnonymous creates an asker without credentials of their own; the
// generated username is returned so the client can log in.
func (s *Server) RegisterAnonymous(c *gin.Context) {
	var req registerAnonymousRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	agencyID, err := parseSnowflakeID(req.AgencyID)
	if err != nil {
		AbortWithError(c, newValidationError("agency_id", "invalid_agency", "agency_id must be a valid id"))
		return
	}

	created, err := s.accounts.CreateAccount(c.Request.Context(), account.RegistrationInput{
		Postcode:       strings.TrimSpace(req.Postcode),
		AgencyID:       agencyID,
		ConsultingType: strings.TrimSpace(req.ConsultingType),
		LanguageCode:   strings.TrimSpace(req.LanguageCode),
		Anonymous:      true,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	username, err := userdomain.Decode(created.User.Username)
	if err != nil {
		username = created.User.Username
	}
	respondCreated(c, registrationResponse{
		UserID:    created.User.ID.String(),
		SessionID: created.Session.ID.String(),
		Username:  username,
	})
}

type enquiryRequest struct {
	Message string `json:"message"`
}

type enquiryResponse struct {
	SessionID       string `json:"session_id"`
	GroupID         string `json:"group_id"`
	FeedbackGroupID string `json:"feedback_group_id,omitempty"`
}

func (s *Server) CreateEnquiryMessage(c *gin.Context) {
	user, ok := callerUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	sessionID, err := parseSnowflakeID(c.Param("sessionId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req enquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	created, err := s.enquiries.CreateEnquiryMessage(c.Request.Context(), enquiry.Request{
		UserID:      user.ID,
		SessionID:   sessionID,
		Message:     req.Message,
		Credentials: chatCredentials(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respondCreated(c, enquiryResponse{
		SessionID:       created.SessionID.String(),
		GroupID:         created.GroupID,
		FeedbackGroupID: created.FeedbackGroupID,
	})
}
