package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	agencydomain "github.com/smallbiznis/counseling/internal/agency/domain"
	"github.com/smallbiznis/counseling/internal/apperror"
	"github.com/smallbiznis/counseling/internal/authorization"
	consultantdomain "github.com/smallbiznis/counseling/internal/consultant/domain"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
	userdomain "github.com/smallbiznis/counseling/internal/user/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Reason  string            `json:"reason,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not_found")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrTooManyRequests = errors.New("too_many_requests")
)

// Registration conflicts are validation errors in the core but answer 409.
var conflictReasons = map[string]bool{
	apperror.ErrUsernameConflict.Reason: true,
	apperror.ErrEmailConflict.Reason:    true,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if payload.Reason != "" {
			c.Header("X-Reason", payload.Reason)
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, internalPayload()
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var appErr *apperror.Error
	if errors.As(err, &appErr) && apperror.KindOf(err) != apperror.KindSecondary {
		return mapAppError(appErr)
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: "forbidden"}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{Type: "too_many_requests", Message: "too many requests"}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{Type: "conflict", Reason: err.Error(), Message: "conflict"}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	case isValidationError(err):
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   validationErrorField(code),
				Code:    code,
				Message: "invalid value",
			}},
		}
	default:
		return http.StatusInternalServerError, internalPayload()
	}
}

func mapAppError(e *apperror.Error) (int, errorPayload) {
	switch e.Kind {
	case apperror.KindValidation:
		if conflictReasons[e.Reason] {
			return http.StatusConflict, errorPayload{Type: "conflict", Reason: e.Reason, Message: e.Message}
		}
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Reason:  e.Reason,
			Message: "validation error",
			Errors: []ValidationError{{
				Field:   validationErrorField(e.Reason),
				Code:    e.Reason,
				Message: e.Message,
			}},
		}
	case apperror.KindConflict:
		return http.StatusConflict, errorPayload{Type: "conflict", Reason: e.Reason, Message: e.Message}
	case apperror.KindForbidden:
		return http.StatusForbidden, errorPayload{Type: "forbidden", Reason: e.Reason, Message: e.Message}
	case apperror.KindNotFound:
		return http.StatusNotFound, errorPayload{Type: "not_found", Reason: e.Reason, Message: e.Message}
	default:
		return http.StatusInternalServerError, internalPayload()
	}
}

func internalPayload() errorPayload {
	return errorPayload{Type: "internal_error", Message: "internal server error"}
}

// classifyErrorForLog returns the error type and code written to the request log.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	if apperror.KindOf(err) == apperror.KindSecondary {
		return apperror.KindSecondary.String(), ""
	}
	status, payload := mapError(err)
	code := payload.Reason
	if code == "" && len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if code == "" {
		code = http.StatusText(status)
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, errInvalidID),
		errors.Is(err, userdomain.ErrInvalidUsername),
		errors.Is(err, userdomain.ErrInvalidIdentityID),
		errors.Is(err, userdomain.ErrInvalidEmail),
		errors.Is(err, userdomain.ErrInvalidChatID),
		errors.Is(err, sessiondomain.ErrInvalidStatus),
		errors.Is(err, sessiondomain.ErrInvalidRegistrationType),
		errors.Is(err, sessiondomain.ErrInvalidUser),
		errors.Is(err, sessiondomain.ErrInvalidAgency),
		errors.Is(err, sessiondomain.ErrInvalidGroupID),
		errors.Is(err, sessiondomain.ErrConsultantRequired),
		errors.Is(err, consultantdomain.ErrInvalidIdentityID),
		errors.Is(err, consultantdomain.ErrInvalidUsername),
		errors.Is(err, agencydomain.ErrInvalidName),
		errors.Is(err, agencydomain.ErrInvalidPostcode):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, consultantdomain.ErrAgencyRelationExists),
		errors.Is(err, consultantdomain.ErrAlreadyExists),
		errors.Is(err, userdomain.ErrAlreadyExists),
		errors.Is(err, sessiondomain.ErrEnquiryAlreadyWritten):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, sessiondomain.ErrNotFound),
		errors.Is(err, consultantdomain.ErrNotFound),
		errors.Is(err, consultantdomain.ErrAgencyRelationAbsent),
		errors.Is(err, agencydomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
