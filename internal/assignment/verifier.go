package assignment

import (
	"github.com/smallbiznis/counseling/internal/apperror"
	consultantdomain "github.com/smallbiznis/counseling/internal/consultant/domain"
	sessiondomain "github.com/smallbiznis/counseling/internal/session/domain"
	userdomain "github.com/smallbiznis/counseling/internal/user/domain"
)

// Purpose distinguishes accepting an open enquiry from handing over a session.
type Purpose string

const (
	PurposeAccept   Purpose = "accept"
	PurposeReassign Purpose = "reassign"
)

func ParsePurpose(raw string) (Purpose, error) {
	switch p := Purpose(raw); p {
	case PurposeAccept, PurposeReassign:
		return p, nil
	case "":
		return PurposeAccept, nil
	default:
		return "", apperror.Validation("invalid_purpose", "unknown assignment purpose %q", raw)
	}
}

type Request struct {
	Session     sessiondomain.Session
	SessionUser userdomain.User
	Consultant  consultantdomain.Consultant
	Purpose     Purpose
}

type check func(Request) error

// Verifier decides whether a consultant may take over a session. Checks run
// in a fixed order and the first failing one decides the error.
type Verifier struct {
	checks []check
}

func NewVerifier() *Verifier {
	return &Verifier{checks: []check{
		checkNotInProgress,
		checkReleased,
		checkNotAssignedToSame,
		checkConsultantInChat,
		checkUserInChat,
		checkRelation,
	}}
}

func (v *Verifier) Verify(req Request) error {
	for _, c := range v.checks {
		if err := c(req); err != nil {
			return err
		}
	}
	return nil
}

func checkNotInProgress(req Request) error {
	if req.Purpose == PurposeAccept && req.Session.Status == sessiondomain.StatusInProgress {
		return apperror.Conflict("session_in_progress", "session %s is already in progress", req.Session.ID)
	}
	return nil
}

func checkReleased(req Request) error {
	if req.Purpose == PurposeReassign &&
		req.Session.RegistrationType == sessiondomain.RegistrationRegistered &&
		req.Session.Status == sessiondomain.StatusNew {
		return apperror.Conflict("session_not_released", "session %s is not yet released for assignment", req.Session.ID)
	}
	return nil
}

func checkNotAssignedToSame(req Request) error {
	if req.Session.AssignedTo(req.Consultant.ID) {
		return apperror.Conflict("already_assigned", "session %s is already assigned to consultant %s", req.Session.ID, req.Consultant.ID)
	}
	return nil
}

func checkConsultantInChat(req Request) error {
	if !req.Consultant.HasChatID() {
		return apperror.Internal(nil, "consultant %s has no chat user", req.Consultant.ID)
	}
	return nil
}

func checkUserInChat(req Request) error {
	if !req.SessionUser.HasChatID() {
		return apperror.Internal(nil, "user %s of session %s has no chat user", req.SessionUser.ID, req.Session.ID)
	}
	return nil
}

func checkRelation(req Request) error {
	switch req.Session.RegistrationType {
	case sessiondomain.RegistrationAnonymous:
		if !req.Consultant.ServesConsultingType(req.Session.ConsultingType) {
			return apperror.Forbidden("consulting_type_not_served", "consultant %s does not serve consulting type %d", req.Consultant.ID, req.Session.ConsultingType)
		}
	case sessiondomain.RegistrationRegistered:
		if !req.Consultant.ServesAgency(req.Session.AgencyID) {
			return apperror.Forbidden("agency_not_served", "consultant %s is not assigned to agency %s", req.Consultant.ID, req.Session.AgencyID)
		}
	default:
		return apperror.Forbidden("unknown_registration_type", "session %s has registration type %q", req.Session.ID, req.Session.RegistrationType)
	}
	return nil
}
