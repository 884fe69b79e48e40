package authorization

import (
	"context"
	"errors"

	identitydomain "github.com/smallbiznis/counseling/internal/identity/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)

const (
	ObjectEnquiry   = "enquiry"
	ObjectSession   = "session"
	ObjectAgency    = "agency"
	ObjectChatGroup = "chat_group"
)

const (
	ActionEnquiryCreate = "enquiry.create"
	ActionEnquiryAccept = "enquiry.accept"
	ActionSessionAssign = "session.assign"
	ActionSessionView   = "session.view"
	ActionAgencyManage  = "agency.manage"
	// ActionKeepMembership marks roles that are never removed from session groups.
	ActionKeepMembership = "chat_group.keep_membership"
)

type Service interface {
	// Authorize checks whether any of roles grants action on object.
	Authorize(ctx context.Context, roles []identitydomain.Role, object, action string) error
	// HasElevatedAuthority reports whether the identity account holds a role
	// that must stay in every group it belongs to.
	HasElevatedAuthority(ctx context.Context, identityID string) (bool, error)
}

var (
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
