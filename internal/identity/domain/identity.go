package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Role is a realm role known to the platform.
type Role string

const (
	RoleUser                Role = "user"
	RoleAnonymous           Role = "anonymous"
	RoleConsultant          Role = "consultant"
	RoleTechnical           Role = "technical"
	RoleU25Consultant       Role = "u25-consultant"
	RoleU25MainConsultant   Role = "u25-main-consultant"
	RoleKreuzbundConsultant Role = "kreuzbund-consultant"
	RoleUserAdmin           Role = "user-admin"
)

// ParseRole accepts only the roles above.
func ParseRole(raw string) (Role, error) {
	switch role := Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case RoleUser, RoleAnonymous, RoleConsultant, RoleTechnical, RoleU25Consultant,
		RoleU25MainConsultant, RoleKreuzbundConsultant, RoleUserAdmin:
		return role, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}

// Profile is the data needed to create an identity-provider account.
// Username is already in its stored (encoded) form.
type Profile struct {
	Username string
	Email    string
	Locale   string
}

type AccountRef struct {
	ID       string
	Username string
	Email    string
}

// ConflictError is returned by CreateAccount when the provider rejects a duplicate.
type ConflictError struct {
	UsernameAvailable bool
	EmailAvailable    bool
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("identity account conflict (username available: %t, email available: %t)",
		e.UsernameAvailable, e.EmailAvailable)
}

// Client is the identity provider as seen by the coordination services.
type Client interface {
	CreateAccount(ctx context.Context, profile Profile) (AccountRef, error)
	AssignRole(ctx context.Context, accountID string, role Role) error
	SetPassword(ctx context.Context, accountID, password string) error
	SetEmail(ctx context.Context, accountID, email string) error
	DeleteAccount(ctx context.Context, accountID string) error
	IsEmailAvailable(ctx context.Context, email string) (bool, error)
	FindByUsername(ctx context.Context, username string) ([]AccountRef, error)
	ListRoles(ctx context.Context, accountID string) ([]Role, error)
}

var (
	ErrUnknownRole       = errors.New("unknown_role")
	ErrAccountNotFound   = errors.New("account_not_found")
	ErrRoleNotAssigned   = errors.New("role_not_assigned")
	ErrProviderFailure   = errors.New("identity_provider_failure")
	ErrMissingAccountRef = errors.New("missing_account_id")
)

// AsConflict extracts a *ConflictError from err.
func AsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}
