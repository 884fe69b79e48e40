package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateConsultantRequest struct {
	IdentityID     string
	ChatID         string
	Username       string
	Email          string
	FirstName      string
	LastName       string
	TeamConsultant bool
}

type Service interface {
	Create(context.Context, CreateConsultantRequest) (Consultant, error)
	GetByID(context.Context, snowflake.ID) (Consultant, error)
	GetByChatID(context.Context, string) (Consultant, error)
	GetByIdentityID(context.Context, string) (Consultant, error)
	ListByAgency(context.Context, snowflake.ID) ([]Consultant, error)

	// AddAgency relates the consultant to an agency and adds them to the
	// groups of the agency's open enquiries and team sessions.
	AddAgency(ctx context.Context, consultantID, agencyID snowflake.ID) error
	// RemoveAgency removes the consultant from those groups and deletes the relation.
	RemoveAgency(ctx context.Context, consultantID, agencyID snowflake.ID) error
}

var (
	ErrInvalidIdentityID    = errors.New("invalid_identity_id")
	ErrInvalidUsername      = errors.New("invalid_username")
	ErrNotFound             = errors.New("consultant_not_found")
	ErrAlreadyExists        = errors.New("consultant_already_exists")
	ErrAgencyRelationExists = errors.New("consultant_agency_exists")
	ErrAgencyRelationAbsent = errors.New("consultant_agency_not_found")
)
