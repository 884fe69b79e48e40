package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type InitializeRequest struct {
	UserID           snowflake.ID
	ConsultingType   int
	AgencyID         snowflake.ID
	Postcode         string
	RegistrationType RegistrationType
	Status           Status
	TeamSession      bool
	Monitoring       bool
	LanguageCode     string
}

type MarkEnquiryRequest struct {
	SessionID       snowflake.ID
	GroupID         string
	FeedbackGroupID string
}

type Service interface {
	Initialize(context.Context, InitializeRequest) (Session, error)
	Get(context.Context, snowflake.ID) (Session, error)
	FindByGroupID(context.Context, string) (Session, error)
	FindByFeedbackGroupID(context.Context, string) (Session, error)
	UpdateConsultantAndStatus(ctx context.Context, id snowflake.ID, consultantID *snowflake.ID, status Status) error
	MarkEnquiry(context.Context, MarkEnquiryRequest) (Session, error)
	ListEnquiriesForAgencies(ctx context.Context, agencyIDs []snowflake.ID, registrationType RegistrationType) ([]Session, error)
	ListTeamSessionsForAgencies(ctx context.Context, agencyIDs []snowflake.ID) ([]Session, error)
	ListByConsultantAndStatus(ctx context.Context, consultantID snowflake.ID, status Status) ([]Session, error)
	Delete(context.Context, snowflake.ID) error
}

var (
	ErrInvalidStatus           = errors.New("invalid_session_status")
	ErrInvalidRegistrationType = errors.New("invalid_registration_type")
	ErrInvalidUser             = errors.New("invalid_user")
	ErrInvalidAgency           = errors.New("invalid_agency")
	ErrInvalidGroupID          = errors.New("invalid_group_id")
	ErrConsultantRequired      = errors.New("consultant_required")
	ErrEnquiryAlreadyWritten   = errors.New("enquiry_already_written")
	ErrNotFound                = errors.New("session_not_found")
)
