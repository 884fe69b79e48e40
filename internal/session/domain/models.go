package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusInitial    Status = "INITIAL"
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusInitial, StatusNew, StatusInProgress, StatusDone:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

type RegistrationType string

const (
	RegistrationRegistered RegistrationType = "REGISTERED"
	RegistrationAnonymous  RegistrationType = "ANONYMOUS"
)

func ParseRegistrationType(raw string) (RegistrationType, error) {
	switch rt := RegistrationType(raw); rt {
	case RegistrationRegistered, RegistrationAnonymous:
		return rt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRegistrationType, raw)
	}
}

// Session is one counseling case. A session in IN_PROGRESS always has a
// consultant, and EnquiryMessageAt is written at most once.
type Session struct {
	ID               snowflake.ID     `gorm:"primaryKey" json:"id"`
	UserID           snowflake.ID     `gorm:"not null;index" json:"user_id"`
	ConsultantID     *snowflake.ID    `gorm:"index" json:"consultant_id,omitempty"`
	ConsultingType   int              `gorm:"not null" json:"consulting_type"`
	Status           Status           `gorm:"type:varchar(16);not null;index" json:"status"`
	RegistrationType RegistrationType `gorm:"type:varchar(16);not null" json:"registration_type"`
	Postcode         string           `gorm:"not null" json:"postcode"`
	AgencyID         snowflake.ID     `gorm:"not null;index" json:"agency_id"`
	GroupID          string           `gorm:"column:group_id;not null;default:'';index" json:"group_id,omitempty"`
	FeedbackGroupID  string           `gorm:"column:feedback_group_id;not null;default:'';index" json:"feedback_group_id,omitempty"`
	TeamSession      bool             `gorm:"not null;default:false" json:"team_session"`
	Monitoring       bool             `gorm:"not null;default:false" json:"monitoring"`
	LanguageCode     string           `gorm:"not null;default:'de'" json:"language_code"`
	EnquiryMessageAt *time.Time       `gorm:"column:enquiry_message_at" json:"enquiry_message_at,omitempty"`
	CreatedAt        time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Session) TableName() string { return "sessions" }

func (s Session) HasEnquiry() bool {
	return s.EnquiryMessageAt != nil
}

func (s Session) HasConsultant() bool {
	return s.ConsultantID != nil && *s.ConsultantID != 0
}

func (s Session) AssignedTo(consultantID snowflake.ID) bool {
	return s.HasConsultant() && *s.ConsultantID == consultantID
}

func (s Session) HasFeedbackGroup() bool {
	return s.FeedbackGroupID != ""
}

// GroupIDs lists the chat groups backing the session, main group first.
func (s Session) GroupIDs() []string {
	ids := make([]string, 0, 2)
	if s.GroupID != "" {
		ids = append(ids, s.GroupID)
	}
	if s.FeedbackGroupID != "" {
		ids = append(ids, s.FeedbackGroupID)
	}
	return ids
}
