package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Consultant struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	IdentityID     string       `gorm:"not null;uniqueIndex" json:"identity_id"`
	ChatID         string       `gorm:"column:chat_id;not null;default:'';index" json:"chat_id"`
	Username       string       `gorm:"not null;uniqueIndex" json:"username"`
	Email          string       `gorm:"not null" json:"email"`
	FirstName      string       `gorm:"not null;default:''" json:"first_name"`
	LastName       string       `gorm:"not null;default:''" json:"last_name"`
	TeamConsultant bool         `gorm:"not null;default:false" json:"team_consultant"`
	Absent         bool         `gorm:"not null;default:false" json:"absent"`
	AbsenceMessage string       `gorm:"not null;default:''" json:"absence_message,omitempty"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Agencies []ConsultantAgency `gorm:"-" json:"agencies,omitempty"`
}

func (Consultant) TableName() string { return "consultants" }

// HasChatID reports whether the consultant exists in the chat backend.
func (c Consultant) HasChatID() bool {
	return c.ChatID != ""
}

// ServesAgency reports whether one of the consultant's relations points at agencyID.
func (c Consultant) ServesAgency(agencyID snowflake.ID) bool {
	for _, rel := range c.Agencies {
		if rel.AgencyID == agencyID {
			return true
		}
	}
	return false
}

// ServesConsultingType reports whether one of the consultant's agencies handles consultingType.
func (c Consultant) ServesConsultingType(consultingType int) bool {
	for _, rel := range c.Agencies {
		if rel.ConsultingType == consultingType {
			return true
		}
	}
	return false
}

func (c Consultant) AgencyIDs() []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(c.Agencies))
	for _, rel := range c.Agencies {
		ids = append(ids, rel.AgencyID)
	}
	return ids
}

type ConsultantAgency struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	ConsultantID   snowflake.ID `gorm:"not null;uniqueIndex:ux_consultant_agency" json:"consultant_id"`
	AgencyID       snowflake.ID `gorm:"not null;uniqueIndex:ux_consultant_agency;index" json:"agency_id"`
	ConsultingType int          `gorm:"not null" json:"consulting_type"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (ConsultantAgency) TableName() string { return "consultant_agencies" }
