package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Agency struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	Name           string       `gorm:"not null" json:"name"`
	Postcode       string       `gorm:"not null" json:"postcode"`
	ConsultingType int          `gorm:"not null;index" json:"consulting_type"`
	TeamAgency     bool         `gorm:"not null;default:false" json:"team_agency"`
	Offline        bool         `gorm:"not null;default:false" json:"offline"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Agency) TableName() string { return "agencies" }
