package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is an advice seeker. Username is stored encoded, see Encode.
type User struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	IdentityID     string       `gorm:"not null;uniqueIndex" json:"identity_id"`
	ChatID         *string      `gorm:"column:chat_id;index" json:"chat_id,omitempty"`
	Username       string       `gorm:"not null;uniqueIndex" json:"username"`
	Email          string       `gorm:"not null" json:"email"`
	LanguageFormal bool         `gorm:"not null;default:false" json:"language_formal"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (User) TableName() string { return "users" }

func (u User) HasChatID() bool {
	return u.ChatID != nil && *u.ChatID != ""
}
