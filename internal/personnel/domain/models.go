package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Personnel is a worker who logs time against projects.
type Personnel struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index" json:"organization_id"`
	FirstName string       `gorm:"not null" json:"first_name"`
	LastName  string       `gorm:"not null" json:"last_name"`
	Email     string       `json:"email,omitempty"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Personnel) TableName() string { return "personnel" }

func (p Personnel) DisplayName() string {
	return DisplayName(p.FirstName, p.LastName)
}

// DisplayName joins first and last name, skipping empty parts.
func DisplayName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
