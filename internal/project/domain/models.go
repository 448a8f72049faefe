package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusArchived ProjectStatus = "archived"
)

type AssignmentStatus string

const (
	AssignmentStatusActive   AssignmentStatus = "active"
	AssignmentStatusInactive AssignmentStatus = "inactive"
)

// DefaultOvertimeMultiplier applies to brackets without an explicit multiplier.
const DefaultOvertimeMultiplier = 1.5

type Project struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID  `gorm:"not null;index" json:"organization_id"`
	Name       string        `gorm:"not null" json:"name"`
	CustomerID *snowflake.ID `gorm:"index" json:"customer_id,omitempty"`
	Status     ProjectStatus `gorm:"size:32;not null;default:'active'" json:"status"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Project) TableName() string { return "projects" }

// RateBracket is a named bill rate scoped to a project.
type RateBracket struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID              snowflake.ID `gorm:"not null;index" json:"organization_id"`
	ProjectID          snowflake.ID `gorm:"not null;index" json:"project_id"`
	Name               string       `gorm:"not null" json:"name"`
	BillRate           float64      `gorm:"not null" json:"bill_rate"`
	OvertimeMultiplier *float64     `json:"overtime_multiplier,omitempty"`
	Active             bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (RateBracket) TableName() string { return "rate_brackets" }

// Assignment places a worker on a project, optionally under a rate bracket.
type Assignment struct {
	ID            snowflake.ID     `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID     `gorm:"not null;index" json:"organization_id"`
	ProjectID     snowflake.ID     `gorm:"not null;index" json:"project_id"`
	PersonnelID   snowflake.ID     `gorm:"not null;index" json:"personnel_id"`
	RateBracketID *snowflake.ID    `json:"rate_bracket_id,omitempty"`
	Status        AssignmentStatus `gorm:"size:32;not null;default:'active'" json:"status"`
	CreatedAt     time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Assignment) TableName() string { return "project_assignments" }

// ActiveAssignment is an active assignment row joined with its bracket.
// Bracket fields are empty when the assignment has no bracket.
type ActiveAssignment struct {
	ProjectID          snowflake.ID  `gorm:"column:project_id"`
	PersonnelID        snowflake.ID  `gorm:"column:personnel_id"`
	RateBracketID      *snowflake.ID `gorm:"column:rate_bracket_id"`
	BracketName        *string       `gorm:"column:bracket_name"`
	BillRate           *float64      `gorm:"column:bill_rate"`
	OvertimeMultiplier *float64      `gorm:"column:overtime_multiplier"`
}
