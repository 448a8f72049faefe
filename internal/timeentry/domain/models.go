package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TimeEntry is a unit of recorded labor. Once InvoiceID is set the entry is
// never billed again.
type TimeEntry struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID       snowflake.ID  `gorm:"not null;index" json:"organization_id"`
	ProjectID   snowflake.ID  `gorm:"not null;index" json:"project_id"`
	PersonnelID *snowflake.ID `gorm:"index" json:"personnel_id,omitempty"`
	Hours       float64       `gorm:"not null" json:"hours"`
	EntryDate   time.Time     `gorm:"not null;index" json:"entry_date"`
	Description string        `json:"description,omitempty"`
	InvoiceID   *snowflake.ID `gorm:"index" json:"invoice_id,omitempty"`
	InvoicedAt  *time.Time    `json:"invoiced_at,omitempty"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (TimeEntry) TableName() string { return "time_entries" }

// CandidateEntry is a time entry joined with its project, customer and worker.
type CandidateEntry struct {
	ID                 snowflake.ID  `gorm:"column:id"`
	ProjectID          snowflake.ID  `gorm:"column:project_id"`
	ProjectName        string        `gorm:"column:project_name"`
	CustomerID         *snowflake.ID `gorm:"column:customer_id"`
	CustomerName       *string       `gorm:"column:customer_name"`
	PersonnelID        *snowflake.ID `gorm:"column:personnel_id"`
	PersonnelFirstName *string       `gorm:"column:personnel_first_name"`
	PersonnelLastName  *string       `gorm:"column:personnel_last_name"`
	Hours              float64       `gorm:"column:hours"`
	EntryDate          time.Time     `gorm:"column:entry_date"`
	InvoiceID          *snowflake.ID `gorm:"column:invoice_id"`
}

type CandidateFilter struct {
	ProjectIDs []snowflake.ID
	From       *time.Time
	To         *time.Time
}
