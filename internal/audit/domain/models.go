package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ActorType string

const (
	ActorTypeSystem ActorType = "system"
	ActorTypeAPI    ActorType = "api"
)

// Actions recorded by crewbill.
const (
	ActionCustomerCreate        = "customer.create"
	ActionPersonnelCreate       = "personnel.create"
	ActionProjectCreate         = "project.create"
	ActionRateBracketCreate     = "rate_bracket.create"
	ActionAssignmentCreate      = "assignment.create"
	ActionTimeEntryImport       = "time_entry.import"
	ActionInvoiceCreated        = "invoice.created"
	ActionInvoiceEmissionFailed = "invoice.emission_failed"
)

const (
	TargetCustomer    = "customer"
	TargetPersonnel   = "personnel"
	TargetProject     = "project"
	TargetRateBracket = "rate_bracket"
	TargetAssignment  = "assignment"
	TargetTimeEntry   = "time_entry"
	TargetInvoice     = "invoice"
)

// AuditLog rows written during a bulk submit carry the session that produced
// them, so one run's invoices and failures can be listed together.
type AuditLog struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID         *snowflake.ID     `gorm:"index" json:"organization_id,omitempty"`
	ActorType     string            `gorm:"size:32;not null" json:"actor_type"`
	Action        string            `gorm:"size:128;not null;index" json:"action"`
	TargetType    string            `gorm:"size:64;not null" json:"target_type"`
	TargetID      *string           `gorm:"size:64" json:"target_id,omitempty"`
	BulkSessionID *string           `gorm:"size:64;index" json:"bulk_session_id,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"not null" json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	OrgID         snowflake.ID
	Action        string
	TargetType    string
	TargetID      string
	BulkSessionID string
	StartAt       *time.Time
	EndAt         *time.Time
	Cursor        *AuditCursor
	Limit         int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}
