// Package domain contains persistence models for invoicing.
package domain

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft InvoiceStatus = "draft"
)

// LineItemKind tags a line as regular or overtime time.
type LineItemKind string

const (
	LineItemKindRegular  LineItemKind = "regular"
	LineItemKindOvertime LineItemKind = "overtime"
)

// Invoice is an invoice header. Amounts are in cents.
type Invoice struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_invoice_number" json:"organization_id"`
	InvoiceNumber  string            `gorm:"size:64;not null;uniqueIndex:ux_invoice_number" json:"invoice_number"`
	CustomerID     snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	CustomerName   string            `gorm:"not null" json:"customer_name"`
	ProjectID      *snowflake.ID     `gorm:"index" json:"project_id,omitempty"`
	ProjectName    string            `json:"project_name"`
	Status         InvoiceStatus     `gorm:"size:32;not null;default:'draft'" json:"status"`
	IssueDate      time.Time         `gorm:"not null" json:"issue_date"`
	DueDate        time.Time         `gorm:"not null" json:"due_date"`
	SubtotalAmount int64             `gorm:"not null;default:0" json:"subtotal_amount"`
	TaxRate        float64           `gorm:"not null;default:0" json:"tax_rate"`
	TaxAmount      int64             `gorm:"not null;default:0" json:"tax_amount"`
	TotalAmount    int64             `gorm:"not null;default:0" json:"total_amount"`
	Metadata       datatypes.JSONMap `gorm:"not null" json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// LineItem is a line on an invoice. Quantity is hours.
type LineItem struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID         snowflake.ID  `gorm:"not null;index" json:"organization_id"`
	InvoiceID     snowflake.ID  `gorm:"not null;index" json:"invoice_id"`
	ProductName   string        `gorm:"not null" json:"product_name"`
	Description   string        `gorm:"type:text" json:"description"`
	Quantity      float64       `gorm:"not null" json:"quantity"`
	UnitPrice     int64         `gorm:"not null" json:"unit_price"`
	Markup        float64       `gorm:"not null;default:0" json:"markup"`
	TotalAmount   int64         `gorm:"not null" json:"total_amount"`
	SortOrder     int           `gorm:"not null;default:0" json:"sort_order"`
	RateBracketID *snowflake.ID `json:"rate_bracket_id,omitempty"`
	Kind          LineItemKind  `gorm:"size:32;not null" json:"kind"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "invoice_line_items" }

// InvoiceSequence holds the next invoice sequence value per organization.
type InvoiceSequence struct {
	OrgID     snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	NextValue int64        `gorm:"not null"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvoiceSequence) TableName() string { return "invoice_sequences" }

// ToCents converts a currency amount to whole cents.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
