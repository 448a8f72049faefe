package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	InsertInvoice(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	InsertLineItems(ctx context.Context, db *gorm.DB, items []LineItem) error
	DeleteInvoice(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error
	DeleteLineItems(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Invoice, error)
	ListLineItems(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) ([]LineItem, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListInvoiceFilter, page pagination.Pagination) ([]*Invoice, error)
	// NextSequence reserves the next sequence value for the organization.
	NextSequence(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)
}

type ListInvoiceRequest struct {
	PageToken  string
	PageSize   int32
	CustomerID string
	Status     string
}

type ListInvoiceFilter struct {
	CustomerID *snowflake.ID
	Status     InvoiceStatus
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type InvoiceWithItems struct {
	Invoice
	LineItems []LineItem `json:"line_items"`
}

type Service interface {
	List(context.Context, ListInvoiceRequest) (ListInvoiceResponse, error)
	GetByID(ctx context.Context, id string) (InvoiceWithItems, error)
	NextNumber(ctx context.Context) (string, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrNotFound            = errors.New("not_found")
)
