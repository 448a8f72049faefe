package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *TimeEntry) error
	BatchInsert(ctx context.Context, db *gorm.DB, entries []TimeEntry) error
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListTimeEntryFilter, page pagination.Pagination) ([]*TimeEntry, error)
	ListCandidates(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter CandidateFilter) ([]CandidateEntry, error)
	// LinkEntries sets the invoice on entries that are still unbilled and
	// returns the ids that were linked.
	LinkEntries(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID, invoiceID snowflake.ID, at time.Time) ([]snowflake.ID, error)
	UnlinkEntries(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) (int64, error)
}

type CreateTimeEntryRequest struct {
	ProjectID   string  `json:"project_id"`
	PersonnelID string  `json:"personnel_id"`
	Hours       float64 `json:"hours"`
	EntryDate   string  `json:"entry_date"`
	Description string  `json:"description"`
}

type ListTimeEntryRequest struct {
	PageToken   string
	PageSize    int32
	ProjectID   string
	PersonnelID string
	Unbilled    bool
	From        string
	To          string
}

type ListTimeEntryFilter struct {
	ProjectID   *snowflake.ID
	PersonnelID *snowflake.ID
	Unbilled    bool
	From        *time.Time
	To          *time.Time
}

type ListTimeEntryResponse struct {
	pagination.PageInfo
	TimeEntries []TimeEntry `json:"time_entries"`
}

// ImportRowError reports a spreadsheet row that could not be imported.
type ImportRowError struct {
	Row     int    `json:"row"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ImportResult struct {
	Imported int              `json:"imported"`
	Skipped  []ImportRowError `json:"skipped,omitempty"`
}

type Service interface {
	Create(context.Context, CreateTimeEntryRequest) (TimeEntry, error)
	List(context.Context, ListTimeEntryRequest) (ListTimeEntryResponse, error)
	Import(context.Context, io.Reader) (ImportResult, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidProject      = errors.New("invalid_project")
	ErrInvalidPersonnel    = errors.New("invalid_personnel")
	ErrInvalidHours        = errors.New("invalid_hours")
	ErrInvalidEntryDate    = errors.New("invalid_entry_date")
	ErrInvalidWorkbook     = errors.New("invalid_workbook")
	ErrMissingColumn       = errors.New("missing_column")
)

// MaxHoursPerEntry bounds a single day's entry.
const MaxHoursPerEntry = 24
