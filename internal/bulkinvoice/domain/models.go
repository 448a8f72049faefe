// Package domain holds the bulk invoice builder's in-memory model and the
// ports it uses to reach persistence.
package domain

import (
	"time"
)

// Entry is an unbilled-or-billed time entry as seen by the builder. Empty
// CustomerID means the project has no customer. Empty WorkerID means the
// entry has no worker.
type Entry struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	ProjectName  string    `json:"project_name"`
	CustomerID   string    `json:"customer_id,omitempty"`
	CustomerName string    `json:"customer_name,omitempty"`
	WorkerID     string    `json:"worker_id,omitempty"`
	WorkerName   string    `json:"worker_name,omitempty"`
	Hours        float64   `json:"hours"`
	Date         time.Time `json:"date"`
	InvoiceID    string    `json:"invoice_id,omitempty"`
}

// RateBracket is a resolved billing rate.
type RateBracket struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	BillRate           float64 `json:"bill_rate"`
	OvertimeMultiplier float64 `json:"overtime_multiplier"`
}

// RateLookup maps LookupKey(project, worker) to a bracket. A missing key
// means the pair has no bracket.
type RateLookup map[string]RateBracket

func LookupKey(projectID, workerID string) string {
	return projectID + "-" + workerID
}

// AssignmentRow is one active assignment returned by the lookup port.
// Bracket is nil when the assignment carries no bracket.
type AssignmentRow struct {
	PersonnelID string
	ProjectID   string
	Bracket     *AssignmentBracket
}

type AssignmentBracket struct {
	ID                 string
	Name               string
	BillRate           float64
	OvertimeMultiplier *float64
}

// ExclusionCounts reports entries left out of the build.
type ExclusionCounts struct {
	AlreadyInvoiced int `json:"already_invoiced"`
	MissingCustomer int `json:"missing_customer"`
}

type ProjectSummary struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	TotalHours float64 `json:"total_hours"`
}

type Worker struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BracketTotal is the per-bracket breakdown of a customer group.
type BracketTotal struct {
	BracketID          string  `json:"bracket_id"`
	BracketName        string  `json:"bracket_name"`
	BillRate           float64 `json:"bill_rate"`
	OvertimeMultiplier float64 `json:"overtime_multiplier"`
	RegularHours       float64 `json:"regular_hours"`
	OvertimeHours      float64 `json:"overtime_hours"`
	Total              float64 `json:"total"`
}

type LineItemKind string

const (
	LineItemRegular  LineItemKind = "regular"
	LineItemOvertime LineItemKind = "overtime"
)

// LineItem is one billable row. Total is fixed at generation time and
// description edits never change it.
type LineItem struct {
	ID          string       `json:"id"`
	Kind        LineItemKind `json:"kind"`
	BracketID   string       `json:"bracket_id"`
	BracketName string       `json:"bracket_name"`
	ProductName string       `json:"product_name"`
	Description string       `json:"description"`
	Hours       float64      `json:"hours"`
	Rate        float64      `json:"rate"`
	Total       float64      `json:"total"`
	Selected    bool         `json:"selected"`
}

// CustomerGroup aggregates one customer's entries. TotalBillable always
// equals the sum of the selected line items' totals.
type CustomerGroup struct {
	CustomerID               string           `json:"customer_id"`
	CustomerName             string           `json:"customer_name"`
	Projects                 []ProjectSummary `json:"projects"`
	Entries                  []Entry          `json:"entries"`
	TotalHours               float64          `json:"total_hours"`
	RegularHours             float64          `json:"regular_hours"`
	OvertimeHours            float64          `json:"overtime_hours"`
	TotalBillable            float64          `json:"total_billable"`
	LineItems                []LineItem       `json:"line_items"`
	Brackets                 []BracketTotal   `json:"brackets"`
	HasRateBracketIssues     bool             `json:"has_rate_bracket_issues"`
	PersonnelWithoutBrackets []Worker         `json:"personnel_without_brackets"`
	WeekLabel                string           `json:"week_label"`
	Selected                 bool             `json:"selected"`

	// EntryBrackets maps an entry id to its resolved bracket.
	EntryBrackets map[string]RateBracket `json:"-"`
}

// SelectedItems returns the selected line items in display order.
func (g CustomerGroup) SelectedItems() []LineItem {
	items := make([]LineItem, 0, len(g.LineItems))
	for _, item := range g.LineItems {
		if item.Selected {
			items = append(items, item)
		}
	}
	return items
}

// Billable reports whether the group would produce an invoice.
func (g CustomerGroup) Billable() bool {
	return g.Selected && len(g.SelectedItems()) > 0
}

// InvoiceResult is the outcome of one customer's emission attempt.
type InvoiceResult struct {
	CustomerID          string   `json:"customer_id"`
	CustomerName        string   `json:"customer_name"`
	Success             bool     `json:"success"`
	InvoiceID           string   `json:"invoice_id,omitempty"`
	InvoiceNumber       string   `json:"invoice_number,omitempty"`
	Total               float64  `json:"total"`
	LinkedEntries       int      `json:"linked_entries"`
	Error               string   `json:"error,omitempty"`
	FailedStep          string   `json:"failed_step,omitempty"`
	ConflictingEntryIDs []string `json:"conflicting_entry_ids,omitempty"`
}

// InvoiceDraft is the header submitted to the invoice writer.
type InvoiceDraft struct {
	Number       string
	CustomerID   string
	CustomerName string
	ProjectID    string
	ProjectName  string
	IssueDate    time.Time
	DueDate      time.Time
	Subtotal     float64
	TaxRate      float64
	TaxAmount    float64
	Total        float64
	Metadata     map[string]any
}

type CreatedInvoice struct {
	ID     string
	Number string
}
