package domain

import (
	"context"
	"time"
)

type AssignmentLookup interface {
	ListActiveAssignments(ctx context.Context, projectIDs, personnelIDs []string) ([]AssignmentRow, error)
}

type EntryFilter struct {
	ProjectIDs []string
	From       *time.Time
	To         *time.Time
}

type EntrySource interface {
	ListCandidateEntries(ctx context.Context, filter EntryFilter) ([]Entry, error)
}

type InvoiceNumberer interface {
	Next(ctx context.Context) (string, error)
}

type InvoiceWriter interface {
	InsertInvoice(ctx context.Context, draft InvoiceDraft) (CreatedInvoice, error)
	InsertLineItems(ctx context.Context, invoiceID string, items []LineItem) error
	DeleteInvoice(ctx context.Context, invoiceID string) error
	DeleteLineItems(ctx context.Context, invoiceID string) error
}

// EntryLinker links entries to an invoice only while they are unbilled.
// Entries that were not linked are returned as conflicts and nothing is
// linked in that case.
type EntryLinker interface {
	LinkEntries(ctx context.Context, entryIDs []string, invoiceID string, at time.Time) (conflicts []string, err error)
	UnlinkEntries(ctx context.Context, invoiceID string) error
}

// CustomerLocker guards a customer's emission across sessions.
type CustomerLocker interface {
	Acquire(ctx context.Context, customerID string) (release func(context.Context) error, err error)
}
