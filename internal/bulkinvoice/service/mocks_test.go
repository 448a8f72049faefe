package service

import (
	"context"
	"time"

	auditdomain "github.com/smallbiznis/crewbill/internal/audit/domain"
	"github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
	"github.com/stretchr/testify/mock"
)

type mockEntries struct{ mock.Mock }

func (m *mockEntries) ListCandidateEntries(ctx context.Context, filter domain.EntryFilter) ([]domain.Entry, error) {
	args := m.Called(ctx, filter)
	entries, _ := args.Get(0).([]domain.Entry)
	return entries, args.Error(1)
}

type mockAssignments struct{ mock.Mock }

func (m *mockAssignments) ListActiveAssignments(ctx context.Context, projectIDs, personnelIDs []string) ([]domain.AssignmentRow, error) {
	args := m.Called(ctx, projectIDs, personnelIDs)
	rows, _ := args.Get(0).([]domain.AssignmentRow)
	return rows, args.Error(1)
}

type mockNumbers struct{ mock.Mock }

func (m *mockNumbers) Next(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type mockInvoices struct{ mock.Mock }

func (m *mockInvoices) InsertInvoice(ctx context.Context, draft domain.InvoiceDraft) (domain.CreatedInvoice, error) {
	args := m.Called(ctx, draft)
	created, _ := args.Get(0).(domain.CreatedInvoice)
	return created, args.Error(1)
}

func (m *mockInvoices) InsertLineItems(ctx context.Context, invoiceID string, items []domain.LineItem) error {
	return m.Called(ctx, invoiceID, items).Error(0)
}

func (m *mockInvoices) DeleteInvoice(ctx context.Context, invoiceID string) error {
	return m.Called(ctx, invoiceID).Error(0)
}

func (m *mockInvoices) DeleteLineItems(ctx context.Context, invoiceID string) error {
	return m.Called(ctx, invoiceID).Error(0)
}

type mockLinker struct{ mock.Mock }

func (m *mockLinker) LinkEntries(ctx context.Context, entryIDs []string, invoiceID string, at time.Time) ([]string, error) {
	args := m.Called(ctx, entryIDs, invoiceID, at)
	conflicts, _ := args.Get(0).([]string)
	return conflicts, args.Error(1)
}

func (m *mockLinker) UnlinkEntries(ctx context.Context, invoiceID string) error {
	return m.Called(ctx, invoiceID).Error(0)
}

type mockLocker struct{ mock.Mock }

func (m *mockLocker) Acquire(ctx context.Context, customerID string) (func(context.Context) error, error) {
	args := m.Called(ctx, customerID)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	return func(context.Context) error { return nil }, nil
}

type mockAudit struct{ mock.Mock }

func (m *mockAudit) Record(ctx context.Context, event auditdomain.Event) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockAudit) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(auditdomain.ListAuditLogResponse)
	return resp, args.Error(1)
}
