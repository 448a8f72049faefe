package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/crewbill/internal/audit/domain"
	"github.com/smallbiznis/crewbill/internal/audit/repository"
	"github.com/smallbiznis/crewbill/internal/clock"
	obscontext "github.com/smallbiznis/crewbill/internal/observability/context"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) auditdomain.Service {
	return newTestServiceWithClock(t, clock.New())
}

func newTestServiceWithClock(t *testing.T, clk clock.Clock) auditdomain.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&auditdomain.AuditLog{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(Params{DB: db, Log: zap.NewNop(), Clock: clk, GenID: node, Repo: repository.Provide()})
}

func TestRecordCapturesRequestContext(t *testing.T) {
	svc := newTestService(t)
	ctx := orgcontext.WithOrgID(context.Background(), 9)
	ctx = obscontext.WithRequestID(ctx, "req-1")
	ctx = obscontext.WithSessionID(ctx, "sess-1")

	require.NoError(t, svc.Record(ctx, auditdomain.Event{
		Action:     auditdomain.ActionInvoiceCreated,
		TargetType: auditdomain.TargetInvoice,
		TargetID:   "123",
		Metadata: map[string]any{
			"invoice_number": "INV-000001",
			"customer_email": "ops@acme.test",
		},
	}))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: auditdomain.ActionInvoiceCreated})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "api", entry.ActorType)
	assert.Equal(t, "invoice", entry.TargetType)
	require.NotNil(t, entry.TargetID)
	assert.Equal(t, "123", *entry.TargetID)
	require.NotNil(t, entry.BulkSessionID)
	assert.Equal(t, "sess-1", *entry.BulkSessionID)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	assert.Equal(t, "o****@acme.test", entry.Metadata["customer_email"])
}

func TestListFiltersByBulkSession(t *testing.T) {
	svc := newTestService(t)
	ctx := orgcontext.WithOrgID(context.Background(), 9)

	require.NoError(t, svc.Record(obscontext.WithSessionID(ctx, "sess-a"), auditdomain.Event{
		Action: auditdomain.ActionInvoiceCreated, TargetType: auditdomain.TargetInvoice, TargetID: "1",
	}))
	require.NoError(t, svc.Record(obscontext.WithSessionID(ctx, "sess-b"), auditdomain.Event{
		Action: auditdomain.ActionInvoiceEmissionFailed, TargetType: auditdomain.TargetInvoice, TargetID: "2",
	}))
	require.NoError(t, svc.Record(ctx, auditdomain.Event{
		Action: auditdomain.ActionTimeEntryImport, TargetType: auditdomain.TargetTimeEntry,
	}))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{BulkSessionID: "sess-b"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, auditdomain.ActionInvoiceEmissionFailed, resp.AuditLogs[0].Action)
	assert.Equal(t, "system", resp.AuditLogs[0].ActorType)

	resp, err = svc.List(ctx, auditdomain.ListAuditLogRequest{TargetType: auditdomain.TargetTimeEntry})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Nil(t, resp.AuditLogs[0].TargetID)
	assert.Nil(t, resp.AuditLogs[0].BulkSessionID)
}

func TestListPagesWithCursor(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	svc := newTestServiceWithClock(t, clk)
	ctx := orgcontext.WithOrgID(context.Background(), 9)
	for i := 0; i < 3; i++ {
		clk.Advance(time.Second)
		require.NoError(t, svc.Record(ctx, auditdomain.Event{
			Action: auditdomain.ActionCustomerCreate, TargetType: auditdomain.TargetCustomer, TargetID: fmt.Sprint(i),
		}))
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	require.True(t, first.PageInfo.HasMore)
	require.NotEmpty(t, first.PageInfo.NextPageToken)

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{PageSize: 2, PageToken: first.PageInfo.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.PageInfo.HasMore)
	assert.NotEqual(t, first.AuditLogs[1].ID, second.AuditLogs[0].ID)
}

func TestRecordValidation(t *testing.T) {
	svc := newTestService(t)
	assert.ErrorIs(t, svc.Record(context.Background(), auditdomain.Event{Action: " ", TargetType: "invoice"}), auditdomain.ErrInvalidAction)

	_, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidOrganization)

	_, err = svc.List(orgcontext.WithOrgID(context.Background(), 9), auditdomain.ListAuditLogRequest{PageToken: "%%%"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
