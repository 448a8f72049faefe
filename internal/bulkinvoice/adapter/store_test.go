package adapter

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
	bulkservice "github.com/smallbiznis/crewbill/internal/bulkinvoice/service"
	"github.com/smallbiznis/crewbill/internal/clock"
	"github.com/smallbiznis/crewbill/internal/config"
	customerdomain "github.com/smallbiznis/crewbill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/crewbill/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/crewbill/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/crewbill/internal/invoice/service"
	"github.com/smallbiznis/crewbill/internal/lock"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
	personneldomain "github.com/smallbiznis/crewbill/internal/personnel/domain"
	projectdomain "github.com/smallbiznis/crewbill/internal/project/domain"
	projectrepo "github.com/smallbiznis/crewbill/internal/project/repository"
	timeentrydomain "github.com/smallbiznis/crewbill/internal/timeentry/domain"
	timeentryrepo "github.com/smallbiznis/crewbill/internal/timeentry/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testOrg = snowflake.ID(77)

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	store    *Store
	customer customerdomain.Customer
	project  projectdomain.Project
	workerA  personneldomain.Personnel
	workerB  personneldomain.Personnel
	entries  []timeentrydomain.TimeEntry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&personneldomain.Personnel{},
		&projectdomain.Project{},
		&projectdomain.RateBracket{},
		&projectdomain.Assignment{},
		&timeentrydomain.TimeEntry{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
		&invoicedomain.InvoiceSequence{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, time.January, 20, 9, 0, 0, 0, time.UTC))
	now := fake.Now()

	f := &fixture{db: db, node: node, clock: fake}
	f.customer = customerdomain.Customer{ID: node.Generate(), OrgID: testOrg, Name: "Acme", Email: "ops@acme.test", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.Create(&f.customer).Error)
	f.project = projectdomain.Project{ID: node.Generate(), OrgID: testOrg, Name: "Tower", CustomerID: &f.customer.ID, Status: projectdomain.ProjectStatusActive, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.Create(&f.project).Error)

	f.workerA = personneldomain.Personnel{ID: node.Generate(), OrgID: testOrg, FirstName: "Ada", LastName: "Lovelace", Email: "ada@crew.test", CreatedAt: now, UpdatedAt: now}
	f.workerB = personneldomain.Personnel{ID: node.Generate(), OrgID: testOrg, FirstName: "Bob", LastName: "Builder", Email: "bob@crew.test", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.Create(&f.workerA).Error)
	require.NoError(t, db.Create(&f.workerB).Error)

	multiplier := 1.5
	senior := projectdomain.RateBracket{ID: node.Generate(), OrgID: testOrg, ProjectID: f.project.ID, Name: "Senior", BillRate: 50, OvertimeMultiplier: &multiplier, Active: true, CreatedAt: now, UpdatedAt: now}
	junior := projectdomain.RateBracket{ID: node.Generate(), OrgID: testOrg, ProjectID: f.project.ID, Name: "Junior", BillRate: 40, Active: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.Create(&senior).Error)
	require.NoError(t, db.Create(&junior).Error)

	for _, a := range []projectdomain.Assignment{
		{ID: node.Generate(), OrgID: testOrg, ProjectID: f.project.ID, PersonnelID: f.workerA.ID, RateBracketID: &senior.ID, Status: projectdomain.AssignmentStatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: node.Generate(), OrgID: testOrg, ProjectID: f.project.ID, PersonnelID: f.workerB.ID, RateBracketID: &junior.ID, Status: projectdomain.AssignmentStatusActive, CreatedAt: now, UpdatedAt: now},
	} {
		require.NoError(t, db.Create(&a).Error)
	}

	for _, row := range []struct {
		worker snowflake.ID
		hours  float64
		day    int
	}{
		{f.workerA.ID, 25, 6},
		{f.workerA.ID, 20, 7},
		{f.workerB.ID, 30, 8},
	} {
		worker := row.worker
		entry := timeentrydomain.TimeEntry{
			ID:          node.Generate(),
			OrgID:       testOrg,
			ProjectID:   f.project.ID,
			PersonnelID: &worker,
			Hours:       row.hours,
			EntryDate:   time.Date(2025, time.January, row.day, 0, 0, 0, 0, time.UTC),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		require.NoError(t, db.Create(&entry).Error)
		f.entries = append(f.entries, entry)
	}

	invoiceRepo := invoicerepo.Provide()
	f.store = New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       fake,
		GenID:       node,
		ProjectRepo: projectrepo.Provide(),
		EntryRepo:   timeentryrepo.Provide(),
		InvoiceRepo: invoiceRepo,
		InvoiceSvc: invoiceservice.NewService(invoiceservice.ServiceParam{
			DB:       db,
			Log:      zap.NewNop(),
			Clock:    fake,
			Repo:     invoiceRepo,
			Settings: config.NewStaticBuilderConfigHolder(config.DefaultBuilderConfig()),
		}),
		Locker: lock.NewCustomerLocker(nil, time.Minute),
	})
	return f
}

func (f *fixture) ctx() context.Context {
	return orgcontext.WithOrgID(context.Background(), int64(testOrg))
}

func (f *fixture) service() domain.Service {
	return bulkservice.New(bulkservice.Params{
		Log:         zap.NewNop(),
		Clock:       f.clock,
		Settings:    config.NewStaticBuilderConfigHolder(config.DefaultBuilderConfig()),
		Assignments: f.store,
		Entries:     f.store,
		Numbers:     f.store,
		Invoices:    f.store,
		Linker:      f.store,
		Locker:      f.store,
	})
}

func TestListCandidateEntriesJoinsNames(t *testing.T) {
	f := newFixture(t)

	entries, err := f.store.ListCandidateEntries(f.ctx(), domain.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	first := entries[0]
	assert.Equal(t, f.entries[0].ID.String(), first.ID)
	assert.Equal(t, f.customer.ID.String(), first.CustomerID)
	assert.Equal(t, "Acme", first.CustomerName)
	assert.Equal(t, "Tower", first.ProjectName)
	assert.Equal(t, "Ada Lovelace", first.WorkerName)
	assert.Empty(t, first.InvoiceID)
}

func TestListActiveAssignmentsResolvesBrackets(t *testing.T) {
	f := newFixture(t)

	rows, err := f.store.ListActiveAssignments(f.ctx(),
		[]string{f.project.ID.String()},
		[]string{f.workerA.ID.String(), f.workerB.ID.String()},
	)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.NotNil(t, row.Bracket)
	}

	_, err = f.store.ListActiveAssignments(context.Background(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}

func TestBulkInvoiceEndToEnd(t *testing.T) {
	f := newFixture(t)
	svc := f.service()

	session, err := svc.Create(f.ctx())
	require.NoError(t, err)
	session, err = svc.Build(f.ctx(), session.ID, domain.BuildRequest{})
	require.NoError(t, err)
	require.Len(t, session.Customers, 1)
	assert.Equal(t, 3575.0, session.Customers[0].TotalBillable)

	session, err = svc.Submit(f.ctx(), session.ID)
	require.NoError(t, err)
	require.Len(t, session.Results, 1)

	result := session.Results[0]
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "INV-000001", result.InvoiceNumber)
	assert.Equal(t, 3, result.LinkedEntries)

	invoiceID, err := snowflake.ParseString(result.InvoiceID)
	require.NoError(t, err)
	var invoice invoicedomain.Invoice
	require.NoError(t, f.db.Where("id = ?", invoiceID).First(&invoice).Error)
	assert.Equal(t, int64(357500), invoice.TotalAmount)
	assert.Equal(t, "Tower", invoice.ProjectName)

	var items []invoicedomain.LineItem
	require.NoError(t, f.db.Where("invoice_id = ?", invoice.ID).Order("sort_order asc").Find(&items).Error)
	require.Len(t, items, 3)
	assert.Equal(t, "Junior (Regular)", items[0].ProductName)
	assert.Equal(t, int64(120000), items[0].TotalAmount)

	var unbilled int64
	require.NoError(t, f.db.Model(&timeentrydomain.TimeEntry{}).Where("invoice_id IS NULL").Count(&unbilled).Error)
	assert.Zero(t, unbilled)

	again, err := svc.Create(f.ctx())
	require.NoError(t, err)
	again, err = svc.Build(f.ctx(), again.ID, domain.BuildRequest{})
	require.NoError(t, err)
	assert.Empty(t, again.Customers)
	assert.Equal(t, 3, again.Excluded.AlreadyInvoiced)
}

func TestPersistedInvoiceMatchesItsLineItems(t *testing.T) {
	for _, rate := range []float64{10.03, 33.33} {
		t.Run(fmt.Sprintf("rate %.2f", rate), func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.db.Model(&projectdomain.RateBracket{}).
				Where("name = ?", "Senior").Update("bill_rate", rate).Error)
			svc := f.service()

			session, err := svc.Create(f.ctx())
			require.NoError(t, err)
			session, err = svc.Build(f.ctx(), session.ID, domain.BuildRequest{})
			require.NoError(t, err)
			session, err = svc.Submit(f.ctx(), session.ID)
			require.NoError(t, err)
			require.Len(t, session.Results, 1)
			require.True(t, session.Results[0].Success, session.Results[0].Error)

			var invoice invoicedomain.Invoice
			require.NoError(t, f.db.Where("invoice_number = ?", session.Results[0].InvoiceNumber).First(&invoice).Error)
			var items []invoicedomain.LineItem
			require.NoError(t, f.db.Where("invoice_id = ?", invoice.ID).Find(&items).Error)
			require.Len(t, items, 3)

			var sum int64
			for _, item := range items {
				sum += item.TotalAmount
				assert.Equal(t, int64(math.Round(item.Quantity*float64(item.UnitPrice))), item.TotalAmount, item.ProductName)
				assert.True(t, item.CreatedAt.Equal(invoice.CreatedAt))
			}
			assert.Equal(t, sum, invoice.SubtotalAmount)
			assert.Equal(t, sum, invoice.TotalAmount)
			assert.Equal(t, float64(sum)/100, session.Results[0].Total)
		})
	}
}

func TestLinkEntriesRollsBackOnConflict(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()

	billed := f.node.Generate()
	require.NoError(t, f.db.Model(&timeentrydomain.TimeEntry{}).
		Where("id = ?", f.entries[2].ID).
		Update("invoice_id", billed).Error)

	ids := []string{f.entries[0].ID.String(), f.entries[1].ID.String(), f.entries[2].ID.String()}
	invoice := f.node.Generate()
	invoiceID := invoice.String()

	conflicts, err := f.store.LinkEntries(ctx, ids, invoiceID, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{f.entries[2].ID.String()}, conflicts)

	var linked int64
	require.NoError(t, f.db.Model(&timeentrydomain.TimeEntry{}).Where("invoice_id = ?", invoice).Count(&linked).Error)
	assert.Zero(t, linked)

	conflicts, err = f.store.LinkEntries(ctx, ids[:2], invoiceID, f.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	require.NoError(t, f.store.UnlinkEntries(ctx, invoiceID))
	require.NoError(t, f.db.Model(&timeentrydomain.TimeEntry{}).Where("invoice_id IS NULL").Count(&linked).Error)
	assert.Equal(t, int64(2), linked)
}

func TestInvoiceWriterDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()

	created, err := f.store.InsertInvoice(ctx, domain.InvoiceDraft{
		Number:       "INV-000009",
		CustomerID:   f.customer.ID.String(),
		CustomerName: "Acme",
		ProjectID:    f.project.ID.String(),
		ProjectName:  "Tower",
		IssueDate:    f.clock.Now(),
		DueDate:      f.clock.Now().AddDate(0, 0, 30),
		Subtotal:     100,
		Total:        100,
	})
	require.NoError(t, err)
	require.NoError(t, f.store.InsertLineItems(ctx, created.ID, []domain.LineItem{
		{Kind: domain.LineItemRegular, ProductName: "Senior (Regular)", Hours: 2, Rate: 50, Total: 100},
	}))

	require.NoError(t, f.store.DeleteLineItems(ctx, created.ID))
	require.NoError(t, f.store.DeleteInvoice(ctx, created.ID))

	var count int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, f.db.Model(&invoicedomain.LineItem{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestInvoiceWriterRejectsDuplicateNumber(t *testing.T) {
	f := newFixture(t)
	ctx := f.ctx()

	draft := domain.InvoiceDraft{
		Number:       "INV-000010",
		CustomerID:   f.customer.ID.String(),
		CustomerName: "Acme",
		IssueDate:    f.clock.Now(),
		DueDate:      f.clock.Now().AddDate(0, 0, 30),
		Subtotal:     100,
		Total:        100,
	}
	_, err := f.store.InsertInvoice(ctx, draft)
	require.NoError(t, err)

	_, err = f.store.InsertInvoice(ctx, draft)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateInvoiceNumber)
}
