package service

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	customerdomain "github.com/smallbiznis/crewbill/internal/customer/domain"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
	personneldomain "github.com/smallbiznis/crewbill/internal/personnel/domain"
	personnelrepo "github.com/smallbiznis/crewbill/internal/personnel/repository"
	projectdomain "github.com/smallbiznis/crewbill/internal/project/domain"
	projectrepo "github.com/smallbiznis/crewbill/internal/project/repository"
	"github.com/smallbiznis/crewbill/internal/timeentry/domain"
	"github.com/smallbiznis/crewbill/internal/timeentry/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testOrg = snowflake.ID(55)

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	repo    domain.Repository
	svc     domain.Service
	project projectdomain.Project
	worker  personneldomain.Personnel
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&personneldomain.Personnel{},
		&projectdomain.Project{},
		&domain.TimeEntry{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	ctx := context.Background()
	now := time.Now().UTC()

	customer := customerdomain.Customer{ID: node.Generate(), OrgID: testOrg, Name: "Acme", Email: "a@acme.test", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, db.Create(&customer).Error)
	project := projectdomain.Project{ID: node.Generate(), OrgID: testOrg, Name: "Tower", CustomerID: &customer.ID, Status: projectdomain.ProjectStatusActive, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, projectrepo.Provide().InsertProject(ctx, db, &project))
	worker := personneldomain.Personnel{ID: node.Generate(), OrgID: testOrg, FirstName: "Ada", LastName: "Lovelace", Email: "ada@crew.test", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, personnelrepo.Provide().Insert(ctx, db, &worker))

	repo := repository.Provide()
	return fixture{
		db:   db,
		node: node,
		repo: repo,
		svc: New(Params{
			DB:            db,
			Log:           zap.NewNop(),
			GenID:         node,
			Repo:          repo,
			ProjectRepo:   projectrepo.Provide(),
			PersonnelRepo: personnelrepo.Provide(),
		}),
		project: project,
		worker:  worker,
	}
}

func TestCreateTimeEntryValidation(t *testing.T) {
	f := newFixture(t)
	ctx := orgcontext.WithOrgID(context.Background(), testOrg.Int64())

	_, err := f.svc.Create(ctx, domain.CreateTimeEntryRequest{ProjectID: "999", Hours: 8, EntryDate: "2025-01-06"})
	assert.ErrorIs(t, err, domain.ErrInvalidProject)

	_, err = f.svc.Create(ctx, domain.CreateTimeEntryRequest{ProjectID: f.project.ID.String(), Hours: 25, EntryDate: "2025-01-06"})
	assert.ErrorIs(t, err, domain.ErrInvalidHours)

	_, err = f.svc.Create(ctx, domain.CreateTimeEntryRequest{ProjectID: f.project.ID.String(), Hours: 8, EntryDate: "someday"})
	assert.ErrorIs(t, err, domain.ErrInvalidEntryDate)

	entry, err := f.svc.Create(ctx, domain.CreateTimeEntryRequest{
		ProjectID:   f.project.ID.String(),
		PersonnelID: f.worker.ID.String(),
		Hours:       7.5,
		EntryDate:   "1/6/2025",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), entry.EntryDate)

	list, err := f.svc.List(ctx, domain.ListTimeEntryRequest{Unbilled: true})
	require.NoError(t, err)
	assert.Len(t, list.TimeEntries, 1)
}

func TestLinkEntriesOnlyClaimsUnbilledEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := domain.TimeEntry{ID: f.node.Generate(), OrgID: testOrg, ProjectID: f.project.ID, Hours: 8, EntryDate: now, CreatedAt: now, UpdatedAt: now}
	second := domain.TimeEntry{ID: f.node.Generate(), OrgID: testOrg, ProjectID: f.project.ID, Hours: 4, EntryDate: now, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, f.repo.BatchInsert(ctx, f.db, []domain.TimeEntry{first, second}))

	otherInvoice := f.node.Generate()
	linked, err := f.repo.LinkEntries(ctx, f.db, testOrg, []snowflake.ID{second.ID}, otherInvoice, now)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{second.ID}, linked)

	invoiceID := f.node.Generate()
	linked, err = f.repo.LinkEntries(ctx, f.db, testOrg, []snowflake.ID{first.ID, second.ID}, invoiceID, now)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{first.ID}, linked)

	n, err := f.repo.UnlinkEntries(ctx, f.db, testOrg, invoiceID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	candidates, err := f.repo.ListCandidates(ctx, f.db, testOrg, domain.CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	for _, c := range candidates {
		require.NotNil(t, c.CustomerName)
		assert.Equal(t, "Acme", *c.CustomerName)
		if c.ID == second.ID {
			require.NotNil(t, c.InvoiceID)
			assert.Equal(t, otherInvoice, *c.InvoiceID)
		} else {
			assert.Nil(t, c.InvoiceID)
		}
	}
}

func TestImportWorkbook(t *testing.T) {
	f := newFixture(t)
	ctx := orgcontext.WithOrgID(context.Background(), testOrg.Int64())

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	rows := [][]any{
		{"Date", "Project ID", "Worker Email", "Hours", "Notes"},
		{"2025-01-06", f.project.ID.String(), "ADA@crew.test", "8", "framing"},
		{"2025-01-07", f.project.ID.String(), "", "6.5", ""},
		{"2025-01-08", "123", "ada@crew.test", "8", ""},
		{"2025-01-09", f.project.ID.String(), "nobody@crew.test", "8", ""},
		{"not a date", f.project.ID.String(), "", "8", ""},
		{},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, book.SetSheetRow(sheet, cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, book.Write(&buf))

	result, err := f.svc.Import(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	require.Len(t, result.Skipped, 3)
	assert.Equal(t, 4, result.Skipped[0].Row)
	assert.Equal(t, "invalid_project", result.Skipped[0].Code)
	assert.Equal(t, "invalid_personnel", result.Skipped[1].Code)
	assert.Equal(t, "invalid_entry_date", result.Skipped[2].Code)
}

func TestImportRequiresColumns(t *testing.T) {
	f := newFixture(t)
	ctx := orgcontext.WithOrgID(context.Background(), testOrg.Int64())

	book := excelize.NewFile()
	require.NoError(t, book.SetSheetRow(book.GetSheetName(0), "A1", &[]any{"Date", "Hours"}))
	var buf bytes.Buffer
	require.NoError(t, book.Write(&buf))

	_, err := f.svc.Import(ctx, &buf)
	assert.ErrorIs(t, err, domain.ErrMissingColumn)

	_, err = f.svc.Import(ctx, bytes.NewReader([]byte("not a workbook")))
	assert.ErrorIs(t, err, domain.ErrInvalidWorkbook)
}

func TestParseEntryDate(t *testing.T) {
	got, ok := parseEntryDate("45663")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), got)

	_, ok = parseEntryDate("2025")
	assert.False(t, ok)
}
