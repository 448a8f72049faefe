package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	customerdomain "github.com/smallbiznis/crewbill/internal/customer/domain"
	customerrepo "github.com/smallbiznis/crewbill/internal/customer/repository"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
	personneldomain "github.com/smallbiznis/crewbill/internal/personnel/domain"
	personnelrepo "github.com/smallbiznis/crewbill/internal/personnel/repository"
	"github.com/smallbiznis/crewbill/internal/project/domain"
	"github.com/smallbiznis/crewbill/internal/project/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  domain.Service
	repo domain.Repository
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&personneldomain.Personnel{},
		&domain.Project{},
		&domain.RateBracket{},
		&domain.Assignment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
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
			CustomerRepo:  customerrepo.Provide(),
			PersonnelRepo: personnelrepo.Provide(),
		}),
	}
}

func (f fixture) seedCustomer(t *testing.T, orgID snowflake.ID, name string) customerdomain.Customer {
	t.Helper()
	now := time.Now().UTC()
	c := customerdomain.Customer{ID: f.node.Generate(), OrgID: orgID, Name: name, Email: "x@y.test", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, customerrepo.Provide().Insert(context.Background(), f.db, &c))
	return c
}

func (f fixture) seedPersonnel(t *testing.T, orgID snowflake.ID, first string) personneldomain.Personnel {
	t.Helper()
	now := time.Now().UTC()
	p := personneldomain.Personnel{ID: f.node.Generate(), OrgID: orgID, FirstName: first, LastName: "Worker", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, personnelrepo.Provide().Insert(context.Background(), f.db, &p))
	return p
}

func TestCreateProjectRequiresKnownCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := orgcontext.WithOrgID(context.Background(), 10)

	_, err := f.svc.Create(ctx, domain.CreateProjectRequest{Name: "Tower", CustomerID: "12345"})
	assert.ErrorIs(t, err, domain.ErrInvalidCustomer)

	customer := f.seedCustomer(t, 10, "Acme")
	project, err := f.svc.Create(ctx, domain.CreateProjectRequest{Name: "Tower", CustomerID: customer.ID.String()})
	require.NoError(t, err)
	require.NotNil(t, project.CustomerID)
	assert.Equal(t, customer.ID, *project.CustomerID)

	list, err := f.svc.List(ctx, domain.ListProjectRequest{CustomerID: customer.ID.String()})
	require.NoError(t, err)
	assert.Len(t, list.Projects, 1)
}

func TestRateBracketValidation(t *testing.T) {
	f := newFixture(t)
	ctx := orgcontext.WithOrgID(context.Background(), 10)
	project, err := f.svc.Create(ctx, domain.CreateProjectRequest{Name: "Tower"})
	require.NoError(t, err)

	_, err = f.svc.CreateRateBracket(ctx, domain.CreateRateBracketRequest{ProjectID: project.ID.String(), Name: "Foreman", BillRate: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidBillRate)

	low := 0.5
	_, err = f.svc.CreateRateBracket(ctx, domain.CreateRateBracketRequest{ProjectID: project.ID.String(), Name: "Foreman", BillRate: 50, OvertimeMultiplier: &low})
	assert.ErrorIs(t, err, domain.ErrInvalidMultiplier)

	bracket, err := f.svc.CreateRateBracket(ctx, domain.CreateRateBracketRequest{ProjectID: project.ID.String(), Name: "Foreman", BillRate: 50})
	require.NoError(t, err)
	assert.Nil(t, bracket.OvertimeMultiplier)

	brackets, err := f.svc.ListRateBrackets(ctx, project.ID.String())
	require.NoError(t, err)
	require.Len(t, brackets, 1)
	assert.Equal(t, 50.0, brackets[0].BillRate)
}

func TestAssignPersonnelReplacesActiveAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := orgcontext.WithOrgID(context.Background(), 10)
	project, err := f.svc.Create(ctx, domain.CreateProjectRequest{Name: "Tower"})
	require.NoError(t, err)
	worker := f.seedPersonnel(t, 10, "Ada")
	unbracketed := f.seedPersonnel(t, 10, "Bob")

	mult := 2.0
	first, err := f.svc.CreateRateBracket(ctx, domain.CreateRateBracketRequest{ProjectID: project.ID.String(), Name: "Laborer", BillRate: 40})
	require.NoError(t, err)
	second, err := f.svc.CreateRateBracket(ctx, domain.CreateRateBracketRequest{ProjectID: project.ID.String(), Name: "Foreman", BillRate: 60, OvertimeMultiplier: &mult})
	require.NoError(t, err)

	_, err = f.svc.AssignPersonnel(ctx, domain.AssignPersonnelRequest{ProjectID: project.ID.String(), PersonnelID: worker.ID.String(), RateBracketID: first.ID.String()})
	require.NoError(t, err)
	_, err = f.svc.AssignPersonnel(ctx, domain.AssignPersonnelRequest{ProjectID: project.ID.String(), PersonnelID: worker.ID.String(), RateBracketID: second.ID.String()})
	require.NoError(t, err)
	_, err = f.svc.AssignPersonnel(ctx, domain.AssignPersonnelRequest{ProjectID: project.ID.String(), PersonnelID: unbracketed.ID.String()})
	require.NoError(t, err)

	rows, err := f.repo.ListActiveAssignments(context.Background(), f.db, 10,
		[]snowflake.ID{project.ID}, []snowflake.ID{worker.ID, unbracketed.ID})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	byWorker := map[snowflake.ID]domain.ActiveAssignment{}
	for _, row := range rows {
		byWorker[row.PersonnelID] = row
	}
	foreman := byWorker[worker.ID]
	require.NotNil(t, foreman.BracketName)
	assert.Equal(t, "Foreman", *foreman.BracketName)
	assert.Equal(t, 60.0, *foreman.BillRate)
	assert.Equal(t, 2.0, *foreman.OvertimeMultiplier)

	assert.Nil(t, byWorker[unbracketed.ID].RateBracketID)
	assert.Nil(t, byWorker[unbracketed.ID].BracketName)
}

func TestListActiveAssignmentsOrdersByLastUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := orgcontext.WithOrgID(context.Background(), 10)
	project, err := f.svc.Create(ctx, domain.CreateProjectRequest{Name: "Tower"})
	require.NoError(t, err)
	worker := f.seedPersonnel(t, 10, "Ada")
	laborer, err := f.svc.CreateRateBracket(ctx, domain.CreateRateBracketRequest{ProjectID: project.ID.String(), Name: "Laborer", BillRate: 40})
	require.NoError(t, err)
	foreman, err := f.svc.CreateRateBracket(ctx, domain.CreateRateBracketRequest{ProjectID: project.ID.String(), Name: "Foreman", BillRate: 60})
	require.NoError(t, err)

	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	older := domain.Assignment{ID: f.node.Generate(), OrgID: 10, ProjectID: project.ID, PersonnelID: worker.ID,
		RateBracketID: &foreman.ID, Status: domain.AssignmentStatusActive, CreatedAt: base, UpdatedAt: base.Add(48 * time.Hour)}
	newer := domain.Assignment{ID: f.node.Generate(), OrgID: 10, ProjectID: project.ID, PersonnelID: worker.ID,
		RateBracketID: &laborer.ID, Status: domain.AssignmentStatusActive, CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)}
	require.NoError(t, f.db.Create(&older).Error)
	require.NoError(t, f.db.Create(&newer).Error)

	rows, err := f.repo.ListActiveAssignments(context.Background(), f.db, 10,
		[]snowflake.ID{project.ID}, []snowflake.ID{worker.ID})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[1].BracketName)
	assert.Equal(t, "Foreman", *rows[1].BracketName)
}

func TestAssignPersonnelRejectsForeignBracket(t *testing.T) {
	f := newFixture(t)
	ctx := orgcontext.WithOrgID(context.Background(), 10)
	p1, err := f.svc.Create(ctx, domain.CreateProjectRequest{Name: "P1"})
	require.NoError(t, err)
	p2, err := f.svc.Create(ctx, domain.CreateProjectRequest{Name: "P2"})
	require.NoError(t, err)
	worker := f.seedPersonnel(t, 10, "Ada")
	bracket, err := f.svc.CreateRateBracket(ctx, domain.CreateRateBracketRequest{ProjectID: p2.ID.String(), Name: "Laborer", BillRate: 40})
	require.NoError(t, err)

	_, err = f.svc.AssignPersonnel(ctx, domain.AssignPersonnelRequest{ProjectID: p1.ID.String(), PersonnelID: worker.ID.String(), RateBracketID: bracket.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidRateBracket)
}
