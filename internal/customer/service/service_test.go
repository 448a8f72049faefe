package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/crewbill/internal/customer/domain"
	"github.com/smallbiznis/crewbill/internal/customer/repository"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Customer{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
}

func TestCreateAndGetCustomer(t *testing.T) {
	svc := newTestService(t)
	ctx := orgcontext.WithOrgID(context.Background(), 1001)

	created, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: " Acme Corp ", Email: "Billing@Acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", created.Name)
	assert.Equal(t, "billing@acme.test", created.Email)

	got, err := svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	otherOrg := orgcontext.WithOrgID(context.Background(), 2002)
	_, err = svc.GetByID(otherOrg, created.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateCustomerValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := orgcontext.WithOrgID(context.Background(), 1001)

	_, err := svc.Create(context.Background(), domain.CreateCustomerRequest{Name: "A", Email: "a@b.c"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)

	_, err = svc.Create(ctx, domain.CreateCustomerRequest{Name: "  ", Email: "a@b.c"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateCustomerRequest{Name: "A", Email: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListCustomersPaginates(t *testing.T) {
	svc := newTestService(t)
	ctx := orgcontext.WithOrgID(context.Background(), 1001)

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: fmt.Sprintf("Customer %d", i), Email: fmt.Sprintf("c%d@x.test", i)})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, first.Customers, 2)
	assert.True(t, first.HasMore)

	second, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, second.Customers, 1)
	assert.False(t, second.HasMore)

	filtered, err := svc.List(ctx, domain.ListCustomerRequest{Name: "customer 1"})
	require.NoError(t, err)
	require.Len(t, filtered.Customers, 1)
	assert.Equal(t, "Customer 1", filtered.Customers[0].Name)
}

func TestCreateCustomerRejectsDuplicateName(t *testing.T) {
	svc := newTestService(t)
	ctx := orgcontext.WithOrgID(context.Background(), 1001)

	_, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "Acme  Corp", Email: "a@acme.test"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.CreateCustomerRequest{Name: "acme corp", Email: "b@acme.test"})
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	other := orgcontext.WithOrgID(context.Background(), 2002)
	_, err = svc.Create(other, domain.CreateCustomerRequest{Name: "Acme Corp", Email: "a@acme.test"})
	assert.NoError(t, err)
}
