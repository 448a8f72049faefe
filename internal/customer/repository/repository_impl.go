package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/internal/customer/domain"
	"github.com/smallbiznis/crewbill/pkg/db/option"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Create(customer).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Customer, error) {
	return first(db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id))
}

func (r *repo) FindByName(ctx context.Context, db *gorm.DB, orgID snowflake.ID, name string) (*domain.Customer, error) {
	return first(db.WithContext(ctx).Where("org_id = ? AND LOWER(name) = LOWER(?)", orgID, name))
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListCustomerFilter, page pagination.Pagination) ([]*domain.Customer, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Customer{}).
		Where("org_id = ?", orgID)
	if filter.Name != "" {
		stmt = stmt.Where("LOWER(name) LIKE ?", "%"+filter.Name+"%")
	}
	if filter.Email != "" {
		stmt = option.ApplyOperator(option.Condition{Field: "email", Operator: option.EQ, Value: filter.Email}).Apply(stmt)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)

	var customers []*domain.Customer
	if err := stmt.Order("id desc").Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func first(stmt *gorm.DB) (*domain.Customer, error) {
	var customer domain.Customer
	err := stmt.Take(&customer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}
