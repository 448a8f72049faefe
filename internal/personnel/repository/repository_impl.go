package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/internal/personnel/domain"
	"github.com/smallbiznis/crewbill/pkg/db/option"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *domain.Personnel) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO personnel (id, org_id, first_name, last_name, email, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.OrgID,
		p.FirstName,
		p.LastName,
		p.Email,
		p.CreatedAt,
		p.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Personnel, error) {
	var p domain.Personnel
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, first_name, last_name, email, created_at, updated_at
		 FROM personnel WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, orgID snowflake.ID, email string) (*domain.Personnel, error) {
	var p domain.Personnel
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, first_name, last_name, email, created_at, updated_at
		 FROM personnel WHERE org_id = ? AND email = ?`,
		orgID,
		email,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, page pagination.Pagination) ([]*domain.Personnel, error) {
	var items []*domain.Personnel
	stmt := db.WithContext(ctx).
		Model(&domain.Personnel{}).
		Where("org_id = ?", orgID)
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
