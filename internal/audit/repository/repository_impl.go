package repository

import (
	"context"

	"github.com/smallbiznis/crewbill/internal/audit/domain"
	"github.com/smallbiznis/crewbill/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Create(entry).Error
}

// List returns newest first and reads one row past filter.Limit so callers
// can detect another page.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AuditLog, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.AuditLog{}).
		Where("org_id = ?", filter.OrgID)

	for _, cond := range conditions(filter) {
		stmt = option.ApplyOperator(cond).Apply(stmt)
	}
	if c := filter.Cursor; c != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var logs []*domain.AuditLog
	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func conditions(filter domain.ListFilter) []option.Condition {
	var conds []option.Condition
	eq := func(field, value string) {
		if value != "" {
			conds = append(conds, option.Condition{Field: field, Operator: option.EQ, Value: value})
		}
	}
	eq("action", filter.Action)
	eq("target_type", filter.TargetType)
	eq("target_id", filter.TargetID)
	eq("bulk_session_id", filter.BulkSessionID)

	if filter.StartAt != nil {
		conds = append(conds, option.Condition{Field: "created_at", Operator: option.GTE, Value: filter.StartAt.UTC()})
	}
	if filter.EndAt != nil {
		conds = append(conds, option.Condition{Field: "created_at", Operator: option.LTE, Value: filter.EndAt.UTC()})
	}
	return conds
}
