package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/internal/timeentry/domain"
	"github.com/smallbiznis/crewbill/pkg/db/option"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
	"gorm.io/gorm"
)

const importBatchSize = 200

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.TimeEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO time_entries (id, org_id, project_id, personnel_id, hours, entry_date, description, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.OrgID,
		entry.ProjectID,
		entry.PersonnelID,
		entry.Hours,
		entry.EntryDate,
		entry.Description,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Error
}

func (r *repo) BatchInsert(ctx context.Context, db *gorm.DB, entries []domain.TimeEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(entries, importBatchSize).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListTimeEntryFilter, page pagination.Pagination) ([]*domain.TimeEntry, error) {
	var entries []*domain.TimeEntry
	stmt := db.WithContext(ctx).
		Model(&domain.TimeEntry{}).
		Where("org_id = ?", orgID)
	if filter.ProjectID != nil {
		stmt = stmt.Where("project_id = ?", *filter.ProjectID)
	}
	if filter.PersonnelID != nil {
		stmt = stmt.Where("personnel_id = ?", *filter.PersonnelID)
	}
	if filter.Unbilled {
		stmt = stmt.Where("invoice_id IS NULL")
	}
	if filter.From != nil {
		stmt = option.ApplyOperator(option.Condition{Field: "entry_date", Operator: option.GTE, Value: *filter.From}).Apply(stmt)
	}
	if filter.To != nil {
		stmt = option.ApplyOperator(option.Condition{Field: "entry_date", Operator: option.LTE, Value: *filter.To}).Apply(stmt)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("id desc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) ListCandidates(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.CandidateFilter) ([]domain.CandidateEntry, error) {
	var rows []domain.CandidateEntry
	stmt := db.WithContext(ctx).
		Table("time_entries te").
		Select(`te.id, te.project_id, p.name AS project_name, p.customer_id,
			c.name AS customer_name, te.personnel_id,
			pe.first_name AS personnel_first_name, pe.last_name AS personnel_last_name,
			te.hours, te.entry_date, te.invoice_id`).
		Joins("JOIN projects p ON p.id = te.project_id AND p.org_id = te.org_id").
		Joins("LEFT JOIN customers c ON c.id = p.customer_id AND c.org_id = te.org_id").
		Joins("LEFT JOIN personnel pe ON pe.id = te.personnel_id AND pe.org_id = te.org_id").
		Where("te.org_id = ?", orgID)
	if len(filter.ProjectIDs) > 0 {
		stmt = stmt.Where("te.project_id IN ?", filter.ProjectIDs)
	}
	if filter.From != nil {
		stmt = stmt.Where("te.entry_date >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("te.entry_date <= ?", *filter.To)
	}
	if err := stmt.Order("te.entry_date asc, te.id asc").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) LinkEntries(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID, invoiceID snowflake.ID, at time.Time) ([]snowflake.ID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	err := db.WithContext(ctx).Exec(
		`UPDATE time_entries SET invoice_id = ?, invoiced_at = ?, updated_at = ?
		 WHERE org_id = ? AND id IN ? AND invoice_id IS NULL`,
		invoiceID,
		at,
		at,
		orgID,
		ids,
	).Error
	if err != nil {
		return nil, err
	}

	var raw []int64
	err = db.WithContext(ctx).
		Model(&domain.TimeEntry{}).
		Where("org_id = ? AND id IN ? AND invoice_id = ?", orgID, ids, invoiceID).
		Pluck("id", &raw).Error
	if err != nil {
		return nil, err
	}
	linked := make([]snowflake.ID, 0, len(raw))
	for _, id := range raw {
		linked = append(linked, snowflake.ID(id))
	}
	return linked, nil
}

func (r *repo) UnlinkEntries(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE time_entries SET invoice_id = NULL, invoiced_at = NULL, updated_at = ?
		 WHERE org_id = ? AND invoice_id = ?`,
		time.Now().UTC(),
		orgID,
		invoiceID,
	)
	return res.RowsAffected, res.Error
}
