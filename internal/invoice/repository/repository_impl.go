package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/internal/invoice/domain"
	"github.com/smallbiznis/crewbill/pkg/db/option"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertInvoice(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (
			id, org_id, invoice_number, customer_id, customer_name, project_id, project_name,
			status, issue_date, due_date, subtotal_amount, tax_rate, tax_amount, total_amount,
			metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.OrgID,
		invoice.InvoiceNumber,
		invoice.CustomerID,
		invoice.CustomerName,
		invoice.ProjectID,
		invoice.ProjectName,
		invoice.Status,
		invoice.IssueDate,
		invoice.DueDate,
		invoice.SubtotalAmount,
		invoice.TaxRate,
		invoice.TaxAmount,
		invoice.TotalAmount,
		invoice.Metadata,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) InsertLineItems(ctx context.Context, db *gorm.DB, items []domain.LineItem) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) DeleteInvoice(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM invoices WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Error
}

func (r *repo) DeleteLineItems(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM invoice_line_items WHERE org_id = ? AND invoice_id = ?`,
		orgID,
		invoiceID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		Limit(1).
		Find(&invoice).Error
	if err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) ListLineItems(ctx context.Context, db *gorm.DB, orgID, invoiceID snowflake.ID) ([]domain.LineItem, error) {
	var items []domain.LineItem
	err := db.WithContext(ctx).
		Where("org_id = ? AND invoice_id = ?", orgID, invoiceID).
		Order("sort_order asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListInvoiceFilter, page pagination.Pagination) ([]*domain.Invoice, error) {
	var invoices []*domain.Invoice
	stmt := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("org_id = ?", orgID)
	if filter.CustomerID != nil {
		stmt = stmt.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("id desc").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

// NextSequence locks the organization's sequence row for the duration of a
// transaction. Dialects without row locks rely on the transaction alone.
func (r *repo) NextSequence(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error) {
	var next int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq domain.InvoiceSequence
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("org_id = ?", orgID).
			Take(&seq).Error
		now := time.Now().UTC()
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			next = 1
			return tx.Create(&domain.InvoiceSequence{OrgID: orgID, NextValue: 2, UpdatedAt: now}).Error
		case err != nil:
			return err
		}

		next = seq.NextValue
		return tx.Model(&domain.InvoiceSequence{}).
			Where("org_id = ?", orgID).
			Updates(map[string]any{"next_value": seq.NextValue + 1, "updated_at": now}).Error
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}
