// Package adapter backs the bulk invoice ports with the project, time entry
// and invoice repositories.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
	"github.com/smallbiznis/crewbill/internal/clock"
	invoicedomain "github.com/smallbiznis/crewbill/internal/invoice/domain"
	"github.com/smallbiznis/crewbill/internal/lock"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
	projectdomain "github.com/smallbiznis/crewbill/internal/project/domain"
	timeentrydomain "github.com/smallbiznis/crewbill/internal/timeentry/domain"
	"github.com/smallbiznis/crewbill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var errLinkConflict = errors.New("link_conflict")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	GenID       *snowflake.Node
	ProjectRepo projectdomain.Repository
	EntryRepo   timeentrydomain.Repository
	InvoiceRepo invoicedomain.Repository
	InvoiceSvc  invoicedomain.Service
	Locker      *lock.CustomerLocker `optional:"true"`
}

// Store implements every bulk invoice port for the organization in ctx.
type Store struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	genID       *snowflake.Node
	projectRepo projectdomain.Repository
	entryRepo   timeentrydomain.Repository
	invoiceRepo invoicedomain.Repository
	invoiceSvc  invoicedomain.Service
	locker      *lock.CustomerLocker
}

func New(p Params) *Store {
	return &Store{
		db:          p.DB,
		log:         p.Log.Named("bulkinvoice.adapter"),
		clock:       p.Clock,
		genID:       p.GenID,
		projectRepo: p.ProjectRepo,
		entryRepo:   p.EntryRepo,
		invoiceRepo: p.InvoiceRepo,
		invoiceSvc:  p.InvoiceSvc,
		locker:      p.Locker,
	}
}

func (s *Store) ListActiveAssignments(ctx context.Context, projectIDs, personnelIDs []string) ([]domain.AssignmentRow, error) {
	orgID, err := orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := parseIDs(projectIDs)
	if err != nil {
		return nil, err
	}
	personnel, err := parseIDs(personnelIDs)
	if err != nil {
		return nil, err
	}

	items, err := s.projectRepo.ListActiveAssignments(ctx, s.db, orgID, projects, personnel)
	if err != nil {
		return nil, err
	}

	rows := make([]domain.AssignmentRow, 0, len(items))
	for _, item := range items {
		row := domain.AssignmentRow{
			ProjectID:   item.ProjectID.String(),
			PersonnelID: item.PersonnelID.String(),
		}
		if item.RateBracketID != nil && item.BracketName != nil && item.BillRate != nil {
			row.Bracket = &domain.AssignmentBracket{
				ID:                 item.RateBracketID.String(),
				Name:               *item.BracketName,
				BillRate:           *item.BillRate,
				OvertimeMultiplier: item.OvertimeMultiplier,
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Store) ListCandidateEntries(ctx context.Context, filter domain.EntryFilter) ([]domain.Entry, error) {
	orgID, err := orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	projectIDs, err := parseIDs(filter.ProjectIDs)
	if err != nil {
		return nil, err
	}

	items, err := s.entryRepo.ListCandidates(ctx, s.db, orgID, timeentrydomain.CandidateFilter{
		ProjectIDs: projectIDs,
		From:       filter.From,
		To:         filter.To,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]domain.Entry, 0, len(items))
	for _, item := range items {
		entry := domain.Entry{
			ID:          item.ID.String(),
			ProjectID:   item.ProjectID.String(),
			ProjectName: item.ProjectName,
			Hours:       item.Hours,
			Date:        item.EntryDate.UTC(),
		}
		if item.CustomerID != nil {
			entry.CustomerID = item.CustomerID.String()
			entry.CustomerName = derefString(item.CustomerName)
		}
		if item.PersonnelID != nil {
			entry.WorkerID = item.PersonnelID.String()
			entry.WorkerName = strings.TrimSpace(derefString(item.PersonnelFirstName) + " " + derefString(item.PersonnelLastName))
		}
		if item.InvoiceID != nil {
			entry.InvoiceID = item.InvoiceID.String()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Store) Next(ctx context.Context) (string, error) {
	return s.invoiceSvc.NextNumber(ctx)
}

func (s *Store) InsertInvoice(ctx context.Context, draft domain.InvoiceDraft) (domain.CreatedInvoice, error) {
	orgID, err := orgIDFromContext(ctx)
	if err != nil {
		return domain.CreatedInvoice{}, err
	}
	customerID, err := parseID(draft.CustomerID)
	if err != nil {
		return domain.CreatedInvoice{}, err
	}

	invoice := invoicedomain.Invoice{
		ID:             s.genID.Generate(),
		OrgID:          orgID,
		InvoiceNumber:  draft.Number,
		CustomerID:     customerID,
		CustomerName:   draft.CustomerName,
		ProjectName:    draft.ProjectName,
		Status:         invoicedomain.InvoiceStatusDraft,
		IssueDate:      draft.IssueDate,
		DueDate:        draft.DueDate,
		SubtotalAmount: invoicedomain.ToCents(draft.Subtotal),
		TaxRate:        draft.TaxRate,
		TaxAmount:      invoicedomain.ToCents(draft.TaxAmount),
		TotalAmount:    invoicedomain.ToCents(draft.Total),
		Metadata:       datatypes.JSONMap(draft.Metadata),
		CreatedAt:      draft.IssueDate,
		UpdatedAt:      draft.IssueDate,
	}
	if invoice.Metadata == nil {
		invoice.Metadata = datatypes.JSONMap{}
	}
	if draft.ProjectID != "" {
		projectID, err := parseID(draft.ProjectID)
		if err != nil {
			return domain.CreatedInvoice{}, err
		}
		invoice.ProjectID = &projectID
	}

	if err := s.invoiceRepo.InsertInvoice(ctx, s.db, &invoice); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.CreatedInvoice{}, fmt.Errorf("%w: %s", domain.ErrDuplicateInvoiceNumber, invoice.InvoiceNumber)
		}
		return domain.CreatedInvoice{}, err
	}
	return domain.CreatedInvoice{ID: invoice.ID.String(), Number: invoice.InvoiceNumber}, nil
}

func (s *Store) InsertLineItems(ctx context.Context, invoiceID string, items []domain.LineItem) error {
	orgID, err := orgIDFromContext(ctx)
	if err != nil {
		return err
	}
	invID, err := parseID(invoiceID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	rows := make([]invoicedomain.LineItem, 0, len(items))
	for i, item := range items {
		row := invoicedomain.LineItem{
			ID:          s.genID.Generate(),
			OrgID:       orgID,
			InvoiceID:   invID,
			ProductName: item.ProductName,
			Description: item.Description,
			Quantity:    item.Hours,
			UnitPrice:   invoicedomain.ToCents(item.Rate),
			Markup:      0,
			TotalAmount: invoicedomain.ToCents(item.Total),
			SortOrder:   i,
			Kind:        invoicedomain.LineItemKind(item.Kind),
			CreatedAt:   now,
		}
		if item.BracketID != "" {
			bracketID, err := parseID(item.BracketID)
			if err != nil {
				return err
			}
			row.RateBracketID = &bracketID
		}
		rows = append(rows, row)
	}
	return s.invoiceRepo.InsertLineItems(ctx, s.db, rows)
}

func (s *Store) DeleteInvoice(ctx context.Context, invoiceID string) error {
	orgID, err := orgIDFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := parseID(invoiceID)
	if err != nil {
		return err
	}
	return s.invoiceRepo.DeleteInvoice(ctx, s.db, orgID, id)
}

func (s *Store) DeleteLineItems(ctx context.Context, invoiceID string) error {
	orgID, err := orgIDFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := parseID(invoiceID)
	if err != nil {
		return err
	}
	return s.invoiceRepo.DeleteLineItems(ctx, s.db, orgID, id)
}

// LinkEntries links all entries or none. Entries that were already billed
// are returned as conflicts and the transaction is rolled back.
func (s *Store) LinkEntries(ctx context.Context, entryIDs []string, invoiceID string, at time.Time) ([]string, error) {
	orgID, err := orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := parseIDs(entryIDs)
	if err != nil {
		return nil, err
	}
	invID, err := parseID(invoiceID)
	if err != nil {
		return nil, err
	}

	var conflicts []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		linked, err := s.entryRepo.LinkEntries(ctx, tx, orgID, ids, invID, at)
		if err != nil {
			return err
		}
		conflicts = missingIDs(ids, linked)
		if len(conflicts) > 0 {
			return errLinkConflict
		}
		return nil
	})
	if errors.Is(err, errLinkConflict) {
		s.log.Warn("entries already invoiced",
			zap.String("invoice_id", invoiceID),
			zap.Int("conflicts", len(conflicts)),
		)
		return conflicts, nil
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Store) UnlinkEntries(ctx context.Context, invoiceID string) error {
	orgID, err := orgIDFromContext(ctx)
	if err != nil {
		return err
	}
	id, err := parseID(invoiceID)
	if err != nil {
		return err
	}
	_, err = s.entryRepo.UnlinkEntries(ctx, s.db, orgID, id)
	return err
}

// Acquire takes the per-customer emission lock when redis is configured.
func (s *Store) Acquire(ctx context.Context, customerID string) (func(context.Context) error, error) {
	orgID, err := orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	release, err := s.locker.Acquire(ctx, orgID.String(), customerID)
	if errors.Is(err, lock.ErrCustomerLocked) {
		return nil, domain.ErrCustomerLocked
	}
	return release, err
}

func orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, domain.ErrInvalidOrganization
	}
	return orgID, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func parseIDs(values []string) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(values))
	for _, value := range values {
		id, err := parseID(value)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func missingIDs(requested, linked []snowflake.ID) []string {
	done := make(map[snowflake.ID]struct{}, len(linked))
	for _, id := range linked {
		done[id] = struct{}{}
	}
	var missing []string
	for _, id := range requested {
		if _, ok := done[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	return missing
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
