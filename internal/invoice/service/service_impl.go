package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/internal/clock"
	"github.com/smallbiznis/crewbill/internal/config"
	invoicedomain "github.com/smallbiznis/crewbill/internal/invoice/domain"
	"github.com/smallbiznis/crewbill/internal/invoice/format"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     invoicedomain.Repository
	Settings *config.BuilderConfigHolder
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     invoicedomain.Repository
	settings *config.BuilderConfigHolder
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		settings: p.Settings,
	}
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	filter := invoicedomain.ListInvoiceFilter{
		Status: invoicedomain.InvoiceStatus(strings.ToLower(strings.TrimSpace(req.Status))),
	}
	if raw := strings.TrimSpace(req.CustomerID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidCustomer
		}
		filter.CustomerID = &id
	}

	pageSize := pagination.Size(req.PageSize, 50)

	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(inv *invoicedomain.Invoice) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: inv.ID.String()})
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	invoices := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	resp := invoicedomain.ListInvoiceResponse{Invoices: invoices}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.InvoiceWithItems, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return invoicedomain.InvoiceWithItems{}, err
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || invoiceID == 0 {
		return invoicedomain.InvoiceWithItems{}, invoicedomain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceWithItems{}, err
	}
	if item == nil {
		return invoicedomain.InvoiceWithItems{}, invoicedomain.ErrNotFound
	}

	lines, err := s.repo.ListLineItems(ctx, s.db, orgID, invoiceID)
	if err != nil {
		return invoicedomain.InvoiceWithItems{}, err
	}
	return invoicedomain.InvoiceWithItems{Invoice: *item, LineItems: lines}, nil
}

// NextNumber reserves the next sequence value and renders it with the
// configured invoice number template.
func (s *Service) NextNumber(ctx context.Context) (string, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return "", err
	}

	seq, err := s.repo.NextSequence(ctx, s.db, orgID)
	if err != nil {
		return "", err
	}

	template := format.DefaultInvoiceNumberTemplate
	if s.settings != nil {
		if configured := strings.TrimSpace(s.settings.Get().InvoiceNumberTemplate); configured != "" {
			template = configured
		}
	}
	return format.FormatInvoiceNumber(template, s.clock.Now(), seq)
}

func (s *Service) orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return 0, invoicedomain.ErrInvalidOrganization
	}
	return orgID, nil
}
