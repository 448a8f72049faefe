package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/internal/clock"
	"github.com/smallbiznis/crewbill/internal/customer/domain"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock `optional:"true"`
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		clock: clk,
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// Create registers a billable customer. Names are unique per organization,
// ignoring case, because the bulk builder groups and sorts by name.
func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	orgID, err := requireOrg(ctx)
	if err != nil {
		return domain.Customer{}, err
	}

	name := strings.Join(strings.Fields(req.Name), " ")
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.Customer{}, err
	}

	customer := domain.Customer{
		ID:    s.genID.Generate(),
		OrgID: orgID,
		Name:  name,
		Email: email,
	}
	customer.CreatedAt = s.clock.Now()
	customer.UpdatedAt = customer.CreatedAt

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByName(ctx, tx, orgID, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateName
		}
		return s.repo.Insert(ctx, tx, &customer)
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.log.Info("customer created",
		zap.String("org_id", orgID.String()),
		zap.String("customer_id", customer.ID.String()),
	)
	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	orgID, err := requireOrg(ctx)
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	pageSize := pagination.Size(req.PageSize, 50)
	items, err := s.repo.List(ctx, s.db, orgID, domain.ListCustomerFilter{
		Name:  strings.ToLower(strings.TrimSpace(req.Name)),
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(customer *domain.Customer) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: customer.ID.String()})
		return token
	})
	if len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	resp := domain.ListCustomerResponse{
		PageInfo:  *pageInfo,
		Customers: make([]domain.Customer, 0, len(items)),
	}
	for _, item := range items {
		resp.Customers = append(resp.Customers, *item)
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Customer, error) {
	orgID, err := requireOrg(ctx)
	if err != nil {
		return domain.Customer{}, err
	}

	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id <= 0 {
		return domain.Customer{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}
	return *item, nil
}

func requireOrg(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, domain.ErrInvalidOrganization
	}
	return orgID, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}
