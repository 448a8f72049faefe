package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
	"github.com/smallbiznis/crewbill/internal/personnel/domain"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("personnel.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePersonnelRequest) (domain.Personnel, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Personnel{}, domain.ErrInvalidOrganization
	}

	first := strings.TrimSpace(req.FirstName)
	last := strings.TrimSpace(req.LastName)
	if first == "" && last == "" {
		return domain.Personnel{}, domain.ErrInvalidName
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != "" {
		if !strings.Contains(email, "@") {
			return domain.Personnel{}, domain.ErrInvalidEmail
		}
		existing, err := s.repo.FindByEmail(ctx, s.db, orgID, email)
		if err != nil {
			return domain.Personnel{}, err
		}
		if existing != nil {
			return domain.Personnel{}, domain.ErrDuplicateEmail
		}
	}

	now := time.Now().UTC()
	p := domain.Personnel{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		FirstName: first,
		LastName:  last,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, &p); err != nil {
		return domain.Personnel{}, err
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPersonnelRequest) (domain.ListPersonnelResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListPersonnelResponse{}, domain.ErrInvalidOrganization
	}

	pageSize := pagination.Size(req.PageSize, 50)

	items, err := s.repo.List(ctx, s.db, orgID, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListPersonnelResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(p *domain.Personnel) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: p.ID.String()})
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	out := make([]domain.Personnel, 0, len(items))
	for _, item := range items {
		if item != nil {
			out = append(out, *item)
		}
	}

	resp := domain.ListPersonnelResponse{Personnel: out}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Personnel, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Personnel{}, domain.ErrInvalidOrganization
	}
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil || id == 0 {
		return domain.Personnel{}, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Personnel{}, err
	}
	if item == nil {
		return domain.Personnel{}, domain.ErrNotFound
	}
	return *item, nil
}
