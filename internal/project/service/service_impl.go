package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/crewbill/internal/customer/domain"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
	personneldomain "github.com/smallbiznis/crewbill/internal/personnel/domain"
	"github.com/smallbiznis/crewbill/internal/project/domain"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	CustomerRepo  customerdomain.Repository
	PersonnelRepo personneldomain.Repository
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	customerRepo  customerdomain.Repository
	personnelRepo personneldomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("project.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		customerRepo:  p.CustomerRepo,
		personnelRepo: p.PersonnelRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateProjectRequest) (domain.Project, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Project{}, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Project{}, domain.ErrInvalidName
	}

	var customerID *snowflake.ID
	if raw := strings.TrimSpace(req.CustomerID); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return domain.Project{}, domain.ErrInvalidCustomer
		}
		customer, err := s.customerRepo.FindByID(ctx, s.db, orgID, id)
		if err != nil {
			return domain.Project{}, err
		}
		if customer == nil {
			return domain.Project{}, domain.ErrInvalidCustomer
		}
		customerID = &id
	}

	now := time.Now().UTC()
	project := domain.Project{
		ID:         s.genID.Generate(),
		OrgID:      orgID,
		Name:       name,
		CustomerID: customerID,
		Status:     domain.ProjectStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.InsertProject(ctx, s.db, &project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

func (s *Service) List(ctx context.Context, req domain.ListProjectRequest) (domain.ListProjectResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListProjectResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListProjectFilter{Status: domain.ProjectStatus(strings.TrimSpace(req.Status))}
	if raw := strings.TrimSpace(req.CustomerID); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return domain.ListProjectResponse{}, domain.ErrInvalidCustomer
		}
		filter.CustomerID = &id
	}

	pageSize := pagination.Size(req.PageSize, 50)

	items, err := s.repo.ListProjects(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListProjectResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(p *domain.Project) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: p.ID.String()})
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	projects := make([]domain.Project, 0, len(items))
	for _, item := range items {
		if item != nil {
			projects = append(projects, *item)
		}
	}
	resp := domain.ListProjectResponse{Projects: projects}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Project, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.Project{}, domain.ErrInvalidOrganization
	}
	id, err := parseID(rawID)
	if err != nil {
		return domain.Project{}, err
	}
	project, err := s.repo.FindProjectByID(ctx, s.db, orgID, id)
	if err != nil {
		return domain.Project{}, err
	}
	if project == nil {
		return domain.Project{}, domain.ErrNotFound
	}
	return *project, nil
}

func (s *Service) CreateRateBracket(ctx context.Context, req domain.CreateRateBracketRequest) (domain.RateBracket, error) {
	project, err := s.GetByID(ctx, req.ProjectID)
	if err != nil {
		return domain.RateBracket{}, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.RateBracket{}, domain.ErrInvalidName
	}
	if req.BillRate <= 0 {
		return domain.RateBracket{}, domain.ErrInvalidBillRate
	}
	if req.OvertimeMultiplier != nil && *req.OvertimeMultiplier < 1 {
		return domain.RateBracket{}, domain.ErrInvalidMultiplier
	}

	now := time.Now().UTC()
	bracket := domain.RateBracket{
		ID:                 s.genID.Generate(),
		OrgID:              project.OrgID,
		ProjectID:          project.ID,
		Name:               name,
		BillRate:           req.BillRate,
		OvertimeMultiplier: req.OvertimeMultiplier,
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.InsertRateBracket(ctx, s.db, &bracket); err != nil {
		return domain.RateBracket{}, err
	}
	return bracket, nil
}

func (s *Service) ListRateBrackets(ctx context.Context, projectID string) ([]domain.RateBracket, error) {
	project, err := s.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListRateBrackets(ctx, s.db, project.OrgID, project.ID)
}

// AssignPersonnel replaces any active assignment of the worker on the project.
func (s *Service) AssignPersonnel(ctx context.Context, req domain.AssignPersonnelRequest) (domain.Assignment, error) {
	project, err := s.GetByID(ctx, req.ProjectID)
	if err != nil {
		return domain.Assignment{}, err
	}

	personnelID, err := parseID(req.PersonnelID)
	if err != nil {
		return domain.Assignment{}, domain.ErrInvalidPersonnel
	}
	worker, err := s.personnelRepo.FindByID(ctx, s.db, project.OrgID, personnelID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if worker == nil {
		return domain.Assignment{}, domain.ErrInvalidPersonnel
	}

	var bracketID *snowflake.ID
	if raw := strings.TrimSpace(req.RateBracketID); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return domain.Assignment{}, domain.ErrInvalidRateBracket
		}
		bracket, err := s.repo.FindRateBracketByID(ctx, s.db, project.OrgID, id)
		if err != nil {
			return domain.Assignment{}, err
		}
		if bracket == nil || bracket.ProjectID != project.ID {
			return domain.Assignment{}, domain.ErrInvalidRateBracket
		}
		bracketID = &id
	}

	now := time.Now().UTC()
	assignment := domain.Assignment{
		ID:            s.genID.Generate(),
		OrgID:         project.OrgID,
		ProjectID:     project.ID,
		PersonnelID:   personnelID,
		RateBracketID: bracketID,
		Status:        domain.AssignmentStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeactivateAssignments(ctx, tx, project.OrgID, project.ID, personnelID); err != nil {
			return err
		}
		return s.repo.InsertAssignment(ctx, tx, &assignment)
	})
	if err != nil {
		return domain.Assignment{}, err
	}

	s.log.Info("personnel assigned",
		zap.String("project_id", project.ID.String()),
		zap.String("personnel_id", personnelID.String()),
		zap.Bool("has_rate_bracket", bracketID != nil),
	)
	return assignment, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
