package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
	personneldomain "github.com/smallbiznis/crewbill/internal/personnel/domain"
	projectdomain "github.com/smallbiznis/crewbill/internal/project/domain"
	"github.com/smallbiznis/crewbill/internal/timeentry/domain"
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
	ProjectRepo   projectdomain.Repository
	PersonnelRepo personneldomain.Repository
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	projectRepo   projectdomain.Repository
	personnelRepo personneldomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("timeentry.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		projectRepo:   p.ProjectRepo,
		personnelRepo: p.PersonnelRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTimeEntryRequest) (domain.TimeEntry, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.TimeEntry{}, domain.ErrInvalidOrganization
	}

	projectID, err := parseID(req.ProjectID)
	if err != nil {
		return domain.TimeEntry{}, domain.ErrInvalidProject
	}
	if err := s.ensureProject(ctx, orgID, projectID); err != nil {
		return domain.TimeEntry{}, err
	}

	var personnelID *snowflake.ID
	if raw := strings.TrimSpace(req.PersonnelID); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return domain.TimeEntry{}, domain.ErrInvalidPersonnel
		}
		worker, err := s.personnelRepo.FindByID(ctx, s.db, orgID, id)
		if err != nil {
			return domain.TimeEntry{}, err
		}
		if worker == nil {
			return domain.TimeEntry{}, domain.ErrInvalidPersonnel
		}
		personnelID = &id
	}

	if err := validateHours(req.Hours); err != nil {
		return domain.TimeEntry{}, err
	}
	entryDate, ok := parseEntryDate(req.EntryDate)
	if !ok {
		return domain.TimeEntry{}, domain.ErrInvalidEntryDate
	}

	now := time.Now().UTC()
	entry := domain.TimeEntry{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		ProjectID:   projectID,
		PersonnelID: personnelID,
		Hours:       req.Hours,
		EntryDate:   entryDate,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		return domain.TimeEntry{}, err
	}
	return entry, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTimeEntryRequest) (domain.ListTimeEntryResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return domain.ListTimeEntryResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListTimeEntryFilter{Unbilled: req.Unbilled}
	if raw := strings.TrimSpace(req.ProjectID); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return domain.ListTimeEntryResponse{}, domain.ErrInvalidProject
		}
		filter.ProjectID = &id
	}
	if raw := strings.TrimSpace(req.PersonnelID); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return domain.ListTimeEntryResponse{}, domain.ErrInvalidPersonnel
		}
		filter.PersonnelID = &id
	}
	if raw := strings.TrimSpace(req.From); raw != "" {
		from, ok := parseEntryDate(raw)
		if !ok {
			return domain.ListTimeEntryResponse{}, domain.ErrInvalidEntryDate
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(req.To); raw != "" {
		to, ok := parseEntryDate(raw)
		if !ok {
			return domain.ListTimeEntryResponse{}, domain.ErrInvalidEntryDate
		}
		filter.To = &to
	}

	pageSize := pagination.Size(req.PageSize, 100)

	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListTimeEntryResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(e *domain.TimeEntry) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: e.ID.String()})
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	entries := make([]domain.TimeEntry, 0, len(items))
	for _, item := range items {
		if item != nil {
			entries = append(entries, *item)
		}
	}
	resp := domain.ListTimeEntryResponse{TimeEntries: entries}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) ensureProject(ctx context.Context, orgID, projectID snowflake.ID) error {
	project, err := s.projectRepo.FindProjectByID(ctx, s.db, orgID, projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return domain.ErrInvalidProject
	}
	return nil
}

func validateHours(hours float64) error {
	if hours <= 0 || hours > domain.MaxHoursPerEntry {
		return domain.ErrInvalidHours
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
