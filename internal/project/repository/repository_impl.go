package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/internal/project/domain"
	"github.com/smallbiznis/crewbill/pkg/db/option"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertProject(ctx context.Context, db *gorm.DB, p *domain.Project) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO projects (id, org_id, name, customer_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.OrgID,
		p.Name,
		p.CustomerID,
		p.Status,
		p.CreatedAt,
		p.UpdatedAt,
	).Error
}

func (r *repo) FindProjectByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Project, error) {
	var p domain.Project
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, customer_id, status, created_at, updated_at
		 FROM projects WHERE org_id = ? AND id = ?`,
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

func (r *repo) ListProjects(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListProjectFilter, page pagination.Pagination) ([]*domain.Project, error) {
	var projects []*domain.Project
	stmt := db.WithContext(ctx).
		Model(&domain.Project{}).
		Where("org_id = ?", orgID)
	if filter.CustomerID != nil {
		stmt = stmt.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	if err := stmt.Order("id desc").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *repo) InsertRateBracket(ctx context.Context, db *gorm.DB, b *domain.RateBracket) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO rate_brackets (id, org_id, project_id, name, bill_rate, overtime_multiplier, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		b.OrgID,
		b.ProjectID,
		b.Name,
		b.BillRate,
		b.OvertimeMultiplier,
		b.Active,
		b.CreatedAt,
		b.UpdatedAt,
	).Error
}

func (r *repo) FindRateBracketByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.RateBracket, error) {
	var b domain.RateBracket
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, project_id, name, bill_rate, overtime_multiplier, active, created_at, updated_at
		 FROM rate_brackets WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&b).Error
	if err != nil {
		return nil, err
	}
	if b.ID == 0 {
		return nil, nil
	}
	return &b, nil
}

func (r *repo) ListRateBrackets(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) ([]domain.RateBracket, error) {
	var brackets []domain.RateBracket
	err := db.WithContext(ctx).
		Where("org_id = ? AND project_id = ?", orgID, projectID).
		Order("name asc, id asc").
		Find(&brackets).Error
	if err != nil {
		return nil, err
	}
	return brackets, nil
}

func (r *repo) InsertAssignment(ctx context.Context, db *gorm.DB, a *domain.Assignment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO project_assignments (id, org_id, project_id, personnel_id, rate_bracket_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.OrgID,
		a.ProjectID,
		a.PersonnelID,
		a.RateBracketID,
		a.Status,
		a.CreatedAt,
		a.UpdatedAt,
	).Error
}

func (r *repo) DeactivateAssignments(ctx context.Context, db *gorm.DB, orgID, projectID, personnelID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE project_assignments SET status = ?, updated_at = ?
		 WHERE org_id = ? AND project_id = ? AND personnel_id = ? AND status = ?`,
		domain.AssignmentStatusInactive,
		time.Now().UTC(),
		orgID,
		projectID,
		personnelID,
		domain.AssignmentStatusActive,
	).Error
}

// ListActiveAssignments returns active rows ordered by last update, so callers
// building a lookup keep the most recently updated assignment for a pair.
func (r *repo) ListActiveAssignments(ctx context.Context, db *gorm.DB, orgID snowflake.ID, projectIDs, personnelIDs []snowflake.ID) ([]domain.ActiveAssignment, error) {
	if len(projectIDs) == 0 || len(personnelIDs) == 0 {
		return nil, nil
	}
	var rows []domain.ActiveAssignment
	err := db.WithContext(ctx).Raw(
		`SELECT a.project_id, a.personnel_id, a.rate_bracket_id,
		        rb.name AS bracket_name, rb.bill_rate, rb.overtime_multiplier
		 FROM project_assignments a
		 LEFT JOIN rate_brackets rb ON rb.id = a.rate_bracket_id AND rb.org_id = a.org_id AND rb.active = ?
		 WHERE a.org_id = ? AND a.status = ?
		   AND a.project_id IN ? AND a.personnel_id IN ?
		 ORDER BY a.updated_at ASC, a.id ASC`,
		true,
		orgID,
		domain.AssignmentStatusActive,
		projectIDs,
		personnelIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
