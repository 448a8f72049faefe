package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	InsertProject(ctx context.Context, db *gorm.DB, p *Project) error
	FindProjectByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Project, error)
	ListProjects(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListProjectFilter, page pagination.Pagination) ([]*Project, error)

	InsertRateBracket(ctx context.Context, db *gorm.DB, b *RateBracket) error
	FindRateBracketByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*RateBracket, error)
	ListRateBrackets(ctx context.Context, db *gorm.DB, orgID, projectID snowflake.ID) ([]RateBracket, error)

	InsertAssignment(ctx context.Context, db *gorm.DB, a *Assignment) error
	DeactivateAssignments(ctx context.Context, db *gorm.DB, orgID, projectID, personnelID snowflake.ID) error
	ListActiveAssignments(ctx context.Context, db *gorm.DB, orgID snowflake.ID, projectIDs, personnelIDs []snowflake.ID) ([]ActiveAssignment, error)
}

type CreateProjectRequest struct {
	Name       string `json:"name"`
	CustomerID string `json:"customer_id"`
}

type ListProjectRequest struct {
	PageToken  string
	PageSize   int32
	CustomerID string
	Status     string
}

type ListProjectFilter struct {
	CustomerID *snowflake.ID
	Status     ProjectStatus
}

type ListProjectResponse struct {
	pagination.PageInfo
	Projects []Project `json:"projects"`
}

type CreateRateBracketRequest struct {
	ProjectID          string   `json:"-"`
	Name               string   `json:"name"`
	BillRate           float64  `json:"bill_rate"`
	OvertimeMultiplier *float64 `json:"overtime_multiplier"`
}

type AssignPersonnelRequest struct {
	ProjectID     string `json:"-"`
	PersonnelID   string `json:"personnel_id"`
	RateBracketID string `json:"rate_bracket_id"`
}

type Service interface {
	Create(context.Context, CreateProjectRequest) (Project, error)
	List(context.Context, ListProjectRequest) (ListProjectResponse, error)
	GetByID(context.Context, string) (Project, error)
	CreateRateBracket(context.Context, CreateRateBracketRequest) (RateBracket, error)
	ListRateBrackets(context.Context, string) ([]RateBracket, error)
	AssignPersonnel(context.Context, AssignPersonnelRequest) (Assignment, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidID           = errors.New("invalid_id")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrInvalidPersonnel    = errors.New("invalid_personnel")
	ErrInvalidBillRate     = errors.New("invalid_bill_rate")
	ErrInvalidMultiplier   = errors.New("invalid_overtime_multiplier")
	ErrInvalidRateBracket  = errors.New("invalid_rate_bracket")
	ErrNotFound            = errors.New("not_found")
)
