package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, p *Personnel) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Personnel, error)
	FindByEmail(ctx context.Context, db *gorm.DB, orgID snowflake.ID, email string) (*Personnel, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, page pagination.Pagination) ([]*Personnel, error)
}

type CreatePersonnelRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type ListPersonnelRequest struct {
	PageToken string
	PageSize  int32
}

type ListPersonnelResponse struct {
	pagination.PageInfo
	Personnel []Personnel `json:"personnel"`
}

type Service interface {
	Create(context.Context, CreatePersonnelRequest) (Personnel, error)
	List(context.Context, ListPersonnelRequest) (ListPersonnelResponse, error)
	GetByID(context.Context, string) (Personnel, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidID           = errors.New("invalid_id")
	ErrDuplicateEmail      = errors.New("duplicate_email")
	ErrNotFound            = errors.New("not_found")
)
