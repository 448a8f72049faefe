package domain

import (
	"context"
	"time"
)

// Stage is a builder session state.
type Stage string

const (
	StageConfigure Stage = "configure"
	StageReview    Stage = "review"
	StageResults   Stage = "results"
	StageClosed    Stage = "closed"
)

// CanTransition reports whether the session state machine allows from -> to.
func CanTransition(from, to Stage) bool {
	switch from {
	case StageConfigure:
		return to == StageReview || to == StageClosed
	case StageReview:
		return to == StageConfigure || to == StageResults || to == StageClosed
	case StageResults:
		return to == StageClosed
	default:
		return false
	}
}

// Session is a snapshot of one builder run.
type Session struct {
	ID             string          `json:"id"`
	OrgID          string          `json:"organization_id"`
	Stage          Stage           `json:"stage"`
	Threshold      float64         `json:"weekly_overtime_threshold"`
	OvertimePolicy string          `json:"overtime_policy"`
	ProjectIDs     []string        `json:"project_ids,omitempty"`
	From           *time.Time      `json:"from,omitempty"`
	To             *time.Time      `json:"to,omitempty"`
	DueDate        time.Time       `json:"due_date"`
	Customers      []CustomerGroup `json:"customers"`
	Excluded       ExclusionCounts `json:"excluded"`
	Results        []InvoiceResult `json:"results,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type BuildRequest struct {
	Threshold      *float64   `json:"threshold"`
	OvertimePolicy string     `json:"overtime_policy"`
	ProjectIDs     []string   `json:"project_ids"`
	From           *time.Time `json:"from"`
	To             *time.Time `json:"to"`
	DueDate        *time.Time `json:"due_date"`
}

type UpdateLineItemRequest struct {
	Selected    *bool   `json:"selected"`
	Description *string `json:"description"`
}

type Export struct {
	Filename string
	Content  []byte
}

type Service interface {
	Create(ctx context.Context) (Session, error)
	Get(ctx context.Context, id string) (Session, error)
	Build(ctx context.Context, id string, req BuildRequest) (Session, error)
	SelectCustomer(ctx context.Context, id, customerID string, selected bool) (Session, error)
	UpdateLineItem(ctx context.Context, id, customerID, itemID string, req UpdateLineItemRequest) (Session, error)
	Back(ctx context.Context, id string) (Session, error)
	Submit(ctx context.Context, id string) (Session, error)
	Close(ctx context.Context, id string) error
	ExportResults(ctx context.Context, id string) (Export, error)
}
