package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/crewbill/pkg/db/pagination"
)

// Event is one auditable change. TargetID may be empty for batch actions
// such as imports.
type Event struct {
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	PageToken     string
	PageSize      int32
	Action        string
	TargetType    string
	TargetID      string
	BulkSessionID string
	StartAt       *time.Time
	EndAt         *time.Time
}

type ListAuditLogResponse struct {
	AuditLogs []AuditLog           `json:"audit_logs"`
	PageInfo  pagination.PageInfo `json:"page_info"`
}

type Service interface {
	Record(ctx context.Context, event Event) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrInvalidTimeRange    = errors.New("invalid_time_range")
	ErrInvalidAction       = errors.New("invalid_action")
)
