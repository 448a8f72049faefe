package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/crewbill/internal/audit/domain"
	"github.com/smallbiznis/crewbill/internal/audit/masking"
	"github.com/smallbiznis/crewbill/internal/clock"
	obscontext "github.com/smallbiznis/crewbill/internal/observability/context"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock `optional:"true"`
	GenID *snowflake.Node
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	genID *snowflake.Node
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		clock: clk,
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// Record stores event with masked metadata. The actor is "api" when the
// context carries a request id and "system" otherwise.
func (s *Service) Record(ctx context.Context, event auditdomain.Event) error {
	action := strings.TrimSpace(event.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	targetType := strings.TrimSpace(event.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	metadata := masking.MaskSensitive(event.Metadata)
	actor := auditdomain.ActorTypeSystem
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		metadata["request_id"] = requestID
		actor = auditdomain.ActorTypeAPI
	}

	entry := auditdomain.AuditLog{
		ID:            s.genID.Generate(),
		ActorType:     string(actor),
		Action:        action,
		TargetType:    targetType,
		TargetID:      optional(event.TargetID),
		BulkSessionID: optional(obscontext.SessionIDFromContext(ctx)),
		Metadata:      datatypes.JSONMap(metadata),
		CreatedAt:     s.clock.Now(),
	}
	if orgID, ok := orgcontext.OrgIDFromContext(ctx); ok {
		entry.OrgID = &orgID
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("target_type", targetType),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidOrganization
	}
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	cursor, err := decodeCursor(req.PageToken)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	pageSize := pagination.Size(req.PageSize, 50)
	rows, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		OrgID:         orgID,
		Action:        strings.TrimSpace(req.Action),
		TargetType:    strings.TrimSpace(req.TargetType),
		TargetID:      strings.TrimSpace(req.TargetID),
		BulkSessionID: strings.TrimSpace(req.BulkSessionID),
		StartAt:       req.StartAt,
		EndAt:         req.EndAt,
		Cursor:        cursor,
		Limit:         int(pageSize),
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	resp := auditdomain.ListAuditLogResponse{AuditLogs: make([]auditdomain.AuditLog, 0, len(rows))}
	if info := pagination.BuildCursorPageInfo(rows, pageSize, encodeCursor); info != nil {
		resp.PageInfo = *info
	}
	if len(rows) > int(pageSize) {
		rows = rows[:pageSize]
	}
	for _, row := range rows {
		if row != nil {
			resp.AuditLogs = append(resp.AuditLogs, *row)
		}
	}
	return resp, nil
}

func encodeCursor(row *auditdomain.AuditLog) string {
	token, err := pagination.EncodeCursor(pagination.Cursor{
		ID:        row.ID.String(),
		CreatedAt: row.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return ""
	}
	return token
}

func decodeCursor(token string) (*auditdomain.AuditCursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	decoded, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, auditdomain.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
	if err != nil {
		return nil, auditdomain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
	if err != nil || id == 0 {
		return nil, auditdomain.ErrInvalidPageToken
	}
	return &auditdomain.AuditCursor{ID: id, CreatedAt: createdAt}, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
