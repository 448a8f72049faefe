package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/crewbill/internal/audit/domain"
)

type listAuditLogsQuery struct {
	PageToken     string `form:"page_token"`
	PageSize      int32  `form:"page_size"`
	Action        string `form:"action"`
	TargetType    string `form:"target_type"`
	TargetID      string `form:"target_id"`
	BulkSessionID string `form:"bulk_session_id"`
	StartAt       string `form:"start_at"`
	EndAt         string `form:"end_at"`
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	if s.auditSvc == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	var query listAuditLogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startAt, err := parseOptionalTime(query.StartAt, false)
	if err != nil {
		AbortWithError(c, newValidationError("start_at", "invalid_start_at", "invalid start_at"))
		return
	}
	endAt, err := parseOptionalTime(query.EndAt, true)
	if err != nil {
		AbortWithError(c, newValidationError("end_at", "invalid_end_at", "invalid end_at"))
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListAuditLogRequest{
		PageToken:     strings.TrimSpace(query.PageToken),
		PageSize:      query.PageSize,
		Action:        query.Action,
		TargetType:    query.TargetType,
		TargetID:      query.TargetID,
		BulkSessionID: query.BulkSessionID,
		StartAt:       startAt,
		EndAt:         endAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.AuditLogs, "page_info": resp.PageInfo})
}
