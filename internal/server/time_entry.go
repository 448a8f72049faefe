package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/crewbill/internal/audit/domain"
	timeentrydomain "github.com/smallbiznis/crewbill/internal/timeentry/domain"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
)

const maxImportBytes = 10 << 20

func (s *Server) CreateTimeEntry(c *gin.Context) {
	var req timeentrydomain.CreateTimeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.timeEntrySvc.Create(c.Request.Context(), timeentrydomain.CreateTimeEntryRequest{
		ProjectID:   strings.TrimSpace(req.ProjectID),
		PersonnelID: strings.TrimSpace(req.PersonnelID),
		Hours:       req.Hours,
		EntryDate:   strings.TrimSpace(req.EntryDate),
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTimeEntries(c *gin.Context) {
	var query struct {
		pagination.Pagination
		ProjectID   string `form:"project_id"`
		PersonnelID string `form:"personnel_id"`
		Unbilled    string `form:"unbilled"`
		From        string `form:"from"`
		To          string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	unbilled, err := parseOptionalBool(query.Unbilled)
	if err != nil {
		AbortWithError(c, newValidationError("unbilled", "invalid_unbilled", "invalid unbilled"))
		return
	}

	resp, err := s.timeEntrySvc.List(c.Request.Context(), timeentrydomain.ListTimeEntryRequest{
		PageToken:   query.PageToken,
		PageSize:    int32(query.PageSize),
		ProjectID:   strings.TrimSpace(query.ProjectID),
		PersonnelID: strings.TrimSpace(query.PersonnelID),
		Unbilled:    unbilled != nil && *unbilled,
		From:        strings.TrimSpace(query.From),
		To:          strings.TrimSpace(query.To),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.TimeEntries, "page_info": resp.PageInfo})
}

// ImportTimeEntries accepts an xlsx workbook either as the "file" multipart
// field or as the raw request body.
func (s *Server) ImportTimeEntries(c *gin.Context) {
	var body io.Reader
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			AbortWithError(c, newValidationError("file", "invalid_file", "file is required"))
			return
		}
		f, err := header.Open()
		if err != nil {
			AbortWithError(c, newValidationError("file", "invalid_file", "file is unreadable"))
			return
		}
		defer f.Close()
		body = f
	} else {
		body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)
	}

	resp, err := s.timeEntrySvc.Import(c.Request.Context(), body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Event{
		Action:     auditdomain.ActionTimeEntryImport,
		TargetType: auditdomain.TargetTimeEntry,
		Metadata: map[string]any{
			"imported": resp.Imported,
			"skipped":  len(resp.Skipped),
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
