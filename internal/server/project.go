package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/crewbill/internal/audit/domain"
	projectdomain "github.com/smallbiznis/crewbill/internal/project/domain"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
)

func (s *Server) CreateProject(c *gin.Context) {
	var req projectdomain.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.projectSvc.Create(c.Request.Context(), projectdomain.CreateProjectRequest{
		Name:       strings.TrimSpace(req.Name),
		CustomerID: strings.TrimSpace(req.CustomerID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Event{
		Action:     auditdomain.ActionProjectCreate,
		TargetType: auditdomain.TargetProject,
		TargetID:   resp.ID.String(),
		Metadata: map[string]any{
			"name":        resp.Name,
			"customer_id": req.CustomerID,
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListProjects(c *gin.Context) {
	var query struct {
		pagination.Pagination
		CustomerID string `form:"customer_id"`
		Status     string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.projectSvc.List(c.Request.Context(), projectdomain.ListProjectRequest{
		PageToken:  query.PageToken,
		PageSize:   int32(query.PageSize),
		CustomerID: strings.TrimSpace(query.CustomerID),
		Status:     strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Projects, "page_info": resp.PageInfo})
}

func (s *Server) GetProjectByID(c *gin.Context) {
	resp, err := s.projectSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateRateBracket(c *gin.Context) {
	var req projectdomain.CreateRateBracketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ProjectID = strings.TrimSpace(c.Param("id"))
	req.Name = strings.TrimSpace(req.Name)

	resp, err := s.projectSvc.CreateRateBracket(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Event{
		Action:     auditdomain.ActionRateBracketCreate,
		TargetType: auditdomain.TargetRateBracket,
		TargetID:   resp.ID.String(),
		Metadata: map[string]any{
			"project_id": req.ProjectID,
			"name":       resp.Name,
			"bill_rate":  resp.BillRate,
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRateBrackets(c *gin.Context) {
	resp, err := s.projectSvc.ListRateBrackets(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AssignPersonnel(c *gin.Context) {
	var req projectdomain.AssignPersonnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ProjectID = strings.TrimSpace(c.Param("id"))
	req.PersonnelID = strings.TrimSpace(req.PersonnelID)
	req.RateBracketID = strings.TrimSpace(req.RateBracketID)

	resp, err := s.projectSvc.AssignPersonnel(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Event{
		Action:     auditdomain.ActionAssignmentCreate,
		TargetType: auditdomain.TargetAssignment,
		TargetID:   resp.ID.String(),
		Metadata: map[string]any{
			"project_id":      req.ProjectID,
			"personnel_id":    req.PersonnelID,
			"rate_bracket_id": req.RateBracketID,
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
