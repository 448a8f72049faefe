package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/crewbill/internal/audit/domain"
	personneldomain "github.com/smallbiznis/crewbill/internal/personnel/domain"
	"github.com/smallbiznis/crewbill/pkg/db/pagination"
)

func (s *Server) CreatePersonnel(c *gin.Context) {
	var req personneldomain.CreatePersonnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.personnelSvc.Create(c.Request.Context(), personneldomain.CreatePersonnelRequest{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.TrimSpace(req.Email),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Event{
		Action:     auditdomain.ActionPersonnelCreate,
		TargetType: auditdomain.TargetPersonnel,
		TargetID:   resp.ID.String(),
		Metadata: map[string]any{
			"first_name": resp.FirstName,
			"last_name":  resp.LastName,
		},
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPersonnel(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.personnelSvc.List(c.Request.Context(), personneldomain.ListPersonnelRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Personnel, "page_info": resp.PageInfo})
}
