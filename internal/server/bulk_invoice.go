package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	bulkinvoicedomain "github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type buildBulkSessionRequest struct {
	Threshold      *float64 `json:"threshold"`
	OvertimePolicy string   `json:"overtime_policy"`
	ProjectIDs     []string `json:"project_ids"`
	From           string   `json:"from"`
	To             string   `json:"to"`
	DueDate        string   `json:"due_date"`
}

type selectBulkCustomerRequest struct {
	Selected *bool `json:"selected"`
}

func (s *Server) CreateBulkSession(c *gin.Context) {
	resp, err := s.bulkSvc.Create(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBulkSession(c *gin.Context) {
	resp, err := s.bulkSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) BuildBulkSession(c *gin.Context) {
	var req buildBulkSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	from, err := parseOptionalTime(req.From, false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from"))
		return
	}
	to, err := parseOptionalTime(req.To, true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to"))
		return
	}
	dueDate, err := parseOptionalTime(req.DueDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("due_date", "invalid_due_date", "invalid due_date"))
		return
	}

	resp, err := s.bulkSvc.Build(c.Request.Context(), strings.TrimSpace(c.Param("id")), bulkinvoicedomain.BuildRequest{
		Threshold:      req.Threshold,
		OvertimePolicy: strings.TrimSpace(req.OvertimePolicy),
		ProjectIDs:     splitList(req.ProjectIDs),
		From:           from,
		To:             to,
		DueDate:        dueDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SelectBulkCustomer(c *gin.Context) {
	var req selectBulkCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Selected == nil {
		AbortWithError(c, newValidationError("selected", "invalid_selected", "selected is required"))
		return
	}

	resp, err := s.bulkSvc.SelectCustomer(
		c.Request.Context(),
		strings.TrimSpace(c.Param("id")),
		strings.TrimSpace(c.Param("customerId")),
		*req.Selected,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateBulkLineItem(c *gin.Context) {
	var req bulkinvoicedomain.UpdateLineItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Selected == nil && req.Description == nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.bulkSvc.UpdateLineItem(
		c.Request.Context(),
		strings.TrimSpace(c.Param("id")),
		strings.TrimSpace(c.Param("customerId")),
		strings.TrimSpace(c.Param("itemId")),
		req,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) BackBulkSession(c *gin.Context) {
	resp, err := s.bulkSvc.Back(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SubmitBulkSession(c *gin.Context) {
	resp, err := s.bulkSvc.Submit(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ExportBulkResults(c *gin.Context) {
	export, err := s.bulkSvc.ExportResults(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, xlsxContentType, export.Content)
}

func (s *Server) CloseBulkSession(c *gin.Context) {
	if err := s.bulkSvc.Close(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
