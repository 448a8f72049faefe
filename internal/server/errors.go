package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/crewbill/internal/audit/domain"
	bulkinvoicedomain "github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
	customerdomain "github.com/smallbiznis/crewbill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/crewbill/internal/invoice/domain"
	personneldomain "github.com/smallbiznis/crewbill/internal/personnel/domain"
	projectdomain "github.com/smallbiznis/crewbill/internal/project/domain"
	timeentrydomain "github.com/smallbiznis/crewbill/internal/timeentry/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

// validationSentinels are domain errors reported to clients as 400s.
var validationSentinels = []error{
	ErrInvalidRequest,
	customerdomain.ErrInvalidOrganization,
	customerdomain.ErrInvalidName,
	customerdomain.ErrInvalidEmail,
	customerdomain.ErrInvalidID,
	personneldomain.ErrInvalidOrganization,
	personneldomain.ErrInvalidName,
	personneldomain.ErrInvalidEmail,
	personneldomain.ErrInvalidID,
	projectdomain.ErrInvalidOrganization,
	projectdomain.ErrInvalidName,
	projectdomain.ErrInvalidID,
	projectdomain.ErrInvalidCustomer,
	projectdomain.ErrInvalidPersonnel,
	projectdomain.ErrInvalidBillRate,
	projectdomain.ErrInvalidMultiplier,
	projectdomain.ErrInvalidRateBracket,
	timeentrydomain.ErrInvalidOrganization,
	timeentrydomain.ErrInvalidID,
	timeentrydomain.ErrInvalidProject,
	timeentrydomain.ErrInvalidPersonnel,
	timeentrydomain.ErrInvalidHours,
	timeentrydomain.ErrInvalidEntryDate,
	timeentrydomain.ErrInvalidWorkbook,
	timeentrydomain.ErrMissingColumn,
	invoicedomain.ErrInvalidOrganization,
	invoicedomain.ErrInvalidID,
	invoicedomain.ErrInvalidCustomer,
	auditdomain.ErrInvalidOrganization,
	auditdomain.ErrInvalidPageToken,
	auditdomain.ErrInvalidTimeRange,
	auditdomain.ErrInvalidAction,
	bulkinvoicedomain.ErrInvalidOrganization,
	bulkinvoicedomain.ErrInvalidID,
	bulkinvoicedomain.ErrInvalidThreshold,
	bulkinvoicedomain.ErrInvalidOvertimePolicy,
	bulkinvoicedomain.ErrInvalidDateRange,
	bulkinvoicedomain.ErrInvalidDueDate,
}

var notFoundSentinels = []error{
	ErrNotFound,
	customerdomain.ErrNotFound,
	personneldomain.ErrNotFound,
	projectdomain.ErrNotFound,
	invoicedomain.ErrNotFound,
	bulkinvoicedomain.ErrSessionNotFound,
	bulkinvoicedomain.ErrCustomerNotFound,
	bulkinvoicedomain.ErrLineItemNotFound,
	gorm.ErrRecordNotFound,
}

var conflictSentinels = []error{
	ErrConflict,
	customerdomain.ErrDuplicateName,
	personneldomain.ErrDuplicateEmail,
	bulkinvoicedomain.ErrInvalidTransition,
	bulkinvoicedomain.ErrNotSelectable,
	bulkinvoicedomain.ErrCustomerLocked,
	bulkinvoicedomain.ErrNoResults,
	bulkinvoicedomain.ErrDuplicateInvoiceNumber,
	gorm.ErrDuplicatedKey,
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if code, ok := validationErrorCode(err); ok {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code, err),
				},
			},
		}
	}

	switch {
	case matchesAny(err, conflictSentinels):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictCode(err),
		}
	case matchesAny(err, notFoundSentinels):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code logged by the request logger.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	if vErr := asValidationErrors(err); vErr != nil {
		code := "validation_error"
		if len(vErr.Errors) > 0 {
			code = vErr.Errors[0].Code
		}
		return "validation_error", code
	}
	if code, ok := validationErrorCode(err); ok {
		return "validation_error", code
	}
	switch {
	case matchesAny(err, conflictSentinels):
		return "conflict", conflictCode(err)
	case matchesAny(err, notFoundSentinels):
		return "not_found", "not_found"
	default:
		return "internal_error", "internal_error"
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func validationErrorCode(err error) (string, bool) {
	for _, target := range validationSentinels {
		if errors.Is(err, target) {
			return target.Error(), true
		}
	}
	return "", false
}

func conflictCode(err error) string {
	for _, target := range conflictSentinels {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "conflict"
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string, err error) string {
	switch {
	case code == "invalid_request":
		return "invalid request"
	case err.Error() != code:
		// wrapped errors carry row or column detail
		return err.Error()
	default:
		return "invalid value"
	}
}
