package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	bulkinvoicedomain "github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
	"github.com/smallbiznis/crewbill/internal/config"
	customerdomain "github.com/smallbiznis/crewbill/internal/customer/domain"
	"github.com/smallbiznis/crewbill/internal/orgcontext"
	timeentrydomain "github.com/smallbiznis/crewbill/internal/timeentry/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBulkService struct {
	orgID    snowflake.ID
	build    bulkinvoicedomain.BuildRequest
	selected *bool
	closed   string
	err      error
}

func (f *fakeBulkService) session(ctx context.Context, id string) (bulkinvoicedomain.Session, error) {
	orgID, _ := orgcontext.OrgIDFromContext(ctx)
	f.orgID = orgID
	if f.err != nil {
		return bulkinvoicedomain.Session{}, f.err
	}
	return bulkinvoicedomain.Session{ID: id, OrgID: orgID.String(), Stage: bulkinvoicedomain.StageConfigure}, nil
}

func (f *fakeBulkService) Create(ctx context.Context) (bulkinvoicedomain.Session, error) {
	return f.session(ctx, "01JBULK")
}

func (f *fakeBulkService) Get(ctx context.Context, id string) (bulkinvoicedomain.Session, error) {
	return f.session(ctx, id)
}

func (f *fakeBulkService) Build(ctx context.Context, id string, req bulkinvoicedomain.BuildRequest) (bulkinvoicedomain.Session, error) {
	f.build = req
	return f.session(ctx, id)
}

func (f *fakeBulkService) SelectCustomer(ctx context.Context, id, customerID string, selected bool) (bulkinvoicedomain.Session, error) {
	f.selected = &selected
	return f.session(ctx, id)
}

func (f *fakeBulkService) UpdateLineItem(ctx context.Context, id, customerID, itemID string, req bulkinvoicedomain.UpdateLineItemRequest) (bulkinvoicedomain.Session, error) {
	return f.session(ctx, id)
}

func (f *fakeBulkService) Back(ctx context.Context, id string) (bulkinvoicedomain.Session, error) {
	return f.session(ctx, id)
}

func (f *fakeBulkService) Submit(ctx context.Context, id string) (bulkinvoicedomain.Session, error) {
	return f.session(ctx, id)
}

func (f *fakeBulkService) Close(ctx context.Context, id string) error {
	f.closed = id
	return f.err
}

func (f *fakeBulkService) ExportResults(ctx context.Context, id string) (bulkinvoicedomain.Export, error) {
	if f.err != nil {
		return bulkinvoicedomain.Export{}, f.err
	}
	return bulkinvoicedomain.Export{Filename: "bulk-invoices.xlsx", Content: []byte("PK")}, nil
}

type fakeCustomerService struct {
	customerdomain.Service
	err error
}

func (f *fakeCustomerService) GetByID(ctx context.Context, id string) (customerdomain.Customer, error) {
	if f.err != nil {
		return customerdomain.Customer{}, f.err
	}
	return customerdomain.Customer{Name: "Acme"}, nil
}

func newTestServer(t *testing.T, cfg config.Config, bulk *fakeBulkService) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	s := &Server{
		engine:      engine,
		cfg:         cfg,
		customerSvc: &fakeCustomerService{err: customerdomain.ErrNotFound},
		bulkSvc:     bulk,
	}
	s.registerAPIRoutes()
	s.registerFallback()
	return s
}

func doRequest(s *Server, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestOrgContextRequiresOrganization(t *testing.T) {
	s := newTestServer(t, config.Config{}, &fakeBulkService{})

	rec := doRequest(s, http.MethodPost, "/api/bulk-invoices", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_organization", payload.Errors[0].Code)

	rec = doRequest(s, http.MethodPost, "/api/bulk-invoices", nil, map[string]string{HeaderOrg: "not-a-number"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrgContextHeaderAndDefault(t *testing.T) {
	bulk := &fakeBulkService{}
	s := newTestServer(t, config.Config{DefaultOrgID: 7}, bulk)

	rec := doRequest(s, http.MethodPost, "/api/bulk-invoices", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, snowflake.ID(7), bulk.orgID)

	rec = doRequest(s, http.MethodPost, "/api/bulk-invoices", nil, map[string]string{HeaderOrg: "42"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, snowflake.ID(42), bulk.orgID)

	var resp struct {
		Data bulkinvoicedomain.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "01JBULK", resp.Data.ID)
	assert.Equal(t, bulkinvoicedomain.StageConfigure, resp.Data.Stage)
}

func TestBuildBulkSessionParsesFilters(t *testing.T) {
	bulk := &fakeBulkService{}
	s := newTestServer(t, config.Config{DefaultOrgID: 1}, bulk)

	threshold := 35.0
	rec := doRequest(s, http.MethodPost, "/api/bulk-invoices/01JBULK/build", map[string]any{
		"threshold":       threshold,
		"overtime_policy": "per_week",
		"project_ids":     []string{"10,11", " 12 "},
		"from":            "2025-01-06",
		"to":              "2025-01-12",
		"due_date":        "2025-02-11",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, bulk.build.Threshold)
	assert.Equal(t, threshold, *bulk.build.Threshold)
	assert.Equal(t, "per_week", bulk.build.OvertimePolicy)
	assert.Equal(t, []string{"10", "11", "12"}, bulk.build.ProjectIDs)
	require.NotNil(t, bulk.build.From)
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), *bulk.build.From)
	require.NotNil(t, bulk.build.To)
	assert.Equal(t, 12, bulk.build.To.Day())
	assert.Equal(t, 23, bulk.build.To.Hour())
	require.NotNil(t, bulk.build.DueDate)
	assert.Equal(t, time.February, bulk.build.DueDate.Month())
}

func TestBuildBulkSessionWithoutBody(t *testing.T) {
	bulk := &fakeBulkService{}
	s := newTestServer(t, config.Config{DefaultOrgID: 1}, bulk)

	rec := doRequest(s, http.MethodPost, "/api/bulk-invoices/01JBULK/build", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, bulk.build.Threshold)
	assert.Empty(t, bulk.build.ProjectIDs)
}

func TestBuildBulkSessionRejectsBadDate(t *testing.T) {
	s := newTestServer(t, config.Config{DefaultOrgID: 1}, &fakeBulkService{})

	rec := doRequest(s, http.MethodPost, "/api/bulk-invoices/01JBULK/build", map[string]any{"from": "06/01/2025"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_from", decodeError(t, rec).Errors[0].Code)
}

func TestBulkErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{name: "missing session", err: bulkinvoicedomain.ErrSessionNotFound, status: http.StatusNotFound, typ: "not_found"},
		{name: "bad transition", err: bulkinvoicedomain.ErrInvalidTransition, status: http.StatusConflict, typ: "conflict"},
		{name: "bad threshold", err: bulkinvoicedomain.ErrInvalidThreshold, status: http.StatusBadRequest, typ: "validation_error"},
		{name: "wrapped source failure", err: fmt.Errorf("build: %w", errors.New("db down")), status: http.StatusInternalServerError, typ: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, config.Config{DefaultOrgID: 1}, &fakeBulkService{err: tc.err})

			rec := doRequest(s, http.MethodGet, "/api/bulk-invoices/01JBULK", nil, nil)
			require.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.typ, decodeError(t, rec).Type)
		})
	}
}

func TestSelectBulkCustomerRequiresFlag(t *testing.T) {
	bulk := &fakeBulkService{}
	s := newTestServer(t, config.Config{DefaultOrgID: 1}, bulk)

	rec := doRequest(s, http.MethodPatch, "/api/bulk-invoices/01JBULK/customers/5", map[string]any{}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, bulk.selected)

	rec = doRequest(s, http.MethodPatch, "/api/bulk-invoices/01JBULK/customers/5", map[string]any{"selected": false}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, bulk.selected)
	assert.False(t, *bulk.selected)
}

func TestUpdateBulkLineItemRequiresChange(t *testing.T) {
	s := newTestServer(t, config.Config{DefaultOrgID: 1}, &fakeBulkService{})

	rec := doRequest(s, http.MethodPatch, "/api/bulk-invoices/01JBULK/customers/5/items/b1-regular", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, http.MethodPatch, "/api/bulk-invoices/01JBULK/customers/5/items/b1-regular", map[string]any{"description": "Site work"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExportBulkResults(t *testing.T) {
	s := newTestServer(t, config.Config{DefaultOrgID: 1}, &fakeBulkService{})

	rec := doRequest(s, http.MethodGet, "/api/bulk-invoices/01JBULK/results.xlsx", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="bulk-invoices.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "PK", rec.Body.String())

	s = newTestServer(t, config.Config{DefaultOrgID: 1}, &fakeBulkService{err: bulkinvoicedomain.ErrNoResults})
	rec = doRequest(s, http.MethodGet, "/api/bulk-invoices/01JBULK/results.xlsx", nil, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_results", decodeError(t, rec).Message)
}

func TestCloseBulkSession(t *testing.T) {
	bulk := &fakeBulkService{}
	s := newTestServer(t, config.Config{DefaultOrgID: 1}, bulk)

	rec := doRequest(s, http.MethodDelete, "/api/bulk-invoices/01JBULK", nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "01JBULK", bulk.closed)
}

func TestCustomerNotFound(t *testing.T) {
	s := newTestServer(t, config.Config{DefaultOrgID: 1}, &fakeBulkService{})

	rec := doRequest(s, http.MethodGet, "/api/customers/99", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, config.Config{DefaultOrgID: 1}, &fakeBulkService{})

	rec := doRequest(s, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMapErrorWrappedValidation(t *testing.T) {
	status, payload := mapError(fmt.Errorf("%w: hours", timeentrydomain.ErrMissingColumn))
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "missing_column", payload.Errors[0].Code)
	assert.Equal(t, "missing_column: hours", payload.Errors[0].Message)

	typ, code := classifyErrorForLog(bulkinvoicedomain.ErrCustomerLocked)
	assert.Equal(t, "conflict", typ)
	assert.Equal(t, "customer_locked", code)
}
