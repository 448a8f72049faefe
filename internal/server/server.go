package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/crewbill/internal/audit"
	auditdomain "github.com/smallbiznis/crewbill/internal/audit/domain"
	"github.com/smallbiznis/crewbill/internal/bulkinvoice"
	bulkinvoicedomain "github.com/smallbiznis/crewbill/internal/bulkinvoice/domain"
	"github.com/smallbiznis/crewbill/internal/clock"
	"github.com/smallbiznis/crewbill/internal/config"
	"github.com/smallbiznis/crewbill/internal/customer"
	customerdomain "github.com/smallbiznis/crewbill/internal/customer/domain"
	"github.com/smallbiznis/crewbill/internal/invoice"
	invoicedomain "github.com/smallbiznis/crewbill/internal/invoice/domain"
	"github.com/smallbiznis/crewbill/internal/lock"
	"github.com/smallbiznis/crewbill/internal/observability"
	obslogger "github.com/smallbiznis/crewbill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/crewbill/internal/observability/metrics"
	obstracing "github.com/smallbiznis/crewbill/internal/observability/tracing"
	"github.com/smallbiznis/crewbill/internal/personnel"
	personneldomain "github.com/smallbiznis/crewbill/internal/personnel/domain"
	"github.com/smallbiznis/crewbill/internal/project"
	projectdomain "github.com/smallbiznis/crewbill/internal/project/domain"
	"github.com/smallbiznis/crewbill/internal/timeentry"
	timeentrydomain "github.com/smallbiznis/crewbill/internal/timeentry/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	clock.Module,
	lock.Module,
	audit.Module,
	customer.Module,
	personnel.Module,
	project.Module,
	timeentry.Module,
	invoice.Module,
	bulkinvoice.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
		SessionRoutes:   []string{"/api/bulk-invoices/:id"},
		QuietRoutes:     []string{"/health", "/metrics"},
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	auditSvc     auditdomain.Service
	customerSvc  customerdomain.Service
	personnelSvc personneldomain.Service
	projectSvc   projectdomain.Service
	timeEntrySvc timeentrydomain.Service
	invoiceSvc   invoicedomain.Service
	bulkSvc      bulkinvoicedomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	AuditSvc     auditdomain.Service `optional:"true"`
	CustomerSvc  customerdomain.Service
	PersonnelSvc personneldomain.Service
	ProjectSvc   projectdomain.Service
	TimeEntrySvc timeentrydomain.Service
	InvoiceSvc   invoicedomain.Service
	BulkSvc      bulkinvoicedomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		auditSvc:     p.AuditSvc,
		customerSvc:  p.CustomerSvc,
		personnelSvc: p.PersonnelSvc,
		projectSvc:   p.ProjectSvc,
		timeEntrySvc: p.TimeEntrySvc,
		invoiceSvc:   p.InvoiceSvc,
		bulkSvc:      p.BulkSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.OrgContext())

	// -------- Customers --------
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers", s.ListCustomers)
	api.GET("/customers/:id", s.GetCustomerByID)

	// -------- Personnel --------
	api.POST("/personnel", s.CreatePersonnel)
	api.GET("/personnel", s.ListPersonnel)

	// -------- Projects --------
	api.POST("/projects", s.CreateProject)
	api.GET("/projects", s.ListProjects)
	api.GET("/projects/:id", s.GetProjectByID)
	api.POST("/projects/:id/rate-brackets", s.CreateRateBracket)
	api.GET("/projects/:id/rate-brackets", s.ListRateBrackets)
	api.POST("/projects/:id/assignments", s.AssignPersonnel)

	// -------- Time entries --------
	api.POST("/time-entries", s.CreateTimeEntry)
	api.GET("/time-entries", s.ListTimeEntries)
	api.POST("/time-entries/import", s.ImportTimeEntries)

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoiceByID)

	// -------- Bulk invoice builder --------
	bulk := api.Group("/bulk-invoices")
	{
		bulk.POST("", s.CreateBulkSession)
		bulk.GET("/:id", s.GetBulkSession)
		bulk.POST("/:id/build", s.BuildBulkSession)
		bulk.PATCH("/:id/customers/:customerId", s.SelectBulkCustomer)
		bulk.PATCH("/:id/customers/:customerId/items/:itemId", s.UpdateBulkLineItem)
		bulk.POST("/:id/back", s.BackBulkSession)
		bulk.POST("/:id/submit", s.SubmitBulkSession)
		bulk.GET("/:id/results.xlsx", s.ExportBulkResults)
		bulk.DELETE("/:id", s.CloseBulkSession)
	}

	// -------- Audit --------
	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

// recordAudit is a no-op when no audit service is wired. Failures are logged
// by the audit service and never fail the request.
func (s *Server) recordAudit(c *gin.Context, event auditdomain.Event) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.Record(c.Request.Context(), event)
}
