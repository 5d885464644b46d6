// Package api provides the HTTP surface over JobStore, billing, and the
// live log stream: job and project CRUD, budget configuration, usage
// and CSV export, and an SSE endpoint that tails a job's event log.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vibe-engine/vibe-engine/pkg/billing"
	"github.com/vibe-engine/vibe-engine/pkg/jobstore"
	"github.com/vibe-engine/vibe-engine/pkg/logfanout"
)

// Server is the HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	store      *jobstore.Store
	meter      *billing.Meter
	fanout     *logfanout.FanOut
}

// NewServer builds a Server wired to store, meter, and fanout, and
// registers every route.
func NewServer(store *jobstore.Store, meter *billing.Meter, fanout *logfanout.FanOut) *Server {
	e := gin.New()
	e.Use(gin.Recovery(), securityHeaders())

	s := &Server{engine: e, store: store, meter: meter, fanout: fanout}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)

	v1 := s.engine.Group("/api/v1")
	v1.Use(requireTenant())

	v1.POST("/projects", s.createProjectHandler)
	v1.GET("/projects", s.listProjectsHandler)
	v1.GET("/projects/:id", s.getProjectHandler)
	v1.DELETE("/projects/:id", s.deleteProjectHandler)
	v1.GET("/projects/:id/jobs", s.listProjectJobsHandler)

	v1.POST("/jobs", s.createJobHandler)
	v1.GET("/jobs", s.listJobsHandler)
	v1.GET("/jobs/:id", s.getJobHandler)
	v1.GET("/jobs/:id/logs", s.streamJobLogsHandler)

	billingGroup := v1.Group("/billing")
	billingGroup.GET("/usage/:tenantId", enforceTenantParam("tenantId"), s.billingUsageHandler)
	billingGroup.GET("/export/:tenantId", enforceTenantParam("tenantId"), s.billingExportHandler)
	billingGroup.POST("/budget/:tenantId", enforceTenantParam("tenantId"), s.billingSetBudgetHandler)
}

// Handler exposes the underlying gin.Engine for tests and for Start.
func (s *Server) Handler() http.Handler { return s.engine }

// Start serves the API on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
