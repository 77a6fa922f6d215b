// Package web exposes the REST interface over the service layer.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"farmops/internal/service"
)

// Server is the farmops HTTP server.
type Server struct {
	templates  *service.TemplateService
	tasks      *service.TaskService
	detector   *service.ChangeDetector
	resolution *service.ResolutionHandler
	changes    *service.ChangeFeed
	inventory  *service.InventoryService
	training   *service.TrainingService
	equipment  *service.EquipmentService
	dashboard  *service.DashboardService
	notifier   *service.Notifier

	log    zerolog.Logger
	router *gin.Engine
	http   *http.Server
}

// Deps bundles the services the server exposes.
type Deps struct {
	Templates  *service.TemplateService
	Tasks      *service.TaskService
	Detector   *service.ChangeDetector
	Resolution *service.ResolutionHandler
	Changes    *service.ChangeFeed
	Inventory  *service.InventoryService
	Training   *service.TrainingService
	Equipment  *service.EquipmentService
	Dashboard  *service.DashboardService
	Notifier   *service.Notifier
}

// NewServer builds the router. Callers run it with Start/Shutdown.
func NewServer(deps Deps, log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	s := &Server{
		templates:  deps.Templates,
		tasks:      deps.Tasks,
		detector:   deps.Detector,
		resolution: deps.Resolution,
		changes:    deps.Changes,
		inventory:  deps.Inventory,
		training:   deps.Training,
		equipment:  deps.Equipment,
		dashboard:  deps.Dashboard,
		notifier:   deps.Notifier,
		log:        log,
		router:     router,
	}

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")
	{
		api.POST("/recurring-tasks", s.handleCreateTemplate)
		api.GET("/recurring-tasks", s.handleListTemplates)
		api.GET("/recurring-tasks/changes", s.handleListChanges)
		api.GET("/recurring-tasks/:id", s.handleGetTemplate)
		api.PATCH("/recurring-tasks/:id", s.handleUpdateTemplate)
		api.DELETE("/recurring-tasks/:id", s.handleDeleteTemplate)
		api.GET("/recurring-tasks/:id/propagation-scope", s.handlePropagationScope)
		api.POST("/recurring-tasks/:id/generate", s.handleGenerate)

		api.GET("/tasks", s.handleListTasks)
		api.POST("/tasks", s.handleCreateTask)
		api.GET("/tasks/with-template-updates", s.handleTasksWithTemplateUpdates)
		api.GET("/tasks/:id", s.handleGetTask)
		api.PATCH("/tasks/:id", s.handleUpdateTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.POST("/tasks/:id/status", s.handleTaskStatus)
		api.POST("/tasks/:id/resolve-conflict", s.handleResolveConflict)
		api.GET("/tasks/:id/resolutions", s.handleResolutionHistory)

		api.GET("/inventory", s.handleListInventory)
		api.POST("/inventory", s.handleCreateInventory)
		api.GET("/inventory/low-stock", s.handleLowStock)
		api.GET("/inventory/:id/transactions", s.handleListTransactions)
		api.POST("/inventory/:id/transactions", s.handleCreateTransaction)

		api.GET("/training/courses", s.handleListCourses)
		api.POST("/training/courses", s.handleCreateCourse)
		api.POST("/training/records", s.handleCreateTrainingRecord)
		api.GET("/training/expiring", s.handleExpiringTraining)

		api.GET("/equipment", s.handleListEquipment)
		api.POST("/equipment", s.handleCreateEquipment)
		api.POST("/equipment/:id/status", s.handleEquipmentStatus)

		api.GET("/dashboard/production", s.handleProductionDashboard)

		api.GET("/notifications", s.handleListNotifications)
		api.POST("/notifications/:id/read", s.handleMarkNotificationRead)
	}

	return s
}

// Handler returns the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestLogger logs one line per request.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
