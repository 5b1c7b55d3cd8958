package main

import (
	"github.com/gin-gonic/gin"

	"github.com/sprintlens/sprintlens/internal/handlers"
	"github.com/sprintlens/sprintlens/internal/middleware"
	"github.com/sprintlens/sprintlens/internal/models"
	"github.com/sprintlens/sprintlens/internal/services"
	"github.com/sprintlens/sprintlens/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for anonymous endpoints
	publicLimiter := middleware.NewRateLimiter(10, 20)

	// Health check and Prometheus metrics
	healthHandler := handlers.NewHealthHandler()
	r.GET("/health", healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics)

	boardHandler := handlers.NewBoardHandler(models.GetDB())
	snapshotHandler := handlers.NewSnapshotHandler(models.GetDB(), svc.metricsService)
	syncHandler := handlers.NewSyncHandler(svc.syncService, services.NewBoardService(models.GetDB()))

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public, rate limited)
		auth := api.Group("/auth", publicLimiter.Middleware())
		{
			auth.POST("/login", svc.authHandler.Login)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Boards & sprints (read for all users)
			protected.GET("/boards", boardHandler.List)
			protected.GET("/boards/:id", boardHandler.Get)
			protected.GET("/boards/:id/sprints", boardHandler.Sprints)
			protected.GET("/boards/:id/issues", boardHandler.BoardIssues)
			protected.GET("/boards/:id/sync-runs", boardHandler.SyncRuns)
			protected.GET("/sprints/:id/issues", boardHandler.SprintIssues)

			// Metric snapshots
			protected.GET("/sprints/:id/metrics", snapshotHandler.SprintMetrics)
			protected.GET("/boards/:id/metrics", snapshotHandler.BoardMetrics)
			protected.GET("/boards/:id/kanban-metrics", snapshotHandler.KanbanMetrics)
		}

		// Admin only routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			// Sync triggers
			admin.POST("/sync", syncHandler.TriggerFullSync)
			admin.POST("/boards/:id/sync", syncHandler.TriggerBoardSync)

			// Recalculation from stored data
			admin.POST("/sprints/:id/recalculate", snapshotHandler.RecalculateSprint)
			admin.POST("/boards/:id/recalculate", snapshotHandler.RecalculateBoard)

			// System Logs
			systemLogHandler := handlers.NewSystemLogHandler(models.GetDB())
			admin.GET("/system-logs", systemLogHandler.List)
		}
	}
}
