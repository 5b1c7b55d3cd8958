package main

import (
	"context"
	"errors"

	"github.com/sprintlens/sprintlens/internal/config"
	"github.com/sprintlens/sprintlens/internal/handlers"
	"github.com/sprintlens/sprintlens/internal/jira"
	"github.com/sprintlens/sprintlens/internal/models"
	"github.com/sprintlens/sprintlens/internal/services"
	"github.com/sprintlens/sprintlens/internal/services/metrics"
	"github.com/sprintlens/sprintlens/internal/utils"
	"github.com/sprintlens/sprintlens/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	syncService    *services.SyncService
	metricsService *metrics.Service
	taskQueue      services.TaskQueue
	worker         *services.Worker
	authHandler    *handlers.AuthHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Initialize system logger
	services.InitSystemLogger(models.GetDB())

	// Start system log cleanup scheduler
	services.StartLogCleanupScheduler(models.GetDB())

	// Core services
	jiraClient := jira.NewClient(cfg.Jira)
	metricsService := metrics.NewService(models.GetDB(), cfg.Metrics)
	summaryService := services.NewSummaryService(models.GetDB(), cfg.OpenAI)
	syncService := services.NewSyncService(models.GetDB(), jiraClient, cfg.Sync, metricsService, summaryService)

	processSyncTask := func(ctx context.Context, task *services.SyncTask) error {
		_, err := syncService.SyncBoard(ctx, task.BoardID, task.Force)
		if errors.Is(err, services.ErrSyncTooSoon) {
			logger.Infof("Board %d synced recently, skipping", task.BoardID)
			return nil
		}
		return err
	}

	// Initialize task queue (uses Redis if enabled, otherwise sync mode)
	taskQueue := services.InitTaskQueue(cfg)
	if syncQueue, ok := taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(processSyncTask)
	}

	// Start async worker if Redis is enabled
	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(processSyncTask)
			if err := worker.Start(); err != nil {
				logger.Warn().Err(err).Msg("Failed to start async worker")
			}
		}
	}

	// Cron-scheduled full sync
	syncService.StartScheduler(taskQueue)

	// Create default admin user
	authHandler := handlers.NewAuthHandler(models.GetDB(), cfg)
	if err := services.NewAuthService(models.GetDB(), &cfg.JWT).CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		syncService:    syncService,
		metricsService: metricsService,
		taskQueue:      taskQueue,
		worker:         worker,
		authHandler:    authHandler,
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.syncService.StopScheduler()
	services.StopLogCleanupScheduler()
	logger.Info().Msg("All schedulers stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
}
