package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sprintlens/sprintlens/internal/models"
	"github.com/sprintlens/sprintlens/internal/services"
)

// HealthHandler provides enhanced health check endpoints.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	// Database check
	dbStatus := "ok"
	sqlDB, err := models.GetDB().DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	// Queue mode
	taskQueue := services.GetTaskQueue()
	queueMode := "sync"
	if taskQueue != nil && taskQueue.IsAsync() {
		queueMode = "async (Redis)"
	}

	// Boards tracked and recent sync failures
	var boardCount, failedRuns int64
	models.GetDB().Model(&models.Board{}).Count(&boardCount)
	models.GetDB().Model(&models.SyncRun{}).
		Where("success = ? AND started_at >= ?", false, time.Now().Add(-24*time.Hour)).
		Count(&failedRuns)

	c.JSON(200, gin.H{
		"status":  overall,
		"service": "sprintlens",
		"components": gin.H{
			"database":         dbStatus,
			"queue_mode":       queueMode,
			"boards":           boardCount,
			"failed_syncs_24h": failedRuns,
		},
	})
}
