package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sprintlens/sprintlens/internal/models"
	"github.com/sprintlens/sprintlens/internal/services/metrics"
	"github.com/sprintlens/sprintlens/pkg/response"
)

// SnapshotHandler serves the persisted metric snapshots. Snapshots are
// written by the metrics service after each sync; reads never trigger a
// recalculation.
type SnapshotHandler struct {
	db             *gorm.DB
	metricsService *metrics.Service
}

func NewSnapshotHandler(db *gorm.DB, metricsService *metrics.Service) *SnapshotHandler {
	return &SnapshotHandler{db: db, metricsService: metricsService}
}

// SprintMetrics returns the latest metric snapshot for a sprint
// GET /api/sprints/:id/metrics
func (h *SnapshotHandler) SprintMetrics(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var snapshot models.SprintMetrics
	if err := h.db.Where("sprint_id = ?", id).First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "no metrics computed for sprint")
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, snapshot)
}

// BoardMetrics returns the latest cross-sprint snapshot for a board
// GET /api/boards/:id/metrics
func (h *SnapshotHandler) BoardMetrics(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var snapshot models.BoardMetrics
	if err := h.db.Where("board_id = ?", id).First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "no metrics computed for board")
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, snapshot)
}

// KanbanMetrics returns the latest kanban snapshot for a board
// GET /api/boards/:id/kanban-metrics
func (h *SnapshotHandler) KanbanMetrics(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var snapshot models.KanbanMetrics
	if err := h.db.Where("board_id = ?", id).First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "no kanban metrics computed for board")
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, snapshot)
}

// RecalculateSprint recomputes one sprint's snapshot from stored data
// POST /api/sprints/:id/recalculate
func (h *SnapshotHandler) RecalculateSprint(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	snapshot, err := h.metricsService.RecalculateSprint(id)
	if err != nil {
		if errors.Is(err, metrics.ErrNotFound) {
			response.NotFound(c, "sprint not found")
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, snapshot)
}

// RecalculateBoard recomputes every snapshot for a board from stored data
// POST /api/boards/:id/recalculate
func (h *SnapshotHandler) RecalculateBoard(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.metricsService.RecalculateAllForBoard(id); err != nil {
		if errors.Is(err, metrics.ErrNotFound) {
			response.NotFound(c, "board not found")
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"message": "recalculation completed"})
}
