package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sprintlens/sprintlens/internal/services"
	"github.com/sprintlens/sprintlens/pkg/response"
)

type BoardHandler struct {
	boardService *services.BoardService
}

func NewBoardHandler(db *gorm.DB) *BoardHandler {
	return &BoardHandler{
		boardService: services.NewBoardService(db),
	}
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// List returns synced boards, paginated
// GET /api/boards
func (h *BoardHandler) List(c *gin.Context) {
	var req services.BoardListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.boardService.List(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, resp)
}

// Get returns a single board
// GET /api/boards/:id
func (h *BoardHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	board, err := h.boardService.Get(id)
	if err != nil {
		if errors.Is(err, services.ErrBoardNotFound) {
			response.NotFound(c, "board not found")
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, board)
}

// Sprints returns a board's sprints, newest first
// GET /api/boards/:id/sprints
func (h *BoardHandler) Sprints(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	sprints, err := h.boardService.Sprints(id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, sprints)
}

// SprintIssues returns the issues currently attached to a sprint
// GET /api/sprints/:id/issues
func (h *BoardHandler) SprintIssues(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	issues, err := h.boardService.SprintIssues(id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, issues)
}

// BoardIssues returns all issues synced for a board
// GET /api/boards/:id/issues
func (h *BoardHandler) BoardIssues(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	issues, err := h.boardService.BoardIssues(id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, issues)
}

// SyncRuns returns recent sync runs for a board
// GET /api/boards/:id/sync-runs
func (h *BoardHandler) SyncRuns(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := h.boardService.SyncRuns(id, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, runs)
}
