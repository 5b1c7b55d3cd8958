package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sprintlens/sprintlens/internal/services"
	"github.com/sprintlens/sprintlens/pkg/response"
)

type SyncHandler struct {
	syncService  *services.SyncService
	boardService *services.BoardService
}

func NewSyncHandler(syncService *services.SyncService, boardService *services.BoardService) *SyncHandler {
	return &SyncHandler{syncService: syncService, boardService: boardService}
}

// TriggerBoardSync enqueues a sync job for one board
// POST /api/boards/:id/sync
func (h *SyncHandler) TriggerBoardSync(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	board, err := h.boardService.Get(id)
	if err != nil {
		response.NotFound(c, "board not found")
		return
	}

	force := c.Query("force") == "true"
	queue := services.GetTaskQueue()
	if queue == nil {
		response.ServerError(c, "task queue not initialized")
		return
	}

	if err := queue.Enqueue(&services.SyncTask{
		BoardID:     board.ID,
		BoardJiraID: board.JiraID,
		Force:       force,
	}); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusAccepted, response.Response{
		Code:    0,
		Message: "sync enqueued",
		Data:    gin.H{"board_id": board.ID, "async": queue.IsAsync()},
	})
}

// TriggerFullSync refreshes the board list and enqueues a sync for each board
// POST /api/sync
func (h *SyncHandler) TriggerFullSync(c *gin.Context) {
	force := c.Query("force") == "true"
	queue := services.GetTaskQueue()
	if queue == nil {
		response.ServerError(c, "task queue not initialized")
		return
	}

	if err := h.syncService.EnqueueAllBoards(c.Request.Context(), queue, force); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusAccepted, response.Response{Code: 0, Message: "full sync enqueued"})
}
