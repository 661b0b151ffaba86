package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eioku/eioku-backend/internal/repos"
	"github.com/eioku/eioku-backend/internal/services"
)

type TasksHandler struct {
	taskRepo repos.TaskRepo
	orch     *services.Orchestrator
}

func NewTasksHandler(taskRepo repos.TaskRepo, orch *services.Orchestrator) *TasksHandler {
	return &TasksHandler{taskRepo: taskRepo, orch: orch}
}

// GET /api/tasks/:id
func (h *TasksHandler) Get(c *gin.Context) {
	task, err := h.taskRepo.GetByID(c.Request.Context(), nil, c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if task == nil {
		RespondError(c, http.StatusNotFound, "task_not_found", nil)
		return
	}
	RespondOK(c, gin.H{"task": task})
}

// GET /api/videos/:id/tasks
func (h *TasksHandler) ListForVideo(c *gin.Context) {
	rows, err := h.taskRepo.FindByVideo(c.Request.Context(), nil, c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"tasks": rows})
}

// POST /api/tasks/retry
func (h *TasksHandler) Retry(c *gin.Context) {
	var body struct {
		VideoID string `json:"video_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil && c.Request.ContentLength > 0 {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	retried, err := h.orch.RetryFailedTasks(c.Request.Context(), body.VideoID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"retried": retried})
}

// POST /api/tasks/:id/cancel
func (h *TasksHandler) Cancel(c *gin.Context) {
	taskID := c.Param("id")
	task, err := h.taskRepo.GetByID(c.Request.Context(), nil, taskID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if task == nil {
		RespondError(c, http.StatusNotFound, "task_not_found", nil)
		return
	}
	if task.IsTerminal() {
		RespondError(c, http.StatusConflict, "task_already_terminal", nil)
		return
	}
	if err := h.taskRepo.MarkCancelled(c.Request.Context(), nil, taskID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"cancelled": true})
}
