package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eioku/eioku-backend/internal/services"
)

type VideosHandler struct {
	videos *services.VideoService
	orch   *services.Orchestrator
}

func NewVideosHandler(videos *services.VideoService, orch *services.Orchestrator) *VideosHandler {
	return &VideosHandler{videos: videos, orch: orch}
}

// POST /api/videos
func (h *VideosHandler) Intake(c *gin.Context) {
	var in services.VideoIntake
	if err := c.ShouldBindJSON(&in); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if in.FilePath == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", nil)
		return
	}

	video, err := h.videos.Intake(c.Request.Context(), in)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	// Root the task graph right away so the hash pool can pick it up.
	if _, err := h.orch.CreateTasksForVideo(c.Request.Context(), video); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondCreated(c, gin.H{"video": video})
}

// GET /api/videos/:id
func (h *VideosHandler) Get(c *gin.Context) {
	video, err := h.videos.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if video == nil {
		RespondError(c, http.StatusNotFound, "video_not_found", nil)
		return
	}
	RespondOK(c, gin.H{"video": video})
}

// DELETE /api/videos/:id
func (h *VideosHandler) Delete(c *gin.Context) {
	if err := h.videos.Delete(c.Request.Context(), c.Param("id")); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// GET /api/videos/status-counts
func (h *VideosHandler) StatusCounts(c *gin.Context) {
	counts, err := h.videos.StatusCounts(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"counts": counts})
}
