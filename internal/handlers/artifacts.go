package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eioku/eioku-backend/internal/repos"
	"github.com/eioku/eioku-backend/internal/types"
)

type ArtifactsHandler struct {
	artifactRepo  repos.ArtifactRepo
	selectionRepo repos.SelectionRepo
}

func NewArtifactsHandler(artifactRepo repos.ArtifactRepo, selectionRepo repos.SelectionRepo) *ArtifactsHandler {
	return &ArtifactsHandler{artifactRepo: artifactRepo, selectionRepo: selectionRepo}
}

// GET /api/artifacts/:id
func (h *ArtifactsHandler) Get(c *gin.Context) {
	artifact, err := h.artifactRepo.GetByID(c.Request.Context(), nil, c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if artifact == nil {
		RespondError(c, http.StatusNotFound, "artifact_not_found", nil)
		return
	}
	RespondOK(c, gin.H{"artifact": artifact})
}

// GET /api/videos/:id/artifacts?artifact_type=&start_ms=&end_ms=&run_id=
func (h *ArtifactsHandler) ListForVideo(c *gin.Context) {
	assetID := c.Param("id")
	q := repos.AssetQuery{
		ArtifactType: c.Query("artifact_type"),
		RunID:        c.Query("run_id"),
	}
	if raw := c.Query("start_ms"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_start_ms", err)
			return
		}
		q.StartMs = &v
	}
	if raw := c.Query("end_ms"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_end_ms", err)
			return
		}
		q.EndMs = &v
	}

	// The stored per-(asset, type) policy applies unless the caller asked
	// for everything.
	if q.ArtifactType != "" && c.Query("all_runs") == "" {
		policy, err := h.selectionRepo.Get(c.Request.Context(), nil, assetID, q.ArtifactType)
		if err != nil {
			RespondAppError(c, err)
			return
		}
		q.Selection = policy
	}

	rows, err := h.artifactRepo.GetByAsset(c.Request.Context(), nil, assetID, q)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"artifacts": rows})
}

// DELETE /api/artifacts/:id
func (h *ArtifactsHandler) Delete(c *gin.Context) {
	deleted, err := h.artifactRepo.Delete(c.Request.Context(), nil, c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if !deleted {
		RespondError(c, http.StatusNotFound, "artifact_not_found", nil)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// PUT /api/videos/:id/selection
func (h *ArtifactsHandler) SetSelection(c *gin.Context) {
	var body struct {
		ArtifactType     string  `json:"artifact_type"`
		SelectionMode    string  `json:"selection_mode"`
		PreferredProfile *string `json:"preferred_profile"`
		PinnedRunID      *string `json:"pinned_run_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if body.ArtifactType == "" || body.SelectionMode == "" {
		RespondError(c, http.StatusBadRequest, "invalid_body", nil)
		return
	}

	policy := &types.ArtifactSelection{
		AssetID:          c.Param("id"),
		ArtifactType:     body.ArtifactType,
		SelectionMode:    body.SelectionMode,
		PreferredProfile: body.PreferredProfile,
		PinnedRunID:      body.PinnedRunID,
	}
	saved, err := h.selectionRepo.Set(c.Request.Context(), nil, policy)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"selection": saved})
}
