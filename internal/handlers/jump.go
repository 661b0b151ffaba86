package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eioku/eioku-backend/internal/navigation"
)

type JumpHandler struct {
	engine *navigation.Engine
}

func NewJumpHandler(engine *navigation.Engine) *JumpHandler {
	return &JumpHandler{engine: engine}
}

// GET /api/jump/next and /api/jump/prev share the same parameter set.
func (h *JumpHandler) Next(c *gin.Context) { h.jump(c, true) }
func (h *JumpHandler) Prev(c *gin.Context) { h.jump(c, false) }

func (h *JumpHandler) jump(c *gin.Context, next bool) {
	p, ok := h.bindParams(c)
	if !ok {
		return
	}

	var (
		results []navigation.Result
		hasMore bool
		err     error
	)
	if next {
		results, hasMore, err = h.engine.JumpNext(c.Request.Context(), p)
	} else {
		results, hasMore, err = h.engine.JumpPrev(c.Request.Context(), p)
	}
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if results == nil {
		results = []navigation.Result{}
	}
	RespondOK(c, gin.H{"results": results, "has_more": hasMore})
}

// GET /api/search/artifacts
func (h *JumpHandler) Search(c *gin.Context) {
	p := navigation.SearchParams{
		Kind:           c.Query("kind"),
		Label:          c.Query("label"),
		Query:          c.Query("query"),
		Filename:       c.Query("filename"),
		CollapseVideos: c.Query("collapse") == "true",
	}
	var ok bool
	if p.MinConfidence, ok = h.floatQuery(c, "min_confidence"); !ok {
		return
	}
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		p.Limit = v
	}
	if raw := c.Query("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_offset", err)
			return
		}
		p.Offset = v
	}

	results, hasMore, err := h.engine.Search(c.Request.Context(), p)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if results == nil {
		results = []navigation.SearchResult{}
	}
	RespondOK(c, gin.H{"results": results, "has_more": hasMore})
}

// GET /api/videos/:id/find/next and .../prev
func (h *JumpHandler) FindWithin(c *gin.Context) {
	videoID := c.Param("id")
	direction := c.Param("direction")
	kind := c.Query("kind")
	query := c.Query("query")

	fromMs := int64(0)
	if raw := c.Query("from_ms"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_from_ms", err)
			return
		}
		fromMs = v
	}
	limit := 1
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return
		}
		limit = v
	}

	var (
		results []navigation.Result
		err     error
	)
	switch direction {
	case "next":
		results, err = h.engine.FindNext(c.Request.Context(), videoID, kind, query, fromMs, limit)
	case "prev":
		results, err = h.engine.FindPrev(c.Request.Context(), videoID, kind, query, fromMs, limit)
	default:
		RespondError(c, http.StatusBadRequest, "invalid_direction", nil)
		return
	}
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if results == nil {
		results = []navigation.Result{}
	}
	RespondOK(c, gin.H{"results": results})
}

func (h *JumpHandler) bindParams(c *gin.Context) (navigation.Params, bool) {
	p := navigation.Params{
		Kind:        c.Query("kind"),
		FromVideoID: c.Query("from_video_id"),
		Label:       c.Query("label"),
		Query:       c.Query("query"),
		ClusterID:   c.Query("cluster_id"),
	}
	if p.FromVideoID == "" {
		RespondError(c, http.StatusBadRequest, "missing_from_video_id", nil)
		return p, false
	}

	if raw := c.Query("from_ms"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_from_ms", err)
			return p, false
		}
		p.FromMs = &v
	}
	var ok bool
	if p.MinConfidence, ok = h.floatQuery(c, "min_confidence"); !ok {
		return p, false
	}
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_limit", err)
			return p, false
		}
		p.Limit = v
	}

	bounds := [4]string{c.Query("min_lat"), c.Query("max_lat"), c.Query("min_lon"), c.Query("max_lon")}
	if bounds[0] != "" || bounds[1] != "" || bounds[2] != "" || bounds[3] != "" {
		vals := [4]float64{}
		for i, raw := range bounds {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				RespondError(c, http.StatusBadRequest, "invalid_geo_bounds", err)
				return p, false
			}
			vals[i] = v
		}
		p.GeoBounds = &navigation.GeoBounds{MinLat: vals[0], MaxLat: vals[1], MinLon: vals[2], MaxLon: vals[3]}
	}
	return p, true
}

func (h *JumpHandler) floatQuery(c *gin.Context, name string) (*float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_"+name, err)
		return nil, false
	}
	return &v, true
}
