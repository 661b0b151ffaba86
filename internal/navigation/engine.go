package navigation

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/eioku/eioku-backend/internal/apperr"
	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/types"
)

const (
	KindObject     = "object"
	KindFace       = "face"
	KindTranscript = "transcript"
	KindOCR        = "ocr"
	KindScene      = "scene"
	KindPlace      = "place"
	KindLocation   = "location"
)

const (
	directionNext = "next"
	directionPrev = "prev"

	// maxFromMs stands in for "end of video" when prev is called without
	// a position.
	maxFromMs = int64(1<<31 - 1)

	maxLimit = 50
)

var validKinds = map[string]bool{
	KindObject:     true,
	KindFace:       true,
	KindTranscript: true,
	KindOCR:        true,
	KindScene:      true,
	KindPlace:      true,
	KindLocation:   true,
}

type JumpTo struct {
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
}

// Result is one artifact position on the global timeline.
type Result struct {
	VideoID       string         `json:"video_id"`
	VideoFilename string         `json:"video_filename"`
	FileCreatedAt *time.Time     `json:"file_created_at,omitempty"`
	JumpTo        JumpTo         `json:"jump_to"`
	ArtifactID    string         `json:"artifact_id"`
	Preview       map[string]any `json:"preview"`
}

// GeoBounds is a bounding box filter for the location kind.
type GeoBounds struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Params is one stateless jump query. Zero values mean "not set".
type Params struct {
	Kind          string
	FromVideoID   string
	FromMs        *int64
	Label         string
	Query         string
	ClusterID     string
	MinConfidence *float64
	GeoBounds     *GeoBounds
	Limit         int
}

// Engine answers position-parameterized queries over the whole library in
// the deterministic global order (file_created_at, video_id, start_ms),
// NULL creation dates last in both directions. It holds no session state:
// every call stands alone.
type Engine struct {
	db         *gorm.DB
	isPostgres bool
	log        *logger.Logger
}

func NewEngine(db *gorm.DB, isPostgres bool, baseLog *logger.Logger) *Engine {
	return &Engine{
		db:         db,
		isPostgres: isPostgres,
		log:        baseLog.With("service", "NavigationEngine"),
	}
}

// JumpNext returns up to limit artifacts strictly after the position,
// plus whether more matches exist beyond them.
func (e *Engine) JumpNext(ctx context.Context, p Params) ([]Result, bool, error) {
	return e.jump(ctx, directionNext, p)
}

// JumpPrev is the mirror: strictly before the position, descending.
func (e *Engine) JumpPrev(ctx context.Context, p Params) ([]Result, bool, error) {
	return e.jump(ctx, directionPrev, p)
}

func (e *Engine) jump(ctx context.Context, direction string, p Params) ([]Result, bool, error) {
	if err := e.validate(&p); err != nil {
		return nil, false, err
	}

	video, err := e.getVideo(ctx, p.FromVideoID)
	if err != nil {
		return nil, false, err
	}

	fromMs := int64(0)
	if direction == directionPrev {
		fromMs = maxFromMs
	}
	if p.FromMs != nil {
		fromMs = *p.FromMs
	}

	pos := position{
		direction:     direction,
		fromVideoID:   video.VideoID,
		fromMs:        fromMs,
		fileCreatedAt: video.FileCreatedAt,
	}

	var rows []artifactRow
	switch p.Kind {
	case KindObject:
		rows, err = e.queryObjects(ctx, pos, p, false)
	case KindPlace:
		rows, err = e.queryObjects(ctx, pos, p, true)
	case KindFace:
		rows, err = e.queryFaces(ctx, pos, p)
	case KindScene:
		rows, err = e.queryScenes(ctx, pos, p)
	case KindTranscript:
		rows, err = e.queryText(ctx, pos, p, "transcript_fts")
	case KindOCR:
		rows, err = e.queryText(ctx, pos, p, "ocr_fts")
	case KindLocation:
		rows, err = e.queryLocations(ctx, pos, p)
	}
	if err != nil {
		return nil, false, err
	}

	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toResult(p.Kind))
	}
	return results, hasMore, nil
}

func (e *Engine) validate(p *Params) error {
	if !validKinds[p.Kind] {
		return apperr.InvalidParameter("kind", "unknown artifact kind "+p.Kind)
	}
	if p.Limit == 0 {
		p.Limit = 1
	}
	if p.Limit < 1 || p.Limit > maxLimit {
		return apperr.InvalidParameter("limit", "must be between 1 and 50")
	}
	if p.FromMs != nil && *p.FromMs < 0 {
		return apperr.InvalidParameter("from_ms", "must be non-negative")
	}
	if p.MinConfidence != nil && (*p.MinConfidence < 0 || *p.MinConfidence > 1) {
		return apperr.InvalidParameter("min_confidence", "must be within [0, 1]")
	}
	if p.Label != "" && p.Query != "" {
		return apperr.InvalidParameter("label", "label and query are mutually exclusive")
	}

	switch p.Kind {
	case KindTranscript, KindOCR:
		if p.Query == "" {
			return apperr.InvalidParameter("query", "required for "+p.Kind+" search")
		}
	case KindFace:
		if p.Query != "" {
			return apperr.InvalidParameter("query", "not applicable to face search")
		}
	case KindScene:
		if p.Label != "" || p.Query != "" {
			return apperr.InvalidParameter("kind", "scene search takes no filters")
		}
	}
	return nil
}

func (e *Engine) getVideo(ctx context.Context, videoID string) (*types.Video, error) {
	var video types.Video
	err := e.db.WithContext(ctx).
		Where("video_id = ?", videoID).
		First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &apperr.VideoNotFoundError{VideoID: videoID}
	}
	if err != nil {
		return nil, err
	}
	return &video, nil
}
