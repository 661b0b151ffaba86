package navigation

import (
	"context"
	"fmt"

	"github.com/eioku/eioku-backend/internal/apperr"
)

// FindNext locates the next transcript/OCR match inside one video,
// strictly after fromMs.
func (e *Engine) FindNext(ctx context.Context, videoID, kind, query string, fromMs int64, limit int) ([]Result, error) {
	return e.findWithin(ctx, directionNext, videoID, kind, query, fromMs, limit)
}

// FindPrev is the backward mirror of FindNext.
func (e *Engine) FindPrev(ctx context.Context, videoID, kind, query string, fromMs int64, limit int) ([]Result, error) {
	return e.findWithin(ctx, directionPrev, videoID, kind, query, fromMs, limit)
}

func (e *Engine) findWithin(ctx context.Context, direction, videoID, kind, query string, fromMs int64, limit int) ([]Result, error) {
	var table string
	switch kind {
	case KindTranscript:
		table = "transcript_fts"
	case KindOCR:
		table = "ocr_fts"
	default:
		return nil, apperr.InvalidParameter("kind", "within-video find supports transcript and ocr only")
	}
	if query == "" {
		return nil, apperr.InvalidParameter("query", "required for "+kind+" search")
	}
	if limit < 1 || limit > maxLimit {
		return nil, apperr.InvalidParameter("limit", "must be between 1 and 50")
	}
	if fromMs < 0 {
		return nil, apperr.InvalidParameter("from_ms", "must be non-negative")
	}

	if _, err := e.getVideo(ctx, videoID); err != nil {
		return nil, err
	}

	if e.isPostgres {
		rows, err := e.findWithinMatch(ctx, direction, videoID, table,
			"t.text_tsv @@ plainto_tsquery('english', ?)", query, fromMs, limit)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			return rows, nil
		}
		return e.findWithinMatch(ctx, direction, videoID, table,
			"t.text ILIKE ?", "%"+query+"%", fromMs, limit)
	}
	return e.findWithinMatch(ctx, direction, videoID, table,
		"LOWER(t.text) LIKE LOWER(?)", "%"+query+"%", fromMs, limit)
}

func (e *Engine) findWithinMatch(ctx context.Context, direction, videoID, table, matchClause string, matchArg any, fromMs int64, limit int) ([]Result, error) {
	cmp, order := ">", "ASC"
	if direction == directionPrev {
		cmp, order = "<", "DESC"
	}

	sql := fmt.Sprintf(`
		SELECT t.artifact_id, t.asset_id, t.start_ms, t.end_ms, t.text,
		       v.filename, v.file_created_at
		FROM %s t
		JOIN videos v ON v.video_id = t.asset_id
		WHERE t.asset_id = ?
		  AND %s
		  AND t.start_ms %s ?
		ORDER BY t.start_ms %s
		LIMIT ?`,
		table, matchClause, cmp, order)

	var rows []artifactRow
	if err := e.db.WithContext(ctx).
		Raw(sql, videoID, matchArg, fromMs, limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	kind := KindTranscript
	if table == "ocr_fts" {
		kind = KindOCR
	}
	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, row.toResult(kind))
	}
	return results, nil
}
