package navigation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eioku/eioku-backend/internal/apperr"
	"github.com/eioku/eioku-backend/internal/projection"
)

// SearchParams scans one artifact kind across the whole library.
type SearchParams struct {
	Kind          string
	Label         string
	Query         string
	Filename      string
	MinConfidence *float64
	Limit         int
	Offset        int
	// CollapseVideos returns one row per video with an artifact count
	// instead of every occurrence.
	CollapseVideos bool
}

// SearchResult is one gallery row. ArtifactCount is 1 unless the query
// collapsed to per-video rows.
type SearchResult struct {
	Result
	ArtifactCount int64 `json:"artifact_count"`
}

type searchSource struct {
	table    string
	startCol string
	endCol   string
	selects  string
}

// Search pages through a single artifact kind under the global ordering.
func (e *Engine) Search(ctx context.Context, p SearchParams) ([]SearchResult, bool, error) {
	if !validKinds[p.Kind] {
		return nil, false, apperr.InvalidParameter("kind", "unknown artifact kind "+p.Kind)
	}
	if p.Limit == 0 {
		p.Limit = 20
	}
	if p.Limit < 1 || p.Limit > maxLimit {
		return nil, false, apperr.InvalidParameter("limit", "must be between 1 and 50")
	}
	if p.Offset < 0 {
		return nil, false, apperr.InvalidParameter("offset", "must be non-negative")
	}
	if p.MinConfidence != nil && (*p.MinConfidence < 0 || *p.MinConfidence > 1) {
		return nil, false, apperr.InvalidParameter("min_confidence", "must be within [0, 1]")
	}
	if p.Label != "" && p.Query != "" {
		return nil, false, apperr.InvalidParameter("label", "label and query are mutually exclusive")
	}

	src, where, args, err := e.searchSource(p)
	if err != nil {
		return nil, false, err
	}
	if p.Filename != "" {
		where = append(where, "LOWER(v.filename) LIKE LOWER(?)")
		args = append(args, "%"+p.Filename+"%")
	}

	var sql string
	if p.CollapseVideos {
		sql = fmt.Sprintf(`
			SELECT MIN(a.artifact_id) AS artifact_id, a.asset_id,
			       MIN(a.start_ms) AS start_ms, MIN(a.end_ms) AS end_ms,
			       COUNT(*) AS artifact_count, v.filename, v.file_created_at
			FROM (SELECT %s FROM %s) a
			JOIN videos v ON v.video_id = a.asset_id
			WHERE %s
			GROUP BY a.asset_id, v.filename, v.file_created_at
			ORDER BY v.file_created_at ASC NULLS LAST, a.asset_id ASC
			LIMIT ? OFFSET ?`,
			src.selects, src.table, strings.Join(where, " AND "))
	} else {
		sql = fmt.Sprintf(`
			SELECT a.*, 1 AS artifact_count, v.filename, v.file_created_at
			FROM (SELECT %s FROM %s) a
			JOIN videos v ON v.video_id = a.asset_id
			WHERE %s
			ORDER BY v.file_created_at ASC NULLS LAST, a.asset_id ASC, a.start_ms ASC
			LIMIT ? OFFSET ?`,
			src.selects, src.table, strings.Join(where, " AND "))
	}
	args = append(args, p.Limit+1, p.Offset)

	type searchRow struct {
		ArtifactID    string
		AssetID       string
		StartMs       int64
		EndMs         int64
		Filename      string
		FileCreatedAt *time.Time
		Label         string
		Confidence    float64
		ClusterID     *string
		Text          string
		SceneIndex    int
		Latitude      float64
		Longitude     float64
		Country       *string
		State         *string
		City          *string
		ArtifactCount int64
	}
	var rows []searchRow
	if err := e.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, false, err
	}

	hasMore := len(rows) > p.Limit
	if hasMore {
		rows = rows[:p.Limit]
	}
	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		flat := artifactRow{
			ArtifactID:    row.ArtifactID,
			AssetID:       row.AssetID,
			StartMs:       row.StartMs,
			EndMs:         row.EndMs,
			Filename:      row.Filename,
			FileCreatedAt: row.FileCreatedAt,
			Label:         row.Label,
			Confidence:    row.Confidence,
			ClusterID:     row.ClusterID,
			Text:          row.Text,
			SceneIndex:    row.SceneIndex,
			Latitude:      row.Latitude,
			Longitude:     row.Longitude,
			Country:       row.Country,
			State:         row.State,
			City:          row.City,
		}
		results = append(results, SearchResult{
			Result:        flat.toResult(p.Kind),
			ArtifactCount: row.ArtifactCount,
		})
	}
	return results, hasMore, nil
}

// searchSource picks the projection table and kind filters for a search.
func (e *Engine) searchSource(p SearchParams) (searchSource, []string, []any, error) {
	where := []string{"1=1"}
	args := []any{}

	switch p.Kind {
	case KindObject, KindPlace:
		src := searchSource{
			table:   "object_labels",
			selects: "artifact_id, asset_id, label, confidence, start_ms, end_ms",
		}
		if p.Kind == KindPlace {
			where = append(where, "a.label LIKE ?")
			args = append(args, projection.PlaceLabelPrefix+"%")
			if p.Label != "" {
				where = append(where, "a.label = ?")
				args = append(args, projection.PlaceLabelPrefix+p.Label)
			}
		} else {
			where = append(where, "a.label NOT LIKE ?")
			args = append(args, projection.PlaceLabelPrefix+"%")
			if p.Label != "" {
				where = append(where, "a.label = ?")
				args = append(args, p.Label)
			}
		}
		if p.MinConfidence != nil {
			where = append(where, "a.confidence >= ?")
			args = append(args, *p.MinConfidence)
		}
		return src, where, args, nil

	case KindFace:
		src := searchSource{
			table:   "face_clusters",
			selects: "artifact_id, asset_id, cluster_id, confidence, start_ms, end_ms",
		}
		if p.Label != "" {
			where = append(where, "a.cluster_id = ?")
			args = append(args, p.Label)
		}
		if p.MinConfidence != nil {
			where = append(where, "a.confidence >= ?")
			args = append(args, *p.MinConfidence)
		}
		return src, where, args, nil

	case KindScene:
		return searchSource{
			table:   "scene_ranges",
			selects: "artifact_id, asset_id, scene_index, start_ms, end_ms",
		}, where, args, nil

	case KindTranscript, KindOCR:
		table := "transcript_fts"
		if p.Kind == KindOCR {
			table = "ocr_fts"
		}
		src := searchSource{
			table:   table,
			selects: "artifact_id, asset_id, start_ms, end_ms, text",
		}
		if p.Query != "" {
			where = append(where, "LOWER(a.text) LIKE LOWER(?)")
			args = append(args, "%"+p.Query+"%")
		}
		return src, where, args, nil

	case KindLocation:
		src := searchSource{
			table:   "video_locations",
			selects: "artifact_id, video_id AS asset_id, latitude, longitude, country, state, city, 0 AS start_ms, 0 AS end_ms",
		}
		if p.Query != "" {
			where = append(where, `(
				LOWER(COALESCE(a.country, '')) LIKE LOWER(?)
				OR LOWER(COALESCE(a.state, '')) LIKE LOWER(?)
				OR LOWER(COALESCE(a.city, '')) LIKE LOWER(?)
			)`)
			like := "%" + p.Query + "%"
			args = append(args, like, like, like)
		}
		return src, where, args, nil
	}
	return searchSource{}, nil, nil, apperr.InvalidParameter("kind", "unknown artifact kind "+p.Kind)
}
