package navigation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eioku/eioku-backend/internal/projection"
)

// position fixes one end of a direction clause: the caller's place on the
// global timeline.
type position struct {
	direction     string
	fromVideoID   string
	fromMs        int64
	fileCreatedAt *time.Time
}

// artifactRow is the union of every kind's SELECT list; each query fills
// the columns it has.
type artifactRow struct {
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
}

func (row artifactRow) toResult(kind string) Result {
	preview := map[string]any{}
	switch kind {
	case KindObject:
		preview["label"] = row.Label
		preview["confidence"] = row.Confidence
	case KindPlace:
		preview["label"] = strings.TrimPrefix(row.Label, projection.PlaceLabelPrefix)
		preview["confidence"] = row.Confidence
	case KindFace:
		preview["cluster_id"] = row.ClusterID
		preview["confidence"] = row.Confidence
	case KindTranscript, KindOCR:
		preview["text"] = row.Text
	case KindScene:
		preview["scene_index"] = row.SceneIndex
	case KindLocation:
		preview["latitude"] = row.Latitude
		preview["longitude"] = row.Longitude
		preview["country"] = row.Country
		preview["state"] = row.State
		preview["city"] = row.City
	}
	return Result{
		VideoID:       row.AssetID,
		VideoFilename: row.Filename,
		FileCreatedAt: row.FileCreatedAt,
		JumpTo:        JumpTo{StartMs: row.StartMs, EndMs: row.EndMs},
		ArtifactID:    row.ArtifactID,
		Preview:       preview,
	}
}

// directionClause builds the strict global-order comparison against the
// current position. startCol is the artifact table's start_ms column.
// NULL file_created_at sorts after every dated video in both directions.
func directionClause(pos position, startCol string) (string, []any) {
	if pos.direction == directionNext {
		if pos.fileCreatedAt != nil {
			clause := fmt.Sprintf(`AND (
				v.file_created_at > ?
				OR v.file_created_at IS NULL
				OR (v.file_created_at = ? AND v.video_id > ?)
				OR (v.file_created_at = ? AND v.video_id = ? AND %s > ?)
			)`, startCol)
			return clause, []any{
				*pos.fileCreatedAt,
				*pos.fileCreatedAt, pos.fromVideoID,
				*pos.fileCreatedAt, pos.fromVideoID, pos.fromMs,
			}
		}
		clause := fmt.Sprintf(`AND (
			(v.file_created_at IS NULL AND v.video_id > ?)
			OR (v.file_created_at IS NULL AND v.video_id = ? AND %s > ?)
		)`, startCol)
		return clause, []any{pos.fromVideoID, pos.fromVideoID, pos.fromMs}
	}

	if pos.fileCreatedAt != nil {
		clause := fmt.Sprintf(`AND (
			(v.file_created_at IS NOT NULL AND v.file_created_at < ?)
			OR (v.file_created_at = ? AND v.video_id < ?)
			OR (v.file_created_at = ? AND v.video_id = ? AND %s < ?)
		)`, startCol)
		return clause, []any{
			*pos.fileCreatedAt,
			*pos.fileCreatedAt, pos.fromVideoID,
			*pos.fileCreatedAt, pos.fromVideoID, pos.fromMs,
		}
	}
	clause := fmt.Sprintf(`AND (
		v.file_created_at IS NOT NULL
		OR (v.file_created_at IS NULL AND v.video_id < ?)
		OR (v.file_created_at IS NULL AND v.video_id = ? AND %s < ?)
	)`, startCol)
	return clause, []any{pos.fromVideoID, pos.fromVideoID, pos.fromMs}
}

// orderClause orders by the global timeline key; descending for prev.
func orderClause(direction string, startCol string) string {
	if direction == directionNext {
		return fmt.Sprintf(`ORDER BY v.file_created_at ASC NULLS LAST,
			v.video_id ASC, %s ASC`, startCol)
	}
	return fmt.Sprintf(`ORDER BY v.file_created_at DESC NULLS LAST,
		v.video_id DESC, %s DESC`, startCol)
}

// queryObjects serves both the object and place kinds off the shared
// object_labels table; the place rows carry the "place:" label prefix.
func (e *Engine) queryObjects(ctx context.Context, pos position, p Params, places bool) ([]artifactRow, error) {
	where := []string{}
	args := []any{}

	if places {
		where = append(where, "ol.label LIKE ?")
		args = append(args, projection.PlaceLabelPrefix+"%")
		if p.Label != "" {
			where = append(where, "ol.label = ?")
			args = append(args, projection.PlaceLabelPrefix+p.Label)
		}
	} else {
		where = append(where, "ol.label NOT LIKE ?")
		args = append(args, projection.PlaceLabelPrefix+"%")
		if p.Label != "" {
			where = append(where, "ol.label = ?")
			args = append(args, p.Label)
		}
	}
	if p.MinConfidence != nil {
		where = append(where, "ol.confidence >= ?")
		args = append(args, *p.MinConfidence)
	}

	dirClause, dirArgs := directionClause(pos, "ol.start_ms")
	args = append(args, dirArgs...)
	args = append(args, p.Limit+1)

	sql := fmt.Sprintf(`
		SELECT ol.artifact_id, ol.asset_id, ol.label, ol.confidence,
		       ol.start_ms, ol.end_ms, v.filename, v.file_created_at
		FROM object_labels ol
		JOIN videos v ON v.video_id = ol.asset_id
		WHERE %s
		%s
		%s
		LIMIT ?`,
		strings.Join(where, " AND "), dirClause, orderClause(pos.direction, "ol.start_ms"))

	var rows []artifactRow
	if err := e.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (e *Engine) queryFaces(ctx context.Context, pos position, p Params) ([]artifactRow, error) {
	where := []string{"1=1"}
	args := []any{}

	if p.ClusterID != "" {
		where = append(where, "fc.cluster_id = ?")
		args = append(args, p.ClusterID)
	}
	if p.MinConfidence != nil {
		where = append(where, "fc.confidence >= ?")
		args = append(args, *p.MinConfidence)
	}

	dirClause, dirArgs := directionClause(pos, "fc.start_ms")
	args = append(args, dirArgs...)
	args = append(args, p.Limit+1)

	sql := fmt.Sprintf(`
		SELECT fc.artifact_id, fc.asset_id, fc.cluster_id, fc.confidence,
		       fc.start_ms, fc.end_ms, v.filename, v.file_created_at
		FROM face_clusters fc
		JOIN videos v ON v.video_id = fc.asset_id
		WHERE %s
		%s
		%s
		LIMIT ?`,
		strings.Join(where, " AND "), dirClause, orderClause(pos.direction, "fc.start_ms"))

	var rows []artifactRow
	if err := e.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (e *Engine) queryScenes(ctx context.Context, pos position, p Params) ([]artifactRow, error) {
	dirClause, dirArgs := directionClause(pos, "sr.start_ms")
	args := append([]any{}, dirArgs...)
	args = append(args, p.Limit+1)

	sql := fmt.Sprintf(`
		SELECT sr.artifact_id, sr.asset_id, sr.scene_index,
		       sr.start_ms, sr.end_ms, v.filename, v.file_created_at
		FROM scene_ranges sr
		JOIN videos v ON v.video_id = sr.asset_id
		WHERE 1=1
		%s
		%s
		LIMIT ?`,
		dirClause, orderClause(pos.direction, "sr.start_ms"))

	var rows []artifactRow
	if err := e.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// queryText serves transcript and OCR full-text search. The native
// tsvector path runs first where the dialect has it; an empty native
// result (stop-word-only queries) falls back to case-insensitive
// substring matching under the same ordering and direction clause.
func (e *Engine) queryText(ctx context.Context, pos position, p Params, table string) ([]artifactRow, error) {
	if e.isPostgres {
		rows, err := e.queryTextMatch(ctx, pos, p, table, "t.text_tsv @@ plainto_tsquery('english', ?)", p.Query)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			return rows, nil
		}
		return e.queryTextMatch(ctx, pos, p, table, "t.text ILIKE ?", "%"+p.Query+"%")
	}
	return e.queryTextMatch(ctx, pos, p, table, "LOWER(t.text) LIKE LOWER(?)", "%"+p.Query+"%")
}

func (e *Engine) queryTextMatch(ctx context.Context, pos position, p Params, table, matchClause string, matchArg any) ([]artifactRow, error) {
	dirClause, dirArgs := directionClause(pos, "t.start_ms")
	args := []any{matchArg}
	args = append(args, dirArgs...)
	args = append(args, p.Limit+1)

	sql := fmt.Sprintf(`
		SELECT t.artifact_id, t.asset_id, t.start_ms, t.end_ms, t.text,
		       v.filename, v.file_created_at
		FROM %s t
		JOIN videos v ON v.video_id = t.asset_id
		WHERE %s
		%s
		%s
		LIMIT ?`,
		table, matchClause, dirClause, orderClause(pos.direction, "t.start_ms"))

	var rows []artifactRow
	if err := e.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// queryLocations navigates video-level locations: one artifact per video,
// spanning the whole video, so the position column is a constant zero.
func (e *Engine) queryLocations(ctx context.Context, pos position, p Params) ([]artifactRow, error) {
	where := []string{"1=1"}
	args := []any{}

	if p.GeoBounds != nil {
		where = append(where, "vl.latitude BETWEEN ? AND ?", "vl.longitude BETWEEN ? AND ?")
		args = append(args, p.GeoBounds.MinLat, p.GeoBounds.MaxLat, p.GeoBounds.MinLon, p.GeoBounds.MaxLon)
	}
	if p.Query != "" {
		where = append(where, `(
			LOWER(COALESCE(vl.country, '')) LIKE LOWER(?)
			OR LOWER(COALESCE(vl.state, '')) LIKE LOWER(?)
			OR LOWER(COALESCE(vl.city, '')) LIKE LOWER(?)
		)`)
		like := "%" + p.Query + "%"
		args = append(args, like, like, like)
	}

	dirClause, dirArgs := directionClause(pos, "(0)")
	args = append(args, dirArgs...)
	args = append(args, p.Limit+1)

	sql := fmt.Sprintf(`
		SELECT vl.artifact_id, vl.video_id AS asset_id, vl.latitude, vl.longitude,
		       vl.country, vl.state, vl.city,
		       0 AS start_ms, 0 AS end_ms, v.filename, v.file_created_at
		FROM video_locations vl
		JOIN videos v ON v.video_id = vl.video_id
		WHERE %s
		%s
		%s
		LIMIT ?`,
		strings.Join(where, " AND "), dirClause, orderClause(pos.direction, "(0)"))

	var rows []artifactRow
	if err := e.db.WithContext(ctx).Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
