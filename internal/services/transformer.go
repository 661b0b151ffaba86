package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/eioku/eioku-backend/internal/producer"
	"github.com/eioku/eioku-backend/internal/tasks"
	"github.com/eioku/eioku-backend/internal/types"
)

// BuildEnvelopes turns a producer response into artifact envelopes ready
// for the store. Task types without an envelope form (topic extraction,
// embeddings) return an empty slice; their output is the run record.
func BuildEnvelopes(task *types.Task, resp *producer.Response) ([]*types.Artifact, error) {
	switch tasks.TaskType(task.TaskType) {
	case tasks.TypeTranscription:
		return transcriptEnvelopes(task, resp)
	case tasks.TypeSceneDetection:
		return sceneEnvelopes(task, resp)
	case tasks.TypeObjectDetection:
		return objectEnvelopes(task, resp)
	case tasks.TypeFaceDetection:
		return faceEnvelopes(task, resp)
	case tasks.TypeOCR:
		return ocrEnvelopes(task, resp)
	case tasks.TypePlaceDetection:
		return placeEnvelopes(task, resp)
	case tasks.TypeMetadataExtraction:
		return metadataEnvelopes(task, resp)
	case tasks.TypeTopicExtraction, tasks.TypeEmbeddingGeneration:
		return nil, nil
	default:
		return nil, fmt.Errorf("no envelope mapping for task type %q", task.TaskType)
	}
}

func newEnvelope(task *types.Task, resp *producer.Response, artifactType string, startMs, endMs int64, payload any) (*types.Artifact, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &types.Artifact{
		ArtifactID:      uuid.NewString(),
		AssetID:         task.VideoID,
		ArtifactType:    artifactType,
		SchemaVersion:   1,
		SpanStartMs:     startMs,
		SpanEndMs:       endMs,
		PayloadJSON:     datatypes.JSON(raw),
		Producer:        resp.Producer,
		ProducerVersion: resp.ProducerVersion,
		ModelProfile:    resp.ModelProfile,
		ConfigHash:      resp.ConfigHash,
		InputHash:       resp.InputHash,
		RunID:           resp.RunID,
	}, nil
}

func transcriptEnvelopes(task *types.Task, resp *producer.Response) ([]*types.Artifact, error) {
	out := make([]*types.Artifact, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		payload := map[string]any{
			"text":     seg.Text,
			"start_ms": seg.StartMs,
			"end_ms":   seg.EndMs,
		}
		if task.Language != nil {
			payload["language"] = *task.Language
		}
		if seg.Confidence != nil {
			payload["confidence"] = *seg.Confidence
		}
		if len(seg.Words) > 0 {
			payload["words"] = seg.Words
		}
		envelope, err := newEnvelope(task, resp, types.ArtifactTypeTranscriptSegment, seg.StartMs, seg.EndMs, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, envelope)
	}
	return out, nil
}

func sceneEnvelopes(task *types.Task, resp *producer.Response) ([]*types.Artifact, error) {
	out := make([]*types.Artifact, 0, len(resp.Scenes))
	for _, scene := range resp.Scenes {
		payload := map[string]any{
			"scene_index": scene.SceneIndex,
			"start_ms":    scene.StartMs,
			"end_ms":      scene.EndMs,
		}
		envelope, err := newEnvelope(task, resp, types.ArtifactTypeScene, scene.StartMs, scene.EndMs, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, envelope)
	}
	return out, nil
}

func objectEnvelopes(task *types.Task, resp *producer.Response) ([]*types.Artifact, error) {
	out := make([]*types.Artifact, 0, len(resp.Detections))
	for _, det := range resp.Detections {
		payload := map[string]any{
			"label":        det.Label,
			"confidence":   det.Confidence,
			"frame_number": det.FrameIndex,
		}
		if det.BBox != nil {
			payload["bounding_box"] = det.BBox
		}
		envelope, err := newEnvelope(task, resp, types.ArtifactTypeObjectDetection, det.TimestampMs, det.TimestampMs, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, envelope)
	}
	return out, nil
}

func faceEnvelopes(task *types.Task, resp *producer.Response) ([]*types.Artifact, error) {
	out := make([]*types.Artifact, 0, len(resp.Detections))
	for _, det := range resp.Detections {
		payload := map[string]any{
			"confidence":   det.Confidence,
			"frame_number": det.FrameIndex,
		}
		if det.ClusterID != nil {
			payload["cluster_id"] = *det.ClusterID
		}
		if det.BBox != nil {
			payload["bounding_box"] = det.BBox
		}
		envelope, err := newEnvelope(task, resp, types.ArtifactTypeFaceDetection, det.TimestampMs, det.TimestampMs, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, envelope)
	}
	return out, nil
}

func ocrEnvelopes(task *types.Task, resp *producer.Response) ([]*types.Artifact, error) {
	out := make([]*types.Artifact, 0, len(resp.Detections))
	for _, det := range resp.Detections {
		payload := map[string]any{
			"text":         det.Label,
			"confidence":   det.Confidence,
			"frame_number": det.FrameIndex,
		}
		if len(det.Polygon) > 0 {
			payload["polygon"] = det.Polygon
		}
		envelope, err := newEnvelope(task, resp, types.ArtifactTypeOCRText, det.TimestampMs, det.TimestampMs, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, envelope)
	}
	return out, nil
}

func placeEnvelopes(task *types.Task, resp *producer.Response) ([]*types.Artifact, error) {
	out := make([]*types.Artifact, 0, len(resp.Classifications))
	for _, cls := range resp.Classifications {
		payload := map[string]any{
			"frame_number": cls.FrameIndex,
			"predictions":  cls.Predictions,
		}
		envelope, err := newEnvelope(task, resp, types.ArtifactTypePlaceClassification, cls.TimestampMs, cls.TimestampMs, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, envelope)
	}
	return out, nil
}

func metadataEnvelopes(task *types.Task, resp *producer.Response) ([]*types.Artifact, error) {
	if resp.Metadata == nil {
		return nil, nil
	}
	raw, err := json.Marshal(resp.Metadata)
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}

	var endMs int64
	if resp.Metadata.DurationSeconds != nil {
		endMs = int64(*resp.Metadata.DurationSeconds * 1000)
	}
	envelope, err := newEnvelope(task, resp, types.ArtifactTypeVideoMetadata, 0, endMs, payload)
	if err != nil {
		return nil, err
	}
	return []*types.Artifact{envelope}, nil
}

// exifDateLayouts are the creation-date formats metadata producers emit.
var exifDateLayouts = []string{
	time.RFC3339,
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
}

// ParseCreateDate parses a metadata create_date string into the
// file_created_at sort key.
func ParseCreateDate(raw string) *time.Time {
	for _, layout := range exifDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
