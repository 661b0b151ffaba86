package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eioku/eioku-backend/internal/types"
)

var artifactIDConflict = clause.OnConflict{
	Columns:   []clause.Column{{Name: "artifact_id"}},
	UpdateAll: true,
}

// TranscriptHandler projects transcript.segment envelopes into the
// transcript_fts table.
type TranscriptHandler struct{}

func (h *TranscriptHandler) ArtifactType() string { return types.ArtifactTypeTranscriptSegment }

func (h *TranscriptHandler) Sync(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) error {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(artifact.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("transcript projection: %w", err)
	}
	row := types.TranscriptFTS{
		ArtifactID: artifact.ArtifactID,
		AssetID:    artifact.AssetID,
		StartMs:    artifact.SpanStartMs,
		EndMs:      artifact.SpanEndMs,
		Text:       payload.Text,
	}
	return tx.WithContext(ctx).Clauses(artifactIDConflict).Create(&row).Error
}

func (h *TranscriptHandler) Remove(ctx context.Context, tx *gorm.DB, artifactID string) error {
	return tx.WithContext(ctx).Where("artifact_id = ?", artifactID).Delete(&types.TranscriptFTS{}).Error
}

// OCRHandler projects ocr.text envelopes into the ocr_fts table.
type OCRHandler struct{}

func (h *OCRHandler) ArtifactType() string { return types.ArtifactTypeOCRText }

func (h *OCRHandler) Sync(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) error {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(artifact.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("ocr projection: %w", err)
	}
	row := types.OCRFTS{
		ArtifactID: artifact.ArtifactID,
		AssetID:    artifact.AssetID,
		StartMs:    artifact.SpanStartMs,
		EndMs:      artifact.SpanEndMs,
		Text:       payload.Text,
	}
	return tx.WithContext(ctx).Clauses(artifactIDConflict).Create(&row).Error
}

func (h *OCRHandler) Remove(ctx context.Context, tx *gorm.DB, artifactID string) error {
	return tx.WithContext(ctx).Where("artifact_id = ?", artifactID).Delete(&types.OCRFTS{}).Error
}

// SceneHandler projects scene envelopes into scene_ranges.
type SceneHandler struct{}

func (h *SceneHandler) ArtifactType() string { return types.ArtifactTypeScene }

func (h *SceneHandler) Sync(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) error {
	var payload struct {
		SceneIndex int `json:"scene_index"`
	}
	if err := json.Unmarshal(artifact.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("scene projection: %w", err)
	}
	row := types.SceneRange{
		ArtifactID: artifact.ArtifactID,
		AssetID:    artifact.AssetID,
		SceneIndex: payload.SceneIndex,
		StartMs:    artifact.SpanStartMs,
		EndMs:      artifact.SpanEndMs,
	}
	return tx.WithContext(ctx).Clauses(artifactIDConflict).Create(&row).Error
}

func (h *SceneHandler) Remove(ctx context.Context, tx *gorm.DB, artifactID string) error {
	return tx.WithContext(ctx).Where("artifact_id = ?", artifactID).Delete(&types.SceneRange{}).Error
}

// ObjectHandler projects object.detection envelopes into object_labels.
type ObjectHandler struct{}

func (h *ObjectHandler) ArtifactType() string { return types.ArtifactTypeObjectDetection }

func (h *ObjectHandler) Sync(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) error {
	var payload struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(artifact.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("object projection: %w", err)
	}
	row := types.ObjectLabel{
		ArtifactID: artifact.ArtifactID,
		AssetID:    artifact.AssetID,
		Label:      payload.Label,
		Confidence: payload.Confidence,
		StartMs:    artifact.SpanStartMs,
		EndMs:      artifact.SpanEndMs,
	}
	return tx.WithContext(ctx).Clauses(artifactIDConflict).Create(&row).Error
}

func (h *ObjectHandler) Remove(ctx context.Context, tx *gorm.DB, artifactID string) error {
	return tx.WithContext(ctx).Where("artifact_id = ?", artifactID).Delete(&types.ObjectLabel{}).Error
}

// FaceHandler projects face.detection envelopes into face_clusters.
type FaceHandler struct{}

func (h *FaceHandler) ArtifactType() string { return types.ArtifactTypeFaceDetection }

func (h *FaceHandler) Sync(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) error {
	var payload struct {
		ClusterID  *string `json:"cluster_id"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(artifact.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("face projection: %w", err)
	}
	row := types.FaceCluster{
		ArtifactID: artifact.ArtifactID,
		AssetID:    artifact.AssetID,
		ClusterID:  payload.ClusterID,
		Confidence: payload.Confidence,
		StartMs:    artifact.SpanStartMs,
		EndMs:      artifact.SpanEndMs,
	}
	return tx.WithContext(ctx).Clauses(artifactIDConflict).Create(&row).Error
}

func (h *FaceHandler) Remove(ctx context.Context, tx *gorm.DB, artifactID string) error {
	return tx.WithContext(ctx).Where("artifact_id = ?", artifactID).Delete(&types.FaceCluster{}).Error
}

// PlaceLabelPrefix marks place rows inside the shared object_labels table.
const PlaceLabelPrefix = "place:"

// PlaceHandler projects place.classification envelopes into object_labels
// using the top prediction; place labels carry the "place:" prefix so the
// query layer can tell them apart from object detections.
type PlaceHandler struct{}

func (h *PlaceHandler) ArtifactType() string { return types.ArtifactTypePlaceClassification }

func (h *PlaceHandler) Sync(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) error {
	var payload struct {
		Predictions []struct {
			Label      string  `json:"label"`
			Confidence float64 `json:"confidence"`
		} `json:"predictions"`
	}
	if err := json.Unmarshal(artifact.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("place projection: %w", err)
	}
	if len(payload.Predictions) == 0 {
		return nil
	}
	top := payload.Predictions[0]
	for _, p := range payload.Predictions[1:] {
		if p.Confidence > top.Confidence {
			top = p
		}
	}
	row := types.ObjectLabel{
		ArtifactID: artifact.ArtifactID,
		AssetID:    artifact.AssetID,
		Label:      PlaceLabelPrefix + top.Label,
		Confidence: top.Confidence,
		StartMs:    artifact.SpanStartMs,
		EndMs:      artifact.SpanEndMs,
	}
	return tx.WithContext(ctx).Clauses(artifactIDConflict).Create(&row).Error
}

func (h *PlaceHandler) Remove(ctx context.Context, tx *gorm.DB, artifactID string) error {
	return tx.WithContext(ctx).Where("artifact_id = ?", artifactID).Delete(&types.ObjectLabel{}).Error
}
