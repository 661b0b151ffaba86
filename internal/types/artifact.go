package types

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ArtifactTypeTranscriptSegment   = "transcript.segment"
	ArtifactTypeScene               = "scene"
	ArtifactTypeObjectDetection     = "object.detection"
	ArtifactTypeFaceDetection       = "face.detection"
	ArtifactTypeOCRText             = "ocr.text"
	ArtifactTypePlaceClassification = "place.classification"
	ArtifactTypeVideoMetadata       = "video.metadata"
)

const (
	ModelProfileFast        = "fast"
	ModelProfileBalanced    = "balanced"
	ModelProfileHighQuality = "high_quality"
)

// Artifact is the canonical append-only envelope for one ML output. Rows
// are never mutated after insertion; re-runs insert new envelopes with a
// different run_id.
type Artifact struct {
	ArtifactID      string         `gorm:"column:artifact_id;primaryKey" json:"artifact_id"`
	AssetID         string         `gorm:"column:asset_id;not null;index" json:"asset_id"`
	Asset           *Video         `gorm:"constraint:OnDelete:CASCADE;foreignKey:AssetID;references:VideoID" json:"asset,omitempty"`
	ArtifactType    string         `gorm:"column:artifact_type;not null;index" json:"artifact_type"`
	SchemaVersion   int            `gorm:"column:schema_version;not null" json:"schema_version"`
	SpanStartMs     int64          `gorm:"column:span_start_ms;not null" json:"span_start_ms"`
	SpanEndMs       int64          `gorm:"column:span_end_ms;not null" json:"span_end_ms"`
	PayloadJSON     datatypes.JSON `gorm:"column:payload_json;not null" json:"payload_json"`
	Producer        string         `gorm:"column:producer;not null" json:"producer"`
	ProducerVersion string         `gorm:"column:producer_version;not null" json:"producer_version"`
	ModelProfile    string         `gorm:"column:model_profile;not null;index" json:"model_profile"`
	ConfigHash      string         `gorm:"column:config_hash;not null" json:"config_hash"`
	InputHash       string         `gorm:"column:input_hash;not null" json:"input_hash"`
	RunID           string         `gorm:"column:run_id;not null;index" json:"run_id"`
	CreatedAt       time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (Artifact) TableName() string { return "artifacts" }
