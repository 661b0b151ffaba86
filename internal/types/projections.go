package types

// Projection rows are derived from artifact envelopes and maintained in the
// same transaction that inserts the envelope. Every row except
// VideoLocation (keyed on video_id) keys on artifact_id so re-syncing the
// same envelope is an UPSERT, not a duplicate.

type SceneRange struct {
	ArtifactID string `gorm:"column:artifact_id;primaryKey" json:"artifact_id"`
	AssetID    string `gorm:"column:asset_id;not null;index" json:"asset_id"`
	SceneIndex int    `gorm:"column:scene_index;not null;index" json:"scene_index"`
	StartMs    int64  `gorm:"column:start_ms;not null" json:"start_ms"`
	EndMs      int64  `gorm:"column:end_ms;not null" json:"end_ms"`
}

func (SceneRange) TableName() string { return "scene_ranges" }

// ObjectLabel also carries place.classification rows; place labels are
// written with a "place:" prefix and distinguished at query time.
type ObjectLabel struct {
	ArtifactID string  `gorm:"column:artifact_id;primaryKey" json:"artifact_id"`
	AssetID    string  `gorm:"column:asset_id;not null;index" json:"asset_id"`
	Label      string  `gorm:"column:label;not null;index" json:"label"`
	Confidence float64 `gorm:"column:confidence;not null;index" json:"confidence"`
	StartMs    int64   `gorm:"column:start_ms;not null" json:"start_ms"`
	EndMs      int64   `gorm:"column:end_ms;not null" json:"end_ms"`
}

func (ObjectLabel) TableName() string { return "object_labels" }

type FaceCluster struct {
	ArtifactID string  `gorm:"column:artifact_id;primaryKey" json:"artifact_id"`
	AssetID    string  `gorm:"column:asset_id;not null;index" json:"asset_id"`
	ClusterID  *string `gorm:"column:cluster_id;index" json:"cluster_id,omitempty"`
	Confidence float64 `gorm:"column:confidence;not null;index" json:"confidence"`
	StartMs    int64   `gorm:"column:start_ms;not null" json:"start_ms"`
	EndMs      int64   `gorm:"column:end_ms;not null" json:"end_ms"`
}

func (FaceCluster) TableName() string { return "face_clusters" }

// VideoLocation holds one resolved location per video (UPSERT by video_id).
type VideoLocation struct {
	ArtifactID string   `gorm:"column:artifact_id;not null;index" json:"artifact_id"`
	VideoID    string   `gorm:"column:video_id;primaryKey" json:"video_id"`
	Latitude   float64  `gorm:"column:latitude;not null" json:"latitude"`
	Longitude  float64  `gorm:"column:longitude;not null" json:"longitude"`
	Altitude   *float64 `gorm:"column:altitude" json:"altitude,omitempty"`
	Country    *string  `gorm:"column:country;index" json:"country,omitempty"`
	State      *string  `gorm:"column:state;index" json:"state,omitempty"`
	City       *string  `gorm:"column:city;index" json:"city,omitempty"`
}

func (VideoLocation) TableName() string { return "video_locations" }

// TranscriptFTS is the plain relational side of the transcript full-text
// projection. On Postgres a text_tsv column and GIN index are added on top
// of this table by the FTS migration; on SQLite queries fall back to LIKE.
type TranscriptFTS struct {
	ArtifactID string `gorm:"column:artifact_id;primaryKey" json:"artifact_id"`
	AssetID    string `gorm:"column:asset_id;not null;index" json:"asset_id"`
	StartMs    int64  `gorm:"column:start_ms;not null" json:"start_ms"`
	EndMs      int64  `gorm:"column:end_ms;not null" json:"end_ms"`
	Text       string `gorm:"column:text;type:text;not null" json:"text"`
}

func (TranscriptFTS) TableName() string { return "transcript_fts" }

type OCRFTS struct {
	ArtifactID string `gorm:"column:artifact_id;primaryKey" json:"artifact_id"`
	AssetID    string `gorm:"column:asset_id;not null;index" json:"asset_id"`
	StartMs    int64  `gorm:"column:start_ms;not null" json:"start_ms"`
	EndMs      int64  `gorm:"column:end_ms;not null" json:"end_ms"`
	Text       string `gorm:"column:text;type:text;not null" json:"text"`
}

func (OCRFTS) TableName() string { return "ocr_fts" }
