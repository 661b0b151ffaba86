package types

import (
	"time"
)

const (
	SelectionModeDefault     = "default"
	SelectionModeLatest      = "latest"
	SelectionModePinned      = "pinned"
	SelectionModeProfile     = "profile"
	SelectionModeBestQuality = "best_quality"
)

// ArtifactSelection is the per-(asset, artifact_type) preference for which
// envelope among multiple runs to surface at query time. Weakly coupled:
// a pinned run may vanish, in which case resolution falls back to default.
type ArtifactSelection struct {
	AssetID          string    `gorm:"column:asset_id;primaryKey" json:"asset_id"`
	ArtifactType     string    `gorm:"column:artifact_type;primaryKey" json:"artifact_type"`
	SelectionMode    string    `gorm:"column:selection_mode;not null" json:"selection_mode"`
	PreferredProfile *string   `gorm:"column:preferred_profile" json:"preferred_profile,omitempty"`
	PinnedRunID      *string   `gorm:"column:pinned_run_id" json:"pinned_run_id,omitempty"`
	PinnedArtifactID *string   `gorm:"column:pinned_artifact_id" json:"pinned_artifact_id,omitempty"`
	UpdatedAt        time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (ArtifactSelection) TableName() string { return "artifact_selections" }
