package types

import (
	"time"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run groups the envelopes produced by a single pipeline invocation.
type Run struct {
	RunID           string     `gorm:"column:run_id;primaryKey" json:"run_id"`
	AssetID         string     `gorm:"column:asset_id;not null;index" json:"asset_id"`
	Asset           *Video     `gorm:"constraint:OnDelete:CASCADE;foreignKey:AssetID;references:VideoID" json:"asset,omitempty"`
	PipelineProfile string     `gorm:"column:pipeline_profile;not null" json:"pipeline_profile"`
	StartedAt       time.Time  `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt      *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	Status          string     `gorm:"column:status;not null;index" json:"status"`
	Error           *string    `gorm:"column:error;type:text" json:"error,omitempty"`
}

func (Run) TableName() string { return "runs" }
