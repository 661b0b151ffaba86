package types

import (
	"time"
)

const (
	VideoStatusDiscovered = "discovered"
	VideoStatusHashed     = "hashed"
	VideoStatusProcessing = "processing"
	VideoStatusCompleted  = "completed"
	VideoStatusFailed     = "failed"
	VideoStatusMissing    = "missing"
)

type Video struct {
	VideoID         string     `gorm:"column:video_id;primaryKey" json:"video_id"`
	FilePath        string     `gorm:"column:file_path;not null;uniqueIndex" json:"file_path"`
	Filename        string     `gorm:"column:filename;not null" json:"filename"`
	FileSize        int64      `gorm:"column:file_size" json:"file_size"`
	FileHash        *string    `gorm:"column:file_hash;index" json:"file_hash,omitempty"`
	DurationSeconds *float64   `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	LastModified    time.Time  `gorm:"column:last_modified;not null" json:"last_modified"`
	FileCreatedAt   *time.Time `gorm:"column:file_created_at;index" json:"file_created_at,omitempty"`
	Status          string     `gorm:"column:status;not null;default:'discovered';index" json:"status"`
	ProcessedAt     *time.Time `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Video) TableName() string { return "videos" }

func (v *Video) HasHash() bool { return v.FileHash != nil && *v.FileHash != "" }
