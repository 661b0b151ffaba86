package types

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
	TaskStatusCancelled = "cancelled"
)

type Task struct {
	TaskID       string         `gorm:"column:task_id;primaryKey" json:"task_id"`
	VideoID      string         `gorm:"column:video_id;not null;index" json:"video_id"`
	Video        *Video         `gorm:"constraint:OnDelete:CASCADE;foreignKey:VideoID;references:VideoID" json:"video,omitempty"`
	TaskType     string         `gorm:"column:task_type;not null;index" json:"task_type"`
	Status       string         `gorm:"column:status;not null;default:'pending';index" json:"status"`
	Priority     int            `gorm:"column:priority;not null;default:5" json:"priority"`
	Dependencies datatypes.JSON `gorm:"column:dependencies" json:"dependencies,omitempty"`
	Language     *string        `gorm:"column:language;index" json:"language,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
	StartedAt    *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	Error        *string        `gorm:"column:error;type:text" json:"error,omitempty"`
}

func (Task) TableName() string { return "tasks" }

func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed || t.Status == TaskStatusCancelled
}
