package services

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/repos"
	"github.com/eioku/eioku-backend/internal/types"
)

// VideoIntake is what the discovery collaborator hands the core for each
// file it finds.
type VideoIntake struct {
	FilePath     string    `json:"file_path"`
	Filename     string    `json:"filename"`
	FileSize     int64     `json:"file_size"`
	LastModified time.Time `json:"last_modified"`
}

type VideoService struct {
	log       *logger.Logger
	videoRepo repos.VideoRepo
}

func NewVideoService(baseLog *logger.Logger, videoRepo repos.VideoRepo) *VideoService {
	return &VideoService{
		log:       baseLog.With("service", "VideoService"),
		videoRepo: videoRepo,
	}
}

// Intake creates a video record in discovered state. A duplicate
// file_path is a Conflict.
func (s *VideoService) Intake(ctx context.Context, in VideoIntake) (*types.Video, error) {
	filename := in.Filename
	if filename == "" {
		filename = filepath.Base(in.FilePath)
	}
	video := &types.Video{
		VideoID:      uuid.NewString(),
		FilePath:     in.FilePath,
		Filename:     filename,
		FileSize:     in.FileSize,
		LastModified: in.LastModified,
		Status:       types.VideoStatusDiscovered,
	}
	created, err := s.videoRepo.Create(ctx, nil, video)
	if err != nil {
		return nil, err
	}
	s.log.Info("Video discovered", "video_id", created.VideoID, "file_path", created.FilePath)
	return created, nil
}

func (s *VideoService) Get(ctx context.Context, videoID string) (*types.Video, error) {
	return s.videoRepo.GetByID(ctx, nil, videoID)
}

// MarkMissing flags a video whose file vanished from disk. Its artifacts
// stay queryable.
func (s *VideoService) MarkMissing(ctx context.Context, videoID string) error {
	return s.videoRepo.UpdateStatus(ctx, nil, videoID, types.VideoStatusMissing)
}

// Delete cascades to tasks, runs, envelopes and projections.
func (s *VideoService) Delete(ctx context.Context, videoID string) error {
	return s.videoRepo.DeleteCascade(ctx, nil, videoID)
}

func (s *VideoService) StatusCounts(ctx context.Context) (map[string]int64, error) {
	return s.videoRepo.StatusCounts(ctx, nil)
}
