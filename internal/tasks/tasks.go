package tasks

import (
	"github.com/eioku/eioku-backend/internal/types"
)

// TaskType enumerates every processing task in dependency order.
type TaskType string

const (
	TypeHash                TaskType = "hash"
	TypeTranscription       TaskType = "transcription"
	TypeSceneDetection      TaskType = "scene_detection"
	TypeObjectDetection     TaskType = "object_detection"
	TypeFaceDetection       TaskType = "face_detection"
	TypeOCR                 TaskType = "ocr"
	TypePlaceDetection      TaskType = "place_detection"
	TypeMetadataExtraction  TaskType = "metadata_extraction"
	TypeTopicExtraction     TaskType = "topic_extraction"
	TypeEmbeddingGeneration TaskType = "embedding_generation"
	TypeThumbnailGeneration TaskType = "thumbnail_generation"
	TypeThumbnailExtraction TaskType = "thumbnail_extraction"
)

// All lists every task type in creation-preference order.
var All = []TaskType{
	TypeHash,
	TypeTranscription,
	TypeSceneDetection,
	TypeObjectDetection,
	TypeFaceDetection,
	TypeOCR,
	TypePlaceDetection,
	TypeMetadataExtraction,
	TypeTopicExtraction,
	TypeEmbeddingGeneration,
	TypeThumbnailGeneration,
	TypeThumbnailExtraction,
}

// Priority levels; lower is dequeued first.
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityMedium   = 3
	PriorityLow      = 4
)

// parallelTypes are the artifact producers unblocked by hash completion.
var parallelTypes = []TaskType{
	TypeTranscription,
	TypeSceneDetection,
	TypeObjectDetection,
	TypeFaceDetection,
	TypeOCR,
	TypePlaceDetection,
	TypeMetadataExtraction,
}

// artifactProducers feed thumbnail_extraction: it needs their timestamps.
var artifactProducers = append(append([]TaskType{}, parallelTypes...),
	TypeTopicExtraction,
	TypeEmbeddingGeneration,
	TypeThumbnailGeneration,
)

// Dependencies is the fixed task dependency graph.
var Dependencies = map[TaskType][]TaskType{
	TypeHash:                {},
	TypeTranscription:       {TypeHash},
	TypeSceneDetection:      {TypeHash},
	TypeObjectDetection:     {TypeHash},
	TypeFaceDetection:       {TypeHash},
	TypeOCR:                 {TypeHash},
	TypePlaceDetection:      {TypeHash},
	TypeMetadataExtraction:  {TypeHash},
	TypeTopicExtraction:     {TypeHash, TypeTranscription},
	TypeEmbeddingGeneration: {TypeHash, TypeTranscription},
	TypeThumbnailGeneration: {TypeHash, TypeSceneDetection},
	TypeThumbnailExtraction: artifactProducers,
}

// PriorityFor maps a task type to its queue priority.
func PriorityFor(t TaskType) int {
	switch t {
	case TypeHash:
		return PriorityCritical
	case TypeTranscription, TypeEmbeddingGeneration:
		return PriorityHigh
	case TypeSceneDetection, TypeObjectDetection, TypeFaceDetection,
		TypeOCR, TypePlaceDetection, TypeMetadataExtraction:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// IsValid reports whether the string names a known task type.
func IsValid(t string) bool {
	_, ok := Dependencies[TaskType(t)]
	return ok
}

// MLTypes are dispatched to the inference tier over the job queue.
var MLTypes = map[TaskType]bool{
	TypeTranscription:       true,
	TypeSceneDetection:      true,
	TypeObjectDetection:     true,
	TypeFaceDetection:       true,
	TypeOCR:                 true,
	TypePlaceDetection:      true,
	TypeMetadataExtraction:  true,
	TypeTopicExtraction:     true,
	TypeEmbeddingGeneration: true,
}

// VideoReadyFor applies the status-compatibility half of the readiness
// rule. Dependency completion is checked separately against task rows.
func VideoReadyFor(video *types.Video, t TaskType) bool {
	switch t {
	case TypeHash:
		return video.Status == types.VideoStatusDiscovered && !video.HasHash()
	case TypeTranscription, TypeSceneDetection, TypeObjectDetection,
		TypeFaceDetection, TypeOCR, TypePlaceDetection, TypeMetadataExtraction:
		return video.Status == types.VideoStatusHashed && video.HasHash()
	case TypeTopicExtraction, TypeEmbeddingGeneration,
		TypeThumbnailGeneration, TypeThumbnailExtraction:
		return (video.Status == types.VideoStatusProcessing || video.Status == types.VideoStatusCompleted) &&
			video.HasHash()
	}
	return false
}
