package producer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Mock is a deterministic producer for tests and queue-less local runs.
// It fabricates one plausible result of the right shape per task type.
type Mock struct {
	Profile string
}

func NewMock(profile string) *Mock {
	if profile == "" {
		profile = "balanced"
	}
	return &Mock{Profile: profile}
}

func (m *Mock) Process(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := &Response{
		RunID:           uuid.NewString(),
		ConfigHash:      "0000000000000000",
		InputHash:       req.InputHash,
		Producer:        "mock-" + req.TaskType,
		ProducerVersion: "0.0.0",
		ModelProfile:    m.Profile,
	}

	switch req.TaskType {
	case "transcription":
		resp.Segments = []Segment{{StartMs: 0, EndMs: 2000, Text: "mock transcript segment"}}
	case "scene_detection":
		resp.Scenes = []Scene{{SceneIndex: 0, StartMs: 0, EndMs: 5000}}
	case "object_detection":
		resp.Detections = []Detection{{FrameIndex: 0, TimestampMs: 500, Label: "person", Confidence: 0.9}}
	case "face_detection":
		cluster := "cluster-0"
		resp.Detections = []Detection{{FrameIndex: 0, TimestampMs: 500, Confidence: 0.85, ClusterID: &cluster}}
	case "ocr":
		resp.Detections = []Detection{{FrameIndex: 0, TimestampMs: 500, Label: "MOCK TEXT", Confidence: 0.8}}
	case "place_detection":
		resp.Classifications = []Classification{{
			FrameIndex:  0,
			TimestampMs: 500,
			Predictions: []Prediction{{Label: "beach", Confidence: 0.7}},
		}}
	case "metadata_extraction":
		duration := 60.0
		resp.Metadata = &Metadata{DurationSeconds: &duration}
	case "topic_extraction", "embedding_generation":
		// Nothing envelope-shaped to return; the run record is the output.
	default:
		return nil, fmt.Errorf("mock producer: unsupported task type %q", req.TaskType)
	}
	return resp, nil
}
