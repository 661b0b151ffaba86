package producer

import (
	"context"
)

// Request is what a worker hands to an ML producer: a video on disk and
// the recognized config options for the producer's model.
type Request struct {
	TaskID    string         `json:"task_id"`
	TaskType  string         `json:"task_type"`
	VideoID   string         `json:"video_id"`
	VideoPath string         `json:"video_path"`
	Config    map[string]any `json:"config"`
	// InputHash, when set, is verified against the file before inference;
	// a mismatch fails the job without running the model.
	InputHash string `json:"input_hash,omitempty"`
}

type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Detection struct {
	FrameIndex  int          `json:"frame_index"`
	TimestampMs int64        `json:"timestamp_ms"`
	Label       string       `json:"label,omitempty"`
	Confidence  float64      `json:"confidence"`
	BBox        *BoundingBox `json:"bbox,omitempty"`
	Polygon     [][2]float64 `json:"polygon,omitempty"`
	ClusterID   *string      `json:"cluster_id,omitempty"`
}

type Word struct {
	Word       string   `json:"word"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Confidence *float64 `json:"confidence,omitempty"`
}

type Segment struct {
	StartMs    int64    `json:"start_ms"`
	EndMs      int64    `json:"end_ms"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
	Words      []Word   `json:"words,omitempty"`
}

type Scene struct {
	SceneIndex int   `json:"scene_index"`
	StartMs    int64 `json:"start_ms"`
	EndMs      int64 `json:"end_ms"`
}

type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type Classification struct {
	FrameIndex  int          `json:"frame_index"`
	TimestampMs int64        `json:"timestamp_ms"`
	Predictions []Prediction `json:"predictions"`
}

type Metadata struct {
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	CreateDate      *string  `json:"create_date,omitempty"`
	Latitude        *float64 `json:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty"`
	Altitude        *float64 `json:"altitude,omitempty"`
	CameraMake      *string  `json:"camera_make,omitempty"`
	CameraModel     *string  `json:"camera_model,omitempty"`
	Width           *int     `json:"width,omitempty"`
	Height          *int     `json:"height,omitempty"`
	FrameRate       *float64 `json:"frame_rate,omitempty"`
}

// Response carries the producer's typed results plus the full provenance
// block the artifact store records on every envelope.
type Response struct {
	RunID           string `json:"run_id"`
	ConfigHash      string `json:"config_hash"`
	InputHash       string `json:"input_hash"`
	Producer        string `json:"producer"`
	ProducerVersion string `json:"producer_version"`
	ModelProfile    string `json:"model_profile"`

	Detections      []Detection      `json:"detections,omitempty"`
	Segments        []Segment        `json:"segments,omitempty"`
	Scenes          []Scene          `json:"scenes,omitempty"`
	Classifications []Classification `json:"classifications,omitempty"`
	Metadata        *Metadata        `json:"metadata,omitempty"`
}

// Client is the opaque ML producer a worker invokes. Implementations:
// the remote job-queue client (production) and the deterministic mock.
type Client interface {
	Process(ctx context.Context, req *Request) (*Response, error)
}
