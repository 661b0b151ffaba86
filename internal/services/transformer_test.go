package services

import (
	"encoding/json"
	"testing"

	"github.com/eioku/eioku-backend/internal/producer"
	"github.com/eioku/eioku-backend/internal/types"
)

func testResponse() *producer.Response {
	return &producer.Response{
		RunID:           "run-1",
		ConfigHash:      "1111111111111111",
		InputHash:       "2222222222222222",
		Producer:        "yolo",
		ProducerVersion: "8.1",
		ModelProfile:    types.ModelProfileBalanced,
	}
}

func TestBuildEnvelopesObjects(t *testing.T) {
	resp := testResponse()
	resp.Detections = []producer.Detection{
		{FrameIndex: 10, TimestampMs: 500, Label: "dog", Confidence: 0.91,
			BBox: &producer.BoundingBox{X: 1, Y: 2, Width: 30, Height: 40}},
	}
	task := &types.Task{TaskID: "t1", VideoID: "v1", TaskType: "object_detection"}

	envelopes, err := BuildEnvelopes(task, resp)
	if err != nil {
		t.Fatalf("BuildEnvelopes: %v", err)
	}
	if len(envelopes) != 1 {
		t.Fatalf("expected one envelope, got %d", len(envelopes))
	}
	e := envelopes[0]
	if e.ArtifactType != types.ArtifactTypeObjectDetection || e.SchemaVersion != 1 {
		t.Fatalf("envelope type mismatch: %+v", e)
	}
	if e.SpanStartMs != 500 || e.SpanEndMs != 500 {
		t.Fatalf("detection span must pin to its timestamp: %+v", e)
	}
	if e.RunID != "run-1" || e.Producer != "yolo" || e.ConfigHash != "1111111111111111" {
		t.Fatalf("provenance block mismatch: %+v", e)
	}

	var payload map[string]any
	if err := json.Unmarshal(e.PayloadJSON, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["label"] != "dog" {
		t.Fatalf("payload label mismatch: %v", payload)
	}
	if _, ok := payload["bounding_box"]; !ok {
		t.Fatalf("bounding box must survive the mapping: %v", payload)
	}
}

func TestBuildEnvelopesTranscriptAndScenes(t *testing.T) {
	resp := testResponse()
	conf := 0.97
	resp.Segments = []producer.Segment{
		{StartMs: 1000, EndMs: 3500, Text: "hello there", Confidence: &conf},
	}
	task := &types.Task{TaskID: "t2", VideoID: "v1", TaskType: "transcription"}

	envelopes, err := BuildEnvelopes(task, resp)
	if err != nil {
		t.Fatalf("BuildEnvelopes: %v", err)
	}
	if len(envelopes) != 1 || envelopes[0].ArtifactType != types.ArtifactTypeTranscriptSegment {
		t.Fatalf("expected one transcript envelope: %+v", envelopes)
	}
	if envelopes[0].SpanStartMs != 1000 || envelopes[0].SpanEndMs != 3500 {
		t.Fatalf("segment span mismatch: %+v", envelopes[0])
	}

	sceneResp := testResponse()
	sceneResp.Scenes = []producer.Scene{{SceneIndex: 2, StartMs: 0, EndMs: 4000}}
	sceneTask := &types.Task{TaskID: "t3", VideoID: "v1", TaskType: "scene_detection"}
	envelopes, err = BuildEnvelopes(sceneTask, sceneResp)
	if err != nil {
		t.Fatalf("BuildEnvelopes scenes: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(envelopes[0].PayloadJSON, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload["scene_index"] != float64(2) {
		t.Fatalf("scene_index mismatch: %v", payload)
	}
}

func TestBuildEnvelopesMetadata(t *testing.T) {
	resp := testResponse()
	duration := 61.5
	lat, lon := 35.6586, 139.7454
	resp.Metadata = &producer.Metadata{DurationSeconds: &duration, Latitude: &lat, Longitude: &lon}
	task := &types.Task{TaskID: "t4", VideoID: "v1", TaskType: "metadata_extraction"}

	envelopes, err := BuildEnvelopes(task, resp)
	if err != nil {
		t.Fatalf("BuildEnvelopes: %v", err)
	}
	if len(envelopes) != 1 {
		t.Fatalf("expected one metadata envelope, got %d", len(envelopes))
	}
	if envelopes[0].SpanStartMs != 0 || envelopes[0].SpanEndMs != 61500 {
		t.Fatalf("metadata span must cover the video: %+v", envelopes[0])
	}
}

func TestBuildEnvelopesEmbeddingHasNoEnvelopeForm(t *testing.T) {
	task := &types.Task{TaskID: "t5", VideoID: "v1", TaskType: "embedding_generation"}
	envelopes, err := BuildEnvelopes(task, testResponse())
	if err != nil {
		t.Fatalf("BuildEnvelopes: %v", err)
	}
	if len(envelopes) != 0 {
		t.Fatalf("embedding runs produce no envelopes, got %d", len(envelopes))
	}
}

func TestParseCreateDate(t *testing.T) {
	if got := ParseCreateDate("2023:06:15 10:30:00"); got == nil || got.Year() != 2023 {
		t.Fatalf("EXIF colon format must parse, got %v", got)
	}
	if got := ParseCreateDate("2023-06-15T10:30:00Z"); got == nil || got.Month() != 6 {
		t.Fatalf("RFC3339 must parse, got %v", got)
	}
	if got := ParseCreateDate("not a date"); got != nil {
		t.Fatalf("junk must not parse, got %v", got)
	}
}
