package schema

import (
	"github.com/eioku/eioku-backend/internal/types"
)

// V1 payload schemas for every artifact type the pipeline produces.
// Draft-07 JSON Schema, one document per (artifact_type, version).

const transcriptSegmentV1 = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["text", "start_ms", "end_ms"],
	"additionalProperties": false,
	"properties": {
		"text": {"type": "string"},
		"start_ms": {"type": "integer", "minimum": 0},
		"end_ms": {"type": "integer", "minimum": 0},
		"language": {"type": "string"},
		"confidence": {"type": ["number", "null"], "minimum": 0, "maximum": 1},
		"words": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"required": ["word", "start", "end"],
				"properties": {
					"word": {"type": "string"},
					"start": {"type": "number", "minimum": 0},
					"end": {"type": "number", "minimum": 0},
					"confidence": {"type": ["number", "null"], "minimum": 0, "maximum": 1}
				}
			}
		}
	}
}`

const sceneV1 = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["scene_index", "start_ms", "end_ms"],
	"additionalProperties": false,
	"properties": {
		"scene_index": {"type": "integer", "minimum": 0},
		"start_ms": {"type": "integer", "minimum": 0},
		"end_ms": {"type": "integer", "minimum": 0}
	}
}`

const objectDetectionV1 = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["label", "confidence", "frame_number"],
	"additionalProperties": false,
	"properties": {
		"label": {"type": "string"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"frame_number": {"type": "integer", "minimum": 0},
		"bounding_box": {
			"type": ["object", "null"],
			"required": ["x", "y", "width", "height"],
			"properties": {
				"x": {"type": "number", "minimum": 0},
				"y": {"type": "number", "minimum": 0},
				"width": {"type": "number", "exclusiveMinimum": 0},
				"height": {"type": "number", "exclusiveMinimum": 0}
			}
		}
	}
}`

const faceDetectionV1 = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["confidence", "frame_number"],
	"additionalProperties": false,
	"properties": {
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"frame_number": {"type": "integer", "minimum": 0},
		"cluster_id": {"type": ["string", "null"]},
		"bounding_box": {
			"type": ["object", "null"],
			"required": ["x", "y", "width", "height"],
			"properties": {
				"x": {"type": "number", "minimum": 0},
				"y": {"type": "number", "minimum": 0},
				"width": {"type": "number", "exclusiveMinimum": 0},
				"height": {"type": "number", "exclusiveMinimum": 0}
			}
		},
		"embedding": {
			"type": ["array", "null"],
			"items": {"type": "number"}
		}
	}
}`

const ocrTextV1 = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["text", "confidence", "frame_number"],
	"additionalProperties": false,
	"properties": {
		"text": {"type": "string"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"frame_number": {"type": "integer", "minimum": 0},
		"polygon": {
			"type": ["array", "null"],
			"items": {
				"type": "array",
				"items": {"type": "number"},
				"minItems": 2,
				"maxItems": 2
			}
		}
	}
}`

const placeClassificationV1 = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["frame_number", "predictions"],
	"additionalProperties": false,
	"properties": {
		"frame_number": {"type": "integer", "minimum": 0},
		"predictions": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["label", "confidence"],
				"properties": {
					"label": {"type": "string"},
					"confidence": {"type": "number", "minimum": 0, "maximum": 1}
				}
			}
		}
	}
}`

const videoMetadataV1 = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"additionalProperties": true,
	"properties": {
		"duration_seconds": {"type": ["number", "null"], "minimum": 0},
		"create_date": {"type": ["string", "null"]},
		"latitude": {"type": ["number", "null"], "minimum": -90, "maximum": 90},
		"longitude": {"type": ["number", "null"], "minimum": -180, "maximum": 180},
		"altitude": {"type": ["number", "null"]},
		"camera_make": {"type": ["string", "null"]},
		"camera_model": {"type": ["string", "null"]},
		"width": {"type": ["integer", "null"], "minimum": 0},
		"height": {"type": ["integer", "null"], "minimum": 0},
		"frame_rate": {"type": ["number", "null"], "minimum": 0}
	}
}`

// RegisterAll installs every v1 schema into the registry. Wiring calls
// this once and then freezes the registry.
func RegisterAll(r *Registry) error {
	entries := []struct {
		artifactType string
		version      int
		raw          string
	}{
		{types.ArtifactTypeTranscriptSegment, 1, transcriptSegmentV1},
		{types.ArtifactTypeScene, 1, sceneV1},
		{types.ArtifactTypeObjectDetection, 1, objectDetectionV1},
		{types.ArtifactTypeFaceDetection, 1, faceDetectionV1},
		{types.ArtifactTypeOCRText, 1, ocrTextV1},
		{types.ArtifactTypePlaceClassification, 1, placeClassificationV1},
		{types.ArtifactTypeVideoMetadata, 1, videoMetadataV1},
	}
	for _, e := range entries {
		if err := r.Register(e.artifactType, e.version, e.raw); err != nil {
			return err
		}
	}
	return nil
}
