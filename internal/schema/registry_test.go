package schema

import (
	"errors"
	"testing"

	"github.com/eioku/eioku-backend/internal/apperr"
	"github.com/eioku/eioku-backend/internal/types"
)

func newFrozenRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := RegisterAll(r); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	r.Freeze()
	return r
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	r := NewRegistry()
	if err := RegisterAll(r); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	err := r.Register(types.ArtifactTypeScene, 1, sceneV1)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict on duplicate registration, got %v", err)
	}
}

func TestRegisterAfterFreezeFails(t *testing.T) {
	r := newFrozenRegistry(t)
	if err := r.Register("custom.type", 1, `{"type":"object"}`); err == nil {
		t.Fatalf("expected registration after freeze to fail")
	}
}

func TestValidateObjectDetection(t *testing.T) {
	r := newFrozenRegistry(t)

	good := []byte(`{"label":"cat","confidence":0.9,"frame_number":12}`)
	if err := r.Validate(types.ArtifactTypeObjectDetection, 1, good); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}

	badConfidence := []byte(`{"label":"cat","confidence":1.5,"frame_number":12}`)
	err := r.Validate(types.ArtifactTypeObjectDetection, 1, badConfidence)
	var validation *apperr.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	missingLabel := []byte(`{"confidence":0.5,"frame_number":12}`)
	if err := r.Validate(types.ArtifactTypeObjectDetection, 1, missingLabel); err == nil {
		t.Fatalf("expected missing label to fail validation")
	}
}

func TestValidateUnknownSchema(t *testing.T) {
	r := newFrozenRegistry(t)
	err := r.Validate("unknown.type", 1, []byte(`{}`))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not-found for unregistered schema, got %v", err)
	}
	if r.IsRegistered("unknown.type", 1) {
		t.Fatalf("unknown type must not be registered")
	}
	if !r.IsRegistered(types.ArtifactTypeScene, 1) {
		t.Fatalf("scene v1 must be registered")
	}
}

func TestValidateTranscriptSegment(t *testing.T) {
	r := newFrozenRegistry(t)

	good := []byte(`{"text":"hello there","start_ms":0,"end_ms":1200,"confidence":0.97}`)
	if err := r.Validate(types.ArtifactTypeTranscriptSegment, 1, good); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}

	negativeSpan := []byte(`{"text":"hello","start_ms":-5,"end_ms":1200}`)
	if err := r.Validate(types.ArtifactTypeTranscriptSegment, 1, negativeSpan); err == nil {
		t.Fatalf("expected negative start_ms to fail validation")
	}
}
