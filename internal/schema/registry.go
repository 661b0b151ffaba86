package schema

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/eioku/eioku-backend/internal/apperr"
)

type key struct {
	artifactType  string
	schemaVersion int
}

// Registry maps (artifact_type, schema_version) to a compiled JSON schema.
// It is populated once during startup and then frozen; reads after Freeze
// take no lock.
type Registry struct {
	mu     sync.Mutex
	frozen bool
	byKey  map[key]*gojsonschema.Schema
}

func NewRegistry() *Registry {
	return &Registry{byKey: map[key]*gojsonschema.Schema{}}
}

// Register compiles and stores a schema. Duplicate keys and registration
// after Freeze are errors.
func (r *Registry) Register(artifactType string, schemaVersion int, rawSchema string) error {
	if schemaVersion < 1 {
		return apperr.NewValidation("schema_version", "must be >= 1")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("schema registry is frozen; cannot register %s v%d", artifactType, schemaVersion)
	}
	k := key{artifactType: artifactType, schemaVersion: schemaVersion}
	if _, exists := r.byKey[k]; exists {
		return fmt.Errorf("%w: schema already registered for %s v%d", apperr.ErrConflict, artifactType, schemaVersion)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(rawSchema))
	if err != nil {
		return fmt.Errorf("compile schema %s v%d: %w", artifactType, schemaVersion, err)
	}
	r.byKey[k] = compiled
	return nil
}

// Freeze ends the initialization phase. Called once from app wiring;
// every Register call afterwards fails.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Validate checks a raw JSON payload against the registered schema.
func (r *Registry) Validate(artifactType string, schemaVersion int, payload []byte) error {
	compiled, err := r.get(artifactType, schemaVersion)
	if err != nil {
		return err
	}
	result, err := compiled.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return apperr.NewValidation("payload_json", err.Error())
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			msgs = append(msgs, re.String())
		}
		sort.Strings(msgs)
		return apperr.NewValidation("payload_json", fmt.Sprintf("%s v%d: %v", artifactType, schemaVersion, msgs))
	}
	return nil
}

func (r *Registry) IsRegistered(artifactType string, schemaVersion int) bool {
	_, err := r.get(artifactType, schemaVersion)
	return err == nil
}

// ListRegistered returns "type vN" keys, sorted, for diagnostics.
func (r *Registry) ListRegistered() []string {
	if !r.frozen {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	out := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		out = append(out, fmt.Sprintf("%s v%d", k.artifactType, k.schemaVersion))
	}
	sort.Strings(out)
	return out
}

func (r *Registry) get(artifactType string, schemaVersion int) (*gojsonschema.Schema, error) {
	if !r.frozen {
		r.mu.Lock()
		defer r.mu.Unlock()
	}
	compiled, ok := r.byKey[key{artifactType: artifactType, schemaVersion: schemaVersion}]
	if !ok {
		return nil, fmt.Errorf("%w: no schema for %s v%d", apperr.ErrNotFound, artifactType, schemaVersion)
	}
	return compiled, nil
}
