package projection

import (
	"context"

	"gorm.io/gorm"

	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/types"
)

// Handler maintains one projection table for one artifact type. Sync and
// Remove run inside the transaction that writes or deletes the envelope;
// returning an error rolls the whole transaction back.
type Handler interface {
	ArtifactType() string
	Sync(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) error
	Remove(ctx context.Context, tx *gorm.DB, artifactID string) error
}

// Registry dispatches envelopes to their projection handler. Artifact
// types without a handler are no-ops.
type Registry struct {
	byType map[string]Handler
	log    *logger.Logger
}

func NewRegistry(baseLog *logger.Logger, handlers ...Handler) *Registry {
	byType := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		byType[h.ArtifactType()] = h
	}
	return &Registry{byType: byType, log: baseLog.With("component", "ProjectionRegistry")}
}

// NewDefaultRegistry wires every built-in handler.
func NewDefaultRegistry(baseLog *logger.Logger, geocoder Geocoder) *Registry {
	return NewRegistry(baseLog,
		&TranscriptHandler{},
		&OCRHandler{},
		&SceneHandler{},
		&ObjectHandler{},
		&FaceHandler{},
		&PlaceHandler{},
		&LocationHandler{Geocoder: geocoder},
	)
}

func (r *Registry) Sync(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) error {
	h, ok := r.byType[artifact.ArtifactType]
	if !ok {
		r.log.Debug("No projection handler for artifact type", "artifact_type", artifact.ArtifactType)
		return nil
	}
	return h.Sync(ctx, tx, artifact)
}

// RemoveAll deletes the projection rows of a deleted envelope across every
// handler; the envelope row itself is the caller's business.
func (r *Registry) RemoveAll(ctx context.Context, tx *gorm.DB, artifactID string) error {
	for _, h := range r.byType {
		if err := h.Remove(ctx, tx, artifactID); err != nil {
			return err
		}
	}
	return nil
}
