package projection

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/eioku/eioku-backend/internal/db"
	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/types"
)

func metadataArtifact(videoID, artifactID, payload string) *types.Artifact {
	return &types.Artifact{
		ArtifactID:      artifactID,
		AssetID:         videoID,
		ArtifactType:    types.ArtifactTypeVideoMetadata,
		SchemaVersion:   1,
		SpanStartMs:     0,
		SpanEndMs:       60000,
		PayloadJSON:     datatypes.JSON([]byte(payload)),
		Producer:        "exiftool",
		ProducerVersion: "12.76",
		ModelProfile:    types.ModelProfileFast,
		ConfigHash:      "1111111111111111",
		InputHash:       "2222222222222222",
		RunID:           "run-1",
	}
}

func newProjectionStore(t *testing.T, name string) *db.Service {
	t.Helper()
	store, err := db.NewMemoryService(name, logger.NewNop())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	video := &types.Video{
		VideoID:      "v1",
		FilePath:     "/library/v1.mp4",
		Filename:     "v1.mp4",
		LastModified: time.Now().UTC(),
		Status:       types.VideoStatusProcessing,
	}
	if err := store.DB().Create(video).Error; err != nil {
		t.Fatalf("seed video: %v", err)
	}
	return store
}

func TestLocationHandlerValidCoordinates(t *testing.T) {
	store := newProjectionStore(t, "loc_valid")
	h := &LocationHandler{Geocoder: NoopGeocoder{}}
	ctx := context.Background()

	artifact := metadataArtifact("v1", "m1", `{"latitude":35.6586,"longitude":139.7454,"altitude":25.0}`)
	if err := h.Sync(ctx, store.DB(), artifact); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	var row types.VideoLocation
	if err := store.DB().Where("video_id = ?", "v1").First(&row).Error; err != nil {
		t.Fatalf("query: %v", err)
	}
	if row.Latitude != 35.6586 || row.Longitude != 139.7454 {
		t.Fatalf("coordinates mismatch: %+v", row)
	}

	// One location per video: a newer envelope replaces the row.
	newer := metadataArtifact("v1", "m2", `{"latitude":48.8584,"longitude":2.2945}`)
	if err := h.Sync(ctx, store.DB(), newer); err != nil {
		t.Fatalf("Sync newer: %v", err)
	}
	var count int64
	if err := store.DB().Model(&types.VideoLocation{}).Where("video_id = ?", "v1").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one location row per video, got %d", count)
	}
	if err := store.DB().Where("video_id = ?", "v1").First(&row).Error; err != nil {
		t.Fatalf("query: %v", err)
	}
	if row.ArtifactID != "m2" {
		t.Fatalf("upsert must keep the newest envelope, got %s", row.ArtifactID)
	}
}

func TestLocationHandlerSkipsInvalidAndMissingCoordinates(t *testing.T) {
	store := newProjectionStore(t, "loc_invalid")
	h := &LocationHandler{Geocoder: NoopGeocoder{}}
	ctx := context.Background()

	noCoords := metadataArtifact("v1", "m1", `{"duration_seconds":60}`)
	if err := h.Sync(ctx, store.DB(), noCoords); err != nil {
		t.Fatalf("Sync without coords: %v", err)
	}
	outOfRange := metadataArtifact("v1", "m2", `{"latitude":123.0,"longitude":10.0}`)
	if err := h.Sync(ctx, store.DB(), outOfRange); err != nil {
		t.Fatalf("Sync out of range: %v", err)
	}

	var count int64
	if err := store.DB().Model(&types.VideoLocation{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("invalid coordinates must not project, got %d rows", count)
	}
}

func TestRegistryUnknownTypeIsNoop(t *testing.T) {
	store := newProjectionStore(t, "unknown_noop")
	registry := NewDefaultRegistry(logger.NewNop(), NoopGeocoder{})
	ctx := context.Background()

	artifact := metadataArtifact("v1", "x1", `{}`)
	artifact.ArtifactType = "embedding.vector"
	if err := registry.Sync(ctx, store.DB(), artifact); err != nil {
		t.Fatalf("unknown type must be a no-op, got %v", err)
	}
}
