package repos

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/eioku/eioku-backend/internal/apperr"
	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/projection"
	"github.com/eioku/eioku-backend/internal/schema"
	"github.com/eioku/eioku-backend/internal/types"
)

func newArtifactFixture(t *testing.T, name string) (ArtifactRepo, VideoRepo, *types.Video) {
	t.Helper()
	store := newTestStore(t, name)
	log := logger.NewNop()

	registry := schema.NewRegistry()
	if err := schema.RegisterAll(registry); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	registry.Freeze()
	projections := projection.NewDefaultRegistry(log, projection.NoopGeocoder{})

	videos := NewVideoRepo(store.DB(), log)
	artifacts := NewArtifactRepo(store.DB(), registry, projections, log)
	video := seedVideo(t, videos, "v-"+name)
	return artifacts, videos, video
}

func objectEnvelope(assetID, artifactID, runID, profile string, startMs, endMs int64, payload string) *types.Artifact {
	return &types.Artifact{
		ArtifactID:      artifactID,
		AssetID:         assetID,
		ArtifactType:    types.ArtifactTypeObjectDetection,
		SchemaVersion:   1,
		SpanStartMs:     startMs,
		SpanEndMs:       endMs,
		PayloadJSON:     datatypes.JSON([]byte(payload)),
		Producer:        "yolo",
		ProducerVersion: "8.1",
		ModelProfile:    profile,
		ConfigHash:      "1111111111111111",
		InputHash:       "2222222222222222",
		RunID:           runID,
	}
}

func TestCreateSyncsProjectionAndDeleteCascades(t *testing.T) {
	artifacts, _, video := newArtifactFixture(t, "proj_consistency")
	ctx := context.Background()

	envelope := objectEnvelope(video.VideoID, "a-cat", "run-1", types.ModelProfileBalanced, 100, 200,
		`{"label":"cat","confidence":0.9,"frame_number":3}`)
	if _, err := artifacts.Create(ctx, nil, envelope); err != nil {
		t.Fatalf("Create: %v", err)
	}

	repo := artifacts.(*artifactRepo)
	var labels []types.ObjectLabel
	if err := repo.db.Where("asset_id = ?", video.VideoID).Find(&labels).Error; err != nil {
		t.Fatalf("query object_labels: %v", err)
	}
	if len(labels) != 1 {
		t.Fatalf("expected exactly one projection row, got %d", len(labels))
	}
	row := labels[0]
	if row.Label != "cat" || row.Confidence != 0.9 || row.StartMs != 100 || row.EndMs != 200 {
		t.Fatalf("projection row mismatch: %+v", row)
	}

	deleted, err := artifacts.Delete(ctx, nil, "a-cat")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !deleted {
		t.Fatalf("expected envelope to be deleted")
	}
	if err := repo.db.Where("asset_id = ?", video.VideoID).Find(&labels).Error; err != nil {
		t.Fatalf("query object_labels: %v", err)
	}
	if len(labels) != 0 {
		t.Fatalf("expected projection rows to cascade, got %d", len(labels))
	}
}

func TestBatchCreateValidatesFailFast(t *testing.T) {
	artifacts, _, video := newArtifactFixture(t, "batch_failfast")
	ctx := context.Background()

	good := objectEnvelope(video.VideoID, "a-good", "run-1", types.ModelProfileBalanced, 0, 100,
		`{"label":"dog","confidence":0.8,"frame_number":1}`)
	bad := objectEnvelope(video.VideoID, "a-bad", "run-1", types.ModelProfileBalanced, 0, 100,
		`{"label":"dog","confidence":2.0,"frame_number":1}`)

	_, err := artifacts.BatchCreate(ctx, nil, []*types.Artifact{good, bad})
	var validation *apperr.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation failure, got %v", err)
	}

	// Fail-fast means nothing from the batch was written.
	stored, err := artifacts.GetByID(ctx, nil, "a-good")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored != nil {
		t.Fatalf("expected no partial writes after failed batch")
	}
}

func TestBatchCreateIdempotent(t *testing.T) {
	artifacts, _, video := newArtifactFixture(t, "batch_idempotent")
	ctx := context.Background()

	batch := []*types.Artifact{
		objectEnvelope(video.VideoID, "a-1", "run-1", types.ModelProfileBalanced, 0, 100,
			`{"label":"dog","confidence":0.8,"frame_number":1}`),
		objectEnvelope(video.VideoID, "a-2", "run-1", types.ModelProfileBalanced, 100, 200,
			`{"label":"dog","confidence":0.7,"frame_number":2}`),
	}
	if _, err := artifacts.BatchCreate(ctx, nil, batch); err != nil {
		t.Fatalf("first BatchCreate: %v", err)
	}
	if _, err := artifacts.BatchCreate(ctx, nil, batch); err != nil {
		t.Fatalf("second BatchCreate: %v", err)
	}

	rows, err := artifacts.GetByAsset(ctx, nil, video.VideoID, AssetQuery{ArtifactType: types.ArtifactTypeObjectDetection})
	if err != nil {
		t.Fatalf("GetByAsset: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("double insert must be indistinguishable from one: got %d envelopes", len(rows))
	}

	repo := artifacts.(*artifactRepo)
	var count int64
	if err := repo.db.Model(&types.ObjectLabel{}).Where("asset_id = ?", video.VideoID).Count(&count).Error; err != nil {
		t.Fatalf("count projections: %v", err)
	}
	if count != 2 {
		t.Fatalf("projection upsert must not duplicate rows: got %d", count)
	}
}

func TestSelectionPolicies(t *testing.T) {
	artifacts, _, video := newArtifactFixture(t, "selection")
	ctx := context.Background()

	older := objectEnvelope(video.VideoID, "a-old", "run-old", types.ModelProfileFast, 0, 100,
		`{"label":"dog","confidence":0.6,"frame_number":1}`)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := objectEnvelope(video.VideoID, "a-new", "run-new", types.ModelProfileHighQuality, 0, 100,
		`{"label":"dog","confidence":0.9,"frame_number":1}`)
	if _, err := artifacts.BatchCreate(ctx, nil, []*types.Artifact{older, newer}); err != nil {
		t.Fatalf("BatchCreate: %v", err)
	}

	// default: every run is visible
	rows, err := artifacts.GetByAsset(ctx, nil, video.VideoID, AssetQuery{
		ArtifactType: types.ArtifactTypeObjectDetection,
		Selection:    &types.ArtifactSelection{SelectionMode: types.SelectionModeDefault},
	})
	if err != nil {
		t.Fatalf("default selection: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("default selection must not restrict, got %d", len(rows))
	}

	// pinned
	pinned := "run-old"
	rows, err = artifacts.GetByAsset(ctx, nil, video.VideoID, AssetQuery{
		ArtifactType: types.ArtifactTypeObjectDetection,
		Selection:    &types.ArtifactSelection{SelectionMode: types.SelectionModePinned, PinnedRunID: &pinned},
	})
	if err != nil {
		t.Fatalf("pinned selection: %v", err)
	}
	if len(rows) != 1 || rows[0].ArtifactID != "a-old" {
		t.Fatalf("pinned selection must restrict to the pinned run: %+v", rows)
	}

	// pinned run vanished: fall back to default
	gone := "run-gone"
	rows, err = artifacts.GetByAsset(ctx, nil, video.VideoID, AssetQuery{
		ArtifactType: types.ArtifactTypeObjectDetection,
		Selection:    &types.ArtifactSelection{SelectionMode: types.SelectionModePinned, PinnedRunID: &gone},
	})
	if err != nil {
		t.Fatalf("vanished pin: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("vanished pin must fall back to no restriction, got %d", len(rows))
	}

	// profile
	profile := types.ModelProfileHighQuality
	rows, err = artifacts.GetByAsset(ctx, nil, video.VideoID, AssetQuery{
		ArtifactType: types.ArtifactTypeObjectDetection,
		Selection:    &types.ArtifactSelection{SelectionMode: types.SelectionModeProfile, PreferredProfile: &profile},
	})
	if err != nil {
		t.Fatalf("profile selection: %v", err)
	}
	if len(rows) != 1 || rows[0].ArtifactID != "a-new" {
		t.Fatalf("profile selection must restrict to the preferred profile: %+v", rows)
	}

	// latest
	rows, err = artifacts.GetByAsset(ctx, nil, video.VideoID, AssetQuery{
		ArtifactType: types.ArtifactTypeObjectDetection,
		Selection:    &types.ArtifactSelection{SelectionMode: types.SelectionModeLatest},
	})
	if err != nil {
		t.Fatalf("latest selection: %v", err)
	}
	if len(rows) != 1 || rows[0].RunID != "run-new" {
		t.Fatalf("latest selection must pick the most recent run: %+v", rows)
	}

	// best_quality orders high_quality first
	rows, err = artifacts.GetByAsset(ctx, nil, video.VideoID, AssetQuery{
		ArtifactType: types.ArtifactTypeObjectDetection,
		Selection:    &types.ArtifactSelection{SelectionMode: types.SelectionModeBestQuality},
	})
	if err != nil {
		t.Fatalf("best_quality selection: %v", err)
	}
	if len(rows) != 2 || rows[0].ModelProfile != types.ModelProfileHighQuality {
		t.Fatalf("best_quality must order high_quality first: %+v", rows)
	}
}

func TestGetBySpanOverlap(t *testing.T) {
	artifacts, _, video := newArtifactFixture(t, "span_overlap")
	ctx := context.Background()

	if _, err := artifacts.BatchCreate(ctx, nil, []*types.Artifact{
		objectEnvelope(video.VideoID, "a-early", "run-1", types.ModelProfileBalanced, 0, 1000,
			`{"label":"dog","confidence":0.8,"frame_number":1}`),
		objectEnvelope(video.VideoID, "a-late", "run-1", types.ModelProfileBalanced, 5000, 6000,
			`{"label":"dog","confidence":0.8,"frame_number":9}`),
	}); err != nil {
		t.Fatalf("BatchCreate: %v", err)
	}

	rows, err := artifacts.GetBySpan(ctx, nil, video.VideoID, types.ArtifactTypeObjectDetection, 500, 1500, nil)
	if err != nil {
		t.Fatalf("GetBySpan: %v", err)
	}
	if len(rows) != 1 || rows[0].ArtifactID != "a-early" {
		t.Fatalf("expected only the overlapping envelope: %+v", rows)
	}
}

func TestInvalidSpanRejected(t *testing.T) {
	artifacts, _, video := newArtifactFixture(t, "invalid_span")
	ctx := context.Background()

	envelope := objectEnvelope(video.VideoID, "a-backwards", "run-1", types.ModelProfileBalanced, 500, 100,
		`{"label":"dog","confidence":0.8,"frame_number":1}`)
	_, err := artifacts.Create(ctx, nil, envelope)
	var validation *apperr.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected span validation failure, got %v", err)
	}
}
