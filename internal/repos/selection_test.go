package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/eioku/eioku-backend/internal/apperr"
	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/types"
)

func TestSelectionSetValidatesModes(t *testing.T) {
	store := newTestStore(t, "selection_modes")
	log := logger.NewNop()
	selections := NewSelectionRepo(store.DB(), log)
	ctx := context.Background()

	var validation *apperr.ValidationError

	_, err := selections.Set(ctx, nil, &types.ArtifactSelection{
		AssetID: "v1", ArtifactType: types.ArtifactTypeObjectDetection,
		SelectionMode: types.SelectionModePinned,
	})
	if !errors.As(err, &validation) {
		t.Fatalf("pinned without run id must fail, got %v", err)
	}

	_, err = selections.Set(ctx, nil, &types.ArtifactSelection{
		AssetID: "v1", ArtifactType: types.ArtifactTypeObjectDetection,
		SelectionMode: types.SelectionModeProfile,
	})
	if !errors.As(err, &validation) {
		t.Fatalf("profile without preferred profile must fail, got %v", err)
	}

	_, err = selections.Set(ctx, nil, &types.ArtifactSelection{
		AssetID: "v1", ArtifactType: types.ArtifactTypeObjectDetection,
		SelectionMode: "newest_and_shiniest",
	})
	if !errors.As(err, &validation) {
		t.Fatalf("unknown mode must fail, got %v", err)
	}
}

func TestSelectionSetUpserts(t *testing.T) {
	store := newTestStore(t, "selection_upsert")
	log := logger.NewNop()
	selections := NewSelectionRepo(store.DB(), log)
	ctx := context.Background()

	runID := "run-1"
	if _, err := selections.Set(ctx, nil, &types.ArtifactSelection{
		AssetID: "v1", ArtifactType: types.ArtifactTypeObjectDetection,
		SelectionMode: types.SelectionModePinned, PinnedRunID: &runID,
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	profile := types.ModelProfileHighQuality
	if _, err := selections.Set(ctx, nil, &types.ArtifactSelection{
		AssetID: "v1", ArtifactType: types.ArtifactTypeObjectDetection,
		SelectionMode: types.SelectionModeProfile, PreferredProfile: &profile,
	}); err != nil {
		t.Fatalf("Set upsert: %v", err)
	}

	policy, err := selections.Get(ctx, nil, "v1", types.ArtifactTypeObjectDetection)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if policy == nil || policy.SelectionMode != types.SelectionModeProfile {
		t.Fatalf("expected the upserted policy, got %+v", policy)
	}

	missing, err := selections.Get(ctx, nil, "v1", types.ArtifactTypeScene)
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("unset policy must be nil, got %+v", missing)
	}
}
