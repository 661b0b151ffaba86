package navigation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eioku/eioku-backend/internal/apperr"
	"github.com/eioku/eioku-backend/internal/db"
	"github.com/eioku/eioku-backend/internal/logger"
	"github.com/eioku/eioku-backend/internal/types"
)

type engineFixture struct {
	engine *Engine
	store  *db.Service
}

func newEngineFixture(t *testing.T, name string) *engineFixture {
	t.Helper()
	store, err := db.NewMemoryService(name, logger.NewNop())
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	return &engineFixture{
		engine: NewEngine(store.DB(), store.IsPostgres(), logger.NewNop()),
		store:  store,
	}
}

func (f *engineFixture) seedVideo(t *testing.T, videoID string, createdAt *time.Time) {
	t.Helper()
	video := &types.Video{
		VideoID:       videoID,
		FilePath:      "/library/" + videoID + ".mp4",
		Filename:      videoID + ".mp4",
		LastModified:  time.Now().UTC(),
		FileCreatedAt: createdAt,
		Status:        types.VideoStatusCompleted,
	}
	if err := f.store.DB().Create(video).Error; err != nil {
		t.Fatalf("seed video %s: %v", videoID, err)
	}
}

func (f *engineFixture) seedObject(t *testing.T, artifactID, videoID, label string, confidence float64, startMs, endMs int64) {
	t.Helper()
	row := &types.ObjectLabel{
		ArtifactID: artifactID,
		AssetID:    videoID,
		Label:      label,
		Confidence: confidence,
		StartMs:    startMs,
		EndMs:      endMs,
	}
	if err := f.store.DB().Create(row).Error; err != nil {
		t.Fatalf("seed object %s: %v", artifactID, err)
	}
}

func (f *engineFixture) seedScene(t *testing.T, artifactID, videoID string, index int, startMs, endMs int64) {
	t.Helper()
	row := &types.SceneRange{
		ArtifactID: artifactID,
		AssetID:    videoID,
		SceneIndex: index,
		StartMs:    startMs,
		EndMs:      endMs,
	}
	if err := f.store.DB().Create(row).Error; err != nil {
		t.Fatalf("seed scene %s: %v", artifactID, err)
	}
}

func (f *engineFixture) seedTranscript(t *testing.T, artifactID, videoID, text string, startMs, endMs int64) {
	t.Helper()
	row := &types.TranscriptFTS{
		ArtifactID: artifactID,
		AssetID:    videoID,
		StartMs:    startMs,
		EndMs:      endMs,
		Text:       text,
	}
	if err := f.store.DB().Create(row).Error; err != nil {
		t.Fatalf("seed transcript %s: %v", artifactID, err)
	}
}

func ts(t *testing.T, raw string) *time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return &parsed
}

func int64p(v int64) *int64 { return &v }

// Three dated videos, one dog each: next from v1@1000 lands in v2, then
// v3, then empty.
func TestCrossVideoNextChaining(t *testing.T) {
	f := newEngineFixture(t, "cross_video_next")
	ctx := context.Background()

	f.seedVideo(t, "v1", ts(t, "2025-01-01"))
	f.seedVideo(t, "v2", ts(t, "2025-01-02"))
	f.seedVideo(t, "v3", ts(t, "2025-01-03"))
	f.seedObject(t, "a1", "v1", "dog", 0.9, 500, 600)
	f.seedObject(t, "a2", "v2", "dog", 0.9, 500, 600)
	f.seedObject(t, "a3", "v3", "dog", 0.9, 500, 600)

	results, _, err := f.engine.JumpNext(ctx, Params{
		Kind: KindObject, FromVideoID: "v1", FromMs: int64p(1000), Label: "dog",
	})
	if err != nil {
		t.Fatalf("JumpNext: %v", err)
	}
	if len(results) != 1 || results[0].VideoID != "v2" {
		t.Fatalf("expected v2 artifact, got %+v", results)
	}

	results, _, err = f.engine.JumpNext(ctx, Params{
		Kind: KindObject, FromVideoID: results[0].VideoID, FromMs: int64p(results[0].JumpTo.EndMs), Label: "dog",
	})
	if err != nil {
		t.Fatalf("JumpNext: %v", err)
	}
	if len(results) != 1 || results[0].VideoID != "v3" {
		t.Fatalf("expected v3 artifact, got %+v", results)
	}

	results, hasMore, err := f.engine.JumpNext(ctx, Params{
		Kind: KindObject, FromVideoID: results[0].VideoID, FromMs: int64p(results[0].JumpTo.EndMs), Label: "dog",
	})
	if err != nil {
		t.Fatalf("JumpNext: %v", err)
	}
	if len(results) != 0 || hasMore {
		t.Fatalf("chain must terminate with an empty result, got %+v", results)
	}
}

// An artifact whose start_ms equals from_ms in the same video is not
// returned; the comparison is strict.
func TestExactMatchExcluded(t *testing.T) {
	f := newEngineFixture(t, "exact_match")
	ctx := context.Background()

	f.seedVideo(t, "v1", ts(t, "2025-01-01"))
	f.seedObject(t, "a1", "v1", "dog", 0.9, 500, 600)
	f.seedObject(t, "a2", "v1", "dog", 0.9, 900, 950)

	results, _, err := f.engine.JumpNext(ctx, Params{
		Kind: KindObject, FromVideoID: "v1", FromMs: int64p(500), Label: "dog",
	})
	if err != nil {
		t.Fatalf("JumpNext: %v", err)
	}
	if len(results) != 1 || results[0].ArtifactID != "a2" {
		t.Fatalf("start_ms == from_ms must be excluded, got %+v", results)
	}
}

// Videos A (1999), B (NULL), C (2000): NULL sorts after all dated videos
// in both directions.
func TestNullCreationDateOrdering(t *testing.T) {
	f := newEngineFixture(t, "null_ordering")
	ctx := context.Background()

	f.seedVideo(t, "va", ts(t, "1999-01-01"))
	f.seedVideo(t, "vb", nil)
	f.seedVideo(t, "vc", ts(t, "2000-01-01"))
	f.seedScene(t, "sa", "va", 0, 100, 200)
	f.seedScene(t, "sb", "vb", 0, 100, 200)
	f.seedScene(t, "sc", "vc", 0, 100, 200)

	// From the end of A's own scene: C first, then B.
	results, _, err := f.engine.JumpNext(ctx, Params{Kind: KindScene, FromVideoID: "va", FromMs: int64p(200), Limit: 2})
	if err != nil {
		t.Fatalf("JumpNext: %v", err)
	}
	if len(results) != 2 || results[0].VideoID != "vc" || results[1].VideoID != "vb" {
		t.Fatalf("expected vc then vb, got %+v", results)
	}

	// From B (NULL): prev visits C first, then A.
	results, _, err = f.engine.JumpPrev(ctx, Params{Kind: KindScene, FromVideoID: "vb", Limit: 2})
	if err != nil {
		t.Fatalf("JumpPrev: %v", err)
	}
	if len(results) != 2 || results[0].VideoID != "vc" || results[1].VideoID != "va" {
		t.Fatalf("expected vc then va, got %+v", results)
	}
}

// Pure stop-word query still matches via the substring fallback path.
func TestTranscriptStopWordFallback(t *testing.T) {
	f := newEngineFixture(t, "fts_fallback")
	ctx := context.Background()

	f.seedVideo(t, "v1", ts(t, "2025-01-01"))
	f.seedVideo(t, "v2", ts(t, "2025-01-02"))
	f.seedTranscript(t, "t1", "v2", "the", 1000, 1500)

	results, _, err := f.engine.JumpNext(ctx, Params{
		Kind: KindTranscript, FromVideoID: "v1", Query: "the",
	})
	if err != nil {
		t.Fatalf("JumpNext: %v", err)
	}
	if len(results) != 1 || results[0].ArtifactID != "t1" {
		t.Fatalf("substring fallback must find the stop word, got %+v", results)
	}
	if results[0].Preview["text"] != "the" {
		t.Fatalf("preview must carry the text, got %+v", results[0].Preview)
	}
}

// from_ms beyond the video's duration is not an error: next crosses to
// the following video, prev returns the last artifact in this one.
func TestBoundaryBeyondDuration(t *testing.T) {
	f := newEngineFixture(t, "boundary")
	ctx := context.Background()

	f.seedVideo(t, "v1", ts(t, "2025-01-01"))
	f.seedVideo(t, "v2", ts(t, "2025-01-02"))
	f.seedScene(t, "s1", "v1", 0, 100, 200)
	f.seedScene(t, "s2", "v1", 1, 300, 400)
	f.seedScene(t, "s3", "v2", 0, 100, 200)

	results, _, err := f.engine.JumpNext(ctx, Params{Kind: KindScene, FromVideoID: "v1", FromMs: int64p(10_000_000)})
	if err != nil {
		t.Fatalf("JumpNext: %v", err)
	}
	if len(results) != 1 || results[0].VideoID != "v2" {
		t.Fatalf("next beyond duration must cross videos, got %+v", results)
	}

	results, _, err = f.engine.JumpPrev(ctx, Params{Kind: KindScene, FromVideoID: "v1", FromMs: int64p(10_000_000)})
	if err != nil {
		t.Fatalf("JumpPrev: %v", err)
	}
	if len(results) != 1 || results[0].ArtifactID != "s2" {
		t.Fatalf("prev beyond duration must return the last artifact here, got %+v", results)
	}
}

func TestJumpValidation(t *testing.T) {
	f := newEngineFixture(t, "validation")
	ctx := context.Background()
	f.seedVideo(t, "v1", ts(t, "2025-01-01"))

	var invalid *apperr.InvalidParameterError

	_, _, err := f.engine.JumpNext(ctx, Params{Kind: "hologram", FromVideoID: "v1"})
	if !errors.As(err, &invalid) {
		t.Fatalf("unknown kind must be rejected, got %v", err)
	}

	_, _, err = f.engine.JumpNext(ctx, Params{Kind: KindObject, FromVideoID: "v1", Limit: 51})
	if !errors.As(err, &invalid) {
		t.Fatalf("limit > 50 must be rejected, got %v", err)
	}

	_, _, err = f.engine.JumpNext(ctx, Params{Kind: KindObject, FromVideoID: "v1", FromMs: int64p(-1)})
	if !errors.As(err, &invalid) {
		t.Fatalf("negative from_ms must be rejected, got %v", err)
	}

	conf := 1.2
	_, _, err = f.engine.JumpNext(ctx, Params{Kind: KindObject, FromVideoID: "v1", MinConfidence: &conf})
	if !errors.As(err, &invalid) {
		t.Fatalf("confidence outside [0,1] must be rejected, got %v", err)
	}

	_, _, err = f.engine.JumpNext(ctx, Params{Kind: KindTranscript, FromVideoID: "v1", Query: "dog", Label: "dog"})
	if !errors.As(err, &invalid) {
		t.Fatalf("label+query must be mutually exclusive, got %v", err)
	}

	_, _, err = f.engine.JumpNext(ctx, Params{Kind: KindTranscript, FromVideoID: "v1"})
	if !errors.As(err, &invalid) {
		t.Fatalf("transcript without query must be rejected, got %v", err)
	}

	var notFound *apperr.VideoNotFoundError
	_, _, err = f.engine.JumpNext(ctx, Params{Kind: KindObject, FromVideoID: "ghost"})
	if !errors.As(err, &notFound) {
		t.Fatalf("unknown video must raise VideoNotFound, got %v", err)
	}
}

func TestMinConfidenceFilter(t *testing.T) {
	f := newEngineFixture(t, "confidence")
	ctx := context.Background()

	f.seedVideo(t, "v1", ts(t, "2025-01-01"))
	f.seedVideo(t, "v2", ts(t, "2025-01-02"))
	f.seedObject(t, "a-low", "v2", "dog", 0.3, 100, 150)
	f.seedObject(t, "a-high", "v2", "dog", 0.95, 700, 750)

	conf := 0.5
	results, _, err := f.engine.JumpNext(ctx, Params{
		Kind: KindObject, FromVideoID: "v1", Label: "dog", MinConfidence: &conf,
	})
	if err != nil {
		t.Fatalf("JumpNext: %v", err)
	}
	if len(results) != 1 || results[0].ArtifactID != "a-high" {
		t.Fatalf("low-confidence rows must be filtered, got %+v", results)
	}
}

func TestPlaceKindSharesObjectLabels(t *testing.T) {
	f := newEngineFixture(t, "place_kind")
	ctx := context.Background()

	f.seedVideo(t, "v1", ts(t, "2025-01-01"))
	f.seedVideo(t, "v2", ts(t, "2025-01-02"))
	f.seedObject(t, "a-obj", "v2", "dog", 0.9, 100, 150)
	f.seedObject(t, "a-place", "v2", "place:beach", 0.8, 200, 250)

	// place kind only sees place rows
	results, _, err := f.engine.JumpNext(ctx, Params{Kind: KindPlace, FromVideoID: "v1"})
	if err != nil {
		t.Fatalf("JumpNext place: %v", err)
	}
	if len(results) != 1 || results[0].ArtifactID != "a-place" {
		t.Fatalf("place kind must only see place rows, got %+v", results)
	}
	if results[0].Preview["label"] != "beach" {
		t.Fatalf("place preview must strip the prefix, got %+v", results[0].Preview)
	}

	// object kind skips place rows
	results, _, err = f.engine.JumpNext(ctx, Params{Kind: KindObject, FromVideoID: "v1"})
	if err != nil {
		t.Fatalf("JumpNext object: %v", err)
	}
	if len(results) != 1 || results[0].ArtifactID != "a-obj" {
		t.Fatalf("object kind must skip place rows, got %+v", results)
	}
}

func TestLocationKind(t *testing.T) {
	f := newEngineFixture(t, "location_kind")
	ctx := context.Background()

	f.seedVideo(t, "v1", ts(t, "2025-01-01"))
	f.seedVideo(t, "v2", ts(t, "2025-01-02"))
	tokyo := "Tokyo"
	japan := "Japan"
	row := &types.VideoLocation{
		ArtifactID: "m1",
		VideoID:    "v2",
		Latitude:   35.6586,
		Longitude:  139.7454,
		Country:    &japan,
		City:       &tokyo,
	}
	if err := f.store.DB().Create(row).Error; err != nil {
		t.Fatalf("seed location: %v", err)
	}

	results, _, err := f.engine.JumpNext(ctx, Params{Kind: KindLocation, FromVideoID: "v1", Query: "tokyo"})
	if err != nil {
		t.Fatalf("JumpNext location: %v", err)
	}
	if len(results) != 1 || results[0].VideoID != "v2" {
		t.Fatalf("expected the Tokyo video, got %+v", results)
	}

	bounds := &GeoBounds{MinLat: 35, MaxLat: 36, MinLon: 139, MaxLon: 140}
	results, _, err = f.engine.JumpNext(ctx, Params{Kind: KindLocation, FromVideoID: "v1", GeoBounds: bounds})
	if err != nil {
		t.Fatalf("JumpNext bbox: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected a bbox hit, got %+v", results)
	}

	far := &GeoBounds{MinLat: 0, MaxLat: 1, MinLon: 0, MaxLon: 1}
	results, _, err = f.engine.JumpNext(ctx, Params{Kind: KindLocation, FromVideoID: "v1", GeoBounds: far})
	if err != nil {
		t.Fatalf("JumpNext far bbox: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no hits outside the bbox, got %+v", results)
	}
}

// jump_prev from the end_ms of a jump_next result returns that same
// result: its start_ms lies strictly before its end_ms.
func TestSymmetry(t *testing.T) {
	f := newEngineFixture(t, "symmetry")
	ctx := context.Background()

	f.seedVideo(t, "v1", ts(t, "2025-01-01"))
	f.seedVideo(t, "v2", ts(t, "2025-01-02"))
	f.seedObject(t, "a1", "v1", "dog", 0.9, 500, 600)
	f.seedObject(t, "a2", "v2", "dog", 0.9, 500, 600)

	next, _, err := f.engine.JumpNext(ctx, Params{Kind: KindObject, FromVideoID: "v1", FromMs: int64p(600), Label: "dog"})
	if err != nil {
		t.Fatalf("JumpNext: %v", err)
	}
	if len(next) != 1 || next[0].ArtifactID != "a2" {
		t.Fatalf("expected a2, got %+v", next)
	}

	prev, _, err := f.engine.JumpPrev(ctx, Params{
		Kind: KindObject, FromVideoID: next[0].VideoID, FromMs: int64p(next[0].JumpTo.EndMs), Label: "dog",
	})
	if err != nil {
		t.Fatalf("JumpPrev: %v", err)
	}
	if len(prev) != 1 || prev[0].ArtifactID != "a2" {
		t.Fatalf("prev from end_ms must return the artifact itself, got %+v", prev)
	}
}
