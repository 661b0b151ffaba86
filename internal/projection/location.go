package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eioku/eioku-backend/internal/types"
)

// Geocoder resolves coordinates to an administrative place name. The real
// implementation lives outside the core; NoopGeocoder keeps the columns
// empty.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (country, state, city *string, err error)
}

type NoopGeocoder struct{}

func (NoopGeocoder) Reverse(ctx context.Context, lat, lon float64) (*string, *string, *string, error) {
	return nil, nil, nil, nil
}

// LocationHandler projects video.metadata envelopes into video_locations,
// but only when the payload carries a valid coordinate pair. One location
// per video: the upsert keys on video_id.
type LocationHandler struct {
	Geocoder Geocoder
}

func (h *LocationHandler) ArtifactType() string { return types.ArtifactTypeVideoMetadata }

func (h *LocationHandler) Sync(ctx context.Context, tx *gorm.DB, artifact *types.Artifact) error {
	var payload struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Altitude  *float64 `json:"altitude"`
	}
	if err := json.Unmarshal(artifact.PayloadJSON, &payload); err != nil {
		return fmt.Errorf("location projection: %w", err)
	}
	if payload.Latitude == nil || payload.Longitude == nil {
		return nil
	}
	lat, lon := *payload.Latitude, *payload.Longitude
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil
	}

	var country, state, city *string
	if h.Geocoder != nil {
		var err error
		country, state, city, err = h.Geocoder.Reverse(ctx, lat, lon)
		if err != nil {
			// Geocoding is an enrichment; a lookup failure must not lose
			// the coordinates.
			country, state, city = nil, nil, nil
		}
	}

	row := types.VideoLocation{
		ArtifactID: artifact.ArtifactID,
		VideoID:    artifact.AssetID,
		Latitude:   lat,
		Longitude:  lon,
		Altitude:   payload.Altitude,
		Country:    country,
		State:      state,
		City:       city,
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (h *LocationHandler) Remove(ctx context.Context, tx *gorm.DB, artifactID string) error {
	return tx.WithContext(ctx).Where("artifact_id = ?", artifactID).Delete(&types.VideoLocation{}).Error
}
