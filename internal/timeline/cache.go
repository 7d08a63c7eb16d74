package timeline

import (
	"context"

	"github.com/scenario-simulator/internal/logging"
	"github.com/scenario-simulator/internal/models"
)

// Cache stores built timelines between process restarts
type Cache interface {
	GetTimeline(ctx context.Context, key string) (*models.TimelineSnapshot, error)
	SetTimeline(ctx context.Context, key string, snap models.TimelineSnapshot) error
}

// LoadOrBuild returns the cached timeline for key, building and caching it on a miss.
// Cache failures degrade to a rebuild; they never fail the load.
func LoadOrBuild(ctx context.Context, cache Cache, key string, builder *Builder, logger *logging.Logger) (*Timeline, error) {
	if logger == nil {
		logger = logging.FromContext(ctx)
	}
	log := logger.WithField("cache_key", key)

	if cache != nil {
		snap, err := cache.GetTimeline(ctx, key)
		if err != nil {
			log.WithError(err).Warn("Timeline cache read failed, rebuilding")
		} else if snap != nil && len(snap.Days) > 0 {
			log.WithField("days", len(snap.Days)).Debug("Timeline cache hit")
			return FromSnapshot(*snap), nil
		}
	}

	tl, err := builder.Build(ctx)
	if err != nil {
		return nil, err
	}

	if cache != nil && tl.Len() > 0 {
		if err := cache.SetTimeline(ctx, key, tl.Snapshot()); err != nil {
			log.WithError(err).Warn("Failed to cache timeline")
		}
	}

	return tl, nil
}
