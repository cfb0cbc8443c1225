package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
)

// Store is the durable source of model capability records.
type Store interface {
	GenerationModel(ctx context.Context, id string) (*domain.GenerationModel, error)
	Upscaler(ctx context.Context, id string) (*domain.UpscalerModel, error)
	ListUpscalers(ctx context.Context) ([]domain.UpscalerModel, error)
}

const (
	generationKeyPrefix = "capability:generation:"
	upscalerKeyPrefix   = "capability:upscaler:"
	upscalerListKey     = "capability:upscalers"
)

// Registry answers read-only capability questions about generation and
// upscaler models. Lookups go through an ephemeral cache; misses fall back
// to the store and repopulate the cache. Cache failures are logged and
// degrade to direct store reads, never surfaced to callers.
type Registry struct {
	store  Store
	cache  Cache
	ttl    time.Duration
	logger zerolog.Logger
}

// New constructs a Registry. A nil cache disables caching.
func New(store Store, cache Cache, ttl time.Duration, logger zerolog.Logger) *Registry {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Registry{store: store, cache: cache, ttl: ttl, logger: logger}
}

// GenerationModel returns the capability record for a generation model.
func (r *Registry) GenerationModel(ctx context.Context, id string) (*domain.GenerationModel, error) {
	if id == "" {
		return nil, domain.ErrUnknownModel
	}
	var model domain.GenerationModel
	if r.cacheGet(ctx, generationKeyPrefix+id, &model) {
		return &model, nil
	}
	found, err := r.store.GenerationModel(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cacheSet(ctx, generationKeyPrefix+id, found)
	return found, nil
}

// Upscaler returns the capability record for an upscaler model.
func (r *Registry) Upscaler(ctx context.Context, id string) (*domain.UpscalerModel, error) {
	if id == "" {
		return nil, domain.ErrUnknownModel
	}
	var model domain.UpscalerModel
	if r.cacheGet(ctx, upscalerKeyPrefix+id, &model) {
		return &model, nil
	}
	found, err := r.store.Upscaler(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cacheSet(ctx, upscalerKeyPrefix+id, found)
	return found, nil
}

// ListUpscalers returns every advertised upscaler model.
func (r *Registry) ListUpscalers(ctx context.Context) ([]domain.UpscalerModel, error) {
	var models []domain.UpscalerModel
	if r.cacheGet(ctx, upscalerListKey, &models) {
		return models, nil
	}
	models, err := r.store.ListUpscalers(ctx)
	if err != nil {
		return nil, err
	}
	r.cacheSet(ctx, upscalerListKey, models)
	return models, nil
}

// ValidateGeneration checks that the model supports the requested mode and
// duration before any provider call is made.
func (r *Registry) ValidateGeneration(ctx context.Context, modelID string, mode domain.GenerationMode, durationSec int) error {
	model, err := r.GenerationModel(ctx, modelID)
	if err != nil {
		return err
	}
	if !model.SupportsMode(mode) {
		return fmt.Errorf("model %s does not support mode %s: %w", modelID, mode, domain.ErrInvalidMode)
	}
	if durationSec > 0 && !model.SupportsDuration(durationSec) {
		return fmt.Errorf("model %s does not support duration %ds: %w", modelID, durationSec, domain.ErrInvalidMode)
	}
	return nil
}

// ValidateScaleFactor checks that the upscaler advertises the scale factor.
func (r *Registry) ValidateScaleFactor(ctx context.Context, modelID string, factor int) (*domain.UpscalerModel, error) {
	model, err := r.Upscaler(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if !model.SupportsScaleFactor(factor) {
		return nil, fmt.Errorf("scale factor %dx not advertised by %s: %w", factor, modelID, domain.ErrUnsupportedScale)
	}
	return model, nil
}

func (r *Registry) cacheGet(ctx context.Context, key string, dest any) bool {
	if r.cache == nil {
		return false
	}
	raw, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("registry: cache read failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("registry: cache entry corrupt")
		return false
	}
	return true
}

func (r *Registry) cacheSet(ctx context.Context, key string, value any) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, raw, r.ttl); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("registry: cache write failed")
	}
}
