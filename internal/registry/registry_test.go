package registry

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
)

type fakeStore struct {
	generation map[string]*domain.GenerationModel
	upscalers  map[string]*domain.UpscalerModel
	reads      int
}

func (s *fakeStore) GenerationModel(ctx context.Context, id string) (*domain.GenerationModel, error) {
	s.reads++
	model, ok := s.generation[id]
	if !ok {
		return nil, domain.ErrUnknownModel
	}
	return model, nil
}

func (s *fakeStore) Upscaler(ctx context.Context, id string) (*domain.UpscalerModel, error) {
	s.reads++
	model, ok := s.upscalers[id]
	if !ok {
		return nil, domain.ErrUnknownModel
	}
	return model, nil
}

func (s *fakeStore) ListUpscalers(ctx context.Context) ([]domain.UpscalerModel, error) {
	s.reads++
	var out []domain.UpscalerModel
	for _, model := range s.upscalers {
		out = append(out, *model)
	}
	return out, nil
}

type memoryCache struct {
	entries map[string][]byte
	getErr  error
	setErr  error
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	raw, ok := c.entries[key]
	return raw, ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.sets++
	c.entries[key] = value
	return nil
}

func testStore() *fakeStore {
	return &fakeStore{
		generation: map[string]*domain.GenerationModel{
			"videogen-lite": {
				ID:           "videogen-lite",
				Name:         "VideoGen Lite",
				Provider:     "videogen",
				Modes:        []domain.GenerationMode{domain.ModeTextToVideo, domain.ModeImageToVideo},
				DurationsSec: []int{5, 10},
			},
		},
		upscalers: map[string]*domain.UpscalerModel{
			"topaz-video": {
				ID:           "topaz-video",
				Name:         "Topaz Video",
				Provider:     "topaz",
				ScaleFactors: []int{2, 4},
			},
		},
	}
}

func newTestRegistry(store Store, cache Cache) *Registry {
	return New(store, cache, time.Minute, zerolog.New(io.Discard))
}

func TestGenerationModelCacheAside(t *testing.T) {
	store := testStore()
	cache := newMemoryCache()
	reg := newTestRegistry(store, cache)

	model, err := reg.GenerationModel(context.Background(), "videogen-lite")
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	if model.Name != "VideoGen Lite" {
		t.Fatalf("name = %q", model.Name)
	}
	if store.reads != 1 {
		t.Fatalf("store reads = %d, want 1", store.reads)
	}
	if cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", cache.sets)
	}

	again, err := reg.GenerationModel(context.Background(), "videogen-lite")
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}
	if store.reads != 1 {
		t.Fatalf("store reads after cache hit = %d, want 1", store.reads)
	}
	if again.ID != model.ID || len(again.Modes) != len(model.Modes) {
		t.Fatalf("cached model differs from stored model")
	}
}

func TestGenerationModelUnknown(t *testing.T) {
	reg := newTestRegistry(testStore(), newMemoryCache())
	if _, err := reg.GenerationModel(context.Background(), "nope"); !errors.Is(err, domain.ErrUnknownModel) {
		t.Fatalf("error = %v, want ErrUnknownModel", err)
	}
	if _, err := reg.GenerationModel(context.Background(), ""); !errors.Is(err, domain.ErrUnknownModel) {
		t.Fatalf("empty id error = %v, want ErrUnknownModel", err)
	}
}

func TestCacheFailureDegradesToStore(t *testing.T) {
	store := testStore()
	cache := newMemoryCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	reg := newTestRegistry(store, cache)

	model, err := reg.Upscaler(context.Background(), "topaz-video")
	if err != nil {
		t.Fatalf("lookup with broken cache: %v", err)
	}
	if model.ID != "topaz-video" {
		t.Fatalf("model id = %q", model.ID)
	}
	if store.reads != 1 {
		t.Fatalf("store reads = %d, want 1", store.reads)
	}
}

func TestCorruptCacheEntryFallsBack(t *testing.T) {
	store := testStore()
	cache := newMemoryCache()
	cache.entries[upscalerKeyPrefix+"topaz-video"] = []byte("{not json")
	reg := newTestRegistry(store, cache)

	model, err := reg.Upscaler(context.Background(), "topaz-video")
	if err != nil {
		t.Fatalf("lookup with corrupt cache: %v", err)
	}
	if model.Provider != "topaz" {
		t.Fatalf("provider = %q", model.Provider)
	}
	if store.reads != 1 {
		t.Fatalf("store reads = %d, want 1", store.reads)
	}
}

func TestNilCacheDisablesCaching(t *testing.T) {
	store := testStore()
	reg := newTestRegistry(store, nil)

	for i := 0; i < 2; i++ {
		if _, err := reg.ListUpscalers(context.Background()); err != nil {
			t.Fatalf("list: %v", err)
		}
	}
	if store.reads != 2 {
		t.Fatalf("store reads = %d, want 2 without cache", store.reads)
	}
}

func TestValidateGeneration(t *testing.T) {
	reg := newTestRegistry(testStore(), nil)
	ctx := context.Background()

	if err := reg.ValidateGeneration(ctx, "videogen-lite", domain.ModeTextToVideo, 5); err != nil {
		t.Fatalf("supported mode and duration: %v", err)
	}
	if err := reg.ValidateGeneration(ctx, "videogen-lite", domain.ModeVideoToVideo, 5); !errors.Is(err, domain.ErrInvalidMode) {
		t.Fatalf("unsupported mode error = %v, want ErrInvalidMode", err)
	}
	if err := reg.ValidateGeneration(ctx, "videogen-lite", domain.ModeTextToVideo, 42); !errors.Is(err, domain.ErrInvalidMode) {
		t.Fatalf("unsupported duration error = %v, want ErrInvalidMode", err)
	}
	if err := reg.ValidateGeneration(ctx, "missing", domain.ModeTextToVideo, 5); !errors.Is(err, domain.ErrUnknownModel) {
		t.Fatalf("unknown model error = %v, want ErrUnknownModel", err)
	}
	// Zero duration means the caller did not constrain it.
	if err := reg.ValidateGeneration(ctx, "videogen-lite", domain.ModeTextToVideo, 0); err != nil {
		t.Fatalf("zero duration: %v", err)
	}
}

func TestValidateScaleFactor(t *testing.T) {
	reg := newTestRegistry(testStore(), nil)
	ctx := context.Background()

	model, err := reg.ValidateScaleFactor(ctx, "topaz-video", 4)
	if err != nil {
		t.Fatalf("supported factor: %v", err)
	}
	if model.ID != "topaz-video" {
		t.Fatalf("model id = %q", model.ID)
	}
	if _, err := reg.ValidateScaleFactor(ctx, "topaz-video", 8); !errors.Is(err, domain.ErrUnsupportedScale) {
		t.Fatalf("unsupported factor error = %v, want ErrUnsupportedScale", err)
	}
	if _, err := reg.ValidateScaleFactor(ctx, "missing", 2); !errors.Is(err, domain.ErrUnknownModel) {
		t.Fatalf("unknown model error = %v, want ErrUnknownModel", err)
	}
}
