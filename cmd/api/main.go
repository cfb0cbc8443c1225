package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Houman6460/pixelperfect-sub005/internal/adapter/repo"
	"github.com/Houman6460/pixelperfect-sub005/internal/enhance"
	"github.com/Houman6460/pixelperfect-sub005/internal/http/handlers"
	"github.com/Houman6460/pixelperfect-sub005/internal/http/httpapi"
	"github.com/Houman6460/pixelperfect-sub005/internal/infra"
	"github.com/Houman6460/pixelperfect-sub005/internal/providers/frames"
	"github.com/Houman6460/pixelperfect-sub005/internal/providers/generation"
	"github.com/Houman6460/pixelperfect-sub005/internal/providers/upscale"
	"github.com/Houman6460/pixelperfect-sub005/internal/registry"
	"github.com/Houman6460/pixelperfect-sub005/internal/segmentgen"
	"github.com/Houman6460/pixelperfect-sub005/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	timelines := repo.NewTimelineRepository(pool)
	segments := repo.NewSegmentRepository(pool)
	jobs := repo.NewEnhancementJobRepository(pool)
	models := repo.NewModelRepository(pool)

	// Capability cache is optional; a missing redis degrades to direct
	// database reads.
	var cache registry.Cache
	if redisClient, err := infra.NewRedisClient(ctx, cfg); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, capability cache disabled")
	} else {
		defer redisClient.Close()
		cache = registry.NewRedisCache(redisClient)
	}
	capabilities := registry.New(models, cache, cfg.CapabilityCacheTTL, logger)

	blobStore, err := newBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	generator, err := generation.NewClient(generation.Options{
		APIKey:  cfg.GenerationAPIKey,
		BaseURL: cfg.GenerationBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure generation client")
	}
	extractor, err := frames.NewClient(frames.Options{
		APIKey:  cfg.FramesAPIKey,
		BaseURL: cfg.FramesBaseURL,
		Logger:  &logger,
		Store:   blobStore,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure frames client")
	}
	upscaler, err := upscale.NewClient(upscale.Options{
		APIKey:  cfg.UpscaleAPIKey,
		BaseURL: cfg.UpscaleBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure upscale client")
	}

	generationService := segmentgen.NewService(segments, capabilities, generator, extractor, logger)
	orchestrator := segmentgen.NewOrchestrator(timelines, segments, generationService, logger)
	enhanceService := enhance.NewService(jobs, segments, capabilities, upscaler, logger)

	app := &handlers.App{
		Logger:    logger,
		Timelines: timelines,
		Segments:  segments,
		Jobs:      jobs,
		Runner:    orchestrator,
		Generator: generationService,
		Enhancer:  enhanceService,
		Registry:  capabilities,
	}

	router := httpapi.NewRouter(app, cfg, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func newBlobStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (storage.BlobStore, error) {
	if cfg.StorageBackend == "s3" {
		return storage.NewS3Store(ctx, storage.S3Config{
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		}, logger)
	}
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}
