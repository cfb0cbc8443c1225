package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Houman6460/pixelperfect-sub005/internal/adapter/repo"
	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
	"github.com/Houman6460/pixelperfect-sub005/internal/enhance"
	"github.com/Houman6460/pixelperfect-sub005/internal/infra"
	"github.com/Houman6460/pixelperfect-sub005/internal/providers/upscale"
	"github.com/Houman6460/pixelperfect-sub005/internal/registry"
)

const jobPollInterval = 2 * time.Second

// The worker drains the enhancement job queue. Claims go through a
// SKIP LOCKED update, so multiple worker processes can run side by side
// without ever processing the same job twice.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	jobs := repo.NewEnhancementJobRepository(pool)
	segments := repo.NewSegmentRepository(pool)
	models := repo.NewModelRepository(pool)

	var cache registry.Cache
	if redisClient, err := infra.NewRedisClient(ctx, cfg); err != nil {
		logger.Warn().Err(err).Msg("worker: redis unavailable, capability cache disabled")
	} else {
		defer redisClient.Close()
		cache = registry.NewRedisCache(redisClient)
	}
	capabilities := registry.New(models, cache, cfg.CapabilityCacheTTL, logger)

	upscaler, err := upscale.NewClient(upscale.Options{
		APIKey:  cfg.UpscaleAPIKey,
		BaseURL: cfg.UpscaleBaseURL,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure upscale client")
	}

	service := enhance.NewService(jobs, segments, capabilities, upscaler, logger)

	logger.Info().Msg("worker: started")
	if err := run(ctx, service, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func run(ctx context.Context, service *enhance.Service, logger infra.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		job, err := service.ProcessNext(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				time.Sleep(jobPollInterval)
				continue
			}
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Error().Err(err).Msg("worker: job processing failed")
			time.Sleep(jobPollInterval)
			continue
		}
		logger.Info().
			Str("job_id", job.ID).
			Str("status", string(job.Status)).
			Msg("worker: job finished")
	}
}
