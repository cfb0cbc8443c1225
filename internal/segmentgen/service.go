package segmentgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
	"github.com/Houman6460/pixelperfect-sub005/internal/providers/frames"
	"github.com/Houman6460/pixelperfect-sub005/internal/providers/generation"
)

// Registry answers capability questions before a provider call is made.
type Registry interface {
	ValidateGeneration(ctx context.Context, modelID string, mode domain.GenerationMode, durationSec int) error
}

// GenerateRequest describes one segment generation. Mode, Prompt and
// SourceURL are the effective values after any caller overrides;
// ChainImageURL carries the previous segment's last frame for chained
// segments and is empty for the first segment.
type GenerateRequest struct {
	Segment       *domain.Segment
	Mode          domain.GenerationMode
	Prompt        string
	SourceURL     string
	ChainImageURL string
	Motion        map[string]any
}

// GenerateResult reports the outcome of one segment generation. Success is
// false when the failure was persisted onto the segment record; pre-flight
// validation problems are returned as errors instead and mutate nothing.
type GenerateResult struct {
	SegmentID         string  `json:"segment_id"`
	Position          int     `json:"position"`
	Success           bool    `json:"success"`
	VideoURL          string  `json:"video_url,omitempty"`
	FirstFrameURL     string  `json:"first_frame_url,omitempty"`
	LastFrameURL      string  `json:"last_frame_url,omitempty"`
	ThumbnailURL      string  `json:"thumbnail_url,omitempty"`
	GenerationTimeSec float64 `json:"generation_time_sec"`
	Error             string  `json:"error,omitempty"`
}

// Service orchestrates one segment's generation: validate, claim, call the
// generation provider, extract frames, persist the outcome. It never
// retries; retry policy belongs to the caller.
type Service struct {
	segments  domain.SegmentRepository
	registry  Registry
	generator generation.Generator
	extractor frames.Extractor
	logger    zerolog.Logger
}

// NewService wires the generation service.
func NewService(segments domain.SegmentRepository, registry Registry, generator generation.Generator, extractor frames.Extractor, logger zerolog.Logger) *Service {
	return &Service{
		segments:  segments,
		registry:  registry,
		generator: generator,
		extractor: extractor,
		logger:    logger,
	}
}

// Generate runs the full pipeline for one segment. Validation failures and
// claim conflicts return an error without touching the record; once the
// segment is claimed every failure is persisted as status=error and
// reported through the result.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	seg := req.Segment
	result := GenerateResult{SegmentID: seg.ID, Position: seg.Position}

	if err := ValidateMode(seg.Position, req.Mode); err != nil {
		return result, err
	}
	providerReq, err := buildProviderRequest(seg, req)
	if err != nil {
		return result, err
	}
	if err := s.registry.ValidateGeneration(ctx, seg.ModelID, req.Mode, seg.DurationSec); err != nil {
		return result, err
	}

	if err := s.segments.ClaimForGeneration(ctx, seg.ID); err != nil {
		return result, err
	}

	start := time.Now()
	s.logger.Info().
		Str("segment_id", seg.ID).
		Str("timeline_id", seg.TimelineID).
		Int("position", seg.Position).
		Str("mode", string(req.Mode)).
		Msg("segmentgen: generation started")

	genResult, err := s.generator.Generate(ctx, providerReq)
	if err != nil {
		return s.finishWithError(ctx, seg, result, start, fmt.Errorf("generation provider: %w", err))
	}

	extracted, err := s.extractor.Extract(ctx, frames.ExtractRequest{
		VideoURL:   genResult.VideoURL,
		TimelineID: seg.TimelineID,
		SegmentID:  seg.ID,
	})
	if err != nil {
		return s.finishWithError(ctx, seg, result, start, fmt.Errorf("frame extraction: %w", err))
	}

	elapsed := time.Since(start).Seconds()
	output := domain.SegmentGenerationOutput{
		VideoURL:          genResult.VideoURL,
		FirstFrameURL:     extracted.FirstFrameURL,
		LastFrameURL:      extracted.LastFrameURL,
		ThumbnailURL:      extracted.ThumbnailURL,
		GenerationTimeSec: elapsed,
	}
	if err := s.segments.SaveGenerationResult(ctx, seg.ID, output); err != nil {
		return result, fmt.Errorf("persist generation result: %w", err)
	}

	result.Success = true
	result.VideoURL = output.VideoURL
	result.FirstFrameURL = output.FirstFrameURL
	result.LastFrameURL = output.LastFrameURL
	result.ThumbnailURL = output.ThumbnailURL
	result.GenerationTimeSec = elapsed
	s.logger.Info().
		Str("segment_id", seg.ID).
		Float64("generation_time_sec", elapsed).
		Msg("segmentgen: generation finished")
	return result, nil
}

// finishWithError persists a provider-side failure onto the claimed
// segment. Cancellation is the exception: the claim is released so an
// aborted run leaves no orphaned generating record.
func (s *Service) finishWithError(ctx context.Context, seg *domain.Segment, result GenerateResult, start time.Time, cause error) (GenerateResult, error) {
	if errors.Is(cause, context.Canceled) || ctx.Err() != nil {
		if err := s.segments.ReleaseClaim(context.WithoutCancel(ctx), seg.ID); err != nil {
			s.logger.Error().Err(err).Str("segment_id", seg.ID).Msg("segmentgen: release claim failed")
		}
		return result, cause
	}

	elapsed := time.Since(start).Seconds()
	if err := s.segments.SaveGenerationError(ctx, seg.ID, cause.Error(), elapsed); err != nil {
		s.logger.Error().Err(err).Str("segment_id", seg.ID).Msg("segmentgen: persist error state failed")
	}
	s.logger.Error().Err(cause).
		Str("segment_id", seg.ID).
		Int("position", seg.Position).
		Msg("segmentgen: generation failed")
	result.Error = cause.Error()
	result.GenerationTimeSec = elapsed
	return result, nil
}

// buildProviderRequest shapes the provider payload for the effective mode.
func buildProviderRequest(seg *domain.Segment, req GenerateRequest) (generation.Request, error) {
	out := generation.Request{
		ModelID:     seg.ModelID,
		Mode:        req.Mode,
		DurationSec: seg.DurationSec,
		Prompt:      req.Prompt,
		Motion:      req.Motion,
		RequestID:   seg.ID,
	}
	imageInput := req.SourceURL
	if seg.Position > 0 {
		imageInput = req.ChainImageURL
	}

	switch req.Mode {
	case domain.ModeTextToVideo:
		if req.Prompt == "" {
			return out, fmt.Errorf("%s requires a prompt: %w", req.Mode, domain.ErrInvalidMode)
		}
	case domain.ModeImageToVideo:
		if imageInput == "" {
			if seg.Position > 0 {
				return out, fmt.Errorf("chained segment %d: %w", seg.Position, domain.ErrMissingChainInput)
			}
			return out, fmt.Errorf("%s requires a source image: %w", req.Mode, domain.ErrInvalidMode)
		}
		out.ImageURL = imageInput
	case domain.ModeVideoToVideo:
		if req.SourceURL == "" {
			return out, fmt.Errorf("%s requires a source video: %w", req.Mode, domain.ErrInvalidMode)
		}
		out.VideoURL = req.SourceURL
	case domain.ModeFirstFrameToVideo:
		if imageInput == "" {
			return out, fmt.Errorf("%s requires a source image: %w", req.Mode, domain.ErrInvalidMode)
		}
		out.ImageURL = imageInput
		out.ExactFirstFrame = true
	default:
		return out, fmt.Errorf("unknown generation mode %q: %w", req.Mode, domain.ErrInvalidMode)
	}
	return out, nil
}
