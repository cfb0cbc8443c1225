package segmentgen

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
)

// SegmentGenerator is the single-segment pipeline the orchestrator drives.
type SegmentGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// Orchestrator walks a timeline's segments in position order, threading the
// previous segment's last frame into each next generation. Processing is
// strictly sequential: segment N+1 cannot start before segment N has
// produced its last frame.
type Orchestrator struct {
	timelines domain.TimelineRepository
	segments  domain.SegmentRepository
	service   SegmentGenerator
	logger    zerolog.Logger
}

// NewOrchestrator wires the timeline orchestrator.
func NewOrchestrator(timelines domain.TimelineRepository, segments domain.SegmentRepository, service SegmentGenerator, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		timelines: timelines,
		segments:  segments,
		service:   service,
		logger:    logger,
	}
}

// GenerateTimeline generates every segment of the timeline in order.
// Fail-fast: the first unsuccessful segment stops the run; segments already
// generated are never rolled back and the skipped tail simply produces no
// results. The timeline is marked ready when the run ends, whether it
// completed fully or stopped early. The context is checked before each
// segment so an in-flight run can be cancelled without leaving orphaned
// generating records.
func (o *Orchestrator) GenerateTimeline(ctx context.Context, timelineID string, firstMode domain.GenerationMode, firstSource string) ([]GenerateResult, error) {
	timeline, err := o.timelines.GetByID(ctx, timelineID)
	if err != nil {
		return nil, err
	}
	segments, err := o.segments.ListByTimeline(ctx, timelineID)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("timeline %s has no segments: %w", timelineID, domain.ErrNotFound)
	}

	if err := o.timelines.UpdateStatus(ctx, timeline.ID, domain.TimelineStatusGenerating); err != nil {
		return nil, fmt.Errorf("mark timeline generating: %w", err)
	}
	defer func() {
		// Ready regardless of partial failure; status reads reflect
		// per-segment outcomes, not the run itself.
		if err := o.timelines.UpdateStatus(context.WithoutCancel(ctx), timeline.ID, domain.TimelineStatusReady); err != nil {
			o.logger.Error().Err(err).Str("timeline_id", timeline.ID).Msg("segmentgen: mark timeline ready failed")
		}
	}()

	o.logger.Info().
		Str("timeline_id", timeline.ID).
		Int("segments", len(segments)).
		Msg("segmentgen: timeline run started")

	results := make([]GenerateResult, 0, len(segments))
	previousLastFrame := ""
	for i := range segments {
		if err := ctx.Err(); err != nil {
			o.logger.Warn().Str("timeline_id", timeline.ID).Int("position", i).Msg("segmentgen: timeline run cancelled")
			return results, err
		}
		seg := segments[i]

		req := GenerateRequest{
			Segment: &seg,
			Prompt:  seg.PromptText,
		}
		if i == 0 {
			req.Mode = seg.GenerationMode
			if firstMode != "" {
				req.Mode = firstMode
			}
			req.SourceURL = seg.SourceURL
			if firstSource != "" {
				req.SourceURL = firstSource
			}
		} else {
			// Chained segments are always image-to-video from the
			// previous step's last frame.
			req.Mode = domain.ModeImageToVideo
			req.ChainImageURL = previousLastFrame
		}

		result, err := o.service.Generate(ctx, req)
		if err != nil {
			o.logger.Error().Err(err).
				Str("timeline_id", timeline.ID).
				Int("position", seg.Position).
				Msg("segmentgen: run aborted before provider call")
			result.Error = err.Error()
			results = append(results, result)
			return results, nil
		}
		results = append(results, result)
		if !result.Success {
			o.logger.Warn().
				Str("timeline_id", timeline.ID).
				Int("position", seg.Position).
				Msg("segmentgen: run stopped at failed segment")
			return results, nil
		}
		previousLastFrame = result.LastFrameURL
	}

	o.logger.Info().
		Str("timeline_id", timeline.ID).
		Int("results", len(results)).
		Msg("segmentgen: timeline run finished")
	return results, nil
}
