package enhance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
	"github.com/Houman6460/pixelperfect-sub005/internal/providers/upscale"
)

// Registry validates upscaler model selections before a job is created.
type Registry interface {
	Upscaler(ctx context.Context, id string) (*domain.UpscalerModel, error)
	ValidateScaleFactor(ctx context.Context, modelID string, factor int) (*domain.UpscalerModel, error)
}

// QueueRequest describes one enhancement request for a segment.
type QueueRequest struct {
	SegmentID        string
	UserID           string
	ModelID          string
	ScaleFactor      int
	TargetResolution string
	// InputURL overrides the segment's video as the enhancement input.
	InputURL string
}

// BatchError reports one segment skipped by EnhanceTimeline.
type BatchError struct {
	SegmentID string `json:"segment_id"`
	Position  int    `json:"position"`
	Error     string `json:"error"`
}

// BatchResult is the outcome of EnhanceTimeline. Per-segment errors are
// independent: one segment failing to queue never blocks its siblings.
type BatchResult struct {
	Queued int          `json:"queued"`
	Errors []BatchError `json:"errors"`
}

// Service owns the enhancement job lifecycle: queued, processing, then a
// terminal done or failed. The enhancement pipeline is layered on top of
// generated segments and fully decoupled from the generation chain.
type Service struct {
	jobs     domain.EnhancementJobRepository
	segments domain.SegmentRepository
	registry Registry
	upscaler upscale.Upscaler
	logger   zerolog.Logger
}

// NewService wires the enhancement service.
func NewService(jobs domain.EnhancementJobRepository, segments domain.SegmentRepository, registry Registry, upscaler upscale.Upscaler, logger zerolog.Logger) *Service {
	return &Service{
		jobs:     jobs,
		segments: segments,
		registry: registry,
		upscaler: upscaler,
		logger:   logger,
	}
}

// Queue validates the request and creates a queued job. No job record is
// created when the model is unknown, the scale factor is not advertised, or
// the segment has no usable input video.
func (s *Service) Queue(ctx context.Context, req QueueRequest) (*domain.EnhancementJob, error) {
	segment, err := s.segments.GetByID(ctx, req.SegmentID)
	if err != nil {
		return nil, err
	}
	model, err := s.registry.ValidateScaleFactor(ctx, req.ModelID, req.ScaleFactor)
	if err != nil {
		return nil, err
	}
	inputURL := req.InputURL
	if inputURL == "" {
		inputURL = segment.VideoURL
	}
	if inputURL == "" {
		return nil, fmt.Errorf("segment %s has no video to enhance: %w", segment.ID, domain.ErrMissingChainInput)
	}

	job := &domain.EnhancementJob{
		ID:               uuid.NewString(),
		SegmentID:        segment.ID,
		TimelineID:       segment.TimelineID,
		UserID:           req.UserID,
		ModelID:          model.ID,
		Provider:         model.Provider,
		InputURL:         inputURL,
		ScaleFactor:      req.ScaleFactor,
		TargetResolution: req.TargetResolution,
		Status:           domain.EnhancementStatusQueued,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create enhancement job: %w", err)
	}
	s.logger.Info().
		Str("job_id", job.ID).
		Str("segment_id", segment.ID).
		Str("model", model.ID).
		Int("scale_factor", req.ScaleFactor).
		Msg("enhance: job queued")
	return job, nil
}

// Process advances a queued job to processing, invokes the provider, and
// lands the job in a terminal state. Provider failures are recorded on the
// job, never lost: the job always ends done or failed. The segment's
// enhance projection follows every transition.
func (s *Service) Process(ctx context.Context, jobID string) (*domain.EnhancementJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return nil, fmt.Errorf("job %s is %s: %w", job.ID, job.Status, domain.ErrJobTerminal)
	}
	if job.Status == domain.EnhancementStatusProcessing {
		return nil, fmt.Errorf("job %s: %w", job.ID, domain.ErrGenerationInFlight)
	}

	started := time.Now()
	job.Status = domain.EnhancementStatusProcessing
	job.StartedAt = &started
	job.Progress = 0
	if err := s.jobs.Transition(ctx, job); err != nil {
		return nil, fmt.Errorf("mark job processing: %w", err)
	}
	return s.invoke(ctx, job)
}

// invoke runs the provider call for a job already in processing and lands
// it in a terminal state.
func (s *Service) invoke(ctx context.Context, job *domain.EnhancementJob) (*domain.EnhancementJob, error) {
	started := time.Now()
	if job.StartedAt != nil {
		started = *job.StartedAt
	}

	result, err := s.upscaler.Upscale(ctx, upscale.Request{
		VideoURL:         job.InputURL,
		ModelID:          job.ModelID,
		ScaleFactor:      job.ScaleFactor,
		TargetResolution: job.TargetResolution,
		RequestID:        job.ID,
	})
	completed := time.Now()
	job.CompletedAt = &completed
	job.ProcessingTimeSec = completed.Sub(started).Seconds()
	if err != nil {
		job.Status = domain.EnhancementStatusFailed
		job.ErrorMessage = err.Error()
		if terr := s.jobs.Transition(context.WithoutCancel(ctx), job); terr != nil {
			s.logger.Error().Err(terr).Str("job_id", job.ID).Msg("enhance: persist failed state failed")
		}
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("enhance: job failed")
		return job, nil
	}

	job.Status = domain.EnhancementStatusDone
	job.OutputURL = result.OutputURL
	job.Progress = 100
	if err := s.jobs.Transition(ctx, job); err != nil {
		return nil, fmt.Errorf("mark job done: %w", err)
	}
	s.logger.Info().
		Str("job_id", job.ID).
		Float64("processing_time_sec", job.ProcessingTimeSec).
		Msg("enhance: job done")
	return job, nil
}

// ProcessNext claims and processes the oldest queued job. The repository
// claim moves the job into processing atomically, so concurrent workers
// never pick up the same job. Returns domain.ErrNotFound when the queue is
// empty.
func (s *Service) ProcessNext(ctx context.Context) (*domain.EnhancementJob, error) {
	job, err := s.jobs.ClaimNextQueued(ctx)
	if err != nil {
		return nil, err
	}
	return s.invoke(ctx, job)
}

// EnhanceTimeline queues one job for every enhance-enabled segment of the
// timeline that is not already done. Segments without a model selection or
// without a video are reported in the errors list and skipped; the batch
// never aborts early.
func (s *Service) EnhanceTimeline(ctx context.Context, timelineID, userID string) (*BatchResult, error) {
	segments, err := s.segments.ListByTimeline(ctx, timelineID)
	if err != nil {
		return nil, err
	}

	out := &BatchResult{Errors: []BatchError{}}
	for i := range segments {
		seg := segments[i]
		if !seg.EnhanceEnabled || seg.EnhanceStatus == domain.EnhanceStatusDone {
			continue
		}
		if seg.EnhanceModel == "" {
			out.Errors = append(out.Errors, BatchError{SegmentID: seg.ID, Position: seg.Position, Error: "no enhancement model selected"})
			continue
		}
		if seg.VideoURL == "" {
			out.Errors = append(out.Errors, BatchError{SegmentID: seg.ID, Position: seg.Position, Error: "segment has no video"})
			continue
		}
		model, err := s.registry.Upscaler(ctx, seg.EnhanceModel)
		if err != nil {
			out.Errors = append(out.Errors, BatchError{SegmentID: seg.ID, Position: seg.Position, Error: err.Error()})
			continue
		}
		scale := defaultScaleFactor(model)
		if _, err := s.Queue(ctx, QueueRequest{
			SegmentID:   seg.ID,
			UserID:      userID,
			ModelID:     model.ID,
			ScaleFactor: scale,
		}); err != nil {
			out.Errors = append(out.Errors, BatchError{SegmentID: seg.ID, Position: seg.Position, Error: err.Error()})
			continue
		}
		out.Queued++
	}
	return out, nil
}

// defaultScaleFactor picks the smallest advertised factor when the batch
// path has no explicit selection.
func defaultScaleFactor(model *domain.UpscalerModel) int {
	if len(model.ScaleFactors) == 0 {
		return 2
	}
	min := model.ScaleFactors[0]
	for _, f := range model.ScaleFactors[1:] {
		if f < min {
			min = f
		}
	}
	return min
}
