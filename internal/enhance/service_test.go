package enhance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
	"github.com/Houman6460/pixelperfect-sub005/internal/providers/upscale"
)

type fakeJobRepo struct {
	jobs        map[string]*domain.EnhancementJob
	order       []string
	transitions []domain.EnhancementStatus
	createErr   error
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]*domain.EnhancementJob{}}
}

func (r *fakeJobRepo) Create(ctx context.Context, job *domain.EnhancementJob) error {
	if r.createErr != nil {
		return r.createErr
	}
	stored := *job
	r.jobs[job.ID] = &stored
	r.order = append(r.order, job.ID)
	return nil
}

func (r *fakeJobRepo) GetByID(ctx context.Context, id string) (*domain.EnhancementJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (r *fakeJobRepo) LatestBySegment(ctx context.Context, segmentID string) (*domain.EnhancementJob, error) {
	for i := len(r.order) - 1; i >= 0; i-- {
		if job := r.jobs[r.order[i]]; job != nil && job.SegmentID == segmentID {
			copied := *job
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeJobRepo) ListPendingByTimeline(ctx context.Context, timelineID string) ([]domain.EnhancementJob, error) {
	var out []domain.EnhancementJob
	for _, id := range r.order {
		job := r.jobs[id]
		if job.TimelineID == timelineID && !job.Status.IsTerminal() {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (r *fakeJobRepo) ClaimNextQueued(ctx context.Context) (*domain.EnhancementJob, error) {
	for _, id := range r.order {
		job := r.jobs[id]
		if job.Status == domain.EnhancementStatusQueued {
			job.Status = domain.EnhancementStatusProcessing
			copied := *job
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *fakeJobRepo) Transition(ctx context.Context, job *domain.EnhancementJob) error {
	stored := *job
	r.jobs[job.ID] = &stored
	r.transitions = append(r.transitions, job.Status)
	return nil
}

type fakeSegmentStore struct {
	segments map[string]*domain.Segment
}

func newFakeSegmentStore(segments ...*domain.Segment) *fakeSegmentStore {
	store := &fakeSegmentStore{segments: map[string]*domain.Segment{}}
	for _, seg := range segments {
		store.segments[seg.ID] = seg
	}
	return store
}

func (s *fakeSegmentStore) Create(ctx context.Context, segment *domain.Segment) error {
	s.segments[segment.ID] = segment
	return nil
}

func (s *fakeSegmentStore) GetByID(ctx context.Context, id string) (*domain.Segment, error) {
	seg, ok := s.segments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return seg, nil
}

func (s *fakeSegmentStore) ListByTimeline(ctx context.Context, timelineID string) ([]domain.Segment, error) {
	var out []domain.Segment
	for _, seg := range s.segments {
		if seg.TimelineID == timelineID {
			out = append(out, *seg)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Position < out[i].Position {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (s *fakeSegmentStore) Update(ctx context.Context, segment *domain.Segment) error {
	s.segments[segment.ID] = segment
	return nil
}

func (s *fakeSegmentStore) Delete(ctx context.Context, id string) error {
	delete(s.segments, id)
	return nil
}

func (s *fakeSegmentStore) ClaimForGeneration(ctx context.Context, id string) error { return nil }

func (s *fakeSegmentStore) SaveGenerationResult(ctx context.Context, id string, out domain.SegmentGenerationOutput) error {
	return nil
}

func (s *fakeSegmentStore) SaveGenerationError(ctx context.Context, id string, message string, elapsedSec float64) error {
	return nil
}

func (s *fakeSegmentStore) ReleaseClaim(ctx context.Context, id string) error { return nil }

type fakeUpscalerRegistry struct {
	models map[string]*domain.UpscalerModel
}

func (r *fakeUpscalerRegistry) Upscaler(ctx context.Context, id string) (*domain.UpscalerModel, error) {
	model, ok := r.models[id]
	if !ok {
		return nil, domain.ErrUnknownModel
	}
	return model, nil
}

func (r *fakeUpscalerRegistry) ValidateScaleFactor(ctx context.Context, modelID string, factor int) (*domain.UpscalerModel, error) {
	model, err := r.Upscaler(ctx, modelID)
	if err != nil {
		return nil, err
	}
	if !model.SupportsScaleFactor(factor) {
		return nil, domain.ErrUnsupportedScale
	}
	return model, nil
}

type fakeUpscaleProvider struct {
	result *upscale.Result
	err    error
	calls  []upscale.Request
}

func (p *fakeUpscaleProvider) Upscale(ctx context.Context, req upscale.Request) (*upscale.Result, error) {
	p.calls = append(p.calls, req)
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testRegistry() *fakeUpscalerRegistry {
	return &fakeUpscalerRegistry{models: map[string]*domain.UpscalerModel{
		"topaz-video": {ID: "topaz-video", Name: "Topaz Video", Provider: "topaz", ScaleFactors: []int{2, 4}},
	}}
}

func generatedSegment(id string, position int) *domain.Segment {
	return &domain.Segment{
		ID:         id,
		TimelineID: "tl-1",
		Position:   position,
		Status:     domain.SegmentStatusGenerated,
		VideoURL:   fmt.Sprintf("https://cdn.example.com/%s.mp4", id),
	}
}

func TestQueueCreatesJob(t *testing.T) {
	jobs := newFakeJobRepo()
	segments := newFakeSegmentStore(generatedSegment("seg-1", 0))
	svc := NewService(jobs, segments, testRegistry(), &fakeUpscaleProvider{}, testLogger())

	job, err := svc.Queue(context.Background(), QueueRequest{
		SegmentID:   "seg-1",
		UserID:      "user-1",
		ModelID:     "topaz-video",
		ScaleFactor: 2,
	})
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if job.Status != domain.EnhancementStatusQueued {
		t.Fatalf("job status = %s, want queued", job.Status)
	}
	if job.InputURL != "https://cdn.example.com/seg-1.mp4" {
		t.Fatalf("input url = %q, want segment video", job.InputURL)
	}
	if job.Provider != "topaz" {
		t.Fatalf("provider = %q, want topaz", job.Provider)
	}
	if job.TimelineID != "tl-1" {
		t.Fatalf("timeline id = %q", job.TimelineID)
	}
	if len(jobs.jobs) != 1 {
		t.Fatalf("jobs created = %d, want 1", len(jobs.jobs))
	}
}

func TestQueueValidationCreatesNoJob(t *testing.T) {
	cases := []struct {
		name    string
		req     QueueRequest
		segment *domain.Segment
		wantErr error
	}{
		{
			name:    "unknown segment",
			req:     QueueRequest{SegmentID: "missing", ModelID: "topaz-video", ScaleFactor: 2},
			segment: generatedSegment("seg-1", 0),
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "unknown model",
			req:     QueueRequest{SegmentID: "seg-1", ModelID: "nonexistent", ScaleFactor: 2},
			segment: generatedSegment("seg-1", 0),
			wantErr: domain.ErrUnknownModel,
		},
		{
			name:    "unsupported scale factor",
			req:     QueueRequest{SegmentID: "seg-1", ModelID: "topaz-video", ScaleFactor: 8},
			segment: generatedSegment("seg-1", 0),
			wantErr: domain.ErrUnsupportedScale,
		},
		{
			name: "segment without video",
			req:  QueueRequest{SegmentID: "seg-1", ModelID: "topaz-video", ScaleFactor: 2},
			segment: &domain.Segment{
				ID: "seg-1", TimelineID: "tl-1", Status: domain.SegmentStatusPending,
			},
			wantErr: domain.ErrMissingChainInput,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jobs := newFakeJobRepo()
			segments := newFakeSegmentStore(tc.segment)
			svc := NewService(jobs, segments, testRegistry(), &fakeUpscaleProvider{}, testLogger())

			_, err := svc.Queue(context.Background(), tc.req)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
			if len(jobs.jobs) != 0 {
				t.Fatalf("job created despite validation failure")
			}
		})
	}
}

func TestQueueInputOverride(t *testing.T) {
	jobs := newFakeJobRepo()
	segments := newFakeSegmentStore(generatedSegment("seg-1", 0))
	svc := NewService(jobs, segments, testRegistry(), &fakeUpscaleProvider{}, testLogger())

	job, err := svc.Queue(context.Background(), QueueRequest{
		SegmentID:   "seg-1",
		ModelID:     "topaz-video",
		ScaleFactor: 4,
		InputURL:    "https://cdn.example.com/override.mp4",
	})
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	if job.InputURL != "https://cdn.example.com/override.mp4" {
		t.Fatalf("input url = %q, want override", job.InputURL)
	}
}

func TestProcessRunsJobToDone(t *testing.T) {
	jobs := newFakeJobRepo()
	segments := newFakeSegmentStore(generatedSegment("seg-1", 0))
	provider := &fakeUpscaleProvider{result: &upscale.Result{OutputURL: "https://cdn.example.com/seg-1-4x.mp4"}}
	svc := NewService(jobs, segments, testRegistry(), provider, testLogger())

	queued, err := svc.Queue(context.Background(), QueueRequest{
		SegmentID: "seg-1", ModelID: "topaz-video", ScaleFactor: 4,
	})
	if err != nil {
		t.Fatalf("queue: %v", err)
	}

	done, err := svc.Process(context.Background(), queued.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if done.Status != domain.EnhancementStatusDone {
		t.Fatalf("job status = %s, want done", done.Status)
	}
	if done.OutputURL != "https://cdn.example.com/seg-1-4x.mp4" {
		t.Fatalf("output url = %q", done.OutputURL)
	}
	if done.Progress != 100 {
		t.Fatalf("progress = %d, want 100", done.Progress)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Fatalf("timestamps missing: started=%v completed=%v", done.StartedAt, done.CompletedAt)
	}
	if len(provider.calls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(provider.calls))
	}
	if provider.calls[0].ScaleFactor != 4 {
		t.Fatalf("provider scale factor = %d, want 4", provider.calls[0].ScaleFactor)
	}
	wantTransitions := []domain.EnhancementStatus{domain.EnhancementStatusProcessing, domain.EnhancementStatusDone}
	if len(jobs.transitions) != len(wantTransitions) {
		t.Fatalf("transitions = %v, want %v", jobs.transitions, wantTransitions)
	}
	for i, status := range wantTransitions {
		if jobs.transitions[i] != status {
			t.Fatalf("transition %d = %s, want %s", i, jobs.transitions[i], status)
		}
	}
}

func TestProcessProviderFailureLandsFailed(t *testing.T) {
	jobs := newFakeJobRepo()
	segments := newFakeSegmentStore(generatedSegment("seg-1", 0))
	provider := &fakeUpscaleProvider{err: errors.New("upstream capacity exhausted")}
	svc := NewService(jobs, segments, testRegistry(), provider, testLogger())

	queued, _ := svc.Queue(context.Background(), QueueRequest{
		SegmentID: "seg-1", ModelID: "topaz-video", ScaleFactor: 2,
	})

	failed, err := svc.Process(context.Background(), queued.ID)
	if err != nil {
		t.Fatalf("provider failure must land on the job, got error %v", err)
	}
	if failed.Status != domain.EnhancementStatusFailed {
		t.Fatalf("job status = %s, want failed", failed.Status)
	}
	if failed.ErrorMessage == "" {
		t.Fatalf("error message not recorded")
	}
	if failed.OutputURL != "" {
		t.Fatalf("output url set on failed job")
	}
	stored, _ := jobs.GetByID(context.Background(), queued.ID)
	if stored.Status != domain.EnhancementStatusFailed {
		t.Fatalf("stored status = %s, want failed", stored.Status)
	}
}

func TestProcessTerminalJobRejected(t *testing.T) {
	jobs := newFakeJobRepo()
	segments := newFakeSegmentStore(generatedSegment("seg-1", 0))
	provider := &fakeUpscaleProvider{result: &upscale.Result{OutputURL: "https://cdn.example.com/out.mp4"}}
	svc := NewService(jobs, segments, testRegistry(), provider, testLogger())

	queued, _ := svc.Queue(context.Background(), QueueRequest{
		SegmentID: "seg-1", ModelID: "topaz-video", ScaleFactor: 2,
	})
	if _, err := svc.Process(context.Background(), queued.ID); err != nil {
		t.Fatalf("first process: %v", err)
	}

	_, err := svc.Process(context.Background(), queued.ID)
	if !errors.Is(err, domain.ErrJobTerminal) {
		t.Fatalf("error = %v, want ErrJobTerminal", err)
	}
	if len(provider.calls) != 1 {
		t.Fatalf("provider called again for terminal job")
	}
}

func TestProcessInFlightJobRejected(t *testing.T) {
	jobs := newFakeJobRepo()
	job := &domain.EnhancementJob{
		ID: "job-1", SegmentID: "seg-1", Status: domain.EnhancementStatusProcessing,
		InputURL: "https://cdn.example.com/in.mp4",
	}
	jobs.jobs[job.ID] = job
	jobs.order = append(jobs.order, job.ID)
	svc := NewService(jobs, newFakeSegmentStore(), testRegistry(), &fakeUpscaleProvider{}, testLogger())

	_, err := svc.Process(context.Background(), "job-1")
	if !errors.Is(err, domain.ErrGenerationInFlight) {
		t.Fatalf("error = %v, want ErrGenerationInFlight", err)
	}
}

func TestProcessNextDrainsQueueInOrder(t *testing.T) {
	jobs := newFakeJobRepo()
	segments := newFakeSegmentStore(generatedSegment("seg-1", 0), generatedSegment("seg-2", 1))
	provider := &fakeUpscaleProvider{result: &upscale.Result{OutputURL: "https://cdn.example.com/out.mp4"}}
	svc := NewService(jobs, segments, testRegistry(), provider, testLogger())

	first, _ := svc.Queue(context.Background(), QueueRequest{SegmentID: "seg-1", ModelID: "topaz-video", ScaleFactor: 2})
	second, _ := svc.Queue(context.Background(), QueueRequest{SegmentID: "seg-2", ModelID: "topaz-video", ScaleFactor: 2})

	got, err := svc.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("process next: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("claimed job = %s, want oldest %s", got.ID, first.ID)
	}

	got, err = svc.ProcessNext(context.Background())
	if err != nil {
		t.Fatalf("process next: %v", err)
	}
	if got.ID != second.ID {
		t.Fatalf("claimed job = %s, want %s", got.ID, second.ID)
	}

	if _, err := svc.ProcessNext(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty queue error = %v, want ErrNotFound", err)
	}
}

func TestEnhanceTimelineBatch(t *testing.T) {
	jobs := newFakeJobRepo()
	enabled := generatedSegment("seg-0", 0)
	enabled.EnhanceEnabled = true
	enabled.EnhanceModel = "topaz-video"

	noModel := generatedSegment("seg-1", 1)
	noModel.EnhanceEnabled = true

	noVideo := generatedSegment("seg-2", 2)
	noVideo.EnhanceEnabled = true
	noVideo.EnhanceModel = "topaz-video"
	noVideo.VideoURL = ""

	disabled := generatedSegment("seg-3", 3)

	alreadyDone := generatedSegment("seg-4", 4)
	alreadyDone.EnhanceEnabled = true
	alreadyDone.EnhanceModel = "topaz-video"
	alreadyDone.EnhanceStatus = domain.EnhanceStatusDone

	segments := newFakeSegmentStore(enabled, noModel, noVideo, disabled, alreadyDone)
	svc := NewService(jobs, segments, testRegistry(), &fakeUpscaleProvider{}, testLogger())

	result, err := svc.EnhanceTimeline(context.Background(), "tl-1", "user-1")
	if err != nil {
		t.Fatalf("enhance timeline: %v", err)
	}
	if result.Queued != 1 {
		t.Fatalf("queued = %d, want 1", result.Queued)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("errors = %d, want 2 (no model, no video)", len(result.Errors))
	}
	for _, batchErr := range result.Errors {
		if batchErr.SegmentID != "seg-1" && batchErr.SegmentID != "seg-2" {
			t.Fatalf("unexpected batch error for %s: %s", batchErr.SegmentID, batchErr.Error)
		}
	}
	if len(jobs.jobs) != 1 {
		t.Fatalf("jobs created = %d, want 1", len(jobs.jobs))
	}
	created, err := jobs.LatestBySegment(context.Background(), "seg-0")
	if err != nil {
		t.Fatalf("latest by segment: %v", err)
	}
	if created.ScaleFactor != 2 {
		t.Fatalf("batch scale factor = %d, want smallest advertised 2", created.ScaleFactor)
	}
	if created.UserID != "user-1" {
		t.Fatalf("user id = %q, want user-1", created.UserID)
	}
}
