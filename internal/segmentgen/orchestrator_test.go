package segmentgen

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
	"github.com/Houman6460/pixelperfect-sub005/internal/providers/frames"
	"github.com/Houman6460/pixelperfect-sub005/internal/providers/generation"
)

type fakeTimelineRepo struct {
	timelines map[string]*domain.Timeline
	statuses  []domain.TimelineStatus
}

func newFakeTimelineRepo(timelines ...*domain.Timeline) *fakeTimelineRepo {
	repo := &fakeTimelineRepo{timelines: map[string]*domain.Timeline{}}
	for _, tl := range timelines {
		repo.timelines[tl.ID] = tl
	}
	return repo
}

func (r *fakeTimelineRepo) Create(ctx context.Context, timeline *domain.Timeline) error {
	r.timelines[timeline.ID] = timeline
	return nil
}

func (r *fakeTimelineRepo) GetByID(ctx context.Context, id string) (*domain.Timeline, error) {
	tl, ok := r.timelines[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return tl, nil
}

func (r *fakeTimelineRepo) UpdateStatus(ctx context.Context, id string, status domain.TimelineStatus) error {
	tl, ok := r.timelines[id]
	if !ok {
		return domain.ErrNotFound
	}
	tl.Status = status
	r.statuses = append(r.statuses, status)
	return nil
}

// sequenceGenerator fails at a chosen call index and records every request.
type sequenceGenerator struct {
	requests []generation.Request
	failAt   int
}

func (g *sequenceGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	call := len(g.requests)
	g.requests = append(g.requests, req)
	if g.failAt >= 0 && call == g.failAt {
		return nil, errors.New("provider rejected request")
	}
	return &generation.Result{VideoURL: fmt.Sprintf("https://cdn.example.com/video-%d.mp4", call)}, nil
}

// chainExtractor derives frame urls from the generated video so each segment
// produces a distinct last frame.
type chainExtractor struct{}

func (chainExtractor) Extract(ctx context.Context, req frames.ExtractRequest) (*frames.Frames, error) {
	return &frames.Frames{
		FirstFrameURL: req.VideoURL + "/first.jpg",
		LastFrameURL:  req.VideoURL + "/last.jpg",
		ThumbnailURL:  req.VideoURL + "/thumb.jpg",
	}, nil
}

func timelineFixture() (*fakeTimelineRepo, *fakeSegmentRepo) {
	timelines := newFakeTimelineRepo(&domain.Timeline{ID: "tl-1", OwnerID: "user-1", Status: domain.TimelineStatusDraft})
	segments := newFakeSegmentRepo()
	for i := 0; i < 3; i++ {
		seg := pendingSegment(fmt.Sprintf("seg-%d", i), i)
		segments.segments[seg.ID] = seg
	}
	return timelines, segments
}

func TestGenerateTimelineChainsFrames(t *testing.T) {
	timelines, segments := timelineFixture()
	gen := &sequenceGenerator{failAt: -1}
	svc := NewService(segments, &fakeRegistry{}, gen, chainExtractor{}, testLogger())
	orch := NewOrchestrator(timelines, segments, svc, testLogger())

	results, err := orch.GenerateTimeline(context.Background(), "tl-1", domain.ModeTextToVideo, "")
	if err != nil {
		t.Fatalf("generate timeline: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for i, result := range results {
		if !result.Success {
			t.Fatalf("segment %d failed: %s", i, result.Error)
		}
	}

	if gen.requests[0].Mode != domain.ModeTextToVideo {
		t.Fatalf("first segment mode = %s, want text-to-video override", gen.requests[0].Mode)
	}
	for i := 1; i < 3; i++ {
		if gen.requests[i].Mode != domain.ModeImageToVideo {
			t.Fatalf("segment %d mode = %s, want image-to-video", i, gen.requests[i].Mode)
		}
		want := fmt.Sprintf("https://cdn.example.com/video-%d.mp4/last.jpg", i-1)
		if gen.requests[i].ImageURL != want {
			t.Fatalf("segment %d chain image = %q, want %q", i, gen.requests[i].ImageURL, want)
		}
	}

	tl, _ := timelines.GetByID(context.Background(), "tl-1")
	if tl.Status != domain.TimelineStatusReady {
		t.Fatalf("timeline status = %s, want ready", tl.Status)
	}
	if len(timelines.statuses) != 2 || timelines.statuses[0] != domain.TimelineStatusGenerating {
		t.Fatalf("status transitions = %v, want [generating ready]", timelines.statuses)
	}
}

func TestGenerateTimelineFailFast(t *testing.T) {
	timelines, segments := timelineFixture()
	gen := &sequenceGenerator{failAt: 1}
	svc := NewService(segments, &fakeRegistry{}, gen, chainExtractor{}, testLogger())
	orch := NewOrchestrator(timelines, segments, svc, testLogger())

	results, err := orch.GenerateTimeline(context.Background(), "tl-1", domain.ModeTextToVideo, "")
	if err != nil {
		t.Fatalf("generate timeline: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2 (third segment never attempted)", len(results))
	}
	if !results[0].Success {
		t.Fatalf("first segment should have succeeded")
	}
	if results[1].Success {
		t.Fatalf("second segment should have failed")
	}
	if len(gen.requests) != 2 {
		t.Fatalf("provider calls = %d, want 2", len(gen.requests))
	}

	first, _ := segments.GetByID(context.Background(), "seg-0")
	if first.Status != domain.SegmentStatusGenerated {
		t.Fatalf("completed segment rolled back to %s", first.Status)
	}
	second, _ := segments.GetByID(context.Background(), "seg-1")
	if second.Status != domain.SegmentStatusError {
		t.Fatalf("failed segment status = %s, want error", second.Status)
	}
	third, _ := segments.GetByID(context.Background(), "seg-2")
	if third.Status != domain.SegmentStatusPending {
		t.Fatalf("skipped segment status = %s, want pending", third.Status)
	}

	tl, _ := timelines.GetByID(context.Background(), "tl-1")
	if tl.Status != domain.TimelineStatusReady {
		t.Fatalf("timeline status = %s, want ready even after partial failure", tl.Status)
	}
}

func TestGenerateTimelineEmpty(t *testing.T) {
	timelines := newFakeTimelineRepo(&domain.Timeline{ID: "tl-empty", Status: domain.TimelineStatusDraft})
	segments := newFakeSegmentRepo()
	svc := NewService(segments, &fakeRegistry{}, &sequenceGenerator{failAt: -1}, chainExtractor{}, testLogger())
	orch := NewOrchestrator(timelines, segments, svc, testLogger())

	_, err := orch.GenerateTimeline(context.Background(), "tl-empty", "", "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound for empty timeline", err)
	}
	if len(timelines.statuses) != 0 {
		t.Fatalf("empty timeline must not change status, got %v", timelines.statuses)
	}
}

func TestGenerateTimelineUnknownTimeline(t *testing.T) {
	timelines := newFakeTimelineRepo()
	segments := newFakeSegmentRepo()
	svc := NewService(segments, &fakeRegistry{}, &sequenceGenerator{failAt: -1}, chainExtractor{}, testLogger())
	orch := NewOrchestrator(timelines, segments, svc, testLogger())

	if _, err := orch.GenerateTimeline(context.Background(), "nope", "", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGenerateTimelineCancelledBetweenSegments(t *testing.T) {
	timelines, segments := timelineFixture()
	ctx, cancel := context.WithCancel(context.Background())

	// Cancel after the first segment completes.
	gen := &cancellingGenerator{cancel: cancel}
	svc := NewService(segments, &fakeRegistry{}, gen, chainExtractor{}, testLogger())
	orch := NewOrchestrator(timelines, segments, svc, testLogger())

	results, err := orch.GenerateTimeline(ctx, "tl-1", domain.ModeTextToVideo, "")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1 before cancellation", len(results))
	}

	tl, _ := timelines.GetByID(context.Background(), "tl-1")
	if tl.Status != domain.TimelineStatusReady {
		t.Fatalf("timeline status = %s, want ready after cancelled run", tl.Status)
	}
	second, _ := segments.GetByID(context.Background(), "seg-1")
	if second.Status != domain.SegmentStatusPending {
		t.Fatalf("unstarted segment status = %s, want pending", second.Status)
	}
}

// cancellingGenerator cancels the run's context after its first call.
type cancellingGenerator struct {
	cancel context.CancelFunc
	calls  int
}

func (g *cancellingGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	g.calls++
	defer g.cancel()
	return &generation.Result{VideoURL: "https://cdn.example.com/only.mp4"}, nil
}
