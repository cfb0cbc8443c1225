package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
	"github.com/Houman6460/pixelperfect-sub005/internal/enhance"
	"github.com/Houman6460/pixelperfect-sub005/internal/infra"
	"github.com/Houman6460/pixelperfect-sub005/internal/segmentgen"
)

// TimelineRunner drives a full timeline generation run.
type TimelineRunner interface {
	GenerateTimeline(ctx context.Context, timelineID string, firstMode domain.GenerationMode, firstSource string) ([]segmentgen.GenerateResult, error)
}

// SegmentGenerator runs the generation pipeline for a single segment.
type SegmentGenerator interface {
	Generate(ctx context.Context, req segmentgen.GenerateRequest) (segmentgen.GenerateResult, error)
}

// Enhancer owns the enhancement job lifecycle.
type Enhancer interface {
	Queue(ctx context.Context, req enhance.QueueRequest) (*domain.EnhancementJob, error)
	EnhanceTimeline(ctx context.Context, timelineID, userID string) (*enhance.BatchResult, error)
}

// Capabilities answers upscaler registry reads.
type Capabilities interface {
	Upscaler(ctx context.Context, id string) (*domain.UpscalerModel, error)
	ListUpscalers(ctx context.Context) ([]domain.UpscalerModel, error)
}

// App holds the handler dependencies.
type App struct {
	Logger    infra.Logger
	Timelines domain.TimelineRepository
	Segments  domain.SegmentRepository
	Jobs      domain.EnhancementJobRepository
	Runner    TimelineRunner
	Generator SegmentGenerator
	Enhancer  Enhancer
	Registry  Capabilities
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// envelope is the uniform response shape: data on success, error otherwise.
type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

func (a *App) write(w http.ResponseWriter, code int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	a.write(w, code, envelope{Success: true, Data: v})
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.write(w, status, envelope{Success: false, Error: &errorBody{Code: code, Message: message}})
}

// domainError maps sentinel domain errors onto HTTP responses. Anything
// unmapped is an internal error; the cause is logged, not leaked.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", "resource belongs to another user")
	case errors.Is(err, domain.ErrInvalidMode),
		errors.Is(err, domain.ErrMissingChainInput),
		errors.Is(err, domain.ErrUnknownModel),
		errors.Is(err, domain.ErrUnsupportedScale):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrGenerationInFlight):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrJobTerminal):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("handlers: internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

// timelineForUser loads a timeline and enforces ownership.
func (a *App) timelineForUser(ctx context.Context, timelineID, userID string) (*domain.Timeline, error) {
	timeline, err := a.Timelines.GetByID(ctx, timelineID)
	if err != nil {
		return nil, err
	}
	if timeline.OwnerID != userID {
		return nil, domain.ErrForbidden
	}
	return timeline, nil
}

// segmentForUser loads a segment and enforces ownership through its timeline.
func (a *App) segmentForUser(ctx context.Context, segmentID, userID string) (*domain.Segment, error) {
	segment, err := a.Segments.GetByID(ctx, segmentID)
	if err != nil {
		return nil, err
	}
	if _, err := a.timelineForUser(ctx, segment.TimelineID, userID); err != nil {
		return nil, err
	}
	return segment, nil
}
