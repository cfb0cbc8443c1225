package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
	"github.com/Houman6460/pixelperfect-sub005/internal/segmentgen"
)

type segmentView struct {
	ID                string    `json:"id"`
	TimelineID        string    `json:"timeline_id"`
	Position          int       `json:"position"`
	DurationSec       int       `json:"duration_sec"`
	ModelID           string    `json:"model_id"`
	GenerationMode    string    `json:"generation_mode"`
	PromptText        string    `json:"prompt_text"`
	SourceURL         string    `json:"source_url,omitempty"`
	Status            string    `json:"status"`
	VideoURL          string    `json:"video_url,omitempty"`
	FirstFrameURL     string    `json:"first_frame_url,omitempty"`
	LastFrameURL      string    `json:"last_frame_url,omitempty"`
	ThumbnailURL      string    `json:"thumbnail_url,omitempty"`
	GenerationTimeSec float64   `json:"generation_time_sec,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	EnhanceEnabled    bool      `json:"enhance_enabled"`
	EnhanceModel      string    `json:"enhance_model,omitempty"`
	EnhanceStatus     string    `json:"enhance_status"`
	EnhancedVideoURL  string    `json:"enhanced_video_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	IsFirstSegment bool                    `json:"is_first_segment"`
	AvailableModes []domain.GenerationMode `json:"available_modes"`
	FrameChaining  *frameChainView         `json:"frame_chaining,omitempty"`
}

type frameChainView struct {
	PreviousSegmentID string `json:"previous_segment_id"`
	SourceFrameURL    string `json:"source_frame_url,omitempty"`
}

func newSegmentView(segment *domain.Segment) segmentView {
	status := segment.EnhanceStatus
	if status == "" {
		status = domain.EnhanceStatusNone
	}
	return segmentView{
		ID:                segment.ID,
		TimelineID:        segment.TimelineID,
		Position:          segment.Position,
		DurationSec:       segment.DurationSec,
		ModelID:           segment.ModelID,
		GenerationMode:    string(segment.GenerationMode),
		PromptText:        segment.PromptText,
		SourceURL:         segment.SourceURL,
		Status:            string(segment.Status),
		VideoURL:          segment.VideoURL,
		FirstFrameURL:     segment.FirstFrameURL,
		LastFrameURL:      segment.LastFrameURL,
		ThumbnailURL:      segment.ThumbnailURL,
		GenerationTimeSec: segment.GenerationTimeSec,
		ErrorMessage:      segment.ErrorMessage,
		EnhanceEnabled:    segment.EnhanceEnabled,
		EnhanceModel:      segment.EnhanceModel,
		EnhanceStatus:     string(status),
		EnhancedVideoURL:  segment.EnhancedVideoURL,
		CreatedAt:         segment.CreatedAt,
		UpdatedAt:         segment.UpdatedAt,
		IsFirstSegment:    segment.IsFirst(),
		AvailableModes:    segmentgen.AvailableModes(segment.Position),
	}
}

func (a *App) SegmentModes(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"modes": segmentgen.ModeDescriptors()})
}

func (a *App) SegmentsByTimeline(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	timelineID := chi.URLParam(r, "id")
	if _, err := a.timelineForUser(r.Context(), timelineID, userID); err != nil {
		a.domainError(w, err)
		return
	}
	segments, err := a.Segments.ListByTimeline(r.Context(), timelineID)
	if err != nil {
		a.domainError(w, err)
		return
	}

	views := make([]segmentView, 0, len(segments))
	for i := range segments {
		view := newSegmentView(&segments[i])
		if i > 0 {
			view.FrameChaining = &frameChainView{
				PreviousSegmentID: segments[i-1].ID,
				SourceFrameURL:    segments[i-1].LastFrameURL,
			}
		}
		views = append(views, view)
	}
	a.json(w, http.StatusOK, map[string]any{
		"timeline_id": timelineID,
		"segments":    views,
	})
}

type validateModeRequest struct {
	Position int    `json:"position"`
	Mode     string `json:"mode"`
}

func (a *App) SegmentValidate(w http.ResponseWriter, r *http.Request) {
	var req validateModeRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := segmentgen.ValidateMode(req.Position, domain.GenerationMode(req.Mode)); err != nil {
		a.json(w, http.StatusOK, map[string]any{"valid": false, "error": err.Error()})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"valid": true})
}

type createSegmentRequest struct {
	TimelineID     string `json:"timeline_id"`
	Position       *int   `json:"position"`
	DurationSec    int    `json:"duration_sec"`
	ModelID        string `json:"model_id"`
	GenerationMode string `json:"generation_mode"`
	PromptText     string `json:"prompt_text"`
	SourceURL      string `json:"source_url"`
	EnhanceEnabled bool   `json:"enhance_enabled"`
	EnhanceModel   string `json:"enhance_model"`
}

func (a *App) SegmentCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createSegmentRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.TimelineID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "timeline_id required")
		return
	}
	if req.ModelID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "model_id required")
		return
	}
	if _, err := a.timelineForUser(r.Context(), req.TimelineID, userID); err != nil {
		a.domainError(w, err)
		return
	}
	existing, err := a.Segments.ListByTimeline(r.Context(), req.TimelineID)
	if err != nil {
		a.domainError(w, err)
		return
	}

	position := len(existing)
	if req.Position != nil {
		position = *req.Position
	}
	if position != len(existing) {
		a.error(w, http.StatusBadRequest, "bad_request", "segments can only be appended at the next position")
		return
	}

	mode := domain.GenerationMode(req.GenerationMode)
	if mode == "" {
		mode = domain.ModeImageToVideo
		if position == 0 {
			mode = domain.ModeTextToVideo
		}
	}
	if err := segmentgen.ValidateMode(position, mode); err != nil {
		a.domainError(w, err)
		return
	}

	durationSec := req.DurationSec
	if durationSec <= 0 {
		durationSec = 5
	}
	segment := &domain.Segment{
		ID:             uuid.NewString(),
		TimelineID:     req.TimelineID,
		Position:       position,
		DurationSec:    durationSec,
		ModelID:        req.ModelID,
		GenerationMode: mode,
		PromptText:     strings.TrimSpace(req.PromptText),
		SourceURL:      strings.TrimSpace(req.SourceURL),
		Status:         domain.SegmentStatusPending,
		EnhanceEnabled: req.EnhanceEnabled,
		EnhanceModel:   req.EnhanceModel,
		EnhanceStatus:  domain.EnhanceStatusNone,
	}
	if err := a.Segments.Create(r.Context(), segment); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, newSegmentView(segment))
}

type generateSegmentRequest struct {
	OverrideMode      string `json:"override_mode"`
	OverridePrompt    string `json:"override_prompt"`
	OverrideSourceURL string `json:"override_source_url"`
}

// SegmentGenerate runs the generation pipeline for one segment. A chained
// segment always re-resolves its input frame from the current state of the
// previous segment, so regenerating out of order picks up the latest frame.
func (a *App) SegmentGenerate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	segment, err := a.segmentForUser(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	var req generateSegmentRequest
	if r.ContentLength > 0 && !a.decode(w, r, &req) {
		return
	}

	mode := segment.GenerationMode
	if req.OverrideMode != "" {
		mode = domain.GenerationMode(req.OverrideMode)
	}
	if segment.Position > 0 {
		mode = domain.ModeImageToVideo
	}
	prompt := segment.PromptText
	if req.OverridePrompt != "" {
		prompt = req.OverridePrompt
	}
	sourceURL := segment.SourceURL
	if req.OverrideSourceURL != "" {
		sourceURL = req.OverrideSourceURL
	}

	chainImageURL := ""
	if segment.Position > 0 {
		siblings, err := a.Segments.ListByTimeline(r.Context(), segment.TimelineID)
		if err != nil {
			a.domainError(w, err)
			return
		}
		index := -1
		for i := range siblings {
			if siblings[i].ID == segment.ID {
				index = i
				break
			}
		}
		if index < 0 {
			a.domainError(w, domain.ErrNotFound)
			return
		}
		chainImageURL, err = segmentgen.ResolveChainInput(siblings, index)
		if err != nil {
			a.domainError(w, err)
			return
		}
	}

	result, err := a.Generator.Generate(r.Context(), segmentgen.GenerateRequest{
		Segment:       segment,
		Mode:          mode,
		Prompt:        prompt,
		SourceURL:     sourceURL,
		ChainImageURL: chainImageURL,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, result)
}

type generateTimelineRequest struct {
	TimelineID         string `json:"timeline_id"`
	FirstSegmentMode   string `json:"first_segment_mode"`
	FirstSegmentSource string `json:"first_segment_source"`
}

func (a *App) SegmentGenerateTimeline(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req generateTimelineRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.TimelineID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "timeline_id required")
		return
	}
	if _, err := a.timelineForUser(r.Context(), req.TimelineID, userID); err != nil {
		a.domainError(w, err)
		return
	}

	results, err := a.Runner.GenerateTimeline(r.Context(), req.TimelineID, domain.GenerationMode(req.FirstSegmentMode), req.FirstSegmentSource)
	if err != nil {
		a.domainError(w, err)
		return
	}
	succeeded := 0
	for _, result := range results {
		if result.Success {
			succeeded++
		}
	}
	a.json(w, http.StatusOK, map[string]any{
		"timeline_id": req.TimelineID,
		"results":     results,
		"succeeded":   succeeded,
		"completed":   succeeded == len(results),
	})
}

type updateSegmentRequest struct {
	DurationSec    *int    `json:"duration_sec"`
	ModelID        *string `json:"model_id"`
	GenerationMode *string `json:"generation_mode"`
	PromptText     *string `json:"prompt_text"`
	SourceURL      *string `json:"source_url"`
	EnhanceEnabled *bool   `json:"enhance_enabled"`
	EnhanceModel   *string `json:"enhance_model"`
}

func (a *App) SegmentUpdate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	segment, err := a.segmentForUser(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	var req updateSegmentRequest
	if !a.decode(w, r, &req) {
		return
	}

	if req.DurationSec != nil {
		if *req.DurationSec <= 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "duration_sec must be positive")
			return
		}
		segment.DurationSec = *req.DurationSec
	}
	if req.ModelID != nil {
		segment.ModelID = *req.ModelID
	}
	if req.GenerationMode != nil {
		mode := domain.GenerationMode(*req.GenerationMode)
		if err := segmentgen.ValidateMode(segment.Position, mode); err != nil {
			a.domainError(w, err)
			return
		}
		segment.GenerationMode = mode
	}
	if req.PromptText != nil {
		segment.PromptText = *req.PromptText
	}
	if req.SourceURL != nil {
		segment.SourceURL = *req.SourceURL
	}
	if req.EnhanceEnabled != nil {
		segment.EnhanceEnabled = *req.EnhanceEnabled
	}
	if req.EnhanceModel != nil {
		segment.EnhanceModel = *req.EnhanceModel
	}

	if err := a.Segments.Update(r.Context(), segment); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, newSegmentView(segment))
}

func (a *App) SegmentDelete(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	segment, err := a.segmentForUser(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if err := a.Segments.Delete(r.Context(), segment.ID); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"deleted": true, "id": segment.ID})
}
