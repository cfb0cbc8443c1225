package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
	"github.com/Houman6460/pixelperfect-sub005/internal/enhance"
)

type upscalerView struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Provider           string   `json:"provider"`
	ScaleFactors       []int    `json:"scale_factors"`
	MaxInputResolution string   `json:"max_input_resolution,omitempty"`
	OutputFormats      []string `json:"output_formats,omitempty"`
}

func newUpscalerView(model *domain.UpscalerModel) upscalerView {
	return upscalerView{
		ID:                 model.ID,
		Name:               model.Name,
		Provider:           model.Provider,
		ScaleFactors:       model.ScaleFactors,
		MaxInputResolution: model.MaxInputResolution,
		OutputFormats:      model.OutputFormats,
	}
}

type jobView struct {
	ID                string     `json:"id"`
	SegmentID         string     `json:"segment_id"`
	TimelineID        string     `json:"timeline_id"`
	ModelID           string     `json:"model_id"`
	Provider          string     `json:"provider"`
	InputURL          string     `json:"input_url"`
	OutputURL         string     `json:"output_url,omitempty"`
	ScaleFactor       int        `json:"scale_factor"`
	TargetResolution  string     `json:"target_resolution,omitempty"`
	Status            string     `json:"status"`
	Progress          int        `json:"progress"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	ProcessingTimeSec float64    `json:"processing_time_sec,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func newJobView(job *domain.EnhancementJob) jobView {
	return jobView{
		ID:                job.ID,
		SegmentID:         job.SegmentID,
		TimelineID:        job.TimelineID,
		ModelID:           job.ModelID,
		Provider:          job.Provider,
		InputURL:          job.InputURL,
		OutputURL:         job.OutputURL,
		ScaleFactor:       job.ScaleFactor,
		TargetResolution:  job.TargetResolution,
		Status:            string(job.Status),
		Progress:          job.Progress,
		ErrorMessage:      job.ErrorMessage,
		StartedAt:         job.StartedAt,
		CompletedAt:       job.CompletedAt,
		ProcessingTimeSec: job.ProcessingTimeSec,
		CreatedAt:         job.CreatedAt,
		UpdatedAt:         job.UpdatedAt,
	}
}

func (a *App) UpscalerList(w http.ResponseWriter, r *http.Request) {
	models, err := a.Registry.ListUpscalers(r.Context())
	if err != nil {
		a.domainError(w, err)
		return
	}
	views := make([]upscalerView, 0, len(models))
	for i := range models {
		views = append(views, newUpscalerView(&models[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"upscalers": views})
}

func (a *App) UpscalerGet(w http.ResponseWriter, r *http.Request) {
	model, err := a.Registry.Upscaler(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, newUpscalerView(model))
}

type queueEnhancementRequest struct {
	ModelID          string `json:"model_id"`
	ScaleFactor      int    `json:"scale_factor"`
	TargetResolution string `json:"target_resolution"`
	InputURL         string `json:"input_url"`
}

func (a *App) EnhancementQueue(w http.ResponseWriter, r *http.Request) {
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
	var req queueEnhancementRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.ModelID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "model_id required")
		return
	}

	job, err := a.Enhancer.Queue(r.Context(), enhance.QueueRequest{
		SegmentID:        segment.ID,
		UserID:           userID,
		ModelID:          req.ModelID,
		ScaleFactor:      req.ScaleFactor,
		TargetResolution: req.TargetResolution,
		InputURL:         req.InputURL,
	})
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"status": string(job.Status),
	})
}

// EnhancementBySegment returns the latest job for a segment, which is also
// what the segment's own enhance fields mirror.
func (a *App) EnhancementBySegment(w http.ResponseWriter, r *http.Request) {
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
	job, err := a.Jobs.LatestBySegment(r.Context(), segment.ID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, newJobView(job))
}

func (a *App) EnhancementJobGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, err := a.Jobs.GetByID(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		a.domainError(w, err)
		return
	}
	if job.UserID != userID {
		a.domainError(w, domain.ErrForbidden)
		return
	}
	a.json(w, http.StatusOK, newJobView(job))
}

func (a *App) EnhancementPendingByTimeline(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	timelineID := chi.URLParam(r, "timelineID")
	if _, err := a.timelineForUser(r.Context(), timelineID, userID); err != nil {
		a.domainError(w, err)
		return
	}
	jobs, err := a.Jobs.ListPendingByTimeline(r.Context(), timelineID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	views := make([]jobView, 0, len(jobs))
	for i := range jobs {
		views = append(views, newJobView(&jobs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{
		"timeline_id": timelineID,
		"jobs":        views,
	})
}

func (a *App) EnhancementTimeline(w http.ResponseWriter, r *http.Request) {
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
	result, err := a.Enhancer.EnhanceTimeline(r.Context(), timelineID, userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, result)
}
