package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Houman6460/pixelperfect-sub005/internal/domain"
)

type createTimelineRequest struct {
	Title string `json:"title"`
}

type timelineView struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	SegmentCount     int       `json:"segment_count"`
	TotalDurationSec int       `json:"total_duration_sec"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func newTimelineView(timeline *domain.Timeline) timelineView {
	return timelineView{
		ID:               timeline.ID,
		Title:            timeline.Title,
		SegmentCount:     timeline.SegmentCount,
		TotalDurationSec: timeline.TotalDurationSec,
		Status:           string(timeline.Status),
		CreatedAt:        timeline.CreatedAt,
		UpdatedAt:        timeline.UpdatedAt,
	}
}

func (a *App) TimelineCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createTimelineRequest
	if !a.decode(w, r, &req) {
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled timeline"
	}

	timeline := &domain.Timeline{
		ID:      uuid.NewString(),
		OwnerID: userID,
		Title:   title,
		Status:  domain.TimelineStatusDraft,
	}
	if err := a.Timelines.Create(r.Context(), timeline); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, newTimelineView(timeline))
}

func (a *App) TimelineGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	timeline, err := a.timelineForUser(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, newTimelineView(timeline))
}
