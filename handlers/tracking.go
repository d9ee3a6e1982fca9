package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"anirec/models"
	"anirec/services/tracking"
)

type trackingService interface {
	Track(input tracking.TrackInput) (*models.TrackedAnime, error)
	ListByUser(userID string) ([]models.TrackedAnime, error)
	UpdateProgress(id string, watchedEpisodes int) (*models.TrackedAnime, error)
	UpdateStatus(id string, status string) (*models.TrackedAnime, error)
	Delete(id string) error
}

var _ trackingService = (*tracking.Service)(nil)

// TrackingHandler serves the per-user tracking endpoints.
type TrackingHandler struct {
	Service trackingService
	Logger  *logrus.Logger
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(service trackingService, logger *logrus.Logger) *TrackingHandler {
	return &TrackingHandler{Service: service, Logger: logger}
}

// Track handles POST /api/track.
func (h *TrackingHandler) Track(w http.ResponseWriter, r *http.Request) {
	var input tracking.TrackInput
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	anime, err := h.Service.Track(input)
	if err != nil {
		h.respondServiceError(w, err, "could not track anime")
		return
	}

	writeJSON(w, http.StatusOK, anime)
}

// List handles GET /api/tracked?userId=<id>.
func (h *TrackingHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing userId")
		return
	}

	items, err := h.Service.ListByUser(userID)
	if err != nil {
		h.respondServiceError(w, err, "could not fetch tracked anime")
		return
	}
	if items == nil {
		items = []models.TrackedAnime{}
	}

	writeJSON(w, http.StatusOK, items)
}

// UpdateProgress handles PUT /api/update-progress/{id}.
func (h *TrackingHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WatchedEpisodes int `json:"watchedEpisodes"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	anime, err := h.Service.UpdateProgress(mux.Vars(r)["id"], body.WatchedEpisodes)
	if err != nil {
		h.respondServiceError(w, err, "failed to update progress")
		return
	}

	writeJSON(w, http.StatusOK, anime)
}

// UpdateStatus handles PUT /api/update-status/{id}.
func (h *TrackingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	anime, err := h.Service.UpdateStatus(mux.Vars(r)["id"], body.Status)
	if err != nil {
		h.respondServiceError(w, err, "failed to update status")
		return
	}

	writeJSON(w, http.StatusOK, anime)
}

// Delete handles DELETE /api/delete/{id}.
func (h *TrackingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(mux.Vars(r)["id"]); err != nil {
		h.respondServiceError(w, err, "failed to delete anime")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "anime untracked"})
}

// respondServiceError maps tracking service errors onto HTTP status codes.
func (h *TrackingHandler) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, tracking.ErrUserIDRequired),
		errors.Is(err, tracking.ErrTitleRequired),
		errors.Is(err, tracking.ErrNegativeEpisodes),
		errors.Is(err, tracking.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tracking.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.Logger.WithError(err).Error("Tracking store operation failed")
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
