package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"anirec/models"
	"anirec/services/metadata"
)

type metadataService interface {
	Search(ctx context.Context, query string) ([]models.Anime, error)
	Details(ctx context.Context, malID int) (*models.Anime, error)
}

var _ metadataService = (*metadata.Service)(nil)

// AnimeHandler serves the metadata proxy endpoints.
type AnimeHandler struct {
	Service metadataService
	Logger  *logrus.Logger
}

// NewAnimeHandler creates a new AnimeHandler.
func NewAnimeHandler(service metadataService, logger *logrus.Logger) *AnimeHandler {
	return &AnimeHandler{Service: service, Logger: logger}
}

// Search handles GET /api/search?q=<term>.
func (h *AnimeHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing search query")
		return
	}

	results, err := h.Service.Search(r.Context(), query)
	if err != nil {
		h.Logger.WithError(err).WithField("query", query).Error("Anime search failed")
		writeError(w, http.StatusInternalServerError, "failed to fetch from metadata source")
		return
	}
	if results == nil {
		results = []models.Anime{}
	}

	writeJSON(w, http.StatusOK, results)
}

// Details handles GET /api/anime/{malID} with the enriched record.
func (h *AnimeHandler) Details(w http.ResponseWriter, r *http.Request) {
	malID, err := strconv.Atoi(mux.Vars(r)["malID"])
	if err != nil || malID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid anime id")
		return
	}

	anime, err := h.Service.Details(r.Context(), malID)
	if err != nil {
		h.Logger.WithError(err).WithField("mal_id", malID).Error("Anime enrichment failed")
		writeError(w, http.StatusInternalServerError, "failed to fetch enriched anime data")
		return
	}

	writeJSON(w, http.StatusOK, anime)
}
