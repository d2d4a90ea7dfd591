package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/amaumene/torboxarr/internal/arr"
	"github.com/amaumene/torboxarr/internal/models"
	"github.com/sirupsen/logrus"
)

// ShowManager tracks shows and evaluates them on demand
type ShowManager interface {
	AddShow(show *models.TrackedShow) error
	Evaluate(ctx context.Context, showID uint64) (arr.Outcome, error)
}

// Reevaluator schedules a follow-up evaluation of a show
type Reevaluator interface {
	Reevaluate(showID uint64)
}

// ShowsHandler lists, adds and evaluates tracked shows
type ShowsHandler struct {
	db         *models.Database
	shows      ShowManager
	reevaluate Reevaluator
	logger     *logrus.Logger
}

// NewShowsHandler creates a new shows handler. reevaluate may be nil.
func NewShowsHandler(db *models.Database, shows ShowManager, reevaluate Reevaluator, logger *logrus.Logger) *ShowsHandler {
	return &ShowsHandler{db: db, shows: shows, reevaluate: reevaluate, logger: logger}
}

// ShowRequest is the body accepted by POST /api/shows
type ShowRequest struct {
	ExternalID   string `json:"imdb_id"`
	Title        string `json:"title"`
	Season       int    `json:"season"`
	Episode      int    `json:"episode"`
	Quality      string `json:"quality"`
	Encoder      string `json:"encoder"`
	IncludeWords string `json:"include_words"`
	ExcludeWords string `json:"exclude_words"`
	Category     string `json:"category"`
}

// List handles GET /api/shows
func (h *ShowsHandler) List(w http.ResponseWriter, r *http.Request) {
	shows, err := h.db.ListShows()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list shows")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if shows == nil {
		shows = []*models.TrackedShow{}
	}
	writeJSON(w, http.StatusOK, shows, h.logger)
}

// Add handles POST /api/shows
func (h *ShowsHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req ShowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	show := &models.TrackedShow{
		ExternalID:       req.ExternalID,
		Title:            req.Title,
		Quality:          req.Quality,
		Encoder:          req.Encoder,
		IncludeWords:     req.IncludeWords,
		ExcludeWords:     req.ExcludeWords,
		RequestedSeason:  req.Season,
		RequestedEpisode: req.Episode,
	}
	if req.Category != "" {
		category, err := h.db.GetCategoryByName(req.Category)
		if err != nil {
			http.Error(w, "Unknown category", http.StatusBadRequest)
			return
		}
		show.CategoryID = category.ID
	}

	if err := h.shows.AddShow(show); err != nil {
		h.logger.WithError(err).Warn("Failed to add show")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, show, h.logger)
}

// Evaluate handles POST /api/shows/{id}/evaluate
func (h *ShowsHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid show id", http.StatusBadRequest)
		return
	}

	outcome, err := h.shows.Evaluate(r.Context(), id)
	if err != nil {
		h.logger.WithError(err).WithField("show_id", id).Error("Evaluation failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if outcome == arr.OutcomeNotFound {
		http.Error(w, "Show not found", http.StatusNotFound)
		return
	}
	if outcome == arr.OutcomeSeasonComplete && h.reevaluate != nil {
		h.reevaluate.Reevaluate(id)
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)}, h.logger)
}
