package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/amaumene/torboxarr/internal/models"
	"github.com/sirupsen/logrus"
)

// Organizer runs post-download organization for one download
type Organizer interface {
	Run(ctx context.Context, downloadID uint64) error
}

// OrganizeHandler triggers organization of a single download
type OrganizeHandler struct {
	db        *models.Database
	organizer Organizer
	logger    *logrus.Logger
}

// NewOrganizeHandler creates a new organize handler
func NewOrganizeHandler(db *models.Database, organizer Organizer, logger *logrus.Logger) *OrganizeHandler {
	return &OrganizeHandler{db: db, organizer: organizer, logger: logger}
}

// ServeHTTP handles POST /api/downloads/{id}/organize
func (h *OrganizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid download id", http.StatusBadRequest)
		return
	}
	if _, err := h.db.GetDownload(id); err != nil {
		if models.IsNotFound(err) {
			http.Error(w, "Download not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("Failed to load download")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.organizer.Run(r.Context(), id); err != nil {
		h.logger.WithError(err).WithField("download_id", id).Error("Organization failed")
		http.Error(w, "Organization failed", http.StatusInternalServerError)
		return
	}

	item, err := h.db.GetDownload(id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to reload download")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     item.ID,
		"status": item.LocalStatus,
		"done":   item.Done(),
	}, h.logger)
}
