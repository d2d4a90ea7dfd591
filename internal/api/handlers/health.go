package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/amaumene/torboxarr/internal/models"
	"github.com/sirupsen/logrus"
)

// HealthHandler reports liveness and whether the database answers
type HealthHandler struct {
	db      *models.Database
	started time.Time
	logger  *logrus.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *models.Database, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{db: db, started: time.Now(), logger: logger}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body := map[string]string{
		"status":   "healthy",
		"database": "ok",
		"uptime":   time.Since(h.started).Round(time.Second).String(),
	}
	code := http.StatusOK
	if _, err := h.db.ListCategories(); err != nil {
		h.logger.WithError(err).Warn("Health check: database unavailable")
		body["status"] = "unhealthy"
		body["database"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, body, h.logger)
}

func writeJSON(w http.ResponseWriter, code int, body any, logger *logrus.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Warn("Failed to encode response")
	}
}
