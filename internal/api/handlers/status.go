package handlers

import (
	"net/http"
	"time"

	"github.com/amaumene/torboxarr/internal/models"
	"github.com/sirupsen/logrus"
)

const recentLogLimit = 20

// StatusHandler handles status requests
type StatusHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db *models.Database, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		db:     db,
		logger: logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	TotalDownloads   int            `json:"total_downloads"`
	DeletedDownloads int            `json:"deleted_downloads"`
	ByStatus         map[string]int `json:"downloads_by_status"`
	TrackedShows     int            `json:"tracked_shows"`
	ActiveShows      int            `json:"active_shows"`
	QueueLength      int            `json:"queue_length"`
	RecentLogs       []LogLine      `json:"recent_logs"`
}

// LogLine is one audit entry as shown on the status page
type LogLine struct {
	Level      string    `json:"level"`
	Source     string    `json:"source"`
	Message    string    `json:"message"`
	DownloadID *uint64   `json:"download_id,omitempty"`
	ShowID     *uint64   `json:"show_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	downloads, err := h.db.ListDownloads()
	if err != nil {
		h.fail(w, err, "Failed to list downloads")
		return
	}
	shows, err := h.db.ListShows()
	if err != nil {
		h.fail(w, err, "Failed to list shows")
		return
	}
	queue, err := h.db.ListQueue()
	if err != nil {
		h.fail(w, err, "Failed to list queue")
		return
	}
	logs, err := h.db.RecentLogs(recentLogLimit)
	if err != nil {
		h.fail(w, err, "Failed to list logs")
		return
	}

	response := StatusResponse{
		ByStatus:     make(map[string]int),
		TrackedShows: len(shows),
		QueueLength:  len(queue),
		RecentLogs:   make([]LogLine, 0, len(logs)),
	}
	for _, item := range downloads {
		if item.Deleted {
			response.DeletedDownloads++
			continue
		}
		response.TotalDownloads++
		response.ByStatus[string(item.LocalStatus)]++
	}
	for _, show := range shows {
		if show.Active {
			response.ActiveShows++
		}
	}
	for _, entry := range logs {
		response.RecentLogs = append(response.RecentLogs, LogLine{
			Level:      string(entry.Level),
			Source:     entry.Source,
			Message:    entry.Message,
			DownloadID: entry.DownloadID,
			ShowID:     entry.ShowID,
			CreatedAt:  entry.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, response, h.logger)
}

func (h *StatusHandler) fail(w http.ResponseWriter, err error, msg string) {
	h.logger.WithError(err).Error(msg)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}
