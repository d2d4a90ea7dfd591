package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/amaumene/torboxarr/internal/controllers"
	"github.com/amaumene/torboxarr/internal/models"
	"github.com/sirupsen/logrus"
)

const maxTorrentUpload = 10 << 20

// Downloader submits torrents and manages known downloads
type Downloader interface {
	Submit(ctx context.Context, sub controllers.Submission) (*models.DownloadItem, *models.QueueEntry, error)
	SubmitSearchResult(ctx context.Context, resultID, categoryID uint64) (*models.DownloadItem, *models.QueueEntry, error)
	SetCategory(id, categoryID uint64) (*models.DownloadItem, error)
	Control(ctx context.Context, id uint64, operation string) error
}

// Remover deletes a download from its remote client
type Remover interface {
	RemoveDownload(ctx context.Context, item *models.DownloadItem) error
}

// DownloadsHandler exposes manual torrent management
type DownloadsHandler struct {
	db         *models.Database
	downloader Downloader
	remover    Remover
	logger     *logrus.Logger
}

// NewDownloadsHandler creates a new downloads handler
func NewDownloadsHandler(db *models.Database, downloader Downloader, remover Remover, logger *logrus.Logger) *DownloadsHandler {
	return &DownloadsHandler{db: db, downloader: downloader, remover: remover, logger: logger}
}

// SubmitResponse tells whether a submission went to TorBox or to the local queue
type SubmitResponse struct {
	Download *models.DownloadItem `json:"download,omitempty"`
	Queued   *models.QueueEntry   `json:"queued,omitempty"`
}

type categoryRequest struct {
	Category string `json:"category"`
}

type submitRequest struct {
	Magnet   string `json:"magnet"`
	Category string `json:"category"`
}

// Submit handles POST /api/downloads. It accepts a JSON magnet link or a
// multipart form with a "torrent" file field.
func (h *DownloadsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var (
		sub      controllers.Submission
		category string
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		sub.Magnet = req.Magnet
		category = req.Category
	} else {
		if err := r.ParseMultipartForm(maxTorrentUpload); err != nil {
			http.Error(w, "Invalid form", http.StatusBadRequest)
			return
		}
		category = r.FormValue("category")
		sub.Magnet = r.FormValue("magnet")
		if file, header, err := r.FormFile("torrent"); err == nil {
			data, err := io.ReadAll(io.LimitReader(file, maxTorrentUpload))
			file.Close()
			if err != nil {
				http.Error(w, "Invalid torrent file", http.StatusBadRequest)
				return
			}
			sub.TorrentFile = data
			sub.TorrentFileName = header.Filename
		}
	}

	categoryID, ok := h.categoryID(w, category)
	if !ok {
		return
	}
	sub.CategoryID = categoryID

	item, queued, err := h.downloader.Submit(r.Context(), sub)
	if err != nil {
		h.logger.WithError(err).Warn("Torrent submission rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeSubmission(w, item, queued, h.logger)
}

// SubmitSearchResult handles POST /api/search-results/{id}/download
func (h *DownloadsHandler) SubmitSearchResult(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid search result id")
	if !ok {
		return
	}
	var req categoryRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
	}
	categoryID, ok := h.categoryID(w, req.Category)
	if !ok {
		return
	}

	item, queued, err := h.downloader.SubmitSearchResult(r.Context(), id, categoryID)
	if err != nil {
		if models.IsNotFound(err) {
			http.Error(w, "Search result not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).WithField("result_id", id).Warn("Search result submission rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeSubmission(w, item, queued, h.logger)
}

// SetCategory handles PUT /api/downloads/{id}/category
func (h *DownloadsHandler) SetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid download id")
	if !ok {
		return
	}
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Category == "" {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	categoryID, ok := h.categoryID(w, req.Category)
	if !ok {
		return
	}

	item, err := h.downloader.SetCategory(id, categoryID)
	if err != nil {
		if models.IsNotFound(err) {
			http.Error(w, "Download not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).WithField("download_id", id).Error("Failed to change category")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, item, h.logger)
}

// Control handles POST /api/downloads/{id}/{operation}: pause, resume,
// reannounce or delete on the remote client
func (h *DownloadsHandler) Control(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Invalid download id")
	if !ok {
		return
	}
	operation := r.PathValue("operation")
	if operation != "delete" && !slices.Contains(controllers.ControlOperations, operation) {
		http.Error(w, "Unknown operation", http.StatusNotFound)
		return
	}

	item, err := h.db.GetDownload(id)
	if err != nil {
		if models.IsNotFound(err) {
			http.Error(w, "Download not found", http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("Failed to load download")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if operation == "delete" {
		err = h.remover.RemoveDownload(r.Context(), item)
	} else {
		err = h.downloader.Control(r.Context(), id, operation)
	}
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"download_id": id,
			"operation":   operation,
		}).Warn("Torrent operation failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "operation": operation}, h.logger)
}

// categoryID resolves a category name; empty means the default category
func (h *DownloadsHandler) categoryID(w http.ResponseWriter, name string) (uint64, bool) {
	if name == "" {
		return 0, true
	}
	category, err := h.db.GetCategoryByName(name)
	if err != nil {
		http.Error(w, "Unknown category", http.StatusBadRequest)
		return 0, false
	}
	return category.ID, true
}

func pathID(w http.ResponseWriter, r *http.Request, message string) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, message, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeSubmission(w http.ResponseWriter, item *models.DownloadItem, queued *models.QueueEntry, logger *logrus.Logger) {
	code := http.StatusCreated
	if item == nil {
		code = http.StatusAccepted
	}
	writeJSON(w, code, SubmitResponse{Download: item, Queued: queued}, logger)
}
