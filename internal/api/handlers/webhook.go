package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/amaumene/torboxarr/internal/models"
	"github.com/amaumene/torboxarr/internal/services/torbox"
	"github.com/amaumene/torboxarr/internal/status"
	"github.com/sirupsen/logrus"
)

// Syncer refreshes local state from TorBox and starts local fetches of finished torrents
type Syncer interface {
	SyncTorBox(ctx context.Context) error
}

// WebhookHandler handles TorBox webhook callbacks
type WebhookHandler struct {
	db       *models.Database
	syncer   Syncer
	recorder *status.Recorder
	logger   *logrus.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(db *models.Database, syncer Syncer, recorder *status.Recorder, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		db:       db,
		syncer:   syncer,
		recorder: recorder,
		logger:   logger,
	}
}

// ServeHTTP handles the webhook endpoint
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload torbox.Notification
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.WithError(err).Error("Failed to decode webhook payload")
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	event := payload.Event()
	log := h.logger.WithFields(logrus.Fields{
		"event": event,
		"title": payload.Data.Title,
	})

	item := h.match(&payload)
	if item != nil {
		log = log.WithField("download_id", item.ID)
		entry := status.Entry{Source: "torbox", Download: item}
		if event == torbox.EventFailed {
			h.recorder.Error(entry, "TorBox reported the download failed: "+payload.Data.Message)
		} else {
			h.recorder.Info(entry, "TorBox notification: "+payload.Data.Title)
		}
	} else {
		log.WithField("message", payload.Data.Message).Info("Webhook did not match a known download")
	}

	if event == torbox.EventCompleted {
		if err := h.syncer.SyncTorBox(r.Context()); err != nil {
			log.WithError(err).Error("Sync after webhook failed")
			http.Error(w, "Failed to process webhook", http.StatusInternalServerError)
			return
		}
	}

	log.Info("Received TorBox webhook")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

// match finds the download the notification is about: by hash, then by exact name,
// then by the closest name within nameTolerance edits
func (h *WebhookHandler) match(payload *torbox.Notification) *models.DownloadItem {
	if hash := payload.Hash(); hash != "" {
		if item, err := h.db.GetDownloadByHash(hash); err == nil {
			return item
		}
	}

	name := payload.DownloadName()
	if name == "" {
		return nil
	}
	items, err := h.db.ListDownloads()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list downloads")
		return nil
	}
	return ClosestDownload(items, name)
}

// ClosestDownload returns the non-deleted download whose name equals name (case-insensitively)
// or, failing that, the one with the smallest edit distance if it is within tolerance
func ClosestDownload(items []*models.DownloadItem, name string) *models.DownloadItem {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return nil
	}

	var best *models.DownloadItem
	bestDistance := nameTolerance(want) + 1
	for _, item := range items {
		if item.Deleted {
			continue
		}
		got := strings.ToLower(item.Name)
		if got == want {
			return item
		}
		if d := levenshtein.ComputeDistance(got, want); d < bestDistance {
			best, bestDistance = item, d
		}
	}
	return best
}

// nameTolerance allows one edit per five characters, at least two
func nameTolerance(name string) int {
	if n := len(name) / 5; n > 2 {
		return n
	}
	return 2
}
