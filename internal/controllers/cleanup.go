package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/torboxarr/internal/models"
	"github.com/amaumene/torboxarr/internal/status"
	"github.com/sirupsen/logrus"
)

// finishedGrace is how long a finished public torrent keeps its slot before cleanup
const finishedGrace = time.Hour

// CleanupController frees TorBox slots held by torrents that are no longer needed
type CleanupController struct {
	db       *models.Database
	client   TorrentClient
	recorder *status.Recorder
	logger   *logrus.Logger
	now      func() time.Time
}

// NewCleanupController creates a new cleanup controller
func NewCleanupController(db *models.Database, client TorrentClient, recorder *status.Recorder, logger *logrus.Logger) *CleanupController {
	return &CleanupController{
		db:       db,
		client:   client,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// CleanActiveDownloads deletes organized torrents from TorBox when they are cached
// or finished more than an hour ago. Private torrents are kept for seeding.
// Returns the number of torrents removed.
func (c *CleanupController) CleanActiveDownloads(ctx context.Context) int {
	items, err := c.db.GetActiveRemoteDownloads(models.ClientTorBox)
	if err != nil {
		c.logger.WithError(err).Error("Failed to list active downloads")
		return 0
	}

	now := c.now()
	removed := 0
	for _, item := range items {
		if item.FinishedAt == nil || item.Private {
			continue
		}
		if !item.Cached && now.Sub(*item.FinishedAt) <= finishedGrace {
			continue
		}
		if err := c.RemoveDownload(ctx, item); err != nil {
			c.logger.WithError(err).WithField("download_id", item.ID).Warn("Failed to remove finished torrent")
			continue
		}
		removed++
	}

	c.logger.WithField("removed", removed).Info("Cleanup of finished torrents completed")
	return removed
}

// RemoveDownload deletes the torrent from TorBox and marks the item deleted
func (c *CleanupController) RemoveDownload(ctx context.Context, item *models.DownloadItem) error {
	if err := c.client.DeleteTorrent(ctx, item.InternalID); err != nil {
		return fmt.Errorf("failed to delete torrent %d: %w", item.InternalID, err)
	}
	item.Deleted = true
	item.Active = false
	if err := c.db.UpdateDownload(item); err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}
	c.recorder.Info(status.Entry{Source: "cleanup", Download: item}, "Removed finished torrent from TorBox")
	return nil
}
