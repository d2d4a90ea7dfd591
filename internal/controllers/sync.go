package controllers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/amaumene/torboxarr/internal/config"
	"github.com/amaumene/torboxarr/internal/models"
	"github.com/amaumene/torboxarr/internal/services/torbox"
	"github.com/amaumene/torboxarr/internal/status"
	"github.com/moistari/rls"
	"github.com/sirupsen/logrus"
)

var seasonMarker = regexp.MustCompile(`[sS]\d{1,2}([eE]\d{1,2})*`)

// LooksLikeSeries reports whether a torrent name carries a season marker
func LooksLikeSeries(name string) bool {
	if seasonMarker.MatchString(name) {
		return true
	}
	release := rls.ParseString(name)
	return release.Type == rls.Episode || release.Type == rls.Series
}

// SyncController mirrors the TorBox torrent list into the database
type SyncController struct {
	db       *models.Database
	client   TorrentClient
	fetch    *FetchController
	recorder *status.Recorder
	logger   *logrus.Logger
}

// NewSyncController creates a new sync controller
func NewSyncController(db *models.Database, client TorrentClient, fetch *FetchController, recorder *status.Recorder, logger *logrus.Logger) *SyncController {
	return &SyncController{
		db:       db,
		client:   client,
		fetch:    fetch,
		recorder: recorder,
		logger:   logger,
	}
}

// SyncTorBox upserts every remote torrent, marks the ones gone remotely as deleted
// and requests the local fetch of finished ones
func (c *SyncController) SyncTorBox(ctx context.Context) error {
	c.logger.Info("Starting TorBox sync")

	torrents, err := c.client.ListTorrents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list TorBox torrents: %w", err)
	}

	noType, _ := c.db.GetCategoryByName(config.CategoryNoType)
	series, _ := c.db.GetCategoryByName(config.CategoryMovieSeries)

	seen := make(map[string]bool, len(torrents))
	for _, t := range torrents {
		hash := strings.ToLower(t.Hash)
		seen[hash] = true

		item, err := c.upsert(t, hash, noType)
		if err != nil {
			c.logger.WithError(err).WithField("hash", hash).Error("Failed to sync torrent")
			continue
		}
		c.autoType(item, noType, series)

		if item.DownloadFinished && !item.LocalDownload && c.fetch != nil {
			if err := c.fetch.RequestFetch(ctx, item); err != nil {
				c.logger.WithError(err).WithField("download_id", item.ID).Warn("Failed to request local fetch")
			}
		}
	}

	active, err := c.db.GetActiveRemoteDownloads(models.ClientTorBox)
	if err != nil {
		return fmt.Errorf("failed to list known downloads: %w", err)
	}
	for _, item := range active {
		if seen[item.Hash] {
			continue
		}
		item.Deleted = true
		item.Active = false
		if err := c.db.UpdateDownload(item); err != nil {
			c.logger.WithError(err).WithField("download_id", item.ID).Error("Failed to mark download deleted")
			continue
		}
		c.recorder.Info(status.Entry{Source: "torbox", Download: item}, "Torrent no longer on TorBox, marked deleted")
	}

	c.logger.WithField("count", len(torrents)).Info("TorBox sync completed")
	return nil
}

func (c *SyncController) upsert(t torbox.Torrent, hash string, noType *models.Category) (*models.DownloadItem, error) {
	item, err := c.db.GetDownloadByHash(hash)
	if err != nil && !models.IsNotFound(err) {
		return nil, err
	}
	created := item == nil
	if created {
		item = &models.DownloadItem{
			Hash:        hash,
			Client:      models.ClientTorBox,
			Magnet:      t.Magnet,
			LocalStatus: models.StatusClientInit,
		}
		if noType != nil {
			item.CategoryID = noType.ID
		}
	} else if item.Deleted {
		item.Deleted = false
		c.recorder.Info(status.Entry{Source: "torbox", Download: item}, "Torrent reappeared on TorBox")
	}

	item.InternalID = t.ID
	item.Name = t.Name
	item.Size = t.Size
	item.Active = t.Active
	item.Cached = t.Cached
	item.Private = t.Private
	item.DownloadPresent = t.DownloadPresent
	item.DownloadFinished = t.DownloadFinished

	switch item.LocalStatus {
	case "", models.StatusClientInit, models.StatusClientProgress:
		if t.DownloadFinished {
			item.LocalStatus = models.StatusClientDone
		} else {
			item.LocalStatus = models.StatusClientProgress
		}
	}

	if created {
		err = c.db.CreateDownload(item)
	} else {
		err = c.db.UpdateDownload(item)
	}
	if err != nil {
		return nil, err
	}

	files, err := c.db.GetFilesByDownload(item.ID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		for _, f := range t.Files {
			file := &models.File{
				DownloadID: item.ID,
				Name:       f.Name,
				ShortName:  f.ShortName,
				Size:       f.Size,
				MimeType:   f.MimeType,
				InternalID: f.ID,
			}
			if err := c.db.CreateFile(file); err != nil {
				return nil, fmt.Errorf("failed to create file %s: %w", f.Name, err)
			}
		}
	}

	if created {
		c.recorder.Info(status.Entry{Source: "torbox", Download: item}, "New torrent found on TorBox")
	}
	return item, nil
}

// autoType files untyped items that look like an episode or season under Movie Series
func (c *SyncController) autoType(item *models.DownloadItem, noType, series *models.Category) {
	if noType == nil || series == nil {
		return
	}
	if item.CategoryID != 0 && item.CategoryID != noType.ID {
		return
	}
	if !LooksLikeSeries(item.Name) {
		return
	}
	item.CategoryID = series.ID
	if err := c.db.UpdateDownload(item); err != nil {
		c.logger.WithError(err).WithField("download_id", item.ID).Error("Failed to set category")
		return
	}
	c.recorder.Info(status.Entry{Source: "torbox", Download: item}, "Category set to Movie Series from the torrent name")
}
