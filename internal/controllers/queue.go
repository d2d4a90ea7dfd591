package controllers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/amaumene/torboxarr/internal/config"
	"github.com/amaumene/torboxarr/internal/metrics"
	"github.com/amaumene/torboxarr/internal/models"
	"github.com/amaumene/torboxarr/internal/status"
	"github.com/fsnotify/fsnotify"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	stuckWarningKey = "queue_stuck"
	importDelay     = 2 * time.Second
)

// QueueController moves queued submissions to TorBox as slots free up and
// imports .torrent files dropped into the queue folders
type QueueController struct {
	db        *models.Database
	downloads *DownloadController
	cleanup   *CleanupController
	recorder  *status.Recorder
	queueDir  string
	policy    int
	warnings  *cache.Cache
	mu        sync.Mutex
	logger    *logrus.Logger
}

// NewQueueController creates a new queue controller
func NewQueueController(db *models.Database, downloads *DownloadController, cleanup *CleanupController, recorder *status.Recorder, cfg *config.Config, logger *logrus.Logger) *QueueController {
	return &QueueController{
		db:        db,
		downloads: downloads,
		cleanup:   cleanup,
		recorder:  recorder,
		queueDir:  cfg.QueueDir,
		policy:    cfg.CleanActiveDownloads,
		warnings:  cache.New(24*time.Hour, time.Hour),
		logger:    logger,
	}
}

// DrainQueue submits queued entries, highest priority first, while slots are free.
// It stops at the first failed submission.
func (c *QueueController) DrainQueue(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.db.ListQueue()
	if err != nil {
		return fmt.Errorf("failed to list queue: %w", err)
	}
	metrics.QueueLength.Set(float64(len(entries)))
	if len(entries) == 0 {
		return nil
	}

	free, err := c.downloads.FreeSlots(ctx)
	if err != nil {
		return err
	}
	if free <= 0 && c.policy == config.CleanupAfterOneHour {
		if removed := c.cleanup.CleanActiveDownloads(ctx); removed > 0 {
			if free, err = c.downloads.FreeSlots(ctx); err != nil {
				return err
			}
		}
	}
	if free <= 0 {
		c.warnStuck(len(entries))
		return nil
	}

	submitted := 0
	for _, entry := range entries {
		if submitted >= free {
			break
		}
		item, err := c.downloads.SubmitQueued(ctx, entry)
		if err != nil {
			c.recorder.Error(status.Entry{Source: "queue"}, fmt.Sprintf("Could not submit queued torrent %d: %v", entry.ID, err))
			break
		}
		submitted++
		c.logger.WithFields(logrus.Fields{
			"queue_id":    entry.ID,
			"download_id": item.ID,
		}).Info("Queued torrent submitted")
	}

	metrics.QueueLength.Set(float64(len(entries) - submitted))
	return nil
}

// warnStuck records that the queue cannot move, at most once a day
func (c *QueueController) warnStuck(queued int) {
	if _, found := c.warnings.Get(stuckWarningKey); found {
		return
	}
	c.warnings.SetDefault(stuckWarningKey, true)
	c.recorder.Warn(status.Entry{Source: "queue"},
		fmt.Sprintf("No free TorBox slot for %d queued torrents; remove finished torrents or enable cleanup", queued))
}

// QueueFolder is the directory name used for a category, e.g. "movie_series"
func QueueFolder(category string) string {
	return strings.ReplaceAll(strings.ToLower(category), " ", "_")
}

// folders returns every queue folder with its category and privacy flag, creating missing ones
func (c *QueueController) folders() ([]queueFolder, error) {
	categories, err := c.db.ListCategories()
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	var folders []queueFolder
	for _, category := range categories {
		for _, private := range []bool{true, false} {
			visibility := "public"
			if private {
				visibility = "private"
			}
			dir := filepath.Join(c.queueDir, QueueFolder(category.Name), visibility)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create queue folder %s: %w", dir, err)
			}
			folders = append(folders, queueFolder{dir: dir, categoryID: category.ID, private: private})
		}
	}
	return folders, nil
}

type queueFolder struct {
	dir        string
	categoryID uint64
	private    bool
}

// ImportFolders queues every .torrent file found in the queue folders and removes
// the imported files. Invalid files are renamed with an .invalid suffix.
func (c *QueueController) ImportFolders(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	folders, err := c.folders()
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, folder := range folders {
		if ctx.Err() != nil {
			return imported, ctx.Err()
		}
		entries, err := os.ReadDir(folder.dir)
		if err != nil {
			c.logger.WithError(err).WithField("dir", folder.dir).Warn("Failed to read queue folder")
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".torrent") {
				continue
			}
			if c.importFile(folder, e.Name()) {
				imported++
			}
		}
	}

	if imported > 0 {
		c.logger.WithField("count", imported).Info("Imported torrent files into the queue")
	}
	return imported, nil
}

func (c *QueueController) importFile(folder queueFolder, name string) bool {
	path := filepath.Join(folder.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.WithError(err).WithField("path", path).Warn("Failed to read torrent file")
		return false
	}

	_, err = c.downloads.Enqueue(Submission{
		TorrentFile:     data,
		TorrentFileName: name,
		CategoryID:      folder.categoryID,
		Private:         folder.private,
	})
	if err != nil {
		c.recorder.Warn(status.Entry{Source: "queue"}, fmt.Sprintf("Could not import %s: %v", path, err))
		if err := os.Rename(path, path+".invalid"); err != nil {
			c.logger.WithError(err).WithField("path", path).Error("Failed to set aside invalid torrent file")
		}
		return false
	}

	if err := os.Remove(path); err != nil {
		c.logger.WithError(err).WithField("path", path).Warn("Failed to remove imported torrent file")
	}
	return true
}

// Watch imports and drains whenever a .torrent file lands in a queue folder.
// It blocks until ctx is done.
func (c *QueueController) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	folders, err := c.folders()
	if err != nil {
		return err
	}
	for _, folder := range folders {
		if err := watcher.Add(folder.dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", folder.dir, err)
		}
	}
	c.logger.WithField("folders", len(folders)).Info("Watching queue folders")

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 ||
				!strings.EqualFold(filepath.Ext(event.Name), ".torrent") {
				continue
			}
			// writers create then fill the file; wait for it to settle
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(importDelay, func() {
				if _, err := c.ImportFolders(ctx); err != nil {
					c.logger.WithError(err).Error("Queue folder import failed")
					return
				}
				if err := c.DrainQueue(ctx); err != nil {
					c.logger.WithError(err).Error("Queue drain failed")
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.WithError(err).Warn("Queue watcher error")
		}
	}
}
