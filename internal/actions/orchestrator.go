package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/amaumene/torboxarr/internal/metrics"
	"github.com/amaumene/torboxarr/internal/models"
	"github.com/amaumene/torboxarr/internal/status"
	"github.com/amaumene/torboxarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// Orchestrator organizes the fetched files of one download at a time
type Orchestrator struct {
	db        *models.Database
	chain     *Chain
	recorder  *status.Recorder
	fetchRoot string
	locks     *utils.KeyedMutex
	logger    *logrus.Logger
}

// NewOrchestrator creates an orchestrator. fetchRoot is the local download
// directory; it is never removed when emptied by a move.
func NewOrchestrator(db *models.Database, chain *Chain, recorder *status.Recorder, fetchRoot string, logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		db:        db,
		chain:     chain,
		recorder:  recorder,
		fetchRoot: fetchRoot,
		locks:     utils.NewKeyedMutex(),
		logger:    logger,
	}
}

// Run organizes every fetched file of the download that is not organized yet,
// in a single chain run, then marks the download done once all its files are.
// Runs for the same download are serialized.
func (o *Orchestrator) Run(ctx context.Context, downloadID uint64) error {
	unlock := o.locks.Lock(strconv.FormatUint(downloadID, 10))
	defer unlock()

	o.recorder.Forget(downloadID)
	return o.run(ctx, downloadID)
}

// Retry is Run for the periodic pass: messages already recorded for the
// download by an earlier run are not recorded again.
func (o *Orchestrator) Retry(ctx context.Context, downloadID uint64) error {
	unlock := o.locks.Lock(strconv.FormatUint(downloadID, 10))
	defer unlock()

	return o.run(ctx, downloadID)
}

func (o *Orchestrator) run(ctx context.Context, downloadID uint64) error {
	item, err := o.db.GetDownload(downloadID)
	if err != nil {
		return fmt.Errorf("failed to load download %d: %w", downloadID, err)
	}
	if item.Done() {
		return nil
	}

	entry := status.Entry{Source: "actions", Download: item}
	if item.CategoryID == 0 {
		o.recorder.Warn(entry, "Download has no category, organization skipped")
		metrics.OrganizeRuns.WithLabelValues("skipped").Inc()
		return nil
	}
	category, err := o.db.GetCategory(item.CategoryID)
	if err != nil {
		o.recorder.Error(entry, fmt.Sprintf("Category %d not found: %v", item.CategoryID, err))
		metrics.OrganizeRuns.WithLabelValues("skipped").Inc()
		return nil
	}

	files, err := o.db.GetFilesByDownload(item.ID)
	if err != nil {
		return fmt.Errorf("failed to load files of download %d: %w", item.ID, err)
	}

	ready := o.readyFiles(item, files)
	if len(ready) > 0 {
		o.recorder.ActionStart(item, fmt.Sprintf("Organizing %d files (%s)", len(ready), category.Action))
		result := o.chain.Run(ctx, NewPlan(item, category, ready))
		if result.Err != nil {
			metrics.OrganizeRuns.WithLabelValues("error").Inc()
			return fmt.Errorf("organization of download %d failed: %w", item.ID, result.Err)
		}
	}

	for _, file := range files {
		if !file.ActionDone {
			if len(ready) > 0 {
				metrics.OrganizeRuns.WithLabelValues("partial").Inc()
			}
			return nil
		}
	}

	o.finish(item, category, files)
	metrics.OrganizeRuns.WithLabelValues("done").Inc()
	return nil
}

// readyFiles keeps fetched files not organized yet whose source still exists
func (o *Orchestrator) readyFiles(item *models.DownloadItem, files []*models.File) []*models.File {
	var ready []*models.File
	for _, file := range files {
		if file.ActionDone || !file.Fetched() {
			continue
		}
		source := file.LocalPath()
		if source == "" {
			o.recorder.Error(status.Entry{Source: "actions", Download: item},
				fmt.Sprintf("No local path recorded for %s", file.Name))
			continue
		}
		if _, err := os.Stat(source); err != nil {
			o.recorder.Error(status.Entry{Source: "actions", Download: item},
				fmt.Sprintf("Source file %s is missing", source))
			continue
		}
		ready = append(ready, file)
	}
	return ready
}

func (o *Orchestrator) finish(item *models.DownloadItem, category *models.Category, files []*models.File) {
	now := time.Now()
	item.FinishedAt = &now
	if err := o.db.UpdateDownload(item); err != nil {
		o.logger.WithError(err).WithField("download_id", item.ID).Error("Failed to mark download done")
		return
	}
	o.recorder.ActionDone(item, "All files organized")

	if category.Action != models.ActionMove {
		return
	}
	seen := make(map[string]bool)
	for _, file := range files {
		source := file.LocalPath()
		if source == "" {
			continue
		}
		dir := filepath.Dir(source)
		if seen[dir] || filepath.Clean(dir) == filepath.Clean(o.fetchRoot) {
			continue
		}
		seen[dir] = true
		// os.Remove only succeeds on empty directories
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
			o.logger.WithError(err).WithField("dir", dir).Debug("Source directory not removed")
		}
	}
}
