package controllers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/amaumene/torboxarr/internal/media"
	"github.com/amaumene/torboxarr/internal/models"
	"github.com/amaumene/torboxarr/internal/services/aria2"
	"github.com/amaumene/torboxarr/internal/status"
	"github.com/sirupsen/logrus"
)

// Fetcher pulls remote links onto local storage
type Fetcher interface {
	AddURI(ctx context.Context, link, dir, out string) (string, error)
	TellStatus(ctx context.Context, gid string) (*aria2.Status, error)
}

// Organizer runs post-download organization for one download. Retry is the
// variant used by the periodic pass.
type Organizer interface {
	Run(ctx context.Context, downloadID uint64) error
	Retry(ctx context.Context, downloadID uint64) error
}

// FetchController copies finished TorBox files to local storage through aria2
// and hands complete downloads to the organizer
type FetchController struct {
	db        *models.Database
	client    TorrentClient
	fetcher   Fetcher
	organizer Organizer
	recorder  *status.Recorder
	fetchRoot string
	logger    *logrus.Logger
}

// NewFetchController creates a new fetch controller. Files land in fetchRoot/<download name>.
func NewFetchController(db *models.Database, client TorrentClient, fetcher Fetcher, organizer Organizer, recorder *status.Recorder, fetchRoot string, logger *logrus.Logger) *FetchController {
	return &FetchController{
		db:        db,
		client:    client,
		fetcher:   fetcher,
		organizer: organizer,
		recorder:  recorder,
		fetchRoot: fetchRoot,
		logger:    logger,
	}
}

// RequestFetch asks TorBox for a link to every file not requested yet and queues it in aria2
func (c *FetchController) RequestFetch(ctx context.Context, item *models.DownloadItem) error {
	entry := status.Entry{Source: "aria2", Download: item}
	files, err := c.db.GetFilesByDownload(item.ID)
	if err != nil {
		return fmt.Errorf("failed to load files: %w", err)
	}
	if len(files) == 0 {
		c.recorder.Warn(entry, "Download has no files to fetch")
		return nil
	}

	dir := filepath.Join(c.fetchRoot, media.SanitizeDirName(item.Name))
	for _, file := range files {
		if file.Fetch != nil {
			continue
		}
		link, err := c.client.RequestDownloadLink(ctx, item.InternalID, file.InternalID)
		if err != nil {
			c.recorder.Error(entry, fmt.Sprintf("Could not get download link for %s: %v", file.Name, err))
			c.recorder.SetStatus(item, models.StatusLocalError)
			return err
		}

		out := file.ShortName
		if out == "" {
			out = filepath.Base(file.Name)
		}
		gid, err := c.fetcher.AddURI(ctx, link, dir, out)
		if err != nil {
			c.recorder.Error(entry, fmt.Sprintf("Could not download %s to %s: %v", out, dir, err))
			c.recorder.SetStatus(item, models.StatusLocalError)
			return err
		}

		file.Fetch = &models.FetchRecord{GID: gid, Dir: dir, Status: "waiting"}
		if err := c.db.UpdateFile(file); err != nil {
			return fmt.Errorf("failed to save fetch of %s: %w", file.Name, err)
		}
	}

	item.LocalDownload = true
	item.LocalStatus = models.StatusLocalNew
	if err := c.db.UpdateDownload(item); err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}
	c.recorder.Info(entry, fmt.Sprintf("Local download requested for %d files into %s", len(files), dir))
	return nil
}

// CheckProgress polls aria2 for every download being fetched, updates progress and
// organizes downloads whose files are all local
func (c *FetchController) CheckProgress(ctx context.Context) error {
	items, err := c.db.GetDownloadsFetching()
	if err != nil {
		return fmt.Errorf("failed to list fetching downloads: %w", err)
	}

	for _, item := range items {
		if item.Deleted {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.checkItem(ctx, item)
	}
	return nil
}

func (c *FetchController) checkItem(ctx context.Context, item *models.DownloadItem) {
	entry := status.Entry{Source: "aria2", Download: item}
	files, err := c.db.GetFilesByDownload(item.ID)
	if err != nil {
		c.logger.WithError(err).WithField("download_id", item.ID).Error("Failed to load files")
		return
	}
	if len(files) == 0 {
		c.logger.WithField("download_id", item.ID).Warn("No files found for download")
		return
	}

	var progress float64
	done := 0
	for _, file := range files {
		if file.Fetch == nil {
			c.recorder.Warn(entry, fmt.Sprintf("File %s has no local download although the download is being fetched", file.Name))
			return
		}
		if !file.Fetch.Done && file.Fetch.Error == "" {
			c.updateFile(ctx, item, file)
		}
		progress += file.Fetch.Progress
		if file.Fetch.Done {
			done++
		}
	}

	item.LocalProgress = progress / float64(len(files))
	if done < len(files) {
		if item.LocalStatus != models.StatusLocalError {
			item.LocalStatus = models.StatusLocalProgress
		}
		if err := c.db.UpdateDownload(item); err != nil {
			c.logger.WithError(err).WithField("download_id", item.ID).Error("Failed to update progress")
		}
		return
	}

	item.LocalDownloadFinished = true
	item.LocalStatus = models.StatusLocalDone
	if err := c.db.UpdateDownload(item); err != nil {
		c.logger.WithError(err).WithField("download_id", item.ID).Error("Failed to update download")
		return
	}
	c.recorder.Info(entry, "All files downloaded locally")

	if err := c.organizer.Run(ctx, item.ID); err != nil {
		c.logger.WithError(err).WithField("download_id", item.ID).Error("Organization failed")
	}
}

func (c *FetchController) updateFile(ctx context.Context, item *models.DownloadItem, file *models.File) {
	entry := status.Entry{Source: "aria2", Download: item}
	st, err := c.fetcher.TellStatus(ctx, file.Fetch.GID)
	if err != nil {
		c.recorder.Error(entry, fmt.Sprintf("Could not get status of %s from aria2: %v", file.Fetch.GID, err))
		c.recorder.SetStatus(item, models.StatusLocalError)
		return
	}

	if path := st.Path(); path != "" {
		file.Fetch.Path = path
	}
	file.Fetch.Status = st.Status
	file.Fetch.Progress = st.Progress()
	file.Fetch.Done = st.Complete()
	file.Fetch.Error = st.Failure()
	if err := c.db.UpdateFile(file); err != nil {
		c.logger.WithError(err).WithField("file_id", file.ID).Error("Failed to save fetch status")
	}

	if file.Fetch.Error != "" {
		c.recorder.Error(entry, fmt.Sprintf("aria2 download of %s failed: %s", file.Name, file.Fetch.Error))
		c.recorder.SetStatus(item, models.StatusLocalError)
		return
	}
	if file.Fetch.Done {
		c.recorder.Info(entry, fmt.Sprintf("File %s finished downloading", file.Name))
	}
}

// OrganizePending retries organization of every fetched download not done yet
func (c *FetchController) OrganizePending(ctx context.Context) error {
	items, err := c.db.GetDownloadsAwaitingOrganize()
	if err != nil {
		return fmt.Errorf("failed to list downloads awaiting organization: %w", err)
	}
	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.organizer.Retry(ctx, item.ID); err != nil {
			c.logger.WithError(err).WithField("download_id", item.ID).Debug("Organization retry failed")
		}
	}
	return nil
}
