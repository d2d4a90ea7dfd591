// Package status records operator-visible progress: audit log entries and the
// local lifecycle label of each download.
package status

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/torboxarr/internal/models"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Recorder is the audit sink shared by every component. It is constructed
// once and passed explicitly.
type Recorder struct {
	db      *models.Database
	logger  *logrus.Logger
	repeats *cache.Cache
}

// NewRecorder creates a recorder writing to db and mirroring to logger
func NewRecorder(db *models.Database, logger *logrus.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// Deduplicated returns a recorder writing to the same sinks that persists a
// given message about a download at most once per window. Repeats only reach
// the logger, at debug level.
func (r *Recorder) Deduplicated(window time.Duration) *Recorder {
	return &Recorder{db: r.db, logger: r.logger, repeats: cache.New(window, window)}
}

// Forget clears the repeat history of one download
func (r *Recorder) Forget(downloadID uint64) {
	if r.repeats == nil {
		return
	}
	prefix := strconv.FormatUint(downloadID, 10) + "|"
	for key := range r.repeats.Items() {
		if strings.HasPrefix(key, prefix) {
			r.repeats.Delete(key)
		}
	}
}

// Entry describes what a log line is attached to
type Entry struct {
	Source   string
	Download *models.DownloadItem
	Show     *models.TrackedShow
}

// Info records an informational entry
func (r *Recorder) Info(e Entry, message string) {
	r.add(models.LogInfo, e, message)
}

// Warn records a warning entry
func (r *Recorder) Warn(e Entry, message string) {
	r.add(models.LogWarning, e, message)
}

// Error records an error entry
func (r *Recorder) Error(e Entry, message string) {
	r.add(models.LogError, e, message)
}

func (r *Recorder) add(level models.LogLevel, e Entry, message string) {
	entry := &models.LogEntry{Level: level, Source: e.Source, Message: message}
	fields := logrus.Fields{"source": e.Source}
	if e.Download != nil {
		id := e.Download.ID
		entry.DownloadID = &id
		fields["download_id"] = id
		fields["download"] = e.Download.Name
	}
	if e.Show != nil {
		id := e.Show.ID
		entry.ShowID = &id
		fields["show_id"] = id
	}

	log := r.logger.WithFields(fields)
	if r.repeats != nil && e.Download != nil {
		key := fmt.Sprintf("%d|%s|%s|%s", e.Download.ID, level, e.Source, message)
		if err := r.repeats.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
			log.WithField("level", level).Debug(message)
			return
		}
	}
	switch level {
	case models.LogError:
		log.Error(message)
	case models.LogWarning:
		log.Warn(message)
	default:
		log.Info(message)
	}

	if err := r.db.AddLog(entry); err != nil {
		r.logger.WithError(err).Error("Failed to persist log entry")
	}
}

// SetStatus moves a download to a new lifecycle label and persists it
func (r *Recorder) SetStatus(item *models.DownloadItem, status models.LocalStatus) {
	if item.LocalStatus == status {
		return
	}
	r.logger.WithFields(logrus.Fields{
		"download_id": item.ID,
		"from":        item.LocalStatus,
		"to":          status,
	}).Debug("Download status changed")
	item.LocalStatus = status
	if err := r.db.UpdateDownload(item); err != nil {
		r.logger.WithError(err).WithField("download_id", item.ID).Error("Failed to update download status")
	}
}

// ActionStart marks the beginning of post-download organization
func (r *Recorder) ActionStart(item *models.DownloadItem, message string) {
	r.SetStatus(item, models.StatusFinishStarted)
	r.Info(Entry{Source: "actions", Download: item}, message)
}

// ActionProgress records an organization step
func (r *Recorder) ActionProgress(item *models.DownloadItem, message string) {
	r.SetStatus(item, models.StatusFinishProgress)
	r.Info(Entry{Source: "actions", Download: item}, message)
}

// ActionError records a failed organization step
func (r *Recorder) ActionError(item *models.DownloadItem, message string) {
	r.SetStatus(item, models.StatusFinishError)
	r.Error(Entry{Source: "actions", Download: item}, message)
}

// ActionDone records that every file of the download has been organized
func (r *Recorder) ActionDone(item *models.DownloadItem, message string) {
	r.SetStatus(item, models.StatusFinishDone)
	r.Info(Entry{Source: "actions", Download: item}, message)
}
