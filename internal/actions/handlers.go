package actions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/amaumene/torboxarr/internal/config"
	"github.com/amaumene/torboxarr/internal/media"
	"github.com/amaumene/torboxarr/internal/models"
	"github.com/amaumene/torboxarr/internal/status"
	"github.com/sirupsen/logrus"
)

// LibraryHandler files movies, or series episodes, into the library folder of their title
type LibraryHandler struct {
	category string
	enabled  bool
	series   bool
	db       *models.Database
	recorder *status.Recorder
	logger   *logrus.Logger
}

// NewMoviesHandler organizes the "Movies" category
func NewMoviesHandler(enabled bool, db *models.Database, recorder *status.Recorder, logger *logrus.Logger) *LibraryHandler {
	return &LibraryHandler{category: config.CategoryMovies, enabled: enabled, db: db, recorder: recorder, logger: logger}
}

// NewMovieSeriesHandler organizes the "Movie Series" category into season folders
func NewMovieSeriesHandler(enabled bool, db *models.Database, recorder *status.Recorder, logger *logrus.Logger) *LibraryHandler {
	return &LibraryHandler{category: config.CategoryMovieSeries, enabled: enabled, series: true, db: db, recorder: recorder, logger: logger}
}

func (h *LibraryHandler) Name() string {
	if h.series {
		return "movie series handler"
	}
	return "movies handler"
}

func (h *LibraryHandler) Applies(plan Plan) bool {
	return h.enabled && plan.Category.Name == h.category
}

// Enter resolves one library folder from a representative video file and
// gives every video file its normalized name inside that folder. Missing
// metadata only skips organization.
func (h *LibraryHandler) Enter(ctx context.Context, plan Plan) (Plan, error) {
	entry := status.Entry{Source: "actions", Download: plan.Download}

	idx := firstVideo(plan)
	if idx < 0 {
		h.recorder.Warn(entry, "No video file found, organization skipped")
		return plan, nil
	}

	record := h.searchRecord(plan.Download)
	md := h.metadata(plan.Files[idx].File, record)

	if h.series && (md.Title == "" || md.Season == nil) {
		h.recorder.Warn(entry, fmt.Sprintf("Could not resolve title and season from %s, organization skipped", plan.Files[idx].File.Name))
		return plan, nil
	}

	root := plan.Category.TargetDir
	dir, found, err := media.FindExisting(root, md.Title, md.Season, md.Episode, md.ExternalID)
	if err != nil {
		h.recorder.Warn(entry, fmt.Sprintf("Library lookup failed: %v", err))
		return plan, nil
	}
	if found {
		h.recorder.Info(entry, fmt.Sprintf("Found existing folder %s", dir))
	} else {
		if md.Title == "" {
			h.recorder.Warn(entry, fmt.Sprintf("No title found for %s, organization skipped", plan.Files[idx].File.Name))
			return plan, nil
		}
		dir = filepath.Join(root, media.LibraryDirName(md.Title, md.ExternalID))
		if h.series {
			dir = filepath.Join(dir, media.SeasonDirName(*md.Season))
		}
		h.recorder.Info(entry, fmt.Sprintf("Creating new folder %s", dir))
	}

	plan = plan.WithTargetDir(dir)
	taken := make(map[string]bool)
	for _, p := range plan.Files {
		if !media.IsVideo(p.File.Name, p.File.MimeType) {
			taken[strings.ToLower(filepath.Base(p.Target))] = true
		}
	}
	for i, p := range plan.Files {
		if !media.IsVideo(p.File.Name, p.File.MimeType) {
			continue
		}
		fmd := h.metadata(p.File, record)
		original := filepath.Base(p.Source)
		name := uniqueName(taken, media.NormalizeFilename(original, fmd.Title, fmd.Season, fmd.Episode), original)
		plan = plan.WithFileName(i, name)
	}

	return plan, nil
}

// uniqueName picks the first of name, original or "<stem> - partN<ext>" that
// no other file of the same plan uses, and reserves it
func uniqueName(taken map[string]bool, name, original string) string {
	candidates := []string{name, original}
	for _, candidate := range candidates {
		if !taken[strings.ToLower(candidate)] {
			taken[strings.ToLower(candidate)] = true
			return candidate
		}
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s - part%d%s", stem, n, ext)
		if !taken[strings.ToLower(candidate)] {
			taken[strings.ToLower(candidate)] = true
			return candidate
		}
	}
}

func (h *LibraryHandler) searchRecord(download *models.DownloadItem) *models.SearchResult {
	record, err := h.db.GetSearchResultByDownload(download)
	if err != nil {
		if !models.IsNotFound(err) {
			h.logger.WithError(err).WithField("download_id", download.ID).Warn("Failed to load search result")
		}
		return nil
	}
	return record
}

func (h *LibraryHandler) metadata(file *models.File, record *models.SearchResult) media.Metadata {
	md := media.ExtractFromSearch(record, media.ExtractFromFilename(file.Name))
	if !h.series {
		md.Season, md.Episode = nil, nil
	}
	return md
}

func firstVideo(plan Plan) int {
	for i, p := range plan.Files {
		if media.IsVideo(p.File.Name, p.File.MimeType) {
			return i
		}
	}
	return -1
}

// TargetDirHandler creates the target directory. It always runs last.
type TargetDirHandler struct{}

func (TargetDirHandler) Name() string { return "target directory handler" }

func (TargetDirHandler) Applies(Plan) bool { return true }

func (TargetDirHandler) Enter(_ context.Context, plan Plan) (Plan, error) {
	if plan.TargetDir == "" {
		return plan, fmt.Errorf("no target directory for %s", plan.Download.Name)
	}
	if err := os.MkdirAll(plan.TargetDir, 0755); err != nil {
		return plan, fmt.Errorf("failed to create %s: %w", plan.TargetDir, err)
	}
	return plan, nil
}

// Rescanner asks a media server to rescan one folder of its library
type Rescanner interface {
	Rescan(ctx context.Context, folder string) bool
}

// RescanHandler triggers a library rescan for home videos
type RescanHandler struct {
	enabled   bool
	rescanner Rescanner
	recorder  *status.Recorder
}

// NewRescanHandler creates the home video rescan handler
func NewRescanHandler(enabled bool, rescanner Rescanner, recorder *status.Recorder) *RescanHandler {
	return &RescanHandler{enabled: enabled, rescanner: rescanner, recorder: recorder}
}

func (h *RescanHandler) Name() string { return "rescan handler" }

func (h *RescanHandler) Applies(plan Plan) bool {
	return h.enabled && h.rescanner != nil &&
		plan.Category.Name == config.CategoryHomeVideo &&
		plan.Category.Action != models.ActionNothing
}

// Exit never fails; the result is only logged
func (h *RescanHandler) Exit(ctx context.Context, plan Plan) error {
	folder := filepath.Base(plan.TargetDir)
	entry := status.Entry{Source: "stash", Download: plan.Download}
	if h.rescanner.Rescan(ctx, folder) {
		h.recorder.Info(entry, fmt.Sprintf("Library rescan started for %s", folder))
	} else {
		h.recorder.Warn(entry, fmt.Sprintf("Library rescan failed for %s", folder))
	}
	return nil
}

// MarkDoneHandler flags every planned file as organized. It always runs last.
type MarkDoneHandler struct {
	db *models.Database
}

// NewMarkDoneHandler creates the completion handler
func NewMarkDoneHandler(db *models.Database) *MarkDoneHandler {
	return &MarkDoneHandler{db: db}
}

func (h *MarkDoneHandler) Name() string { return "mark done handler" }

func (h *MarkDoneHandler) Applies(Plan) bool { return true }

func (h *MarkDoneHandler) Exit(_ context.Context, plan Plan) error {
	for _, p := range plan.Files {
		p.File.ActionDone = true
		if err := h.db.UpdateFile(p.File); err != nil {
			return fmt.Errorf("failed to mark %s done: %w", p.File.Name, err)
		}
	}
	return nil
}
