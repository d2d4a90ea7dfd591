package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/amaumene/torboxarr/internal/actions"
	"github.com/amaumene/torboxarr/internal/config"
	"github.com/amaumene/torboxarr/internal/controllers"
	"github.com/amaumene/torboxarr/internal/models"
	"github.com/amaumene/torboxarr/internal/services/aria2"
	"github.com/amaumene/torboxarr/internal/services/stash"
	"github.com/amaumene/torboxarr/internal/services/torbox"
	"github.com/amaumene/torboxarr/internal/services/torznab"
	"github.com/amaumene/torboxarr/internal/status"
	"github.com/amaumene/torboxarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// app holds every wired component. Commands build one and use the parts they need.
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	db       *models.Database
	recorder *status.Recorder

	aria2 *aria2.Client
	stash *stash.Client

	organizer *actions.Orchestrator
	downloads *controllers.DownloadController
	cleanup   *controllers.CleanupController
	queue     *controllers.QueueController
	fetch     *controllers.FetchController
	sync      *controllers.SyncController
	search    *controllers.SearchController
	arr       *controllers.ArrController
}

func newApp() (*app, error) {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel, utils.LogOptions{
		Path:       cfg.LogPath,
		MaxSizeMB:  cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
	})
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := seedCategories(db, cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed categories: %w", err)
	}
	logger.Info("Database initialized")

	// 4. Load blacklist
	blacklist, err := utils.LoadBlacklist(cfg.BlacklistFile)
	if err != nil {
		logger.WithError(err).Warn("Failed to load blacklist, continuing without it")
		blacklist = &utils.Blacklist{}
	}

	// 5. Initialize services
	torboxClient, err := torbox.NewClient(cfg, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize TorBox client: %w", err)
	}

	var provider controllers.SearchProvider = controllers.NewTorBoxSearch(torboxClient)
	if cfg.TorznabURL != "" {
		torznabClient, err := torznab.NewClient(cfg, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize Torznab client: %w", err)
		}
		provider = controllers.NewTorznabSearch(torznabClient, logger)
	}
	logger.WithField("provider", provider.Name()).Info("Search provider selected")

	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		recorder: status.NewRecorder(db, logger),
		aria2:    aria2.NewClient(cfg, logger),
		stash:    stash.NewClient(cfg, logger),
	}

	// 6. Organization chain. The periodic retry pass reruns it every minute,
	// so its audit entries are recorded once a day per download.
	organizeRecorder := a.recorder.Deduplicated(24 * time.Hour)
	chain := actions.NewChain(
		[]actions.EntryHandler{
			actions.NewMoviesHandler(cfg.OrganizeMovies, db, organizeRecorder, logger),
			actions.NewMovieSeriesHandler(cfg.OrganizeMovieSeries, db, organizeRecorder, logger),
			actions.TargetDirHandler{},
		},
		actions.NewTransfer(organizeRecorder, logger),
		[]actions.ExitHandler{
			actions.NewRescanHandler(cfg.RescanStashOnHomeVideo, a.stash, organizeRecorder),
			actions.NewMarkDoneHandler(db),
		},
		organizeRecorder, logger,
	)
	a.organizer = actions.NewOrchestrator(db, chain, organizeRecorder, cfg.Aria2Dir, logger)

	// 7. Initialize controllers
	a.downloads = controllers.NewDownloadController(db, torboxClient, a.recorder, logger)
	a.cleanup = controllers.NewCleanupController(db, torboxClient, a.recorder, logger)
	a.queue = controllers.NewQueueController(db, a.downloads, a.cleanup, a.recorder, cfg, logger)
	a.fetch = controllers.NewFetchController(db, torboxClient, a.aria2, a.organizer, a.recorder, cfg.Aria2Dir, logger)
	a.sync = controllers.NewSyncController(db, torboxClient, a.fetch, a.recorder, logger)
	a.search = controllers.NewSearchController(db, provider, logger)
	a.arr = controllers.NewArrController(db, a.search, a.downloads, blacklist, a.recorder, logger)
	logger.Info("Controllers initialized")

	return a, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close database")
	}
}

// checkServices logs whether the optional local services answer. Neither is required to start.
func (a *app) checkServices(ctx context.Context) {
	if version, err := a.aria2.GetVersion(ctx); err != nil {
		a.logger.WithError(err).Warn("aria2 is not reachable, local downloads will fail until it is")
	} else {
		a.logger.WithField("version", version).Info("aria2 reachable")
	}

	if !a.cfg.RescanStashOnHomeVideo {
		return
	}
	if err := a.stash.Validate(ctx); err != nil {
		a.logger.WithError(err).Warn("Stash is not reachable, rescans will fail until it is")
	}
}

// seedCategories makes sure every known category exists with its configured policy
func seedCategories(db *models.Database, cfg *config.Config) error {
	for _, c := range cfg.Categories {
		category := &models.Category{
			Name:      c.Name,
			Action:    models.ParseActionKind(c.Action),
			TargetDir: c.TargetDir,
		}
		if err := db.UpsertCategory(category); err != nil {
			return fmt.Errorf("category %s: %w", c.Name, err)
		}
	}
	return nil
}
