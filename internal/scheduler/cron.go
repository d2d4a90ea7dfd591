package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/torboxarr/internal/arr"
	"github.com/amaumene/torboxarr/internal/controllers"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ReevaluateAfter is the delay before a show that just completed a season is evaluated again
const ReevaluateAfter = 30 * time.Second

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron      *cron.Cron
	syncCtrl  *controllers.SyncController
	queueCtrl *controllers.QueueController
	fetchCtrl *controllers.FetchController
	arrCtrl   *controllers.ArrController
	recheck   time.Duration
	logger    *logrus.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	pending map[uint64]*time.Timer
}

// NewScheduler creates a new scheduler
func NewScheduler(
	syncCtrl *controllers.SyncController,
	queueCtrl *controllers.QueueController,
	fetchCtrl *controllers.FetchController,
	arrCtrl *controllers.ArrController,
	recheckHours int,
	logger *logrus.Logger,
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:      cron.New(),
		syncCtrl:  syncCtrl,
		queueCtrl: queueCtrl,
		fetchCtrl: fetchCtrl,
		arrCtrl:   arrCtrl,
		recheck:   time.Duration(recheckHours) * time.Hour,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[uint64]*time.Timer),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	jobs := []struct {
		schedule string
		name     string
		run      func()
	}{
		// Every 10 minutes: sync the TorBox list, then move queued torrents
		{"*/10 * * * *", "sync", s.runSync},
		// Every minute: local download progress, then organization left unfinished
		{"* * * * *", "fetch check", s.runFetchCheck},
		// Every hour: tracked shows due for a check
		{"0 * * * *", "arr", s.runArr},
	}
	for _, job := range jobs {
		if _, err := s.cron.AddFunc(job.schedule, job.run); err != nil {
			return fmt.Errorf("failed to add %s job: %w", job.name, err)
		}
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")

	// Initial run so a restart doesn't wait for the first tick
	go func() {
		s.runSync()
		s.runArr()
	}()

	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()

	s.mu.Lock()
	for id, timer := range s.pending {
		timer.Stop()
		delete(s.pending, id)
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
}

func (s *Scheduler) runSync() {
	s.logger.Debug("Running scheduled sync")

	if _, err := s.queueCtrl.ImportFolders(s.ctx); err != nil {
		s.logger.WithError(err).Error("Queue folder import failed")
	}
	if err := s.syncCtrl.SyncTorBox(s.ctx); err != nil {
		s.logger.WithError(err).Error("Sync job failed")
	}
	if err := s.queueCtrl.DrainQueue(s.ctx); err != nil {
		s.logger.WithError(err).Error("Queue drain failed")
	}
}

func (s *Scheduler) runFetchCheck() {
	if err := s.fetchCtrl.CheckProgress(s.ctx); err != nil {
		s.logger.WithError(err).Error("Fetch progress check failed")
	}
	if err := s.fetchCtrl.OrganizePending(s.ctx); err != nil {
		s.logger.WithError(err).Error("Organization retry failed")
	}
}

// runArr evaluates every due show, least recently checked first
func (s *Scheduler) runArr() {
	shows, err := s.arrCtrl.DueShows(s.recheck)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get due shows")
		return
	}
	if len(shows) == 0 {
		s.logger.Debug("No tracked show due")
		return
	}

	s.logger.WithField("count", len(shows)).Info("Evaluating tracked shows")
	for _, show := range shows {
		if s.ctx.Err() != nil {
			return
		}
		s.evaluate(show.ID)
	}
}

func (s *Scheduler) evaluate(showID uint64) {
	outcome, err := s.arrCtrl.Evaluate(s.ctx, showID)
	if err != nil {
		s.logger.WithError(err).WithField("show_id", showID).Error("Show evaluation failed")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"show_id": showID,
		"outcome": outcome,
	}).Debug("Show evaluated")

	if outcome == arr.OutcomeSeasonComplete {
		s.Reevaluate(showID)
	}
}

// Reevaluate schedules one more evaluation of the show after ReevaluateAfter.
// A show already waiting is not scheduled twice.
func (s *Scheduler) Reevaluate(showID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	if _, waiting := s.pending[showID]; waiting {
		return
	}
	s.pending[showID] = time.AfterFunc(ReevaluateAfter, func() {
		s.mu.Lock()
		delete(s.pending, showID)
		s.mu.Unlock()
		s.evaluate(showID)
	})
}
