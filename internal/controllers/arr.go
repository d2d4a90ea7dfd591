package controllers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/torboxarr/internal/arr"
	"github.com/amaumene/torboxarr/internal/config"
	"github.com/amaumene/torboxarr/internal/metrics"
	"github.com/amaumene/torboxarr/internal/models"
	"github.com/amaumene/torboxarr/internal/status"
	"github.com/amaumene/torboxarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// Searcher returns the candidates for a show's cursor
type Searcher interface {
	Search(ctx context.Context, externalID string, season, episode int) ([]*models.SearchResult, error)
}

// Submitter adds the selected candidate
type Submitter interface {
	Submit(ctx context.Context, sub Submission) (*models.DownloadItem, *models.QueueEntry, error)
}

// ArrController evaluates tracked shows: search, select, submit, move the cursor
type ArrController struct {
	db        *models.Database
	search    Searcher
	submitter Submitter
	blacklist *utils.Blacklist
	recorder  *status.Recorder
	locks     *utils.KeyedMutex
	logger    *logrus.Logger
	now       func() time.Time
}

// NewArrController creates a new arr controller
func NewArrController(db *models.Database, search Searcher, submitter Submitter, blacklist *utils.Blacklist, recorder *status.Recorder, logger *logrus.Logger) *ArrController {
	return &ArrController{
		db:        db,
		search:    search,
		submitter: submitter,
		blacklist: blacklist,
		recorder:  recorder,
		locks:     utils.NewKeyedMutex(),
		logger:    logger,
		now:       time.Now,
	}
}

// AddShow starts tracking a show. The cursor defaults to S01E01, the category to Movie Series
// and every preference list to "any".
func (c *ArrController) AddShow(show *models.TrackedShow) error {
	show.ExternalID = strings.TrimSpace(show.ExternalID)
	if show.ExternalID == "" {
		return fmt.Errorf("external id is required")
	}
	if show.RequestedSeason < 1 {
		show.RequestedSeason = 1
	}
	if show.RequestedEpisode < 1 {
		show.RequestedEpisode = 1
	}
	for _, pref := range []*string{&show.Quality, &show.Encoder, &show.IncludeWords} {
		if strings.TrimSpace(*pref) == "" {
			*pref = arr.Any
		}
	}
	if show.CategoryID == 0 {
		if category, err := c.db.GetCategoryByName(config.CategoryMovieSeries); err == nil {
			show.CategoryID = category.ID
		}
	}
	show.Active = true

	if err := c.db.CreateShow(show); err != nil {
		return fmt.Errorf("failed to create show: %w", err)
	}
	c.recorder.Info(status.Entry{Source: "arrmanager", Show: show},
		fmt.Sprintf("Tracking %s from S%02dE%02d", show.ExternalID, show.RequestedSeason, show.RequestedEpisode))
	return nil
}

// Evaluate runs one evaluation of the show. Evaluations of the same show are serialized.
// A missing show is reported as OutcomeNotFound; provider and submission failures are
// recorded on the show and reported as outcomes, not errors.
func (c *ArrController) Evaluate(ctx context.Context, showID uint64) (arr.Outcome, error) {
	unlock := c.locks.Lock(strconv.FormatUint(showID, 10))
	defer unlock()

	show, err := c.db.GetShow(showID)
	if err != nil {
		if models.IsNotFound(err) {
			metrics.ArrEvaluations.WithLabelValues(string(arr.OutcomeNotFound)).Inc()
			return arr.OutcomeNotFound, nil
		}
		return "", fmt.Errorf("failed to load show %d: %w", showID, err)
	}

	outcome, err := c.evaluate(ctx, show)
	if err != nil {
		return "", err
	}
	metrics.ArrEvaluations.WithLabelValues(string(outcome)).Inc()
	return outcome, nil
}

func (c *ArrController) evaluate(ctx context.Context, show *models.TrackedShow) (arr.Outcome, error) {
	entry := status.Entry{Source: "arrmanager", Show: show}
	log := c.logger.WithFields(logrus.Fields{
		"show_id": show.ID,
		"imdb_id": show.ExternalID,
		"season":  show.RequestedSeason,
		"episode": show.RequestedEpisode,
	})
	now := c.now()

	candidates, err := c.search.Search(ctx, show.ExternalID, show.RequestedSeason, show.RequestedEpisode)
	if err != nil {
		show.LastChecked = &now
		if err := c.db.UpdateShow(show); err != nil {
			return "", fmt.Errorf("failed to update show: %w", err)
		}
		c.recorder.Warn(entry, fmt.Sprintf("Search failed, will retry: %v", err))
		return arr.OutcomeSearchFailed, nil
	}

	filter := *show
	filter.ExcludeWords = c.blacklist.MergeInto(show.ExcludeWords)
	best := arr.SelectBest(candidates, &filter)

	if best == nil {
		outcome := arr.OnNoCandidates(show, now)
		if err := c.db.UpdateShow(show); err != nil {
			return "", fmt.Errorf("failed to update show: %w", err)
		}
		switch outcome {
		case arr.OutcomeInactive:
			c.recorder.Warn(entry, "Nothing found for more than 9 days, show deactivated")
		case arr.OutcomeNextSeason:
			c.recorder.Info(entry, fmt.Sprintf("Nothing found for a week, trying season %d", show.RequestedSeason))
		default:
			log.WithField("candidates", len(candidates)).Info("No matching release yet")
		}
		return outcome, nil
	}

	item, queued, err := c.submitter.Submit(ctx, Submission{
		Magnet:     best.Magnet,
		CategoryID: show.CategoryID,
	})
	if err != nil {
		show.LastChecked = &now
		if err := c.db.UpdateShow(show); err != nil {
			return "", fmt.Errorf("failed to update show: %w", err)
		}
		c.recorder.Error(entry, fmt.Sprintf("Could not submit %s: %v", best.RawTitle, err))
		return arr.OutcomeSubmitFailed, nil
	}

	if item != nil {
		id := item.ID
		best.DownloadID = &id
		show.LastDownloadID = &id
	} else if queued != nil {
		id := queued.ID
		best.QueueID = &id
	}
	if best.ID != 0 {
		if err := c.db.UpdateSearchResult(best); err != nil {
			log.WithError(err).Warn("Failed to link search result")
		}
	}

	outcome := arr.OnMatch(show, best, now)
	if err := c.db.UpdateShow(show); err != nil {
		return "", fmt.Errorf("failed to update show: %w", err)
	}
	c.recorder.Info(entry, fmt.Sprintf("Selected %s, next is S%02dE%02d", best.RawTitle, show.RequestedSeason, show.RequestedEpisode))
	return outcome, nil
}

// DueShows returns the active shows not checked within recheck, oldest first
func (c *ArrController) DueShows(recheck time.Duration) ([]*models.TrackedShow, error) {
	return c.db.GetDueShows(c.now(), recheck)
}
