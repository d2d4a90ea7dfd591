package arr

import (
	"time"

	"github.com/amaumene/torboxarr/internal/models"
)

const (
	// InactiveAfter is how long a show may go without a match before it is disabled
	InactiveAfter = 9 * 24 * time.Hour
	// NextSeasonAfter is how long without a match before the next season is tried
	NextSeasonAfter = 7 * 24 * time.Hour
)

// Outcome is the result of one evaluation of a tracked show
type Outcome string

const (
	OutcomeNotFound       Outcome = "not_found"
	OutcomeSearchFailed   Outcome = "search_failed"
	OutcomeSubmitFailed   Outcome = "submit_failed"
	OutcomeInactive       Outcome = "inactive"
	OutcomeNextSeason     Outcome = "next_season"
	OutcomeRetryLater     Outcome = "retry_later"
	OutcomeNextEpisode    Outcome = "next_episode"
	OutcomeSeasonComplete Outcome = "season_complete"
)

// Matched reports whether the outcome came from a submitted candidate
func (o Outcome) Matched() bool {
	return o == OutcomeNextEpisode || o == OutcomeSeasonComplete
}

// OnNoCandidates applies the aging rules to a show whose search found nothing usable
func OnNoCandidates(show *models.TrackedShow, now time.Time) Outcome {
	show.LastChecked = &now
	age := now.Sub(show.Reference())
	switch {
	case age > InactiveAfter:
		show.Active = false
		return OutcomeInactive
	case age > NextSeasonAfter && age < InactiveAfter:
		show.RequestedSeason++
		show.RequestedEpisode = 1
		return OutcomeNextSeason
	default:
		return OutcomeRetryLater
	}
}

// OnMatch moves the cursor past the selected candidate. A candidate without
// episode numbers is a full season.
func OnMatch(show *models.TrackedShow, match *models.SearchResult, now time.Time) Outcome {
	show.LastChecked = &now
	show.LastFound = &now
	show.Active = true
	if show.Title == "" {
		show.Title = match.Title
	}

	if len(match.Episodes) > 0 {
		show.RequestedEpisode = match.MaxEpisode() + 1
		return OutcomeNextEpisode
	}
	show.RequestedSeason++
	show.RequestedEpisode = 1
	return OutcomeSeasonComplete
}
