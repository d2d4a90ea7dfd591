// Package arr picks the next release of a tracked show and moves its
// season/episode cursor forward.
package arr

import (
	"sort"
	"strings"

	"github.com/amaumene/torboxarr/internal/media"
	"github.com/amaumene/torboxarr/internal/models"
)

// Any is the wildcard preference: it accepts candidates matching none of the listed terms
const Any = "any"

// BuildList splits a comma-separated preference list, dropping blanks
func BuildList(s string) []string {
	var list []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			list = append(list, part)
		}
	}
	return list
}

func hasAny(list []string) bool {
	for _, term := range list {
		if strings.EqualFold(term, Any) {
			return true
		}
	}
	return false
}

func withoutAny(list []string) []string {
	var rules []string
	for _, term := range list {
		if !strings.EqualFold(term, Any) {
			rules = append(rules, term)
		}
	}
	return rules
}

// firstMatch scores the first listed rule found in title: earlier rules score higher
func firstMatch(title string, list []string) int {
	rules := withoutAny(list)
	for i, rule := range rules {
		if media.ContainsWord(title, rule) {
			return len(rules) - i
		}
	}
	return 0
}

// allMatches sums the score of every listed rule found in title
func allMatches(title string, list []string) int {
	rules := withoutAny(list)
	score := 0
	for i, rule := range rules {
		if media.ContainsWord(title, rule) {
			score += len(rules) - i
		}
	}
	return score
}

// Score orders candidates; fields are compared in declaration order
type Score struct {
	Quality  int
	Encoder  int
	Include  int
	Cached   int
	Episodes int
	Seeders  int
}

// Less reports whether s ranks below o
func (s Score) Less(o Score) bool {
	a := [...]int{s.Quality, s.Encoder, s.Include, s.Cached, s.Episodes, s.Seeders}
	b := [...]int{o.Quality, o.Encoder, o.Include, o.Cached, o.Episodes, o.Seeders}
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// ScoreOf scores a candidate against the show's preferences
func ScoreOf(candidate *models.SearchResult, show *models.TrackedShow) Score {
	score := Score{
		Quality:  firstMatch(candidate.RawTitle, BuildList(show.Quality)),
		Encoder:  firstMatch(candidate.RawTitle, BuildList(show.Encoder)),
		Include:  allMatches(candidate.RawTitle, BuildList(show.IncludeWords)),
		Episodes: distinct(candidate.Episodes),
		Seeders:  candidate.Seeders,
	}
	if candidate.Cached {
		score.Cached = 1
	}
	return score
}

func distinct(values []int) int {
	seen := make(map[int]bool, len(values))
	for _, v := range values {
		seen[v] = true
	}
	return len(seen)
}

// acceptsList is the hard filter of one preference list: unset, wildcard or a rule match
func acceptsList(title string, list []string) bool {
	if len(list) == 0 || hasAny(list) {
		return true
	}
	return firstMatch(title, list) > 0
}

// Filter reports whether a candidate may be selected for the show's cursor
func Filter(candidate *models.SearchResult, show *models.TrackedShow) bool {
	if candidate.DownloadID != nil {
		return false
	}
	if len(candidate.Episodes) > 0 && !candidate.HasEpisode(show.RequestedEpisode) {
		return false
	}
	if candidate.Season == nil || *candidate.Season != show.RequestedSeason {
		return false
	}

	title := candidate.RawTitle
	if !acceptsList(title, BuildList(show.Quality)) || !acceptsList(title, BuildList(show.Encoder)) {
		return false
	}
	for _, word := range withoutAny(BuildList(show.ExcludeWords)) {
		if media.ContainsWord(title, word) {
			return false
		}
	}
	return acceptsList(title, BuildList(show.IncludeWords))
}

// SelectBest returns the highest scoring candidate that passes Filter, or nil.
// Equal scores keep the provider's order.
func SelectBest(candidates []*models.SearchResult, show *models.TrackedShow) *models.SearchResult {
	type scored struct {
		candidate *models.SearchResult
		score     Score
	}

	var eligible []scored
	for _, candidate := range candidates {
		if Filter(candidate, show) {
			eligible = append(eligible, scored{candidate, ScoreOf(candidate, show)})
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[j].score.Less(eligible[i].score)
	})
	return eligible[0].candidate
}
