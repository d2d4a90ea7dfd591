package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Search is one executed query against the search provider
type Search struct {
	ID    uint64 `boltholdKey:"ID"`
	Query string `boltholdIndex:"Query"`
	Date  time.Time
}

// SearchResult is one candidate torrent returned by a search
type SearchResult struct {
	ID       uint64 `boltholdKey:"ID"`
	SearchID uint64 `boltholdIndex:"SearchID"`
	Query    string // query of the owning search, externalId/sN/eM

	Hash        string `boltholdIndex:"Hash"`
	RawTitle    string
	Title       string
	Resolution  string
	Year        int
	Codec       string
	Season      *int
	Episodes    []int // empty means the whole season
	EpisodeName string
	Magnet      string
	Age         string
	Cached      bool
	Seeders     int
	Peers       int
	Size        int64

	DownloadID *uint64
	QueueID    *uint64
}

// BuildQuery formats the search query string stored alongside results.
// Zero season or episode is omitted.
func BuildQuery(externalID string, season, episode int) string {
	query := externalID
	if season > 0 {
		query += fmt.Sprintf("/s%d", season)
		if episode > 0 {
			query += fmt.Sprintf("/e%d", episode)
		}
	}
	return query
}

// ParseEpisodes turns a comma-separated episode list ("1,2,3") into a set of numbers.
// Values that are not numbers are ignored.
func ParseEpisodes(s string) []int {
	var episodes []int
	seen := make(map[int]bool)
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		episodes = append(episodes, n)
	}
	return episodes
}

// HasEpisode reports whether episode is in the result's episode set
func (r *SearchResult) HasEpisode(episode int) bool {
	for _, e := range r.Episodes {
		if e == episode {
			return true
		}
	}
	return false
}

// MaxEpisode returns the highest listed episode, 0 for a full-season result
func (r *SearchResult) MaxEpisode() int {
	max := 0
	for _, e := range r.Episodes {
		if e > max {
			max = e
		}
	}
	return max
}
