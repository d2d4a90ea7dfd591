package models

import "time"

// TrackedShow is a wanted-list entry whose next episode is searched for periodically
type TrackedShow struct {
	ID         uint64 `boltholdKey:"ID"`
	ExternalID string `boltholdIndex:"ExternalID"` // e.g. imdb tt0944947
	Title      string

	// Comma-separated preference lists; "any" accepts candidates that match none of them
	Quality      string
	Encoder      string
	IncludeWords string
	ExcludeWords string

	RequestedSeason  int
	RequestedEpisode int
	CategoryID       uint64
	Active           bool `boltholdIndex:"Active"`

	AddedAt        time.Time
	LastChecked    *time.Time
	LastFound      *time.Time
	LastDownloadID *uint64
}

// Reference is the time progress is measured from: the last match, or when the show was added
func (s *TrackedShow) Reference() time.Time {
	if s.LastFound != nil {
		return *s.LastFound
	}
	return s.AddedAt
}
