// Package media turns release names into library placements: it parses
// title/season/episode out of file names, finds matching library folders and
// builds canonical file and directory names.
package media

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/amaumene/torboxarr/internal/models"
)

// MarkerPolicy decides which season/episode markers are accepted in a name
type MarkerPolicy int

const (
	// RequireEpisodeWithSeason only accepts markers carrying both numbers.
	// A bare "s04" is ambiguous (it is also part of many titles) and is left unparsed.
	RequireEpisodeWithSeason MarkerPolicy = iota
	// AllowSeasonOnly also accepts a bare season marker
	AllowSeasonOnly
)

// DefaultMarkerPolicy is the policy used by ExtractFromFilename
const DefaultMarkerPolicy = RequireEpisodeWithSeason

var (
	episodeMarker = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])((?:season|s)[ ._]?(\d{1,3})[ ._]?(?:episode|e)[ ._]?(\d{1,4}))`)
	seasonMarker  = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])((?:season|s)[ ._]?(\d{1,3}))(?:[^a-z0-9]|$)`)
	spaceRuns     = regexp.MustCompile(` {2,}`)
)

// Metadata is what can be learned about a release from its name and search history
type Metadata struct {
	Title      string
	Season     *int
	Episode    *int
	ExternalID string
}

// CleanTitle normalizes a title for directory comparison and construction
func CleanTitle(title string) string {
	replacer := strings.NewReplacer(
		"/", "",
		"\\", "",
		":", "",
		"_", " ",
		".", " ",
	)
	title = replacer.Replace(title)
	title = spaceRuns.ReplaceAllString(title, " ")
	return strings.TrimSpace(title)
}

// ExtractFromFilename parses a file name or relative path with the default marker policy
func ExtractFromFilename(name string) Metadata {
	return ExtractWithPolicy(name, DefaultMarkerPolicy)
}

// ExtractWithPolicy parses a file name or relative path. The deepest path segment
// carrying a marker wins, so markers in parent release folders are ignored when
// the file itself has one.
func ExtractWithPolicy(name string, policy MarkerPolicy) Metadata {
	segments := splitPath(name)
	if len(segments) == 0 {
		return Metadata{}
	}

	for i := len(segments) - 1; i >= 0; i-- {
		if md, ok := parseSegment(segments[i], policy); ok {
			return md
		}
	}

	last := segments[len(segments)-1]
	return Metadata{Title: CleanTitle(strings.TrimSuffix(last, path.Ext(last)))}
}

func parseSegment(segment string, policy MarkerPolicy) (Metadata, bool) {
	if m := episodeMarker.FindStringSubmatchIndex(segment); m != nil {
		season, _ := strconv.Atoi(segment[m[4]:m[5]])
		episode, _ := strconv.Atoi(segment[m[6]:m[7]])
		return Metadata{
			Title:   titleBefore(segment, m[2]),
			Season:  &season,
			Episode: &episode,
		}, true
	}

	if policy == AllowSeasonOnly {
		if m := seasonMarker.FindStringSubmatchIndex(segment); m != nil {
			season, _ := strconv.Atoi(segment[m[4]:m[5]])
			return Metadata{
				Title:  titleBefore(segment, m[2]),
				Season: &season,
			}, true
		}
	}

	return Metadata{}, false
}

func titleBefore(segment string, end int) string {
	return CleanTitle(strings.TrimRight(segment[:end], " -_."))
}

func splitPath(name string) []string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' })
	segments := parts[:0]
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			segments = append(segments, part)
		}
	}
	return segments
}

// ExtractFromSearch refines metadata with the search result a download came from.
// The record's title replaces the file-derived one; season and episode are only
// filled when the file name did not carry them, first from the query string
// (externalId/sN/eM) and then from the record itself. A record listing several
// episodes does not supply an episode.
func ExtractFromSearch(record *models.SearchResult, md Metadata) Metadata {
	if record == nil {
		return md
	}

	out := md
	parts := strings.Split(record.Query, "/")
	out.ExternalID = strings.TrimSpace(parts[0])

	if record.Title != "" {
		out.Title = record.Title
	}

	if out.Season == nil && len(parts) > 1 {
		out.Season = parseQueryNumber(parts[1], "s")
	}
	if out.Season == nil && record.Season != nil {
		season := *record.Season
		out.Season = &season
	}

	if out.Episode == nil && len(parts) > 2 {
		out.Episode = parseQueryNumber(parts[2], "e")
	}
	if out.Episode == nil && len(record.Episodes) == 1 {
		episode := record.Episodes[0]
		out.Episode = &episode
	}

	return out
}

func parseQueryNumber(part, prefix string) *int {
	part = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(part)), prefix)
	n, err := strconv.Atoi(part)
	if err != nil {
		return nil
	}
	return &n
}
