package media

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TitleCase capitalizes every word of s. Casers keep state, so one is built per call.
func TitleCase(s string) string {
	return cases.Title(language.Und).String(s)
}

// NormalizeFilename builds the canonical library name "Title SxxEyy.ext".
// Without a title the original name is returned unchanged.
func NormalizeFilename(original, title string, season, episode *int) string {
	title = CleanTitle(title)
	if title == "" {
		return original
	}

	var b strings.Builder
	b.WriteString(TitleCase(title))
	if season != nil {
		fmt.Fprintf(&b, " S%02d", *season)
	}
	if episode != nil {
		fmt.Fprintf(&b, "E%02d", *episode)
	}
	b.WriteString(filepath.Ext(original))
	return b.String()
}

// LibraryDirName is the folder name of a new library entry: "Title [imdbid-ID]"
func LibraryDirName(title, externalID string) string {
	name := TitleCase(CleanTitle(title))
	if externalID != "" {
		name += fmt.Sprintf(" [imdbid-%s]", externalID)
	}
	return name
}

// SeasonDirName is the folder name of one season: "season 01"
func SeasonDirName(season int) string {
	return fmt.Sprintf("season %02d", season)
}

// SanitizeDirName makes a download name safe to use as a single directory name
func SanitizeDirName(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ", "\x00", "").Replace(name)
	name = strings.TrimSpace(spaceRuns.ReplaceAllString(name, " "))
	if name == "" || name == "." || name == ".." {
		return "download"
	}
	return name
}
