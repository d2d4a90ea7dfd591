package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var externalIDTag = regexp.MustCompile(`(?i)\[imdbid-([^\]]+)\]`)

// wholeWord builds a case-insensitive pattern matching s as a whole word or phrase
func wholeWord(s string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|\W)` + regexp.QuoteMeta(s) + `(?:\W|$)`)
}

// ContainsWord reports whether word appears in text as a whole word, ignoring case
func ContainsWord(text, word string) bool {
	word = strings.TrimSpace(word)
	if word == "" {
		return false
	}
	return wholeWord(word).MatchString(text)
}

// FindExisting looks for a library folder under root holding the given title.
// A folder tagged with the external id wins over any title match; folders tagged
// with a different id are never matched by title. When season is set the
// returned path points at the season folder, which may not exist yet.
func FindExisting(root, title string, season, episode *int, externalID string) (string, bool, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read library root %s: %w", root, err)
	}

	var dirs []string
	for _, entry := range entries {
		if isDir(root, entry) {
			dirs = append(dirs, entry.Name())
		}
	}

	if externalID != "" {
		idPattern := wholeWord(externalID)
		for _, name := range dirs {
			if idPattern.MatchString(name) {
				dir, err := resolveSeason(filepath.Join(root, name), season)
				return dir, err == nil, err
			}
		}
	}

	cleaned := CleanTitle(title)
	if cleaned == "" {
		return "", false, nil
	}
	titlePattern := wholeWord(cleaned)

	for _, name := range dirs {
		if tag := externalIDTag.FindStringSubmatch(name); tag != nil && externalID != "" &&
			!strings.EqualFold(tag[1], externalID) {
			continue
		}
		if titlePattern.MatchString(CleanTitle(name)) {
			dir, err := resolveSeason(filepath.Join(root, name), season)
			return dir, err == nil, err
		}
	}

	return "", false, nil
}

// resolveSeason returns the existing "season NN" folder under dir, the path of a
// new one when none exists, or dir itself when no season is known
func resolveSeason(dir string, season *int) (string, error) {
	if season == nil {
		return dir, nil
	}

	want := SeasonDirName(*season)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", dir, err)
	}
	for _, entry := range entries {
		if isDir(dir, entry) && strings.Contains(strings.ToLower(entry.Name()), want) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return filepath.Join(dir, want), nil
}

// isDir follows symlinks so linked library folders are matched too
func isDir(parent string, entry os.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(parent, entry.Name()))
	return err == nil && info.IsDir()
}
