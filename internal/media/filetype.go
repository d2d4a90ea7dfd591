package media

import (
	"path/filepath"
	"strings"
)

var (
	videoExtensions   = map[string]bool{".mp4": true, ".avi": true, ".mkv": true}
	ignoredExtensions = map[string]bool{".txt": true, ".nfo": true}
)

// IsVideo reports whether a file should be treated as a movie or episode.
// The mime type decides when it names video or text; otherwise the extension does.
func IsVideo(name, mimeType string) bool {
	mimeType = strings.ToLower(mimeType)
	if strings.Contains(mimeType, "video") {
		return true
	}
	if strings.Contains(mimeType, "text/") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ignoredExtensions[ext] {
		return false
	}
	return videoExtensions[ext]
}
