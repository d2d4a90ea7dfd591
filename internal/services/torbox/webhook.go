package torbox

import (
	"regexp"
	"strings"
	"time"
)

// Event is what a TorBox notification reports about a download
type Event string

const (
	EventCompleted Event = "completed"
	EventFailed    Event = "failed"
	EventOther     Event = "other"
)

var (
	// "Your download Bosch.Legacy.S03E01.720p has completed"
	subjectName = regexp.MustCompile(`download (.+?) (?:has|is|was)\b`)
	subjectHash = regexp.MustCompile(`\b([a-f0-9]{40})\b`)
)

// Notification is the body TorBox posts to a configured webhook
type Notification struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"data"`
}

// Event classifies the notification from its title
func (n *Notification) Event() Event {
	title := strings.ToLower(n.Data.Title)
	if strings.Contains(title, "fail") || strings.Contains(title, "error") {
		return EventFailed
	}
	for _, word := range []string{"completed", "ready", "finished"} {
		if strings.Contains(title, word) {
			return EventCompleted
		}
	}
	return EventOther
}

// DownloadName returns the torrent name quoted in the message, or "" when there is none
func (n *Notification) DownloadName() string {
	if m := subjectName.FindStringSubmatch(n.Data.Message); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// Hash returns the lowercase info-hash quoted in the message, or "" when there is none
func (n *Notification) Hash() string {
	if m := subjectHash.FindStringSubmatch(strings.ToLower(n.Data.Message)); m != nil {
		return m[1]
	}
	return ""
}
