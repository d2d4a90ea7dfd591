package models

import "time"

// LogEntry is one operator-visible audit record
type LogEntry struct {
	ID         uint64 `boltholdKey:"ID"`
	Level      LogLevel
	Source     string
	Message    string
	DownloadID *uint64
	ShowID     *uint64
	CreatedAt  time.Time
}
