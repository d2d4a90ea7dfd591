package models

import (
	"path/filepath"
	"time"
)

// DownloadItem is one torrent known to a download client
type DownloadItem struct {
	ID         uint64 `boltholdKey:"ID"`
	Hash       string `boltholdIndex:"Hash"`
	Name       string `boltholdIndex:"Name"`
	Size       int64
	Client     Client
	InternalID int // id on the remote client
	Magnet     string
	CategoryID uint64
	Private    bool

	// Remote state
	Active           bool
	Cached           bool
	DownloadFinished bool
	DownloadPresent  bool
	Deleted          bool

	// Local fetch and organization state
	LocalDownload         bool
	LocalDownloadFinished bool
	LocalProgress         float64
	LocalStatus           LocalStatus

	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time // set once every file is organized
}

// Done reports whether the item has been fully organized
func (d *DownloadItem) Done() bool {
	return d.FinishedAt != nil
}

// File is one file of a DownloadItem
type File struct {
	ID         uint64 `boltholdKey:"ID"`
	DownloadID uint64 `boltholdIndex:"DownloadID"`
	Name       string // path inside the torrent
	ShortName  string
	Size       int64
	MimeType   string
	InternalID int

	Fetch      *FetchRecord
	ActionDone bool
}

// FetchRecord tracks the local copy of a file pulled by the download accelerator
type FetchRecord struct {
	GID      string // aria2 download id
	Dir      string // directory the file was requested into
	Path     string // full local path reported once known
	Status   string
	Progress float64
	Done     bool
	Error    string
}

// Fetched reports whether a completed local copy exists
func (f *File) Fetched() bool {
	return f.Fetch != nil && f.Fetch.Done
}

// LocalPath is the full path of the fetched file, empty when nothing was fetched
func (f *File) LocalPath() string {
	if f.Fetch == nil {
		return ""
	}
	if f.Fetch.Path != "" {
		return f.Fetch.Path
	}
	if f.Fetch.Dir == "" {
		return ""
	}
	name := f.ShortName
	if name == "" {
		name = f.Name
	}
	return filepath.Join(f.Fetch.Dir, filepath.Base(name))
}
