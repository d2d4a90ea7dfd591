package models

import "time"

// QueueEntry is a submission waiting for a free slot on the remote client
type QueueEntry struct {
	ID              uint64 `boltholdKey:"ID"`
	Hash            string `boltholdIndex:"Hash"`
	Magnet          string
	TorrentFile     []byte
	TorrentFileName string
	CategoryID      uint64
	Private         bool
	Priority        int
	AddedAt         time.Time
}
