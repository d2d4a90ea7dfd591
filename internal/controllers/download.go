package controllers

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/amaumene/torboxarr/internal/config"
	"github.com/amaumene/torboxarr/internal/metrics"
	"github.com/amaumene/torboxarr/internal/models"
	"github.com/amaumene/torboxarr/internal/services/torbox"
	"github.com/amaumene/torboxarr/internal/status"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

const (
	slotsCacheKey = "max_slots"
	slotsCacheTTL = 7 * 24 * time.Hour
)

// TorrentClient is the remote torrent client the controllers drive
type TorrentClient interface {
	CreateTorrent(ctx context.Context, magnet string, torrentFile []byte, fileName string) (*torbox.CreateTorrentData, error)
	ListTorrents(ctx context.Context) ([]torbox.Torrent, error)
	ControlTorrent(ctx context.Context, torrentID int, operation string) error
	DeleteTorrent(ctx context.Context, torrentID int) error
	MaxSlots(ctx context.Context) (int, error)
	RequestDownloadLink(ctx context.Context, torrentID, fileID int) (string, error)
}

// Submission is a torrent to add, either as a magnet link or a .torrent file
type Submission struct {
	Magnet          string
	TorrentFile     []byte
	TorrentFileName string
	CategoryID      uint64
	Private         bool
	Priority        int
}

// inspect validates the submission and returns its info-hash and display name
func (s Submission) inspect() (string, string, error) {
	if len(s.TorrentFile) > 0 {
		mi, err := metainfo.Load(bytes.NewReader(s.TorrentFile))
		if err != nil {
			return "", "", fmt.Errorf("invalid torrent file %s: %w", s.TorrentFileName, err)
		}
		info, err := mi.UnmarshalInfo()
		if err != nil {
			return "", "", fmt.Errorf("invalid torrent info in %s: %w", s.TorrentFileName, err)
		}
		return mi.HashInfoBytes().HexString(), info.Name, nil
	}
	if s.Magnet == "" {
		return "", "", fmt.Errorf("magnet or torrent file is required")
	}
	m, err := metainfo.ParseMagnetUri(s.Magnet)
	if err != nil {
		return "", "", fmt.Errorf("invalid magnet link: %w", err)
	}
	name := m.DisplayName
	if name == "" {
		name = m.InfoHash.HexString()
	}
	return m.InfoHash.HexString(), name, nil
}

// DownloadController submits torrents to TorBox, or queues them when every slot is taken
type DownloadController struct {
	db       *models.Database
	client   TorrentClient
	recorder *status.Recorder
	slots    *cache.Cache
	mu       sync.Mutex
	logger   *logrus.Logger
}

// NewDownloadController creates a new download controller
func NewDownloadController(db *models.Database, client TorrentClient, recorder *status.Recorder, logger *logrus.Logger) *DownloadController {
	return &DownloadController{
		db:       db,
		client:   client,
		recorder: recorder,
		slots:    cache.New(slotsCacheTTL, time.Hour),
		logger:   logger,
	}
}

// MaxSlots returns the account's concurrent slots, read from TorBox at most once a week
func (c *DownloadController) MaxSlots(ctx context.Context) int {
	if cached, ok := c.slots.Get(slotsCacheKey); ok {
		return cached.(int)
	}
	slots, err := c.client.MaxSlots(ctx)
	if err != nil {
		c.logger.WithError(err).WithField("default", slots).Warn("Failed to read TorBox plan, using default slots")
		return slots
	}
	c.slots.SetDefault(slotsCacheKey, slots)
	return slots
}

// FreeSlots is the number of torrents that can be added right now
func (c *DownloadController) FreeSlots(ctx context.Context) (int, error) {
	active, err := c.db.GetActiveRemoteDownloads(models.ClientTorBox)
	if err != nil {
		return 0, fmt.Errorf("failed to count active downloads: %w", err)
	}
	free := c.MaxSlots(ctx) - len(active)
	if free < 0 {
		free = 0
	}
	return free, nil
}

// Submit adds a torrent to TorBox, or to the local queue when no slot is free.
// A torrent that is already known is returned as is.
func (c *DownloadController) Submit(ctx context.Context, sub Submission) (*models.DownloadItem, *models.QueueEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash, name, err := sub.inspect()
	if err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		return nil, nil, err
	}
	if sub.CategoryID == 0 {
		sub.CategoryID = c.defaultCategory()
	}

	existing, err := c.db.GetDownloadByHash(hash)
	if err != nil && !models.IsNotFound(err) {
		return nil, nil, err
	}
	if existing != nil && !existing.Deleted {
		c.logger.WithFields(logrus.Fields{
			"hash":        hash,
			"download_id": existing.ID,
		}).Info("Torrent already added")
		return existing, nil, nil
	}
	if entry, err := c.db.GetQueueEntryByHash(hash); err == nil {
		return nil, entry, nil
	}

	free, err := c.FreeSlots(ctx)
	if err != nil {
		return nil, nil, err
	}
	if free <= 0 {
		entry, err := c.enqueue(sub, hash, name)
		return nil, entry, err
	}

	item, err := c.add(ctx, sub, hash, name, existing)
	return item, nil, err
}

// Enqueue stores a submission in the local queue without trying TorBox first
func (c *DownloadController) Enqueue(sub Submission) (*models.QueueEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash, name, err := sub.inspect()
	if err != nil {
		return nil, err
	}
	if sub.CategoryID == 0 {
		sub.CategoryID = c.defaultCategory()
	}
	if entry, err := c.db.GetQueueEntryByHash(hash); err == nil {
		return entry, nil
	}
	return c.enqueue(sub, hash, name)
}

// SubmitQueued adds a queued entry to TorBox and removes it from the queue
func (c *DownloadController) SubmitQueued(ctx context.Context, entry *models.QueueEntry) (*models.DownloadItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub := Submission{
		Magnet:          entry.Magnet,
		TorrentFile:     entry.TorrentFile,
		TorrentFileName: entry.TorrentFileName,
		CategoryID:      entry.CategoryID,
		Private:         entry.Private,
		Priority:        entry.Priority,
	}
	hash, name, err := sub.inspect()
	if err != nil {
		return nil, err
	}

	existing, err := c.db.GetDownloadByHash(hash)
	if err != nil && !models.IsNotFound(err) {
		return nil, err
	}
	item := existing
	if existing == nil || existing.Deleted {
		if item, err = c.add(ctx, sub, hash, name, existing); err != nil {
			return nil, err
		}
	}

	results, err := c.db.GetSearchResultsByQueue(entry.ID)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to load search results of queue entry")
	}
	for _, result := range results {
		id := item.ID
		result.DownloadID = &id
		result.QueueID = nil
		if err := c.db.UpdateSearchResult(result); err != nil {
			c.logger.WithError(err).Warn("Failed to relink search result")
		}
	}

	if err := c.db.DeleteQueueEntry(entry.ID); err != nil {
		return item, fmt.Errorf("failed to remove queue entry %d: %w", entry.ID, err)
	}
	return item, nil
}

func (c *DownloadController) enqueue(sub Submission, hash, name string) (*models.QueueEntry, error) {
	entry := &models.QueueEntry{
		Hash:            hash,
		Magnet:          sub.Magnet,
		TorrentFile:     sub.TorrentFile,
		TorrentFileName: sub.TorrentFileName,
		CategoryID:      sub.CategoryID,
		Private:         sub.Private,
		Priority:        sub.Priority,
	}
	if err := c.db.CreateQueueEntry(entry); err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to queue %s: %w", name, err)
	}
	metrics.Submissions.WithLabelValues("queue").Inc()
	c.recorder.Info(status.Entry{Source: "queue"}, fmt.Sprintf("No free TorBox slot, queued %s", name))
	return entry, nil
}

// add creates the torrent on TorBox. A deleted item with the same hash is revived.
func (c *DownloadController) add(ctx context.Context, sub Submission, hash, name string, existing *models.DownloadItem) (*models.DownloadItem, error) {
	data, err := c.client.CreateTorrent(ctx, sub.Magnet, sub.TorrentFile, sub.TorrentFileName)
	if err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		c.recorder.Error(status.Entry{Source: "torbox"}, fmt.Sprintf("Could not add %s to TorBox: %v", name, err))
		return nil, err
	}
	if data.Hash != "" {
		hash = strings.ToLower(data.Hash)
	}

	item := existing
	if item == nil {
		item = &models.DownloadItem{}
	}
	item.Hash = hash
	item.Name = name
	item.Client = models.ClientTorBox
	item.InternalID = data.TorrentID
	item.Magnet = sub.Magnet
	item.CategoryID = sub.CategoryID
	item.Private = sub.Private
	item.Deleted = false
	item.LocalStatus = models.StatusClientInit

	if item.ID == 0 {
		err = c.db.CreateDownload(item)
	} else {
		err = c.db.UpdateDownload(item)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save download %s: %w", name, err)
	}

	metrics.Submissions.WithLabelValues("remote").Inc()
	c.recorder.Info(status.Entry{Source: "torbox", Download: item}, fmt.Sprintf("Added %s to TorBox", name))
	return item, nil
}

// SubmitSearchResult submits a stored search result and links it to the
// resulting download or queue entry. categoryID 0 keeps the default category.
func (c *DownloadController) SubmitSearchResult(ctx context.Context, resultID, categoryID uint64) (*models.DownloadItem, *models.QueueEntry, error) {
	result, err := c.db.GetSearchResult(resultID)
	if err != nil {
		return nil, nil, err
	}
	if result.Magnet == "" {
		return nil, nil, fmt.Errorf("search result %d has no magnet link", resultID)
	}

	item, queued, err := c.Submit(ctx, Submission{Magnet: result.Magnet, CategoryID: categoryID})
	if err != nil {
		return nil, nil, err
	}
	if item != nil {
		id := item.ID
		result.DownloadID = &id
	} else if queued != nil {
		id := queued.ID
		result.QueueID = &id
	}
	if err := c.db.UpdateSearchResult(result); err != nil {
		c.logger.WithError(err).WithField("result_id", resultID).Warn("Failed to link search result")
	}
	return item, queued, nil
}

// SetCategory files a download under another category. Fetched downloads that
// are not organized yet are picked up by the next organization pass.
func (c *DownloadController) SetCategory(id, categoryID uint64) (*models.DownloadItem, error) {
	item, err := c.db.GetDownload(id)
	if err != nil {
		return nil, err
	}
	category, err := c.db.GetCategory(categoryID)
	if err != nil {
		return nil, fmt.Errorf("category %d: %w", categoryID, err)
	}
	if item.CategoryID == category.ID {
		return item, nil
	}

	item.CategoryID = category.ID
	if err := c.db.UpdateDownload(item); err != nil {
		return nil, fmt.Errorf("failed to update download %d: %w", id, err)
	}
	c.recorder.Info(status.Entry{Source: "torbox", Download: item}, fmt.Sprintf("Category changed to %s", category.Name))
	return item, nil
}

// ControlOperations are the remote operations Control accepts
var ControlOperations = []string{"pause", "resume", "reannounce"}

// Control runs a remote operation on the TorBox torrent of a download
func (c *DownloadController) Control(ctx context.Context, id uint64, operation string) error {
	if !slices.Contains(ControlOperations, operation) {
		return fmt.Errorf("unsupported operation %q", operation)
	}
	item, err := c.db.GetDownload(id)
	if err != nil {
		return err
	}
	if item.Client != models.ClientTorBox || item.Deleted {
		return fmt.Errorf("download %d is not on TorBox", id)
	}
	if err := c.client.ControlTorrent(ctx, item.InternalID, operation); err != nil {
		c.recorder.Error(status.Entry{Source: "torbox", Download: item}, fmt.Sprintf("Could not %s torrent: %v", operation, err))
		return err
	}
	c.recorder.Info(status.Entry{Source: "torbox", Download: item}, fmt.Sprintf("Torrent %s requested", operation))
	return nil
}

func (c *DownloadController) defaultCategory() uint64 {
	category, err := c.db.GetCategoryByName(config.CategoryNoType)
	if err != nil {
		return 0
	}
	return category.ID
}
