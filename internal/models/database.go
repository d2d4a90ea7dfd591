package models

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = bolthold.ErrNotFound

// IsNotFound reports whether err means the record is missing
func IsNotFound(err error) bool {
	return errors.Is(err, bolthold.ErrNotFound)
}

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// Category operations

// UpsertCategory creates the category or updates the one with the same name
func (db *Database) UpsertCategory(category *Category) error {
	existing, err := db.GetCategoryByName(category.Name)
	if err != nil && !IsNotFound(err) {
		return err
	}
	if existing == nil {
		return db.store.Insert(bolthold.NextSequence(), category)
	}
	category.ID = existing.ID
	return db.store.Update(category.ID, category)
}

// GetCategory retrieves a category by ID
func (db *Database) GetCategory(id uint64) (*Category, error) {
	var category Category
	if err := db.store.Get(id, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// GetCategoryByName retrieves a category by its name
func (db *Database) GetCategoryByName(name string) (*Category, error) {
	var category Category
	if err := db.store.FindOne(&category, bolthold.Where("Name").Eq(name)); err != nil {
		return nil, err
	}
	return &category, nil
}

// ListCategories returns every category
func (db *Database) ListCategories() ([]*Category, error) {
	var categories []*Category
	err := db.store.Find(&categories, nil)
	return categories, err
}

// Download operations

// CreateDownload creates a new download item
func (db *Database) CreateDownload(item *DownloadItem) error {
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	return db.store.Insert(bolthold.NextSequence(), item)
}

// UpdateDownload updates an existing download item
func (db *Database) UpdateDownload(item *DownloadItem) error {
	item.UpdatedAt = time.Now()
	return db.store.Update(item.ID, item)
}

// GetDownload retrieves a download item by ID
func (db *Database) GetDownload(id uint64) (*DownloadItem, error) {
	var item DownloadItem
	if err := db.store.Get(id, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetDownloadByHash retrieves a download item by torrent hash
func (db *Database) GetDownloadByHash(hash string) (*DownloadItem, error) {
	var item DownloadItem
	if err := db.store.FindOne(&item, bolthold.Where("Hash").Eq(hash)); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListDownloads returns every download item
func (db *Database) ListDownloads() ([]*DownloadItem, error) {
	var items []*DownloadItem
	err := db.store.Find(&items, nil)
	return items, err
}

// GetActiveRemoteDownloads returns items that still occupy a slot on the remote client
func (db *Database) GetActiveRemoteDownloads(client Client) ([]*DownloadItem, error) {
	var items []*DownloadItem
	err := db.store.Find(&items, bolthold.Where("Client").Eq(client).And("Deleted").Eq(false))
	return items, err
}

// GetDownloadsFetching returns items whose files are being pulled locally
func (db *Database) GetDownloadsFetching() ([]*DownloadItem, error) {
	var items []*DownloadItem
	err := db.store.Find(&items,
		bolthold.Where("LocalDownload").Eq(true).
			And("LocalDownloadFinished").Eq(false))
	return items, err
}

// GetDownloadsAwaitingOrganize returns fetched items that are not fully organized yet
func (db *Database) GetDownloadsAwaitingOrganize() ([]*DownloadItem, error) {
	var fetched []*DownloadItem
	if err := db.store.Find(&fetched, bolthold.Where("LocalDownloadFinished").Eq(true)); err != nil {
		return nil, err
	}
	var items []*DownloadItem
	for _, item := range fetched {
		if !item.Done() {
			items = append(items, item)
		}
	}
	return items, nil
}

// File operations

// CreateFile creates a new file record
func (db *Database) CreateFile(file *File) error {
	return db.store.Insert(bolthold.NextSequence(), file)
}

// UpdateFile updates an existing file record
func (db *Database) UpdateFile(file *File) error {
	return db.store.Update(file.ID, file)
}

// GetFilesByDownload returns the files of a download item ordered by ID
func (db *Database) GetFilesByDownload(downloadID uint64) ([]*File, error) {
	var files []*File
	if err := db.store.Find(&files, bolthold.Where("DownloadID").Eq(downloadID)); err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID < files[j].ID })
	return files, nil
}

// Search operations

// SaveSearch stores a search and its results, replacing earlier results for the
// same query that were never linked to a download or queue entry
func (db *Database) SaveSearch(query string, results []*SearchResult) (*Search, error) {
	var previous []*Search
	if err := db.store.Find(&previous, bolthold.Where("Query").Eq(query)); err != nil {
		return nil, err
	}
	for _, search := range previous {
		var old []*SearchResult
		if err := db.store.Find(&old, bolthold.Where("SearchID").Eq(search.ID)); err != nil {
			return nil, err
		}
		keep := false
		for _, result := range old {
			if result.DownloadID != nil || result.QueueID != nil {
				keep = true
				continue
			}
			if err := db.store.Delete(result.ID, &SearchResult{}); err != nil {
				return nil, err
			}
		}
		if !keep {
			if err := db.store.Delete(search.ID, &Search{}); err != nil {
				return nil, err
			}
		}
	}

	search := &Search{Query: query, Date: time.Now()}
	if err := db.store.Insert(bolthold.NextSequence(), search); err != nil {
		return nil, err
	}
	for _, result := range results {
		result.SearchID = search.ID
		result.Query = query
		if err := db.store.Insert(bolthold.NextSequence(), result); err != nil {
			return nil, err
		}
	}
	return search, nil
}

// UpdateSearchResult updates an existing search result
func (db *Database) UpdateSearchResult(result *SearchResult) error {
	return db.store.Update(result.ID, result)
}

// GetSearchResult retrieves a search result by ID
func (db *Database) GetSearchResult(id uint64) (*SearchResult, error) {
	var result SearchResult
	if err := db.store.Get(id, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSearchResultsBySearch returns the results of one search
func (db *Database) GetSearchResultsBySearch(searchID uint64) ([]*SearchResult, error) {
	var results []*SearchResult
	if err := db.store.Find(&results, bolthold.Where("SearchID").Eq(searchID)); err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

// GetSearchResultsByQueue returns the results linked to a queued submission
func (db *Database) GetSearchResultsByQueue(queueID uint64) ([]*SearchResult, error) {
	var all []*SearchResult
	if err := db.store.Find(&all, nil); err != nil {
		return nil, err
	}
	var results []*SearchResult
	for _, result := range all {
		if result.QueueID != nil && *result.QueueID == queueID {
			results = append(results, result)
		}
	}
	return results, nil
}

// GetSearchResultByDownload returns the search result a download was started from
func (db *Database) GetSearchResultByDownload(download *DownloadItem) (*SearchResult, error) {
	var results []*SearchResult
	if download.Hash != "" {
		if err := db.store.Find(&results, bolthold.Where("Hash").Eq(download.Hash)); err != nil {
			return nil, err
		}
	}
	for _, result := range results {
		if result.DownloadID != nil && *result.DownloadID == download.ID {
			return result, nil
		}
	}
	// Results linked before the hash was known
	var all []*SearchResult
	if err := db.store.Find(&all, nil); err != nil {
		return nil, err
	}
	for _, result := range all {
		if result.DownloadID != nil && *result.DownloadID == download.ID {
			return result, nil
		}
	}
	return nil, ErrNotFound
}

// Tracked show operations

// CreateShow creates a new tracked show
func (db *Database) CreateShow(show *TrackedShow) error {
	if show.AddedAt.IsZero() {
		show.AddedAt = time.Now()
	}
	return db.store.Insert(bolthold.NextSequence(), show)
}

// UpdateShow updates an existing tracked show
func (db *Database) UpdateShow(show *TrackedShow) error {
	return db.store.Update(show.ID, show)
}

// GetShow retrieves a tracked show by ID
func (db *Database) GetShow(id uint64) (*TrackedShow, error) {
	var show TrackedShow
	if err := db.store.Get(id, &show); err != nil {
		return nil, err
	}
	return &show, nil
}

// ListShows returns every tracked show
func (db *Database) ListShows() ([]*TrackedShow, error) {
	var shows []*TrackedShow
	err := db.store.Find(&shows, nil)
	return shows, err
}

// GetDueShows returns active shows not checked within interval, never-checked first,
// then least recently checked
func (db *Database) GetDueShows(now time.Time, interval time.Duration) ([]*TrackedShow, error) {
	var active []*TrackedShow
	if err := db.store.Find(&active, bolthold.Where("Active").Eq(true)); err != nil {
		return nil, err
	}

	var due []*TrackedShow
	for _, show := range active {
		if show.LastChecked == nil || now.Sub(*show.LastChecked) >= interval {
			due = append(due, show)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i].LastChecked, due[j].LastChecked
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return a.Before(*b)
	})
	return due, nil
}

// Queue operations

// CreateQueueEntry adds a pending submission
func (db *Database) CreateQueueEntry(entry *QueueEntry) error {
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now()
	}
	return db.store.Insert(bolthold.NextSequence(), entry)
}

// DeleteQueueEntry removes a pending submission
func (db *Database) DeleteQueueEntry(id uint64) error {
	return db.store.Delete(id, &QueueEntry{})
}

// GetQueueEntryByHash finds a queued submission by info-hash
func (db *Database) GetQueueEntryByHash(hash string) (*QueueEntry, error) {
	var entry QueueEntry
	if err := db.store.FindOne(&entry, bolthold.Where("Hash").Eq(hash)); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListQueue returns queued submissions, highest priority first, newest first within a priority
func (db *Database) ListQueue() ([]*QueueEntry, error) {
	var entries []*QueueEntry
	if err := db.store.Find(&entries, nil); err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].AddedAt.After(entries[j].AddedAt)
	})
	return entries, nil
}

// Log operations

// AddLog appends an audit entry
func (db *Database) AddLog(entry *LogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	return db.store.Insert(bolthold.NextSequence(), entry)
}

// GetLogsByDownload returns the audit trail of one download in insertion order
func (db *Database) GetLogsByDownload(downloadID uint64) ([]*LogEntry, error) {
	var all []*LogEntry
	if err := db.store.Find(&all, nil); err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	var entries []*LogEntry
	for _, entry := range all {
		if entry.DownloadID != nil && *entry.DownloadID == downloadID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// RecentLogs returns the latest audit entries, newest first
func (db *Database) RecentLogs(limit int) ([]*LogEntry, error) {
	var entries []*LogEntry
	if err := db.store.Find(&entries, nil); err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
