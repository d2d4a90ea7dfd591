package models

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpsertCategoryKeepsID(t *testing.T) {
	db := newTestDB(t)

	movies := &Category{Name: "Movies", Action: ActionNothing}
	require.NoError(t, db.UpsertCategory(movies))
	require.NotZero(t, movies.ID)

	updated := &Category{Name: "Movies", Action: ActionMove, TargetDir: "/media/movies"}
	require.NoError(t, db.UpsertCategory(updated))
	assert.Equal(t, movies.ID, updated.ID)

	got, err := db.GetCategoryByName("Movies")
	require.NoError(t, err)
	assert.Equal(t, ActionMove, got.Action)
	assert.Equal(t, "/media/movies", got.TargetDir)

	_, err = db.GetCategoryByName("Missing")
	assert.True(t, IsNotFound(err))
}

func TestDownloadAndFiles(t *testing.T) {
	db := newTestDB(t)

	item := &DownloadItem{Name: "Some.Show.S01E01", Hash: "abc", Client: ClientTorBox}
	require.NoError(t, db.CreateDownload(item))
	require.NotZero(t, item.ID)

	for _, name := range []string{"b.mkv", "a.nfo"} {
		require.NoError(t, db.CreateFile(&File{DownloadID: item.ID, Name: name, ShortName: name}))
	}
	require.NoError(t, db.CreateFile(&File{DownloadID: item.ID + 100, Name: "other.mkv"}))

	files, err := db.GetFilesByDownload(item.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "b.mkv", files[0].Name)

	byHash, err := db.GetDownloadByHash("abc")
	require.NoError(t, err)
	assert.Equal(t, item.ID, byHash.ID)

	active, err := db.GetActiveRemoteDownloads(ClientTorBox)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	item.Deleted = true
	require.NoError(t, db.UpdateDownload(item))
	active, err = db.GetActiveRemoteDownloads(ClientTorBox)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestGetDownloadsAwaitingOrganize(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()

	pending := &DownloadItem{Name: "pending", LocalDownload: true, LocalDownloadFinished: true}
	done := &DownloadItem{Name: "done", LocalDownload: true, LocalDownloadFinished: true, FinishedAt: &now}
	fetching := &DownloadItem{Name: "fetching", LocalDownload: true}
	for _, item := range []*DownloadItem{pending, done, fetching} {
		require.NoError(t, db.CreateDownload(item))
	}

	awaiting, err := db.GetDownloadsAwaitingOrganize()
	require.NoError(t, err)
	require.Len(t, awaiting, 1)
	assert.Equal(t, "pending", awaiting[0].Name)

	inFlight, err := db.GetDownloadsFetching()
	require.NoError(t, err)
	require.Len(t, inFlight, 1)
	assert.Equal(t, "fetching", inFlight[0].Name)
}

func TestSaveSearchReplacesUnlinkedResults(t *testing.T) {
	db := newTestDB(t)
	query := BuildQuery("tt001", 1, 2)
	assert.Equal(t, "tt001/s1/e2", query)

	first, err := db.SaveSearch(query, []*SearchResult{{Hash: "h1"}, {Hash: "h2"}})
	require.NoError(t, err)
	results, err := db.GetSearchResultsBySearch(first.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, query, results[0].Query)

	downloadID := uint64(9)
	results[0].DownloadID = &downloadID
	require.NoError(t, db.UpdateSearchResult(results[0]))

	second, err := db.SaveSearch(query, []*SearchResult{{Hash: "h3"}})
	require.NoError(t, err)

	kept, err := db.GetSearchResultsBySearch(first.ID)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "h1", kept[0].Hash)

	fresh, err := db.GetSearchResultsBySearch(second.ID)
	require.NoError(t, err)
	require.Len(t, fresh, 1)

	linked, err := db.GetSearchResultByDownload(&DownloadItem{ID: downloadID, Hash: "h1"})
	require.NoError(t, err)
	assert.Equal(t, "h1", linked.Hash)

	_, err = db.GetSearchResultByDownload(&DownloadItem{ID: 42})
	assert.True(t, IsNotFound(err))
}

func TestGetDueShowsOrdering(t *testing.T) {
	db := newTestDB(t)
	now := time.Now()
	old := now.Add(-72 * time.Hour)
	older := now.Add(-96 * time.Hour)
	recent := now.Add(-time.Hour)

	shows := []*TrackedShow{
		{Title: "old", Active: true, LastChecked: &old},
		{Title: "never", Active: true},
		{Title: "older", Active: true, LastChecked: &older},
		{Title: "recent", Active: true, LastChecked: &recent},
		{Title: "inactive", Active: false},
	}
	for _, show := range shows {
		require.NoError(t, db.CreateShow(show))
	}

	due, err := db.GetDueShows(now, 24*time.Hour)
	require.NoError(t, err)
	var titles []string
	for _, show := range due {
		titles = append(titles, show.Title)
	}
	assert.Equal(t, []string{"never", "older", "old"}, titles)
}

func TestListQueueOrder(t *testing.T) {
	db := newTestDB(t)
	base := time.Now()

	require.NoError(t, db.CreateQueueEntry(&QueueEntry{Magnet: "low", AddedAt: base}))
	require.NoError(t, db.CreateQueueEntry(&QueueEntry{Magnet: "high-old", Priority: 5, AddedAt: base.Add(-time.Hour)}))
	require.NoError(t, db.CreateQueueEntry(&QueueEntry{Magnet: "high-new", Priority: 5, AddedAt: base}))

	entries, err := db.ListQueue()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "high-new", entries[0].Magnet)
	assert.Equal(t, "high-old", entries[1].Magnet)
	assert.Equal(t, "low", entries[2].Magnet)

	require.NoError(t, db.DeleteQueueEntry(entries[0].ID))
	entries, err = db.ListQueue()
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestLogsByDownload(t *testing.T) {
	db := newTestDB(t)
	id := uint64(3)
	other := uint64(4)

	require.NoError(t, db.AddLog(&LogEntry{Level: LogInfo, Message: "first", DownloadID: &id}))
	require.NoError(t, db.AddLog(&LogEntry{Level: LogInfo, Message: "unrelated", DownloadID: &other}))
	require.NoError(t, db.AddLog(&LogEntry{Level: LogError, Message: "second", DownloadID: &id}))
	require.NoError(t, db.AddLog(&LogEntry{Level: LogWarning, Message: "global"}))

	logs, err := db.GetLogsByDownload(id)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "first", logs[0].Message)
	assert.Equal(t, "second", logs[1].Message)
}

func TestSearchResultHelpers(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, ParseEpisodes("1, 2,x,3,2"))
	assert.Empty(t, ParseEpisodes(""))
	assert.Equal(t, "tt1", BuildQuery("tt1", 0, 4))
	assert.Equal(t, "tt1/s3", BuildQuery("tt1", 3, 0))

	r := &SearchResult{Episodes: []int{4, 9, 2}}
	assert.True(t, r.HasEpisode(9))
	assert.False(t, r.HasEpisode(1))
	assert.Equal(t, 9, r.MaxEpisode())
	assert.Equal(t, 0, (&SearchResult{}).MaxEpisode())
}
