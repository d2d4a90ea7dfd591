package torbox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/amaumene/torboxarr/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	c, err := NewClient(&config.Config{TorBoxAPIKey: "secret", TorBoxAPI: "api", TorBoxHost: "torbox.app", TorBoxSearchAPI: "search-api"}, logger)
	require.NoError(t, err)
	c.baseURL = srv.URL + "/v1/api"
	c.searchURL = srv.URL
	return c
}

func TestNewClientURLs(t *testing.T) {
	c, err := NewClient(&config.Config{TorBoxAPIKey: "k", TorBoxAPI: "api", TorBoxHost: "torbox.app", TorBoxSearchAPI: "search-api"}, logrus.New())
	require.NoError(t, err)
	assert.Equal(t, "https://api.torbox.app/v1/api", c.baseURL)
	assert.Equal(t, "https://search-api.torbox.app", c.searchURL)

	_, err = NewClient(&config.Config{}, logrus.New())
	assert.Error(t, err)
}

func TestCreateTorrentWithMagnet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/api/torrents/createtorrent", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "magnet:?xt=urn:btih:abc", r.FormValue("magnet"))
		w.Write([]byte(`{"success":true,"detail":"ok","data":{"hash":"abc","torrent_id":42}}`))
	})

	data, err := c.CreateTorrent(context.Background(), "magnet:?xt=urn:btih:abc", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 42, data.TorrentID)
	assert.Equal(t, "abc", data.Hash)
}

func TestCreateTorrentWithFile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "show.torrent", header.Filename)
		assert.Equal(t, "d8:announce", string(content))
		w.Write([]byte(`{"success":true,"data":{"hash":"def","torrent_id":7}}`))
	})

	data, err := c.CreateTorrent(context.Background(), "", []byte("d8:announce"), "show.torrent")
	require.NoError(t, err)
	assert.Equal(t, 7, data.TorrentID)

	_, err = c.CreateTorrent(context.Background(), "", nil, "")
	assert.Error(t, err)
}

func TestCreateTorrentFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"ACTIVE_LIMIT","detail":"too many active"}`))
	})

	_, err := c.CreateTorrent(context.Background(), "magnet:?xt=urn:btih:abc", nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACTIVE_LIMIT")
}

func TestListTorrentsRetriesServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("bypass_cache"))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"success":true,"data":[{"id":1,"hash":"abc","name":"Show.S01E01","download_finished":true,
			"files":[{"id":0,"name":"Show.S01E01/Show.S01E01.mkv","short_name":"Show.S01E01.mkv","size":10,"mimetype":"video/x-matroska"}]}]}`))
	})

	torrents, err := c.ListTorrents(context.Background())
	require.NoError(t, err)
	require.Len(t, torrents, 1)
	assert.True(t, torrents[0].DownloadFinished)
	assert.Equal(t, "Show.S01E01.mkv", torrents[0].Files[0].ShortName)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.ListTorrents(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestControlTorrent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/api/torrents/controltorrent", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 5, body["torrent_id"])
		assert.Equal(t, "delete", body["operation"])
		w.Write([]byte(`{"success":true,"data":null}`))
	})

	require.NoError(t, c.DeleteTorrent(context.Background(), 5))
}

func TestRequestDownloadLink(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "secret", q.Get("token"))
		assert.Equal(t, "3", q.Get("torrent_id"))
		assert.Equal(t, "9", q.Get("file_id"))
		w.Write([]byte(`{"success":true,"data":"https://cdn.example/file"}`))
	})

	link, err := c.RequestDownloadLink(context.Background(), 3, 9)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/file", link)
}

func TestMaxSlots(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/api/user/me", r.URL.Path)
		w.Write([]byte(`{"success":true,"data":{"plan":3,"additional_concurrent_slots":2}}`))
	})

	slots, err := c.MaxSlots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, slots)

	assert.Equal(t, 3, (&User{Plan: 1}).Slots())
	assert.Equal(t, 10, (&User{Plan: 2}).Slots())
	assert.Equal(t, 0, (&User{Plan: 0}).Slots())
}

func TestSearchTorrents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/torrents/imdb:tt0944947", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("season"))
		assert.Empty(t, r.URL.Query().Get("episode"))
		w.Write([]byte(`{"success":true,"data":{"torrents":[
			{"hash":"a","raw_title":"Show.S02E01.1080p","title":"Show","cached":true,"last_known_seeders":5,
			 "title_parsed_data":{"season":2,"episode":1,"resolution":"1080p"}},
			{"hash":"b","raw_title":"Show.S02E01-03","title":"Show",
			 "title_parsed_data":{"season":"2","episode":[1,2,"3"]}},
			{"hash":"c","raw_title":"Show.S02","title":"Show","title_parsed_data":{"season":[2]}}
		]}}`))
	})

	results, err := c.SearchTorrents(context.Background(), "tt0944947", 2, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, flexInts{2}, results[0].Parsed.Season)
	assert.Equal(t, flexInts{1}, results[0].Parsed.Episode)
	assert.Equal(t, flexInts{1, 2, 3}, results[1].Parsed.Episode)
	assert.Empty(t, results[2].Parsed.Episode)
	assert.True(t, results[0].Cached)
}

func TestNotification(t *testing.T) {
	tests := []struct {
		title, message string
		event          Event
		name, hash     string
	}{
		{
			title:   "Torrent Download Completed",
			message: "Your download Show.S03E01.720p has completed",
			event:   EventCompleted,
			name:    "Show.S03E01.720p",
		},
		{
			title:   "Torrent Download Failed",
			message: "The torrent with hash " + strings.Repeat("AB", 20) + " failed",
			event:   EventFailed,
			hash:    strings.Repeat("ab", 20),
		},
		{
			title:   "Download Ready",
			message: "Your download Some Movie 2020 is ready to download",
			event:   EventCompleted,
			name:    "Some Movie 2020",
		},
		{
			title:   "Plan renewed",
			message: "Thanks",
			event:   EventOther,
		},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			var n Notification
			n.Data.Title = tt.title
			n.Data.Message = tt.message
			assert.Equal(t, tt.event, n.Event())
			assert.Equal(t, tt.name, n.DownloadName())
			assert.Equal(t, tt.hash, n.Hash())
		})
	}
}
