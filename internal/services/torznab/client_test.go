package torznab

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/amaumene/torboxarr/internal/config"
	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/sirupsen/logrus"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <title>Test Indexer</title>
    <item>
      <title>Test Movie 2024 1080p BluRay x264</title>
      <link>https://example.com/download/12345.torrent</link>
      <guid>https://example.com/details/12345</guid>
      <pubDate>Mon, 01 Jan 2024 12:00:00 +0000</pubDate>
      <size>8589934592</size>
      <enclosure url="https://example.com/download/12345.torrent" length="8589934592" type="application/x-bittorrent"/>
      <torznab:attr name="seeders" value="42"/>
      <torznab:attr name="peers" value="50"/>
    </item>
    <item>
      <title>Test.Show.S01E01.1080p.WEB-DL.x265</title>
      <link>https://example.com/download/12346.torrent</link>
      <pubDate>Tue, 02 Jan 2024 12:00:00 +0000</pubDate>
      <torznab:attr name="size" value="2147483648"/>
      <torznab:attr name="season" value="1"/>
      <torznab:attr name="episode" value="1"/>
      <torznab:attr name="infohash" value="0123456789ABCDEF0123456789ABCDEF01234567"/>
    </item>
    <item>
      <title>Test.Show.S02E05.720p.HDTV</title>
      <link>magnet:?xt=urn:btih:fedcba9876543210fedcba9876543210fedcba98</link>
      <torznab:attr name="magneturl" value="magnet:?xt=urn:btih:aaaa"/>
    </item>
  </channel>
</rss>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	c, err := NewClient(&config.Config{TorznabURL: srv.URL, TorznabKey: "key"}, logger)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c
}

func TestXMLParsing(t *testing.T) {
	var response Response
	if err := xml.Unmarshal([]byte(sampleFeed), &response); err != nil {
		t.Fatalf("Failed to parse XML: %v", err)
	}

	if response.Channel.Title != "Test Indexer" {
		t.Errorf("Expected channel title 'Test Indexer', got '%s'", response.Channel.Title)
	}
	if len(response.Channel.Items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(response.Channel.Items))
	}

	movie := response.Channel.Items[0]
	if movie.Enclosure.Type != "application/x-bittorrent" {
		t.Errorf("Enclosure type mismatch: %s", movie.Enclosure.Type)
	}
	if seeders := GetAttributeInt(movie, "seeders"); seeders == nil || *seeders != 42 {
		t.Errorf("Expected 42 seeders, got %v", seeders)
	}
	if GetAttributeInt(movie, "season") != nil {
		t.Errorf("Movie should not have season attribute")
	}

	episode := response.Channel.Items[1]
	if GetAttributeInt64(episode, "size") != 2147483648 {
		t.Errorf("Episode size mismatch")
	}
}

func TestConvertResults(t *testing.T) {
	var response Response
	if err := xml.Unmarshal([]byte(sampleFeed), &response); err != nil {
		t.Fatalf("Failed to parse XML: %v", err)
	}

	results := convertResults(response.Channel.Items)
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	movie := results[0]
	if movie.Size != 8589934592 {
		t.Errorf("Expected size from item element, got %d", movie.Size)
	}
	if movie.Magnet != "" {
		t.Errorf("Movie without hash should not have a magnet, got %s", movie.Magnet)
	}
	if movie.Season != nil {
		t.Errorf("Movie should not have a season")
	}
	if movie.Seeders != 42 || movie.Peers != 50 {
		t.Errorf("Seeders/peers mismatch: %d/%d", movie.Seeders, movie.Peers)
	}

	episode := results[1]
	if episode.InfoHash != "0123456789abcdef0123456789abcdef01234567" {
		t.Errorf("Info hash should be lowercased, got %s", episode.InfoHash)
	}
	if !strings.HasPrefix(episode.Magnet, "magnet:?xt=urn:btih:0123456789abcdef") {
		t.Errorf("Expected magnet built from info hash, got %s", episode.Magnet)
	}
	if episode.Season == nil || *episode.Season != 1 {
		t.Errorf("Expected season 1, got %v", episode.Season)
	}
	if len(episode.Episodes) != 1 || episode.Episodes[0] != 1 {
		t.Errorf("Expected episode 1, got %v", episode.Episodes)
	}
	if episode.Resolution != "1080p" {
		t.Errorf("Expected resolution 1080p, got %s", episode.Resolution)
	}

	// no season/episode attributes: parsed from the release name
	fallback := results[2]
	if fallback.Season == nil || *fallback.Season != 2 {
		t.Errorf("Expected season 2 from title, got %v", fallback.Season)
	}
	if len(fallback.Episodes) != 1 || fallback.Episodes[0] != 5 {
		t.Errorf("Expected episode 5 from title, got %v", fallback.Episodes)
	}
	if fallback.Magnet != "magnet:?xt=urn:btih:aaaa" {
		t.Errorf("magneturl attribute should win, got %s", fallback.Magnet)
	}
}

func TestSearchTV(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/api" {
			t.Errorf("Expected /api path, got %s", r.URL.Path)
		}
		if q.Get("t") != "tvsearch" || q.Get("imdbid") != "tt0944947" || q.Get("apikey") != "key" {
			t.Errorf("Unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("season") != "1" || q.Get("ep") != "" {
			t.Errorf("Unexpected season/episode: %s", r.URL.RawQuery)
		}
		w.Write([]byte(sampleFeed))
	})

	results, err := c.SearchTV(context.Background(), "tt0944947", 1, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Expected 3 results, got %d", len(results))
	}
}

func TestSearchClientErrorIsNotRetried(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	})

	if _, err := c.SearchMovie(context.Background(), "tt1"); err == nil {
		t.Fatalf("Expected an error")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestResolveMagnet(t *testing.T) {
	info := metainfo.Info{
		Name:        "Test.Movie.2024.1080p",
		PieceLength: 16384,
		Pieces:      make([]byte, 20),
		Length:      10,
	}
	infoBytes, err := bencode.Marshal(info)
	if err != nil {
		t.Fatalf("Failed to encode info: %v", err)
	}
	mi := metainfo.MetaInfo{InfoBytes: infoBytes}
	var buf bytes.Buffer
	if err := mi.Write(&buf); err != nil {
		t.Fatalf("Failed to write torrent: %v", err)
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(buf.Bytes())
	})

	result := Result{RawTitle: "Test.Movie.2024.1080p", Link: c.baseURL + "/download/1.torrent"}
	if err := c.ResolveMagnet(context.Background(), &result); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if result.InfoHash != mi.HashInfoBytes().HexString() {
		t.Errorf("Info hash mismatch: %s", result.InfoHash)
	}
	if !strings.Contains(result.Magnet, result.InfoHash) {
		t.Errorf("Magnet should carry the info hash: %s", result.Magnet)
	}

	empty := Result{RawTitle: "nothing"}
	if err := c.ResolveMagnet(context.Background(), &empty); err == nil {
		t.Errorf("Expected an error without enclosure")
	}
}
