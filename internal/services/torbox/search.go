package torbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ParsedTitle is the metadata the search API extracts from a release name
type ParsedTitle struct {
	Year        int      `json:"year"`
	Resolution  string   `json:"resolution"`
	Codec       string   `json:"codec"`
	Season      flexInts `json:"season"`
	Episode     flexInts `json:"episode"`
	EpisodeName string   `json:"episodeName"`
}

// SearchTorrent is one search API hit
type SearchTorrent struct {
	Hash             string       `json:"hash"`
	RawTitle         string       `json:"raw_title"`
	Title            string       `json:"title"`
	Magnet           string       `json:"magnet"`
	Age              string       `json:"age"`
	Size             int64        `json:"size"`
	Cached           bool         `json:"cached"`
	Owned            bool         `json:"owned"`
	LastKnownSeeders int          `json:"last_known_seeders"`
	LastKnownPeers   int          `json:"last_known_peers"`
	Parsed           *ParsedTitle `json:"title_parsed_data"`
}

type searchData struct {
	Torrents []SearchTorrent `json:"torrents"`
}

// SearchTorrents looks up releases by imdb id. Zero season or episode is not sent.
func (c *Client) SearchTorrents(ctx context.Context, imdbID string, season, episode int) ([]SearchTorrent, error) {
	params := url.Values{}
	params.Set("metadata", "true")
	params.Set("check_cache", "true")
	params.Set("check_owned", "true")
	params.Set("search_user_engines", "true")
	if season > 0 {
		params.Set("season", strconv.Itoa(season))
	}
	if episode > 0 {
		params.Set("episode", strconv.Itoa(episode))
	}

	endpoint := fmt.Sprintf("%s/torrents/imdb:%s?%s", c.searchURL, url.PathEscape(imdbID), params.Encode())
	c.logger.WithFields(map[string]interface{}{
		"imdb_id": imdbID,
		"season":  season,
		"episode": episode,
	}).Debug("Searching TorBox")

	var result Response[searchData]
	if err := c.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	if err := result.err(); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return result.Data.Torrents, nil
}

// flexInts accepts a number, a numeric string, a comma-separated string or an array of either
type flexInts []int

func (f *flexInts) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = nil
		return nil
	}

	var list []json.RawMessage
	if data[0] == '[' {
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
	} else {
		list = []json.RawMessage{data}
	}

	var out []int
	for _, raw := range list {
		var n int
		if err := json.Unmarshal(raw, &n); err == nil {
			out = append(out, n)
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("unexpected value %s", string(raw))
		}
		for _, part := range strings.Split(s, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				out = append(out, n)
			}
		}
	}
	*f = out
	return nil
}
