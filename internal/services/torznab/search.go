package torznab

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/moistari/rls"
)

// Result is one indexer hit with its release name parsed
type Result struct {
	RawTitle   string
	Title      string
	Link       string // enclosure URL
	Magnet     string
	InfoHash   string
	Size       int64
	Seeders    int
	Peers      int
	Season     *int
	Episodes   []int
	Resolution string
	Codec      string
	Year       int
	PubDate    string
}

// SearchTV searches by imdb id; season and episode are optional (zero)
func (c *Client) SearchTV(ctx context.Context, imdbID string, season, episode int) ([]Result, error) {
	items, err := c.search(ctx, "tvsearch", imdbID, season, episode)
	if err != nil {
		return nil, fmt.Errorf("tv search failed: %w", err)
	}
	return convertResults(items), nil
}

// SearchMovie searches a movie by imdb id
func (c *Client) SearchMovie(ctx context.Context, imdbID string) ([]Result, error) {
	items, err := c.search(ctx, "movie", imdbID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("movie search failed: %w", err)
	}
	return convertResults(items), nil
}

// ResolveMagnet fills Magnet and InfoHash of a result that only carries a
// .torrent enclosure by downloading and parsing it
func (c *Client) ResolveMagnet(ctx context.Context, result *Result) error {
	if result.Magnet != "" {
		return nil
	}
	if result.Link == "" {
		return fmt.Errorf("no enclosure for %s", result.RawTitle)
	}

	data, err := c.DownloadTorrent(ctx, result.Link)
	if err != nil {
		return err
	}
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("invalid torrent file for %s: %w", result.RawTitle, err)
	}
	info, err := mi.UnmarshalInfo()
	if err != nil {
		return fmt.Errorf("invalid torrent info for %s: %w", result.RawTitle, err)
	}

	hash := mi.HashInfoBytes()
	result.InfoHash = hash.HexString()
	result.Magnet = metainfo.Magnet{InfoHash: hash, DisplayName: info.Name}.String()
	return nil
}

// convertResults prefers indexer attributes and falls back to the parsed release name
func convertResults(items []Item) []Result {
	results := make([]Result, 0, len(items))

	for _, item := range items {
		release := rls.ParseString(item.Title)

		result := Result{
			RawTitle:   item.Title,
			Title:      release.Title,
			Link:       item.Enclosure.URL,
			InfoHash:   strings.ToLower(GetAttributeValue(item, "infohash")),
			Size:       GetAttributeInt64(item, "size"),
			Resolution: release.Resolution,
			Year:       release.Year,
			PubDate:    item.PubDate,
		}
		if len(release.Codec) > 0 {
			result.Codec = release.Codec[0]
		}
		if result.Size == 0 {
			result.Size = item.Size
		}
		if result.Size == 0 {
			result.Size = item.Enclosure.Length
		}
		if v := GetAttributeInt(item, "seeders"); v != nil {
			result.Seeders = *v
		}
		if v := GetAttributeInt(item, "peers"); v != nil {
			result.Peers = *v
		}

		result.Season = GetAttributeInt(item, "season")
		if result.Season == nil && release.Series > 0 {
			season := release.Series
			result.Season = &season
		}
		if episode := GetAttributeInt(item, "episode"); episode != nil {
			result.Episodes = []int{*episode}
		} else if release.Episode > 0 {
			result.Episodes = []int{release.Episode}
		}

		result.Magnet = magnetFor(item, result)
		results = append(results, result)
	}

	return results
}

func magnetFor(item Item, result Result) string {
	if magnet := GetAttributeValue(item, "magneturl"); strings.HasPrefix(magnet, "magnet:") {
		return magnet
	}
	if strings.HasPrefix(item.Enclosure.URL, "magnet:") {
		return item.Enclosure.URL
	}
	if strings.HasPrefix(item.Link, "magnet:") {
		return item.Link
	}
	if result.InfoHash == "" {
		return ""
	}
	var hash metainfo.Hash
	if err := hash.FromHexString(result.InfoHash); err != nil {
		return ""
	}
	return metainfo.Magnet{InfoHash: hash, DisplayName: result.RawTitle}.String()
}
