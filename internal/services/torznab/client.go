package torznab

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/amaumene/torboxarr/internal/config"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Response represents the XML RSS response of a Torznab indexer
type Response struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

// Channel represents the channel element in RSS
type Channel struct {
	Title string `xml:"title"`
	Items []Item `xml:"item"`
}

// Item represents a single search result
type Item struct {
	Title      string      `xml:"title"`
	Link       string      `xml:"link"`
	GUID       string      `xml:"guid"`
	PubDate    string      `xml:"pubDate"`
	Size       int64       `xml:"size"`
	Enclosure  Enclosure   `xml:"enclosure"`
	Attributes []Attribute `xml:"attr"`
}

// Enclosure holds the .torrent or magnet URL
type Enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// Attribute represents a torznab:attr element (seeders, infohash, season...)
type Attribute struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Client wraps direct Torznab API HTTP calls
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new Torznab client
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.TorznabURL == "" {
		return nil, fmt.Errorf("torznab URL is required")
	}
	if cfg.TorznabKey == "" {
		return nil, fmt.Errorf("torznab API key is required")
	}

	return &Client{
		baseURL: cfg.TorznabURL,
		apiKey:  cfg.TorznabKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}, nil
}

// search performs a Torznab query. season and episode are sent when positive.
func (c *Client) search(ctx context.Context, searchType, imdbID string, season, episode int) ([]Item, error) {
	apiURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid torznab URL: %w", err)
	}
	if apiURL.Path == "" || apiURL.Path == "/" {
		apiURL.Path = "/api"
	}

	params := url.Values{}
	params.Add("t", searchType)
	params.Add("apikey", c.apiKey)
	params.Add("imdbid", imdbID)
	if season > 0 {
		params.Add("season", strconv.Itoa(season))
	}
	if episode > 0 {
		params.Add("ep", strconv.Itoa(episode))
	}
	apiURL.RawQuery = params.Encode()

	c.logger.WithFields(logrus.Fields{
		"search_type": searchType,
		"imdb_id":     imdbID,
		"season":      season,
		"episode":     episode,
	}).Debug("Performing Torznab search")

	var response Response
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL.String(), nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", "torboxarr/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("torznab API request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			err := fmt.Errorf("torznab API returned status %d: %s", resp.StatusCode, string(body))
			if resp.StatusCode < 500 {
				return backoff.Permanent(err)
			}
			return err
		}

		if err := xml.NewDecoder(resp.Body).Decode(&response); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to parse XML response: %w", err))
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}

	c.logger.WithField("count", len(response.Channel.Items)).Debug("Torznab search completed")
	return response.Channel.Items, nil
}

// GetAttributeValue extracts an attribute value by name from an Item
func GetAttributeValue(item Item, attrName string) string {
	for _, attr := range item.Attributes {
		if attr.Name == attrName {
			return attr.Value
		}
	}
	return ""
}

// GetAttributeInt extracts an attribute value as integer
func GetAttributeInt(item Item, attrName string) *int {
	value := GetAttributeValue(item, attrName)
	if value == "" {
		return nil
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return nil
	}

	return &intVal
}

// GetAttributeInt64 extracts an attribute value as int64
func GetAttributeInt64(item Item, attrName string) int64 {
	value := GetAttributeValue(item, attrName)
	if value == "" {
		return 0
	}

	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}

	return intVal
}

// DownloadTorrent fetches a .torrent file from an enclosure URL
func (c *Client) DownloadTorrent(ctx context.Context, enclosureURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, enclosureURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create torrent download request: %w", err)
	}
	req.Header.Set("User-Agent", "torboxarr/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download torrent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("torrent download failed with status %d", resp.StatusCode)
	}

	const maxTorrentSize = 10 * 1024 * 1024
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTorrentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read torrent content: %w", err)
	}

	c.logger.WithField("size_bytes", len(data)).Debug("Torrent file downloaded")
	return data, nil
}
