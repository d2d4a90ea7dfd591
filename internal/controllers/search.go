package controllers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amaumene/torboxarr/internal/metrics"
	"github.com/amaumene/torboxarr/internal/models"
	"github.com/amaumene/torboxarr/internal/services/torbox"
	"github.com/amaumene/torboxarr/internal/services/torznab"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/sirupsen/logrus"
)

// SearchProvider finds candidate torrents for an external id. Zero season or
// episode means "any".
type SearchProvider interface {
	Name() string
	Search(ctx context.Context, externalID string, season, episode int) ([]*models.SearchResult, error)
}

// TorBoxSearch searches through the TorBox search API
type TorBoxSearch struct {
	client *torbox.Client
}

// NewTorBoxSearch creates a provider backed by the TorBox search API
func NewTorBoxSearch(client *torbox.Client) *TorBoxSearch {
	return &TorBoxSearch{client: client}
}

func (s *TorBoxSearch) Name() string { return "torbox" }

func (s *TorBoxSearch) Search(ctx context.Context, externalID string, season, episode int) ([]*models.SearchResult, error) {
	torrents, err := s.client.SearchTorrents(ctx, externalID, season, episode)
	if err != nil {
		return nil, err
	}

	results := make([]*models.SearchResult, 0, len(torrents))
	for _, t := range torrents {
		result := &models.SearchResult{
			Hash:     strings.ToLower(t.Hash),
			RawTitle: t.RawTitle,
			Title:    t.Title,
			Magnet:   t.Magnet,
			Age:      t.Age,
			Cached:   t.Cached,
			Seeders:  t.LastKnownSeeders,
			Peers:    t.LastKnownPeers,
			Size:     t.Size,
		}
		if p := t.Parsed; p != nil {
			result.Resolution = p.Resolution
			result.Year = p.Year
			result.Codec = p.Codec
			result.EpisodeName = p.EpisodeName
			if len(p.Season) > 0 {
				season := p.Season[0]
				result.Season = &season
			}
			result.Episodes = uniqueInts(p.Episode)
		}
		if result.Magnet == "" {
			result.Magnet = magnetFromHash(result.Hash, result.RawTitle)
		}
		results = append(results, result)
	}
	return results, nil
}

// TorznabSearch searches a Torznab indexer
type TorznabSearch struct {
	client *torznab.Client
	logger *logrus.Logger
}

// NewTorznabSearch creates a provider backed by a Torznab indexer
func NewTorznabSearch(client *torznab.Client, logger *logrus.Logger) *TorznabSearch {
	return &TorznabSearch{client: client, logger: logger}
}

func (s *TorznabSearch) Name() string { return "torznab" }

func (s *TorznabSearch) Search(ctx context.Context, externalID string, season, episode int) ([]*models.SearchResult, error) {
	var hits []torznab.Result
	var err error
	if season > 0 {
		hits, err = s.client.SearchTV(ctx, externalID, season, episode)
	} else {
		hits, err = s.client.SearchMovie(ctx, externalID)
	}
	if err != nil {
		return nil, err
	}

	results := make([]*models.SearchResult, 0, len(hits))
	for i := range hits {
		hit := &hits[i]
		if hit.Magnet == "" {
			if err := s.client.ResolveMagnet(ctx, hit); err != nil {
				s.logger.WithError(err).WithField("title", hit.RawTitle).Debug("Skipping result without magnet")
				continue
			}
		}
		hash := hit.InfoHash
		if hash == "" {
			hash = hashFromMagnet(hit.Magnet)
		}
		results = append(results, &models.SearchResult{
			Hash:       hash,
			RawTitle:   hit.RawTitle,
			Title:      hit.Title,
			Resolution: hit.Resolution,
			Year:       hit.Year,
			Codec:      hit.Codec,
			Season:     hit.Season,
			Episodes:   uniqueInts(hit.Episodes),
			Magnet:     hit.Magnet,
			Age:        hit.PubDate,
			Seeders:    hit.Seeders,
			Peers:      hit.Peers,
			Size:       hit.Size,
		})
	}
	return results, nil
}

// SearchController runs searches and keeps their results as the candidate cache
type SearchController struct {
	db       *models.Database
	provider SearchProvider
	logger   *logrus.Logger
}

// NewSearchController creates a new search controller
func NewSearchController(db *models.Database, provider SearchProvider, logger *logrus.Logger) *SearchController {
	return &SearchController{
		db:       db,
		provider: provider,
		logger:   logger,
	}
}

// Search queries the provider, replaces the previous results of the same query
// and links results whose hash is already known locally
func (c *SearchController) Search(ctx context.Context, externalID string, season, episode int) ([]*models.SearchResult, error) {
	query := models.BuildQuery(externalID, season, episode)
	log := c.logger.WithFields(logrus.Fields{
		"provider": c.provider.Name(),
		"query":    query,
	})

	start := time.Now()
	results, err := c.provider.Search(ctx, externalID, season, episode)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s search for %s failed: %w", c.provider.Name(), query, err)
	}

	for _, result := range results {
		c.link(result)
	}

	if _, err := c.db.SaveSearch(query, results); err != nil {
		return nil, fmt.Errorf("failed to save search results: %w", err)
	}

	log.WithField("count", len(results)).Info("Search completed")
	return results, nil
}

func (c *SearchController) link(result *models.SearchResult) {
	if result.Hash == "" {
		return
	}
	if item, err := c.db.GetDownloadByHash(result.Hash); err == nil && !item.Deleted {
		id := item.ID
		result.DownloadID = &id
		return
	}
	if entry, err := c.db.GetQueueEntryByHash(result.Hash); err == nil {
		id := entry.ID
		result.QueueID = &id
	}
}

func uniqueInts(values []int) []int {
	var out []int
	seen := make(map[int]bool, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func magnetFromHash(hash, name string) string {
	var h metainfo.Hash
	if err := h.FromHexString(hash); err != nil {
		return ""
	}
	return metainfo.Magnet{InfoHash: h, DisplayName: name}.String()
}

func hashFromMagnet(magnet string) string {
	m, err := metainfo.ParseMagnetUri(magnet)
	if err != nil {
		return ""
	}
	return m.InfoHash.HexString()
}
