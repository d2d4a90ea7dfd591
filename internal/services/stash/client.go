// Package stash triggers library scans on a Stash media server.
package stash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/amaumene/torboxarr/internal/config"
	"github.com/sirupsen/logrus"
)

const scanMutation = "mutation MetadataScan($input: ScanMetadataInput!) {\n  metadataScan(input: $input)\n}"

// Client sends GraphQL mutations to Stash
type Client struct {
	endpoint   string
	apiKey     string
	rootDir    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a client for http://STASH_HOST:STASH_PORT/graphql
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	return &Client{
		endpoint: fmt.Sprintf("http://%s:%d/graphql", cfg.StashHost, cfg.StashPort),
		apiKey:   cfg.StashAPIKey,
		rootDir:  cfg.StashRootDir,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type scanInput struct {
	Rescan                    bool     `json:"rescan"`
	ScanGenerateClipPreviews  bool     `json:"scanGenerateClipPreviews"`
	ScanGenerateCovers        bool     `json:"scanGenerateCovers"`
	ScanGenerateImagePreviews bool     `json:"scanGenerateImagePreviews"`
	ScanGeneratePhashes       bool     `json:"scanGeneratePhashes"`
	ScanGeneratePreviews      bool     `json:"scanGeneratePreviews"`
	ScanGenerateSprites       bool     `json:"scanGenerateSprites"`
	ScanGenerateThumbnails    bool     `json:"scanGenerateThumbnails"`
	Paths                     []string `json:"paths"`
}

type graphQLRequest struct {
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
	Query         string                 `json:"query"`
}

type graphQLResponse struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Scan asks Stash to rescan folder, relative to STASH_ROOT_DIR
func (c *Client) Scan(ctx context.Context, folder string) error {
	scanPath := path.Join(c.rootDir, folder)
	request := graphQLRequest{
		OperationName: "MetadataScan",
		Variables: map[string]interface{}{
			"input": scanInput{
				Rescan:                    true,
				ScanGenerateClipPreviews:  true,
				ScanGenerateCovers:        true,
				ScanGenerateImagePreviews: true,
				ScanGeneratePhashes:       true,
				ScanGeneratePreviews:      true,
				ScanGenerateSprites:       true,
				ScanGenerateThumbnails:    true,
				Paths:                     []string{scanPath},
			},
		},
		Query: scanMutation,
	}
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode scan request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("ApiKey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stash request failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stash returned status %d: %s", resp.StatusCode, string(data))
	}

	var response graphQLResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return fmt.Errorf("failed to decode stash response: %w", err)
	}
	if len(response.Errors) > 0 {
		return fmt.Errorf("stash scan failed: %s", response.Errors[0].Message)
	}

	c.logger.WithField("path", scanPath).Debug("Stash scan started")
	return nil
}

// Rescan is Scan reporting only success, for callers that treat a failed scan as a warning
func (c *Client) Rescan(ctx context.Context, folder string) bool {
	if err := c.Scan(ctx, folder); err != nil {
		c.logger.WithError(err).WithField("folder", folder).Error("Could not start scan on Stash")
		return false
	}
	return true
}

// Validate checks Stash is reachable by scanning the root directory
func (c *Client) Validate(ctx context.Context) error {
	return c.Scan(ctx, "")
}
