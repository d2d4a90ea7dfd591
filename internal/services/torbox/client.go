package torbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amaumene/torboxarr/internal/config"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const apiVersion = "v1"

// Client talks to the TorBox REST and search APIs
type Client struct {
	apiKey     string
	baseURL    string // https://api.torbox.app/v1/api
	searchURL  string // https://search-api.torbox.app
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new TorBox client
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.TorBoxAPIKey == "" {
		return nil, fmt.Errorf("TorBox API key is required")
	}

	return &Client{
		apiKey:     cfg.TorBoxAPIKey,
		baseURL:    fmt.Sprintf("https://%s.%s/%s/api", cfg.TorBoxAPI, cfg.TorBoxHost, apiVersion),
		searchURL:  fmt.Sprintf("https://%s.%s", cfg.TorBoxSearchAPI, cfg.TorBoxHost),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

// Response is the envelope every TorBox endpoint returns
type Response[T any] struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
	Detail  string  `json:"detail"`
	Data    T       `json:"data"`
}

func (r *Response[T]) err() error {
	if r.Success {
		return nil
	}
	if r.Error != nil && *r.Error != "" {
		return fmt.Errorf("%s: %s", *r.Error, r.Detail)
	}
	return fmt.Errorf("request failed: %s", r.Detail)
}

// get performs an authenticated GET, retrying transient failures
func (c *Client) get(ctx context.Context, url string, out any) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		return c.do(req, out)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(op, b)
}

// do executes req and decodes the JSON body. Client errors are not retried.
func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		err := fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"url":         req.URL.Path,
		"status_code": resp.StatusCode,
	}).Debug("TorBox API response")

	if err := json.Unmarshal(body, out); err != nil {
		return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
