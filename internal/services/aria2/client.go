// Package aria2 talks to an aria2c JSON-RPC endpoint that pulls finished files
// from TorBox onto local storage.
package aria2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/torboxarr/internal/config"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Client wraps aria2 JSON-RPC calls
type Client struct {
	endpoint   string
	secret     string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a client for http://ARIA2_HOST:ARIA2_PORT/jsonrpc
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	return &Client{
		endpoint: fmt.Sprintf("http://%s:%d/jsonrpc", cfg.Aria2Host, cfg.Aria2Port),
		secret:   cfg.Aria2Secret,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// Status is the subset of aria2.tellStatus used to track a fetch
type Status struct {
	GID             string       `json:"gid"`
	Status          string       `json:"status"` // active, waiting, paused, error, complete, removed
	Dir             string       `json:"dir"`
	CompletedLength string       `json:"completedLength"`
	TotalLength     string       `json:"totalLength"`
	ErrorCode       string       `json:"errorCode"`
	ErrorMessage    string       `json:"errorMessage"`
	Files           []StatusFile `json:"files"`
}

// StatusFile is one file of an aria2 download
type StatusFile struct {
	Path            string `json:"path"`
	Length          string `json:"length"`
	CompletedLength string `json:"completedLength"`
}

// Complete reports whether aria2 finished the download
func (s *Status) Complete() bool {
	return s.Status == "complete"
}

// Path is the local path of the single file of the download
func (s *Status) Path() string {
	if len(s.Files) == 0 {
		return ""
	}
	return s.Files[0].Path
}

// Progress is the completed fraction, 1 once complete
func (s *Status) Progress() float64 {
	if s.Complete() {
		return 1
	}
	completed, _ := strconv.ParseFloat(s.CompletedLength, 64)
	total, _ := strconv.ParseFloat(s.TotalLength, 64)
	if total <= 0 {
		return 0
	}
	return completed / total
}

// Failure returns the aria2 error message, empty when the download is healthy
func (s *Status) Failure() string {
	if s.ErrorCode == "" || s.ErrorCode == "0" {
		return ""
	}
	if s.ErrorMessage != "" {
		return s.ErrorMessage
	}
	return "aria2 error code " + s.ErrorCode
}

// call sends one JSON-RPC request. The secret token is always the first parameter;
// aria2 ignores it when no secret is configured.
func (c *Client) call(ctx context.Context, method string, retry bool, out interface{}, params ...interface{}) error {
	request := rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  append([]interface{}{"token:" + c.secret}, params...),
	}
	body, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}
	c.logger.WithField("query", c.censor(string(body))).Debug("aria2 query")

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("aria2 %s request failed: %w", method, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read aria2 response: %w", err)
		}

		var response rpcResponse
		if err := json.Unmarshal(data, &response); err != nil {
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("aria2 returned status %d: %s", resp.StatusCode, string(data))
			}
			return backoff.Permanent(fmt.Errorf("failed to decode aria2 response: %w", err))
		}
		if response.Error != nil {
			return backoff.Permanent(fmt.Errorf("aria2 %s failed: %s (code %d)", method, response.Error.Message, response.Error.Code))
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(response.Result, out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode aria2 %s result: %w", method, err))
		}
		return nil
	}

	var b backoff.BackOff = &backoff.StopBackOff{}
	if retry {
		b = backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	}
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

func (c *Client) censor(query string) string {
	if c.secret == "" {
		return query
	}
	return strings.ReplaceAll(query, c.secret, "***")
}

// GetVersion checks the RPC endpoint is reachable and returns the aria2 version
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	var result struct {
		Version string `json:"version"`
	}
	if err := c.call(ctx, "aria2.getVersion", true, &result); err != nil {
		return "", err
	}
	return result.Version, nil
}

// AddURI starts fetching link into dir/out and returns the aria2 gid.
// It is not retried so a lost response never queues the file twice.
func (c *Client) AddURI(ctx context.Context, link, dir, out string) (string, error) {
	options := map[string]string{"dir": dir}
	if out != "" {
		options["out"] = out
	}
	var gid string
	if err := c.call(ctx, "aria2.addUri", false, &gid, []string{link}, options); err != nil {
		return "", err
	}
	c.logger.WithFields(logrus.Fields{
		"gid": gid,
		"dir": dir,
		"out": out,
	}).Info("Local fetch started")
	return gid, nil
}

// TellStatus returns the current state of a download
func (c *Client) TellStatus(ctx context.Context, gid string) (*Status, error) {
	var status Status
	if err := c.call(ctx, "aria2.tellStatus", true, &status, gid); err != nil {
		return nil, err
	}
	return &status, nil
}
