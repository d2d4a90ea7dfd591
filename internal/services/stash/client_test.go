package stash

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
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
	c := NewClient(&config.Config{StashHost: "localhost", StashPort: 9999, StashAPIKey: "key", StashRootDir: "/data"}, logger)
	c.endpoint = srv.URL + "/graphql"
	return c
}

func TestNewClientEndpoint(t *testing.T) {
	c := NewClient(&config.Config{StashHost: "stash", StashPort: 9999}, logrus.New())
	assert.Equal(t, "http://stash:9999/graphql", c.endpoint)
}

func TestRescanSendsMetadataScan(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key", r.Header.Get("ApiKey"))

		var body struct {
			OperationName string `json:"operationName"`
			Query         string `json:"query"`
			Variables     struct {
				Input map[string]interface{} `json:"input"`
			} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "MetadataScan", body.OperationName)
		assert.Contains(t, body.Query, "metadataScan(input: $input)")
		assert.Equal(t, true, body.Variables.Input["rescan"])
		assert.Equal(t, true, body.Variables.Input["scanGeneratePhashes"])
		assert.Equal(t, []interface{}{"/data/Holiday"}, body.Variables.Input["paths"])

		w.Write([]byte(`{"data":{"metadataScan":"12"}}`))
	})

	assert.True(t, c.Rescan(context.Background(), "Holiday"))
}

func TestRescanFailures(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	assert.False(t, c.Rescan(context.Background(), "Holiday"))

	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[{"message":"path not in library"}]}`))
	})
	err := c.Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path not in library")
}
