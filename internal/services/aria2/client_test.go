package aria2

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

func newTestClient(t *testing.T, handler func(t *testing.T, req rpcRequest) string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jsonrpc", r.URL.Path)
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.NotEmpty(t, req.ID)
		require.NotEmpty(t, req.Params)
		assert.Equal(t, "token:s3cret", req.Params[0])
		w.Write([]byte(handler(t, req)))
	}))
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	c := NewClient(&config.Config{Aria2Host: "localhost", Aria2Port: 6800, Aria2Secret: "s3cret"}, logger)
	c.endpoint = srv.URL + "/jsonrpc"
	return c
}

func TestNewClientEndpoint(t *testing.T) {
	c := NewClient(&config.Config{Aria2Host: "aria", Aria2Port: 6800}, logrus.New())
	assert.Equal(t, "http://aria:6800/jsonrpc", c.endpoint)
}

func TestGetVersion(t *testing.T) {
	c := newTestClient(t, func(t *testing.T, req rpcRequest) string {
		assert.Equal(t, "aria2.getVersion", req.Method)
		return `{"jsonrpc":"2.0","id":"1","result":{"version":"1.37.0","enabledFeatures":[]}}`
	})

	version, err := c.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.37.0", version)
}

func TestAddURI(t *testing.T) {
	c := newTestClient(t, func(t *testing.T, req rpcRequest) string {
		assert.Equal(t, "aria2.addUri", req.Method)
		require.Len(t, req.Params, 3)
		assert.Equal(t, []interface{}{"https://cdn.example/file"}, req.Params[1])
		assert.Equal(t, map[string]interface{}{"dir": "/downloads/Show_S01E01", "out": "Show.S01E01.mkv"}, req.Params[2])
		return `{"jsonrpc":"2.0","id":"1","result":"2089b05ecca3d829"}`
	})

	gid, err := c.AddURI(context.Background(), "https://cdn.example/file", "/downloads/Show_S01E01", "Show.S01E01.mkv")
	require.NoError(t, err)
	assert.Equal(t, "2089b05ecca3d829", gid)
}

func TestRPCErrorIsReturned(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(t *testing.T, req rpcRequest) string {
		calls++
		return `{"jsonrpc":"2.0","id":"1","error":{"code":1,"message":"Unauthorized"}}`
	})

	_, err := c.TellStatus(context.Background(), "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unauthorized")
	assert.Equal(t, 1, calls)
}

func TestTellStatus(t *testing.T) {
	c := newTestClient(t, func(t *testing.T, req rpcRequest) string {
		assert.Equal(t, "aria2.tellStatus", req.Method)
		assert.Equal(t, "12345", req.Params[1])
		return `{"jsonrpc":"2.0","id":"1","result":{"completedLength":"30","dir":"/aria2","files":[{"completedLength":"30","index":"1","length":"120","path":"/aria2/a.mkv","selected":"true"}],"gid":"12345","status":"active","totalLength":"120"}}`
	})

	status, err := c.TellStatus(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, "/aria2/a.mkv", status.Path())
	assert.InDelta(t, 0.25, status.Progress(), 0.0001)
	assert.False(t, status.Complete())
	assert.Empty(t, status.Failure())
}

func TestStatusHelpers(t *testing.T) {
	done := Status{Status: "complete", CompletedLength: "0", TotalLength: "0"}
	assert.Equal(t, 1.0, done.Progress())
	assert.Empty(t, done.Path())

	empty := Status{Status: "waiting", TotalLength: "0"}
	assert.Equal(t, 0.0, empty.Progress())

	failed := Status{Status: "error", ErrorCode: "3", ErrorMessage: "Resource not found"}
	assert.Equal(t, "Resource not found", failed.Failure())
	assert.Equal(t, "aria2 error code 9", (&Status{ErrorCode: "9"}).Failure())
}
