package ai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.False(t, req.Stream)
		assert.Empty(t, req.Format)

		json.NewEncoder(w).Encode(generateResponse{Response: "the completion", Done: true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", 5*time.Second, testLogger())
	out, err := c.Generate(context.Background(), "a prompt")
	require.NoError(t, err)
	assert.Equal(t, "the completion", out)
}

func TestGenerateJSONSetsFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json", req.Format)
		json.NewEncoder(w).Encode(generateResponse{Response: `{}`, Done: true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", 5*time.Second, testLogger())
	_, err := c.GenerateJSON(context.Background(), "extract")
	require.NoError(t, err)
}

func TestGenerateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "missing", 5*time.Second, testLogger())
	_, err := c.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, IsExternal(err))

	var ee *ExternalError
	require.ErrorAs(t, err, &ee)
	assert.False(t, ee.Timeout)
	assert.Contains(t, ee.Error(), "404")
}

func TestGenerateTimeoutClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "slow", 20*time.Millisecond, testLogger())
	_, err := c.Generate(context.Background(), "prompt")
	require.Error(t, err)

	var ee *ExternalError
	require.ErrorAs(t, err, &ee)
	assert.True(t, ee.Timeout)
}

func TestGenerateConnectionRefused(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "m", time.Second, testLogger())
	_, err := c.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.True(t, IsExternal(err))
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", time.Second, testLogger())
	require.NoError(t, c.Ping(context.Background()))
}
