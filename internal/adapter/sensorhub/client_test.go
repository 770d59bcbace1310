package sensorhub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/mesh-distance-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string, timeout time.Duration) *Client {
	return NewClient(baseURL, timeout, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/readings", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(Reading{Temperature: 22.4, Humidity: 38, Proximity: 243, Light: 12}))
	}))
	defer srv.Close()

	c := testClient(srv.URL+"/", 5*time.Second)
	r, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Reading{Temperature: 22.4, Humidity: 38, Proximity: 243, Light: 12}, r)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.SensorHubRequests.WithLabelValues("success")))
}

func TestClient_Fetch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"bus busy"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.SensorHubRequests.WithLabelValues("error")))
}

func TestClient_Fetch_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"temperature":`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 5*time.Second).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 50*time.Millisecond).Fetch(context.Background())
	require.Error(t, err)
}

func TestStatic(t *testing.T) {
	r, err := DefaultStatic().Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250, r.Proximity)
}
