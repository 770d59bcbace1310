package sensorhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/mesh-distance-service/internal/observability"
)

// Reading is one sample of the board sensors.
type Reading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Proximity   int     `json:"proximity"`
	Light       int     `json:"light"`
}

// Fetcher returns the current sensor reading.
type Fetcher interface {
	Fetch(ctx context.Context) (Reading, error)
}

// Client fetches readings from a sensor hub over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a sensor hub client for baseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Fetch requests GET /v1/readings.
func (c *Client) Fetch(ctx context.Context) (Reading, error) {
	start := time.Now()
	r, err := c.doRequest(ctx)
	c.metrics.SensorHubDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.SensorHubRequests.WithLabelValues("error").Inc()
		c.logger.Debug("sensor hub request failed", "error", err)
		return Reading{}, err
	}
	c.metrics.SensorHubRequests.WithLabelValues("success").Inc()
	return r, nil
}

func (c *Client) doRequest(ctx context.Context) (Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/readings", nil)
	if err != nil {
		return Reading{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("sensor hub request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Reading{}, fmt.Errorf("sensor hub error: status %d: %s", resp.StatusCode, body)
	}

	var r Reading
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Reading{}, fmt.Errorf("decode response: %w", err)
	}
	return r, nil
}

// Static always returns the same reading. It stands in for the hub when
// none is configured.
type Static struct {
	Reading Reading
}

// DefaultStatic holds the board inside the calibration window so the node
// can both send and accept calibration frames.
func DefaultStatic() *Static {
	return &Static{Reading: Reading{Temperature: 21.0, Humidity: 45, Proximity: 250, Light: 100}}
}

func (s *Static) Fetch(context.Context) (Reading, error) {
	return s.Reading, nil
}
