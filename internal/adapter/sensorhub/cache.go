package sensorhub

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// CachedSensors serves the four sensor reads of one poll from a single
// fetch. A reading is reused until it is older than ttl; failed fetches are
// not cached.
// It implements node.Sensors.
type CachedSensors struct {
	inner Fetcher
	ttl   time.Duration
	clock clockwork.Clock

	mu        sync.Mutex
	last      Reading
	fetchedAt time.Time
	valid     bool
}

// NewCachedSensors wraps inner. A nil clock uses wall time.
func NewCachedSensors(inner Fetcher, ttl time.Duration, clock clockwork.Clock) *CachedSensors {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedSensors{inner: inner, ttl: ttl, clock: clock}
}

func (c *CachedSensors) ReadTemperature(ctx context.Context) (float64, error) {
	r, err := c.get(ctx)
	return r.Temperature, err
}

func (c *CachedSensors) ReadHumidity(ctx context.Context) (float64, error) {
	r, err := c.get(ctx)
	return r.Humidity, err
}

func (c *CachedSensors) ReadProximity(ctx context.Context) (int, error) {
	r, err := c.get(ctx)
	return r.Proximity, err
}

func (c *CachedSensors) ReadLight(ctx context.Context) (int, error) {
	r, err := c.get(ctx)
	return r.Light, err
}

func (c *CachedSensors) get(ctx context.Context) (Reading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.valid && now.Sub(c.fetchedAt) < c.ttl {
		return c.last, nil
	}
	r, err := c.inner.Fetch(ctx)
	if err != nil {
		return Reading{}, err
	}
	c.last, c.fetchedAt, c.valid = r, now, true
	return r, nil
}
