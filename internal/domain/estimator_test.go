package domain_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/mesh-distance-service/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)

func newEstimator() *domain.Estimator {
	self := domain.SelfState{Name: "self", Address: 0x0001, Temperature: 20, Humidity: 45}
	return domain.NewEstimator(self, domain.MaxNodes, clockwork.NewFakeClockAt(epoch))
}

func calibrate(t *testing.T, e *domain.Estimator, addr uint16, name string) {
	t.Helper()
	for i := 0; i < domain.CalibrationSteps; i++ {
		_, err := e.SubmitCalibrationSample(addr, name, 255, -40)
		require.NoError(t, err)
	}
}

func TestEstimator_AverageTemperature(t *testing.T) {
	e := newEstimator()
	assert.Equal(t, 20.0, e.AverageTemperature())

	calibrate(t, e, 0x00a1, "a")
	calibrate(t, e, 0x00a2, "b")

	ok, err := e.ApplyHeartbeat(0x00a1, -60, 1, "a,22.0,40;0")
	require.NoError(t, err)
	require.True(t, ok)
	// b has not reported yet and counts as 0.
	assert.InDelta(t, (20.0+22.0+0)/3, e.AverageTemperature(), 1e-9)

	_, err = e.ApplyHeartbeat(0x00a2, -60, 2, "b,24.0,40;0")
	require.NoError(t, err)
	assert.InDelta(t, (20.0+22.0+24.0)/3, e.AverageTemperature(), 1e-9)
}

func TestEstimator_UnknownHeartbeatKeepsAverage(t *testing.T) {
	e := newEstimator()
	ok, err := e.ApplyHeartbeat(0x9999, -60, 1, "x,99.0,1;0")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 20.0, e.AverageTemperature())
	assert.Empty(t, e.Snapshot().Nodes)
}

func TestEstimator_HeartbeatRecordsHopsAndDistance(t *testing.T) {
	e := newEstimator()
	calibrate(t, e, 0x00a1, "a")

	_, err := e.ApplyHeartbeat(0x00a1, -86, 3, "a,21.0,50;1,0001:2.0")
	require.NoError(t, err)

	snap := e.Snapshot()
	require.Len(t, snap.Nodes, 1)
	n := snap.Nodes[0]
	assert.Equal(t, uint8(3), n.Hops)
	want := domain.DistanceFromPower(domain.MeasuredPower(-40, domain.MinProximityDistance), -86)
	assert.InDelta(t, want, n.EstimatedDistance, 1e-9)
}

func TestEstimator_RenderSelfMessage(t *testing.T) {
	e := newEstimator()
	calibrate(t, e, 0x00a1, "a")
	_, err := e.ApplyHeartbeat(0x00a1, -40, 1, "a,21.0,50;0")
	require.NoError(t, err)

	e.UpdateSelf(func(s *domain.SelfState) {
		s.Temperature = 23.46
		s.Humidity = 38
	})

	msg, err := e.RenderSelfMessage()
	require.NoError(t, err)
	d := domain.DistanceFromPower(domain.MeasuredPower(-40, domain.MinProximityDistance), -40)
	assert.Equal(t, fmt.Sprintf("self,23.5,38;1,00a1:%.1f", d), msg)
}

func TestEstimator_Snapshot(t *testing.T) {
	e := newEstimator()
	_, err := e.SubmitCalibrationSample(0x00a1, "a", 250, -40)
	require.NoError(t, err)

	want := domain.Snapshot{
		Self:               domain.SelfState{Name: "self", Address: 0x0001, Temperature: 20, Humidity: 45},
		AverageTemperature: 20,
		Capacity:           domain.MaxNodes,
		Nodes: []domain.NodeRecord{{
			Address:         0x00a1,
			Name:            "a",
			Samples:         []domain.Sample{{Proximity: 250, RSSI: -40}},
			CalibrationStep: 1,
			ContactCount:    1,
			FirstSeen:       epoch,
			LastSeen:        epoch,
		}},
	}
	if diff := cmp.Diff(want, e.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestEstimator_ResetCalibration(t *testing.T) {
	e := newEstimator()
	calibrate(t, e, 0x00a1, "a")
	require.NoError(t, e.ResetCalibration(0x00a1))
	assert.False(t, e.Snapshot().Nodes[0].Calibrated)
	assert.ErrorIs(t, e.ResetCalibration(0x00ff), domain.ErrUnknownNode)
}

func TestEstimator_ConcurrentAccess(t *testing.T) {
	e := newEstimator()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addr := uint16(0x0100 + i)
			for j := 0; j < 20; j++ {
				_, _ = e.SubmitCalibrationSample(addr, "p", 250, -40-j)
				_, _ = e.ApplyHeartbeat(addr, -50, 1, "p,21.0,40;0")
				_, _ = e.RenderSelfMessage()
				_ = e.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	snap := e.Snapshot()
	require.Len(t, snap.Nodes, 8)
	for _, n := range snap.Nodes {
		assert.True(t, n.Calibrated)
		assert.Equal(t, domain.CalibrationSteps, n.CalibrationStep)
		assert.Len(t, n.Samples, n.CalibrationStep)
	}
}
