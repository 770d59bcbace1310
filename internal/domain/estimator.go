package domain

import (
	"sync"

	"github.com/jonboulle/clockwork"
)

// Estimator owns the registry and the local state behind one mutex. Every
// read-modify-write sequence (lookup-or-create, sample append, finalize,
// heartbeat decode, render) runs under the lock to completion.
type Estimator struct {
	mu       sync.Mutex
	self     SelfState
	registry *Registry
	avgTemp  float64
}

// NewEstimator creates an engine for the local node described by self.
func NewEstimator(self SelfState, capacity int, clock clockwork.Clock) *Estimator {
	self.Name = clampName(self.Name)
	return &Estimator{
		self:     self,
		registry: NewRegistry(capacity, clock),
		avgTemp:  self.Temperature,
	}
}

// SubmitCalibrationSample feeds one calibration contact into the registry.
func (e *Estimator) SubmitCalibrationSample(addr uint16, name string, proximity, rssi int) (CalibrationResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.SubmitSample(addr, name, proximity, rssi)
}

// ApplyHeartbeat decodes a peer heartbeat into the registry and recomputes
// the average temperature before returning. hops is recorded on the peer.
// It returns false when the sender is unknown.
func (e *Estimator) ApplyHeartbeat(addr uint16, rssi int, hops uint8, text string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	applied, err := e.registry.ApplyHeartbeat(addr, rssi, text)
	if !applied {
		return false, err
	}
	if n := e.registry.Find(addr); n != nil {
		n.Hops = hops
	}
	e.avgTemp = AverageTemperature(e.self, e.registry.nodes)
	return true, err
}

// RenderSelfMessage encodes the current heartbeat text.
func (e *Estimator) RenderSelfMessage() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return RenderSelfMessage(e.self, e.registry.nodes)
}

// ResetCalibration clears the calibration of addr.
func (e *Estimator) ResetCalibration(addr uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.ResetCalibration(addr)
}

// UpdateSelf applies fn to the local state under the lock.
func (e *Estimator) UpdateSelf(fn func(*SelfState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.self)
	e.self.Name = clampName(e.self.Name)
}

// Self returns a copy of the local state.
func (e *Estimator) Self() SelfState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.self
}

// AverageTemperature returns the value computed at the last heartbeat.
func (e *Estimator) AverageTemperature() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.avgTemp
}

// Snapshot returns a consistent copy of the local state and every peer.
func (e *Estimator) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Self:               e.self,
		Nodes:              e.registry.Records(),
		AverageTemperature: e.avgTemp,
		Capacity:           e.registry.Cap(),
	}
}
