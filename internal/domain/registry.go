package domain

import (
	"fmt"

	"github.com/jonboulle/clockwork"
)

// Registry is the bounded, append-only table of known peers. Iteration order
// is first-contact order. Registry does no locking; Estimator owns one and
// serializes access to it.
type Registry struct {
	nodes    []NodeRecord
	capacity int
	clock    clockwork.Clock
}

// NewRegistry creates an empty registry holding at most capacity peers.
// A non-positive capacity means MaxNodes. A nil clock uses wall time.
func NewRegistry(capacity int, clock clockwork.Clock) *Registry {
	if capacity <= 0 {
		capacity = MaxNodes
	}
	return &Registry{
		nodes:    make([]NodeRecord, 0, capacity),
		capacity: capacity,
		clock:    orRealClock(clock),
	}
}

// Len returns the number of known peers.
func (r *Registry) Len() int { return len(r.nodes) }

// Cap returns the maximum number of peers.
func (r *Registry) Cap() int { return r.capacity }

// Find returns the record for addr, or nil.
func (r *Registry) Find(addr uint16) *NodeRecord {
	for i := range r.nodes {
		if r.nodes[i].Address == addr {
			return &r.nodes[i]
		}
	}
	return nil
}

// Records returns deep copies of every record in first-contact order.
func (r *Registry) Records() []NodeRecord {
	out := make([]NodeRecord, len(r.nodes))
	for i := range r.nodes {
		out[i] = r.nodes[i].clone()
	}
	return out
}

// lookupOrCreate returns the record for addr, creating it when the address is
// new. The name is refreshed on existing records.
func (r *Registry) lookupOrCreate(addr uint16, name string) (*NodeRecord, error) {
	now := r.clock.Now()
	if n := r.Find(addr); n != nil {
		n.Name = clampName(name)
		n.LastSeen = now
		return n, nil
	}
	if len(r.nodes) >= r.capacity {
		return nil, fmt.Errorf("%w: cannot add 0x%s (capacity %d)", ErrRegistryFull, FormatAddress(addr), r.capacity)
	}
	r.nodes = append(r.nodes, NodeRecord{
		Address:   addr,
		Name:      clampName(name),
		FirstSeen: now,
		LastSeen:  now,
	})
	return &r.nodes[len(r.nodes)-1], nil
}

// ResetCalibration discards the samples and reference of addr so a new
// calibration ritual can run. Telemetry and statistics are kept.
func (r *Registry) ResetCalibration(addr uint16) error {
	n := r.Find(addr)
	if n == nil {
		return fmt.Errorf("%w: 0x%s", ErrUnknownNode, FormatAddress(addr))
	}
	n.Samples = nil
	n.CalibrationStep = 0
	n.Calibrated = false
	n.RSSIDistanceFactor = 0
	n.EstimatedDistance = 0
	return nil
}

// UpdateEstimatedDistance recomputes the distance of a calibrated record from
// its last RSSI. Uncalibrated records are left alone.
func UpdateEstimatedDistance(n *NodeRecord) {
	if !n.Calibrated {
		return
	}
	n.EstimatedDistance = DistanceFromPower(n.RSSIDistanceFactor, n.LastRSSI)
}

// AverageTemperature is the mean of the local temperature and every peer's
// last reported temperature.
func AverageTemperature(self SelfState, nodes []NodeRecord) float64 {
	sum := self.Temperature
	for i := range nodes {
		sum += nodes[i].Temperature
	}
	return sum / float64(len(nodes)+1)
}
