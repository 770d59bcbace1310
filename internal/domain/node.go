package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxNodes bounds the registry; peers are never evicted.
	MaxNodes = 10

	// NameSize is the width of the name field on the wire. Stored names keep
	// at most NameSize-1 characters.
	NameSize      = 8
	MaxNameLength = NameSize - 1

	// CalibrationSteps is the number of samples averaged into a reference.
	CalibrationSteps = 5
)

// Sample is one accepted calibration reading.
type Sample struct {
	Proximity int `json:"proximity"`
	RSSI      int `json:"rssi"`
}

// NodeRecord is the state held for one known peer.
type NodeRecord struct {
	Address uint16 `json:"address"`
	Name    string `json:"name"`

	// Calibration state. len(Samples) == CalibrationStep.
	Samples            []Sample `json:"samples,omitempty"`
	CalibrationStep    int      `json:"calibration_step"`
	Calibrated         bool     `json:"calibrated"`
	WasCalibrated      bool     `json:"was_calibrated"`
	RSSIDistanceFactor float64  `json:"rssi_distance_factor"`

	// Live telemetry, overwritten by every heartbeat.
	LastRSSI          int     `json:"last_rssi"`
	EstimatedDistance float64 `json:"estimated_distance"`
	Temperature       float64 `json:"temperature"`
	Humidity          int     `json:"humidity"`
	NeighborDigest    string  `json:"neighbor_digest"`

	// Contact statistics.
	Hops           uint8     `json:"hops"`
	HeartbeatCount int       `json:"heartbeat_count"`
	ContactCount   int       `json:"contact_count"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
}

// clone returns a deep copy so snapshots never alias registry storage.
func (n NodeRecord) clone() NodeRecord {
	if n.Samples != nil {
		n.Samples = append([]Sample(nil), n.Samples...)
	}
	return n
}

// SelfState is the local node's own telemetry and identity.
type SelfState struct {
	Name        string  `json:"name"`
	Address     uint16  `json:"address"`
	Temperature float64 `json:"temperature"`
	Humidity    int     `json:"humidity"`
	Proximity   int     `json:"proximity"`
	Light       int     `json:"light"`
}

// Snapshot is a consistent copy of the engine state for display.
type Snapshot struct {
	Self               SelfState    `json:"self"`
	Nodes              []NodeRecord `json:"nodes"`
	AverageTemperature float64      `json:"average_temperature"`
	Capacity           int          `json:"capacity"`
}

// FormatAddress renders a mesh address as four lowercase hex digits.
func FormatAddress(addr uint16) string {
	return fmt.Sprintf("%04x", addr)
}

// ParseAddress parses a 16-bit mesh address in hex, with or without a 0x prefix.
func ParseAddress(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("parse address %q: %w", s, err)
	}
	return uint16(v), nil
}

// clampName keeps at most MaxNameLength bytes of name.
func clampName(name string) string {
	if len(name) > MaxNameLength {
		return name[:MaxNameLength]
	}
	return name
}
