package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// NeighborDigestLength bounds the digest part of a status message:
	// count (2) + separator (1) + per neighbor address (4), ':' (1) and a
	// %.1f distance (5).
	NeighborDigestLength = 2 + 1 + (4+1+5)*MaxNodes

	// MaxMessageSize bounds a rendered status message.
	MaxMessageSize = 100 + NeighborDigestLength

	segmentSeparator = ";"
	fieldSeparator   = ","
)

// Field positions in the self-data segment.
const (
	fieldName = iota
	fieldTemperature
	fieldHumidity
)

// RenderSelfMessage encodes the local telemetry and the distance to every
// known peer. When the message would exceed MaxMessageSize, peers are dropped
// from the tail and ErrMessageTruncated is returned with the shortened text.
// If the self data alone does not fit, ErrMessageTooLarge is returned and the
// text is empty.
func RenderSelfMessage(self SelfState, nodes []NodeRecord) (string, error) {
	head := fmt.Sprintf("%s,%.1f,%d;", self.Name, self.Temperature, self.Humidity)

	frags := make([]string, len(nodes))
	for i := range nodes {
		frags[i] = fmt.Sprintf(",%s:%.1f", FormatAddress(nodes[i].Address), nodes[i].EstimatedDistance)
	}

	for n := len(frags); n >= 0; n-- {
		msg := head + strconv.Itoa(n) + strings.Join(frags[:n], "")
		if len(msg) <= MaxMessageSize {
			if n < len(frags) {
				return msg, fmt.Errorf("%w: %d of %d neighbors listed", ErrMessageTruncated, n, len(frags))
			}
			return msg, nil
		}
	}
	return "", fmt.Errorf("%w: self data is %d bytes", ErrMessageTooLarge, len(head)+1)
}

// StatusMessage is a parsed heartbeat. Fields that failed to parse keep their
// zero value and have their Has flag unset.
type StatusMessage struct {
	Name           string
	Temperature    float64
	Humidity       int
	NeighborDigest string

	HasTemperature bool
	HasHumidity    bool
	HasDigest      bool
}

// ParseStatus splits a heartbeat into its self data and neighbor digest. It
// never fails outright: unparseable fields are skipped and reported in the
// returned error, which wraps ErrMalformedPayload.
func ParseStatus(text string) (StatusMessage, error) {
	var msg StatusMessage
	var errs []error

	self, digest, found := strings.Cut(text, segmentSeparator)
	if found {
		msg.NeighborDigest = digest
		msg.HasDigest = true
	} else {
		errs = append(errs, fmt.Errorf("%w: missing %q separator", ErrMalformedPayload, segmentSeparator))
	}

	fields := strings.Split(self, fieldSeparator)
	msg.Name = fields[fieldName]

	if len(fields) > fieldTemperature {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[fieldTemperature]), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: temperature: %w", ErrMalformedPayload, err))
		} else {
			msg.Temperature = v
			msg.HasTemperature = true
		}
	} else {
		errs = append(errs, fmt.Errorf("%w: missing temperature", ErrMalformedPayload))
	}

	if len(fields) > fieldHumidity {
		v, err := strconv.Atoi(strings.TrimSpace(fields[fieldHumidity]))
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: humidity: %w", ErrMalformedPayload, err))
		} else {
			msg.Humidity = v
			msg.HasHumidity = true
		}
	} else {
		errs = append(errs, fmt.Errorf("%w: missing humidity", ErrMalformedPayload))
	}

	return msg, errors.Join(errs...)
}

// NeighborDistance is one entry of a peer's neighbor digest.
type NeighborDistance struct {
	Address  uint16  `json:"address"`
	Distance float64 `json:"distance"`
}

// ParseNeighborDigest decodes "<count>(,<addr>:<dist>)*" for display. Entries
// that fail to parse are skipped; a count that disagrees with the listed
// entries is reported but the parsed entries are still returned.
func ParseNeighborDigest(digest string) ([]NeighborDistance, error) {
	parts := strings.Split(digest, fieldSeparator)
	var errs []error

	count, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: neighbor count: %w", ErrMalformedPayload, err))
		count = -1
	}

	out := make([]NeighborDistance, 0, len(parts)-1)
	for _, p := range parts[1:] {
		addrStr, distStr, ok := strings.Cut(p, ":")
		if !ok {
			errs = append(errs, fmt.Errorf("%w: neighbor entry %q", ErrMalformedPayload, p))
			continue
		}
		addr, err := ParseAddress(addrStr)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrMalformedPayload, err))
			continue
		}
		dist, err := strconv.ParseFloat(strings.TrimSpace(distStr), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: neighbor distance: %w", ErrMalformedPayload, err))
			continue
		}
		out = append(out, NeighborDistance{Address: addr, Distance: dist})
	}

	if count >= 0 && count != len(parts)-1 {
		errs = append(errs, fmt.Errorf("%w: neighbor count %d, %d entries", ErrMalformedPayload, count, len(parts)-1))
	}
	return out, errors.Join(errs...)
}

// ApplyHeartbeat updates the record of a known peer from its heartbeat. It
// returns false, without touching the registry, when addr is unknown: only a
// calibration contact creates a record. Parsed fields are applied even when
// others are malformed; the returned error only describes what was skipped.
func (r *Registry) ApplyHeartbeat(addr uint16, rssi int, text string) (bool, error) {
	n := r.Find(addr)
	if n == nil {
		return false, nil
	}

	msg, err := ParseStatus(text)
	if msg.HasTemperature {
		n.Temperature = msg.Temperature
	}
	if msg.HasHumidity {
		n.Humidity = msg.Humidity
	}
	if msg.HasDigest {
		n.NeighborDigest = msg.NeighborDigest
	}

	n.LastRSSI = rssi
	n.HeartbeatCount++
	n.LastSeen = r.clock.Now()
	UpdateEstimatedDistance(n)
	return true, err
}
