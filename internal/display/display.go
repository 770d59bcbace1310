// Package display renders node state for an operator. The board screen is
// emulated with structured log lines.
package display

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/couchcryptid/mesh-distance-service/internal/domain"
)

// topContacts is how many peers the statistics screen lists.
const topContacts = 4

// Logger implements node.Display by logging every message.
type Logger struct {
	logger *slog.Logger

	mu     sync.Mutex
	last   string
	blinks int
}

// NewLogger creates a display that writes to logger.
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger.With("component", "display")}
}

func (l *Logger) Show(text string) {
	l.mu.Lock()
	l.last = text
	l.mu.Unlock()
	l.logger.Info("display", "text", text)
}

func (l *Logger) Blink() {
	l.mu.Lock()
	l.blinks++
	l.mu.Unlock()
	l.logger.Info("display blink")
}

// Last returns the most recently shown text.
func (l *Logger) Last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// Blinks returns how often the display blinked.
func (l *Logger) Blinks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blinks
}

// ShowScreen logs a multi-line screen at debug level.
func (l *Logger) ShowScreen(name string, lines []string) {
	l.logger.Debug("screen", "screen", name, "lines", lines)
}

// NodeScreen lists the local node, every peer with its last RSSI and
// estimated distance, and the average temperature.
func NodeScreen(snap domain.Snapshot) []string {
	lines := make([]string, 0, len(snap.Nodes)+2)
	lines = append(lines, fmt.Sprintf("*%s @%04x", snap.Self.Name, snap.Self.Address))
	for _, n := range snap.Nodes {
		lines = append(lines, fmt.Sprintf("%s @%04x S:%d D:%.2f", n.Name, n.Address, n.LastRSSI, n.EstimatedDistance))
	}
	return append(lines, fmt.Sprintf("Avg. temperature: %.1f", snap.AverageTemperature))
}

// StatisticsScreen shows the own address, the node count including the
// local node and the peers seen most often.
func StatisticsScreen(snap domain.Snapshot) []string {
	lines := []string{
		fmt.Sprintf("Own Address: 0x%04x", snap.Self.Address),
		fmt.Sprintf("Node Count:  %d", len(snap.Nodes)+1),
	}
	if len(snap.Nodes) == 0 {
		return lines
	}

	top := make([]domain.NodeRecord, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		if n.ContactCount > 0 {
			top = append(top, n)
		}
	}
	slices.SortStableFunc(top, func(a, b domain.NodeRecord) int {
		return cmp.Compare(b.ContactCount, a.ContactCount)
	})
	if len(top) > topContacts {
		top = top[:topContacts]
	}

	lines = append(lines, "Most messages from:")
	for _, n := range top {
		lines = append(lines, fmt.Sprintf("%-3d 0x%04x %s", n.ContactCount, n.Address, n.Name))
	}
	return lines
}
