package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/mesh-distance-service/internal/config"
	"github.com/couchcryptid/mesh-distance-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Reader consumes mesh frames from the shared topic.
// It implements the receive half of node.Transport.
type Reader struct {
	reader      *kafkago.Reader
	defaultRSSI int
	logger      *slog.Logger
}

// NewReader creates a consumer for the mesh topic. Each node uses its own
// consumer group so it sees every frame on the topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.MeshTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 1e6,
	})
	return &Reader{reader: r, defaultRSSI: cfg.DefaultRSSI, logger: logger}
}

// Receive blocks until the next frame arrives. Messages without a valid
// sender or opcode are skipped.
func (r *Reader) Receive(ctx context.Context) (domain.Inbound, error) {
	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			return domain.Inbound{}, fmt.Errorf("read mesh frame: %w", err)
		}
		in, err := mapMessageToInbound(msg, r.defaultRSSI)
		if err != nil {
			r.logger.Warn("skipping malformed frame message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		return in, nil
	}
}

func (r *Reader) Close() error {
	return r.reader.Close()
}

// mapMessageToInbound rebuilds a frame from message headers. A missing
// destination means broadcast, a missing TTL means DefaultTTL and a missing
// rssi falls back to defaultRSSI.
func mapMessageToInbound(msg kafkago.Message, defaultRSSI int) (domain.Inbound, error) {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	in := domain.Inbound{
		Destination: domain.BroadcastAddress,
		RSSI:        defaultRSSI,
		TTL:         domain.DefaultTTL,
		Payload:     msg.Value,
	}

	sender, ok := headers[headerSender]
	if !ok {
		return domain.Inbound{}, fmt.Errorf("%w: missing sender header", domain.ErrMalformedPayload)
	}
	addr, err := domain.ParseAddress(sender)
	if err != nil {
		return domain.Inbound{}, fmt.Errorf("%w: sender: %w", domain.ErrMalformedPayload, err)
	}
	in.Sender = addr

	op, err := strconv.ParseUint(headers[headerOpcode], 10, 8)
	if err != nil {
		return domain.Inbound{}, fmt.Errorf("%w: opcode: %w", domain.ErrMalformedPayload, err)
	}
	in.Opcode = domain.Opcode(op)

	if v, ok := headers[headerDestination]; ok {
		dst, err := domain.ParseAddress(v)
		if err != nil {
			return domain.Inbound{}, fmt.Errorf("%w: destination: %w", domain.ErrMalformedPayload, err)
		}
		in.Destination = dst
	}
	if v, ok := headers[headerTTL]; ok {
		ttl, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return domain.Inbound{}, fmt.Errorf("%w: ttl: %w", domain.ErrMalformedPayload, err)
		}
		in.TTL = uint8(ttl)
	}
	if v, ok := headers[headerRSSI]; ok {
		rssi, err := strconv.Atoi(v)
		if err != nil {
			return domain.Inbound{}, fmt.Errorf("%w: rssi: %w", domain.ErrMalformedPayload, err)
		}
		in.RSSI = rssi
	}
	return in, nil
}
