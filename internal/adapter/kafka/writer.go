package kafka

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/mesh-distance-service/internal/config"
	"github.com/couchcryptid/mesh-distance-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Header keys carried on every mesh frame message.
const (
	headerSender      = "sender"
	headerDestination = "destination"
	headerOpcode      = "opcode"
	headerTTL         = "ttl"
	headerRSSI        = "rssi"
)

// Writer publishes mesh frames to the shared topic.
// It implements the send half of node.Transport.
type Writer struct {
	writer *kafkago.Writer
	sender uint16
	txRSSI int
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the mesh topic. Frames are stamped
// with the configured node address as sender.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.MeshTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, sender: cfg.NodeAddress, txRSSI: cfg.TxRSSI, logger: logger}
}

// Send publishes one frame.
func (w *Writer) Send(ctx context.Context, out domain.Outbound) error {
	return w.SendAs(ctx, w.sender, w.txRSSI, out)
}

// SendAs publishes one frame on behalf of sender, stamped with rssi when
// non-zero. The peer simulator uses it to speak for several synthetic nodes
// through one producer.
func (w *Writer) SendAs(ctx context.Context, sender uint16, rssi int, out domain.Outbound) error {
	msg := frameToMessage(sender, out, rssi)
	w.logger.Debug("producing frame",
		"sender", domain.FormatAddress(sender),
		"opcode", out.Opcode.String(),
		"rssi", rssi,
		"size", len(out.Payload),
	)
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// frameToMessage maps a frame to a Kafka message keyed by sender so one
// node's frames stay ordered on a partition.
func frameToMessage(sender uint16, out domain.Outbound, rssi int) kafkago.Message {
	headers := []kafkago.Header{
		{Key: headerSender, Value: []byte(domain.FormatAddress(sender))},
		{Key: headerDestination, Value: []byte(domain.FormatAddress(out.Destination))},
		{Key: headerOpcode, Value: []byte(strconv.Itoa(int(out.Opcode)))},
		{Key: headerTTL, Value: []byte(strconv.Itoa(int(out.TTL)))},
	}
	if rssi != 0 {
		headers = append(headers, kafkago.Header{Key: headerRSSI, Value: []byte(strconv.Itoa(rssi))})
	}
	return kafkago.Message{
		Key:     []byte(domain.FormatAddress(sender)),
		Value:   out.Payload,
		Headers: headers,
	}
}
