package kafka

import (
	"testing"

	"github.com/couchcryptid/mesh-distance-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameToMessage(t *testing.T) {
	out := domain.Outbound{
		Destination: domain.BroadcastAddress,
		Opcode:      domain.OpHeartbeat,
		TTL:         31,
		Payload:     domain.EncodeHeartbeat(31, "bob,21.5,40;0"),
	}

	msg := frameToMessage(0x00a1, out, 0)

	assert.Equal(t, []byte("00a1"), msg.Key)
	assert.Equal(t, out.Payload, msg.Value)
	require.Len(t, msg.Headers, 4)
	assert.Equal(t, kafkago.Header{Key: "sender", Value: []byte("00a1")}, msg.Headers[0])
	assert.Equal(t, kafkago.Header{Key: "destination", Value: []byte("c123")}, msg.Headers[1])
	assert.Equal(t, kafkago.Header{Key: "opcode", Value: []byte("188")}, msg.Headers[2])
	assert.Equal(t, kafkago.Header{Key: "ttl", Value: []byte("31")}, msg.Headers[3])
}

func TestFrameToMessage_TxRSSI(t *testing.T) {
	msg := frameToMessage(0x0001, domain.Outbound{Opcode: domain.OpCalibration}, -48)

	require.Len(t, msg.Headers, 5)
	assert.Equal(t, kafkago.Header{Key: "rssi", Value: []byte("-48")}, msg.Headers[4])
}

func TestMapMessageToInbound(t *testing.T) {
	payload := domain.EncodeCalibration(248, "alice")
	msg := kafkago.Message{
		Key:   []byte("00a1"),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "sender", Value: []byte("00a1")},
			{Key: "destination", Value: []byte("0001")},
			{Key: "opcode", Value: []byte("187")},
			{Key: "ttl", Value: []byte("29")},
			{Key: "rssi", Value: []byte("-55")},
		},
	}

	in, err := mapMessageToInbound(msg, -60)
	require.NoError(t, err)

	assert.Equal(t, domain.Inbound{
		Sender:      0x00a1,
		Destination: 0x0001,
		RSSI:        -55,
		TTL:         29,
		Opcode:      domain.OpCalibration,
		Payload:     payload,
	}, in)
}

func TestMapMessageToInbound_Defaults(t *testing.T) {
	msg := kafkago.Message{
		Value: []byte{31},
		Headers: []kafkago.Header{
			{Key: "sender", Value: []byte("00a2")},
			{Key: "opcode", Value: []byte("188")},
		},
	}

	in, err := mapMessageToInbound(msg, -60)
	require.NoError(t, err)

	assert.Equal(t, domain.BroadcastAddress, in.Destination)
	assert.Equal(t, -60, in.RSSI)
	assert.Equal(t, domain.DefaultTTL, in.TTL)
}

func TestMapMessageToInbound_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		headers []kafkago.Header
	}{
		{"missing sender", []kafkago.Header{{Key: "opcode", Value: []byte("188")}}},
		{"bad sender", []kafkago.Header{{Key: "sender", Value: []byte("zz")}, {Key: "opcode", Value: []byte("188")}}},
		{"missing opcode", []kafkago.Header{{Key: "sender", Value: []byte("00a1")}}},
		{"bad ttl", []kafkago.Header{
			{Key: "sender", Value: []byte("00a1")},
			{Key: "opcode", Value: []byte("188")},
			{Key: "ttl", Value: []byte("300")},
		}},
		{"bad rssi", []kafkago.Header{
			{Key: "sender", Value: []byte("00a1")},
			{Key: "opcode", Value: []byte("188")},
			{Key: "rssi", Value: []byte("loud")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mapMessageToInbound(kafkago.Message{Headers: tt.headers}, -60)
			require.ErrorIs(t, err, domain.ErrMalformedPayload)
		})
	}
}
