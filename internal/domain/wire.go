package domain

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Opcode identifies the kind of a mesh frame.
type Opcode byte

const (
	OpCalibration Opcode = 0xbb
	OpHeartbeat   Opcode = 0xbc
	OpBadUser     Opcode = 0xbd
)

func (o Opcode) String() string {
	switch o {
	case OpCalibration:
		return "calibration"
	case OpHeartbeat:
		return "heartbeat"
	case OpBadUser:
		return "bad_user"
	default:
		return fmt.Sprintf("opcode_%02x", byte(o))
	}
}

const (
	// BroadcastAddress is the group address every node subscribes to.
	BroadcastAddress uint16 = 0xc123

	// DefaultTTL is the initial TTL of published frames.
	DefaultTTL uint8 = 31

	ProximitySize = 4
	TTLSize       = 1
)

// Inbound is a frame delivered by the transport. RSSI and TTL are the
// receive-side values.
type Inbound struct {
	Sender      uint16
	Destination uint16
	RSSI        int
	TTL         uint8
	Opcode      Opcode
	Payload     []byte
}

// Outbound is a frame handed to the transport.
type Outbound struct {
	Destination uint16
	Opcode      Opcode
	TTL         uint8
	Payload     []byte
}

// CalibrationPayload is the body of a calibration frame.
type CalibrationPayload struct {
	Proximity int32
	Name      string
}

// EncodeCalibration lays out the proximity as a little-endian int32 followed
// by at most NameSize bytes of name, cut at the first space, comma or newline.
func EncodeCalibration(proximity int32, name string) []byte {
	name = firstName(name)
	if len(name) > NameSize {
		name = name[:NameSize]
	}
	buf := make([]byte, ProximitySize+len(name))
	binary.LittleEndian.PutUint32(buf[:ProximitySize], uint32(proximity))
	copy(buf[ProximitySize:], name)
	return buf
}

// DecodeCalibration parses a calibration frame body. The name ends at the
// first NUL or after NameSize bytes.
func DecodeCalibration(buf []byte) (CalibrationPayload, error) {
	if len(buf) < ProximitySize {
		return CalibrationPayload{}, fmt.Errorf("%w: calibration frame is %d bytes", ErrShortPayload, len(buf))
	}
	return CalibrationPayload{
		Proximity: int32(binary.LittleEndian.Uint32(buf[:ProximitySize])),
		Name:      decodeName(buf[ProximitySize:]),
	}, nil
}

// HeartbeatPayload is the body of a heartbeat frame.
type HeartbeatPayload struct {
	InitialTTL uint8
	Hops       uint8
	Text       string
}

// EncodeHeartbeat prefixes the status text with the initial TTL so receivers
// can count hops.
func EncodeHeartbeat(ttl uint8, text string) []byte {
	buf := make([]byte, 0, TTLSize+len(text))
	buf = append(buf, ttl)
	return append(buf, text...)
}

// DecodeHeartbeat parses a heartbeat frame received with recvTTL.
func DecodeHeartbeat(buf []byte, recvTTL uint8) (HeartbeatPayload, error) {
	if len(buf) < TTLSize {
		return HeartbeatPayload{}, fmt.Errorf("%w: empty heartbeat frame", ErrShortPayload)
	}
	initTTL := buf[0]
	hops := uint8(1)
	if recvTTL <= initTTL {
		hops = initTTL - recvTTL + 1
	}
	return HeartbeatPayload{
		InitialTTL: initTTL,
		Hops:       hops,
		Text:       strings.TrimRight(string(buf[TTLSize:]), "\x00"),
	}, nil
}

// EncodeBadUser carries the name of the node reporting misbehavior.
func EncodeBadUser(name string) []byte {
	name = firstName(name)
	if len(name) > NameSize {
		name = name[:NameSize]
	}
	return []byte(name)
}

// DecodeBadUser returns the reporter name of a bad-user frame.
func DecodeBadUser(buf []byte) string {
	return decodeName(buf)
}

func decodeName(buf []byte) string {
	if len(buf) > NameSize {
		buf = buf[:NameSize]
	}
	if i := strings.IndexByte(string(buf), 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf)
}

// firstName returns name up to the first space, comma or newline.
func firstName(name string) string {
	if i := strings.IndexAny(name, " ,\n"); i >= 0 {
		return name[:i]
	}
	return name
}
