// Package domain models the distance estimation and calibration engine of a
// mesh node: the bounded peer registry, the path-loss model and the status
// message codec.
//
// # Path-Loss Model
//
// Distance is estimated with the log-distance path-loss model using a fixed
// environmental exponent of 2 (encoded as the constant 20):
//
//	measured_power = rssi + 20·log10(distance)
//	distance       = 10 ^ ((measured_power − rssi) / 20)
//
// "Measured power" is the RSSI expected at one meter. It is not configured;
// each peer gets its own value from a short calibration ritual.
//
// # Calibration
//
// The operator holds two boards almost touching. A proximity reading in
// [235, 255] (255 = touching) marks a trustworthy short-range sample. The
// proximity reading is mapped linearly to meters:
//
//	distance = (255 − proximity) · (0.24 / 235)
//
// Five accepted (proximity, rssi) samples are converted to measured power and
// averaged into the peer's reference value. The reference is never re-averaged;
// a fresh ritual requires an explicit reset.
//
// # Status Message
//
// Every node periodically broadcasts an ASCII heartbeat:
//
//	<name>,<temperature:.1f>,<humidity>;<count>(,<address:%04x>:<distance:.1f>)*
//
// for example
//
//	bob,21.5,40;2,00a1:1.2,00a2:0.8
//
// The part after ';' is the neighbor digest. Receivers store it verbatim and
// only parse it for display.
//
// # Calibration Frame
//
//	proximity (int32, little-endian) | name (≤ 8 bytes, no terminator)
package domain
