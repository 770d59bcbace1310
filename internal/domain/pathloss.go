package domain

import "math"

const (
	// PathLossFactor is 10 × the environmental path-loss exponent (2).
	PathLossFactor = 20.0

	// ProximityMax is the raw proximity reading for two touching boards.
	ProximityMax = 255

	// MaxProximityDistance is the distance in meters at the far edge of the
	// calibration window; MinProximityDistance replaces a zero distance.
	MaxProximityDistance = 0.24
	MinProximityDistance = 0.05

	proximityToMeter = MaxProximityDistance / 235
)

// MeasuredPower estimates the RSSI at one meter from an RSSI observed at the
// given distance in meters.
func MeasuredPower(rssi int, distance float64) float64 {
	if distance == 0 {
		distance = MinProximityDistance
	}
	return float64(rssi) + PathLossFactor*math.Log10(distance)
}

// ProximityToDistance maps a raw 0–255 proximity reading to meters. Only
// meaningful inside the sub-meter calibration range.
func ProximityToDistance(proximity int) float64 {
	return float64(ProximityMax-proximity) * proximityToMeter
}

// DistanceFromPower inverts the path-loss model: the distance in meters at
// which a peer with the given measured power is received at rssi.
func DistanceFromPower(reference float64, rssi int) float64 {
	return math.Pow(10, (reference-float64(rssi))/PathLossFactor)
}
