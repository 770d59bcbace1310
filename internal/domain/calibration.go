package domain

const (
	CalibrationWindowMax = ProximityMax
	CalibrationWindowMin = ProximityMax - 20
)

// CalibrationResult reports what a submitted calibration sample did.
type CalibrationResult int

const (
	// Rejected: proximity outside the calibration window, nothing stored.
	Rejected CalibrationResult = iota
	// AlreadyCalibrated: all samples collected, nothing stored.
	AlreadyCalibrated
	// Accepted: sample stored, calibration still accumulating.
	Accepted
	// FirstCalibration: final sample stored, the peer is calibrated for the
	// first time.
	FirstCalibration
	// Repeat: final sample stored on a peer that had been calibrated before
	// a reset.
	Repeat
)

func (r CalibrationResult) String() string {
	switch r {
	case Rejected:
		return "rejected"
	case AlreadyCalibrated:
		return "already_calibrated"
	case Accepted:
		return "accepted"
	case FirstCalibration:
		return "first_calibration"
	case Repeat:
		return "repeat"
	default:
		return "unknown"
	}
}

// Err maps the result to a sentinel error for callers that want one. Stored
// samples map to nil.
func (r CalibrationResult) Err() error {
	switch r {
	case Rejected:
		return ErrInvalidCalibrationWindow
	case AlreadyCalibrated:
		return ErrAlreadyCalibrated
	default:
		return nil
	}
}

// Completed reports whether the sample finished a calibration ritual.
func (r CalibrationResult) Completed() bool {
	return r == FirstCalibration || r == Repeat
}

// IsValidCalibrationWindow reports whether a proximity reading means the two
// boards are held close enough to be a known-short-range reference.
func IsValidCalibrationWindow(proximity int) bool {
	return CalibrationWindowMin <= proximity && proximity <= CalibrationWindowMax
}

// SubmitSample records a calibration contact from addr. The record is created
// on first contact and its name refreshed on every contact, even when the
// sample itself is rejected. ErrRegistryFull is the only error.
func (r *Registry) SubmitSample(addr uint16, name string, proximity, rssi int) (CalibrationResult, error) {
	n, err := r.lookupOrCreate(addr, name)
	if err != nil {
		return Rejected, err
	}
	n.ContactCount++

	if !IsValidCalibrationWindow(proximity) {
		return Rejected, nil
	}
	if n.CalibrationStep >= CalibrationSteps {
		return AlreadyCalibrated, nil
	}

	n.Samples = append(n.Samples, Sample{Proximity: proximity, RSSI: rssi})
	n.CalibrationStep++
	if n.CalibrationStep < CalibrationSteps {
		return Accepted, nil
	}

	first := !n.WasCalibrated
	finalizeCalibration(n)
	if first {
		return FirstCalibration, nil
	}
	return Repeat, nil
}

// finalizeCalibration averages the measured power of every sample into the
// peer's reference and refreshes its distance.
func finalizeCalibration(n *NodeRecord) {
	var avg float64
	for _, s := range n.Samples {
		avg += MeasuredPower(s.RSSI, ProximityToDistance(s.Proximity))
	}
	avg /= float64(len(n.Samples))

	n.RSSIDistanceFactor = avg
	n.Calibrated = true
	n.WasCalibrated = true
	UpdateEstimatedDistance(n)
}
