package domain

import "errors"

var (
	ErrRegistryFull             = errors.New("node registry is full")
	ErrUnknownNode              = errors.New("unknown node")
	ErrInvalidCalibrationWindow = errors.New("proximity outside calibration window")
	ErrAlreadyCalibrated        = errors.New("node already calibrated")
	ErrMalformedPayload         = errors.New("malformed payload")
	ErrMessageTruncated         = errors.New("status message truncated")
	ErrMessageTooLarge          = errors.New("status message exceeds maximum size")
	ErrShortPayload             = errors.New("payload too short")
)
