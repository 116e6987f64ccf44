package utils

import (
	"github.com/pkg/errors"
)

var (
	// ErrOutOfRange is returned when a timestamp query falls outside the available data.
	ErrOutOfRange = errors.New("timestamp out of range")
	// ErrUnsupportedPattern is returned for an unknown color filter array layout.
	ErrUnsupportedPattern = errors.New("unsupported mosaic pattern")
	// ErrInsufficientPoints is returned when a statistical operation has too few points.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrDegenerateInput is returned when a geometric operation cannot be performed on its input.
	ErrDegenerateInput = errors.New("degenerate input")
	// ErrConfiguration is returned for an invalid parameter.
	ErrConfiguration = errors.New("invalid configuration")
)

// NewOutOfRangeError is used when ts is not within [first, last].
func NewOutOfRangeError(ts, first, last int64) error {
	return errors.Wrapf(ErrOutOfRange, "%d not within [%d, %d]", ts, first, last)
}

// NewEmptyStreamError is used when a lookup is made on a stream with no samples.
func NewEmptyStreamError() error {
	return errors.Wrap(ErrOutOfRange, "stream has no samples")
}

// NewUnsupportedPatternError is used when a mosaic pattern is not recognized.
func NewUnsupportedPatternError(pattern string) error {
	return errors.Wrapf(ErrUnsupportedPattern, "%q", pattern)
}

// NewInsufficientPointsError is used when an operation needs more than have points.
func NewInsufficientPointsError(have, need int) error {
	return errors.Wrapf(ErrInsufficientPoints, "have %d points, need more than %d", have, need)
}

// NewDegenerateInputError is used when an input cannot support a geometric fit.
func NewDegenerateInputError(msg string) error {
	return errors.Wrap(ErrDegenerateInput, msg)
}

// NewConfigurationError is used when a named parameter has an invalid value.
func NewConfigurationError(param string, value interface{}, reason string) error {
	return errors.Wrapf(ErrConfiguration, "%s=%v: %s", param, value, reason)
}
