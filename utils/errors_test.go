package utils

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestErrorTaxonomy(t *testing.T) {
	for _, tc := range []struct {
		err      error
		sentinel error
		msg      string
	}{
		{NewOutOfRangeError(5, 10, 20), ErrOutOfRange, "5 not within [10, 20]"},
		{NewEmptyStreamError(), ErrOutOfRange, "no samples"},
		{NewUnsupportedPatternError("XYZW"), ErrUnsupportedPattern, `"XYZW"`},
		{NewInsufficientPointsError(3, 8), ErrInsufficientPoints, "have 3 points"},
		{NewDegenerateInputError("collinear"), ErrDegenerateInput, "collinear"},
		{NewConfigurationError("radius", -1.0, "must be positive"), ErrConfiguration, "radius=-1"},
	} {
		test.That(t, errors.Is(tc.err, tc.sentinel), test.ShouldBeTrue)
		test.That(t, tc.err.Error(), test.ShouldContainSubstring, tc.msg)
		wrapped := errors.Wrap(tc.err, "frame 3")
		test.That(t, errors.Is(wrapped, tc.sentinel), test.ShouldBeTrue)
	}
	test.That(t, errors.Is(NewOutOfRangeError(0, 1, 2), ErrConfiguration), test.ShouldBeFalse)
}
