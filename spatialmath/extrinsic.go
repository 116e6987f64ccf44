package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r3"

	"go.viam.com/avclean/utils"
)

// Extrinsic is a rigid transform taking coordinates expressed in the From frame into the
// To frame.
type Extrinsic struct {
	From string `json:"from"`
	To   string `json:"to"`
	Pose Pose   `json:"-"`
}

// NewExtrinsic returns an extrinsic from frame from into frame to.
func NewExtrinsic(from, to string, pose Pose) Extrinsic {
	return Extrinsic{From: from, To: to, Pose: pose}
}

// Transform maps a point from the From frame into the To frame.
func (e Extrinsic) Transform(v r3.Vector) r3.Vector {
	return e.Pose.Transform(v)
}

// Invert returns the extrinsic from To back into From.
func (e Extrinsic) Invert() Extrinsic {
	return Extrinsic{From: e.To, To: e.From, Pose: e.Pose.Invert()}
}

func (e Extrinsic) String() string {
	return fmt.Sprintf("%s->%s %v", e.From, e.To, e.Pose)
}

// ComposeExtrinsics chains inner (A to B) with outer (B to C) into A to C. Frame names must
// line up when both are set.
func ComposeExtrinsics(outer, inner Extrinsic) (Extrinsic, error) {
	if outer.From != "" && inner.To != "" && outer.From != inner.To {
		return Extrinsic{}, utils.NewConfigurationError(
			"extrinsic", fmt.Sprintf("%s after %s", outer, inner),
			fmt.Sprintf("frame %q does not match %q", inner.To, outer.From),
		)
	}
	return Extrinsic{From: inner.From, To: outer.To, Pose: Compose(outer.Pose, inner.Pose)}, nil
}
