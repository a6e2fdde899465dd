package transform

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// IdealCamera maps raw pixels of a distorted sensor onto an ideal pinhole described by a
// projection intrinsics P, like the rectified P matrix of a camera_info message.
type IdealCamera struct {
	Intrinsics *PinholeCameraIntrinsics
	Projection *PinholeCameraIntrinsics
	Distortion *InverseBrownConrady
}

// NewIdealCamera returns an IdealCamera. A nil projection means the raw intrinsics are kept and a
// nil distortion means the lens is ideal.
func NewIdealCamera(intrinsics, projection *PinholeCameraIntrinsics, distortion *InverseBrownConrady) (*IdealCamera, error) {
	if err := intrinsics.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "invalid raw intrinsics")
	}
	if projection == nil {
		projection = intrinsics
	} else if err := projection.CheckValid(); err != nil {
		return nil, errors.Wrap(err, "invalid projection intrinsics")
	}
	if err := distortion.CheckValid(); err != nil {
		return nil, err
	}
	return &IdealCamera{Intrinsics: intrinsics, Projection: projection, Distortion: distortion}, nil
}

// UndistortPoint returns the idealized pixel, expressed with the projection intrinsics, of a raw pixel.
func (ic *IdealCamera) UndistortPoint(raw r2.Point) (r2.Point, error) {
	n := ic.Intrinsics.Normalize(raw)
	xu, yu, err := ic.Distortion.Transform(n.X, n.Y)
	if err != nil {
		return r2.Point{}, err
	}
	return ic.Projection.Denormalize(r2.Point{X: xu, Y: yu}), nil
}

// Undistort idealizes every raw pixel. Any failing point fails the whole call so that the output
// stays index aligned with the input.
func (ic *IdealCamera) Undistort(raw []r2.Point) ([]r2.Point, error) {
	if ic == nil || ic.Intrinsics == nil || ic.Projection == nil {
		return nil, NewNoIntrinsicsError("ideal camera is not configured")
	}
	out := make([]r2.Point, len(raw))
	for i, p := range raw {
		ideal, err := ic.UndistortPoint(p)
		if err != nil {
			return nil, errors.Wrapf(err, "point %d", i)
		}
		out[i] = ideal
	}
	return out, nil
}

// DistortPoint maps an idealized pixel back to the raw sensor.
func (ic *IdealCamera) DistortPoint(ideal r2.Point) r2.Point {
	n := ic.Projection.Normalize(ideal)
	xd, yd := ic.Distortion.Distort(n.X, n.Y)
	return ic.Intrinsics.Denormalize(r2.Point{X: xd, Y: yd})
}
