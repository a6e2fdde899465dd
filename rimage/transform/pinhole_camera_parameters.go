package transform

import (
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intriniscs are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px" yaml:"width_px"`
	Height int     `json:"height_px" yaml:"height_px"`
	Fx     float64 `json:"fx" yaml:"fx"`
	Fy     float64 `json:"fy" yaml:"fy"`
	Ppx    float64 `json:"ppx" yaml:"ppx"`
	Ppy    float64 `json:"ppy" yaml:"ppy"`
}

// CheckValid reports every field of the intrinsics that cannot describe a real camera. The error
// wraps ErrNoIntrinsics.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("intrinsics are not set")
	}
	var err error
	if params.Width <= 0 || params.Height <= 0 {
		err = multierr.Append(err, errors.Errorf("image size must be positive, got %dx%d", params.Width, params.Height))
	}
	if !(params.Fx > 0) || math.IsInf(params.Fx, 0) {
		err = multierr.Append(err, errors.Errorf("fx must be a positive focal length, got %v", params.Fx))
	}
	if !(params.Fy > 0) || math.IsInf(params.Fy, 0) {
		err = multierr.Append(err, errors.Errorf("fy must be a positive focal length, got %v", params.Fy))
	}
	if !(params.Ppx >= 0) || math.IsInf(params.Ppx, 0) {
		err = multierr.Append(err, errors.Errorf("ppx must not be negative, got %v", params.Ppx))
	}
	if !(params.Ppy >= 0) || math.IsInf(params.Ppy, 0) {
		err = multierr.Append(err, errors.Errorf("ppy must not be negative, got %v", params.Ppy))
	}
	if err != nil {
		return NewNoIntrinsicsError(err.Error())
	}
	return nil
}

// NewPinholeCameraIntrinsicsFromJSONFile takes in a file path to a JSON and turns it into PinholeCameraIntrinsics.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, "error opening JSON file")
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	byteValue, err := io.ReadAll(jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "error reading JSON data")
	}
	intrinsics := &PinholeCameraIntrinsics{}
	if err := json.Unmarshal(byteValue, intrinsics); err != nil {
		return nil, errors.Wrap(err, "error parsing JSON string")
	}
	return intrinsics, nil
}

// PixelToPoint back-projects a pixel with depth z to a 3D point in the optical frame.
// The intrinsics parameters should be the ones of the sensor used to obtain the image that
// contains the pixel.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) r3.Vector {
	return r3.Vector{
		X: (x - params.Ppx) * z / params.Fx,
		Y: (y - params.Ppy) * z / params.Fy,
		Z: z,
	}
}

// PointToPixel projects a 3D point to sub-pixel image coordinates. ok is false when the point does not
// lie in front of the camera.
func (params *PinholeCameraIntrinsics) PointToPixel(pt r3.Vector) (r2.Point, bool) {
	if pt.Z <= 0 {
		return r2.Point{X: -1, Y: -1}, false
	}
	return r2.Point{
		X: pt.X/pt.Z*params.Fx + params.Ppx,
		Y: pt.Y/pt.Z*params.Fy + params.Ppy,
	}, true
}

// Normalize maps a pixel to normalized image coordinates, i.e. K⁻¹·[u v 1].
func (params *PinholeCameraIntrinsics) Normalize(px r2.Point) r2.Point {
	return r2.Point{X: (px.X - params.Ppx) / params.Fx, Y: (px.Y - params.Ppy) / params.Fy}
}

// Denormalize maps normalized image coordinates back to pixels.
func (params *PinholeCameraIntrinsics) Denormalize(pt r2.Point) r2.Point {
	return r2.Point{X: pt.X*params.Fx + params.Ppx, Y: pt.Y*params.Fy + params.Ppy}
}

// BearingVector returns the unit ray through pixel px.
func (params *PinholeCameraIntrinsics) BearingVector(px r2.Point) r3.Vector {
	n := params.Normalize(px)
	return r3.Vector{X: n.X, Y: n.Y, Z: 1}.Normalize()
}

// GetCameraMatrix returns K = [[fx 0 ppx] [0 fy ppy] [0 0 1]].
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		params.Fx, 0, params.Ppx,
		0, params.Fy, params.Ppy,
		0, 0, 1,
	})
}
