// Package main runs the visual odometry pose estimator on a pair of RGB-D frames read from disk and
// prints the estimate as JSON.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/vo/logging"
	"go.viam.com/vo/rimage"
	"go.viam.com/vo/vision/odometry"
)

const (
	flagConfig         = "config"
	flagReferenceColor = "reference-color"
	flagReferenceDepth = "reference-depth"
	flagCurrentColor   = "current-color"
	flagCurrentDepth   = "current-depth"
	flagSolver         = "solver"
	flagDebug          = "debug"
)

type motionOutput struct {
	Success         bool       `json:"success"`
	Rotation        []float64  `json:"rotation,omitempty"`
	Translation     []float64  `json:"translation,omitempty"`
	Quaternion      []float64  `json:"quaternion_xyzw,omitempty"`
	Covariance      []float64  `json:"covariance,omitempty"`
	Degenerate      bool       `json:"covariance_degenerate,omitempty"`
	Inliers         int        `json:"inliers"`
	Correspondences int        `json:"correspondences"`
	Total           int        `json:"total"`
	RawMatches      int        `json:"raw_matches"`
	Refined         *refinedTF `json:"refined,omitempty"`
}

type refinedTF struct {
	Rotation    []float64 `json:"rotation"`
	Translation []float64 `json:"translation"`
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "estimate_motion",
		Usage: "estimate the camera motion between two RGB-D frames",
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:     flagConfig,
				Aliases:  []string{"c"},
				Required: true,
				Usage:    "load the estimator configuration from `FILE` (json or yaml)",
			},
			&cli.PathFlag{Name: flagReferenceColor, Required: true, Usage: "color image of the reference frame"},
			&cli.PathFlag{Name: flagReferenceDepth, Required: true, Usage: "16-bit millimeter depth PNG of the reference frame"},
			&cli.PathFlag{Name: flagCurrentColor, Required: true, Usage: "color image of the current frame"},
			&cli.PathFlag{Name: flagCurrentDepth, Required: true, Usage: "16-bit millimeter depth PNG of the current frame"},
			&cli.StringFlag{Name: flagSolver, Usage: "override the RANSAC minimal solver: rigid or p3p"},
			&cli.BoolFlag{Name: flagDebug, Aliases: []string{"vvv"}, Usage: "enable debug logging"},
		},
		Action: estimateMotionAction,
	}
}

func estimateMotionAction(c *cli.Context) error {
	logger := logging.NewLogger("estimate_motion")
	if c.Bool(flagDebug) {
		logger = logging.NewDebugLogger("estimate_motion")
	}

	cfg, err := odometry.LoadConfig(c.Path(flagConfig))
	if err != nil {
		return err
	}
	if solver := c.String(flagSolver); solver != "" {
		cfg.RANSAC.Solver = odometry.SolverType(solver)
	}

	reference, err := readFrame(c.Path(flagReferenceColor), c.Path(flagReferenceDepth))
	if err != nil {
		return errors.Wrap(err, "reference frame")
	}
	current, err := readFrame(c.Path(flagCurrentColor), c.Path(flagCurrentDepth))
	if err != nil {
		return errors.Wrap(err, "current frame")
	}

	est, err := estimateMotion(c.Context, *cfg, reference, current, logger)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(toOutput(est))
}

func readFrame(colorPath, depthPath string) (odometry.Frame, error) {
	color, err := rimage.OpenImage(colorPath)
	if err != nil {
		return odometry.Frame{}, err
	}
	depth, err := rimage.ReadDepthPNG(depthPath)
	if err != nil {
		return odometry.Frame{}, err
	}
	if color.Bounds().Size() != depth.Bounds().Size() {
		return odometry.Frame{}, errors.Errorf("color image is %v but depth image is %v", color.Bounds().Size(), depth.Bounds().Size())
	}
	return odometry.Frame{Color: color, Depth: depth, Mask: depth.ValidMask()}, nil
}

func estimateMotion(ctx context.Context, cfg odometry.Config, reference, current odometry.Frame, logger logging.Logger,
) (*odometry.Estimate, error) {
	defer utils.UncheckedErrorFunc(logger.Sync)
	pe, err := odometry.NewPoseEstimator(cfg, nil, logger, odometry.WithRefiner(odometry.InlierRefiner{}))
	if err != nil {
		return nil, err
	}
	ok, err := pe.SetReferenceView(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("reference frame has fewer than %d features", cfg.MinReferenceFeatures)
	}
	est, err := pe.Estimate(ctx, current, false)
	if err != nil {
		return nil, err
	}
	logger.Infow("motion estimated", "success", est.Success, "inliers", est.Inliers,
		"correspondences", est.Correspondences, "total", est.Total)
	return est, nil
}

func toOutput(est *odometry.Estimate) motionOutput {
	out := motionOutput{
		Success:         est.Success,
		Inliers:         est.Inliers,
		Correspondences: est.Correspondences,
		Total:           est.Total,
		RawMatches:      est.RawMatches,
	}
	if !est.Success {
		return out
	}
	out.Rotation = est.Pose.Rotation.RawMatrix().Data
	out.Translation = []float64{est.Pose.Translation.X, est.Pose.Translation.Y, est.Pose.Translation.Z}
	q := est.Quaternion
	out.Quaternion = []float64{q.Imag, q.Jmag, q.Kmag, q.Real}
	if est.Covariance != nil {
		out.Covariance = est.Covariance.Matrix.RawSymmetric().Data
		out.Degenerate = est.Covariance.Degenerate
	}
	if est.Refined != nil {
		out.Refined = &refinedTF{
			Rotation:    est.Refined.Rotation.RawMatrix().Data,
			Translation: []float64{est.Refined.Translation.X, est.Refined.Translation.Y, est.Refined.Translation.Z},
		}
	}
	return out
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
