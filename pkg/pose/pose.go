// Package pose estimates head rotation from 2D landmarks by fitting a generic
// 3D face model under a pinhole camera.
package pose

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/libppp/ppp/pkg/geometry"
	"github.com/libppp/ppp/pkg/landmark"
)

var (
	// ErrInsufficientLandmarks is returned when pupils, nose tip and mouth
	// corners are not all set.
	ErrInsufficientLandmarks = errors.New("insufficient landmarks for pose estimation")

	// ErrInvalidCamera is returned for a non-positive focal length.
	ErrInvalidCamera = errors.New("invalid camera intrinsics")
)

// Required lists the landmarks every pose fit needs.
var Required = []landmark.LandMarkType{
	landmark.EyePupilCenterLeft,
	landmark.EyePupilCenterRight,
	landmark.NoseTipPoint,
	landmark.MouthCornerLeft,
	landmark.MouthCornerRight,
}

// Vec3 is a point of the reference face model.
type Vec3 [3]float64

// ReferenceModel is a generic adult face in arbitrary units, nose tip at the
// origin, in camera axes: x to image right, y down, z away from the camera.
var ReferenceModel = map[landmark.LandMarkType]Vec3{
	landmark.NoseTipPoint:        {0, 0, 0},
	landmark.ChinLowestPoint:     {0, 330, 65},
	landmark.EyeOuterCornerLeft:  {-225, -170, 135},
	landmark.EyeOuterCornerRight: {225, -170, 135},
	landmark.EyePupilCenterLeft:  {-160, -170, 125},
	landmark.EyePupilCenterRight: {160, -170, 125},
	landmark.MouthCornerLeft:     {-150, 150, 125},
	landmark.MouthCornerRight:    {150, 150, 125},
}

// Options controls the Levenberg-Marquardt fit.
type Options struct {
	MaxIterations int     `json:"max_iterations" yaml:"max_iterations"` // Default: 100
	Tolerance     float64 `json:"tolerance" yaml:"tolerance"`           // Default: 1e-9 (relative cost change)
	MaxResidual   float64 `json:"max_residual" yaml:"max_residual"`     // Default: 6.0 (px RMS for a reliable fit)
}

// DefaultOptions returns the standard fit settings.
func DefaultOptions() Options {
	return Options{
		MaxIterations: 100,
		Tolerance:     1e-9,
		MaxResidual:   6.0,
	}
}

// Pose is a head orientation in degrees. Yaw turns about the vertical axis,
// pitch about the horizontal axis and roll about the optical axis.
type Pose struct {
	Yaw   float64
	Pitch float64
	Roll  float64

	// ReprojectionError is the RMS distance in pixels between the observed
	// landmarks and the projected model.
	ReprojectionError float64
	Translation       Vec3
	Iterations        int
	Converged         bool
	Reliable          bool
}

func (p Pose) String() string {
	return fmt.Sprintf("yaw=%.1f pitch=%.1f roll=%.1f err=%.2fpx", p.Yaw, p.Pitch, p.Roll, p.ReprojectionError)
}

// Estimator holds no per-call state and is safe for concurrent use.
type Estimator struct {
	opts Options
}

// New creates an Estimator.
func New(opts Options) *Estimator {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}
	return &Estimator{opts: opts}
}

type camera struct {
	f      float64
	cx, cy float64
}

func (c camera) project(rot *mat.Dense, t Vec3, x Vec3) (float64, float64) {
	var pc [3]float64
	for i := 0; i < 3; i++ {
		pc[i] = rot.At(i, 0)*x[0] + rot.At(i, 1)*x[1] + rot.At(i, 2)*x[2] + t[i]
	}
	return c.f*pc[0]/pc[2] + c.cx, c.f*pc[1]/pc[2] + c.cy
}

// EstimatePose fits rotation and translation minimising reprojection error.
func (e *Estimator) EstimatePose(lm *landmark.LandMarks, focalLength float64, focalCenter geometry.Point) (Pose, error) {
	if focalLength <= 0 || !focalCenter.Valid() {
		return Pose{}, ErrInvalidCamera
	}
	if lm == nil || !lm.Has(Required...) {
		return Pose{}, ErrInsufficientLandmarks
	}
	cam := camera{f: focalLength, cx: focalCenter.X, cy: focalCenter.Y}

	var model []Vec3
	var observed []float64
	for _, t := range landmark.AllTypes() {
		p, ok := lm.Get(t)
		ref, known := ReferenceModel[t]
		if !ok || !known {
			continue
		}
		model = append(model, ref)
		observed = append(observed, p.X, p.Y)
	}

	params := initialGuess(lm, cam)
	residuals := func(p []float64, dst []float64) {
		rot := rodrigues(p[0], p[1], p[2])
		t := Vec3{p[3], p[4], p[5]}
		for i, x := range model {
			u, v := cam.project(rot, t, x)
			dst[2*i] = u - observed[2*i]
			dst[2*i+1] = v - observed[2*i+1]
		}
	}

	iters, converged := levenbergMarquardt(residuals, params, len(observed), e.opts)

	r := make([]float64, len(observed))
	residuals(params, r)
	rms := math.Sqrt(floats.Dot(r, r) / float64(len(model)))

	yaw, pitch, roll := eulerAngles(rodrigues(params[0], params[1], params[2]))
	return Pose{
		Yaw:               yaw,
		Pitch:             pitch,
		Roll:              roll,
		ReprojectionError: rms,
		Translation:       Vec3{params[3], params[4], params[5]},
		Iterations:        iters,
		Converged:         converged,
		Reliable:          converged && rms <= e.opts.MaxResidual,
	}, nil
}

// initialGuess assumes a frontal face and sets depth from the interpupillary
// distance.
func initialGuess(lm *landmark.LandMarks, cam camera) []float64 {
	left, _ := lm.Get(landmark.EyePupilCenterLeft)
	right, _ := lm.Get(landmark.EyePupilCenterRight)
	nose, _ := lm.Get(landmark.NoseTipPoint)

	refL := ReferenceModel[landmark.EyePupilCenterLeft]
	refR := ReferenceModel[landmark.EyePupilCenterRight]
	modelDist := math.Abs(refR[0] - refL[0])
	imageDist := math.Max(left.Distance(right), 1)

	tz := cam.f * modelDist / imageDist
	tx := (nose.X - cam.cx) * tz / cam.f
	ty := (nose.Y - cam.cy) * tz / cam.f
	return []float64{0, 0, 0, tx, ty, tz}
}

// levenbergMarquardt minimises the sum of squared residuals in place over
// params using a forward-difference Jacobian.
func levenbergMarquardt(fn func(p, dst []float64), params []float64, m int, opts Options) (int, bool) {
	n := len(params)
	r := make([]float64, m)
	rTrial := make([]float64, m)
	rStep := make([]float64, m)
	trial := make([]float64, n)

	fn(params, r)
	cost := floats.Dot(r, r)
	lambda := 1e-3

	jac := mat.NewDense(m, n, nil)
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		for j := 0; j < n; j++ {
			h := 1e-6 * math.Max(1, math.Abs(params[j]))
			copy(trial, params)
			trial[j] += h
			fn(trial, rStep)
			for i := 0; i < m; i++ {
				jac.Set(i, j, (rStep[i]-r[i])/h)
			}
		}

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var g mat.VecDense
		g.MulVec(jac.T(), mat.NewVecDense(m, r))

		improved := false
		for attempt := 0; attempt < 10; attempt++ {
			a := mat.DenseCopyOf(&jtj)
			for d := 0; d < n; d++ {
				a.Set(d, d, jtj.At(d, d)*(1+lambda)+1e-12)
			}
			var delta mat.VecDense
			if err := delta.SolveVec(a, &g); err != nil {
				lambda *= 10
				continue
			}
			for j := 0; j < n; j++ {
				trial[j] = params[j] - delta.AtVec(j)
			}
			fn(trial, rTrial)
			trialCost := floats.Dot(rTrial, rTrial)
			if trialCost < cost {
				copy(params, trial)
				copy(r, rTrial)
				done := cost-trialCost <= opts.Tolerance*math.Max(cost, 1)
				cost = trialCost
				lambda = math.Max(lambda/10, 1e-12)
				improved = true
				if done {
					return iter, true
				}
				break
			}
			lambda *= 10
		}
		if !improved {
			// No step reduces the cost: a local minimum.
			return iter, true
		}
	}
	return opts.MaxIterations, false
}

// rodrigues converts a rotation vector to a rotation matrix.
func rodrigues(rx, ry, rz float64) *mat.Dense {
	theta := math.Sqrt(rx*rx + ry*ry + rz*rz)
	if theta < 1e-12 {
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	}
	kx, ky, kz := rx/theta, ry/theta, rz/theta
	c, s := math.Cos(theta), math.Sin(theta)
	v := 1 - c
	return mat.NewDense(3, 3, []float64{
		c + kx*kx*v, kx*ky*v - kz*s, kx*kz*v + ky*s,
		ky*kx*v + kz*s, c + ky*ky*v, ky*kz*v - kx*s,
		kz*kx*v - ky*s, kz*ky*v + kx*s, c + kz*kz*v,
	})
}

// rotationFromEuler builds Rz(roll) * Ry(yaw) * Rx(pitch) from degrees.
func rotationFromEuler(yaw, pitch, roll float64) *mat.Dense {
	y, p, r := yaw*math.Pi/180, pitch*math.Pi/180, roll*math.Pi/180
	rx := mat.NewDense(3, 3, []float64{1, 0, 0, 0, math.Cos(p), -math.Sin(p), 0, math.Sin(p), math.Cos(p)})
	ry := mat.NewDense(3, 3, []float64{math.Cos(y), 0, math.Sin(y), 0, 1, 0, -math.Sin(y), 0, math.Cos(y)})
	rz := mat.NewDense(3, 3, []float64{math.Cos(r), -math.Sin(r), 0, math.Sin(r), math.Cos(r), 0, 0, 0, 1})
	var zy, out mat.Dense
	zy.Mul(rz, ry)
	out.Mul(&zy, rx)
	return &out
}

// eulerAngles is the inverse of rotationFromEuler.
func eulerAngles(rot *mat.Dense) (yaw, pitch, roll float64) {
	const deg = 180 / math.Pi
	pitch = math.Atan2(rot.At(2, 1), rot.At(2, 2)) * deg
	yaw = math.Atan2(-rot.At(2, 0), math.Hypot(rot.At(2, 1), rot.At(2, 2))) * deg
	roll = math.Atan2(rot.At(1, 0), rot.At(0, 0)) * deg
	return yaw, pitch, roll
}
