// Package crownchin estimates the crown and chin of a head from facial
// landmarks. The crown is never observed directly; it is projected above the
// eye line in proportion to the eye-to-chin distance.
package crownchin

import (
	"errors"
	"math"

	"github.com/libppp/ppp/pkg/geometry"
	"github.com/libppp/ppp/pkg/landmark"
)

// ErrNoLandmarks is returned when neither landmarks nor a face region can
// anchor the estimate.
var ErrNoLandmarks = errors.New("no usable landmarks or face region")

// Calibration holds the anthropometric proportions used by the estimator.
type Calibration struct {
	CrownEyeChinRatio   float64 `json:"crown_eye_chin_ratio" yaml:"crown_eye_chin_ratio"`     // Default: 0.97
	EyeLineFaceFraction float64 `json:"eye_line_face_fraction" yaml:"eye_line_face_fraction"` // Default: 0.42 (from box top)
	ChinFaceFraction    float64 `json:"chin_face_fraction" yaml:"chin_face_fraction"`         // Default: 1.0 (box bottom)
	ChinMouthRatio      float64 `json:"chin_mouth_ratio" yaml:"chin_mouth_ratio"`             // Default: 0.8
}

// DefaultCalibration returns the proportions fitted on frontal mugshots.
func DefaultCalibration() Calibration {
	return Calibration{
		CrownEyeChinRatio:   0.97,
		EyeLineFaceFraction: 0.42,
		ChinFaceFraction:    1.0,
		ChinMouthRatio:      0.8,
	}
}

// Confidence grades how the estimate was anchored.
type Confidence int

const (
	// Low means the eye line came from the face region alone.
	Low Confidence = iota
	// Medium means the eye line came from landmarks but the chin was projected
	// or taken from the face region.
	Medium
	// High means both the eye line and the chin came from landmarks.
	High
)

func (c Confidence) String() string {
	switch c {
	case High:
		return "high"
	case Medium:
		return "medium"
	}
	return "low"
}

// Result is the estimated head extent.
type Result struct {
	Crown      geometry.Point
	Chin       geometry.Point
	Confidence Confidence
	// Clamped is set when a projected point left the image and was pulled
	// back onto its edge.
	Clamped    bool
}

// HeadHeight returns the crown-to-chin distance.
func (r Result) HeadHeight() float64 {
	return r.Crown.Distance(r.Chin)
}

// Estimator is stateless apart from its calibration and safe for concurrent use.
type Estimator struct {
	cal Calibration
}

// New creates an Estimator.
func New(cal Calibration) *Estimator {
	return &Estimator{cal: cal}
}

// Estimate computes crown and chin. face may be nil when only landmarks are
// available. A non-empty bounds keeps both points inside the image; a clamped
// estimate is graded one confidence level lower.
func (e *Estimator) Estimate(lm *landmark.LandMarks, face *geometry.Rect, bounds geometry.Rect) (Result, error) {
	if lm == nil {
		lm = &landmark.LandMarks{}
	}
	if face != nil && face.Empty() {
		face = nil
	}

	x, okX := e.centerX(lm, face)

	eyeY, chinY, conf, ok := e.fromLandmarks(lm)
	if !ok {
		if face == nil {
			return Result{}, ErrNoLandmarks
		}
		eyeY, chinY, conf = e.fromFace(lm, *face)
	}
	if !okX {
		return Result{}, ErrNoLandmarks
	}

	crownY := eyeY - e.cal.CrownEyeChinRatio*(chinY-eyeY)
	chinX := x
	if c, ok := lm.Get(landmark.ChinLowestPoint); ok {
		chinX = c.X
	}
	res := Result{
		Crown:      geometry.Pt(x, crownY),
		Chin:       geometry.Pt(chinX, chinY),
		Confidence: conf,
	}
	if bounds.Empty() {
		return res, nil
	}

	crown, cc := clamp(res.Crown, bounds)
	chin, ch := clamp(res.Chin, bounds)
	if chin.Y <= crown.Y {
		return Result{}, ErrNoLandmarks
	}
	res.Crown, res.Chin = crown, chin
	if cc || ch {
		res.Clamped = true
		if res.Confidence > Low {
			res.Confidence--
		}
	}
	return res, nil
}

func clamp(p geometry.Point, r geometry.Rect) (geometry.Point, bool) {
	q := geometry.Pt(math.Min(math.Max(p.X, r.X), r.Right()), math.Min(math.Max(p.Y, r.Y), r.Bottom()))
	return q, q != p
}

// fromLandmarks anchors on the pupils. The chin is the chin landmark when
// present, otherwise it is projected below the mouth line.
func (e *Estimator) fromLandmarks(lm *landmark.LandMarks) (eyeY, chinY float64, conf Confidence, ok bool) {
	eyeY, ok = pupilLine(lm)
	if !ok {
		return 0, 0, Low, false
	}

	if chin, ok := lm.Get(landmark.ChinLowestPoint); ok {
		chinY, conf = chin.Y, High
	} else if lm.Has(landmark.MouthCornerLeft, landmark.MouthCornerRight) {
		ml, _ := lm.Get(landmark.MouthCornerLeft)
		mr, _ := lm.Get(landmark.MouthCornerRight)
		mouthY := ml.Midpoint(mr).Y
		chinY, conf = mouthY+e.cal.ChinMouthRatio*(mouthY-eyeY), Medium
	} else {
		return 0, 0, Low, false
	}

	if chinY <= eyeY {
		return 0, 0, Low, false
	}
	return eyeY, chinY, conf, true
}

// fromFace takes the chin from the face region. The eye line is the pupil
// line when it lies above that chin, otherwise a fixed fraction of the face.
func (e *Estimator) fromFace(lm *landmark.LandMarks, face geometry.Rect) (eyeY, chinY float64, conf Confidence) {
	chinY = face.Y + e.cal.ChinFaceFraction*face.Height
	if y, ok := pupilLine(lm); ok && y < chinY {
		return y, chinY, Medium
	}
	eyeY = face.Y + e.cal.EyeLineFaceFraction*face.Height
	if chin, ok := lm.Get(landmark.ChinLowestPoint); ok && chin.Y > eyeY {
		chinY = chin.Y
	}
	return eyeY, chinY, Low
}

func pupilLine(lm *landmark.LandMarks) (float64, bool) {
	left, okL := lm.Get(landmark.EyePupilCenterLeft)
	right, okR := lm.Get(landmark.EyePupilCenterRight)
	if !okL || !okR {
		return 0, false
	}
	return left.Midpoint(right).Y, true
}

// centerX picks the head's horizontal centre: outer eye corners, then pupils,
// then the face region.
func (e *Estimator) centerX(lm *landmark.LandMarks, face *geometry.Rect) (float64, bool) {
	pairs := [][2]landmark.LandMarkType{
		{landmark.EyeOuterCornerLeft, landmark.EyeOuterCornerRight},
		{landmark.EyePupilCenterLeft, landmark.EyePupilCenterRight},
	}
	for _, pair := range pairs {
		a, okA := lm.Get(pair[0])
		b, okB := lm.Get(pair[1])
		if okA && okB {
			return a.Midpoint(b).X, true
		}
	}
	if face != nil {
		return face.Center().X, true
	}
	if c, ok := lm.Get(landmark.ChinLowestPoint); ok {
		return c.X, true
	}
	return 0, false
}
