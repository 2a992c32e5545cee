package pose

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libppp/ppp/pkg/geometry"
	"github.com/libppp/ppp/pkg/landmark"
)

var testCam = camera{f: 800, cx: 320, cy: 240}

// synthetic projects the reference model at the given orientation.
func synthetic(yaw, pitch, roll float64, types ...landmark.LandMarkType) *landmark.LandMarks {
	rot := rotationFromEuler(yaw, pitch, roll)
	t := Vec3{0, 0, 1500}
	lm := &landmark.LandMarks{}
	for _, lt := range types {
		u, v := testCam.project(rot, t, ReferenceModel[lt])
		lm.Set(lt, geometry.Pt(u, v))
	}
	return lm
}

func TestEstimatePoseFrontal(t *testing.T) {
	e := New(DefaultOptions())
	lm := synthetic(0, 0, 0, landmark.AllTypes()...)

	// Frontal and symmetric about the optical centre.
	assert.InDelta(t, 320, lm.NoseTip.X, 1e-9)
	assert.InDelta(t, lm.EyeLeftPupil.Y, lm.EyeRightPupil.Y, 1e-9)

	p, err := e.EstimatePose(lm, testCam.f, geometry.Pt(testCam.cx, testCam.cy))
	require.NoError(t, err)

	assert.InDelta(t, 0, p.Yaw, 0.1)
	assert.InDelta(t, 0, p.Pitch, 0.1)
	assert.InDelta(t, 0, p.Roll, 0.1)
	assert.Less(t, p.ReprojectionError, 0.01)
	assert.True(t, p.Converged)
	assert.True(t, p.Reliable)
	assert.InDelta(t, 1500, p.Translation[2], 1)
}

func TestEstimatePoseMinimalLandmarks(t *testing.T) {
	e := New(DefaultOptions())
	lm := synthetic(0, 0, 0, Required...)

	p, err := e.EstimatePose(lm, testCam.f, geometry.Pt(testCam.cx, testCam.cy))
	require.NoError(t, err)
	assert.InDelta(t, 0, p.Yaw, 0.5)
	assert.InDelta(t, 0, p.Pitch, 0.5)
	assert.InDelta(t, 0, p.Roll, 0.5)
}

func TestEstimatePoseRecoversRotation(t *testing.T) {
	e := New(DefaultOptions())

	tests := []struct {
		name             string
		yaw, pitch, roll float64
	}{
		{"Yaw", 15, 0, 0},
		{"Pitch", 0, -10, 0},
		{"Roll", 0, 0, 8},
		{"Combined", -12, 6, -4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lm := synthetic(tt.yaw, tt.pitch, tt.roll, landmark.AllTypes()...)
			p, err := e.EstimatePose(lm, testCam.f, geometry.Pt(testCam.cx, testCam.cy))
			require.NoError(t, err)
			assert.InDelta(t, tt.yaw, p.Yaw, 0.5)
			assert.InDelta(t, tt.pitch, p.Pitch, 0.5)
			assert.InDelta(t, tt.roll, p.Roll, 0.5)
			assert.Less(t, p.ReprojectionError, 0.1)
		})
	}
}

func TestEstimatePoseIsDeterministic(t *testing.T) {
	e := New(DefaultOptions())
	lm := synthetic(10, 5, 2, landmark.AllTypes()...)
	center := geometry.Pt(testCam.cx, testCam.cy)

	a, err := e.EstimatePose(lm, testCam.f, center)
	require.NoError(t, err)
	b, err := e.EstimatePose(lm, testCam.f, center)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEstimatePoseErrors(t *testing.T) {
	e := New(Options{})
	full := synthetic(0, 0, 0, landmark.AllTypes()...)
	center := geometry.Pt(320, 240)

	_, err := e.EstimatePose(nil, 800, center)
	assert.True(t, errors.Is(err, ErrInsufficientLandmarks))

	partial := full.Clone()
	partial.NoseTip = nil
	_, err = e.EstimatePose(partial, 800, center)
	assert.True(t, errors.Is(err, ErrInsufficientLandmarks))

	_, err = e.EstimatePose(full, 0, center)
	assert.True(t, errors.Is(err, ErrInvalidCamera))
	_, err = e.EstimatePose(full, 800, geometry.Invalid)
	assert.True(t, errors.Is(err, ErrInvalidCamera))
}

func TestRotationHelpers(t *testing.T) {
	rot := rotationFromEuler(20, -15, 30)
	yaw, pitch, roll := eulerAngles(rot)
	assert.InDelta(t, 20, yaw, 1e-9)
	assert.InDelta(t, -15, pitch, 1e-9)
	assert.InDelta(t, 30, roll, 1e-9)

	// A rotation vector along z is a pure roll.
	r := rodrigues(0, 0, math.Pi/6)
	_, _, roll = eulerAngles(r)
	assert.InDelta(t, 30, roll, 1e-9)

	id := rodrigues(0, 0, 0)
	assert.Equal(t, 1.0, id.At(0, 0))
	assert.Equal(t, 0.0, id.At(0, 1))
}
