package landmark

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/libppp/ppp/pkg/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pt(x, y float64) *geometry.Point {
	p := geometry.Pt(x, y)
	return &p
}

func TestParseType(t *testing.T) {
	for _, lt := range AllTypes() {
		parsed, err := ParseType(lt.String())
		require.NoError(t, err)
		assert.Equal(t, lt, parsed)
	}

	parsed, err := ParseType("EYE_PUPIL_CENTER_LEFT")
	require.NoError(t, err)
	assert.Equal(t, EyePupilCenterLeft, parsed)

	_, err = ParseType("forehead")
	assert.Error(t, err)
	assert.Equal(t, "LandMarkType(42)", LandMarkType(42).String())
}

func TestLandMarksGetSet(t *testing.T) {
	var lm LandMarks
	assert.Equal(t, 0, lm.Count())

	_, ok := lm.Get(NoseTipPoint)
	assert.False(t, ok)

	lm.Set(NoseTipPoint, geometry.Pt(10, 20))
	p, ok := lm.Get(NoseTipPoint)
	require.True(t, ok)
	assert.Equal(t, geometry.Pt(10, 20), p)
	assert.True(t, lm.Has(NoseTipPoint))
	assert.False(t, lm.Has(NoseTipPoint, ChinLowestPoint))

	lm.Set(NoseTipPoint, geometry.Invalid)
	assert.Nil(t, lm.NoseTip)
}

func TestLandMarksClone(t *testing.T) {
	lm := &LandMarks{EyeLeftPupil: pt(1, 2), Crown: pt(3, 4), FaceRect: geometry.NewRect(0, 0, 10, 10)}
	c := lm.Clone()

	assert.Empty(t, cmp.Diff(lm, c))
	c.EyeLeftPupil.X = 99
	c.Crown.Y = 99
	assert.Equal(t, 1.0, lm.EyeLeftPupil.X)
	assert.Equal(t, 4.0, lm.Crown.Y)
}

func TestLandMarksMirrorX(t *testing.T) {
	lm := &LandMarks{
		EyeLeftPupil:  pt(100, 150),
		EyeRightPupil: pt(200, 150),
		NoseTip:       pt(140, 200),
		Chin:          pt(150, 300),
		FaceRect:      geometry.NewRect(50, 50, 200, 250),
		LeftEyeRect:   geometry.NewRect(80, 130, 40, 40),
	}
	m := lm.MirrorX(150)

	assert.Equal(t, geometry.Pt(100, 150), *m.EyeLeftPupil)
	assert.Equal(t, geometry.Pt(200, 150), *m.EyeRightPupil)
	assert.Equal(t, geometry.Pt(160, 200), *m.NoseTip)
	assert.Equal(t, geometry.Pt(150, 300), *m.Chin)
	assert.Equal(t, geometry.NewRect(50, 50, 200, 250), m.FaceRect)
	assert.Equal(t, geometry.NewRect(180, 130, 40, 40), m.RightEyeRect)
	assert.True(t, m.LeftEyeRect.Empty())

	assert.Empty(t, cmp.Diff(lm.Clone(), m.MirrorX(150)))
}

func TestIndexMapTranslate(t *testing.T) {
	bounds := geometry.NewRect(0, 0, 640, 480)

	t.Run("Single and averaged indices", func(t *testing.T) {
		m := IndexMap{
			EyePupilCenterLeft: {0},
			NoseTipPoint:       {1, 2},
		}
		raw := []geometry.Point{geometry.Pt(10, 10), geometry.Pt(100, 200), geometry.Pt(120, 220)}

		var lm LandMarks
		require.NoError(t, m.Translate(raw, bounds, &lm))
		assert.Equal(t, geometry.Pt(10, 10), *lm.EyeLeftPupil)
		assert.Equal(t, geometry.Pt(110, 210), *lm.NoseTip)
		assert.Nil(t, lm.ChinLowest)
	})

	t.Run("Missing source point leaves type unset", func(t *testing.T) {
		m := IndexMap{NoseTipPoint: {0, 1}}
		raw := []geometry.Point{geometry.Pt(100, 200), geometry.Invalid}

		lm := LandMarks{NoseTip: pt(1, 1)}
		require.NoError(t, m.Translate(raw, bounds, &lm))
		assert.Nil(t, lm.NoseTip)
	})

	t.Run("Point outside the image is unset", func(t *testing.T) {
		m := IndexMap{ChinLowestPoint: {0}}
		var lm LandMarks
		require.NoError(t, m.Translate([]geometry.Point{geometry.Pt(10, 900)}, bounds, &lm))
		assert.Nil(t, lm.ChinLowest)
	})

	t.Run("Short raw vector is an error", func(t *testing.T) {
		m := IndexMap{ChinLowestPoint: {8}}
		var lm LandMarks
		err := m.Translate([]geometry.Point{geometry.Pt(1, 1)}, bounds, &lm)
		assert.True(t, errors.Is(err, ErrIndexOutOfRange))
	})
}

func TestIndexMapValidate(t *testing.T) {
	assert.NoError(t, PigoIndexMap().Validate(PigoPointCount))
	assert.NoError(t, IBUG68IndexMap().Validate(IBUG68PointCount))

	err := IBUG68IndexMap().Validate(PigoPointCount)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
	assert.Error(t, IndexMap{NoseTipPoint: {-1}}.Validate(10))
}

func TestNewIndexMap(t *testing.T) {
	m, err := NewIndexMap(map[string][]int{
		"eye-pupil-center-left": {0},
		"NOSE_TIP_POINT":        {3, 4},
	})
	require.NoError(t, err)
	assert.Equal(t, IndexMap{EyePupilCenterLeft: {0}, NoseTipPoint: {3, 4}}, m)
	assert.Equal(t, []LandMarkType{EyePupilCenterLeft, NoseTipPoint}, m.Types())

	_, err = NewIndexMap(map[string][]int{"ear": {1}})
	assert.Error(t, err)
	_, err = NewIndexMap(map[string][]int{"nose-tip-point": {}})
	assert.Error(t, err)
}

func TestPreset(t *testing.T) {
	m, n, err := Preset("ibug68")
	require.NoError(t, err)
	assert.Equal(t, IBUG68PointCount, n)
	assert.Len(t, m, 8)

	_, n, err = Preset("")
	require.NoError(t, err)
	assert.Equal(t, PigoPointCount, n)

	_, _, err = Preset("mediapipe")
	assert.Error(t, err)
}
