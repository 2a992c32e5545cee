package compliance

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libppp/ppp/pkg/geometry"
	"github.com/libppp/ppp/pkg/landmark"
	"github.com/libppp/ppp/pkg/standard"
)

func testStandard() *standard.PhotoStandard {
	return &standard.PhotoStandard{
		Name:            "test",
		PictureWidth:    160,
		PictureHeight:   200,
		Units:           standard.Pixel,
		HeadHeight:      standard.Range{Min: 0.70, Max: 0.80},
		EyeLine:         standard.Range{Min: 0.6, Max: 0.75},
		MinMargin:       0.04,
		CenterTolerance: 0.05,
		MaxEyeTilt:      5,
	}
}

// testInput measures a head ratio of 0.90 with every other rule passing.
func testInput() Input {
	lm := &landmark.LandMarks{}
	lm.Set(landmark.EyePupilCenterLeft, geometry.Pt(120, 150))
	lm.Set(landmark.EyePupilCenterRight, geometry.Pt(180, 150))
	crown := geometry.Pt(150, 100)
	chin := geometry.Pt(150, 280)
	lm.Crown = &crown
	lm.Chin = &chin
	return Input{
		LandMarks:   lm,
		Crop:        geometry.NewRect(70, 90, 160, 200),
		Standard:    testStandard(),
		ImageBounds: geometry.NewRect(0, 0, 400, 400),
	}
}

func TestCheckHeadTooLarge(t *testing.T) {
	c := NewChecker(DefaultRegistry())
	names := []string{HeadHeightRatio, EyeLinePosition, HeadCentered, Margins, EyesLevel, CropInBounds}

	res, err := c.Check(testInput(), names)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, len(names))
	assert.False(t, res.Passed)

	head, ok := res.Outcome(HeadHeightRatio)
	require.True(t, ok)
	assert.False(t, head.Passed)
	assert.InDelta(t, 0.90, head.Measured, 1e-9)
	assert.Equal(t, standard.Range{Min: 0.70, Max: 0.80}, head.Expected)
	assert.Contains(t, head.Reason, "head height ratio")

	failed := res.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, HeadHeightRatio, failed[0].Name)
}

func TestCheckOutcomeOrder(t *testing.T) {
	c := NewChecker(DefaultRegistry())
	names := []string{Margins, HeadHeightRatio, Margins}

	res, err := c.Check(testInput(), names)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 3)
	for i, name := range names {
		assert.Equal(t, name, res.Outcomes[i].Name)
	}
}

func TestCheckUnknownName(t *testing.T) {
	c := NewChecker(DefaultRegistry())

	res, err := c.Check(testInput(), []string{HeadHeightRatio, "ears-visible"})
	assert.True(t, errors.Is(err, ErrUnknownCheck))
	assert.Contains(t, err.Error(), "ears-visible")
	assert.Empty(t, res.Outcomes)
}

func TestCheckNoNames(t *testing.T) {
	res, err := NewChecker(DefaultRegistry()).Check(testInput(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Outcomes)
	assert.True(t, res.Passed)
}

func TestCheckIsDeterministic(t *testing.T) {
	c := NewChecker(DefaultRegistry())
	names := DefaultRegistry().Names()

	a, err := c.Check(testInput(), names)
	require.NoError(t, err)
	b, err := c.Check(testInput(), names)
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Check() mismatch (-first +second):\n%s", diff)
	}
}

func TestRules(t *testing.T) {
	tests := []struct {
		name     string
		check    string
		mutate   func(in *Input)
		passed   bool
		measured float64
	}{
		{"Eye line", EyeLinePosition, nil, true, 0.70},
		{"Centred", HeadCentered, nil, true, 0},
		{"Off centre", HeadCentered, func(in *Input) { in.Crop.X += 16 }, false, 0.10},
		{"Margins", Margins, nil, true, 0.05},
		{"Tight top margin", Margins, func(in *Input) { in.Crop.Y = 98 }, false, 0.01},
		{"Level eyes", EyesLevel, nil, true, 0},
		{"Tilted eyes", EyesLevel, func(in *Input) { in.LandMarks.EyeRightPupil.Y = 210 }, false, 45},
		{"Crop inside", CropInBounds, nil, true, 1},
		{"Crop outside", CropInBounds, func(in *Input) { in.Crop.X = -80 }, false, 0.5},
	}

	reg := DefaultRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := testInput()
			if tt.mutate != nil {
				tt.mutate(&in)
			}
			o := reg[tt.check].Evaluate(in)
			assert.Equal(t, tt.passed, o.Passed, o.Reason)
			assert.InDelta(t, tt.measured, o.Measured, 1e-9)
		})
	}
}

func TestRulesWithoutHeadExtent(t *testing.T) {
	in := testInput()
	in.LandMarks.Crown = nil

	for _, name := range []string{HeadHeightRatio, EyeLinePosition, HeadCentered, Margins} {
		o := DefaultRegistry()[name].Evaluate(in)
		assert.False(t, o.Passed, name)
		assert.Zero(t, o.Measured, name)
		assert.NotEmpty(t, o.Reason, name)
	}
}

func TestEyePairFallsBackToCorners(t *testing.T) {
	lm := &landmark.LandMarks{}
	lm.Set(landmark.EyeOuterCornerLeft, geometry.Pt(100, 150))
	lm.Set(landmark.EyeOuterCornerRight, geometry.Pt(200, 150))

	l, r, ok := eyePair(lm)
	require.True(t, ok)
	assert.Equal(t, geometry.Pt(100, 150), l)
	assert.Equal(t, geometry.Pt(200, 150), r)

	_, _, ok = eyePair(&landmark.LandMarks{})
	assert.False(t, ok)
}
