package compliance

import (
	"fmt"
	"math"

	"github.com/libppp/ppp/pkg/geometry"
	"github.com/libppp/ppp/pkg/landmark"
	"github.com/libppp/ppp/pkg/standard"
)

// Built-in check names.
const (
	HeadHeightRatio = "head-height-ratio"
	EyeLinePosition = "eye-line-position"
	HeadCentered    = "head-centered"
	Margins         = "margins"
	EyesLevel       = "eyes-level"
	CropInBounds    = "crop-in-bounds"
)

// DefaultRegistry returns the built-in rules.
func DefaultRegistry() Registry {
	return Registry{
		HeadHeightRatio: RuleFunc(headHeightRatio),
		EyeLinePosition: RuleFunc(eyeLinePosition),
		HeadCentered:    RuleFunc(headCentered),
		Margins:         RuleFunc(margins),
		EyesLevel:       RuleFunc(eyesLevel),
		CropInBounds:    RuleFunc(cropInBounds),
	}
}

func compare(measured float64, expected standard.Range, quantity string) Outcome {
	o := Outcome{Passed: expected.Contains(measured), Measured: measured, Expected: expected}
	if !o.Passed {
		o.Reason = fmt.Sprintf("%s %.3f outside %s", quantity, measured, expected)
	}
	return o
}

func fail(expected standard.Range, reason string) Outcome {
	return Outcome{Passed: false, Expected: expected, Reason: reason}
}

// headExtent returns crown and chin, or a reason they are unusable.
func headExtent(in Input) (crown, chin geometry.Point, reason string) {
	switch {
	case in.LandMarks == nil || in.LandMarks.Crown == nil || in.LandMarks.Chin == nil:
		return crown, chin, "crown and chin not estimated"
	case in.Crop.Empty():
		return crown, chin, "empty crop region"
	case in.Standard == nil:
		return crown, chin, "no photo standard"
	}
	return *in.LandMarks.Crown, *in.LandMarks.Chin, ""
}

// eyePair returns the pupils, falling back to the outer eye corners.
func eyePair(lm *landmark.LandMarks) (left, right geometry.Point, ok bool) {
	if lm == nil {
		return left, right, false
	}
	pairs := [][2]landmark.LandMarkType{
		{landmark.EyePupilCenterLeft, landmark.EyePupilCenterRight},
		{landmark.EyeOuterCornerLeft, landmark.EyeOuterCornerRight},
	}
	for _, pair := range pairs {
		l, okL := lm.Get(pair[0])
		r, okR := lm.Get(pair[1])
		if okL && okR {
			return l, r, true
		}
	}
	return left, right, false
}

// headHeightRatio measures crown-to-chin height over crop height.
func headHeightRatio(in Input) Outcome {
	var expected standard.Range
	if in.Standard != nil {
		expected = in.Standard.HeadHeight
	}
	crown, chin, reason := headExtent(in)
	if reason != "" {
		return fail(expected, reason)
	}
	return compare((chin.Y-crown.Y)/in.Crop.Height, expected, "head height ratio")
}

// eyeLinePosition measures the eye line's height above the crop bottom.
func eyeLinePosition(in Input) Outcome {
	var expected standard.Range
	if in.Standard != nil {
		expected = in.Standard.EyeLine
	}
	if _, _, reason := headExtent(in); reason != "" {
		return fail(expected, reason)
	}
	left, right, ok := eyePair(in.LandMarks)
	if !ok {
		return fail(expected, "eyes not detected")
	}
	eyeY := left.Midpoint(right).Y
	return compare((in.Crop.Bottom()-eyeY)/in.Crop.Height, expected, "eye line position")
}

// headCentered measures the horizontal offset of the head from the crop
// centre as a fraction of crop width.
func headCentered(in Input) Outcome {
	var expected standard.Range
	if in.Standard != nil {
		expected = standard.Range{Min: 0, Max: in.Standard.CenterTolerance}
	}
	crown, chin, reason := headExtent(in)
	if reason != "" {
		return fail(expected, reason)
	}
	headX := crown.Midpoint(chin).X
	return compare(math.Abs(headX-in.Crop.Center().X)/in.Crop.Width, expected, "head offset")
}

// margins measures the smaller of the space above the crown and below the chin.
func margins(in Input) Outcome {
	var expected standard.Range
	if in.Standard != nil {
		expected = standard.Range{Min: in.Standard.MinMargin, Max: 1}
	}
	crown, chin, reason := headExtent(in)
	if reason != "" {
		return fail(expected, reason)
	}
	top := crown.Y - in.Crop.Y
	bottom := in.Crop.Bottom() - chin.Y
	return compare(math.Min(top, bottom)/in.Crop.Height, expected, "margin")
}

// eyesLevel measures the eye line tilt in degrees.
func eyesLevel(in Input) Outcome {
	var expected standard.Range
	if in.Standard != nil {
		expected = standard.Range{Min: 0, Max: in.Standard.MaxEyeTilt}
	}
	if in.Standard == nil {
		return fail(expected, "no photo standard")
	}
	left, right, ok := eyePair(in.LandMarks)
	if !ok {
		return fail(expected, "eyes not detected")
	}
	d := right.Sub(left)
	tilt := math.Abs(math.Atan2(d.Y, math.Abs(d.X))) * 180 / math.Pi
	return compare(tilt, expected, "eye tilt")
}

// cropInBounds measures the fraction of the crop area covered by the image.
func cropInBounds(in Input) Outcome {
	expected := standard.Range{Min: 1, Max: 1}
	if in.Crop.Empty() {
		return fail(expected, "empty crop region")
	}
	if in.ImageBounds.Empty() {
		return fail(expected, "image bounds unknown")
	}
	inside := in.ImageBounds.Intersect(in.Crop)
	covered := inside.Width * inside.Height / (in.Crop.Width * in.Crop.Height)
	return compare(covered, expected, "crop coverage")
}
