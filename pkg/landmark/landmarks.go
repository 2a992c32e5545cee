// Package landmark holds the semantic facial landmark record and the index maps
// that translate raw refinement model output into it.
package landmark

import (
	"fmt"
	"strings"

	"github.com/libppp/ppp/pkg/geometry"
)

// LandMarkType identifies a semantic facial landmark. Left and right are in
// image coordinates: Left is the point with the smaller x.
type LandMarkType int

const (
	EyePupilCenterLeft LandMarkType = iota
	EyePupilCenterRight
	MouthCornerLeft
	MouthCornerRight
	ChinLowestPoint
	NoseTipPoint
	EyeOuterCornerLeft
	EyeOuterCornerRight

	numLandMarkTypes
)

var typeNames = [numLandMarkTypes]string{
	"eye-pupil-center-left",
	"eye-pupil-center-right",
	"mouth-corner-left",
	"mouth-corner-right",
	"chin-lowest-point",
	"nose-tip-point",
	"eye-outer-corner-left",
	"eye-outer-corner-right",
}

// AllTypes returns every landmark type in declaration order.
func AllTypes() []LandMarkType {
	types := make([]LandMarkType, numLandMarkTypes)
	for i := range types {
		types[i] = LandMarkType(i)
	}
	return types
}

func (t LandMarkType) String() string {
	if t < 0 || t >= numLandMarkTypes {
		return fmt.Sprintf("LandMarkType(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType resolves a configuration name such as "nose-tip-point".
// Underscores and upper case are accepted.
func ParseType(name string) (LandMarkType, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", "-"))
	for i, n := range typeNames {
		if n == normalized {
			return LandMarkType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown landmark type %q", name)
}

// LandMarks is the per-request result of landmark detection. A nil point is
// unset: the stage that should have produced it failed or the model does not
// report it.
type LandMarks struct {
	EyeLeftPupil        *geometry.Point `json:"eye_left_pupil,omitempty"`
	EyeRightPupil       *geometry.Point `json:"eye_right_pupil,omitempty"`
	LipLeftCorner       *geometry.Point `json:"lip_left_corner,omitempty"`
	LipRightCorner      *geometry.Point `json:"lip_right_corner,omitempty"`
	ChinLowest          *geometry.Point `json:"chin_lowest,omitempty"`
	NoseTip             *geometry.Point `json:"nose_tip,omitempty"`
	EyeLeftOuterCorner  *geometry.Point `json:"eye_left_outer_corner,omitempty"`
	EyeRightOuterCorner *geometry.Point `json:"eye_right_outer_corner,omitempty"`

	// Estimated by the crown/chin stage.
	Crown *geometry.Point `json:"crown,omitempty"`
	Chin  *geometry.Point `json:"chin,omitempty"`

	FaceRect     geometry.Rect `json:"face_rect"`
	LeftEyeRect  geometry.Rect `json:"left_eye_rect"`
	RightEyeRect geometry.Rect `json:"right_eye_rect"`
}

func (lm *LandMarks) field(t LandMarkType) **geometry.Point {
	switch t {
	case EyePupilCenterLeft:
		return &lm.EyeLeftPupil
	case EyePupilCenterRight:
		return &lm.EyeRightPupil
	case MouthCornerLeft:
		return &lm.LipLeftCorner
	case MouthCornerRight:
		return &lm.LipRightCorner
	case ChinLowestPoint:
		return &lm.ChinLowest
	case NoseTipPoint:
		return &lm.NoseTip
	case EyeOuterCornerLeft:
		return &lm.EyeLeftOuterCorner
	case EyeOuterCornerRight:
		return &lm.EyeRightOuterCorner
	}
	return nil
}

// Get returns the point for t and whether it is set.
func (lm *LandMarks) Get(t LandMarkType) (geometry.Point, bool) {
	f := lm.field(t)
	if f == nil || *f == nil {
		return geometry.Invalid, false
	}
	return **f, true
}

// Set stores p for t. Non-finite points clear the field.
func (lm *LandMarks) Set(t LandMarkType, p geometry.Point) {
	f := lm.field(t)
	if f == nil {
		return
	}
	if !p.Valid() {
		*f = nil
		return
	}
	*f = &p
}

// Has reports whether every listed type is set.
func (lm *LandMarks) Has(types ...LandMarkType) bool {
	for _, t := range types {
		if _, ok := lm.Get(t); !ok {
			return false
		}
	}
	return true
}

// Count returns the number of semantic landmarks that are set.
func (lm *LandMarks) Count() int {
	n := 0
	for _, t := range AllTypes() {
		if _, ok := lm.Get(t); ok {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (lm *LandMarks) Clone() *LandMarks {
	if lm == nil {
		return nil
	}
	c := *lm
	for _, t := range AllTypes() {
		if p, ok := lm.Get(t); ok {
			c.Set(t, p)
		}
	}
	c.Crown = clonePoint(lm.Crown)
	c.Chin = clonePoint(lm.Chin)
	return &c
}

// MirrorX reflects every point and region across x = axis. Left and right
// fields swap so the image-left convention still holds.
func (lm *LandMarks) MirrorX(axis float64) *LandMarks {
	m := &LandMarks{
		FaceRect:     mirrorRect(lm.FaceRect, axis),
		LeftEyeRect:  mirrorRect(lm.RightEyeRect, axis),
		RightEyeRect: mirrorRect(lm.LeftEyeRect, axis),
		Crown:        mirrorPoint(lm.Crown, axis),
		Chin:         mirrorPoint(lm.Chin, axis),
	}
	for _, t := range AllTypes() {
		if p, ok := lm.Get(t); ok {
			m.Set(t.Opposite(), p.MirrorX(axis))
		}
	}
	return m
}

// Opposite returns the mirrored counterpart of a sided type, or t itself.
func (t LandMarkType) Opposite() LandMarkType {
	switch t {
	case EyePupilCenterLeft:
		return EyePupilCenterRight
	case EyePupilCenterRight:
		return EyePupilCenterLeft
	case MouthCornerLeft:
		return MouthCornerRight
	case MouthCornerRight:
		return MouthCornerLeft
	case EyeOuterCornerLeft:
		return EyeOuterCornerRight
	case EyeOuterCornerRight:
		return EyeOuterCornerLeft
	}
	return t
}

func clonePoint(p *geometry.Point) *geometry.Point {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func mirrorPoint(p *geometry.Point, axis float64) *geometry.Point {
	if p == nil {
		return nil
	}
	m := p.MirrorX(axis)
	return &m
}

func mirrorRect(r geometry.Rect, axis float64) geometry.Rect {
	if r.Empty() {
		return r
	}
	return r.MirrorX(axis)
}
