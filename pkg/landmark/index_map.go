package landmark

import (
	"errors"
	"fmt"
	"sort"

	"github.com/libppp/ppp/pkg/geometry"
)

// ErrIndexOutOfRange is returned when an index map refers past the end of the
// refiner's output.
var ErrIndexOutOfRange = errors.New("landmark index out of range")

// IndexMap maps each semantic landmark to the raw model indices whose centroid
// gives its position. Types absent from the map are never populated.
// An IndexMap is read-only once built and may be shared between requests.
type IndexMap map[LandMarkType][]int

// NewIndexMap builds an IndexMap from configuration names.
func NewIndexMap(raw map[string][]int) (IndexMap, error) {
	m := make(IndexMap, len(raw))
	for name, indices := range raw {
		t, err := ParseType(name)
		if err != nil {
			return nil, err
		}
		if len(indices) == 0 {
			return nil, fmt.Errorf("landmark %s: empty index list", t)
		}
		m[t] = append([]int(nil), indices...)
	}
	return m, nil
}

// Validate checks every index against the refiner's fixed output length.
func (m IndexMap) Validate(pointCount int) error {
	for _, t := range m.Types() {
		for _, idx := range m[t] {
			if idx < 0 || idx >= pointCount {
				return fmt.Errorf("%w: %s uses index %d, model reports %d points", ErrIndexOutOfRange, t, idx, pointCount)
			}
		}
	}
	return nil
}

// Types returns the mapped types in declaration order.
func (m IndexMap) Types() []LandMarkType {
	types := make([]LandMarkType, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Translate populates lm from a raw point vector. A type is set only when all
// of its source points are valid and the centroid lies inside bounds; otherwise
// it is left unset.
func (m IndexMap) Translate(raw []geometry.Point, bounds geometry.Rect, lm *LandMarks) error {
	for _, t := range m.Types() {
		indices := m[t]
		pts := make([]geometry.Point, 0, len(indices))
		for _, idx := range indices {
			if idx < 0 || idx >= len(raw) {
				return fmt.Errorf("%w: %s uses index %d, got %d points", ErrIndexOutOfRange, t, idx, len(raw))
			}
			if raw[idx].Valid() {
				pts = append(pts, raw[idx])
			}
		}
		if len(pts) != len(indices) {
			lm.Set(t, geometry.Invalid)
			continue
		}
		p := geometry.Centroid(pts)
		if !bounds.Contains(p) {
			lm.Set(t, geometry.Invalid)
			continue
		}
		lm.Set(t, p)
	}
	return nil
}

// Raw index layout produced by the pigo refiner.
const (
	PigoPupilLeft = iota
	PigoPupilRight
	PigoEye46Left
	PigoEye46Right
	PigoEye44Left
	PigoEye44Right
	PigoEye42Left
	PigoEye42Right
	PigoEye38Left
	PigoEye38Right
	PigoEye312Left
	PigoEye312Right
	PigoMouth93
	PigoMouth84Left
	PigoMouth82
	PigoMouth81
	PigoMouth84Right

	PigoPointCount
)

// PigoIndexMap is the default map for the pigo refiner. pigo has no chin
// cascade, so the chin is left to the crown/chin estimator.
func PigoIndexMap() IndexMap {
	return IndexMap{
		EyePupilCenterLeft:  {PigoPupilLeft},
		EyePupilCenterRight: {PigoPupilRight},
		EyeOuterCornerLeft:  {PigoEye46Left},
		EyeOuterCornerRight: {PigoEye46Right},
		NoseTipPoint:        {PigoEye312Left, PigoEye312Right},
		MouthCornerLeft:     {PigoMouth84Left},
		MouthCornerRight:    {PigoMouth84Right},
	}
}

// IBUG68PointCount is the output length of 68-point iBUG shape predictors.
const IBUG68PointCount = 68

// IBUG68IndexMap maps the 68-point iBUG annotation scheme. Pupils are
// approximated by the centroid of the four eyelid contour points.
func IBUG68IndexMap() IndexMap {
	return IndexMap{
		EyePupilCenterLeft:  {37, 38, 40, 41},
		EyePupilCenterRight: {43, 44, 46, 47},
		EyeOuterCornerLeft:  {36},
		EyeOuterCornerRight: {45},
		NoseTipPoint:        {30},
		MouthCornerLeft:     {48},
		MouthCornerRight:    {54},
		ChinLowestPoint:     {8},
	}
}

// Preset returns a built-in index map by name.
func Preset(name string) (IndexMap, int, error) {
	switch name {
	case "pigo", "":
		return PigoIndexMap(), PigoPointCount, nil
	case "ibug68":
		return IBUG68IndexMap(), IBUG68PointCount, nil
	}
	return nil, 0, fmt.Errorf("unknown landmark map preset %q", name)
}
