// Package standard describes photo standards (passport, visa and ID photo
// regulations) and print sheets, and converts their physical sizes to pixels.
package standard

import (
	"errors"
	"fmt"
	"math"

	"github.com/libppp/ppp/pkg/geometry"
)

// Units of a physical dimension.
type Units string

const (
	Millimeter Units = "mm"
	Inch       Units = "inch"
	Pixel      Units = "pixel"
)

// ToPixels converts v in units to pixels at dpi.
func ToPixels(v float64, units Units, dpi float64) (float64, error) {
	switch units {
	case Millimeter:
		return v / 25.4 * dpi, nil
	case Inch:
		return v * dpi, nil
	case Pixel, "":
		return v, nil
	}
	return 0, fmt.Errorf("unknown units %q", units)
}

// Range is a closed tolerance band.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

const rangeEpsilon = 1e-9

// Contains reports whether v lies in the band.
func (r Range) Contains(v float64) bool {
	return v >= r.Min-rangeEpsilon && v <= r.Max+rangeEpsilon
}

// Mid returns the centre of the band.
func (r Range) Mid() float64 {
	return (r.Min + r.Max) / 2
}

func (r Range) String() string {
	return fmt.Sprintf("[%.3g, %.3g]", r.Min, r.Max)
}

// PhotoStandard is a named set of geometric requirements. Ratios are
// fractions of the picture height unless stated otherwise.
type PhotoStandard struct {
	Name          string  `json:"name" yaml:"name"`
	PictureWidth  float64 `json:"picture_width" yaml:"picture_width"`
	PictureHeight float64 `json:"picture_height" yaml:"picture_height"`
	Units         Units   `json:"units" yaml:"units"`
	Dpi           float64 `json:"dpi" yaml:"dpi"`

	// HeadHeight is the crown-to-chin height.
	HeadHeight Range `json:"head_height" yaml:"head_height"`
	// EyeLine is the eye line's distance from the bottom edge.
	EyeLine Range `json:"eye_line" yaml:"eye_line"`
	// MinMargin is the least space above the crown and below the chin.
	MinMargin float64 `json:"min_margin" yaml:"min_margin"`
	// CenterTolerance is the largest horizontal head offset, as a fraction of width.
	CenterTolerance float64 `json:"center_tolerance" yaml:"center_tolerance"`
	// MaxEyeTilt is the largest eye line angle in degrees.
	MaxEyeTilt float64 `json:"max_eye_tilt" yaml:"max_eye_tilt"`
}

// Validate checks that the standard is internally consistent.
func (ps *PhotoStandard) Validate() error {
	if ps.Name == "" {
		return errors.New("photo standard has no name")
	}
	if ps.PictureWidth <= 0 || ps.PictureHeight <= 0 {
		return fmt.Errorf("photo standard %s: picture size must be positive", ps.Name)
	}
	if ps.Units != Pixel && ps.Units != "" && ps.Dpi <= 0 {
		return fmt.Errorf("photo standard %s: dpi required for %s", ps.Name, ps.Units)
	}
	if _, err := ToPixels(1, ps.Units, ps.Dpi); err != nil {
		return fmt.Errorf("photo standard %s: %w", ps.Name, err)
	}
	for name, r := range map[string]Range{"head_height": ps.HeadHeight, "eye_line": ps.EyeLine} {
		if r.Min <= 0 || r.Max > 1 || r.Min > r.Max {
			return fmt.Errorf("photo standard %s: %s must satisfy 0 < min <= max <= 1", ps.Name, name)
		}
	}
	return nil
}

// AspectRatio is width over height.
func (ps *PhotoStandard) AspectRatio() float64 {
	return ps.PictureWidth / ps.PictureHeight
}

// CanvasSize returns the target picture size in pixels.
func (ps *PhotoStandard) CanvasSize() (width, height int, err error) {
	w, err := ToPixels(ps.PictureWidth, ps.Units, ps.Dpi)
	if err != nil {
		return 0, 0, err
	}
	h, _ := ToPixels(ps.PictureHeight, ps.Units, ps.Dpi)
	return int(math.Round(w)), int(math.Round(h)), nil
}

// CropRegion places the standard's frame over the source image so that the
// crown-to-chin span fills the middle of the head height band. When eyeY is
// given the eye line is put at the middle of the eye line band; otherwise the
// head is centred vertically.
func (ps *PhotoStandard) CropRegion(crown, chin geometry.Point, eyeY *float64) (geometry.Rect, error) {
	head := chin.Y - crown.Y
	if head <= 0 || !crown.Valid() || !chin.Valid() {
		return geometry.Rect{}, fmt.Errorf("crown must be above chin")
	}
	h := head / ps.HeadHeight.Mid()
	w := h * ps.AspectRatio()
	cx := (crown.X + chin.X) / 2

	top := crown.Y - (h-head)/2
	if eyeY != nil {
		top = *eyeY - (1-ps.EyeLine.Mid())*h
	}
	return geometry.NewRect(cx-w/2, top, w, h), nil
}

// PhotoFrame is the largest frame of the standard's aspect ratio that fits
// inside bounds, centred on it. It reads an image as an already cropped photo.
func (ps *PhotoStandard) PhotoFrame(bounds geometry.Rect) geometry.Rect {
	if bounds.Empty() || ps.PictureWidth <= 0 || ps.PictureHeight <= 0 {
		return geometry.Rect{}
	}
	w, h := bounds.Width, bounds.Width/ps.AspectRatio()
	if h > bounds.Height {
		w, h = bounds.Height*ps.AspectRatio(), bounds.Height
	}
	c := bounds.Center()
	return geometry.NewRect(c.X-w/2, c.Y-h/2, w, h)
}

// PrintDefinition is a physical print sheet.
type PrintDefinition struct {
	Name    string  `json:"name" yaml:"name"`
	Width   float64 `json:"width" yaml:"width"`
	Height  float64 `json:"height" yaml:"height"`
	Dpi     float64 `json:"dpi" yaml:"dpi"`
	Units   Units   `json:"units" yaml:"units"`
	Padding float64 `json:"padding" yaml:"padding"`
	Gutter  float64 `json:"gutter" yaml:"gutter"`
}

// Validate checks the sheet dimensions.
func (pd *PrintDefinition) Validate() error {
	if pd.Name == "" {
		return errors.New("print definition has no name")
	}
	if pd.Width <= 0 || pd.Height <= 0 || pd.Dpi <= 0 {
		return fmt.Errorf("print definition %s: width, height and dpi must be positive", pd.Name)
	}
	_, err := ToPixels(1, pd.Units, pd.Dpi)
	return err
}
