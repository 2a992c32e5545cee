// Package detector defines the region detection and point refinement
// capabilities of the landmark pipeline, with implementations backed by pigo
// cascades.
package detector

import (
	"errors"
	"image"

	"github.com/libppp/ppp/pkg/geometry"
)

var (
	// ErrNotFound is returned when no candidate region passes the model's
	// confidence threshold. It is a per-image outcome, not a fault.
	ErrNotFound = errors.New("no region found")

	// ErrInvalidInput is returned for empty images or zero-area regions.
	ErrInvalidInput = errors.New("invalid detector input")
)

// Detector finds a single region of interest in an image. When search is not
// nil the result is restricted to it. Implementations hold no per-call state
// and may be used from several goroutines at once.
type Detector interface {
	Detect(img image.Image, search *geometry.Rect) (geometry.Rect, error)
}

// Refiner locates a dense, model-ordered set of points inside a region.
// On success the returned slice always has PointCount entries; points the
// model could not place are geometry.Invalid.
type Refiner interface {
	Refine(img image.Image, region geometry.Rect) ([]geometry.Point, error)
	PointCount() int
}

// Func adapts a function to the Detector interface.
type Func func(img image.Image, search *geometry.Rect) (geometry.Rect, error)

// Detect calls f.
func (f Func) Detect(img image.Image, search *geometry.Rect) (geometry.Rect, error) {
	return f(img, search)
}

func checkInput(img image.Image, region *geometry.Rect) error {
	if img == nil || img.Bounds().Empty() {
		return ErrInvalidInput
	}
	if region != nil && region.Empty() {
		return ErrInvalidInput
	}
	return nil
}
