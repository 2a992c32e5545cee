package detector

import (
	"image"

	pigo "github.com/esimov/pigo/core"

	"github.com/libppp/ppp/pkg/geometry"
)

type faceDetector struct{ *Pigo }

// Detect returns the highest-quality face whose centre lies in search.
func (d *faceDetector) Detect(img image.Image, search *geometry.Rect) (geometry.Rect, error) {
	if err := checkInput(img, search); err != nil {
		return geometry.Rect{}, err
	}
	f := newFrame(img)
	area := searchOrBounds(img, search)

	dets := d.detectFaces(f)
	var best *pigo.Detection
	for i, det := range dets {
		if det.Q < d.tuning.Confidence {
			continue
		}
		if !area.Contains(f.toImage(det.Row, det.Col)) {
			continue
		}
		if best == nil || det.Q > best.Q {
			best = &dets[i]
		}
	}
	if best == nil {
		return geometry.Rect{}, ErrNotFound
	}

	side := float64(best.Scale)
	c := f.toImage(best.Row, best.Col)
	return geometry.NewRect(c.X-side/2, c.Y-side/2, side, side), nil
}

type eyesDetector struct{ *Pigo }

// Detect locates both pupils inside the face region and returns the region
// spanning them.
func (d *eyesDetector) Detect(img image.Image, search *geometry.Rect) (geometry.Rect, error) {
	if err := checkInput(img, search); err != nil {
		return geometry.Rect{}, err
	}
	f := newFrame(img)
	face := searchOrBounds(img, search)

	left, right := d.pupils(f, face)
	if left == nil || right == nil {
		return geometry.Rect{}, ErrNotFound
	}
	grow := d.tuning.EyeRegionGrow * face.Width
	box := geometry.BoundingBox([]geometry.Point{
		f.toImage(left.Row, left.Col),
		f.toImage(right.Row, right.Col),
	})
	return box.Inflate(grow, grow).Intersect(face), nil
}

type lipsDetector struct{ *Pigo }

// Detect locates the mouth inside the face region from the mouth landmark
// cascades.
func (d *lipsDetector) Detect(img image.Image, search *geometry.Rect) (geometry.Rect, error) {
	if err := checkInput(img, search); err != nil {
		return geometry.Rect{}, err
	}
	if len(d.flp) == 0 {
		return geometry.Rect{}, ErrNotFound
	}
	f := newFrame(img)
	face := searchOrBounds(img, search)

	left, right := d.pupils(f, face)
	if left == nil || right == nil {
		return geometry.Rect{}, ErrNotFound
	}
	pts := validPoints(d.mouthPoints(f, left, right))
	if len(pts) < 2 {
		return geometry.Rect{}, ErrNotFound
	}
	grow := d.tuning.EyeRegionGrow * face.Width / 2
	box := geometry.BoundingBox(pts).Inflate(grow, grow).Intersect(face)
	if box.Empty() {
		return geometry.Rect{}, ErrNotFound
	}
	return box, nil
}

type pigoRefiner struct{ *Pigo }

// PointCount is the fixed pigo layout length (see landmark.PigoPointCount).
func (r *pigoRefiner) PointCount() int {
	return 2 + 2*len(eyeCascades) + len(mouthCascades) + 1
}

// Refine returns pupils, then the left/right outputs of each eye cascade,
// then the mouth cascades.
func (r *pigoRefiner) Refine(img image.Image, region geometry.Rect) ([]geometry.Point, error) {
	if err := checkInput(img, &region); err != nil {
		return nil, err
	}
	f := newFrame(img)
	pts := make([]geometry.Point, 0, r.PointCount())

	left, right := r.pupils(f, region)
	if left == nil || right == nil {
		for len(pts) < r.PointCount() {
			pts = append(pts, geometry.Invalid)
		}
		return pts, nil
	}
	pts = append(pts, f.toImage(left.Row, left.Col), f.toImage(right.Row, right.Col))

	for _, name := range eyeCascades {
		pts = append(pts,
			r.landmark(f, name, 0, left, right, false),
			r.landmark(f, name, 0, left, right, true))
	}
	pts = append(pts, r.mouthPoints(f, left, right)...)
	return pts, nil
}
