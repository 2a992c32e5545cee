// Package geometry provides the point and rectangle types shared by the detection pipeline.
package geometry

import (
	"image"
	"math"
)

// Point is a 2D pixel coordinate with sub-pixel precision.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Invalid marks a missing point inside raw model output.
var Invalid = Point{X: math.NaN(), Y: math.NaN()}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Valid reports whether both coordinates are finite.
func (p Point) Valid() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// Distance returns the Euclidean distance to another point.
func (p Point) Distance(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Add returns the sum of two points.
func (p Point) Add(other Point) Point {
	return Point{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point) Scale(factor float64) Point {
	return Point{X: p.X * factor, Y: p.Y * factor}
}

// Midpoint returns the point halfway between p and other.
func (p Point) Midpoint(other Point) Point {
	return Point{X: (p.X + other.X) / 2, Y: (p.Y + other.Y) / 2}
}

// MirrorX reflects the point across the vertical line x = axis.
func (p Point) MirrorX(axis float64) Point {
	return Point{X: 2*axis - p.X, Y: p.Y}
}

// ImagePoint rounds to the nearest integer pixel.
func (p Point) ImagePoint() image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// Rect is an axis-aligned rectangle in pixel coordinates.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// NewRect creates a new Rect.
func NewRect(x, y, width, height float64) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// FromImageRect converts an image.Rectangle.
func FromImageRect(r image.Rectangle) Rect {
	return Rect{X: float64(r.Min.X), Y: float64(r.Min.Y), Width: float64(r.Dx()), Height: float64(r.Dy())}
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return !(r.Width > 0 && r.Height > 0)
}

// Contains returns true if the point is inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// ContainsRect returns true if other lies entirely within r.
func (r Rect) ContainsRect(other Rect) bool {
	return other.X >= r.X && other.Y >= r.Y &&
		other.Right() <= r.Right() && other.Bottom() <= r.Bottom()
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 {
	return r.X + r.Width
}

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 {
	return r.Y + r.Height
}

// Intersect returns the overlap of two rectangles, or an empty Rect.
func (r Rect) Intersect(other Rect) Rect {
	x := math.Max(r.X, other.X)
	y := math.Max(r.Y, other.Y)
	x2 := math.Min(r.Right(), other.Right())
	y2 := math.Min(r.Bottom(), other.Bottom())
	if x2 <= x || y2 <= y {
		return Rect{}
	}
	return Rect{X: x, Y: y, Width: x2 - x, Height: y2 - y}
}

// Union returns the smallest rectangle containing both rectangles.
func (r Rect) Union(other Rect) Rect {
	x := math.Min(r.X, other.X)
	y := math.Min(r.Y, other.Y)
	x2 := math.Max(r.Right(), other.Right())
	y2 := math.Max(r.Bottom(), other.Bottom())
	return Rect{X: x, Y: y, Width: x2 - x, Height: y2 - y}
}

// Inflate grows the rectangle by dx on each side horizontally and dy vertically.
func (r Rect) Inflate(dx, dy float64) Rect {
	return Rect{X: r.X - dx, Y: r.Y - dy, Width: r.Width + 2*dx, Height: r.Height + 2*dy}
}

// MirrorX reflects the rectangle across the vertical line x = axis.
func (r Rect) MirrorX(axis float64) Rect {
	return Rect{X: 2*axis - r.Right(), Y: r.Y, Width: r.Width, Height: r.Height}
}

// ImageRect converts to an image.Rectangle, rounding outwards.
func (r Rect) ImageRect() image.Rectangle {
	return image.Rect(int(math.Floor(r.X)), int(math.Floor(r.Y)),
		int(math.Ceil(r.Right())), int(math.Ceil(r.Bottom())))
}

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Invalid
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point{X: sumX / n, Y: sumY / n}
}

// BoundingBox computes the axis-aligned bounding box of a set of points.
func BoundingBox(points []Point) Rect {
	if len(points) == 0 {
		return Rect{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
