package geometry

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoint(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		assert.True(t, Pt(0, 0).Valid())
		assert.False(t, Invalid.Valid())
		assert.False(t, Pt(math.Inf(1), 3).Valid())
	})

	t.Run("Arithmetic", func(t *testing.T) {
		p := Pt(3, 4)
		assert.Equal(t, 5.0, p.Distance(Pt(0, 0)))
		assert.Equal(t, Pt(4, 6), p.Add(Pt(1, 2)))
		assert.Equal(t, Pt(2, 2), p.Sub(Pt(1, 2)))
		assert.Equal(t, Pt(6, 8), p.Scale(2))
		assert.Equal(t, Pt(2, 3), p.Midpoint(Pt(1, 2)))
	})

	t.Run("MirrorX", func(t *testing.T) {
		assert.Equal(t, Pt(70, 5), Pt(30, 5).MirrorX(50))
		assert.Equal(t, image.Pt(3, 5), Pt(2.6, 4.5).ImagePoint())
	})
}

func TestRect(t *testing.T) {
	r := NewRect(10, 20, 100, 50)

	assert.False(t, r.Empty())
	assert.True(t, Rect{Width: 10}.Empty())
	assert.Equal(t, Pt(60, 45), r.Center())
	assert.Equal(t, 110.0, r.Right())
	assert.Equal(t, 70.0, r.Bottom())
	assert.True(t, r.Contains(Pt(10, 20)))
	assert.False(t, r.Contains(Pt(9, 20)))
	assert.True(t, r.ContainsRect(NewRect(20, 30, 10, 10)))
	assert.False(t, r.ContainsRect(NewRect(100, 30, 20, 10)))

	assert.Equal(t, NewRect(50, 20, 60, 50), r.Intersect(NewRect(50, 0, 100, 100)))
	assert.True(t, r.Intersect(NewRect(500, 500, 1, 1)).Empty())
	assert.Equal(t, NewRect(0, 0, 110, 70), r.Union(NewRect(0, 0, 5, 5)))
	assert.Equal(t, NewRect(5, 18, 110, 54), r.Inflate(5, 2))
	assert.Equal(t, NewRect(-10, 20, 100, 50), r.MirrorX(50))
	assert.Equal(t, image.Rect(10, 20, 110, 70), r.ImageRect())
	assert.Equal(t, r, FromImageRect(image.Rect(10, 20, 110, 70)))
}

func TestCentroidAndBoundingBox(t *testing.T) {
	pts := []Point{Pt(0, 0), Pt(4, 0), Pt(4, 2), Pt(0, 2)}

	assert.Equal(t, Pt(2, 1), Centroid(pts))
	assert.False(t, Centroid(nil).Valid())
	assert.Equal(t, NewRect(0, 0, 4, 2), BoundingBox(pts))
	assert.Equal(t, Rect{}, BoundingBox(nil))
}
