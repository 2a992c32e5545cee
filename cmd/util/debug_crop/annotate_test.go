package main

import (
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"

	"github.com/libppp/ppp/pkg/engine"
	"github.com/libppp/ppp/pkg/geometry"
	"github.com/libppp/ppp/pkg/landmark"
)

func TestAnnotate(t *testing.T) {
	img := imaging.New(100, 100, color.Black)
	crown, chin := geometry.Pt(50, 10), geometry.Pt(50, 90)
	lm := &landmark.LandMarks{FaceRect: geometry.NewRect(20, 20, 60, 60), Crown: &crown, Chin: &chin}
	lm.Set(landmark.NoseTipPoint, geometry.Pt(50, 50))
	res := &engine.Result{LandMarks: lm}

	out := annotate(img, res)

	assert.Equal(t, faceColor, out.NRGBAAt(20, 40))
	assert.Equal(t, faceColor, out.NRGBAAt(79, 40))
	assert.Equal(t, landmarkColor, out.NRGBAAt(50, 50))
	assert.Equal(t, headColor, out.NRGBAAt(50, 10))
	assert.Equal(t, color.NRGBA{A: 255}, out.NRGBAAt(40, 40))

	// The source is untouched.
	assert.Equal(t, color.NRGBA{A: 255}, img.NRGBAAt(20, 40))
}

func TestCropPreview(t *testing.T) {
	img := imaging.New(100, 100, color.Black)

	out := cropPreview(img, geometry.NewRect(50, 0, 100, 100), 20, 20)
	assert.Equal(t, 20, out.Bounds().Dx())
	assert.Equal(t, 20, out.Bounds().Dy())
	assert.Equal(t, color.NRGBA{A: 255}, out.NRGBAAt(2, 10))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, out.NRGBAAt(17, 10))
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	assert.NotNil(t, cmd.Flags().Lookup("standard"))
	assert.NotNil(t, cmd.Flags().Lookup("out"))
	assert.Error(t, cmd.Args(cmd, nil))
}
