package main

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/libppp/ppp/pkg/engine"
	"github.com/libppp/ppp/pkg/geometry"
	"github.com/libppp/ppp/pkg/landmark"
)

var (
	faceColor     = color.NRGBA{G: 255, A: 255}
	eyeColor      = color.NRGBA{B: 255, A: 255}
	cropColor     = color.NRGBA{R: 255, A: 255}
	landmarkColor = color.NRGBA{R: 255, G: 255, A: 255}
	headColor     = color.NRGBA{R: 255, B: 255, A: 255}
)

// annotate returns a copy of img with the detection result drawn over it.
func annotate(img image.Image, res *engine.Result) *image.NRGBA {
	dst := imaging.Clone(img)
	lm := res.LandMarks
	stroke := max(1, img.Bounds().Dx()/300)

	drawRect(dst, lm.FaceRect, faceColor, stroke)
	drawRect(dst, lm.LeftEyeRect, eyeColor, stroke)
	drawRect(dst, lm.RightEyeRect, eyeColor, stroke)
	drawRect(dst, res.Crop, cropColor, stroke)
	for _, t := range landmark.AllTypes() {
		if p, ok := lm.Get(t); ok {
			drawPoint(dst, p, landmarkColor, 2*stroke)
		}
	}
	for _, p := range []*geometry.Point{lm.Crown, lm.Chin} {
		if p != nil {
			drawPoint(dst, *p, headColor, 3*stroke)
		}
	}
	return dst
}

func drawRect(dst draw.Image, r geometry.Rect, c color.Color, stroke int) {
	if r.Empty() {
		return
	}
	ir := r.ImageRect()
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(ir.Min.X, ir.Min.Y, ir.Max.X, ir.Min.Y+stroke),
		image.Rect(ir.Min.X, ir.Max.Y-stroke, ir.Max.X, ir.Max.Y),
		image.Rect(ir.Min.X, ir.Min.Y, ir.Min.X+stroke, ir.Max.Y),
		image.Rect(ir.Max.X-stroke, ir.Min.Y, ir.Max.X, ir.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

func drawPoint(dst draw.Image, p geometry.Point, c color.Color, radius int) {
	ip := p.ImagePoint()
	r := image.Rect(ip.X-radius, ip.Y-radius, ip.X+radius+1, ip.Y+radius+1)
	draw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

// cropPreview cuts crop out of img, padding with white where the frame leaves
// the image, and scales it to width x height.
func cropPreview(img image.Image, crop geometry.Rect, width, height int) *image.NRGBA {
	frame := crop.ImageRect()
	canvas := imaging.New(frame.Dx(), frame.Dy(), color.White)
	inside := frame.Intersect(img.Bounds())
	if !inside.Empty() {
		canvas = imaging.Paste(canvas, imaging.Crop(img, inside), inside.Min.Sub(frame.Min))
	}
	return imaging.Resize(canvas, width, height, imaging.Lanczos)
}
