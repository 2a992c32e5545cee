package detector

import (
	"fmt"
	"image"
	"math"
	"os"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	"github.com/libppp/ppp/pkg/geometry"
)

// Tuning holds the pigo cascade parameters.
type Tuning struct {
	ScaleFactor   float64 `json:"scale_factor" yaml:"scale_factor"`       // Default: 1.1
	ShiftFactor   float64 `json:"shift_factor" yaml:"shift_factor"`       // Default: 0.1 (Stride)
	MinSizePct    int     `json:"min_size_pct" yaml:"min_size_pct"`       // Default: 10 (% of min dim)
	MaxSizePct    int     `json:"max_size_pct" yaml:"max_size_pct"`       // Default: 100
	Confidence    float32 `json:"confidence" yaml:"confidence"`           // Default: 10.0 (Base filter)
	IoUThreshold  float64 `json:"iou_threshold" yaml:"iou_threshold"`     // Default: 0.2 (Clustering)
	Perturbs      int     `json:"perturbs" yaml:"perturbs"`               // Default: 63
	EyeRegionGrow float64 `json:"eye_region_grow" yaml:"eye_region_grow"` // Default: 0.15 (of face side)
}

// DefaultTuning returns the standard cascade parameters.
func DefaultTuning() Tuning {
	return Tuning{
		ScaleFactor:   1.1,
		ShiftFactor:   0.1,
		MinSizePct:    10,
		MaxSizePct:    100,
		Confidence:    10.0,
		IoUThreshold:  0.2,
		Perturbs:      63,
		EyeRegionGrow: 0.15,
	}
}

// ModelPaths locates the cascade files on disk.
type ModelPaths struct {
	FaceFinder string `json:"facefinder" yaml:"facefinder"`
	Puploc     string `json:"puploc" yaml:"puploc"`
	FlpDir     string `json:"flp_dir" yaml:"flp_dir"` // Optional: lps cascade directory
}

var (
	eyeCascades   = []string{"lp46", "lp44", "lp42", "lp38", "lp312"}
	mouthCascades = []string{"lp93", "lp84", "lp82", "lp81"}
)

// Pigo bundles the unpacked cascades. It is immutable after LoadPigo and is
// shared by the face, eyes and lips detectors and the refiner.
type Pigo struct {
	face   *pigo.Pigo
	puploc *pigo.PuplocCascade
	flp    map[string][]*pigo.FlpCascade
	tuning Tuning
}

// LoadPigo reads and unpacks the cascades named in paths.
func LoadPigo(paths ModelPaths, tuning Tuning) (*Pigo, error) {
	faceData, err := os.ReadFile(paths.FaceFinder)
	if err != nil {
		return nil, fmt.Errorf("reading facefinder cascade: %w", err)
	}
	face, err := pigo.NewPigo().Unpack(faceData)
	if err != nil {
		return nil, fmt.Errorf("unpacking facefinder cascade: %w", err)
	}

	puplocData, err := os.ReadFile(paths.Puploc)
	if err != nil {
		return nil, fmt.Errorf("reading puploc cascade: %w", err)
	}
	plc := pigo.NewPuplocCascade()
	puploc, err := plc.UnpackCascade(puplocData)
	if err != nil {
		return nil, fmt.Errorf("unpacking puploc cascade: %w", err)
	}

	p := &Pigo{face: face, puploc: puploc, tuning: tuning}
	if paths.FlpDir != "" {
		flp, err := plc.ReadCascadeDir(paths.FlpDir)
		if err != nil {
			return nil, fmt.Errorf("reading landmark cascades: %w", err)
		}
		p.flp = flp
	}
	return p, nil
}

// HasLandmarkCascades reports whether the flploc cascades were loaded. Without
// them lips detection fails and the refiner reports pupils only.
func (p *Pigo) HasLandmarkCascades() bool {
	return len(p.flp) > 0
}

// Face returns the face Detector.
func (p *Pigo) Face() Detector { return &faceDetector{p} }

// Eyes returns the eyes Detector.
func (p *Pigo) Eyes() Detector { return &eyesDetector{p} }

// Lips returns the lips Detector.
func (p *Pigo) Lips() Detector { return &lipsDetector{p} }

// Refiner returns the point Refiner.
func (p *Pigo) Refiner() Refiner { return &pigoRefiner{p} }

// frame is a grayscale copy of an image in the layout pigo expects.
type frame struct {
	params pigo.ImageParams
	origin image.Point
}

func newFrame(img image.Image) frame {
	gray := imaging.Grayscale(img)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	pixels := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < w; x++ {
			pixels[y*w+x] = row[x*4]
		}
	}
	return frame{
		params: pigo.ImageParams{Pixels: pixels, Rows: h, Cols: w, Dim: w},
		origin: img.Bounds().Min,
	}
}

func (f frame) toImage(row, col int) geometry.Point {
	return geometry.Pt(float64(col+f.origin.X), float64(row+f.origin.Y))
}

// faceBox converts a face rectangle back into pigo's centre/scale form.
func (f frame) faceBox(r geometry.Rect) (row, col, scale int) {
	c := r.Center()
	return int(c.Y) - f.origin.Y, int(c.X) - f.origin.X, int(math.Min(r.Width, r.Height))
}

func (p *Pigo) detectFaces(f frame) []pigo.Detection {
	minDim := f.params.Rows
	if f.params.Cols < minDim {
		minDim = f.params.Cols
	}
	cParams := pigo.CascadeParams{
		MinSize:     max(minDim*p.tuning.MinSizePct/100, 20),
		MaxSize:     max(minDim*p.tuning.MaxSizePct/100, 20),
		ShiftFactor: p.tuning.ShiftFactor,
		ScaleFactor: p.tuning.ScaleFactor,
		ImageParams: f.params,
	}
	dets := p.face.RunCascade(cParams, 0.0)
	return p.face.ClusterDetections(dets, p.tuning.IoUThreshold)
}

// pupils runs the pupil localisation cascade seeded from a face box. The
// offsets follow the pigo reference seeding.
func (p *Pigo) pupils(f frame, face geometry.Rect) (left, right *pigo.Puploc) {
	row, col, scale := f.faceBox(face)
	seed := func(dir float64) *pigo.Puploc {
		pl := pigo.Puploc{
			Row:      row - int(0.085*float64(scale)),
			Col:      col + int(dir*0.185*float64(scale)),
			Scale:    float32(scale) * 0.4,
			Perturbs: p.tuning.Perturbs,
		}
		found := p.puploc.RunDetector(pl, f.params, 0.0, false)
		if found == nil || found.Row <= 0 || found.Col <= 0 {
			return nil
		}
		if !face.Contains(f.toImage(found.Row, found.Col)) {
			return nil
		}
		return found
	}
	return seed(-1), seed(1)
}

func (p *Pigo) landmark(f frame, name string, idx int, left, right *pigo.Puploc, flip bool) geometry.Point {
	cascades := p.flp[name]
	if idx >= len(cascades) || cascades[idx] == nil {
		return geometry.Invalid
	}
	flp := cascades[idx].GetLandmarkPoint(left, right, f.params, p.tuning.Perturbs, flip)
	if flp == nil || flp.Row <= 0 || flp.Col <= 0 {
		return geometry.Invalid
	}
	return f.toImage(flp.Row, flp.Col)
}

// mouthPoints returns the mouth cascade outputs in refiner order.
func (p *Pigo) mouthPoints(f frame, left, right *pigo.Puploc) []geometry.Point {
	pts := make([]geometry.Point, 0, len(mouthCascades)+1)
	for _, name := range mouthCascades {
		pts = append(pts, p.landmark(f, name, 0, left, right, false))
	}
	return append(pts, p.landmark(f, "lp84", 0, left, right, true))
}

func searchOrBounds(img image.Image, search *geometry.Rect) geometry.Rect {
	if search != nil {
		return *search
	}
	return geometry.FromImageRect(img.Bounds())
}

func validPoints(pts []geometry.Point) []geometry.Point {
	valid := pts[:0:0]
	for _, pt := range pts {
		if pt.Valid() {
			valid = append(valid, pt)
		}
	}
	return valid
}
