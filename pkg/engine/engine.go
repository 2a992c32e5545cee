// Package engine sequences face detection, landmark refinement, crown/chin and
// pose estimation, and compliance checking for images held in an image store.
package engine

import (
	"errors"
	"image"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/libppp/ppp/config"
	"github.com/libppp/ppp/pkg/compliance"
	"github.com/libppp/ppp/pkg/crownchin"
	"github.com/libppp/ppp/pkg/detector"
	"github.com/libppp/ppp/pkg/geometry"
	"github.com/libppp/ppp/pkg/imagestore"
	"github.com/libppp/ppp/pkg/landmark"
	"github.com/libppp/ppp/pkg/pose"
	"github.com/libppp/ppp/pkg/standard"
	"github.com/libppp/ppp/util/log"
)

// ImageStore supplies decoded images by key and keeps the last landmarks
// detected on each, along with the photo frame chosen for it.
type ImageStore interface {
	Put(img image.Image) string
	Load(path string) (string, error)
	Image(key string) (image.Image, error)
	SetLandMarks(key string, lm *landmark.LandMarks) error
	LandMarks(key string) (*landmark.LandMarks, bool)
	SetCrop(key string, crop geometry.Rect) error
	Crop(key string) (geometry.Rect, bool)
}

// CrownChinEstimator locates the top and bottom of the head.
type CrownChinEstimator interface {
	Estimate(lm *landmark.LandMarks, face *geometry.Rect, bounds geometry.Rect) (crownchin.Result, error)
}

// PoseEstimator fits a head orientation to landmarks.
type PoseEstimator interface {
	EstimatePose(lm *landmark.LandMarks, focalLength float64, focalCenter geometry.Point) (pose.Pose, error)
}

// ComplianceChecker evaluates named rules.
type ComplianceChecker interface {
	Resolve(names []string) error
	Check(in compliance.Input, names []string) (compliance.Result, error)
}

// PhotoPrintMaker renders the cropped photo and the tiled print sheet.
type PhotoPrintMaker interface {
	CropPicture(img image.Image, crop geometry.Rect, ps *standard.PhotoStandard) (image.Image, error)
	TileCroppedPhoto(photo image.Image, ps *standard.PhotoStandard, pd *standard.PrintDefinition) (image.Image, error)
}

// Components are the collaborators of an Engine. FaceDetector and Refiner are
// required by Configure. Nil estimators and checker are built from the
// configuration; a nil Store gets an in-memory imagestore.
type Components struct {
	FaceDetector detector.Detector
	EyesDetector detector.Detector
	LipsDetector detector.Detector
	Refiner      detector.Refiner

	CrownChin  CrownChinEstimator
	Pose       PoseEstimator
	Checker    ComplianceChecker
	PrintMaker PhotoPrintMaker
	Store      ImageStore
}

// state is everything Configure derives. It is published whole and never
// mutated, so requests read it without locking.
type state struct {
	cfg       *config.Config
	indexMap  landmark.IndexMap
	crownChin CrownChinEstimator
	pose      PoseEstimator
	checker   ComplianceChecker
}

// Engine is safe for concurrent requests once configured. Configure must not
// race with requests that expect the new configuration.
type Engine struct {
	c     Components
	state atomic.Pointer[state]
}

// New creates an unconfigured Engine.
func New(c Components) *Engine {
	if c.Store == nil {
		c.Store = imagestore.NewImageStore()
	}
	return &Engine{c: c}
}

// Configure validates cfg against the wired components and makes the engine
// ready. On failure the previous configuration, if any, stays in effect.
func (e *Engine) Configure(cfg *config.Config) error {
	if cfg == nil {
		return fail(StageConfigure, KindConfiguration, nil, "no configuration")
	}
	if err := cfg.Validate(); err != nil {
		return fail(StageConfigure, KindConfiguration, err, "invalid configuration")
	}
	if e.c.FaceDetector == nil || e.c.Refiner == nil {
		return fail(StageConfigure, KindConfiguration, nil, "face detector and landmark refiner are required")
	}

	indexMap, _, err := cfg.IndexMap()
	if err != nil {
		return fail(StageConfigure, KindConfiguration, err, "landmark index map")
	}
	if err := indexMap.Validate(e.c.Refiner.PointCount()); err != nil {
		return fail(StageConfigure, KindConfiguration, err, "landmark index map does not fit the refiner")
	}

	st := &state{
		cfg:       cfg,
		indexMap:  indexMap,
		crownChin: e.c.CrownChin,
		pose:      e.c.Pose,
		checker:   e.c.Checker,
	}
	if st.crownChin == nil {
		st.crownChin = crownchin.New(cfg.Calibration)
	}
	if st.pose == nil {
		st.pose = pose.New(cfg.Pose)
	}
	if st.checker == nil {
		st.checker = compliance.NewChecker(compliance.DefaultRegistry())
	}
	if err := st.checker.Resolve(cfg.Checks); err != nil {
		return fail(StageConfigure, KindConfiguration, err, "enabled checks")
	}

	e.state.Store(st)
	log.Debugf("Engine configured: %d landmark types, %d standards, checks %v", len(indexMap), len(cfg.Standards), cfg.Checks)
	return nil
}

// IsConfigured reports whether Configure has succeeded.
func (e *Engine) IsConfigured() bool {
	return e.state.Load() != nil
}

// Config returns the active configuration, or nil.
func (e *Engine) Config() *config.Config {
	if st := e.state.Load(); st != nil {
		return st.cfg
	}
	return nil
}

// Store returns the image store.
func (e *Engine) Store() ImageStore {
	return e.c.Store
}

// SetInputImage stores img and returns its key.
func (e *Engine) SetInputImage(img image.Image) string {
	return e.c.Store.Put(img)
}

// LoadImage decodes the file at path into the store and returns its key.
func (e *Engine) LoadImage(path string) (string, error) {
	key, err := e.c.Store.Load(path)
	if err != nil {
		return "", fail(StageLoad, KindImageNotFound, err, "cannot load %s", path)
	}
	return key, nil
}

func (e *Engine) configured(stage Stage) (*state, error) {
	st := e.state.Load()
	if st == nil {
		return nil, fail(stage, KindNotConfigured, nil, "configure the engine first")
	}
	return st, nil
}

func (e *Engine) image(stage Stage, key string) (image.Image, error) {
	img, err := e.c.Store.Image(key)
	if err != nil {
		return nil, fail(stage, KindImageNotFound, err, "no image for key %q", key)
	}
	return img, nil
}

// DefaultIntrinsics approximates an uncalibrated camera: the focal length is
// the image width in pixels and the optical centre is the image centre.
func DefaultIntrinsics(bounds geometry.Rect) (focalLength float64, focalCenter geometry.Point) {
	return bounds.Width, bounds.Center()
}

// DetectLandMarks runs the detection pipeline on the image stored under key
// and returns its landmarks with Crown and Chin estimated.
func (e *Engine) DetectLandMarks(key string) (*landmark.LandMarks, error) {
	res, err := e.Detect(key)
	if err != nil {
		return nil, err
	}
	return res.LandMarks, nil
}

// Detect runs the detection pipeline and returns the full result. The
// landmarks are also recorded in the store against key.
func (e *Engine) Detect(key string) (*Result, error) {
	st, err := e.configured(StageFaceDetection)
	if err != nil {
		return nil, err
	}
	img, err := e.image(StageFaceDetection, key)
	if err != nil {
		return nil, err
	}
	bounds := geometry.FromImageRect(img.Bounds())
	res := &Result{Key: key, State: Idle}

	face, err := e.c.FaceDetector.Detect(img, nil)
	if err != nil {
		log.Debugf("Face detection failed on %s: %v", key, err)
		return nil, fail(StageFaceDetection, KindDetectionFailed, err, "no face found")
	}
	lm := &landmark.LandMarks{FaceRect: face}
	res.LandMarks = lm
	res.State = FaceDetected

	e.detectEyes(img, res)
	e.detectLips(img, res)

	raw, err := e.c.Refiner.Refine(img, face)
	if err != nil {
		log.Debugf("Landmark refinement failed on %s: %v", key, err)
		return nil, fail(StageRefinement, KindDetectionFailed, err, "landmark refinement failed")
	}
	if n := e.c.Refiner.PointCount(); len(raw) != n {
		return nil, fail(StageRefinement, KindDetectionFailed, nil, "refiner returned %d points, expected %d", len(raw), n)
	}
	if err := st.indexMap.Translate(raw, bounds, lm); err != nil {
		return nil, fail(StageRefinement, KindConfiguration, err, "landmark translation")
	}
	res.State = LandmarksRefined

	if err := e.estimate(st, bounds, res); err != nil {
		return nil, err
	}
	res.State = Estimated

	if err := e.c.Store.SetLandMarks(key, lm); err != nil {
		return nil, fail(StageEstimation, KindImageNotFound, err, "image removed during detection")
	}
	return res, nil
}

// detectEyes records the eye search windows, split at the face centre line.
// A miss leaves them empty.
func (e *Engine) detectEyes(img image.Image, res *Result) {
	if e.c.EyesDetector == nil {
		return
	}
	face := res.LandMarks.FaceRect
	eyes, err := e.c.EyesDetector.Detect(img, &face)
	if err != nil {
		res.warn("eyes not detected: %v", err)
		return
	}
	cx := face.Center().X
	res.LandMarks.LeftEyeRect = eyes.Intersect(geometry.NewRect(face.X, eyes.Y, cx-face.X, eyes.Height))
	res.LandMarks.RightEyeRect = eyes.Intersect(geometry.NewRect(cx, eyes.Y, face.Right()-cx, eyes.Height))
}

func (e *Engine) detectLips(img image.Image, res *Result) {
	if e.c.LipsDetector == nil {
		return
	}
	face := res.LandMarks.FaceRect
	lips, err := e.c.LipsDetector.Detect(img, &face)
	if err != nil {
		res.warn("lips not detected: %v", err)
		return
	}
	res.LipsRect = lips
}

// estimate runs crown/chin and pose concurrently. Both only read the
// landmarks; results are written after the group finishes. A pose failure is
// recorded on the result rather than failing the request.
func (e *Engine) estimate(st *state, bounds geometry.Rect, res *Result) error {
	lm := res.LandMarks
	face := lm.FaceRect
	focal, center := DefaultIntrinsics(bounds)

	var (
		cc      crownchin.Result
		p       pose.Pose
		poseErr error
		g       errgroup.Group
	)
	g.Go(func() error {
		var err error
		cc, err = st.crownChin.Estimate(lm, &face, bounds)
		return err
	})
	g.Go(func() error {
		p, poseErr = st.pose.EstimatePose(lm, focal, center)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Debugf("Crown/chin estimation failed on %s: %v", res.Key, err)
		return fail(StageEstimation, KindDetectionFailed, err, "crown and chin could not be estimated")
	}

	crown, chin := cc.Crown, cc.Chin
	lm.Crown = &crown
	lm.Chin = &chin
	res.CrownChin = cc
	if cc.Clamped {
		res.warn("head extends past the image edge; crown and chin clamped")
	}
	if poseErr != nil {
		res.PoseErr = poseErr
		res.warn("pose not estimated: %v", poseErr)
	} else {
		res.Pose = &p
	}
	return nil
}

// EstimatePose fits a head pose to lm with the given camera intrinsics.
func (e *Engine) EstimatePose(lm *landmark.LandMarks, focalLength float64, focalCenter geometry.Point) (pose.Pose, error) {
	st, err := e.configured(StageEstimation)
	if err != nil {
		return pose.Pose{}, err
	}
	p, err := st.pose.EstimatePose(lm, focalLength, focalCenter)
	switch {
	case errors.Is(err, pose.ErrInsufficientLandmarks):
		return pose.Pose{}, fail(StageEstimation, KindInsufficientLandmarks, err, "pose needs pupils, nose tip and mouth corners")
	case err != nil:
		return pose.Pose{}, fail(StageEstimation, KindInvalidArgument, err, "pose estimation")
	}
	return p, nil
}

// CropRegion places ps's frame over the image stored under key and records it
// as the key's photo frame. The eye line is used when landmarks have been
// detected on the image.
func (e *Engine) CropRegion(key string, ps *standard.PhotoStandard, crown, chin geometry.Point) (geometry.Rect, error) {
	if _, err := e.configured(StageCompliance); err != nil {
		return geometry.Rect{}, err
	}
	if _, err := e.image(StageCompliance, key); err != nil {
		return geometry.Rect{}, err
	}
	lm, _ := e.c.Store.LandMarks(key)
	crop, err := e.cropRegion(StageCompliance, lm, ps, crown, chin)
	if err != nil {
		return geometry.Rect{}, err
	}
	if err := e.c.Store.SetCrop(key, crop); err != nil {
		return geometry.Rect{}, fail(StageCompliance, KindImageNotFound, err, "image removed")
	}
	return crop, nil
}

func (e *Engine) cropRegion(stage Stage, lm *landmark.LandMarks, ps *standard.PhotoStandard, crown, chin geometry.Point) (geometry.Rect, error) {
	if ps == nil {
		return geometry.Rect{}, fail(stage, KindInvalidArgument, nil, "no photo standard")
	}
	var eyeY *float64
	if lm != nil && lm.EyeLeftPupil != nil && lm.EyeRightPupil != nil {
		y := lm.EyeLeftPupil.Midpoint(*lm.EyeRightPupil).Y
		eyeY = &y
	}
	crop, err := ps.CropRegion(crown, chin, eyeY)
	if err != nil {
		return geometry.Rect{}, fail(stage, KindInvalidArgument, err, "crop region")
	}
	return crop, nil
}

// CheckCompliance evaluates the named checks for the photo of the image under
// key with the head spanning crown to chin. The photo is the frame recorded by
// CropRegion or Analyze; without one the image itself is read as the photo,
// trimmed to ps's aspect ratio. With no names the configured checks run. Any
// unknown name fails the request without partial results.
func (e *Engine) CheckCompliance(key string, ps *standard.PhotoStandard, crown, chin geometry.Point, names []string) (compliance.Result, error) {
	return e.checkCompliance(key, ps, crown, chin, nil, names)
}

// CheckCropCompliance is CheckCompliance for an explicit photo frame.
func (e *Engine) CheckCropCompliance(key string, ps *standard.PhotoStandard, crown, chin geometry.Point, crop geometry.Rect, names []string) (compliance.Result, error) {
	return e.checkCompliance(key, ps, crown, chin, &crop, names)
}

func (e *Engine) checkCompliance(key string, ps *standard.PhotoStandard, crown, chin geometry.Point, crop *geometry.Rect, names []string) (compliance.Result, error) {
	st, err := e.configured(StageCompliance)
	if err != nil {
		return compliance.Result{}, err
	}
	if len(names) == 0 {
		names = st.cfg.Checks
	}
	if err := st.checker.Resolve(names); err != nil {
		return compliance.Result{}, fail(StageCompliance, KindUnknownCheck, err, "unknown check requested")
	}
	if ps == nil {
		return compliance.Result{}, fail(StageCompliance, KindInvalidArgument, nil, "no photo standard")
	}
	if !crown.Valid() || !chin.Valid() || chin.Y <= crown.Y {
		return compliance.Result{}, fail(StageCompliance, KindInvalidArgument, nil, "crown must be above chin")
	}
	img, err := e.image(StageCompliance, key)
	if err != nil {
		return compliance.Result{}, err
	}
	bounds := geometry.FromImageRect(img.Bounds())

	var frame geometry.Rect
	switch recorded, ok := e.c.Store.Crop(key); {
	case crop != nil:
		frame = *crop
	case ok:
		frame = recorded
	default:
		frame = ps.PhotoFrame(bounds)
	}
	if frame.Empty() {
		return compliance.Result{}, fail(StageCompliance, KindInvalidArgument, nil, "empty photo frame")
	}

	lm, ok := e.c.Store.LandMarks(key)
	if !ok {
		lm = &landmark.LandMarks{}
	}
	lm.Crown = &crown
	lm.Chin = &chin

	res, err := st.checker.Check(compliance.Input{
		LandMarks:   lm,
		Crop:        frame,
		Standard:    ps,
		ImageBounds: bounds,
	}, names)
	if err != nil {
		return compliance.Result{}, fail(StageCompliance, KindUnknownCheck, err, "compliance check")
	}
	return res, nil
}

// Analyze runs the detection pipeline, places ps's frame at the estimated
// crown and chin, records it, and checks compliance within it.
func (e *Engine) Analyze(key string, ps *standard.PhotoStandard, names []string) (*Result, error) {
	res, err := e.Detect(key)
	if err != nil {
		return nil, err
	}
	crown, chin := *res.LandMarks.Crown, *res.LandMarks.Chin
	crop, err := e.cropRegion(StageCompliance, res.LandMarks, ps, crown, chin)
	if err != nil {
		return nil, err
	}
	if err := e.c.Store.SetCrop(key, crop); err != nil {
		return nil, fail(StageCompliance, KindImageNotFound, err, "image removed")
	}
	cr, err := e.checkCompliance(key, ps, crown, chin, &crop, names)
	if err != nil {
		return nil, err
	}
	res.Crop = crop
	res.Compliance = &cr
	res.State = ComplianceChecked
	return res, nil
}

// CreateTiledPrint crops the image under key to ps and tiles it onto pd
// through the wired PhotoPrintMaker.
func (e *Engine) CreateTiledPrint(key string, ps *standard.PhotoStandard, pd *standard.PrintDefinition, crown, chin geometry.Point) (image.Image, error) {
	if _, err := e.configured(StagePrint); err != nil {
		return nil, err
	}
	if e.c.PrintMaker == nil {
		return nil, fail(StagePrint, KindNotConfigured, nil, "no photo print maker wired")
	}
	if pd == nil {
		return nil, fail(StagePrint, KindInvalidArgument, nil, "no print definition")
	}
	img, err := e.image(StagePrint, key)
	if err != nil {
		return nil, err
	}
	lm, _ := e.c.Store.LandMarks(key)
	crop, err := e.cropRegion(StagePrint, lm, ps, crown, chin)
	if err != nil {
		return nil, err
	}

	photo, err := e.c.PrintMaker.CropPicture(img, crop, ps)
	if err != nil {
		return nil, fail(StagePrint, KindInvalidArgument, err, "crop picture")
	}
	sheet, err := e.c.PrintMaker.TileCroppedPhoto(photo, ps, pd)
	if err != nil {
		return nil, fail(StagePrint, KindInvalidArgument, err, "tile photo")
	}
	return sheet, nil
}
