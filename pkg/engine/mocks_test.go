package engine

import (
	"image"

	"github.com/stretchr/testify/mock"

	"github.com/libppp/ppp/pkg/crownchin"
	"github.com/libppp/ppp/pkg/geometry"
	"github.com/libppp/ppp/pkg/landmark"
	"github.com/libppp/ppp/pkg/pose"
	"github.com/libppp/ppp/pkg/standard"
)

// MockDetector implements detector.Detector for testing
type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) Detect(img image.Image, search *geometry.Rect) (geometry.Rect, error) {
	args := m.Called(img, search)
	return args.Get(0).(geometry.Rect), args.Error(1)
}

// MockRefiner implements detector.Refiner for testing
type MockRefiner struct {
	mock.Mock
}

func (m *MockRefiner) Refine(img image.Image, region geometry.Rect) ([]geometry.Point, error) {
	args := m.Called(img, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]geometry.Point), args.Error(1)
}

func (m *MockRefiner) PointCount() int {
	return m.Called().Int(0)
}

// MockCrownChin implements CrownChinEstimator for testing
type MockCrownChin struct {
	mock.Mock
}

func (m *MockCrownChin) Estimate(lm *landmark.LandMarks, face *geometry.Rect, bounds geometry.Rect) (crownchin.Result, error) {
	args := m.Called(lm, face, bounds)
	return args.Get(0).(crownchin.Result), args.Error(1)
}

// MockPoseEstimator implements PoseEstimator for testing
type MockPoseEstimator struct {
	mock.Mock
}

func (m *MockPoseEstimator) EstimatePose(lm *landmark.LandMarks, focalLength float64, focalCenter geometry.Point) (pose.Pose, error) {
	args := m.Called(lm, focalLength, focalCenter)
	return args.Get(0).(pose.Pose), args.Error(1)
}

// MockPrintMaker implements PhotoPrintMaker for testing
type MockPrintMaker struct {
	mock.Mock
}

func (m *MockPrintMaker) CropPicture(img image.Image, crop geometry.Rect, ps *standard.PhotoStandard) (image.Image, error) {
	args := m.Called(img, crop, ps)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(image.Image), args.Error(1)
}

func (m *MockPrintMaker) TileCroppedPhoto(photo image.Image, ps *standard.PhotoStandard, pd *standard.PrintDefinition) (image.Image, error) {
	args := m.Called(photo, ps, pd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(image.Image), args.Error(1)
}
