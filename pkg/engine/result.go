package engine

import (
	"fmt"

	"github.com/libppp/ppp/pkg/compliance"
	"github.com/libppp/ppp/pkg/crownchin"
	"github.com/libppp/ppp/pkg/geometry"
	"github.com/libppp/ppp/pkg/landmark"
	"github.com/libppp/ppp/pkg/pose"
)

// State is the progress of a detection request. A failure at any point ends
// the request with an *Error naming the stage instead of a Result.
type State int

const (
	Idle State = iota
	FaceDetected
	LandmarksRefined
	Estimated
	ComplianceChecked
)

func (s State) String() string {
	switch s {
	case FaceDetected:
		return "face-detected"
	case LandmarksRefined:
		return "landmarks-refined"
	case Estimated:
		return "estimated"
	case ComplianceChecked:
		return "compliance-checked"
	}
	return "idle"
}

// Result is the outcome of one detection request. It is owned by the caller.
type Result struct {
	Key       string
	State     State
	LandMarks *landmark.LandMarks
	LipsRect  geometry.Rect
	CrownChin crownchin.Result

	// Pose is nil when PoseErr is set.
	Pose    *pose.Pose
	PoseErr error

	// Crop and Compliance are set by Analyze.
	Crop       geometry.Rect
	Compliance *compliance.Result

	// Warnings lists optional stages that found nothing.
	Warnings []string
}

func (r *Result) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}
