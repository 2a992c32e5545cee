package engine

import (
	"errors"
	"fmt"

	"github.com/libppp/ppp/config"
	"github.com/libppp/ppp/pkg/compliance"
	"github.com/libppp/ppp/pkg/imagestore"
	"github.com/libppp/ppp/pkg/pose"
)

// Sentinels for each failure kind. Every *Error unwraps to exactly one of
// them, so callers can branch with errors.Is.
var (
	ErrNotConfigured         = errors.New("engine not configured")
	ErrImageNotFound         = imagestore.ErrImageNotFound
	ErrDetectionFailed       = errors.New("detection failed")
	ErrInsufficientLandmarks = pose.ErrInsufficientLandmarks
	ErrUnknownCheck          = compliance.ErrUnknownCheck
	ErrConfiguration         = config.ErrConfiguration
	ErrInvalidArgument       = errors.New("invalid argument")
)

// Kind classifies a failure. Configuration is the only kind that concerns the
// engine as a whole; the others are scoped to one request.
type Kind int

const (
	KindNotConfigured Kind = iota + 1
	KindImageNotFound
	KindDetectionFailed
	KindInsufficientLandmarks
	KindUnknownCheck
	KindConfiguration
	KindInvalidArgument
)

func (k Kind) sentinel() error {
	switch k {
	case KindNotConfigured:
		return ErrNotConfigured
	case KindImageNotFound:
		return ErrImageNotFound
	case KindDetectionFailed:
		return ErrDetectionFailed
	case KindInsufficientLandmarks:
		return ErrInsufficientLandmarks
	case KindUnknownCheck:
		return ErrUnknownCheck
	case KindConfiguration:
		return ErrConfiguration
	}
	return ErrInvalidArgument
}

func (k Kind) String() string {
	return k.sentinel().Error()
}

// Stage names the step a request was executing when it failed.
type Stage string

const (
	StageConfigure     Stage = "configure"
	StageLoad          Stage = "image-load"
	StageFaceDetection Stage = "face-detection"
	StageRefinement    Stage = "landmark-refinement"
	StageEstimation    Stage = "estimation"
	StageCompliance    Stage = "compliance"
	StagePrint         Stage = "print"
)

// Error is the terminal failed state of a request.
type Error struct {
	Stage  Stage
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Stage, e.Reason)
	if e.Err != nil && e.Err != e.Kind.sentinel() {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the kind's sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func fail(stage Stage, kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Stage: stage, Kind: kind, Reason: fmt.Sprintf(format, args...), Err: err}
}
