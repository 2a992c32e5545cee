// Package compliance evaluates named geometric rules of a photo standard
// against a cropped photo.
package compliance

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/libppp/ppp/pkg/geometry"
	"github.com/libppp/ppp/pkg/landmark"
	"github.com/libppp/ppp/pkg/standard"
)

// ErrUnknownCheck is returned when a requested check is not registered.
var ErrUnknownCheck = errors.New("unknown compliance check")

// Input is the geometry a rule measures. LandMarks must carry the estimated
// Crown and Chin.
type Input struct {
	LandMarks   *landmark.LandMarks
	Crop        geometry.Rect
	Standard    *standard.PhotoStandard
	ImageBounds geometry.Rect
}

// Outcome is the result of one rule.
type Outcome struct {
	Name     string         `json:"name"`
	Passed   bool           `json:"passed"`
	Measured float64        `json:"measured"`
	Expected standard.Range `json:"expected"`
	Reason   string         `json:"reason,omitempty"`
}

// Result aggregates the outcomes of one request.
type Result struct {
	Outcomes []Outcome `json:"outcomes"`
	Passed   bool      `json:"passed"`
}

// Failed returns the outcomes that did not pass.
func (r Result) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.Passed {
			failed = append(failed, o)
		}
	}
	return failed
}

// Outcome returns the first outcome with the given name.
func (r Result) Outcome(name string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Name == name {
			return o, true
		}
	}
	return Outcome{}, false
}

// Rule measures one quantity and compares it to the standard.
type Rule interface {
	Evaluate(in Input) Outcome
}

// RuleFunc adapts a function to the Rule interface.
type RuleFunc func(in Input) Outcome

// Evaluate calls f.
func (f RuleFunc) Evaluate(in Input) Outcome {
	return f(in)
}

// Registry maps check names to rules.
type Registry map[string]Rule

// Names returns the registered names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Checker evaluates rules from a fixed registry. It is read-only after
// construction and safe for concurrent use.
type Checker struct {
	registry Registry
}

// NewChecker creates a Checker over registry.
func NewChecker(registry Registry) *Checker {
	return &Checker{registry: registry}
}

// Resolve checks that every name is registered.
func (c *Checker) Resolve(names []string) error {
	var unknown []string
	for _, name := range names {
		if _, ok := c.registry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownCheck, strings.Join(unknown, ", "))
	}
	return nil
}

// Check evaluates every requested rule, without short-circuiting, and returns
// one outcome per name in request order. Any unknown name fails the whole
// request before a rule runs.
func (c *Checker) Check(in Input, names []string) (Result, error) {
	if err := c.Resolve(names); err != nil {
		return Result{}, err
	}
	res := Result{Outcomes: make([]Outcome, 0, len(names)), Passed: true}
	for _, name := range names {
		o := c.registry[name].Evaluate(in)
		o.Name = name
		res.Outcomes = append(res.Outcomes, o)
		res.Passed = res.Passed && o.Passed
	}
	return res, nil
}
