package harvest

import (
	"github.com/ajitpratap0/adharvest/pkg/ads"
	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/report"
)

// Outcome is the result of one work unit: either a Success or a Failure
type Outcome interface {
	WorkUnit() WorkUnit
	outcome()
}

// Success carries every flattened row of a unit, in API order
type Success struct {
	Unit     WorkUnit
	Rows     []report.Record
	Attempts int
}

// WorkUnit implements Outcome
func (s Success) WorkUnit() WorkUnit { return s.Unit }
func (Success) outcome()             {}

// Failure carries the error that ended a unit. For an exhausted API request
// it is the last *ads.APIError.
type Failure struct {
	Unit     WorkUnit
	Err      error
	Attempts int
}

// WorkUnit implements Outcome
func (f Failure) WorkUnit() WorkUnit { return f.Unit }
func (Failure) outcome()             {}

// APIError returns the API failure, if that is what ended the unit
func (f Failure) APIError() (*ads.APIError, bool) {
	var apiErr *ads.APIError
	if errors.As(f.Err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Structural reports whether the unit ended on a response it could not
// interpret
func (f Failure) Structural() bool {
	return errors.IsType(f.Err, errors.ErrorTypeStructural)
}

// Summary is the partitioned result of a run
type Summary struct {
	Successes []Success
	Failures  []Failure
}

// Total returns the number of outcomes
func (s Summary) Total() int {
	return len(s.Successes) + len(s.Failures)
}

// StructuralFailures counts failures caused by unexpected response shapes
func (s Summary) StructuralFailures() int {
	n := 0
	for _, f := range s.Failures {
		if f.Structural() {
			n++
		}
	}
	return n
}

// Partition splits outcomes by variant, keeping their relative order
func Partition(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch v := o.(type) {
		case Success:
			s.Successes = append(s.Successes, v)
		case Failure:
			s.Failures = append(s.Failures, v)
		}
	}
	return s
}
