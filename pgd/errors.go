package pgd

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned for missing or invalid
	// settings, before any worker is started.
	ErrConfiguration = errors.New("pgd: invalid configuration")

	// ErrInternalInvariant indicates a coordination bug,
	// such as a weight vector of the wrong length or a
	// result from an unknown worker.
	ErrInternalInvariant = errors.New("pgd: internal invariant violated")

	// ErrSinkWrite is reported (as a warning) when the
	// final weights could not be written to their sink.
	ErrSinkWrite = errors.New("pgd: failed to write weights")

	// ErrAborted is returned when a run is cancelled or
	// times out before converging.
	ErrAborted = errors.New("pgd: run aborted")
)

// A Stage names the part of a run in which an error
// occurred.
type Stage string

const (
	StageLoad      Stage = "load"
	StagePartition Stage = "partition"
	StageDispatch  Stage = "dispatch"
	StageAggregate Stage = "aggregate"
)

// A StageError attaches a Stage to a fatal error.
type StageError struct {
	Stage Stage
	Err   error
}

func (s *StageError) Error() string {
	return fmt.Sprintf("%s: %v", s.Stage, s.Err)
}

func (s *StageError) Unwrap() error {
	return s.Err
}

// StageOf returns the stage of a fatal error, or "" if
// the error carries none.
func StageOf(err error) Stage {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}

func stageError(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
