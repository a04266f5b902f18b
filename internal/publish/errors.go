package publish

import (
	"fmt"

	"github.com/csarwi/publishom/internal/state"
)

// Error is a fatal run failure. Class tells callers which stage failed;
// Version names the release being processed, if any.
type Error struct {
	Class   state.FailureClass
	Version string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Version != "" {
		return fmt.Sprintf("%s failure in %q: %v", e.Class, e.Version, e.Err)
	}
	return fmt.Sprintf("%s failure: %v", e.Class, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func failure(class state.FailureClass, version string, err error) error {
	return &Error{Class: class, Version: version, Err: err}
}

func (e *Error) record() *state.Failure {
	f := &state.Failure{FailureClass: e.Class, ErrorMessage: e.Err.Error()}
	if e.Version != "" {
		v := e.Version
		f.Version = &v
	}
	return f
}
