package cli

import (
	"errors"
	"fmt"

	"github.com/csarwi/publishom/internal/config"
	"github.com/csarwi/publishom/internal/publish"
	"github.com/csarwi/publishom/internal/state"
)

const (
	ExitSuccess           = 0
	ExitPublishFailure    = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// InvocationError is a command-line usage error.
type InvocationError struct {
	ExitCode int
	Message  string
}

func (e *InvocationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error returned by a command to the process exit code.
//
//	0  success
//	1  publish failure (enumeration, archive or sidecar)
//	2  invalid invocation
//	3  configuration or precondition error (including a held lock)
//	4  anything else
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) && invErr != nil {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	if errors.Is(err, config.ErrInvalid) {
		return ExitConfigError
	}
	var pubErr *publish.Error
	if errors.As(err, &pubErr) {
		switch pubErr.Class {
		case state.FailureClassPrecondition:
			return ExitConfigError
		case state.FailureClassSystem:
			return ExitInternalError
		default:
			return ExitPublishFailure
		}
	}
	return ExitInternalError
}
