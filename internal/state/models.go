package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RunStatus is the lifecycle state of a publish run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// FailureClass groups run termination reasons.
type FailureClass string

const (
	FailureClassPrecondition FailureClass = "precondition"
	FailureClassEnumeration  FailureClass = "enumeration"
	FailureClassArchive      FailureClass = "archive"
	FailureClassSidecar      FailureClass = "sidecar"
	FailureClassSystem       FailureClass = "system"
)

// Run is the persisted record of the most recent publish run.
type Run struct {
	RunID      string     `json:"run_id"`
	StartTime  time.Time  `json:"start_time"`
	FinishTime *time.Time `json:"finish_time"`
	Status     RunStatus  `json:"status"`
	Failure    *Failure   `json:"failure,omitempty"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	switch r.Status {
	case RunStatusRunning:
		if r.FinishTime != nil {
			errs = append(errs, errors.New("finish_time must be null while running"))
		}
	case RunStatusSucceeded, RunStatusFailed:
		if r.FinishTime == nil {
			errs = append(errs, errors.New("finish_time is required once finished"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	if r.Status == RunStatusFailed && r.Failure == nil {
		errs = append(errs, errors.New("failure is required for a failed run"))
	}
	if r.Failure != nil {
		if err := r.Failure.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("failure: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Failure is a recorded run termination reason.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	Version      *string      `json:"version,omitempty"`
	ErrorMessage string       `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassPrecondition, FailureClassEnumeration, FailureClassArchive, FailureClassSidecar, FailureClassSystem:
		// ok
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.Version != nil && strings.TrimSpace(*f.Version) == "" {
		errs = append(errs, errors.New("version must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	return errors.Join(errs...)
}

// Alias records which release archive the alias file currently mirrors.
type Alias struct {
	Version     string `json:"version"`
	Fingerprint string `json:"fingerprint"`
}

func (a Alias) Validate() error {
	var errs []error
	if strings.TrimSpace(a.Version) == "" {
		errs = append(errs, errors.New("version is required"))
	}
	if strings.TrimSpace(a.Fingerprint) == "" {
		errs = append(errs, errors.New("fingerprint is required"))
	}
	return errors.Join(errs...)
}
