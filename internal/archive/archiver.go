// Package archive builds release archives through a pluggable compression
// engine and publishes them onto destination storage without ever exposing a
// partially written file under the final name.
package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrToolNotFound means the external compression utility could not be
	// located. It is a precondition failure: nothing has been written yet.
	ErrToolNotFound = errors.New("compression utility not found")

	// ErrNoOutput means the engine reported success but produced no archive.
	ErrNoOutput = errors.New("compression utility reported success but wrote no archive")
)

// Request describes a single archive invocation.
type Request struct {
	// WorkDir is the directory list file entries are relative to.
	WorkDir string

	// ListFile holds one relative path per line.
	ListFile string

	// Output is the archive path to create.
	Output string

	// Level is the compression level, 0 (store) to 9 (ultra).
	Level int
}

// Archiver turns a list file into a zip archive. Implementations run
// synchronously and must not return before Output is complete.
type Archiver interface {
	Name() string
	Archive(ctx context.Context, req Request) error
}

// Preflighter is implemented by archivers with an external precondition.
type Preflighter interface {
	Preflight() error
}

// ToolError carries a failed invocation's exit code and captured streams.
type ToolError struct {
	Tool     string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s exited with code %d", e.Tool, e.ExitCode)
	if s := strings.TrimSpace(string(e.Stderr)); s != "" {
		fmt.Fprintf(&b, "\nstderr:\n%s", s)
	}
	if s := strings.TrimSpace(string(e.Stdout)); s != "" {
		fmt.Fprintf(&b, "\nstdout:\n%s", s)
	}
	return b.String()
}
