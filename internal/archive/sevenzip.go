package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// SevenZip drives the external 7-Zip command line utility.
type SevenZip struct {
	// Path is the configured executable; empty means auto-locate.
	Path string

	resolved string
}

// NewSevenZip creates an archiver for the given executable path.
func NewSevenZip(path string) *SevenZip {
	return &SevenZip{Path: path}
}

// Name identifies the engine in logs.
func (s *SevenZip) Name() string {
	return "7z"
}

// Preflight locates the executable. It must succeed before any output is
// touched.
func (s *SevenZip) Preflight() error {
	p, err := Locate(s.Path)
	if err != nil {
		return err
	}
	s.resolved = p
	return nil
}

// Executable returns the resolved executable path after Preflight.
func (s *SevenZip) Executable() string {
	return s.resolved
}

// Args returns the command line for req, without the executable.
//
//	a         add to archive
//	-tzip     zip format
//	-mx=N     compression level
//	-y        assume yes on all queries
//	-bb0      minimal log output
//	-bsp0     no progress output
//	-scsUTF-8 list file charset
func (s *SevenZip) Args(req Request) []string {
	return []string{
		"a",
		"-tzip",
		"-mx=" + strconv.Itoa(req.Level),
		"-y",
		"-bb0",
		"-bsp0",
		"-scsUTF-8",
		req.Output,
		"@" + req.ListFile,
	}
}

// Archive runs 7-Zip synchronously with stdout and stderr captured
// separately. A non-zero exit status yields a *ToolError.
func (s *SevenZip) Archive(ctx context.Context, req Request) error {
	if s.resolved == "" {
		if err := s.Preflight(); err != nil {
			return err
		}
	}

	cmd := exec.CommandContext(ctx, s.resolved, s.Args(req)...)
	cmd.Dir = req.WorkDir
	// Give the tool a moment to flush after cancellation before its pipes
	// are torn down.
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("archiving cancelled: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ToolError{
				Tool:     s.resolved,
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.Bytes(),
				Stderr:   stderr.Bytes(),
			}
		}
		return fmt.Errorf("failed to run %s: %w", s.resolved, err)
	}
	return nil
}
