// Package state persists publisher bookkeeping under "<output>/.publishom/".
package state

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/csarwi/publishom/internal/durable"
)

// DirName is the bookkeeping directory inside the output directory.
const DirName = ".publishom"

// Store reads and writes run bookkeeping. All writes are atomic.
type Store struct {
	outputDir string
}

func NewStore(outputDir string) (*Store, error) {
	if strings.TrimSpace(outputDir) == "" {
		return nil, errors.New("outputDir is required")
	}
	return &Store{outputDir: outputDir}, nil
}

// Dir returns the bookkeeping directory.
func (s *Store) Dir() string {
	return filepath.Join(s.outputDir, DirName)
}

// LockPath returns the advisory lock file path.
func (s *Store) LockPath() string {
	return filepath.Join(s.Dir(), "lock")
}

func (s *Store) runPath() string {
	return filepath.Join(s.Dir(), "last-run.json")
}

func (s *Store) aliasPath() string {
	return filepath.Join(s.Dir(), "alias.json")
}

// NewRunID returns a fresh unique run identifier.
func NewRunID() string {
	return uuid.NewString()
}

func (s *Store) SaveRun(run Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	data, err := jsonMarshalStable(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := durable.WriteFile(s.runPath(), data, 0o644); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// LoadRun returns the last run record; os.ErrNotExist if there is none.
func (s *Store) LoadRun() (Run, error) {
	var run Run
	if err := readJSONStrict(s.runPath(), &run); err != nil {
		return Run{}, err
	}
	if err := run.Validate(); err != nil {
		return Run{}, fmt.Errorf("invalid run on disk: %w", err)
	}
	return run, nil
}

func (s *Store) SaveAlias(alias Alias) error {
	if err := alias.Validate(); err != nil {
		return fmt.Errorf("invalid alias: %w", err)
	}
	data, err := jsonMarshalStable(alias)
	if err != nil {
		return fmt.Errorf("marshal alias: %w", err)
	}
	if err := durable.WriteFile(s.aliasPath(), data, 0o644); err != nil {
		return fmt.Errorf("write alias: %w", err)
	}
	return nil
}

// LoadAlias returns the recorded alias provenance. A missing or unreadable
// record yields ok=false: the alias is then simply refreshed.
func (s *Store) LoadAlias() (alias Alias, ok bool) {
	if err := readJSONStrict(s.aliasPath(), &alias); err != nil {
		return Alias{}, false
	}
	if alias.Validate() != nil {
		return Alias{}, false
	}
	return alias, true
}

func jsonMarshalStable(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func readJSONStrict(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	// Ensure no trailing junk.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}
