package publish

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/csarwi/publishom/internal/archive"
	"github.com/csarwi/publishom/internal/config"
	"github.com/csarwi/publishom/internal/core"
)

// NewArchiver returns the archive engine named by cfg. The builtin engine is
// only used when asked for; a missing 7z never falls back to it.
func NewArchiver(cfg config.ArchiverConfig) (archive.Archiver, error) {
	switch cfg.Engine {
	case config.EngineExternal, "":
		return archive.NewSevenZip(cfg.Path), nil
	case config.EngineBuiltin:
		return archive.NewBuiltin(), nil
	default:
		return nil, fmt.Errorf("unknown archive engine %q", cfg.Engine)
	}
}

// FromConfig wires a Publisher from a validated configuration.
func FromConfig(cfg *config.Config, logger *log.Logger) (*Publisher, error) {
	a, err := NewArchiver(cfg.Archiver)
	if err != nil {
		return nil, err
	}
	return New(Options{
		SourceRoot: cfg.SourceRoot,
		OutputDir:  cfg.OutputDir,
		Builder: &archive.Builder{
			Archiver:           a,
			TempDir:            cfg.TempDir,
			Level:              cfg.CompressionLevel,
			VisibilityAttempts: cfg.Visibility.Attempts,
			VisibilityInterval: cfg.Visibility.Interval,
			Logger:             logger,
		},
		Resolver:  core.NewInclusionResolver(),
		Hasher:    core.NewFingerprintHasher(),
		Logger:    logger,
		TracePath: cfg.TracePath,
	})
}
