// Package cli implements the publishom command line.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/csarwi/publishom/internal/config"
)

// Version is set via -ldflags.
var Version = "dev"

// Run executes the command line in args (without argv[0]) and returns the
// process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, "publishom:", err)
	}
	return ExitCode(err)
}

type rootOptions struct {
	configFile string
}

// NewRootCommand builds the command tree.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "publishom",
		Short: "Publish OM release folders as versioned zip archives",
		Long: `publishom scans a source root for release folders named "OM <version>",
builds one zip archive per release together with a manifest and a SHA-256
fingerprint, keeps OM_latest.zip pointing at the newest stable release and
removes artifacts of releases that no longer exist.

Unchanged releases are skipped, so repeated runs are cheap.`,
		Version:       Version,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "YAML configuration file")
	pf.String("source", "", "source root holding the release folders")
	pf.String("output", "", "output directory for archives and sidecars")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("log-format", "", "log format (text, json, logfmt)")

	root.AddCommand(
		newPublishCommand(opts),
		newVersionsCommand(opts),
		newConfigCommand(opts),
	)
	return root
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return invalidInvocationf("unexpected arguments for %q: %q", cmd.CommandPath(), args)
	}
	return nil
}

func (o *rootOptions) resolve(flags *pflag.FlagSet) (*config.Config, error) {
	return config.Resolve(config.LoadOptions{ConfigFile: o.configFile, Flags: flags})
}

func (o *rootOptions) load(flags *pflag.FlagSet) (*config.Config, error) {
	return config.Load(config.LoadOptions{ConfigFile: o.configFile, Flags: flags})
}
