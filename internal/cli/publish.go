package cli

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/csarwi/publishom/internal/config"
	"github.com/csarwi/publishom/internal/publish"
)

func newPublishCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Build changed archives, refresh the alias and remove orphans",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := config.NewLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}
			p, err := publish.FromConfig(cfg, logger)
			if err != nil {
				return err
			}

			res, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}

			var built int64
			for _, v := range res.Versions {
				if v.Outcome == publish.StateRebuilt {
					built += v.Bytes
				}
			}
			logger.Info("publish complete",
				"rebuilt", res.Count(publish.StateRebuilt),
				"unchanged", res.Count(publish.StateSkippedUnchanged),
				"empty", res.Count(publish.StateSkippedNoFiles),
				"rejected", res.Rejected,
				"archived", humanize.Bytes(uint64(built)),
				"alias", res.Alias.Version,
				"removed", len(res.Cleanup.Removed),
			)
			return nil
		},
	}

	f := cmd.Flags()
	f.Int("compression-level", 5, "compression level 0-9")
	f.String("engine", "", `archive engine: "external" (7z) or "builtin"`)
	f.String("7z-path", "", "path to the 7z executable")
	f.String("temp-dir", "", "local scratch directory")
	f.String("trace", "", "write the decision trace to this file")
	return cmd
}
