package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/csarwi/publishom/internal/config"
	"github.com/csarwi/publishom/internal/core"
)

func newVersionsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "Show how every folder in the source root is classified",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.resolve(cmd.Flags())
			if err != nil {
				return err
			}
			if cfg.SourceRoot == "" {
				return fmt.Errorf("%w: source_root is required", config.ErrInvalid)
			}
			d, err := core.Discover(cfg.SourceRoot)
			if err != nil {
				return fmt.Errorf("%w: %v", config.ErrInvalid, err)
			}
			latest, hasLatest := core.LatestStable(d.Releases)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FOLDER\tVERDICT\tVERSION\tNOTE")
			for _, c := range d.Classifications {
				version, note := "", c.Reason
				if c.Accepted() {
					version = c.Version.VersionText
					switch {
					case c.Version.Unstable:
						note = "unstable"
					case hasLatest && c.Version.Name == latest.Name:
						note = "latest stable"
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.Verdict, version, note)
			}
			return tw.Flush()
		},
	}
}
