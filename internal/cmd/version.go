package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdk4me/sdk4me-go/internal/update"
	"github.com/sdk4me/sdk4me-go/pkg/sdk4me"
)

// version is set at build time via ldflags
var version = "dev"

func newVersionCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Print version information",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if !check {
				if isJSON(cmd) {
					return printResult(cmd, map[string]any{"version": version, "sdk": sdk4me.Version})
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sdk4me version %s (sdk4me-go %s)\n", version, sdk4me.Version)
				return nil
			}

			result, err := update.Check(cmd.Context(), version)
			if err != nil {
				return err
			}
			if isJSON(cmd) {
				return printResult(cmd, map[string]any{
					"version":          version,
					"sdk":              sdk4me.Version,
					"latest":           result.LatestVersion,
					"update_available": result.UpdateAvailable,
					"url":              result.UpdateURL,
				})
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "sdk4me version %s (sdk4me-go %s)\n", version, sdk4me.Version)
			if result.UpdateAvailable {
				_, _ = fmt.Fprintf(out, "A newer version is available: %s\n%s\n", result.LatestVersion, result.UpdateURL)
			} else {
				_, _ = fmt.Fprintf(out, "Latest release: %s\n", result.LatestVersion)
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&check, "check", false, "Look up the latest release on GitHub")
	return cmd
}
