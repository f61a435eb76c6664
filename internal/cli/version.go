package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nghyane/opsramp-reports/internal/buildinfo"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "report-scheduler %s\n", buildinfo.Version)
			fmt.Fprintf(out, "Commit: %s\n", buildinfo.Commit)
			fmt.Fprintf(out, "Built: %s\n", buildinfo.BuildDate)
		},
	}
}
