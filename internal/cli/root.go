package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nghyane/opsramp-reports/internal/config"
)

// DefaultConfigPath is read when --config is not given.
const DefaultConfigPath = "config.json"

type runOptions struct {
	configPath string
	dryRun     bool
	hourly     bool
	burst      bool
	cleanup    bool
	logLevel   string
}

func (o *runOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.configPath, "config", "c", DefaultConfigPath, "path to the client configuration file (YAML or JSON)")
	fs.BoolVar(&o.dryRun, "dry-run", false, "log every request instead of sending it")
	fs.BoolVar(&o.hourly, "hourly", false, "create one analysis per hour, then delete them all (default)")
	fs.BoolVar(&o.burst, "burst", false, "create every analysis of the day immediately, without deleting")
	fs.BoolVar(&o.cleanup, "cleanup", false, "delete the analysis IDs given as arguments")
	fs.StringVar(&o.logLevel, "log-level", "", "override log level: "+strings.Join(config.LogLevels, ", "))
}

func (o *runOptions) mode() string {
	switch {
	case o.cleanup:
		return "cleanup"
	case o.burst:
		return "burst"
	default:
		return "hourly"
	}
}

func (o *runOptions) validate(args []string) error {
	if o.logLevel != "" && !config.IsValidLogLevel(o.logLevel) {
		return fmt.Errorf("invalid --log-level %q: must be one of %s", o.logLevel, strings.Join(config.LogLevels, ", "))
	}
	if o.cleanup && len(args) == 0 {
		return errors.New("--cleanup requires at least one analysis ID")
	}
	if !o.cleanup && len(args) > 0 {
		return fmt.Errorf("unexpected arguments %q: analysis IDs are only accepted with --cleanup", args)
	}
	return nil
}

// NewRootCommand builds the report-scheduler command tree.
func NewRootCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "report-scheduler [--hourly | --burst | --cleanup ID...]",
		Short: "Create and clean up hourly OpsRamp performance analyses",
		Long: `report-scheduler creates one OpsRamp performance-utilization analysis per
hourly window of the day and deletes them once the cycle is complete.

Modes:
  --hourly   create each analysis when its window closes, then delete all (default)
  --burst    create every analysis of the day immediately; nothing is deleted
  --cleanup  delete the analysis IDs given as arguments`,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(args); err != nil {
				return err
			}
			return run(cmd.Context(), cmd, opts, args)
		},
	}
	opts.addFlags(cmd.Flags())
	cmd.MarkFlagsMutuallyExclusive("hourly", "burst", "cleanup")
	cmd.AddCommand(newVersionCommand())
	return cmd
}

// Execute runs the root command and exits non-zero on startup failures.
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
