package cli

import (
	"github.com/spf13/cobra"

	"github.com/oaubike/relay/internal/config"
	"github.com/oaubike/relay/internal/queue"
	"github.com/oaubike/relay/internal/record"
	"github.com/oaubike/relay/internal/store"
)

// PurgeOptions holds flags for the purge command.
type PurgeOptions struct {
	*RootOptions
}

// purgeReport is what the purge command prints.
type purgeReport struct {
	RemovedLocations   int `json:"removed_locations"`
	RemovedEmergencies int `json:"removed_emergencies"`
	EvictedLocations   int `json:"evicted_locations"`
}

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PurgeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove delivered records from the local queues",
		Long: `Remove delivered records from the local queues.

Deletes every record already marked synced and trims the location queue
back under its cap. Run this against a stopped daemon or let the daemon
do it on its own schedule.

Example:
  bikerelay purge --config relay.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(opts, cmd)
		},
	}

	return cmd
}

func runPurge(opts *PurgeOptions, cmd *cobra.Command) error {
	log := setupLogging(opts.Verbose)

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	handle := store.NewHandle(cfg.DBPath)
	defer func() { _ = handle.Close() }()
	if _, err := handle.Open(); err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}

	queues := queue.New(handle, log)
	ctx := cmd.Context()

	var report purgeReport
	if report.RemovedLocations, err = queues.PurgeSynced(ctx, record.KindLocation); err != nil {
		return WrapExitError(ExitCommandError, "failed to purge location queue", err)
	}
	if report.RemovedEmergencies, err = queues.PurgeSynced(ctx, record.KindEmergency); err != nil {
		return WrapExitError(ExitCommandError, "failed to purge emergency queue", err)
	}
	if report.EvictedLocations, err = queues.EnforceLocationCap(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to trim location queue", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(report)
	}
	return out.Successf("purged %d locations, %d emergencies, evicted %d over-cap locations",
		report.RemovedLocations, report.RemovedEmergencies, report.EvictedLocations)
}
