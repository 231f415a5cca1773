package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/oaubike/relay/internal/config"
	"github.com/oaubike/relay/internal/control"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Addr string
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Force an immediate drain of the offline queues",
		Long: `Force an immediate drain of the offline queues.

Sends FORCE_SYNC to the running daemon and reports whether the drain
left any retryable work behind.

Example:
  bikerelay sync
  bikerelay sync --addr 127.0.0.1:8090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "relay address (defaults to config listen_addr)")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	addr, err := relayAddr(opts.RootOptions, opts.Addr)
	if err != nil {
		return err
	}

	body, err := postControl(addr, control.Message{Type: control.TypeForceSync})
	if err != nil {
		return WrapExitError(ExitFailure, "sync request failed", err)
	}

	var complete control.SyncComplete
	if err := json.Unmarshal(body, &complete); err != nil {
		return WrapExitError(ExitFailure, "unexpected relay response", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if !complete.Success {
		_ = out.Successf("sync incomplete: %s", complete.Error)
		return WrapExitError(ExitFailure, "sync left unsynced work behind", nil)
	}
	return out.Success("sync complete")
}

// relayAddr resolves the daemon address from the flag or the config file.
func relayAddr(rootOpts *RootOptions, flagAddr string) (string, error) {
	if flagAddr != "" {
		return flagAddr, nil
	}
	cfg, err := config.Load(rootOpts.ConfigPath)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg.ListenAddr, nil
}
