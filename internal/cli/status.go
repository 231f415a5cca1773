package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oaubike/relay/internal/config"
	"github.com/oaubike/relay/internal/control"
	"github.com/oaubike/relay/internal/record"
	"github.com/oaubike/relay/internal/store"
	"github.com/oaubike/relay/internal/syncer"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Addr string
}

// statusReport is what the status command prints.
type statusReport struct {
	Online             bool   `json:"online"`
	DBInitialized      bool   `json:"db_initialized"`
	PendingLocations   int    `json:"pending_locations"`
	PendingEmergencies int    `json:"pending_emergencies"`
	LastSyncAt         string `json:"last_sync_at,omitempty"`
}

func (r statusReport) String() string {
	state := "offline"
	if r.Online {
		state = "online"
	}
	line := fmt.Sprintf("relay %s, db initialized: %v, pending: %d locations, %d emergencies",
		state, r.DBInitialized, r.PendingLocations, r.PendingEmergencies)
	if r.LastSyncAt != "" {
		line += ", last sync " + r.LastSyncAt
	}
	return line
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show connectivity and queue depth",
		Long: `Show connectivity and queue depth.

Queries the running daemon for its sync status and the local database
for the number of records still waiting to be delivered.

Example:
  bikerelay status
  bikerelay status --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "relay address (defaults to config listen_addr)")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	addr := opts.Addr
	if addr == "" {
		addr = cfg.ListenAddr
	}

	body, err := postControl(addr, control.Message{Type: control.TypeGetSyncStatus})
	if err != nil {
		return WrapExitError(ExitFailure, "status request failed", err)
	}

	var status control.SyncStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return WrapExitError(ExitFailure, "unexpected relay response", err)
	}

	report := statusReport{
		Online:        status.IsOnline,
		DBInitialized: status.DBInitialized,
	}

	// Queue depth comes straight from the database. WAL mode lets this
	// read run alongside the daemon's writer.
	handle := store.NewHandle(cfg.DBPath)
	defer func() { _ = handle.Close() }()
	st, err := handle.Open()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}

	ctx := cmd.Context()
	for _, kind := range record.Kinds {
		count, err := st.CountUnsynced(ctx, kind)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count pending records", err)
		}
		switch kind {
		case record.KindLocation:
			report.PendingLocations = count
		case record.KindEmergency:
			report.PendingEmergencies = count
		}
	}

	if setting, found, err := st.GetSetting(ctx, syncer.LastSyncKey); err == nil && found {
		var stamp string
		if json.Unmarshal(setting.Value, &stamp) == nil {
			report.LastSyncAt = stamp
		}
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success(report)
}
