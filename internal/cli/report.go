package cli

import (
	"github.com/spf13/cobra"

	"github.com/oaubike/relay/internal/api"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Token        string
	Latitude     float64
	Longitude    float64
	Availability string
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report bike availability at a location",
		Long: `Report bike availability at a location.

Example:
  bikerelay report --lat 7.5181 --lon 4.5284 --availability available`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Token, "token", "", "session token (defaults to $"+tokenEnvVar+")")
	cmd.Flags().Float64Var(&opts.Latitude, "lat", 0, "latitude (required)")
	cmd.Flags().Float64Var(&opts.Longitude, "lon", 0, "longitude (required)")
	cmd.Flags().StringVar(&opts.Availability, "availability", "", "availability state (required)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	_ = cmd.MarkFlagRequired("availability")

	return cmd
}

func runReport(opts *ReportOptions, cmd *cobra.Command) error {
	token, err := sessionToken(&SessionOptions{RootOptions: opts.RootOptions, Token: opts.Token})
	if err != nil {
		return err
	}
	client, err := backendClient(opts.RootOptions)
	if err != nil {
		return err
	}

	report := api.AvailabilityReport{
		Latitude:     opts.Latitude,
		Longitude:    opts.Longitude,
		Availability: opts.Availability,
	}
	if err := client.ReportBikeAvailability(cmd.Context(), token, report); err != nil {
		return WrapExitError(ExitFailure, "failed to report availability", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return out.Success("availability reported")
}
