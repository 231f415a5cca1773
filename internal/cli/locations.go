package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// LocationsOptions holds flags for the locations command.
type LocationsOptions struct {
	*RootOptions
	Token string
}

// NewLocationsCommand creates the locations command.
func NewLocationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LocationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "locations",
		Short: "List active rider locations from the backend",
		Long: `List active rider locations from the backend.

Example:
  bikerelay locations --token $BIKERELAY_TOKEN`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocations(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Token, "token", "", "session token (defaults to $"+tokenEnvVar+")")

	return cmd
}

func runLocations(opts *LocationsOptions, cmd *cobra.Command) error {
	token, err := sessionToken(&SessionOptions{RootOptions: opts.RootOptions, Token: opts.Token})
	if err != nil {
		return err
	}
	client, err := backendClient(opts.RootOptions)
	if err != nil {
		return err
	}

	locations, err := client.ActiveLocations(cmd.Context(), token)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to fetch active locations", err)
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		return out.Success(locations)
	}

	if len(locations) == 0 {
		return out.Success("no active locations")
	}
	for _, loc := range locations {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%.6f,%.6f\t%s\n", loc.Role, loc.Latitude, loc.Longitude, loc.UpdatedAt)
	}
	return nil
}
