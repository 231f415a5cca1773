package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oaubike/relay/internal/api"
	"github.com/oaubike/relay/internal/config"
)

// tokenEnvVar is consulted when --token is not given.
const tokenEnvVar = "BIKERELAY_TOKEN"

// SessionOptions holds flags shared by the session subcommands.
type SessionOptions struct {
	*RootOptions
	Token string
}

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage backend sessions",
	}

	cmd.PersistentFlags().StringVar(&opts.Token, "token", "", "session token (defaults to $"+tokenEnvVar+")")

	cmd.AddCommand(newSessionStartCommand(opts))
	cmd.AddCommand(newSessionSwitchCommand(opts))
	cmd.AddCommand(newSessionEndCommand(opts))

	return cmd
}

func newSessionStartCommand(opts *SessionOptions) *cobra.Command {
	var role, contact string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Create a backend session and print the token",
		Long: `Create a backend session and print the token.

Example:
  bikerelay session start --role rider --emergency-contact "+2348000000000"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := backendClient(opts.RootOptions)
			if err != nil {
				return err
			}
			session, err := client.CreateSession(cmd.Context(), api.SessionRequest{
				Role:             role,
				EmergencyContact: contact,
			})
			if err != nil {
				return WrapExitError(ExitFailure, "failed to create session", err)
			}
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return out.Success(session.AccessToken)
		},
	}

	cmd.Flags().StringVar(&role, "role", "rider", "session role")
	cmd.Flags().StringVar(&contact, "emergency-contact", "", "emergency contact number")

	return cmd
}

func newSessionSwitchCommand(opts *SessionOptions) *cobra.Command {
	var newRole string

	cmd := &cobra.Command{
		Use:           "switch",
		Short:         "Switch the session's role",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := sessionToken(opts)
			if err != nil {
				return err
			}
			client, err := backendClient(opts.RootOptions)
			if err != nil {
				return err
			}
			if err := client.SwitchRole(cmd.Context(), token, newRole); err != nil {
				return WrapExitError(ExitFailure, "failed to switch role", err)
			}
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return out.Successf("role switched to %s", newRole)
		},
	}

	cmd.Flags().StringVar(&newRole, "role", "", "new role (required)")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}

func newSessionEndCommand(opts *SessionOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "end",
		Short:         "End the backend session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := sessionToken(opts)
			if err != nil {
				return err
			}
			client, err := backendClient(opts.RootOptions)
			if err != nil {
				return err
			}
			if err := client.EndSession(cmd.Context(), token); err != nil {
				return WrapExitError(ExitFailure, "failed to end session", err)
			}
			out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return out.Success("session ended")
		},
	}

	return cmd
}

// sessionToken resolves the token from the flag or the environment.
func sessionToken(opts *SessionOptions) (string, error) {
	if opts.Token != "" {
		return opts.Token, nil
	}
	if token := os.Getenv(tokenEnvVar); token != "" {
		return token, nil
	}
	return "", WrapExitError(ExitCommandError,
		fmt.Sprintf("no session token: pass --token or set $%s", tokenEnvVar), nil)
}

// backendClient builds an API client from the config file.
func backendClient(rootOpts *RootOptions) (*api.Client, error) {
	cfg, err := config.Load(rootOpts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	client, err := api.New(cfg.BackendURL, cfg.RequestTimeout.Std())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid backend url", err)
	}
	return client, nil
}
