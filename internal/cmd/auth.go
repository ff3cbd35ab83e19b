package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/salmonumbrella/paddock-cli/internal/api"
	"github.com/salmonumbrella/paddock-cli/internal/iocontext"
)

const (
	envUsername = "PADDOCK_USERNAME"
	envPassword = "PADDOCK_PASSWORD"
)

func newLoginCmd() *cobra.Command {
	var username string
	var envFile string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session cookies",
		Long: strings.TrimSpace(`
Sign in with a username and password. The session cookies are stored in the
OS keychain under the active profile and reused by later commands.

The password is read from PADDOCK_PASSWORD or prompted for without echo.
`),
		Example: strings.TrimSpace(`
  paddock login -u admin
  PADDOCK_PASSWORD=secret paddock login -u admin --profile staging
  paddock login --env-file .env.staging
`),
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			password := os.Getenv(envPassword)
			if envFile != "" {
				vars, err := godotenv.Read(envFile)
				if err != nil {
					return fmt.Errorf("failed to read --env-file %q: %w", envFile, err)
				}
				if username == "" {
					username = strings.TrimSpace(vars[envUsername])
				}
				if v := vars[envPassword]; v != "" {
					password = v
				}
			}
			if username == "" {
				username = strings.TrimSpace(os.Getenv(envUsername))
			}

			ioStreams := iocontext.GetIO(cmd.Context())
			if username == "" {
				line, err := ioStreams.ReadLine("Username: ")
				if err != nil {
					return err
				}
				username = strings.TrimSpace(line)
			}
			if username == "" {
				return fmt.Errorf("username is required")
			}
			if password == "" {
				secret, err := ioStreams.ReadSecret("Password: ")
				if err != nil {
					return err
				}
				password = secret
			}

			return withClient(cmd, func(client *api.Client) error {
				switch api.Login(cmdContext(cmd), client, username, password) {
				case api.LoginOK:
				case api.LoginDenied:
					return &api.AuthError{Reason: "invalid username or password"}
				default:
					return errors.New("login failed: the backend did not confirm the session")
				}

				if isJSON(cmd) {
					return printJSON(cmd, map[string]string{"status": string(api.LoginOK), "username": username})
				}
				_, _ = fmt.Fprintf(ioStreams.Out, "Logged in as %s\n", username)
				return nil
			})
		}),
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username (env PADDOCK_USERNAME)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Read PADDOCK_USERNAME and PADDOCK_PASSWORD from a .env file")
	flagAlias(cmd.Flags(), "username", "user")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored cookies",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(client *api.Client) error {
				result := api.Logout(cmdContext(cmd), client)
				if !result.OK() {
					slog.Warn("backend logout failed; local session cleared anyway", "detail", result.Detail, "status", result.StatusCode)
				}
				if isJSON(cmd) {
					return printJSON(cmd, map[string]any{"status": "logged_out", "backend": result.Status})
				}
				_, _ = fmt.Fprintln(iocontext.GetIO(cmd.Context()).Out, "Logged out")
				return nil
			})
		}),
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "whoami",
		Aliases: []string{"me"},
		Short:   "Show the user behind the current session",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(client *api.Client) error {
				result := api.Me(cmdContext(cmd), client)
				if err := api.ResultError(result); err != nil {
					return err
				}
				user, ok := result.Value()
				if !ok {
					return errors.New("the backend returned no user")
				}
				if isJSON(cmd) {
					return printJSON(cmd, user)
				}
				printUser(cmd, user)
				return nil
			})
		}),
	}
}

func printUser(cmd *cobra.Command, user api.User) {
	out := iocontext.GetIO(cmd.Context()).Out
	_, _ = fmt.Fprintf(out, "Username: %s\n", user.Username)
	if name := displayName(user); name != "" {
		_, _ = fmt.Fprintf(out, "Name:     %s\n", name)
	}
	_, _ = fmt.Fprintf(out, "ID:       %s\n", user.ID)
	if len(user.Scopes) > 0 {
		names := make([]string, 0, len(user.Scopes))
		for _, s := range user.Scopes {
			names = append(names, s.ScopeName)
		}
		_, _ = fmt.Fprintf(out, "Scopes:   %s\n", strings.Join(names, ", "))
	}
}

func displayName(user api.User) string {
	var parts []string
	for _, p := range []*string{user.FirstName, user.MiddleName, user.LastName} {
		if p != nil && strings.TrimSpace(*p) != "" {
			parts = append(parts, strings.TrimSpace(*p))
		}
	}
	return strings.Join(parts, " ")
}
