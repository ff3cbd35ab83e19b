package cmd

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/paddock-cli/internal/config"
	"github.com/salmonumbrella/paddock-cli/internal/host"
	"github.com/salmonumbrella/paddock-cli/internal/iocontext"
	"github.com/salmonumbrella/paddock-cli/internal/outfmt"
	"github.com/salmonumbrella/paddock-cli/internal/resolve"
)

// profileKeys are the settings `config set` accepts.
var profileKeys = []string{"base_url", "api_port", "page_url"}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Aliases: []string{"cfg"},
		Short:   "Manage connection profiles",
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigProfilesCmd())

	return cmd
}

// activeProfile returns --profile, PADDOCK_PROFILE or the stored current profile.
func activeProfile() (string, error) {
	settings, err := config.Resolve(config.Overrides{Profile: flags.Profile})
	if err != nil {
		return "", err
	}
	return settings.Profile, nil
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key=value>...",
		Short: "Store settings in the active profile",
		Long: `Store settings in the active profile and make it current.

Keys: base_url, api_port, page_url. An empty value removes the setting.`,
		Example: `  paddock config set base_url=https://api.paddock.example.com
  paddock config set page_url=http://localhost:3000/horses api_port=8001 --profile dev`,
		Args: cobra.MinimumNArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			name, err := activeProfile()
			if err != nil {
				return err
			}
			profile, err := config.LoadProfile(name)
			if err != nil && !errors.Is(err, config.ErrProfileNotFound) {
				return err
			}
			for _, arg := range args {
				key, value, err := parseField(arg)
				if err != nil {
					return err
				}
				if err := setProfileValue(&profile, key, strings.TrimSpace(value)); err != nil {
					return err
				}
			}
			if err := config.SaveProfile(name, profile); err != nil {
				return err
			}
			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{"profile": name, "settings": profile})
			}
			_, _ = fmt.Fprintf(iocontext.GetIO(cmd.Context()).Out, "Saved profile %s\n", name)
			return nil
		}),
	}
}

func setProfileValue(p *config.Profile, key, value string) error {
	switch strings.ToLower(strings.ReplaceAll(key, "-", "_")) {
	case "base_url":
		p.BaseURL = value
	case "api_port":
		p.APIPort = value
	case "page_url":
		if value != "" {
			if _, err := host.ParsePage(value, nil); err != nil {
				return err
			}
		}
		p.PageURL = value
	default:
		return fmt.Errorf("invalid key %q: must be one of %s", key, strings.Join(profileKeys, ", "))
	}
	return nil
}

// effectiveSettings is what `config show` prints.
type effectiveSettings struct {
	Profile  string `json:"profile"`
	BaseURL  string `json:"base_url,omitempty"`
	APIPort  string `json:"api_port,omitempty"`
	PageURL  string `json:"page_url"`
	Headless bool   `json:"headless"`
	Timeout  string `json:"timeout"`
	Output   string `json:"output"`
	Origin   string `json:"origin"`
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective settings",
		Long:  "Show the settings after merging the profile, the environment and flags.",
		Args:  cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			factory, err := newClientFactory(cmd)
			if err != nil {
				return err
			}
			s := factory.settings
			view := effectiveSettings{
				Profile:  s.Profile,
				BaseURL:  s.BaseURL,
				APIPort:  s.APIPort,
				PageURL:  s.PageURL,
				Headless: s.Headless,
				Timeout:  s.Timeout.String(),
				Output:   outfmt.ModeFromContext(cmd.Context()).String(),
			}
			client, err := factory.newClient()
			if err != nil {
				return err
			}
			view.Origin = client.BaseURL()

			if isJSON(cmd) {
				return printJSON(cmd, view)
			}
			f := outfmt.NewFormatter(cmd.Context(), iocontext.GetIO(cmd.Context()).Out, cmd.ErrOrStderr())
			rows := [][2]string{
				{"profile", view.Profile},
				{"base_url", orDash(view.BaseURL)},
				{"api_port", orDash(view.APIPort)},
				{"page_url", view.PageURL},
				{"headless", fmt.Sprint(view.Headless)},
				{"timeout", view.Timeout},
				{"output", view.Output},
				{"origin", view.Origin},
			}
			for _, r := range rows {
				f.Row(r[0], r[1])
			}
			return f.EndTable()
		}),
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newConfigProfilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List, switch and delete profiles",
	}
	cmd.AddCommand(newProfilesListCmd())
	cmd.AddCommand(newProfilesUseCmd())
	cmd.AddCommand(newProfilesDeleteCmd())
	return cmd
}

func newProfilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored profiles",
		Args:    cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			profiles, err := config.ListProfiles()
			if err != nil {
				return err
			}
			current, _ := config.CurrentProfile()

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{
					"current":  current,
					"profiles": profiles,
				})
			}

			f := outfmt.NewFormatter(cmd.Context(), iocontext.GetIO(cmd.Context()).Out, cmd.ErrOrStderr())
			if len(profiles) == 0 {
				f.Empty("No profiles stored. Run 'paddock config set' to add one.")
				return nil
			}
			f.StartTable([]string{"CURRENT", "PROFILE", "BASE_URL", "PAGE_URL"})
			for _, name := range profiles {
				marker := ""
				if name == current {
					marker = "*"
				}
				p, _ := config.LoadProfile(name)
				f.Row(marker, name, orDash(p.BaseURL), orDash(p.PageURL))
			}
			return f.EndTable()
		}),
	}
}

func newProfilesUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Switch the active profile",
		Args:  cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			profiles, err := config.ListProfiles()
			if err != nil {
				return err
			}
			name, err := resolve.Name(args[0], profiles)
			if err != nil {
				return fmt.Errorf("profile %q: %w", args[0], err)
			}
			if _, err := config.LoadProfile(name); err != nil {
				return fmt.Errorf("profile %q: %w", name, err)
			}
			if err := config.SetCurrentProfile(name); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(iocontext.GetIO(cmd.Context()).Out, "Current profile: %s\n", name)
			return nil
		}),
	}
}

func newProfilesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a profile and its stored session",
		Args:    cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			profiles, err := config.ListProfiles()
			if err != nil {
				return err
			}
			if !slices.Contains(profiles, args[0]) {
				if candidates := resolve.Rank(args[0], profiles, 3); len(candidates) > 0 {
					return fmt.Errorf("profile %q: %w (did you mean %s?)", args[0], config.ErrProfileNotFound, strings.Join(candidates, ", "))
				}
				return fmt.Errorf("profile %q: %w", args[0], config.ErrProfileNotFound)
			}
			if err := config.DeleteProfile(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(iocontext.GetIO(cmd.Context()).Out, "Deleted profile %s\n", args[0])
			return nil
		}),
	}
}
