package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/salmonumbrella/paddock-cli/internal/config"
	"github.com/salmonumbrella/paddock-cli/internal/debug"
	"github.com/salmonumbrella/paddock-cli/internal/dryrun"
	"github.com/salmonumbrella/paddock-cli/internal/iocontext"
	"github.com/salmonumbrella/paddock-cli/internal/outfmt"
)

// rootFlags holds global CLI flags
type rootFlags struct {
	Output   string
	Debug    bool
	JQ       string
	Timeout  time.Duration
	Profile  string
	BaseURL  string
	APIPort  string
	PageURL  string
	Headless bool
	DryRun   bool
}

// flags holds the global command flags. It is reset at the start of every
// Execute call; reading it outside a command's RunE sees the previous run.
var flags = rootFlags{Output: defaultOutput()}

func defaultOutput() string {
	if value := strings.TrimSpace(os.Getenv(config.EnvOutput)); value != "" {
		return value
	}
	return "text"
}

// overrides returns the flag values that take precedence over profile and
// environment settings.
func (f rootFlags) overrides(cmd *cobra.Command) config.Overrides {
	o := config.Overrides{
		Profile: f.Profile,
		BaseURL: f.BaseURL,
		APIPort: f.APIPort,
		PageURL: f.PageURL,
		Output:  f.Output,
		Timeout: f.Timeout,
	}
	if cmd != nil && flagOrAliasChanged(cmd, "headless") {
		headless := f.Headless
		o.Headless = &headless
	}
	return o
}

// loadDotEnv loads .env from the working directory. Variables already set
// in the environment win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	_ = godotenv.Load(".env")
}

// Execute runs the root command
func Execute(ctx context.Context, args []string) error {
	loadDotEnv()

	flags = rootFlags{Output: defaultOutput()}

	root := &cobra.Command{
		Use:                "paddock",
		Short:              "Command-line client for the paddock admin backend",
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableSuggestions: true, // We provide our own did-you-mean via enhanceUnknownError
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if flagOrAliasChanged(cmd, "timeout") && flags.Timeout <= 0 {
				return fmt.Errorf("--timeout must be positive")
			}

			mode, err := outfmt.Parse(strings.TrimSpace(flags.Output))
			if err != nil {
				return err
			}
			if flags.JQ != "" && mode != outfmt.JSON {
				if flagOrAliasChanged(cmd, "output") {
					return fmt.Errorf("--jq requires --output json")
				}
				mode = outfmt.JSON
			}
			ctx = outfmt.WithMode(ctx, mode)
			if flags.JQ != "" {
				ctx = outfmt.WithQuery(ctx, flags.JQ)
			}

			ioStreams := iocontext.DefaultIO()
			ctx = iocontext.WithIO(ctx, ioStreams)
			cmd.SetOut(ioStreams.Out)
			cmd.SetErr(ioStreams.ErrOut)

			debug.SetupLogger(flags.Debug)
			ctx = debug.WithDebug(ctx, flags.Debug)
			ctx = dryrun.WithDryRun(ctx, flags.DryRun)

			cmd.SetContext(ctx)
			return nil
		},
	}

	root.SetContext(ctx)
	root.SetArgs(args)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.Output, "output", "o", flags.Output, "Output format: text|json (env PADDOCK_OUTPUT)")
	pf.StringVar(&flags.JQ, "jq", "", "JQ expression to filter JSON output (implies --output json)")
	pf.BoolVar(&flags.Debug, "debug", false, "Enable debug logging")
	pf.DurationVar(&flags.Timeout, "timeout", 0, "HTTP request timeout, e.g. 30s (env PADDOCK_TIMEOUT)")
	pf.StringVar(&flags.Profile, "profile", "", "Profile to use (env PADDOCK_PROFILE)")
	pf.StringVar(&flags.BaseURL, "base-url", "", "Backend base URL (env PADDOCK_API_BASE_URL)")
	pf.StringVar(&flags.APIPort, "api-port", "", "Backend port when deriving the origin from the page URL (env PADDOCK_API_PORT)")
	pf.StringVar(&flags.PageURL, "page-url", "", "Page location the CLI acts for (env PADDOCK_PAGE_URL)")
	pf.BoolVar(&flags.Headless, "headless", false, "Run without a page: no session renewal, no cookies (env PADDOCK_HEADLESS)")
	pf.BoolVar(&flags.DryRun, "dry-run", false, "Preview requests without sending them")

	flagAlias(pf, "output", "out")
	flagAlias(pf, "debug", "dbg")
	flagAlias(pf, "timeout", "to")
	flagAlias(pf, "base-url", "url")
	flagAlias(pf, "dry-run", "dr")

	root.AddCommand(newRequestCmd())
	root.AddCommand(newGetCmd())
	root.AddCommand(newUploadCmd())
	root.AddCommand(newLoginCmd())
	root.AddCommand(newLogoutCmd())
	root.AddCommand(newWhoamiCmd())
	root.AddCommand(newOriginCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	targetCmd, err := root.ExecuteC()
	if err != nil {
		if !errors.Is(err, errAlreadyHandled) {
			enhanced := enhanceUnknownError(err, root, targetCmd)
			_, _ = fmt.Fprintln(root.ErrOrStderr(), enhanced) //nolint:errcheck
		}
		return err
	}
	return nil
}

// enhanceUnknownError adds "did you mean?" suggestions to unknown command/flag errors.
// targetCmd is the command Cobra resolved before the error (may be root itself).
func enhanceUnknownError(err error, root *cobra.Command, targetCmd *cobra.Command) string {
	msg := err.Error()

	if strings.Contains(msg, "unknown command") {
		if unknown := extractQuoted(msg); unknown != "" {
			var names []string
			for _, c := range root.Commands() {
				if c.IsAvailableCommand() || c.Name() == "help" {
					names = append(names, c.Name())
					names = append(names, c.Aliases...)
				}
			}
			if suggestion := suggestCommand(unknown, names); suggestion != "" {
				return fmt.Sprintf("%s\n\nDid you mean %q?", msg, suggestion)
			}
		}
	}

	if strings.Contains(msg, "unknown flag") || strings.Contains(msg, "unknown shorthand flag") {
		unknown := extractFlag(msg)
		if unknown == "" {
			return msg
		}
		seen := make(map[string]bool)
		var flagNames []string
		addFlags := func(fs *pflag.FlagSet) {
			fs.VisitAll(func(f *pflag.Flag) {
				if f.Hidden {
					return
				}
				for _, name := range []string{"--" + f.Name, shorthandName(f)} {
					if name != "" && !seen[name] {
						seen[name] = true
						flagNames = append(flagNames, name)
					}
				}
			})
		}
		target := root
		if targetCmd != nil {
			target = targetCmd
		}
		addFlags(target.Flags())
		addFlags(target.InheritedFlags())

		helpCmd := strings.TrimSpace(target.CommandPath()) + " --help"
		if suggestion := suggestFlag(unknown, flagNames); suggestion != "" {
			return fmt.Sprintf("%s\n\nDid you mean %q?\nRun %q to see supported flags.", msg, suggestion, helpCmd)
		}
		return fmt.Sprintf("%s\n\nRun %q to see supported flags.", msg, helpCmd)
	}

	return msg
}

func shorthandName(f *pflag.Flag) string {
	if f.Shorthand == "" {
		return ""
	}
	return "-" + f.Shorthand
}

// extractQuoted extracts the first double-quoted substring from s.
func extractQuoted(s string) string {
	start := strings.IndexByte(s, '"')
	if start < 0 {
		return ""
	}
	end := strings.IndexByte(s[start+1:], '"')
	if end < 0 {
		return ""
	}
	return s[start+1 : start+1+end]
}

// extractFlag extracts a flag name (e.g., "--foo") from an error message.
func extractFlag(s string) string {
	idx := strings.Index(s, "--")
	if idx < 0 {
		// Shorthand errors look like "unknown shorthand flag: 'a' in -a".
		idx = strings.LastIndex(s, " -")
		if idx < 0 {
			return ""
		}
		rest := strings.TrimSpace(s[idx+1:])
		if end := strings.IndexByte(rest, ' '); end >= 0 {
			rest = rest[:end]
		}
		rest = strings.TrimRight(rest, ".,;:!?\"'")
		if strings.HasPrefix(rest, "-") && len(rest) > 1 {
			return rest
		}
		return ""
	}
	rest := s[idx:]
	end := strings.IndexByte(rest, ' ')
	if end < 0 {
		end = len(rest)
	}
	return strings.TrimRight(rest[:end], ".,;:!?\"'")
}
