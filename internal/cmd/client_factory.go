package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/paddock-cli/internal/api"
	"github.com/salmonumbrella/paddock-cli/internal/config"
	"github.com/salmonumbrella/paddock-cli/internal/host"
	"github.com/salmonumbrella/paddock-cli/internal/iocontext"
	"github.com/salmonumbrella/paddock-cli/internal/origin"
)

// clientFactory builds API clients from the resolved settings and carries
// the profile's session cookies between invocations.
type clientFactory struct {
	settings  config.Settings
	userAgent string
	errOut    io.Writer
}

func newClientFactory(cmd *cobra.Command) (*clientFactory, error) {
	settings, err := config.Resolve(flags.overrides(cmd))
	if err != nil {
		return nil, err
	}
	return &clientFactory{
		settings:  settings,
		userAgent: fmt.Sprintf("paddock-cli/%s", version),
		errOut:    iocontext.GetIO(cmd.Context()).ErrOut,
	}, nil
}

func (f *clientFactory) originConfig() origin.Config {
	return origin.Config{BaseURL: f.settings.BaseURL, APIPort: f.settings.APIPort}
}

// hostContext returns the page the CLI acts for, or a headless context.
func (f *clientFactory) hostContext() (host.Context, error) {
	if f.settings.Headless {
		return host.Headless{}, nil
	}
	page, err := host.ParsePage(f.settings.PageURL, func(path string) {
		_, _ = fmt.Fprintf(f.errOut, "Session expired (redirected to %s). Run 'paddock login' to sign in again.\n", path)
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (f *clientFactory) newClient() (*api.Client, error) {
	h, err := f.hostContext()
	if err != nil {
		return nil, err
	}
	client := api.New(f.originConfig(), api.NewSession(h))
	if f.settings.Timeout > 0 {
		client.HTTP.Timeout = f.settings.Timeout
	}
	client.UserAgent = f.userAgent
	return client, nil
}

// restoreSession loads the profile's stored cookies into the client jar. An
// unreadable session is logged and ignored so that login can replace it.
func (f *clientFactory) restoreSession(client *api.Client) error {
	data, err := config.LoadSession(f.settings.Profile)
	if errors.Is(err, config.ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	var saved []api.SavedCookie
	if err := json.Unmarshal(data, &saved); err != nil {
		slog.Warn("ignoring unreadable stored session", "profile", f.settings.Profile, "error", err)
		return nil
	}
	if err := client.Jar.Restore(saved); err != nil {
		slog.Warn("stored session partially restored", "profile", f.settings.Profile, "error", err)
	}
	return nil
}

// saveSession persists the client's cookies, or clears the stored session
// when the jar is empty.
func (f *clientFactory) saveSession(client *api.Client) error {
	saved := client.Jar.Snapshot()
	if len(saved) == 0 {
		return config.ClearSession(f.settings.Profile)
	}
	data, err := json.Marshal(saved)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return config.SaveSession(f.settings.Profile, data)
}

// withClient runs fn with a client carrying the stored session and saves
// the session afterwards, also when fn fails, since renewal may have
// rotated cookies.
func withClient(cmd *cobra.Command, fn func(client *api.Client) error) error {
	factory, err := newClientFactory(cmd)
	if err != nil {
		return err
	}
	client, err := factory.newClient()
	if err != nil {
		return err
	}
	if err := factory.restoreSession(client); err != nil {
		return err
	}
	runErr := fn(client)
	if err := factory.saveSession(client); err != nil {
		if runErr != nil {
			slog.Warn("failed to save session", "error", err)
			return runErr
		}
		return err
	}
	return runErr
}
