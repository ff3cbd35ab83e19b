package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Environment variables read by Resolve.
const (
	EnvBaseURL        = "PADDOCK_API_BASE_URL"
	EnvBackendURL     = "PADDOCK_BACKEND_URL"
	EnvGenericBaseURL = "API_BASE_URL"
	EnvAPIPort        = "PADDOCK_API_PORT"
	EnvPageURL        = "PADDOCK_PAGE_URL"
	EnvProfile        = "PADDOCK_PROFILE"
	EnvOutput         = "PADDOCK_OUTPUT"
	EnvTimeout        = "PADDOCK_TIMEOUT"
	EnvHeadless       = "PADDOCK_HEADLESS"
)

const (
	// DefaultPageURL stands in for the admin frontend the CLI acts on behalf of.
	DefaultPageURL = "http://localhost:3000/"
	DefaultTimeout = 30 * time.Second
)

// Overrides are values given on the command line. Empty fields are unset.
type Overrides struct {
	Profile  string
	BaseURL  string
	APIPort  string
	PageURL  string
	Output   string
	Timeout  time.Duration
	Headless *bool
}

// Settings are the effective client settings.
type Settings struct {
	Profile  string
	BaseURL  string
	APIPort  string
	PageURL  string
	Output   string
	Timeout  time.Duration
	Headless bool
}

// Resolve merges the stored profile, the environment and the overrides, in
// increasing order of precedence. A profile that was never saved is not an
// error; a keyring that cannot be opened is.
func Resolve(o Overrides) (Settings, error) {
	s := Settings{
		PageURL: DefaultPageURL,
		Output:  "text",
		Timeout: DefaultTimeout,
	}

	s.Profile = firstNonBlank(o.Profile, firstNonBlankEnv(EnvProfile))
	if s.Profile == "" {
		current, err := CurrentProfile()
		if err != nil {
			return Settings{}, err
		}
		s.Profile = current
	}

	profile, err := LoadProfile(s.Profile)
	if err != nil && !errors.Is(err, ErrProfileNotFound) {
		return Settings{}, err
	}
	s.apply(profile.BaseURL, profile.APIPort, profile.PageURL)

	s.apply(
		firstNonBlankEnv(EnvBaseURL, EnvBackendURL, EnvGenericBaseURL),
		firstNonBlankEnv(EnvAPIPort),
		firstNonBlankEnv(EnvPageURL),
	)
	if v := firstNonBlankEnv(EnvOutput); v != "" {
		s.Output = v
	}
	if v := firstNonBlankEnv(EnvTimeout); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		s.Timeout = d
	}
	if v := firstNonBlankEnv(EnvHeadless); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid %s: must be true or false", EnvHeadless)
		}
		s.Headless = b
	}

	s.apply(o.BaseURL, o.APIPort, o.PageURL)
	if o.Output != "" {
		s.Output = o.Output
	}
	if o.Timeout > 0 {
		s.Timeout = o.Timeout
	}
	if o.Headless != nil {
		s.Headless = *o.Headless
	}

	return s, nil
}

func (s *Settings) apply(baseURL, apiPort, pageURL string) {
	if v := strings.TrimSpace(baseURL); v != "" {
		s.BaseURL = v
	}
	if v := strings.TrimSpace(apiPort); v != "" {
		s.APIPort = v
	}
	if v := strings.TrimSpace(pageURL); v != "" {
		s.PageURL = v
	}
}

// parseTimeout accepts a Go duration or a whole number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, errors.New("must be positive")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.New("must be a duration like 30s or a number of seconds")
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
