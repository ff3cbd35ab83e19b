package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salmonumbrella/paddock-cli/internal/config"
)

func TestConfigSet_SavesProfile(t *testing.T) {
	isolateEnv(t)
	useTestKeyring(t)

	_, _, err := runCLI(t, "config", "set", "base_url=https://api.example.com", "api-port=9000", "--profile", "staging")
	require.NoError(t, err)

	p, err := config.LoadProfile("staging")
	require.NoError(t, err)
	assert.Equal(t, config.Profile{BaseURL: "https://api.example.com", APIPort: "9000"}, p)

	current, err := config.CurrentProfile()
	require.NoError(t, err)
	assert.Equal(t, "staging", current)

	// An empty value removes a setting.
	_, _, err = runCLI(t, "config", "set", "api_port=")
	require.NoError(t, err)
	p, err = config.LoadProfile("staging")
	require.NoError(t, err)
	assert.Empty(t, p.APIPort)
	assert.Equal(t, "https://api.example.com", p.BaseURL)
}

func TestConfigSet_Invalid(t *testing.T) {
	isolateEnv(t)
	useTestKeyring(t)

	tests := []struct {
		name string
		arg  string
		want string
	}{
		{"unknown key", "color=blue", "invalid key"},
		{"not key=value", "base_url", "invalid field format"},
		{"bad page url", "page_url=ftp://x", "scheme must be http or https"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, err := runCLI(t, "config", "set", tt.arg)
			require.Error(t, err)
			assert.Contains(t, stderr, tt.want)
		})
	}
	profiles, err := config.ListProfiles()
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestConfigShow_Precedence(t *testing.T) {
	isolateEnv(t)
	useTestKeyring(t)
	require.NoError(t, config.SaveProfile("default", config.Profile{
		BaseURL: "https://profile.example.com",
		PageURL: "https://admin.example.com/",
	}))
	t.Setenv(config.EnvBaseURL, "https://env.example.com/api/")

	stdout, _, err := runCLI(t, "config", "show", "-o", "json")
	require.NoError(t, err)
	var got effectiveSettings
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "default", got.Profile)
	assert.Equal(t, "https://env.example.com/api/", got.BaseURL)
	assert.Equal(t, "https://env.example.com/api", got.Origin)
	assert.Equal(t, "https://admin.example.com/", got.PageURL)
	assert.Equal(t, "30s", got.Timeout)

	stdout, _, err = runCLI(t, "config", "show", "-o", "json", "--base-url", "/backend", "--timeout", "5s")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "https://admin.example.com/backend", got.Origin)
	assert.Equal(t, "5s", got.Timeout)
}

func TestConfigProfiles_ListUseDelete(t *testing.T) {
	isolateEnv(t)
	useTestKeyring(t)
	require.NoError(t, config.SaveProfile("dev", config.Profile{PageURL: "http://localhost:3000/"}))
	require.NoError(t, config.SaveProfile("prod", config.Profile{BaseURL: "https://api.example.com"}))

	stdout, _, err := runCLI(t, "config", "profiles", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "dev")
	assert.Contains(t, stdout, "https://api.example.com")

	_, _, err = runCLI(t, "config", "profiles", "use", "dev")
	require.NoError(t, err)
	current, err := config.CurrentProfile()
	require.NoError(t, err)
	assert.Equal(t, "dev", current)

	_, _, err = runCLI(t, "config", "profiles", "use", "missing")
	require.Error(t, err)

	_, _, err = runCLI(t, "config", "profiles", "delete", "dev")
	require.NoError(t, err)
	profiles, err := config.ListProfiles()
	require.NoError(t, err)
	assert.Equal(t, []string{"prod"}, profiles)
}

func TestConfigProfiles_FuzzyNames(t *testing.T) {
	isolateEnv(t)
	useTestKeyring(t)
	require.NoError(t, config.SaveProfile("staging", config.Profile{BaseURL: "https://staging.example.com"}))
	require.NoError(t, config.SaveProfile("production", config.Profile{BaseURL: "https://api.example.com"}))

	stdout, _, err := runCLI(t, "config", "profiles", "use", "stg")
	require.NoError(t, err)
	assert.Equal(t, "Current profile: staging\n", stdout)

	_, stderr, err := runCLI(t, "config", "profiles", "delete", "stag")
	require.Error(t, err)
	assert.Contains(t, stderr, "did you mean staging?")
	profiles, err := config.ListProfiles()
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}

func TestSetProfileValue(t *testing.T) {
	var p config.Profile
	require.NoError(t, setProfileValue(&p, "Page-URL", "http://localhost:3000/horses"))
	require.NoError(t, setProfileValue(&p, "page_url", ""))
	assert.Empty(t, p.PageURL)
	assert.Error(t, setProfileValue(&p, "token", "x"))
}
