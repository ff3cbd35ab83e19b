// Package update checks GitHub for a newer paddock-cli release.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	// DefaultReleasesURL is the latest-release endpoint of the project.
	DefaultReleasesURL = "https://api.github.com/repos/salmonumbrella/paddock-cli/releases/latest"
	CheckTimeout       = 5 * time.Second
	// EnvDisable turns the check off when set to any non-empty value.
	EnvDisable = "PADDOCK_NO_UPDATE_CHECK"
)

// ReleasesURL is the URL to check for releases. Can be overridden in tests.
var ReleasesURL = DefaultReleasesURL

type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

type CheckResult struct {
	CurrentVersion  string `json:"current_version"`
	LatestVersion   string `json:"latest_version"`
	UpdateURL       string `json:"update_url"`
	UpdateAvailable bool   `json:"update_available"`
}

// CheckForUpdate looks up the latest release. It returns nil for dev builds,
// when disabled, or when the lookup fails; it never fails the command.
func CheckForUpdate(ctx context.Context, currentVersion string) *CheckResult {
	if currentVersion == "dev" || currentVersion == "" || os.Getenv(EnvDisable) != "" {
		return nil
	}

	release, err := latestRelease(ctx)
	if err != nil {
		slog.Debug("update check failed", "error", err)
		return nil
	}

	return &CheckResult{
		CurrentVersion:  currentVersion,
		LatestVersion:   strings.TrimPrefix(release.TagName, "v"),
		UpdateURL:       release.HTMLURL,
		UpdateAvailable: Newer(release.TagName, currentVersion),
	}
}

// Newer reports whether candidate is a greater semantic version than
// current. Invalid versions never compare as newer.
func Newer(candidate, current string) bool {
	a, b := normalizeVersion(candidate), normalizeVersion(current)
	if !semver.IsValid(a) || !semver.IsValid(b) {
		return false
	}
	return semver.Compare(a, b) > 0
}

func latestRelease(ctx context.Context) (Release, error) {
	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ReleasesURL, nil)
	if err != nil {
		return Release{}, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Release{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Release{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return Release{}, fmt.Errorf("invalid release payload: %w", err)
	}
	if release.TagName == "" {
		return Release{}, fmt.Errorf("release has no tag")
	}
	return release, nil
}

func normalizeVersion(v string) string {
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
