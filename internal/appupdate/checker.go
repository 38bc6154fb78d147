// Package appupdate compares the running build against the latest published
// release.
package appupdate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/janekbaraniewski/spendboard/internal/providers/shared"
)

const (
	DefaultLatestReleaseURL = "https://api.github.com/repos/janekbaraniewski/spendboard/releases/latest"
	defaultRequestTimeout   = 3 * time.Second
)

type Result struct {
	UpdateAvailable bool
	CurrentVersion  string
	LatestVersion   string
}

// Check fetches the latest release tag. Development builds (no stable semver
// version) are never reported as outdated and skip the request.
func Check(ctx context.Context, client *shared.Client, currentVersion, latestURL string) (Result, error) {
	current := normalizeReleaseVersion(currentVersion)
	res := Result{CurrentVersion: current}
	if current == "" {
		return res, nil
	}
	if strings.TrimSpace(latestURL) == "" {
		latestURL = DefaultLatestReleaseURL
	}

	probe := &shared.Client{Timeout: defaultRequestTimeout}
	if client != nil {
		probe.HTTP = client.HTTP
	}

	var payload struct {
		TagName string `json:"tag_name"`
	}
	if err := probe.GetJSON(ctx, latestURL, "", "", &payload); err != nil {
		return res, fmt.Errorf("fetch latest release: %w", err)
	}

	latest := normalizeReleaseVersion(payload.TagName)
	if latest == "" {
		return res, fmt.Errorf("latest release tag is not a stable semver: %q", payload.TagName)
	}
	res.LatestVersion = latest
	res.UpdateAvailable = semver.Compare(latest, current) > 0
	return res, nil
}

// normalizeReleaseVersion returns "vX.Y.Z" for stable versions and "" for
// anything else, including prereleases.
func normalizeReleaseVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) || semver.Prerelease(v) != "" {
		return ""
	}
	return semver.Canonical(v)
}
