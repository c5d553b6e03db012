package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	defaultGitHubAPI = "https://api.github.com"
	httpTimeout      = 30 * time.Second
	userAgent        = "push-updater"

	ChannelStable     = "stable"
	ChannelPrerelease = "prerelease"
)

// Source answers "what is the newest release?". A nil release with a nil
// error means the source has nothing to offer.
type Source interface {
	Latest(ctx context.Context) (*Release, error)
	Name() string
}

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// GitHubSource reads releases from the GitHub REST API.
type GitHubSource struct {
	Owner   string
	Repo    string
	APIBase string // defaults to https://api.github.com
	Channel string // stable or prerelease
	Client  HTTPDoer
}

func (g *GitHubSource) Name() string { return fmt.Sprintf("github:%s/%s", g.Owner, g.Repo) }

func (g *GitHubSource) base() string {
	if g.APIBase == "" {
		return defaultGitHubAPI
	}
	return strings.TrimRight(g.APIBase, "/")
}

func (g *GitHubSource) client() HTTPDoer {
	if g.Client == nil {
		return &http.Client{Timeout: httpTimeout}
	}
	return g.Client
}

// Latest returns the newest release on the configured channel.
func (g *GitHubSource) Latest(ctx context.Context) (*Release, error) {
	if g.Channel == ChannelPrerelease {
		var releases []Release
		url := fmt.Sprintf("%s/repos/%s/%s/releases", g.base(), g.Owner, g.Repo)
		if err := g.getJSON(ctx, url, &releases); err != nil {
			return nil, err
		}
		return newestRelease(releases), nil
	}

	var release Release
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", g.base(), g.Owner, g.Repo)
	if err := g.getJSON(ctx, url, &release); err != nil {
		return nil, err
	}
	return &release, nil
}

func (g *GitHubSource) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return newError(KindBackend, err, "invalid release URL")
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client().Do(req)
	if err != nil {
		return newError(KindNetwork, err, "failed to fetch release")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return newError(KindBackend, nil, "no releases found for %s/%s", g.Owner, g.Repo)
	}
	if resp.StatusCode != http.StatusOK {
		return newError(KindBackend, nil, "GitHub API error: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return newError(KindBackend, err, "failed to parse release")
	}
	return nil
}

// newestRelease picks the highest semver tag among non-draft releases.
func newestRelease(releases []Release) *Release {
	var best *Release
	for i := range releases {
		r := &releases[i]
		if r.Draft || !semver.IsValid(canonical(r.TagName)) {
			continue
		}
		if best == nil || semver.Compare(canonical(r.TagName), canonical(best.TagName)) > 0 {
			best = r
		}
	}
	return best
}

// GetAssetForPlatform finds the artifact for the running OS/arch. Assets
// that declare a platform are matched on it; others by the name pattern
// <binary>_<version>_<os>_<arch>.tar.gz (or .tar.lz4).
func GetAssetForPlatform(release *Release, binaryName string) (*Asset, error) {
	osName := runtime.GOOS
	arch := runtime.GOARCH
	prefix := binaryName + "_"
	platform := fmt.Sprintf("_%s_%s", osName, arch)

	for i := range release.Assets {
		asset := &release.Assets[i]
		if asset.OS != "" || asset.Arch != "" {
			if asset.OS == osName && asset.Arch == arch {
				return asset, nil
			}
			continue
		}
		if !strings.HasPrefix(asset.Name, prefix) {
			continue
		}
		for _, ext := range archiveExts {
			if strings.HasSuffix(asset.Name, platform+ext) {
				return asset, nil
			}
		}
	}

	return nil, newError(KindBackend, nil, "no binary found for %s/%s in release %s", osName, arch, release.TagName)
}

// GetChecksumAsset finds the checksums.txt asset
func GetChecksumAsset(release *Release) (*Asset, error) {
	for i := range release.Assets {
		asset := &release.Assets[i]
		if asset.Name == "checksums.txt" {
			return asset, nil
		}
	}
	return nil, newError(KindIntegrity, nil, "checksums.txt not found in release")
}

// IsNewerVersion returns true if latest is newer than current
func IsNewerVersion(current, latest string) bool {
	current = canonical(current)
	latest = canonical(latest)

	// Builds without a real version always take the published one.
	if !semver.IsValid(current) {
		return true
	}
	if !semver.IsValid(latest) {
		return false
	}

	return semver.Compare(latest, current) > 0
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		return "v" + v
	}
	return v
}
