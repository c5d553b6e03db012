package update

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/pushchain/push-updater/internal/checker"
)

// Release is one published version of the application, from either a
// GitHub release or an update manifest.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"` // release notes, markdown
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
	HTMLURL     string    `json:"html_url"`
	Assets      []Asset   `json:"assets"`
}

// Version returns the tag without its "v" prefix.
func (r *Release) Version() string { return strings.TrimPrefix(r.TagName, "v") }

// Asset is a downloadable release artifact.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
	ContentType        string `json:"content_type"`
	// Manifest sources carry the digest and platform inline.
	SHA256 string `json:"sha256,omitempty"`
	OS     string `json:"os,omitempty"`
	Arch   string `json:"arch,omitempty"`
}

// CheckResult holds the result of an update check
type CheckResult struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateAvailable bool
	Release         *Release
	Asset           *Asset
	Ref             *checker.ManifestRef
}

// RefFor fingerprints a release artifact so a staged download can be
// recognised on the next check.
func RefFor(release *Release, asset *Asset) *checker.ManifestRef {
	key := release.TagName
	if asset != nil {
		key = fmt.Sprintf("%s|%s|%s|%s", release.TagName, asset.Name, asset.BrowserDownloadURL, asset.SHA256)
	}
	return &checker.ManifestRef{
		ID:      fmt.Sprintf("%016x", xxhash.Sum64String(key)),
		Version: release.Version(),
	}
}
