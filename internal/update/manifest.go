package update

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"
)

// Manifest is the document served by a self-hosted update endpoint.
type Manifest struct {
	ID        string          `json:"id"`
	Version   string          `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Notes     string          `json:"notes"`
	Assets    []ManifestAsset `json:"assets"`
}

type ManifestAsset struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
	OS     string `json:"os"`
	Arch   string `json:"arch"`
}

// ManifestSource polls a manifest URL. The server may answer 204 to say
// there is nothing newer for this client.
type ManifestSource struct {
	URL            string
	Channel        string
	CurrentVersion string
	Client         HTTPDoer
}

func (m *ManifestSource) Name() string { return "manifest:" + m.URL }

func (m *ManifestSource) Latest(ctx context.Context) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return nil, newError(KindBackend, err, "invalid manifest URL")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Update-Platform", runtime.GOOS+"/"+runtime.GOARCH)
	if m.Channel != "" {
		req.Header.Set("X-Update-Channel", m.Channel)
	}
	if m.CurrentVersion != "" {
		req.Header.Set("X-Update-Current-Version", m.CurrentVersion)
	}

	client := m.Client
	if client == nil {
		client = &http.Client{Timeout: httpTimeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, newError(KindNetwork, err, "failed to fetch manifest")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, nil
	default:
		return nil, newError(KindBackend, nil, "manifest server error: %s", resp.Status)
	}

	var manifest Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, newError(KindBackend, err, "failed to parse manifest")
	}
	if manifest.Version == "" {
		return nil, newError(KindBackend, nil, "manifest %q has no version", manifest.ID)
	}
	return manifest.toRelease(), nil
}

func (m Manifest) toRelease() *Release {
	r := &Release{
		TagName:     canonical(m.Version),
		Name:        m.ID,
		Body:        m.Notes,
		PublishedAt: m.CreatedAt,
	}
	for _, a := range m.Assets {
		r.Assets = append(r.Assets, Asset{
			Name:               a.Name,
			BrowserDownloadURL: a.URL,
			Size:               a.Size,
			SHA256:             a.SHA256,
			OS:                 a.OS,
			Arch:               a.Arch,
		})
	}
	return r
}
