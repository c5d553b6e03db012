package update

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const (
	cacheFileName   = ".update-check"
	pendingFileName = ".update-pending"
	installFileName = ".update-installed"
	cacheDuration   = 10 * time.Minute
)

// CacheEntry stores the last update check result
type CacheEntry struct {
	CheckedAt       time.Time `json:"checked_at"`
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version"`
	UpdateAvailable bool      `json:"update_available"`
	ManifestID      string    `json:"manifest_id,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	ReleaseURL      string    `json:"release_url,omitempty"`
}

// Pending marks an update that is installed on disk but not yet running.
type Pending struct {
	ManifestID string    `json:"manifest_id"`
	Version    string    `json:"version"`
	BinaryPath string    `json:"binary_path"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Installed records the release last written to a binary. Unlike Pending
// it survives the restart, so a binary whose configured version is fixed
// is not reported as outdated once the update runs.
type Installed struct {
	ManifestID      string    `json:"manifest_id"`
	Version         string    `json:"version"`
	PreviousVersion string    `json:"previous_version,omitempty"`
	BinaryPath      string    `json:"binary_path"`
	InstalledAt     time.Time `json:"installed_at"`
}

// GetCachePath returns the path to the cache file
func GetCachePath(homeDir string) string {
	return filepath.Join(homeDir, cacheFileName)
}

// GetPendingPath returns the path to the pending-update marker.
func GetPendingPath(homeDir string) string {
	return filepath.Join(homeDir, pendingFileName)
}

// LoadCache loads the cached update check result
func LoadCache(homeDir string) (*CacheEntry, error) {
	var entry CacheEntry
	if err := readJSON(GetCachePath(homeDir), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// SaveCache saves the update check result
func SaveCache(homeDir string, entry *CacheEntry) error {
	return writeJSON(GetCachePath(homeDir), entry)
}

// IsCacheValid returns true if cache is fresh (< 10m old)
func IsCacheValid(entry *CacheEntry) bool {
	return time.Since(entry.CheckedAt) < cacheDuration
}

// LoadPending returns the pending marker, or nil when none is recorded.
func LoadPending(homeDir string) (*Pending, error) {
	var p Pending
	if err := readJSON(GetPendingPath(homeDir), &p); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func SavePending(homeDir string, p *Pending) error {
	return writeJSON(GetPendingPath(homeDir), p)
}

// ClearPending removes the marker; a missing marker is not an error.
func ClearPending(homeDir string) error {
	err := os.Remove(GetPendingPath(homeDir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// GetInstalledPath returns the path to the install record.
func GetInstalledPath(homeDir string) string {
	return filepath.Join(homeDir, installFileName)
}

// LoadInstalled returns the install record, or nil when none is recorded.
func LoadInstalled(homeDir string) (*Installed, error) {
	var in Installed
	if err := readJSON(GetInstalledPath(homeDir), &in); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return &in, nil
}

func SaveInstalled(homeDir string, in *Installed) error {
	return writeJSON(GetInstalledPath(homeDir), in)
}

// ClearInstalled removes the record; a missing record is not an error.
func ClearInstalled(homeDir string) error {
	err := os.Remove(GetInstalledPath(homeDir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
