package update

import (
	"context"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/pushchain/push-updater/internal/checker"
)

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Source         Source
	Updater        *Updater
	Reloader       Reloader
	HomeDir        string
	CurrentVersion string
	SkipVerify     bool
	Progress       ProgressFunc
	Logger         *log.Logger
}

// Service is the checker.UpdateService backed by a release Source. It
// remembers the release found by the last check so FetchUpdate knows what
// to download.
type Service struct {
	opts ServiceOptions
	log  *log.Logger

	mu     sync.Mutex
	latest *CheckResult
}

var _ checker.UpdateService = (*Service)(nil)

func NewService(opts ServiceOptions) *Service {
	lg := opts.Logger
	if lg == nil {
		lg = log.New(io.Discard, "", 0)
	}
	return &Service{opts: opts, log: lg}
}

// Check queries the source and records the result in the cache.
func (s *Service) Check(ctx context.Context) (*CheckResult, error) {
	release, err := s.opts.Source.Latest(ctx)
	if err != nil {
		return nil, err
	}

	current := s.currentVersion()
	result := &CheckResult{CurrentVersion: trimV(current)}
	if release != nil {
		result.Release = release
		result.LatestVersion = release.Version()
		if IsNewerVersion(current, release.TagName) {
			asset, err := GetAssetForPlatform(release, s.opts.Updater.BinaryName)
			if err != nil {
				return nil, err
			}
			result.UpdateAvailable = true
			result.Asset = asset
			result.Ref = RefFor(release, asset)
		}
	}

	entry := &CacheEntry{
		CheckedAt:       time.Now(),
		CurrentVersion:  result.CurrentVersion,
		LatestVersion:   result.LatestVersion,
		UpdateAvailable: result.UpdateAvailable,
	}
	if release != nil {
		entry.Notes = release.Body
		entry.ReleaseURL = release.HTMLURL
	}
	if result.Ref != nil {
		entry.ManifestID = result.Ref.ID
	}
	if err := SaveCache(s.opts.HomeDir, entry); err != nil {
		s.log.Printf("update: failed to write check cache: %v", err)
	}

	s.mu.Lock()
	s.latest = result
	s.mu.Unlock()
	return result, nil
}

// currentVersion is the configured version, or the version last installed
// into this binary when that is newer.
func (s *Service) currentVersion() string {
	current := s.opts.CurrentVersion
	in, err := LoadInstalled(s.opts.HomeDir)
	if err != nil {
		s.log.Printf("update: install record unreadable: %v", err)
		return current
	}
	if in != nil && in.BinaryPath == s.opts.Updater.BinaryPath && IsNewerVersion(current, in.Version) {
		return in.Version
	}
	return current
}

// CheckForUpdate implements checker.UpdateService.
func (s *Service) CheckForUpdate(ctx context.Context) (checker.Availability, error) {
	result, err := s.Check(ctx)
	if err != nil {
		return checker.Availability{}, err
	}
	return checker.Availability{IsAvailable: result.UpdateAvailable, Manifest: result.Ref}, nil
}

// FetchUpdate downloads, verifies and installs the release found by the
// last check. A failure before the final rename leaves the installed
// binary untouched.
func (s *Service) FetchUpdate(ctx context.Context) error {
	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()
	if latest == nil || !latest.UpdateAvailable {
		return newError(KindPrecondition, nil, "no update available to fetch")
	}

	u := s.opts.Updater
	if s.alreadyInstalled(latest.Ref.ID) {
		s.log.Printf("update: v%s already installed at %s, skipping download", latest.LatestVersion, u.BinaryPath)
		return nil
	}

	asset := latest.Asset
	// archive in memory, extracted binary and the backup copy
	if err := u.EnsureFreeSpace(asset.Size * 3); err != nil {
		return err
	}

	s.log.Printf("update: downloading %s", asset.Name)
	data, err := u.Download(ctx, asset, s.opts.Progress)
	if err != nil {
		return err
	}

	if s.opts.SkipVerify {
		s.log.Printf("update: skipping checksum verification")
	} else if err := u.VerifyChecksum(ctx, data, latest.Release, asset); err != nil {
		return err
	}

	binary, err := u.ExtractBinary(data, asset.Name)
	if err != nil {
		return err
	}
	if err := u.Install(binary); err != nil {
		return err
	}
	s.log.Printf("update: installed v%s at %s", latest.LatestVersion, u.BinaryPath)

	now := time.Now()
	if err := SaveInstalled(s.opts.HomeDir, &Installed{
		ManifestID:      latest.Ref.ID,
		Version:         latest.LatestVersion,
		PreviousVersion: latest.CurrentVersion,
		BinaryPath:      u.BinaryPath,
		InstalledAt:     now,
	}); err != nil {
		s.log.Printf("update: failed to record installed version: %v", err)
	}
	if err := SavePending(s.opts.HomeDir, &Pending{
		ManifestID: latest.Ref.ID,
		Version:    latest.LatestVersion,
		BinaryPath: u.BinaryPath,
		FetchedAt:  now,
	}); err != nil {
		s.log.Printf("update: failed to record pending update: %v", err)
	}
	return nil
}

// alreadyInstalled reports whether the binary on disk already holds the
// release identified by id, either pending a restart or running.
func (s *Service) alreadyInstalled(id string) bool {
	u := s.opts.Updater
	if !fileExists(u.BinaryPath) {
		return false
	}
	if p, err := LoadPending(s.opts.HomeDir); err == nil && p != nil && p.ManifestID == id && p.BinaryPath == u.BinaryPath {
		return true
	}
	in, err := LoadInstalled(s.opts.HomeDir)
	return err == nil && in != nil && in.ManifestID == id && in.BinaryPath == u.BinaryPath
}

// Reload restarts onto the installed binary.
func (s *Service) Reload(ctx context.Context) error {
	if s.opts.Reloader == nil {
		return newError(KindPrecondition, nil, "no reloader configured")
	}
	// An exec reload never comes back, so the marker goes first and is
	// put back if the reload fails.
	pending, err := LoadPending(s.opts.HomeDir)
	if err != nil {
		s.log.Printf("update: pending marker unreadable: %v", err)
	}
	if err := ClearPending(s.opts.HomeDir); err != nil {
		s.log.Printf("update: failed to clear pending marker: %v", err)
	}
	s.log.Printf("update: reloading %s", s.opts.Updater.BinaryPath)
	if err := s.opts.Reloader.Reload(ctx, s.opts.Updater.BinaryPath); err != nil {
		if pending != nil {
			if serr := SavePending(s.opts.HomeDir, pending); serr != nil {
				s.log.Printf("update: failed to restore pending marker: %v", serr)
			}
		}
		return err
	}
	return nil
}

// Rollback restores the binary that the last install replaced.
func (s *Service) Rollback() error {
	if err := s.opts.Updater.Rollback(); err != nil {
		return err
	}
	in, err := LoadInstalled(s.opts.HomeDir)
	switch {
	case err != nil || in == nil || in.PreviousVersion == "":
		err = ClearInstalled(s.opts.HomeDir)
	default:
		err = SaveInstalled(s.opts.HomeDir, &Installed{
			Version:     in.PreviousVersion,
			BinaryPath:  in.BinaryPath,
			InstalledAt: time.Now(),
		})
	}
	if err != nil {
		s.log.Printf("update: failed to update install record: %v", err)
	}
	return ClearPending(s.opts.HomeDir)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func trimV(v string) string {
	if len(v) > 0 && v[0] == 'v' {
		return v[1:]
	}
	return v
}
