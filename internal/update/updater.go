package update

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
	"github.com/shirou/gopsutil/v3/disk"
)

var archiveExts = []string{".tar.gz", ".tgz", ".tar.lz4"}

// Updater downloads, verifies and installs a single application binary.
type Updater struct {
	BinaryPath string // installed binary, symlinks resolved
	BinaryName string // file name looked up inside archives
	Client     HTTPDoer

	// freeSpace is swapped in tests.
	freeSpace func(dir string) (uint64, error)
}

// NewUpdater targets binaryPath, or the running executable when empty.
func NewUpdater(binaryPath, binaryName string) (*Updater, error) {
	if binaryPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %w", err)
		}
		binaryPath = execPath
	}

	realPath, err := filepath.EvalSymlinks(binaryPath)
	if err != nil {
		realPath = binaryPath
	}
	if binaryName == "" {
		binaryName = filepath.Base(realPath)
	}

	return &Updater{
		BinaryPath: realPath,
		BinaryName: binaryName,
		Client:     &http.Client{Timeout: httpTimeout},
	}, nil
}

func (u *Updater) client() HTTPDoer {
	if u.Client == nil {
		return &http.Client{Timeout: httpTimeout}
	}
	return u.Client
}

// ProgressFunc is called during download with bytes downloaded and total size
type ProgressFunc func(downloaded, total int64)

// Download fetches the asset into memory.
func (u *Updater) Download(ctx context.Context, asset *Asset, progress ProgressFunc) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.BrowserDownloadURL, nil)
	if err != nil {
		return nil, newError(KindBackend, err, "invalid download URL")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := u.client().Do(req)
	if err != nil {
		return nil, newError(KindNetwork, err, "failed to download")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, newError(KindBackend, nil, "download failed: %s", resp.Status)
	}

	var reader io.Reader = resp.Body
	if progress != nil {
		total := resp.ContentLength
		if total <= 0 {
			total = asset.Size
		}
		reader = &progressReader{
			reader:   resp.Body,
			total:    total,
			progress: progress,
		}
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, newError(KindNetwork, err, "failed to read download")
	}

	return data, nil
}

// progressReader wraps a reader to report progress
type progressReader struct {
	reader     io.Reader
	total      int64
	downloaded int64
	progress   ProgressFunc
}

// Read reports after every chunk. When the size was unknown, the final
// report at EOF uses the byte count as the total.
func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.downloaded += int64(n)
	if err == io.EOF && pr.total <= 0 {
		pr.total = pr.downloaded
	}
	if pr.progress != nil {
		pr.progress(pr.downloaded, pr.total)
	}
	return n, err
}

// VerifyChecksum checks data against the asset's inline sha256, falling
// back to the release's checksums.txt.
func (u *Updater) VerifyChecksum(ctx context.Context, data []byte, release *Release, asset *Asset) error {
	expectedHash := strings.ToLower(asset.SHA256)
	if expectedHash == "" {
		var err error
		expectedHash, err = u.lookupChecksum(ctx, release, asset.Name)
		if err != nil {
			return err
		}
	}

	hash := sha256.Sum256(data)
	actualHash := hex.EncodeToString(hash[:])

	if actualHash != expectedHash {
		return newError(KindIntegrity, nil, "checksum mismatch: expected %s, got %s", expectedHash, actualHash)
	}

	return nil
}

func (u *Updater) lookupChecksum(ctx context.Context, release *Release, assetName string) (string, error) {
	checksumAsset, err := GetChecksumAsset(release)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checksumAsset.BrowserDownloadURL, nil)
	if err != nil {
		return "", newError(KindBackend, err, "invalid checksums URL")
	}
	resp, err := u.client().Do(req)
	if err != nil {
		return "", newError(KindNetwork, err, "failed to download checksums")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", newError(KindBackend, nil, "checksums download failed: %s", resp.Status)
	}

	// checksums.txt lines look like "sha256  filename"
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) == 2 && parts[1] == assetName {
			return strings.ToLower(parts[0]), nil
		}
	}

	return "", newError(KindIntegrity, nil, "checksum not found for %s", assetName)
}

// ExtractBinary pulls the binary out of a tar.gz or tar.lz4 archive. Any
// other asset is taken to be the binary itself.
func (u *Updater) ExtractBinary(archiveData []byte, assetName string) ([]byte, error) {
	var stream io.Reader
	switch {
	case strings.HasSuffix(assetName, ".tar.gz"), strings.HasSuffix(assetName, ".tgz"):
		gzReader, err := gzip.NewReader(bytes.NewReader(archiveData))
		if err != nil {
			return nil, newError(KindIntegrity, err, "failed to create gzip reader")
		}
		defer func() { _ = gzReader.Close() }()
		stream = gzReader
	case strings.HasSuffix(assetName, ".tar.lz4"):
		stream = lz4.NewReader(bytes.NewReader(archiveData))
	default:
		if len(archiveData) == 0 {
			return nil, newError(KindIntegrity, nil, "downloaded binary is empty")
		}
		return archiveData, nil
	}

	tarReader := tar.NewReader(stream)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, newError(KindIntegrity, err, "failed to read tar")
		}

		if header.Typeflag == tar.TypeReg &&
			(header.Name == u.BinaryName || strings.HasSuffix(header.Name, "/"+u.BinaryName)) {
			data, err := io.ReadAll(tarReader)
			if err != nil {
				return nil, newError(KindIntegrity, err, "failed to read binary")
			}
			return data, nil
		}
	}

	return nil, newError(KindIntegrity, nil, "binary %s not found in archive", u.BinaryName)
}

// EnsureFreeSpace fails with a storage error when the binary's directory
// has less than need bytes available.
func (u *Updater) EnsureFreeSpace(need int64) error {
	if need <= 0 {
		return nil
	}
	dir := filepath.Dir(u.BinaryPath)
	avail, err := u.FreeSpace()
	if err != nil {
		// free space unknown: let the install try
		return nil
	}
	if avail < uint64(need) {
		return newError(KindStorage, nil, "not enough disk space in %s: need %d bytes, have %d", dir, need, avail)
	}
	return nil
}

// FreeSpace reports the bytes available next to the installed binary.
func (u *Updater) FreeSpace() (uint64, error) {
	free := u.freeSpace
	if free == nil {
		free = diskFree
	}
	return free(filepath.Dir(u.BinaryPath))
}

func diskFree(dir string) (uint64, error) {
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// BackupPath is where Install keeps the previous binary.
func (u *Updater) BackupPath() string { return u.BinaryPath + ".backup" }

// Install atomically replaces the binary, keeping the previous one at
// BackupPath. Installing the bytes already on disk is a no-op and leaves
// the backup alone.
func (u *Updater) Install(binaryData []byte) error {
	info, err := os.Stat(u.BinaryPath)
	if err != nil {
		return newError(KindStorage, err, "failed to stat current binary")
	}
	mode := info.Mode()

	//nolint:gosec // G304: path is the managed binary
	current, err := os.ReadFile(u.BinaryPath)
	if err != nil {
		return newError(KindStorage, err, "failed to read current binary")
	}
	if bytes.Equal(current, binaryData) {
		return nil
	}

	if err := copyFile(u.BinaryPath, u.BackupPath()); err != nil {
		return newError(KindStorage, err, "failed to create backup")
	}
	if err := os.Chmod(u.BackupPath(), mode); err != nil {
		return newError(KindStorage, err, "failed to set backup permissions")
	}

	// Temp file in the same directory so the rename stays atomic.
	dir := filepath.Dir(u.BinaryPath)
	tempFile, err := os.CreateTemp(dir, u.BinaryName+"-update-*")
	if err != nil {
		return newError(KindStorage, err, "failed to create temp file")
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(binaryData); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempPath)
		return newError(KindStorage, err, "failed to write new binary")
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempPath)
		return newError(KindStorage, err, "failed to write new binary")
	}

	if err := os.Chmod(tempPath, mode); err != nil {
		_ = os.Remove(tempPath)
		return newError(KindStorage, err, "failed to set permissions")
	}

	if err := os.Rename(tempPath, u.BinaryPath); err != nil {
		_ = os.Remove(tempPath)
		return newError(KindStorage, err, "failed to install binary")
	}

	return nil
}

// HasBackup reports whether a previous binary is available for Rollback.
func (u *Updater) HasBackup() bool {
	_, err := os.Stat(u.BackupPath())
	return err == nil
}

// Rollback restores the backup
func (u *Updater) Rollback() error {
	if !u.HasBackup() {
		return newError(KindPrecondition, nil, "no backup found at %s", u.BackupPath())
	}
	if err := os.Rename(u.BackupPath(), u.BinaryPath); err != nil {
		return newError(KindStorage, err, "failed to restore backup")
	}
	return nil
}

func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	dest, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = dest.Close() }()

	_, err = io.Copy(dest, source)
	return err
}
