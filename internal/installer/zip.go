package installer

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/stacklok/plugin-updater/internal/httpclient"
)

const (
	// maxEntrySize bounds a single extracted archive entry (512MB)
	maxEntrySize = 512 * 1024 * 1024

	fallbackArtifactName = "artifact.jar"
	tempPattern          = ".download-*"
)

// ZipInstaller stages plugin artifacts. Zip archives are unpacked and every .jar
// entry is written flat into the destination; any other artifact is moved into
// place under the base name of its URL.
type ZipInstaller struct {
	client httpclient.Client
}

// NewZipInstaller creates an installer that downloads through client
func NewZipInstaller(client httpclient.Client) *ZipInstaller {
	return &ZipInstaller{client: client}
}

// Stage implements Installer
func (z *ZipInstaller) Stage(
	ctx context.Context, rawURL, destination string, onBytes httpclient.ProgressFunc,
) (*StageResult, error) {
	name, err := artifactName(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}

	if err := os.MkdirAll(destination, 0o750); err != nil {
		return nil, fmt.Errorf("%w: failed to create update folder: %v", ErrIO, err)
	}

	tmpPath, err := z.download(ctx, rawURL, destination, onBytes)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Already renamed away when the artifact was not an archive
		_ = os.Remove(tmpPath)
	}()

	if strings.EqualFold(path.Ext(name), ".zip") {
		written, err := extractJars(tmpPath, destination)
		if err != nil {
			for _, partial := range written {
				_ = os.Remove(partial)
			}
			return nil, err
		}
		slog.Info("Staged archive contents", "archive", name, "files", len(written))
		return &StageResult{FilesWritten: written}, nil
	}

	target := filepath.Join(destination, name)
	if err := os.Rename(tmpPath, target); err != nil {
		return nil, fmt.Errorf("%w: failed to move artifact into place: %v", ErrIO, err)
	}
	slog.Info("Staged artifact", "file", target)
	return &StageResult{FilesWritten: []string{target}}, nil
}

// download streams the artifact into a temporary file inside destination so the
// final rename never crosses filesystems
func (z *ZipInstaller) download(
	ctx context.Context, rawURL, destination string, onBytes httpclient.ProgressFunc,
) (string, error) {
	tmp, err := os.CreateTemp(destination, tempPattern)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create temporary file: %v", ErrIO, err)
	}
	tmpPath := tmp.Name()

	written, err := z.client.Download(ctx, rawURL, tmp, onBytes)
	closeErr := tmp.Close()
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("%w: failed to flush artifact: %v", ErrIO, closeErr)
	}

	slog.Debug("Downloaded artifact", "url", rawURL, "bytes", written)
	return tmpPath, nil
}

func extractJars(archivePath, destination string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		if reader != nil {
			_ = reader.Close()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnpack, err)
	}
	defer func() {
		_ = reader.Close()
	}()

	var written []string
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if !isSafeEntryName(entry.Name) {
			return written, fmt.Errorf("%w: illegal path in archive: %q", ErrUnpack, entry.Name)
		}
		if !strings.EqualFold(path.Ext(entry.Name), ".jar") {
			continue
		}

		target := filepath.Join(destination, path.Base(entry.Name))
		if err := extractEntry(entry, target); err != nil {
			return written, err
		}
		written = append(written, target)
	}

	if len(written) == 0 {
		return nil, fmt.Errorf("%w: archive contains no .jar files", ErrUnpack)
	}
	return written, nil
}

func extractEntry(entry *zip.File, target string) error {
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("%w: failed to open %q: %v", ErrUnpack, entry.Name, err)
	}
	defer func() {
		_ = src.Close()
	}()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: failed to create %q: %v", ErrIO, target, err)
	}

	n, err := io.Copy(dst, io.LimitReader(src, maxEntrySize+1))
	closeErr := dst.Close()
	if err != nil {
		_ = os.Remove(target)
		return fmt.Errorf("%w: failed to extract %q: %v", ErrUnpack, entry.Name, err)
	}
	if n > maxEntrySize {
		_ = os.Remove(target)
		return fmt.Errorf("%w: entry %q exceeds %d bytes", ErrUnpack, entry.Name, maxEntrySize)
	}
	if closeErr != nil {
		_ = os.Remove(target)
		return fmt.Errorf("%w: failed to write %q: %v", ErrIO, target, closeErr)
	}
	return nil
}

// isSafeEntryName rejects absolute paths and any ".." segment
func isSafeEntryName(name string) bool {
	normalized := strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(normalized, "/") || filepath.IsAbs(name) {
		return false
	}
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return false
		}
	}
	return true
}

// artifactName is the last path segment of the download URL
func artifactName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid download url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid download url %q: missing scheme or host", rawURL)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return fallbackArtifactName, nil
	}
	return name, nil
}
