// Package installer downloads release artifacts and stages them in the update folder
// where the host picks them up on its next restart.
package installer

import (
	"context"
	"errors"

	"github.com/stacklok/plugin-updater/internal/httpclient"
)

var (
	// ErrIO is returned when the artifact cannot be downloaded or written
	ErrIO = errors.New("artifact download failed")

	// ErrUnpack is returned when a downloaded archive cannot be extracted
	ErrUnpack = errors.New("artifact unpack failed")
)

// StageResult lists the files placed in the destination folder
type StageResult struct {
	FilesWritten []string
}

// Installer fetches the artifact at url and stages it in destination.
// onBytes, when set, is called as bytes arrive.
//
//go:generate mockgen -destination=mocks/mock_installer.go -package=mocks github.com/stacklok/plugin-updater/internal/installer Installer
type Installer interface {
	Stage(ctx context.Context, url, destination string, onBytes httpclient.ProgressFunc) (*StageResult, error)
}
