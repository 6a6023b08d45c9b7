// Package status provides the update status model and its persistence.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

//go:generate mockgen -destination=mocks/mock_snapshot_store.go -package=mocks -source=persistence.go SnapshotStore

const (
	// SnapshotFileName is the name of the snapshot file
	SnapshotFileName = "snapshot.json"

	lockFileName   = ".snapshot.lock"
	lockRetryDelay = 50 * time.Millisecond
)

// SnapshotStore persists the final snapshot of each component between process runs
type SnapshotStore interface {
	// SaveSnapshot saves the snapshot for a specific component
	SaveSnapshot(ctx context.Context, component string, snapshot Snapshot) error

	// LoadSnapshot loads the snapshot for a specific component
	// Returns a READY snapshot if nothing was saved yet (first run)
	LoadSnapshot(ctx context.Context, component string) (Snapshot, error)

	// LoadAllSnapshots loads the snapshots of every component found in the store
	LoadAllSnapshots(ctx context.Context) (map[string]Snapshot, error)
}

// fileSnapshotStore implements SnapshotStore using the local filesystem
type fileSnapshotStore struct {
	basePath string
}

// NewFileSnapshotStore creates a new file-based snapshot store
// basePath is the base directory where per-component snapshot files will be stored
func NewFileSnapshotStore(basePath string) SnapshotStore {
	return &fileSnapshotStore{
		basePath: basePath,
	}
}

// SaveSnapshot saves the snapshot to a JSON file in a component-specific directory.
// The write is guarded by a file lock so two processes sharing a state directory
// never interleave their temp-file renames.
func (f *fileSnapshotStore) SaveSnapshot(ctx context.Context, component string, snapshot Snapshot) error {
	componentDir := filepath.Join(f.basePath, component)
	if err := os.MkdirAll(componentDir, 0750); err != nil {
		return fmt.Errorf("failed to create snapshot directory for component '%s': %w", component, err)
	}

	lock := flock.New(filepath.Join(componentDir, lockFileName))
	if _, err := lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("failed to lock snapshot directory for component '%s': %w", component, err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	filePath := filepath.Join(componentDir, SnapshotFileName)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for component '%s': %w", component, err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary snapshot file for component '%s': %w", component, err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename snapshot file for component '%s': %w", component, err)
	}

	return nil
}

// LoadSnapshot loads the snapshot from a JSON file for a specific component
func (f *fileSnapshotStore) LoadSnapshot(_ context.Context, component string) (Snapshot, error) {
	filePath := filepath.Join(f.basePath, component, SnapshotFileName)

	// #nosec G304 -- filePath is built from the configured state dir and a validated component name
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSnapshot(), nil
		}
		return Snapshot{}, fmt.Errorf("failed to read snapshot file for component '%s': %w", component, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal snapshot for component '%s': %w", component, err)
	}
	if snapshot.Status == "" {
		snapshot.Status = CodeReady
	}

	return snapshot, nil
}

// LoadAllSnapshots loads snapshots for all components
func (f *fileSnapshotStore) LoadAllSnapshots(ctx context.Context) (map[string]Snapshot, error) {
	result := make(map[string]Snapshot)

	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		component := entry.Name()
		snapshot, err := f.LoadSnapshot(ctx, component)
		if err != nil {
			// Partial results are more useful than none
			continue
		}

		result[component] = snapshot
	}

	return result, nil
}
