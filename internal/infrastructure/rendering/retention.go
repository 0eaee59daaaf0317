package rendering

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dilly/tablebot/internal/domain/table"
)

// PruneArtifacts removes rendered artifacts in dir older than age.
// Only files with an artifact extension are considered; a missing dir is not an error.
func PruneArtifacts(ctx context.Context, dir string, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)
	extensions := make(map[string]bool)
	for _, target := range table.AllRenderTargets() {
		extensions["."+target.Extension()] = true
	}

	deletedCount := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return fs.SkipAll
			}
			return nil // Skip unreadable entries
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() || !extensions[filepath.Ext(path)] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				deletedCount++
			}
		}
		return nil
	})

	if err != nil {
		return deletedCount, NewRenderError(ErrCodeRetention, "artifact cleanup failed", err)
	}
	return deletedCount, nil
}
