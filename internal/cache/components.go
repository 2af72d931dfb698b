package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Norgate-AV/kbfw/internal/fsio"
)

// CopyWorkers bounds the number of components copied concurrently.
const CopyWorkers = 3

// ProgressFunc receives aggregate copy progress. It may be called from
// several workers, never concurrently.
type ProgressFunc func(filesCopied, totalFiles int, bytesCopied, totalBytes int64, currentFile, component string)

// copyTracker aggregates per-worker progress into one callback.
type copyTracker struct {
	mu         sync.Mutex
	files      int
	bytes      int64
	totalFiles int
	totalBytes int64
	report     ProgressFunc
}

func (t *copyTracker) add(component, rel string, size int64) {
	if t.report == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.files++
	t.bytes += size
	t.report(t.files, t.totalFiles, t.bytes, t.totalBytes, rel, component)
}

// componentStats sums files and bytes across components of a workspace.
func componentStats(fs fsio.FileAdapter, root string, components []string) (int, int64, error) {
	var files int
	var size int64

	for _, c := range components {
		n, b, err := fsio.DirStats(fs, filepath.Join(root, c))
		if err != nil {
			return 0, 0, fmt.Errorf("failed to size component %s: %w", c, err)
		}

		files += n
		size += b
	}

	return files, size, nil
}

// copyComponents copies each component directory from src to dst using a
// bounded worker pool.
func copyComponents(ctx context.Context, fs fsio.FileAdapter, src, dst string, components []string, progress ProgressFunc) error {
	tracker := &copyTracker{report: progress}

	if progress != nil {
		files, size, err := componentStats(fs, src, components)
		if err != nil {
			return err
		}

		tracker.totalFiles = files
		tracker.totalBytes = size
	}

	if err := fs.MkdirAll(dst); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(CopyWorkers)

	for _, component := range components {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			_, _, err := fsio.CopyDir(fs, filepath.Join(src, component), filepath.Join(dst, component), func(rel string, size int64) {
				tracker.add(component, filepath.Join(component, rel), size)
			})
			if err != nil {
				return fmt.Errorf("failed to copy component %s: %w", component, err)
			}

			return nil
		})
	}

	return g.Wait()
}
