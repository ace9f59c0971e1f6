// Package uploader implements the incremental bulk-upload workflow: walk a
// directory tree, skip files the manifest knows are unchanged, and upload the
// rest through a bounded worker pool.
package uploader

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sync"

	"github.com/quarryhq/quarry/internal/log"
	"github.com/quarryhq/quarry/internal/manifest"
)

// maxWorkers bounds the upload pool; the effective size is min(maxWorkers,
// pending files).
const maxWorkers = 10

// ObjectPutter uploads a local file to an object key. Satisfied by
// *objstore.Client.
type ObjectPutter interface {
	UploadFile(ctx context.Context, bucket, path, key string) error
}

// Uploader runs bulk uploads against one bucket, tracking progress in an
// injected manifest store.
type Uploader struct {
	store    ObjectPutter
	bucket   string
	manifest *manifest.Store
	track    bool
	logger   log.Logger
}

// New creates an Uploader. A nil manifest store disables change tracking:
// every file uploads every run.
func New(store ObjectPutter, bucket string, manifestStore *manifest.Store, logger log.Logger) *Uploader {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Uploader{
		store:    store,
		bucket:   bucket,
		manifest: manifestStore,
		track:    manifestStore != nil,
		logger:   logger,
	}
}

type task struct {
	path    string
	key     string
	relPath string
	modTime fs.FileInfo
}

// UploadTree uploads every regular file under rootDir whose manifest entry is
// missing or stale, with keys of the form keyPrefix/relpath.
//
// Pending files upload concurrently through a pool of min(10, pending)
// workers. A single file's failure is logged and skipped; the run continues.
// The manifest is persisted once, after the pool drains — a crash mid-run
// loses that run's records, causing harmless re-uploads next time. Returns
// the count of files actually uploaded.
func (u *Uploader) UploadTree(ctx context.Context, rootDir, keyPrefix string) (int, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return 0, fmt.Errorf("resolving %s: %w", rootDir, err)
	}
	rootDir = abs

	m := manifest.Manifest{}
	if u.track {
		if err := u.manifest.Lock(); err != nil {
			return 0, err
		}
		defer func() {
			if unlockErr := u.manifest.Unlock(); unlockErr != nil {
				u.logger.Warn("releasing manifest lock", "error", unlockErr)
			}
		}()

		m, err = u.manifest.Load()
		if err != nil {
			return 0, err
		}
	}

	tasks, err := u.collect(rootDir, keyPrefix, m)
	if err != nil {
		return 0, err
	}
	if len(tasks) == 0 {
		u.logger.Info("nothing to upload", "root", rootDir)
		return 0, nil
	}

	uploaded := u.runPool(ctx, tasks, m)

	if u.track {
		if err := u.manifest.Save(m); err != nil {
			return uploaded, fmt.Errorf("persisting manifest: %w", err)
		}
	}

	u.logger.Info("tree upload complete", "root", rootDir, "uploaded", uploaded, "skipped", len(tasks)-uploaded)
	return uploaded, nil
}

// UploadSingle uploads one file to keyPrefix/basename without consulting or
// updating the manifest.
func (u *Uploader) UploadSingle(ctx context.Context, filePath, keyPrefix string) error {
	key := path.Join(keyPrefix, filepath.Base(filePath))
	if err := u.store.UploadFile(ctx, u.bucket, filePath, key); err != nil {
		return err
	}
	u.logger.Info("uploaded", "path", filePath, "key", key)
	return nil
}

// collect walks the tree and returns the tasks the manifest does not rule
// out. Unchanged files are logged as skipped.
func (u *Uploader) collect(rootDir, keyPrefix string, m manifest.Manifest) ([]task, error) {
	var tasks []task
	err := filepath.WalkDir(rootDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(rootDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		if u.track && !m.ShouldUpload(rel, info.ModTime()) {
			u.logger.Debug("skipped, not modified", "path", p)
			return nil
		}

		tasks = append(tasks, task{
			path:    p,
			key:     path.Join(keyPrefix, rel),
			relPath: rel,
			modTime: info,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", rootDir, err)
	}
	return tasks, nil
}

// runPool uploads tasks with a bounded worker pool, recording successes in
// the in-memory manifest under a mutex. There is no ordering guarantee
// between uploads; each is idempotent (same-key overwrite).
func (u *Uploader) runPool(ctx context.Context, tasks []task, m manifest.Manifest) int {
	workers := maxWorkers
	if len(tasks) < workers {
		workers = len(tasks)
	}

	queue := make(chan task)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		uploaded int
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range queue {
				if err := u.store.UploadFile(ctx, u.bucket, t.path, t.key); err != nil {
					u.logger.Warn("upload failed", "path", t.path, "error", err)
					continue
				}
				u.logger.Info("uploaded", "path", t.path, "key", t.key)

				mu.Lock()
				uploaded++
				if u.track {
					m.Record(t.relPath, t.modTime.ModTime())
				}
				mu.Unlock()
			}
		}()
	}

	for _, t := range tasks {
		queue <- t
	}
	close(queue)
	wg.Wait()

	return uploaded
}
