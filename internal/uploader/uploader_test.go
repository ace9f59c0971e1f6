package uploader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/quarryhq/quarry/internal/log"
	"github.com/quarryhq/quarry/internal/manifest"
)

// recordingPutter counts uploads per key and tracks peak concurrency.
type recordingPutter struct {
	mu      sync.Mutex
	uploads map[string]int

	inFlight atomic.Int64
	peak     atomic.Int64

	failSubstring string
	delay         time.Duration
}

func newRecordingPutter() *recordingPutter {
	return &recordingPutter{uploads: make(map[string]int)}
}

func (p *recordingPutter) UploadFile(_ context.Context, _, path, key string) error {
	cur := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		old := p.peak.Load()
		if cur <= old || p.peak.CompareAndSwap(old, cur) {
			break
		}
	}

	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.failSubstring != "" && strings.Contains(path, p.failSubstring) {
		return errors.New("simulated store failure")
	}

	p.mu.Lock()
	p.uploads[key]++
	p.mu.Unlock()
	return nil
}

func (p *recordingPutter) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.uploads {
		n += c
	}
	return n
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestUploadTree(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := writeTree(t, map[string]string{
		"a.txt":        "alpha",
		"sub/b.txt":    "bravo",
		"sub/deep/c.c": "charlie",
	})
	putter := newRecordingPutter()
	store := manifest.NewStore(filepath.Join(t.TempDir(), "upload_manifest.json"))
	u := New(putter, "evidence", store, log.NewNop())

	count, err := u.UploadTree(context.Background(), root, "docs")
	if err != nil {
		t.Fatalf("UploadTree() error = %v", err)
	}
	if count != 3 {
		t.Errorf("UploadTree() = %d, want 3", count)
	}
	if putter.total() != 3 {
		t.Errorf("store saw %d uploads, want 3", putter.total())
	}

	// Keys are prefix/relpath, slash-separated.
	for _, key := range []string{"docs/a.txt", "docs/sub/b.txt", "docs/sub/deep/c.c"} {
		if putter.uploads[key] != 1 {
			t.Errorf("uploads[%q] = %d, want 1", key, putter.uploads[key])
		}
	}
}

func TestUploadTreeSkipsUnchanged(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := writeTree(t, map[string]string{"a.txt": "alpha", "b.txt": "bravo"})
	putter := newRecordingPutter()
	store := manifest.NewStore(filepath.Join(t.TempDir(), "upload_manifest.json"))
	u := New(putter, "evidence", store, log.NewNop())
	ctx := context.Background()

	if _, err := u.UploadTree(ctx, root, ""); err != nil {
		t.Fatalf("first UploadTree() error = %v", err)
	}

	count, err := u.UploadTree(ctx, root, "")
	if err != nil {
		t.Fatalf("second UploadTree() error = %v", err)
	}
	if count != 0 {
		t.Errorf("second UploadTree() = %d, want 0 (all unchanged)", count)
	}

	// Touching one file makes exactly that file pending again.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(filepath.Join(root, "b.txt"), future, future); err != nil {
		t.Fatal(err)
	}

	count, err = u.UploadTree(ctx, root, "")
	if err != nil {
		t.Fatalf("third UploadTree() error = %v", err)
	}
	if count != 1 {
		t.Errorf("third UploadTree() = %d, want 1", count)
	}
	if putter.uploads["b.txt"] != 2 {
		t.Errorf("uploads[b.txt] = %d, want 2", putter.uploads["b.txt"])
	}
}

func TestUploadTreeContinuesPastFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := writeTree(t, map[string]string{
		"good1.txt": "x",
		"bad.txt":   "y",
		"good2.txt": "z",
	})
	putter := newRecordingPutter()
	putter.failSubstring = "bad"
	store := manifest.NewStore(filepath.Join(t.TempDir(), "upload_manifest.json"))
	u := New(putter, "evidence", store, log.NewNop())
	ctx := context.Background()

	count, err := u.UploadTree(ctx, root, "")
	if err != nil {
		t.Fatalf("UploadTree() error = %v", err)
	}
	if count != 2 {
		t.Errorf("UploadTree() = %d, want 2 (failed file skipped, run not aborted)", count)
	}

	// The failed file stays pending: it is not recorded in the manifest.
	putter.failSubstring = ""
	count, err = u.UploadTree(ctx, root, "")
	if err != nil {
		t.Fatalf("retry UploadTree() error = %v", err)
	}
	if count != 1 {
		t.Errorf("retry UploadTree() = %d, want 1 (only the failed file)", count)
	}
}

func TestUploadTreeBoundsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	files := make(map[string]string, 25)
	for r := 'a'; r < 'a'+25; r++ {
		files[string(r)+".txt"] = "content"
	}
	root := writeTree(t, files)

	putter := newRecordingPutter()
	putter.delay = 10 * time.Millisecond
	u := New(putter, "evidence", nil, log.NewNop())

	count, err := u.UploadTree(context.Background(), root, "")
	if err != nil {
		t.Fatalf("UploadTree() error = %v", err)
	}
	if count != 25 {
		t.Errorf("UploadTree() = %d, want 25", count)
	}
	if peak := putter.peak.Load(); peak > 10 {
		t.Errorf("peak concurrency = %d, want <= 10", peak)
	}
}

func TestUploadTreeWithoutManifest(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := writeTree(t, map[string]string{"a.txt": "alpha"})
	putter := newRecordingPutter()
	u := New(putter, "evidence", nil, log.NewNop())
	ctx := context.Background()

	for range 2 {
		count, err := u.UploadTree(ctx, root, "")
		if err != nil {
			t.Fatalf("UploadTree() error = %v", err)
		}
		if count != 1 {
			t.Errorf("UploadTree() = %d, want 1 (tracking disabled)", count)
		}
	}
}

func TestUploadTreeFailsFastWhenLocked(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "alpha"})
	path := filepath.Join(t.TempDir(), "upload_manifest.json")

	holder := manifest.NewStore(path)
	if err := holder.Lock(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = holder.Unlock() }()

	putter := newRecordingPutter()
	u := New(putter, "evidence", manifest.NewStore(path), log.NewNop())

	if _, err := u.UploadTree(context.Background(), root, ""); err == nil {
		t.Fatal("UploadTree() succeeded while manifest is locked elsewhere")
	}
	if putter.total() != 0 {
		t.Errorf("store saw %d uploads before lock failure, want 0", putter.total())
	}
}

func TestUploadSingle(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, []byte("pdf"), 0o644); err != nil {
		t.Fatal(err)
	}

	putter := newRecordingPutter()
	u := New(putter, "evidence", nil, log.NewNop())

	if err := u.UploadSingle(context.Background(), path, "inbox"); err != nil {
		t.Fatalf("UploadSingle() error = %v", err)
	}
	if putter.uploads["inbox/report.pdf"] != 1 {
		t.Errorf("uploads = %v, want inbox/report.pdf once", putter.uploads)
	}
}
