package objstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/quarryhq/quarry/internal/fault"
	"github.com/quarryhq/quarry/internal/log"
	"github.com/quarryhq/quarry/internal/objstore"
	"github.com/quarryhq/quarry/internal/testutil"
)

func newClient(fake *testutil.FakeS3) *objstore.Client {
	return objstore.NewWithAPI(fake, "us-east-1", log.NewNop())
}

func TestCreateBucketIfAbsent(t *testing.T) {
	fake := testutil.NewFakeS3()
	client := newClient(fake)
	ctx := context.Background()

	if err := client.CreateBucketIfAbsent(ctx, "evidence", ""); err != nil {
		t.Fatalf("CreateBucketIfAbsent() error = %v", err)
	}

	// Second creation hits BucketAlreadyOwnedByYou, which is success.
	if err := client.CreateBucketIfAbsent(ctx, "evidence", ""); err != nil {
		t.Errorf("CreateBucketIfAbsent() on existing bucket error = %v, want nil", err)
	}
}

func TestListBucketsTruncates(t *testing.T) {
	fake := testutil.NewFakeS3()
	for _, name := range []string{"alpha", "bravo", "charlie", "delta"} {
		fake.AddBucket(name)
	}
	client := newClient(fake)

	buckets, err := client.ListBuckets(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListBuckets() error = %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("ListBuckets() returned %d buckets, want 2", len(buckets))
	}
	if buckets[0].Name != "alpha" || buckets[1].Name != "bravo" {
		t.Errorf("ListBuckets() = %v, want listing order preserved", buckets)
	}
	if buckets[0].CreationDate == "" {
		t.Error("ListBuckets() creation_date is empty")
	}
}

func TestListObjects(t *testing.T) {
	fake := testutil.NewFakeS3()
	fake.AddObject("docs", "guides/a.md", testutil.FakeObject{Body: []byte("aa")})
	fake.AddObject("docs", "guides/b.md", testutil.FakeObject{Body: []byte("bbb")})
	fake.AddObject("docs", "notes/c.md", testutil.FakeObject{Body: []byte("c")})
	client := newClient(fake)
	ctx := context.Background()

	t.Run("prefix filter", func(t *testing.T) {
		objects, err := client.ListObjects(ctx, "docs", "guides/", 100)
		if err != nil {
			t.Fatalf("ListObjects() error = %v", err)
		}
		if len(objects) != 2 {
			t.Fatalf("ListObjects() returned %d objects, want 2", len(objects))
		}
		if objects[0].Key != "guides/a.md" || objects[0].Size != 2 {
			t.Errorf("objects[0] = %+v", objects[0])
		}
		if objects[0].StorageClass != "STANDARD" {
			t.Errorf("storage_class = %q, want STANDARD", objects[0].StorageClass)
		}
	})

	t.Run("max_keys clamped up from zero", func(t *testing.T) {
		objects, err := client.ListObjects(ctx, "docs", "", 0)
		if err != nil {
			t.Fatalf("ListObjects() error = %v", err)
		}
		if len(objects) != 1 {
			t.Errorf("ListObjects() returned %d objects with max_keys=0, want 1 (clamped)", len(objects))
		}
	})

	t.Run("empty bucket", func(t *testing.T) {
		fake.AddBucket("empty")
		objects, err := client.ListObjects(ctx, "empty", "", 100)
		if err != nil {
			t.Fatalf("ListObjects() error = %v", err)
		}
		if len(objects) != 0 {
			t.Errorf("ListObjects() on empty bucket = %v, want empty", objects)
		}
	})

	t.Run("missing bucket is a backend fault", func(t *testing.T) {
		_, err := client.ListObjects(ctx, "nope", "", 100)
		if !fault.IsKind(err, fault.KindBackend) {
			t.Errorf("ListObjects() error = %v, want backend fault", err)
		}
	})
}

func TestSearchObjects(t *testing.T) {
	fake := testutil.NewFakeS3()
	fake.AddObject("billing", "invoice/a.pdf", testutil.FakeObject{Body: []byte("a")})
	fake.AddObject("billing", "invoice/b.pdf", testutil.FakeObject{Body: []byte("b")})
	fake.AddObject("billing", "report/inv-2024.csv", testutil.FakeObject{Body: []byte("c")})
	fake.AddObject("billing", "misc/x.txt", testutil.FakeObject{Body: []byte("d")})
	client := newClient(fake)
	ctx := context.Background()

	t.Run("empty query matches everything", func(t *testing.T) {
		matches, err := client.SearchObjects(ctx, "billing", "", 100)
		if err != nil {
			t.Fatalf("SearchObjects() error = %v", err)
		}
		if len(matches) != 4 {
			t.Fatalf("empty query matched %d, want all 4", len(matches))
		}
	})

	t.Run("case-insensitive filter excludes non-matches", func(t *testing.T) {
		matches, err := client.SearchObjects(ctx, "billing", "inv", 100)
		if err != nil {
			t.Fatalf("SearchObjects() error = %v", err)
		}
		if len(matches) != 3 {
			t.Fatalf("SearchObjects() matched %d, want 3", len(matches))
		}
		for _, m := range matches {
			if m.Key == "misc/x.txt" {
				t.Error("SearchObjects() included misc/x.txt")
			}
		}
	})

	t.Run("uppercase query still matches", func(t *testing.T) {
		matches, err := client.SearchObjects(ctx, "billing", "INV", 2)
		if err != nil {
			t.Fatalf("SearchObjects() error = %v", err)
		}
		if len(matches) != 2 {
			t.Fatalf("SearchObjects() matched %d, want 2", len(matches))
		}
	})

	t.Run("short-circuits at max_results", func(t *testing.T) {
		matches, err := client.SearchObjects(ctx, "billing", "inv", 2)
		if err != nil {
			t.Fatalf("SearchObjects() error = %v", err)
		}
		if len(matches) != 2 {
			t.Fatalf("SearchObjects() matched %d, want 2", len(matches))
		}
		// Backend listing order: invoice/a.pdf, invoice/b.pdf, report/inv-2024.csv.
		if matches[0].Key != "invoice/a.pdf" || matches[1].Key != "invoice/b.pdf" {
			t.Errorf("SearchObjects() = %v, want first two in listing order", matches)
		}
	})
}

func TestGetObjectMetadata(t *testing.T) {
	fake := testutil.NewFakeS3()
	fake.AddObject("docs", "readme.md", testutil.FakeObject{
		Body:        []byte("# hello"),
		ContentType: "text/markdown",
	})
	client := newClient(fake)
	ctx := context.Background()

	meta, err := client.GetObjectMetadata(ctx, "docs", "readme.md")
	if err != nil {
		t.Fatalf("GetObjectMetadata() error = %v", err)
	}
	if meta.ContentType != "text/markdown" {
		t.Errorf("content_type = %q, want text/markdown", meta.ContentType)
	}
	if meta.ContentLength != 7 {
		t.Errorf("content_length = %d, want 7", meta.ContentLength)
	}
	if meta.ETag != "fake-etag" {
		t.Errorf("etag = %q, want quotes stripped", meta.ETag)
	}

	_, err = client.GetObjectMetadata(ctx, "docs", "absent.md")
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("GetObjectMetadata() for absent key error = %v, want not-found fault", err)
	}
}

func TestGetObjectContent(t *testing.T) {
	ctx := context.Background()

	t.Run("returns text content", func(t *testing.T) {
		fake := testutil.NewFakeS3()
		fake.AddObject("docs", "notes.txt", testutil.FakeObject{
			Body:        []byte("plain text"),
			ContentType: "text/plain",
		})
		client := newClient(fake)

		content, err := client.GetObjectContent(ctx, "docs", "notes.txt", 0)
		if err != nil {
			t.Fatalf("GetObjectContent() error = %v", err)
		}
		if content.Content != "plain text" || content.Size != 10 {
			t.Errorf("content = %+v", content)
		}
	})

	t.Run("size limit rejects before download", func(t *testing.T) {
		fake := testutil.NewFakeS3()
		fake.AddObject("docs", "big.txt", testutil.FakeObject{
			Body:        []byte("0123456789"),
			ContentType: "text/plain",
		})
		client := newClient(fake)

		_, err := client.GetObjectContent(ctx, "docs", "big.txt", 5)
		if !fault.IsKind(err, fault.KindSizeLimit) {
			t.Fatalf("GetObjectContent() error = %v, want size-limit fault", err)
		}
		if fake.GetCalls != 0 {
			t.Errorf("GetObject was called %d times, want 0 (rejected at head)", fake.GetCalls)
		}
	})

	t.Run("extension rescues unknown content type", func(t *testing.T) {
		fake := testutil.NewFakeS3()
		fake.AddObject("docs", "data.json", testutil.FakeObject{Body: []byte(`{"k":1}`)})
		client := newClient(fake)

		content, err := client.GetObjectContent(ctx, "docs", "data.json", 0)
		if err != nil {
			t.Fatalf("GetObjectContent() error = %v", err)
		}
		if content.ContentType != "application/octet-stream" {
			t.Errorf("content_type = %q, want default", content.ContentType)
		}
	})

	t.Run("binary content type fails", func(t *testing.T) {
		fake := testutil.NewFakeS3()
		fake.AddObject("docs", "photo.png", testutil.FakeObject{
			Body:        []byte{0x89, 0x50, 0x4e, 0x47},
			ContentType: "image/png",
		})
		client := newClient(fake)

		_, err := client.GetObjectContent(ctx, "docs", "photo.png", 0)
		if !fault.IsKind(err, fault.KindNotText) {
			t.Errorf("GetObjectContent() error = %v, want not-text fault", err)
		}
	})

	t.Run("invalid UTF-8 fails decoding", func(t *testing.T) {
		fake := testutil.NewFakeS3()
		fake.AddObject("docs", "broken.txt", testutil.FakeObject{
			Body:        []byte{0xff, 0xfe, 0x00},
			ContentType: "text/plain",
		})
		client := newClient(fake)

		_, err := client.GetObjectContent(ctx, "docs", "broken.txt", 0)
		if !fault.IsKind(err, fault.KindDecode) {
			t.Errorf("GetObjectContent() error = %v, want decode fault", err)
		}
	})
}

func TestUploadFile(t *testing.T) {
	fake := testutil.NewFakeS3()
	fake.AddBucket("dest")
	client := newClient(fake)

	dir := t.TempDir()
	path := filepath.Join(dir, "report.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := client.UploadFile(context.Background(), "dest", path, "in/report.csv"); err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}

	obj, ok := fake.Object("dest", "in/report.csv")
	if !ok {
		t.Fatal("uploaded object not found in store")
	}
	if string(obj.Body) != "a,b\n1,2\n" {
		t.Errorf("uploaded body = %q", obj.Body)
	}
}
