package testutil

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// FakeObject is one stored object in a FakeS3.
type FakeObject struct {
	Body         []byte
	ContentType  string
	LastModified time.Time
}

// FakeS3 is an in-memory S3 API implementation for tests. It models the
// behaviors the object-store tools depend on: lexicographic listing order,
// prefix filtering, MaxKeys truncation, head/get errors for missing keys, and
// already-owned bucket creation conflicts.
//
// Safe for concurrent use; the uploader tests hit it from a worker pool.
type FakeS3 struct {
	mu      sync.Mutex
	buckets map[string]map[string]FakeObject
	created map[string]time.Time

	// GetCalls counts GetObject invocations, letting tests assert that the
	// size check rejected a download before it happened.
	GetCalls int

	// PutErr, when set, fails PutObject for keys containing the substring.
	PutErr string
}

// NewFakeS3 creates an empty fake store.
func NewFakeS3() *FakeS3 {
	return &FakeS3{
		buckets: make(map[string]map[string]FakeObject),
		created: make(map[string]time.Time),
	}
}

// AddBucket creates a bucket directly, bypassing the API surface.
func (f *FakeS3) AddBucket(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureBucket(name)
}

// AddObject stores an object directly, bypassing the API surface.
func (f *FakeS3) AddObject(bucket, key string, obj FakeObject) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureBucket(bucket)
	if obj.LastModified.IsZero() {
		obj.LastModified = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	}
	f.buckets[bucket][key] = obj
}

// Object returns a stored object and whether it exists.
func (f *FakeS3) Object(bucket, key string) (FakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.buckets[bucket][key]
	return obj, ok
}

// ObjectCount returns the number of objects in bucket.
func (f *FakeS3) ObjectCount(bucket string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buckets[bucket])
}

func (f *FakeS3) ensureBucket(name string) {
	if _, ok := f.buckets[name]; !ok {
		f.buckets[name] = make(map[string]FakeObject)
		f.created[name] = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}
}

// ListBuckets implements the S3 API surface.
func (f *FakeS3) ListBuckets(_ context.Context, _ *s3.ListBucketsInput, _ ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := make([]string, 0, len(f.buckets))
	for name := range f.buckets {
		names = append(names, name)
	}
	sort.Strings(names)

	out := &s3.ListBucketsOutput{}
	for _, name := range names {
		created := f.created[name]
		out.Buckets = append(out.Buckets, s3types.Bucket{
			Name:         aws.String(name),
			CreationDate: aws.Time(created),
		})
	}
	return out, nil
}

// ListObjectsV2 implements the S3 API surface with lexicographic key order.
func (f *FakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, ok := f.buckets[aws.ToString(in.Bucket)]
	if !ok {
		return nil, &s3types.NoSuchBucket{}
	}

	keys := make([]string, 0, len(bucket))
	prefix := aws.ToString(in.Prefix)
	for key := range bucket {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	maxKeys := int(aws.ToInt32(in.MaxKeys))
	if maxKeys > 0 && len(keys) > maxKeys {
		keys = keys[:maxKeys]
	}

	out := &s3.ListObjectsV2Output{}
	for _, key := range keys {
		obj := bucket[key]
		out.Contents = append(out.Contents, s3types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(obj.Body))),
			LastModified: aws.Time(obj.LastModified),
			StorageClass: s3types.ObjectStorageClassStandard,
		})
	}
	return out, nil
}

// HeadObject implements the S3 API surface; a missing key is *types.NotFound.
func (f *FakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, ok := f.buckets[aws.ToString(in.Bucket)][aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NotFound{}
	}

	out := &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.Body))),
		LastModified:  aws.Time(obj.LastModified),
		ETag:          aws.String(`"fake-etag"`),
	}
	if obj.ContentType != "" {
		out.ContentType = aws.String(obj.ContentType)
	}
	return out, nil
}

// GetObject implements the S3 API surface and counts invocations.
func (f *FakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.GetCalls++
	obj, ok := f.buckets[aws.ToString(in.Bucket)][aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}

	out := &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.Body)),
		ContentLength: aws.Int64(int64(len(obj.Body))),
	}
	if obj.ContentType != "" {
		out.ContentType = aws.String(obj.ContentType)
	}
	return out, nil
}

// PutObject implements the S3 API surface.
func (f *FakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if f.PutErr != "" && strings.Contains(key, f.PutErr) {
		return nil, &s3types.NoSuchBucket{}
	}

	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureBucket(aws.ToString(in.Bucket))
	f.buckets[aws.ToString(in.Bucket)][key] = FakeObject{
		Body:         body,
		ContentType:  aws.ToString(in.ContentType),
		LastModified: time.Now().UTC(),
	}
	return &s3.PutObjectOutput{}, nil
}

// CreateBucket implements the S3 API surface; re-creating an existing bucket
// fails with BucketAlreadyOwnedByYou, matching real S3 for same-owner
// collisions.
func (f *FakeS3) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(in.Bucket)
	if _, ok := f.buckets[name]; ok {
		return nil, &s3types.BucketAlreadyOwnedByYou{}
	}
	f.ensureBucket(name)
	return &s3.CreateBucketOutput{}, nil
}
