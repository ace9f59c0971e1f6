package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/quarryhq/quarry/internal/fault"
)

// DefaultMaxContentSize bounds GetObjectContent downloads to 1 MiB unless the
// caller says otherwise.
const DefaultMaxContentSize int64 = 1024 * 1024

// textContentTypes are the content-type prefixes accepted as text.
var textContentTypes = []string{
	"text/",
	"application/json",
	"application/xml",
	"application/csv",
	"application/javascript",
	"application/typescript",
}

// textExtensions are the key suffixes accepted as text when the content type
// is inconclusive.
var textExtensions = []string{
	".txt", ".csv", ".json", ".xml", ".md", ".py", ".js", ".ts", ".html", ".css",
}

// CreateBucketIfAbsent creates the bucket, treating "already owned by you" as
// success. Any other failure, including a name collision owned by another
// principal, is a backend fault. An empty region falls back to the client's
// configured region.
func (c *Client) CreateBucketIfAbsent(ctx context.Context, name, region string) error {
	if region == "" {
		region = c.region
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	// us-east-1 rejects an explicit location constraint.
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}

	_, err := c.api.CreateBucket(ctx, input)
	if err != nil {
		var owned *s3types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			c.logger.Debug("bucket already exists", "bucket", name)
			return nil
		}
		return fault.Wrap(fault.KindBackend, err, "creating bucket %q", name)
	}

	c.logger.Info("bucket created", "bucket", name)
	return nil
}

// UploadFile uploads the file at path to bucket/key. There is no built-in
// retry; a failed upload is the caller's to redo.
func (c *Client) UploadFile(ctx context.Context, bucket, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			c.logger.Warn("closing upload source", "path", path, "error", closeErr)
		}
	}()

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := c.api.PutObject(ctx, input); err != nil {
		return fault.Wrap(fault.KindBackend, err, "uploading %s to s3://%s/%s", path, bucket, key)
	}
	return nil
}

// ListBuckets returns up to limit buckets. Excess buckets are silently
// truncated.
func (c *Client) ListBuckets(ctx context.Context, limit int) ([]Bucket, error) {
	out, err := c.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fault.Wrap(fault.KindBackend, err, "listing buckets")
	}

	buckets := make([]Bucket, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		if limit > 0 && len(buckets) >= limit {
			break
		}
		buckets = append(buckets, Bucket{
			Name:         aws.ToString(b.Name),
			CreationDate: formatTime(b.CreationDate),
		})
	}
	return buckets, nil
}

// ListObjects lists objects in bucket, optionally filtered by prefix. maxKeys
// is clamped into [1,1000]; an empty bucket yields an empty result.
func (c *Client) ListObjects(ctx context.Context, bucket, prefix string, maxKeys int) ([]ObjectSummary, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(clampKeys(maxKeys)),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	out, err := c.api.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fault.Wrap(fault.KindBackend, err, "listing objects in bucket %q", bucket)
	}

	objects := make([]ObjectSummary, 0, len(out.Contents))
	for _, obj := range out.Contents {
		objects = append(objects, summarize(obj))
	}
	return objects, nil
}

// SearchObjects applies query as a case-insensitive substring filter on the
// full key, stopping at maxResults. The filter runs client-side over an
// unfiltered listing; mid-key and differently-cased matches count.
//
// Only the first listing page (1000 keys) is scanned, so results are not
// guaranteed to be the globally best matches in very large buckets.
func (c *Client) SearchObjects(ctx context.Context, bucket, query string, maxResults int) ([]ObjectSummary, error) {
	out, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		MaxKeys: aws.Int32(1000),
	})
	if err != nil {
		return nil, fault.Wrap(fault.KindBackend, err, "searching objects in bucket %q", bucket)
	}

	needle := strings.ToLower(query)
	var matches []ObjectSummary
	for _, obj := range out.Contents {
		if !strings.Contains(strings.ToLower(aws.ToString(obj.Key)), needle) {
			continue
		}
		matches = append(matches, summarize(obj))
		if maxResults > 0 && len(matches) >= maxResults {
			break
		}
	}
	return matches, nil
}

// GetObjectMetadata heads the object. A missing object is a not-found fault.
func (c *Client) GetObjectMetadata(ctx context.Context, bucket, key string) (*ObjectMetadata, error) {
	out, err := c.headObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	return &ObjectMetadata{
		ContentType:   contentTypeOrDefault(out.ContentType),
		ContentLength: aws.ToInt64(out.ContentLength),
		LastModified:  formatTime(out.LastModified),
		ETag:          strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}

// GetObjectContent retrieves an object's bytes as text. The size check runs
// against the reported content length before any download; the text
// heuristics accept a content-type prefix from the allow-list or a known text
// extension on the key; bytes that are not valid UTF-8 fail decoding.
func (c *Client) GetObjectContent(ctx context.Context, bucket, key string, maxSize int64) (*ObjectContent, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxContentSize
	}

	head, err := c.headObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	length := aws.ToInt64(head.ContentLength)
	if length > maxSize {
		return nil, fault.New(fault.KindSizeLimit,
			"object %q is too large (%d bytes), maximum is %d bytes", key, length, maxSize)
	}

	contentType := contentTypeOrDefault(head.ContentType)
	if !isText(contentType, key) {
		return nil, fault.New(fault.KindNotText,
			"object %q does not appear to be a text file (content type: %s)", key, contentType)
	}

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fault.Wrap(fault.KindBackend, err, "getting object %q from bucket %q", key, bucket)
	}
	defer func() {
		if closeErr := out.Body.Close(); closeErr != nil {
			c.logger.Warn("closing object body", "key", key, "error", closeErr)
		}
	}()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fault.Wrap(fault.KindBackend, err, "reading object %q", key)
	}
	if !utf8.Valid(body) {
		return nil, fault.New(fault.KindDecode,
			"object %q content is not valid UTF-8 text", key)
	}

	return &ObjectContent{
		ContentType: contentType,
		Content:     string(body),
		Size:        len(body),
	}, nil
}

func (c *Client) headObject(ctx context.Context, bucket, key string) (*s3.HeadObjectOutput, error) {
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return nil, fault.New(fault.KindNotFound, "object %q not found in bucket %q", key, bucket)
		}
		return nil, fault.Wrap(fault.KindBackend, err, "heading object %q in bucket %q", key, bucket)
	}
	return out, nil
}

func isText(contentType, key string) bool {
	for _, prefix := range textContentTypes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	lower := strings.ToLower(key)
	for _, ext := range textExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func clampKeys(maxKeys int) int32 {
	switch {
	case maxKeys < 1:
		return 1
	case maxKeys > 1000:
		return 1000
	default:
		return int32(maxKeys)
	}
}

func summarize(obj s3types.Object) ObjectSummary {
	return ObjectSummary{
		Key:          aws.ToString(obj.Key),
		Size:         aws.ToInt64(obj.Size),
		LastModified: formatTime(obj.LastModified),
		StorageClass: string(obj.StorageClass),
	}
}

func contentTypeOrDefault(ct *string) string {
	if s := aws.ToString(ct); s != "" {
		return s
	}
	return "application/octet-stream"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
