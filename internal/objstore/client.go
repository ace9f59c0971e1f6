// Package objstore exposes the object-store retrieval tools: bucket and
// object listing, prefix+substring search, metadata retrieval, bounded
// text-content retrieval, bucket creation, and single-file upload.
//
// The backend is any S3-compatible store. Custom endpoints (MinIO,
// LocalStack) are supported through BaseEndpoint with path-style addressing.
package objstore

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/quarryhq/quarry/internal/log"
)

// API is the subset of the S3 client the tools use. Defined on the consumer
// side so tests can substitute an in-memory fake for *s3.Client.
type API interface {
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, opts ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Config holds object-store connection settings.
type Config struct {
	// Region is the AWS region, also sent as the bucket location constraint
	// when creating buckets outside us-east-1.
	Region string

	// Endpoint overrides the store URL for MinIO/LocalStack. Empty means the
	// real AWS endpoint.
	Endpoint string

	// AccessKey and SecretKey select static credentials. When both are empty
	// the default credential chain applies.
	AccessKey string
	SecretKey string
}

// Client implements the object-store tools over an S3-compatible API.
type Client struct {
	api    API
	region string
	logger log.Logger
}

// New dials the object store described by cfg.
func New(ctx context.Context, cfg Config, logger log.Logger) (*Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey, cfg.SecretKey, "")),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			// Custom endpoints need path-style addressing; virtual-host
			// bucket DNS does not resolve against MinIO or LocalStack.
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewWithAPI(api, cfg.Region, logger), nil
}

// NewWithAPI wraps an existing API implementation. Tests use this with a
// fake; production callers go through New.
func NewWithAPI(api API, region string, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Client{api: api, region: region, logger: logger}
}
