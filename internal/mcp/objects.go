package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quarryhq/quarry/internal/objstore"
)

// Object-store tool inputs. Defaults apply in the handlers so omitted
// optional fields behave the same as explicit zero values.

// ListBucketsInput has no parameters.
type ListBucketsInput struct{}

// ListObjectsInput selects a bucket listing.
type ListObjectsInput struct {
	Bucket  string `json:"bucket" jsonschema:"S3 bucket name"`
	Prefix  string `json:"prefix,omitempty" jsonschema:"Filter objects by key prefix"`
	MaxKeys int    `json:"max_keys,omitempty" jsonschema:"Maximum number of objects to return (1-1000, default 100)"`
}

// GetObjectMetadataInput names one object.
type GetObjectMetadataInput struct {
	Bucket string `json:"bucket" jsonschema:"S3 bucket name"`
	Key    string `json:"key" jsonschema:"Object key (file path)"`
}

// SearchObjectsInput is a prefix+substring search.
type SearchObjectsInput struct {
	Bucket     string `json:"bucket" jsonschema:"S3 bucket name"`
	Query      string `json:"query" jsonschema:"Search query, used as key prefix and matched case-insensitively within keys"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of results to return (default 100)"`
}

// GetObjectContentInput bounds a text download.
type GetObjectContentInput struct {
	Bucket  string `json:"bucket" jsonschema:"S3 bucket name"`
	Key     string `json:"key" jsonschema:"Object key (file path)"`
	MaxSize int64  `json:"max_size,omitempty" jsonschema:"Maximum file size to download in bytes (default 1048576)"`
}

type listBucketsResponse struct {
	Buckets []objstore.Bucket `json:"buckets"`
	Count   int               `json:"count"`
}

type listObjectsResponse struct {
	Bucket  string                   `json:"bucket"`
	Objects []objstore.ObjectSummary `json:"objects"`
	Count   int                      `json:"count"`
	Prefix  string                   `json:"prefix"`
}

type objectMetadataResponse struct {
	Bucket   string                   `json:"bucket"`
	Key      string                   `json:"key"`
	Metadata *objstore.ObjectMetadata `json:"metadata"`
}

type searchObjectsResponse struct {
	Bucket  string                   `json:"bucket"`
	Query   string                   `json:"query"`
	Objects []objstore.ObjectSummary `json:"objects"`
	Count   int                      `json:"count"`
}

type objectContentResponse struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
	Size        int    `json:"size"`
}

// registerObjectTools registers the object-store tool group.
func (s *Server) registerObjectTools() error {
	listBucketsSchema, err := jsonschema.For[ListBucketsInput](nil)
	if err != nil {
		return fmt.Errorf("schema for list_buckets: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_buckets",
		Description: "List all available S3 buckets.",
		InputSchema: listBucketsSchema,
	}, s.ListBuckets)

	listObjectsSchema, err := jsonschema.For[ListObjectsInput](nil)
	if err != nil {
		return fmt.Errorf("schema for list_objects: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_objects",
		Description: "List objects in an S3 bucket, optionally filtered by key prefix.",
		InputSchema: listObjectsSchema,
	}, s.ListObjects)

	metadataSchema, err := jsonschema.For[GetObjectMetadataInput](nil)
	if err != nil {
		return fmt.Errorf("schema for get_object_metadata: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_object_metadata",
		Description: "Get metadata for an S3 object without downloading its contents.",
		InputSchema: metadataSchema,
	}, s.GetObjectMetadata)

	searchSchema, err := jsonschema.For[SearchObjectsInput](nil)
	if err != nil {
		return fmt.Errorf("schema for search_objects: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "search_objects",
		Description: "Search for objects in an S3 bucket by prefix and filename.",
		InputSchema: searchSchema,
	}, s.SearchObjects)

	contentSchema, err := jsonschema.For[GetObjectContentInput](nil)
	if err != nil {
		return fmt.Errorf("schema for get_object_content: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_object_content",
		Description: "Get the content of a text file from S3. Fails for binary files.",
		InputSchema: contentSchema,
	}, s.GetObjectContent)

	return nil
}

// ListBuckets handles the list_buckets MCP tool call.
func (s *Server) ListBuckets(ctx context.Context, _ *mcpsdk.CallToolRequest, _ ListBucketsInput) (*mcpsdk.CallToolResult, any, error) {
	ctx, span := s.span(ctx, "list_buckets")
	defer span.End()

	buckets, err := s.objects.ListBuckets(ctx, s.maxBuckets)
	if err != nil {
		span.RecordError(err)
		return faultResult(err), nil, nil
	}
	return jsonResult(listBucketsResponse{Buckets: buckets, Count: len(buckets)}), nil, nil
}

// ListObjects handles the list_objects MCP tool call.
func (s *Server) ListObjects(ctx context.Context, _ *mcpsdk.CallToolRequest, in ListObjectsInput) (*mcpsdk.CallToolResult, any, error) {
	ctx, span := s.span(ctx, "list_objects")
	defer span.End()

	maxKeys := in.MaxKeys
	if maxKeys == 0 {
		maxKeys = 100
	}

	objects, err := s.objects.ListObjects(ctx, in.Bucket, in.Prefix, maxKeys)
	if err != nil {
		span.RecordError(err)
		return faultResult(err), nil, nil
	}
	return jsonResult(listObjectsResponse{
		Bucket:  in.Bucket,
		Objects: objects,
		Count:   len(objects),
		Prefix:  in.Prefix,
	}), nil, nil
}

// GetObjectMetadata handles the get_object_metadata MCP tool call.
func (s *Server) GetObjectMetadata(ctx context.Context, _ *mcpsdk.CallToolRequest, in GetObjectMetadataInput) (*mcpsdk.CallToolResult, any, error) {
	ctx, span := s.span(ctx, "get_object_metadata")
	defer span.End()

	metadata, err := s.objects.GetObjectMetadata(ctx, in.Bucket, in.Key)
	if err != nil {
		span.RecordError(err)
		return faultResult(err), nil, nil
	}
	return jsonResult(objectMetadataResponse{
		Bucket:   in.Bucket,
		Key:      in.Key,
		Metadata: metadata,
	}), nil, nil
}

// SearchObjects handles the search_objects MCP tool call.
func (s *Server) SearchObjects(ctx context.Context, _ *mcpsdk.CallToolRequest, in SearchObjectsInput) (*mcpsdk.CallToolResult, any, error) {
	ctx, span := s.span(ctx, "search_objects")
	defer span.End()

	maxResults := in.MaxResults
	if maxResults <= 0 {
		maxResults = 100
	}

	objects, err := s.objects.SearchObjects(ctx, in.Bucket, in.Query, maxResults)
	if err != nil {
		span.RecordError(err)
		return faultResult(err), nil, nil
	}
	return jsonResult(searchObjectsResponse{
		Bucket:  in.Bucket,
		Query:   in.Query,
		Objects: objects,
		Count:   len(objects),
	}), nil, nil
}

// GetObjectContent handles the get_object_content MCP tool call.
func (s *Server) GetObjectContent(ctx context.Context, _ *mcpsdk.CallToolRequest, in GetObjectContentInput) (*mcpsdk.CallToolResult, any, error) {
	ctx, span := s.span(ctx, "get_object_content")
	defer span.End()

	maxSize := in.MaxSize
	if maxSize == 0 {
		maxSize = objstore.DefaultMaxContentSize
	}

	content, err := s.objects.GetObjectContent(ctx, in.Bucket, in.Key, maxSize)
	if err != nil {
		span.RecordError(err)
		return faultResult(err), nil, nil
	}
	return jsonResult(objectContentResponse{
		Bucket:      in.Bucket,
		Key:         in.Key,
		ContentType: content.ContentType,
		Content:     content.Content,
		Size:        content.Size,
	}), nil, nil
}
