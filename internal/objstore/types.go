package objstore

// Bucket is one entry in a bucket listing.
type Bucket struct {
	Name         string `json:"name"`
	CreationDate string `json:"creation_date"`
}

// ObjectSummary is a read-only projection of one listed object. It is never
// cached beyond the call that produced it.
type ObjectSummary struct {
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
	StorageClass string `json:"storage_class"`
}

// ObjectMetadata is the head-object projection: what the store reports about
// an object without downloading it.
type ObjectMetadata struct {
	ContentType   string `json:"content_type"`
	ContentLength int64  `json:"content_length"`
	LastModified  string `json:"last_modified"`
	ETag          string `json:"etag"`
}

// ObjectContent is the result of a bounded text-content retrieval.
type ObjectContent struct {
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
	Size        int    `json:"size"`
}
