// Package objstore is the object-store boundary: listing keys under a prefix
// and streaming object bodies. Client talks to S3 or any S3-compatible
// endpoint; MemStore is an in-memory stand-in for tests and benchmarks.
package objstore

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// Lister enumerates object keys. fn is called once per object, in listing
// order, as pages arrive; a non-nil error from fn stops the listing and is
// returned.
type Lister interface {
	List(ctx context.Context, bucket, prefix string, fn func(ObjectInfo) error) error
}

// Getter opens an object body for streaming. The caller must close it.
type Getter interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Store is both a Lister and a Getter.
type Store interface {
	Lister
	Getter
}

// ParseS3URI splits "s3://bucket/prefix" into bucket and prefix.
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(uri, "s3://") {
		return "", "", errors.New("invalid S3 URI: must start with s3://")
	}

	path := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(path, "/", 2)
	if parts[0] == "" {
		return "", "", errors.New("invalid S3 URI: missing bucket name")
	}

	bucket = parts[0]
	if len(parts) == 2 {
		prefix = parts[1]
	}
	return bucket, prefix, nil
}
