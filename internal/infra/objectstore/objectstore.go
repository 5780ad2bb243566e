// Where: internal/infra/objectstore/objectstore.go
// What: Object store port used by the Ledger Handler.
// Why: Fetch the current object behind an event pointer without binding the handler to S3.
package objectstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the object no longer exists.
var ErrNotFound = errors.New("object not found")

// Object is the current state of an object as seen at fetch time.
type Object struct {
	Bucket       string
	Key          string
	ETag         string
	VersionID    string
	Size         int64
	LastModified time.Time
	// Head holds at most the requested number of leading bytes.
	Head []byte
}

// Store is what the handler needs from the bucket: read, and the optional
// tagging write. There is deliberately no delete.
type Store interface {
	Fetch(ctx context.Context, bucket, key string, limit int64) (Object, error)
	Tag(ctx context.Context, bucket, key string, tags map[string]string) error
}
