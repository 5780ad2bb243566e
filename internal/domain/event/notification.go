// Where: internal/domain/event/notification.go
// What: Object-created notification model decoded from S3 event records.
// Why: Give the trigger layer a flat, URL-decoded view of each record.
package event

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// Notification is one object-created event. Only Bucket and Key are
// guaranteed; the rest is informational and may describe a state of the
// object that no longer exists by the time it is handled.
type Notification struct {
	EventName string
	Bucket    string
	Key       string
	EventTime time.Time
	Size      int64
	ETag      string
	VersionID string
	Sequencer string
}

// FromS3Record converts a record from the Lambda payload. Keys arrive
// form-encoded (spaces as "+"), so they are unescaped the same way.
func FromS3Record(record events.S3EventRecord) (Notification, error) {
	key, err := DecodeKey(record.S3.Object.Key)
	if err != nil {
		return Notification{}, err
	}
	bucket := strings.TrimSpace(record.S3.Bucket.Name)
	if bucket == "" {
		return Notification{}, fmt.Errorf("event record has no bucket name")
	}
	if key == "" {
		return Notification{}, fmt.Errorf("event record has no object key")
	}
	return Notification{
		EventName: record.EventName,
		Bucket:    bucket,
		Key:       key,
		EventTime: record.EventTime,
		Size:      record.S3.Object.Size,
		ETag:      record.S3.Object.ETag,
		VersionID: record.S3.Object.VersionID,
		Sequencer: record.S3.Object.Sequencer,
	}, nil
}

// DecodeKey unescapes an object key from a notification payload.
func DecodeKey(raw string) (string, error) {
	key, err := url.QueryUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("decode object key %q: %w", raw, err)
	}
	return key, nil
}

// EncodeKey is the inverse of DecodeKey, used when synthesizing events.
func EncodeKey(key string) string {
	return url.QueryEscape(key)
}

// NewS3Record builds a notification record the way S3 would send it.
// Used by the delivery harness and by tests.
func NewS3Record(bucket, key string, size int64, at time.Time) events.S3EventRecord {
	return events.S3EventRecord{
		EventVersion: "2.1",
		EventSource:  "aws:s3",
		EventTime:    at,
		EventName:    "ObjectCreated:Put",
		S3: events.S3Entity{
			SchemaVersion: "1.0",
			Bucket: events.S3Bucket{
				Name: bucket,
				Arn:  "arn:aws:s3:::" + bucket,
			},
			Object: events.S3Object{
				Key:  EncodeKey(key),
				Size: size,
			},
		},
	}
}
