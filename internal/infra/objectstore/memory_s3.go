// Where: internal/infra/objectstore/memory_s3.go
// What: GetObject/PutObject view over the in-memory store.
// Why: Run the CSV ledger's conditional writes in simulations without S3.
package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// MemoryS3 exposes a Memory through the S3 object calls, honouring
// If-Match and If-None-Match on writes the way S3 does.
type MemoryS3 struct {
	Memory *Memory
}

// S3 returns the S3-shaped view of m.
func (m *Memory) S3() MemoryS3 {
	return MemoryS3{Memory: m}
}

// GetObject returns the whole object or NoSuchKey.
func (c MemoryS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m := c.Memory
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[memoryKey(aws.ToString(params.Bucket), aws.ToString(params.Key))]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	body := append([]byte(nil), obj.body...)
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ETag:          aws.String(obj.etag),
		ContentLength: aws.Int64(int64(len(body))),
		LastModified:  aws.Time(obj.at),
	}, nil
}

// PutObject writes the object when its preconditions hold.
func (c MemoryS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	var body []byte
	if params.Body != nil {
		payload, err := io.ReadAll(params.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		body = payload
	}
	bucket := aws.ToString(params.Bucket)
	key := aws.ToString(params.Key)

	m := c.Memory
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, exists := m.objects[memoryKey(bucket, key)]
	if aws.ToString(params.IfNoneMatch) == "*" && exists {
		return nil, preconditionFailed()
	}
	if match := aws.ToString(params.IfMatch); match != "" && (!exists || prev.etag != match) {
		return nil, preconditionFailed()
	}
	sum := md5.Sum(body)
	obj := &memoryObject{
		body: body,
		etag: `"` + hex.EncodeToString(sum[:]) + `"`,
		tags: map[string]string{},
		at:   m.now(),
	}
	if exists {
		obj.version = prev.version + 1
	}
	m.objects[memoryKey(bucket, key)] = obj
	return &s3.PutObjectOutput{ETag: aws.String(obj.etag)}, nil
}

func preconditionFailed() error {
	return &smithy.GenericAPIError{
		Code:    "PreconditionFailed",
		Message: "At least one of the pre-conditions you specified did not hold",
	}
}
