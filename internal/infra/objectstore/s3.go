// Where: internal/infra/objectstore/s3.go
// What: S3-backed object store.
// Why: Read invoice headers with a ranged GET and tag processed objects.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	GetObjectTagging(ctx context.Context, params *s3.GetObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error)
	PutObjectTagging(ctx context.Context, params *s3.PutObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error)
}

var _ S3API = (*s3.Client)(nil)

// S3Store implements Store on S3.
type S3Store struct {
	Client S3API
}

// NewS3 wraps an S3 client.
func NewS3(client S3API) *S3Store {
	return &S3Store{Client: client}
}

// Fetch reads object metadata and up to limit leading bytes.
func (s *S3Store) Fetch(ctx context.Context, bucket, key string, limit int64) (Object, error) {
	if s == nil || s.Client == nil {
		return Object{}, fmt.Errorf("s3 client is nil")
	}
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if limit > 0 {
		input.Range = aws.String(fmt.Sprintf("bytes=0-%d", limit-1))
	}

	resp, err := s.Client.GetObject(ctx, input)
	if err != nil {
		if IsNotFound(err) {
			return Object{}, fmt.Errorf("get %s/%s: %w", bucket, key, ErrNotFound)
		}
		if apiCode(err) == "InvalidRange" {
			// Zero-length object: a range cannot be satisfied.
			return Object{Bucket: bucket, Key: key}, nil
		}
		return Object{}, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	defer resp.Body.Close()

	reader := io.Reader(resp.Body)
	if limit > 0 {
		reader = io.LimitReader(resp.Body, limit)
	}
	head, err := io.ReadAll(reader)
	if err != nil {
		return Object{}, fmt.Errorf("read %s/%s: %w", bucket, key, err)
	}

	obj := Object{
		Bucket:    bucket,
		Key:       key,
		ETag:      aws.ToString(resp.ETag),
		VersionID: aws.ToString(resp.VersionId),
		Size:      aws.ToInt64(resp.ContentLength),
		Head:      head,
	}
	if resp.LastModified != nil {
		obj.LastModified = *resp.LastModified
	}
	return obj, nil
}

// Tag merges tags into the object's existing tag set. S3 replaces the whole
// set on write, so the current tags are read first.
func (s *S3Store) Tag(ctx context.Context, bucket, key string, tags map[string]string) error {
	if s == nil || s.Client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	merged := map[string]string{}
	current, err := s.Client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if IsNotFound(err) {
			return fmt.Errorf("tag %s/%s: %w", bucket, key, ErrNotFound)
		}
		return fmt.Errorf("get tags %s/%s: %w", bucket, key, err)
	}
	for _, tag := range current.TagSet {
		merged[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	for k, v := range tags {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tagSet := make([]s3types.Tag, 0, len(keys))
	for _, k := range keys {
		tagSet = append(tagSet, s3types.Tag{Key: aws.String(k), Value: aws.String(merged[k])})
	}

	_, err = s.Client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:  aws.String(bucket),
		Key:     aws.String(key),
		Tagging: &s3types.Tagging{TagSet: tagSet},
	})
	if err != nil {
		return fmt.Errorf("put tags %s/%s: %w", bucket, key, err)
	}
	return nil
}

// IsNotFound recognizes the ways S3 reports a missing object.
func IsNotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *s3types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	switch apiCode(err) {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

func apiCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
