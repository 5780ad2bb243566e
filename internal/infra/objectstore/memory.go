// Where: internal/infra/objectstore/memory.go
// What: In-memory object store.
// Why: Back the delivery simulation and handler tests without S3.
package objectstore

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	body    []byte
	etag    string
	version int
	tags    map[string]string
	at      time.Time
}

// Memory is a concurrency-safe Store kept in process memory.
type Memory struct {
	mu      sync.Mutex
	objects map[string]*memoryObject
	now     func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{objects: map[string]*memoryObject{}, now: time.Now}
}

func memoryKey(bucket, key string) string {
	return bucket + "/" + key
}

// Put writes or overwrites an object.
func (m *Memory) Put(bucket, key string, body []byte) Object {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := md5.Sum(body)
	prev := m.objects[memoryKey(bucket, key)]
	obj := &memoryObject{
		body: append([]byte(nil), body...),
		etag: `"` + hex.EncodeToString(sum[:]) + `"`,
		tags: map[string]string{},
		at:   m.now(),
	}
	if prev != nil {
		obj.version = prev.version + 1
	}
	m.objects[memoryKey(bucket, key)] = obj
	return Object{Bucket: bucket, Key: key, ETag: obj.etag, Size: int64(len(body)), LastModified: obj.at}
}

// Delete removes an object. Simulations use it to model deletion between
// event emission and handler fetch.
func (m *Memory) Delete(bucket, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, memoryKey(bucket, key))
}

// Keys lists the object keys of a bucket in lexical order.
func (m *Memory) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := bucket + "/"
	var keys []string
	for k := range m.objects {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			keys = append(keys, rest)
		}
	}
	sort.Strings(keys)
	return keys
}

// Fetch implements Store.
func (m *Memory) Fetch(_ context.Context, bucket, key string, limit int64) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[memoryKey(bucket, key)]
	if !ok {
		return Object{}, fmt.Errorf("get %s/%s: %w", bucket, key, ErrNotFound)
	}
	head := obj.body
	if limit > 0 && int64(len(head)) > limit {
		head = head[:limit]
	}
	return Object{
		Bucket:       bucket,
		Key:          key,
		ETag:         obj.etag,
		VersionID:    fmt.Sprintf("v%d", obj.version),
		Size:         int64(len(obj.body)),
		LastModified: obj.at,
		Head:         append([]byte(nil), head...),
	}, nil
}

// Tag implements Store.
func (m *Memory) Tag(_ context.Context, bucket, key string, tags map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[memoryKey(bucket, key)]
	if !ok {
		return fmt.Errorf("tag %s/%s: %w", bucket, key, ErrNotFound)
	}
	for k, v := range tags {
		obj.tags[k] = v
	}
	return nil
}

// Tags returns a copy of an object's tags.
func (m *Memory) Tags(bucket, key string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	if obj, ok := m.objects[memoryKey(bucket, key)]; ok {
		for k, v := range obj.tags {
			out[k] = v
		}
	}
	return out
}
