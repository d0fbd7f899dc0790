package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// MemStore keeps objects in memory. It backs tests and local dry runs.
//
// PendingPolls makes each copy report CopyPending that many times before it
// lands, mimicking an asynchronous store-side copy. FailCopies makes every
// copy end in CopyFailed.
type MemStore struct {
	PendingPolls int
	FailCopies   bool

	mu      sync.Mutex
	objects map[Ref]*memObject
	copies  map[Ref]*memCopy
}

type memObject struct {
	data []byte
	tags map[string]string
}

type memCopy struct {
	src     Ref
	pending int
}

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		objects: make(map[Ref]*memObject),
		copies:  make(map[Ref]*memCopy),
	}
}

// PutBytes stores data at bucket/key with optional tags.
func (s *MemStore) PutBytes(bucket, key string, data []byte, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[Ref{bucket, key}] = &memObject{data: bytes.Clone(data), tags: cloneTags(tags)}
}

// Bytes returns a copy of the object's content.
func (s *MemStore) Bytes(bucket, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[Ref{bucket, key}]
	if !ok {
		return nil, false
	}
	return bytes.Clone(obj.data), true
}

// Keys returns every key in bucket under prefix, sorted.
func (s *MemStore) Keys(bucket, prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for ref := range s.objects {
		if ref.Bucket == bucket && strings.HasPrefix(ref.Key, prefix) {
			keys = append(keys, ref.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (s *MemStore) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var objects []Object
	for ref, obj := range s.objects {
		if ref.Bucket == bucket && strings.HasPrefix(ref.Key, prefix) {
			objects = append(objects, Object{Key: ref.Key, Size: int64(len(obj.data))})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (s *MemStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := s.Bytes(bucket, key)
	if !ok {
		return nil, wrapError(CodeObjectNotFound, false, fmt.Errorf("%s/%s", bucket, key))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemStore) Put(ctx context.Context, bucket, key string, r io.Reader, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return wrapError(CodeWriteFailed, true, err)
	}
	s.PutBytes(bucket, key, data, nil)
	return nil
}

func (s *MemStore) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := Ref{bucket, key}
	if _, ok := s.objects[ref]; !ok {
		return wrapError(CodeObjectNotFound, false, fmt.Errorf("%s", ref))
	}
	delete(s.objects, ref)
	return nil
}

func (s *MemStore) Tags(ctx context.Context, bucket, key string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[Ref{bucket, key}]
	if !ok {
		return nil, wrapError(CodeObjectNotFound, false, fmt.Errorf("%s/%s", bucket, key))
	}
	return cloneTags(obj.tags), nil
}

func (s *MemStore) StartCopy(ctx context.Context, src, dst Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[src]; !ok {
		return wrapError(CodeObjectNotFound, false, fmt.Errorf("%s", src))
	}
	s.copies[dst] = &memCopy{src: src, pending: s.PendingPolls}
	return nil
}

func (s *MemStore) CopyStatus(ctx context.Context, dst Ref) (CopyState, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, ok := s.copies[dst]
	if !ok {
		if _, exists := s.objects[dst]; exists {
			return CopySuccess, nil
		}
		return "", wrapError(CodeObjectNotFound, false, fmt.Errorf("no copy targets %s", dst))
	}
	if s.FailCopies {
		delete(s.copies, dst)
		return CopyFailed, nil
	}
	if cp.pending > 0 {
		cp.pending--
		return CopyPending, nil
	}

	src, ok := s.objects[cp.src]
	if !ok {
		delete(s.copies, dst)
		return CopyAborted, nil
	}
	s.objects[dst] = &memObject{data: bytes.Clone(src.data), tags: cloneTags(src.tags)}
	delete(s.copies, dst)
	return CopySuccess, nil
}

func cloneTags(tags map[string]string) map[string]string {
	if tags == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}
