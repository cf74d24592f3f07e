package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process DocumentStore used for local runs and tests
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]interface{}

	// FailCommits makes every batch commit fail, for exercising storage errors
	FailCommits bool
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]interface{})}
}

// Get returns a copy of the document at path
func (m *MemoryStore) Get(ctx context.Context, path string) (map[string]interface{}, error) {
	if err := validateDocPath(path); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return copyDoc(doc), nil
}

// Set writes a document, merging into the existing one when merge is true
func (m *MemoryStore) Set(ctx context.Context, path string, data map[string]interface{}, merge bool) error {
	if err := validateDocPath(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(path, data, merge)
	return nil
}

func (m *MemoryStore) setLocked(path string, data map[string]interface{}, merge bool) {
	existing, ok := m.docs[path]
	if !merge || !ok {
		m.docs[path] = copyDoc(data)
		return
	}
	mergeInto(existing, data)
}

// GetAll returns the documents directly under collection
func (m *MemoryStore) GetAll(ctx context.Context, collection string) (map[string]map[string]interface{}, error) {
	prefix := collection + "/"
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]map[string]interface{})
	for path, doc := range m.docs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		out[rest] = copyDoc(doc)
	}
	return out, nil
}

// ListCollections returns the sorted subcollection ids under docPath.
// Like Firestore, a subcollection is listed even if its parent document was never written.
func (m *MemoryStore) ListCollections(ctx context.Context, docPath string) ([]string, error) {
	prefix := docPath + "/"
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for path := range m.docs {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok {
			continue
		}
		id, _, _ := strings.Cut(rest, "/")
		seen[id] = true
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// QueryEqual returns documents in collection whose field equals value
func (m *MemoryStore) QueryEqual(ctx context.Context, collection, field string, value interface{}) (map[string]map[string]interface{}, error) {
	all, err := m.GetAll(ctx, collection)
	if err != nil {
		return nil, err
	}
	for id, doc := range all {
		if doc[field] != value {
			delete(all, id)
		}
	}
	return all, nil
}

// NewBatch starts a write batch
func (m *MemoryStore) NewBatch() WriteBatch {
	return &memoryBatch{store: m}
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}

// Len returns the number of stored documents
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

type memoryWrite struct {
	path  string
	data  map[string]interface{}
	merge bool
}

type memoryBatch struct {
	store  *MemoryStore
	writes []memoryWrite
}

func (b *memoryBatch) Set(path string, data map[string]interface{}, merge bool) {
	b.writes = append(b.writes, memoryWrite{path: path, data: copyDoc(data), merge: merge})
}

func (b *memoryBatch) Len() int {
	return len(b.writes)
}

func (b *memoryBatch) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(b.writes) > MaxBatchOps {
		return fmt.Errorf("batch has %d writes, limit is %d", len(b.writes), MaxBatchOps)
	}
	for _, w := range b.writes {
		if err := validateDocPath(w.path); err != nil {
			return err
		}
	}

	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	if b.store.FailCommits {
		return fmt.Errorf("commit rejected")
	}
	for _, w := range b.writes {
		b.store.setLocked(w.path, w.data, w.merge)
	}
	return nil
}

func validateDocPath(path string) error {
	segments := strings.Split(path, "/")
	if len(segments)%2 != 0 {
		return fmt.Errorf("invalid document path %q", path)
	}
	for _, s := range segments {
		if s == "" {
			return fmt.Errorf("invalid document path %q", path)
		}
	}
	return nil
}

func copyDoc(doc map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		if nested, ok := v.(map[string]interface{}); ok {
			v = copyDoc(nested)
		}
		out[k] = v
	}
	return out
}

// mergeInto applies Firestore MergeAll semantics: nested maps merge key by key
func mergeInto(dst, src map[string]interface{}) {
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]interface{})
		dstMap, dstIsMap := dst[k].(map[string]interface{})
		if srcIsMap && dstIsMap {
			mergeInto(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			v = copyDoc(srcMap)
		}
		dst[k] = v
	}
}
