package store

import (
	"context"
	"errors"
	"strings"
)

// MaxBatchOps is the largest number of writes a single batch may carry
const MaxBatchOps = 500

// ErrNotFound is returned by Get when the document does not exist
var ErrNotFound = errors.New("document not found")

// DocumentStore is a hierarchical document database. Paths alternate
// collection and document ids: "seasons/s1/start/1001".
type DocumentStore interface {
	Get(ctx context.Context, path string) (map[string]interface{}, error)
	Set(ctx context.Context, path string, data map[string]interface{}, merge bool) error
	// GetAll returns every document directly inside collection keyed by id
	GetAll(ctx context.Context, collection string) (map[string]map[string]interface{}, error)
	// ListCollections returns the ids of the subcollections under a document
	ListCollections(ctx context.Context, docPath string) ([]string, error)
	QueryEqual(ctx context.Context, collection, field string, value interface{}) (map[string]map[string]interface{}, error)
	NewBatch() WriteBatch
	Close() error
}

// WriteBatch groups writes that are committed atomically
type WriteBatch interface {
	Set(path string, data map[string]interface{}, merge bool)
	Len() int
	Commit(ctx context.Context) error
}

// Join builds a document or collection path from its segments
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}
