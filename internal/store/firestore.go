package store

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// FirestoreStore is the production DocumentStore
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore connects to Firestore. When FIRESTORE_EMULATOR_HOST is set
// the client talks to the emulator without credentials.
func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	switch {
	case os.Getenv("FIRESTORE_EMULATOR_HOST") != "":
		opts = append(opts, option.WithoutAuthentication())
	case credentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.Info().
		Str("project_id", projectID).
		Bool("emulator", os.Getenv("FIRESTORE_EMULATOR_HOST") != "").
		Msg("Connected to Firestore")

	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) doc(path string) (*firestore.DocumentRef, error) {
	ref := s.client.Doc(path)
	if ref == nil {
		return nil, fmt.Errorf("invalid document path %q", path)
	}
	return ref, nil
}

// Get reads one document
func (s *FirestoreStore) Get(ctx context.Context, path string) (map[string]interface{}, error) {
	ref, err := s.doc(path)
	if err != nil {
		return nil, err
	}
	snap, err := ref.Get(ctx)
	if snap != nil && !snap.Exists() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return snap.Data(), nil
}

// Set writes one document
func (s *FirestoreStore) Set(ctx context.Context, path string, data map[string]interface{}, merge bool) error {
	ref, err := s.doc(path)
	if err != nil {
		return err
	}
	if merge {
		_, err = ref.Set(ctx, data, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, data)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// GetAll reads every document of a collection
func (s *FirestoreStore) GetAll(ctx context.Context, collection string) (map[string]map[string]interface{}, error) {
	col := s.client.Collection(collection)
	if col == nil {
		return nil, fmt.Errorf("invalid collection path %q", collection)
	}
	return drain(col.Documents(ctx))
}

// ListCollections lists the subcollection ids of a document
func (s *FirestoreStore) ListCollections(ctx context.Context, docPath string) ([]string, error) {
	ref, err := s.doc(docPath)
	if err != nil {
		return nil, err
	}

	var ids []string
	iter := ref.Collections(ctx)
	for {
		col, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list collections of %s: %w", docPath, err)
		}
		ids = append(ids, col.ID)
	}
	return ids, nil
}

// QueryEqual runs a single equality filter
func (s *FirestoreStore) QueryEqual(ctx context.Context, collection, field string, value interface{}) (map[string]map[string]interface{}, error) {
	col := s.client.Collection(collection)
	if col == nil {
		return nil, fmt.Errorf("invalid collection path %q", collection)
	}
	return drain(col.Where(field, "==", value).Documents(ctx))
}

func drain(iter *firestore.DocumentIterator) (map[string]map[string]interface{}, error) {
	defer iter.Stop()

	out := make(map[string]map[string]interface{})
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate documents: %w", err)
		}
		out[snap.Ref.ID] = snap.Data()
	}
	return out, nil
}

// NewBatch starts a Firestore write batch
func (s *FirestoreStore) NewBatch() WriteBatch {
	return &firestoreBatch{client: s.client, batch: s.client.Batch()}
}

// Close releases the client
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

type firestoreBatch struct {
	client *firestore.Client
	batch  *firestore.WriteBatch
	n      int
	err    error
}

func (b *firestoreBatch) Set(path string, data map[string]interface{}, merge bool) {
	ref := b.client.Doc(path)
	if ref == nil {
		if b.err == nil {
			b.err = fmt.Errorf("invalid document path %q", path)
		}
		return
	}
	if merge {
		b.batch.Set(ref, data, firestore.MergeAll)
	} else {
		b.batch.Set(ref, data)
	}
	b.n++
}

func (b *firestoreBatch) Len() int {
	return b.n
}

func (b *firestoreBatch) Commit(ctx context.Context) error {
	if b.err != nil {
		return b.err
	}
	if _, err := b.batch.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch of %d writes: %w", b.n, err)
	}
	return nil
}
