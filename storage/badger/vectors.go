package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/advisor/core"
	"github.com/poiesic/advisor/storage"
)

// VectorRepository implements storage.VectorIndex for BadgerDB.
type VectorRepository struct {
	backend *Backend
}

var _ storage.VectorIndex = (*VectorRepository)(nil)

// NewVectorRepository creates a new VectorRepository.
func NewVectorRepository(backend *Backend) *VectorRepository {
	return &VectorRepository{backend: backend}
}

// Close releases resources. The backend is owned by the caller.
func (r *VectorRepository) Close() error {
	return nil
}

// FindSimilar delegates to the backend.
func (r *VectorRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.QueryResult, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// PutVectors inserts or replaces vectors.
func (r *VectorRepository) PutVectors(ctx context.Context, vectors ...*core.EmbeddingVector) error {
	for _, v := range vectors {
		if err := core.ValidateVector(v); err != nil {
			return err
		}
	}
	return r.backend.update(len(vectors), func(tx *badger.Txn, from, to int) error {
		for _, v := range vectors[from:to] {
			if err := tx.Set(makeVectorKey(v.RecordID), storage.MarshalVector(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetVector retrieves a single vector by record ID.
func (r *VectorRepository) GetVector(ctx context.Context, id core.ID) (*core.EmbeddingVector, error) {
	var result *core.EmbeddingVector
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readVector(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetVectors retrieves the vectors that exist for the given IDs.
func (r *VectorRepository) GetVectors(ctx context.Context, ids ...core.ID) ([]*core.EmbeddingVector, error) {
	var result []*core.EmbeddingVector
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			v, err := readVector(tx, id)
			if err != nil {
				return err
			}
			if v != nil {
				result = append(result, v)
			}
		}
		return nil
	}, false)
	return result, err
}

// DeleteVectors removes vectors by record ID.
func (r *VectorRepository) DeleteVectors(ctx context.Context, ids ...core.ID) error {
	return r.backend.update(len(ids), func(tx *badger.Txn, from, to int) error {
		for _, id := range ids[from:to] {
			if err := tx.Delete(makeVectorKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// VectorIDs lists the record IDs of all stored vectors.
func (r *VectorRepository) VectorIDs(ctx context.Context) ([]core.ID, error) {
	return r.backend.listIDs(ctx, vectorPrefix)
}

// CountVectors returns the number of stored vectors.
func (r *VectorRepository) CountVectors(ctx context.Context) (int, error) {
	ids, err := r.VectorIDs(ctx)
	return len(ids), err
}

func readVector(tx *badger.Txn, id core.ID) (*core.EmbeddingVector, error) {
	item, err := tx.Get(makeVectorKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var v *core.EmbeddingVector
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		v, unmarshalErr = storage.UnmarshalVector(val)
		return unmarshalErr
	})
	return v, err
}

// listIDs returns the IDs of every key under prefix, in key order.
func (b *Backend) listIDs(ctx context.Context, prefix string) ([]core.ID, error) {
	ids := []core.ID{}
	err := b.scanPrefix(ctx, []byte(prefix), false, func(key, _ []byte) error {
		if id, ok := idFromKey(prefix, key); ok {
			ids = append(ids, id)
		}
		return nil
	})
	return ids, err
}
