package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/advisor/core"
	"github.com/poiesic/advisor/storage"
)

// RecordRepository implements storage.RecordRepository for BadgerDB.
type RecordRepository struct {
	backend *Backend
}

var _ storage.RecordRepository = (*RecordRepository)(nil)

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(backend *Backend) *RecordRepository {
	return &RecordRepository{backend: backend}
}

// Close releases resources. The backend is owned by the caller.
func (r *RecordRepository) Close() error {
	return nil
}

// PutRecords inserts or replaces records keyed by their catalog ID.
func (r *RecordRepository) PutRecords(ctx context.Context, records ...*core.EnrichedRecord) error {
	for _, rec := range records {
		if err := core.ValidateEnrichedRecord(rec); err != nil {
			return err
		}
	}
	return r.backend.update(len(records), func(tx *badger.Txn, from, to int) error {
		for _, rec := range records[from:to] {
			if err := tx.Set(makeRecordKey(rec.Key()), storage.MarshalRecord(rec)); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetRecord retrieves a single record.
func (r *RecordRepository) GetRecord(ctx context.Context, id core.ID) (*core.EnrichedRecord, error) {
	var result *core.EnrichedRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readRecord(tx, id)
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

// GetRecords retrieves multiple records, in the order of ids.
func (r *RecordRepository) GetRecords(ctx context.Context, ids ...core.ID) ([]*core.EnrichedRecord, error) {
	var result []*core.EnrichedRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			rec, err := readRecord(tx, id)
			if err != nil {
				return err
			}
			if rec != nil {
				result = append(result, rec)
			}
		}
		return nil
	}, false)
	return result, err
}

// DeleteRecords removes records.
func (r *RecordRepository) DeleteRecords(ctx context.Context, ids ...core.ID) error {
	return r.backend.update(len(ids), func(tx *badger.Txn, from, to int) error {
		for _, id := range ids[from:to] {
			if err := tx.Delete(makeRecordKey(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordIDs lists the IDs of all stored records.
func (r *RecordRepository) RecordIDs(ctx context.Context) ([]core.ID, error) {
	return r.backend.listIDs(ctx, recordPrefix)
}

func readRecord(tx *badger.Txn, id core.ID) (*core.EnrichedRecord, error) {
	item, err := tx.Get(makeRecordKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var rec *core.EnrichedRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		rec, unmarshalErr = storage.UnmarshalRecord(val)
		return unmarshalErr
	})
	return rec, err
}
