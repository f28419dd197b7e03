package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/advisor/core"
	"github.com/poiesic/advisor/storage"
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

// Badger is chatty at info level; its info lines go to debug.
func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(filePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			if err := os.MkdirAll(filePath, 0755); err != nil {
				return nil, err
			}
			info, err = os.Stat(filePath)
			if err != nil {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	return open(opts)
}

// OpenExistingBackend opens a database that a previous run created.
// Returns storage.ErrIndexMissing if the directory does not exist, so that
// read-only stages never create an empty index by accident.
func OpenExistingBackend(filePath string) (*Backend, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrIndexMissing, filePath)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", filePath)
	}
	return open(badger.DefaultOptions(filePath))
}

func open(opts badger.Options) (*Backend, error) {
	logger := slog.Default().With("component", "badger")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction.
// The transaction is automatically discarded if fn returns an error.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// update runs fn in a read-write transaction and commits it. Large batches
// are split across several transactions when badger reports
// ErrTxnTooBig, so fn must be safe to call with a subset of its work.
func (b *Backend) update(keys int, fn func(tx *badger.Txn, from, to int) error) error {
	for from := 0; from < keys; {
		to := keys
		for {
			err := b.WithTx(func(tx *badger.Txn) error {
				if err := fn(tx, from, to); err != nil {
					return err
				}
				return tx.Commit()
			}, true)
			if errors.Is(err, badger.ErrTxnTooBig) && to-from > 1 {
				to = from + (to-from)/2
				continue
			}
			if err != nil {
				return err
			}
			break
		}
		from = to
	}
	return nil
}

// scanPrefix iterates every key under prefix, calling fn with the value.
// The context is checked between keys.
func (b *Backend) scanPrefix(ctx context.Context, prefix []byte, withValues bool, fn func(key, val []byte) error) error {
	return b.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = withValues
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			key := item.KeyCopy(nil)
			if !withValues {
				if err := fn(key, nil); err != nil {
					return err
				}
				continue
			}
			err := item.Value(func(val []byte) error {
				return fn(key, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// FindSimilar scans every stored vector and returns the best matches by
// inner product. Vectors must be unit length for the score to be the cosine
// similarity.
func (b *Backend) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.QueryResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	results := []core.QueryResult{}

	err := b.scanPrefix(ctx, []byte(vectorPrefix), true, func(_, val []byte) error {
		stored, err := storage.UnmarshalVector(val)
		if err != nil {
			return err
		}
		if len(stored.Vector) == 0 {
			return nil
		}
		if len(stored.Vector) != len(vector) {
			return fmt.Errorf("%w: index has %d, query has %d",
				storage.ErrDimensionMismatch, len(stored.Vector), len(vector))
		}

		similarity := dotProduct(vector, stored.Vector)
		if similarity >= minSimilarity {
			results = append(results, core.QueryResult{
				RecordID:  stored.RecordID,
				CatalogID: stored.CatalogID,
				Score:     similarity,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	storage.SortResults(results)

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := min(len(a), len(b))
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
