// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/receiptrag/core"
	"github.com/poiesic/receiptrag/storage"
)

// ReceiptRepository implements storage.ReceiptRepository for BadgerDB.
//
// Besides the primary record it maintains owner-scoped indexes over all of an
// owner's receipts, over the receipts still waiting for an embedding, and over
// the unembedded receipts that have no text to embed. A receipt leaves the
// blank index for the pending one when an update gives it text. All indexes
// are keyed by big-endian ID, which gives a stable store order.
type ReceiptRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ReceiptRepository = (*ReceiptRepository)(nil)

// NewReceiptRepository creates a new ReceiptRepository.
func NewReceiptRepository(backend *Backend) (*ReceiptRepository, error) {
	idSeq, err := backend.GetSequence(receiptIDSeq)
	if err != nil {
		return nil, err
	}

	return &ReceiptRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *ReceiptRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *ReceiptRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddReceipts adds one or more receipts to storage. A receipt with a non-zero
// ID replaces the stored record with that ID, which must have the same owner.
// Moving a receipt to another owner goes through UpdateReceipts.
func (r *ReceiptRepository) AddReceipts(ctx context.Context, receipts ...*core.Receipt) ([]*core.Receipt, error) {
	for _, receipt := range receipts {
		if err := core.ValidateReceipt(receipt); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, receipt := range receipts {
			if receipt.Id == 0 {
				id, err := r.nextID()
				if err != nil {
					return err
				}
				receipt.Id = id
			} else {
				old, err := readReceipt(tx, makeReceiptKey(receipt.Id))
				if err != nil {
					return err
				}
				if old != nil {
					if old.OwnerID != receipt.OwnerID {
						return fmt.Errorf("%w: receipt %d", storage.ErrOwnerMismatch, receipt.Id)
					}
					receipt.InsertedAt = old.InsertedAt
					carryEmbedding(old, receipt)
					if err := deleteIndexes(tx, old); err != nil {
						return err
					}
				}
			}

			if receipt.InsertedAt.IsZero() {
				receipt.InsertedAt = now
			}
			receipt.UpdatedAt = now

			if err := writeReceipt(tx, receipt); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return receipts, nil
}

// UpdateReceipts updates existing receipts.
func (r *ReceiptRepository) UpdateReceipts(ctx context.Context, receipts ...*core.Receipt) ([]*core.Receipt, error) {
	for _, receipt := range receipts {
		if err := core.ValidateReceipt(receipt); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, receipt := range receipts {
			old, err := readReceipt(tx, makeReceiptKey(receipt.Id))
			if err != nil {
				return err
			}
			if old == nil {
				return fmt.Errorf("%w: receipt %d", storage.ErrNotFound, receipt.Id)
			}

			receipt.InsertedAt = old.InsertedAt
			receipt.UpdatedAt = now
			carryEmbedding(old, receipt)

			if err := deleteIndexes(tx, old); err != nil {
				return err
			}
			if err := writeReceipt(tx, receipt); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	return receipts, nil
}

// SetEmbedding stores the embedding for a receipt.
func (r *ReceiptRepository) SetEmbedding(ctx context.Context, id core.ID, vector []float32) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		receipt, err := readReceipt(tx, makeReceiptKey(id))
		if err != nil {
			return err
		}
		if receipt == nil {
			return fmt.Errorf("%w: receipt %d", storage.ErrNotFound, id)
		}

		now := time.Now().UTC()
		receipt.Vector = vector
		receipt.UpdatedAt = now
		receipt.EmbeddedAt = now
		if len(vector) == 0 {
			receipt.EmbeddedAt = time.Time{}
		}

		if err := deleteIndexes(tx, receipt); err != nil {
			return err
		}
		if err := writeReceipt(tx, receipt); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// DeleteReceipts removes receipts by their IDs.
func (r *ReceiptRepository) DeleteReceipts(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeReceiptKey(id)
			receipt, err := readReceipt(tx, key)
			if err != nil {
				return err
			}
			if receipt == nil {
				return fmt.Errorf("%w: receipt %d", storage.ErrNotFound, id)
			}

			if err := deleteIndexes(tx, receipt); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetReceipt retrieves a single receipt by ID.
func (r *ReceiptRepository) GetReceipt(ctx context.Context, id core.ID) (*core.Receipt, error) {
	var result *core.Receipt
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readReceipt(tx, makeReceiptKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: receipt %d", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// GetReceipts retrieves multiple receipts by their IDs.
func (r *ReceiptRepository) GetReceipts(ctx context.Context, ids ...core.ID) ([]*core.Receipt, error) {
	var result []*core.Receipt
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			receipt, err := readReceipt(tx, makeReceiptKey(id))
			if err != nil {
				return err
			}
			if receipt != nil {
				result = append(result, receipt)
			}
		}
		return nil
	}, false)
	return result, err
}

// ListReceiptsByOwner returns all of the owner's receipts in store order.
func (r *ReceiptRepository) ListReceiptsByOwner(ctx context.Context, ownerID string) ([]*core.Receipt, error) {
	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	var results []*core.Receipt
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanIndex(tx, makeOwnerIndexPrefix(ownerID), func(receipt *core.Receipt) bool {
			results = append(results, receipt)
			return true
		})
	}, false)
	return results, err
}

// ListReceiptsWithoutEmbedding returns up to limit of the owner's unembedded
// receipts. Receipts with no text to embed are not listed.
func (r *ReceiptRepository) ListReceiptsWithoutEmbedding(ctx context.Context, ownerID string, limit int) ([]*core.Receipt, error) {
	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	var results []*core.Receipt
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanIndex(tx, makePendingIndexPrefix(ownerID), func(receipt *core.Receipt) bool {
			results = append(results, receipt)
			return limit <= 0 || len(results) < limit
		})
	}, false)
	return results, err
}

// CountEmbeddings reports the embedding coverage of the owner's receipts.
func (r *ReceiptRepository) CountEmbeddings(ctx context.Context, ownerID string) (storage.EmbeddingCounts, error) {
	var counts storage.EmbeddingCounts
	if err := checkOwner(ownerID); err != nil {
		return counts, err
	}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		total := countKeys(tx, makeOwnerIndexPrefix(ownerID))
		pending := countKeys(tx, makePendingIndexPrefix(ownerID))
		blank := countKeys(tx, makeBlankIndexPrefix(ownerID))
		counts.Total = total
		counts.WithEmbedding = total - pending - blank
		counts.WithoutText = blank
		return nil
	}, false)
	return counts, err
}

// FindSimilar finds the owner's receipts similar to the given vector.
// Stored vectors are normalized, so the dot product is the cosine similarity.
func (r *ReceiptRepository) FindSimilar(ctx context.Context, ownerID string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	var results []*core.SearchResult

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanIndex(tx, makeOwnerIndexPrefix(ownerID), func(receipt *core.Receipt) bool {
			// Skip receipts without embeddings or from another model
			if len(receipt.Vector) == 0 || len(receipt.Vector) != len(vector) {
				return true
			}
			similarity := dotProduct(vector, receipt.Vector)
			if similarity >= minSimilarity {
				results = append(results, &core.SearchResult{
					Receipt: receipt,
					Score:   similarity,
					Source:  core.SourceVector,
				})
			}
			return ctx.Err() == nil
		})
	}, false)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// Helper methods

// nextID draws the next ID from the sequence.
func (r *ReceiptRepository) nextID() (core.ID, error) {
	nextID, err := r.idSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		nextID, err = r.idSeq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(nextID), nil
}

// carryEmbedding mutates next so that a stored embedding survives an update
// that leaves the embedding text alone, and is dropped when the text changed.
func carryEmbedding(old, next *core.Receipt) {
	if old.EmbeddingText() != next.EmbeddingText() {
		next.Vector = nil
		next.EmbeddedAt = time.Time{}
		return
	}
	if !next.HasEmbedding() {
		next.Vector = old.Vector
		next.EmbeddedAt = old.EmbeddedAt
	}
}

// readReceipt reads a receipt from the transaction.
// Returns nil without error when the key is absent.
func readReceipt(tx *badger.Txn, key []byte) (*core.Receipt, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var receipt *core.Receipt
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		receipt, unmarshalErr = storage.UnmarshalReceipt(val)
		return unmarshalErr
	})
	return receipt, err
}

// writeReceipt stores the primary record and its index entries.
func writeReceipt(tx *badger.Txn, receipt *core.Receipt) error {
	if err := tx.Set(makeReceiptKey(receipt.Id), storage.MarshalReceipt(receipt)); err != nil {
		return err
	}
	if err := tx.Set(makeOwnerIndexKey(receipt.OwnerID, receipt.Id), storage.MarshalID(receipt.Id)); err != nil {
		return err
	}
	if receipt.HasEmbedding() {
		return nil
	}
	key := makePendingIndexKey(receipt.OwnerID, receipt.Id)
	if receipt.EmbeddingText() == "" {
		key = makeBlankIndexKey(receipt.OwnerID, receipt.Id)
	}
	return tx.Set(key, storage.MarshalID(receipt.Id))
}

// deleteIndexes removes the index entries for a stored receipt.
func deleteIndexes(tx *badger.Txn, receipt *core.Receipt) error {
	for _, key := range [][]byte{
		makeOwnerIndexKey(receipt.OwnerID, receipt.Id),
		makePendingIndexKey(receipt.OwnerID, receipt.Id),
		makeBlankIndexKey(receipt.OwnerID, receipt.Id),
	} {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// scanIndex walks an index prefix in key order and resolves each entry to its
// receipt. Iteration stops when fn returns false.
func scanIndex(tx *badger.Txn, prefix []byte, fn func(*core.Receipt) bool) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		key := iter.Item().Key()
		if len(key) < len(prefix)+8 {
			return storage.ErrTruncatedData
		}
		id := core.ID(binary.BigEndian.Uint64(key[len(key)-8:]))

		receipt, err := readReceipt(tx, makeReceiptKey(id))
		if err != nil {
			return err
		}
		if receipt == nil {
			continue
		}
		if !fn(receipt) {
			break
		}
	}
	return nil
}

// countKeys counts the keys under prefix without reading values.
func countKeys(tx *badger.Txn, prefix []byte) int {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	count := 0
	for iter.Rewind(); iter.Valid(); iter.Next() {
		count++
	}
	return count
}

func checkOwner(ownerID string) error {
	if err := core.ValidateOwnerID(ownerID); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	return nil
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
