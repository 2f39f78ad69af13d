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

package storage

import (
	"context"

	"github.com/poiesic/receiptrag/core"
)

// VectorIndex answers owner-scoped nearest-neighbour queries.
type VectorIndex interface {
	// FindSimilar finds the owner's receipts similar to the given vector.
	// Returns receipts with similarity >= minSimilarity, up to limit results,
	// ordered by similarity score (highest first). Receipts without an
	// embedding never match.
	FindSimilar(ctx context.Context, ownerID string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)
}

// EmbeddingCounts is the embedding coverage of one owner's receipts.
type EmbeddingCounts struct {
	Total         int
	WithEmbedding int
	// WithoutText counts unembedded receipts that have nothing to embed.
	WithoutText int
}

// ReceiptRepository provides operations for managing receipts.
// Implementations must be thread-safe and support concurrent access.
type ReceiptRepository interface {
	VectorIndex

	// AddReceipts adds one or more receipts to storage.
	// For receipts with Id=0, generates new IDs from sequence.
	// Receipts with a non-zero Id replace any stored receipt with that Id;
	// a stored embedding is kept when the embedding text is unchanged.
	// Every receipt is validated and must have an owner.
	AddReceipts(ctx context.Context, receipts ...*core.Receipt) ([]*core.Receipt, error)

	// UpdateReceipts updates existing receipts.
	// Updates the UpdatedAt timestamp automatically. A receipt whose
	// embedding text changed loses its embedding.
	// Returns ErrNotFound if any receipt doesn't exist.
	UpdateReceipts(ctx context.Context, receipts ...*core.Receipt) ([]*core.Receipt, error)

	// SetEmbedding stores the embedding for a receipt and stamps EmbeddedAt.
	// Returns ErrNotFound if the receipt doesn't exist.
	SetEmbedding(ctx context.Context, id core.ID, vector []float32) error

	// DeleteReceipts removes receipts by their IDs.
	// Returns ErrNotFound if any receipt doesn't exist.
	DeleteReceipts(ctx context.Context, ids ...core.ID) error

	// GetReceipt retrieves a single receipt by ID.
	// Returns ErrNotFound if the receipt doesn't exist.
	GetReceipt(ctx context.Context, id core.ID) (*core.Receipt, error)

	// GetReceipts retrieves multiple receipts by their IDs.
	// Returns only the receipts that exist (no error for missing receipts).
	GetReceipts(ctx context.Context, ids ...core.ID) ([]*core.Receipt, error)

	// ListReceiptsByOwner returns all of the owner's receipts in store order.
	ListReceiptsByOwner(ctx context.Context, ownerID string) ([]*core.Receipt, error)

	// ListReceiptsWithoutEmbedding returns up to limit of the owner's receipts
	// that have no embedding, in store order. A limit <= 0 means no limit.
	ListReceiptsWithoutEmbedding(ctx context.Context, ownerID string, limit int) ([]*core.Receipt, error)

	// CountEmbeddings reports how many of the owner's receipts exist and how
	// many of them carry an embedding.
	CountEmbeddings(ctx context.Context, ownerID string) (EmbeddingCounts, error)

	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close releases resources held by the repository.
	Close() error
}
