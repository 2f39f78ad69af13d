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

package receiptrag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/receiptrag/core"
	"github.com/poiesic/receiptrag/storage"
	"github.com/poiesic/receiptrag/storage/qdrant"
)

// vectorMirror is an external copy of the stored embeddings. The record
// store stays authoritative; the mirror only ranks.
type vectorMirror interface {
	storage.VectorIndex
	UpsertReceipt(ctx context.Context, receipt *core.Receipt) error
	DeleteReceipt(ctx context.Context, id core.ID) error
	Close() error
}

var _ vectorMirror = (*qdrant.Store)(nil)

// mirroredIndex ranks with the mirror and answers with the record store.
// Hits whose record is gone, changed owner or lost its embedding are dropped,
// and the rest carry the current record instead of the mirrored payload.
type mirroredIndex struct {
	mirror storage.VectorIndex
	repo   storage.ReceiptRepository
	logger *slog.Logger
}

var _ storage.VectorIndex = (*mirroredIndex)(nil)

func (m *mirroredIndex) FindSimilar(ctx context.Context, ownerID string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	hits, err := m.mirror.FindSimilar(ctx, ownerID, vector, minSimilarity, limit)
	if err != nil || len(hits) == 0 {
		return hits, err
	}

	ids := make([]core.ID, len(hits))
	for i, hit := range hits {
		ids[i] = hit.Receipt.Id
	}
	records, err := m.repo.GetReceipts(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to load mirrored receipts: %w", err)
	}
	current := make(map[core.ID]*core.Receipt, len(records))
	for _, r := range records {
		current[r.Id] = r
	}

	results := make([]*core.SearchResult, 0, len(hits))
	for _, hit := range hits {
		r, ok := current[hit.Receipt.Id]
		if !ok || r.OwnerID != ownerID || !r.HasEmbedding() {
			m.logger.Debug("dropping stale mirror hit", "id", hit.Receipt.Id)
			continue
		}
		results = append(results, &core.SearchResult{Receipt: r, Score: hit.Score, Source: hit.Source})
	}
	return results, nil
}

// UpdateReceipts updates receipts in the record store and brings the mirror
// in line: receipts that kept their embedding are re-sent with the new
// payload, the rest are removed from it. Mirror failures are logged.
func (db *Database) UpdateReceipts(ctx context.Context, receipts ...*core.Receipt) ([]*core.Receipt, error) {
	updated, err := db.repo.UpdateReceipts(ctx, receipts...)
	if err != nil {
		return nil, err
	}
	if db.vectors == nil {
		return updated, nil
	}
	for _, r := range updated {
		var mirrorErr error
		if r.HasEmbedding() {
			mirrorErr = db.vectors.UpsertReceipt(ctx, r)
		} else {
			mirrorErr = db.vectors.DeleteReceipt(ctx, r.Id)
		}
		if mirrorErr != nil {
			db.logger.Warn("failed to update mirrored receipt", "id", r.Id, "err", mirrorErr)
		}
	}
	return updated, nil
}

// DeleteReceipts removes receipts from the record store and the mirror.
// Mirror failures are logged; searches skip the leftovers.
func (db *Database) DeleteReceipts(ctx context.Context, ids ...core.ID) error {
	if err := db.repo.DeleteReceipts(ctx, ids...); err != nil {
		return err
	}
	if db.vectors == nil {
		return nil
	}
	for _, id := range ids {
		if err := db.vectors.DeleteReceipt(ctx, id); err != nil {
			db.logger.Warn("failed to delete mirrored receipt", "id", id, "err", err)
		}
	}
	return nil
}

// SyncMirror sends every embedded receipt of the owner to the mirror, which
// covers receipts embedded before the mirror was configured. It returns the
// number of receipts sent.
func (db *Database) SyncMirror(ctx context.Context, ownerID string) (int, error) {
	if db.vectors == nil {
		return 0, nil
	}
	receipts, err := db.repo.ListReceiptsByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	sent := 0
	var errs []error
	for _, r := range receipts {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if !r.HasEmbedding() {
			continue
		}
		if err := db.vectors.UpsertReceipt(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("receipt %d: %w", r.Id, err))
			continue
		}
		sent++
	}
	db.logger.Info("mirror sync complete", "owner", ownerID, "sent", sent, "failed", len(errs))
	return sent, errors.Join(errs...)
}
