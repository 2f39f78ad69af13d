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

package retrieval

import (
	"context"

	"github.com/poiesic/receiptrag/ai"
	"github.com/poiesic/receiptrag/core"
	"github.com/poiesic/receiptrag/storage"
)

const (
	// DefaultMinSimilarity is the cosine similarity below which a receipt
	// is not considered a match.
	DefaultMinSimilarity float32 = 0.35

	// DefaultLimit caps the number of similarity results.
	DefaultLimit = 10
)

// EmbeddingSearcher is a SimilaritySearcher that embeds the query locally
// and asks a vector index for neighbours.
type EmbeddingSearcher struct {
	embedder      ai.Embedder
	index         storage.VectorIndex
	minSimilarity float32
	limit         int
}

var _ SimilaritySearcher = (*EmbeddingSearcher)(nil)

// EmbeddingOption configures an EmbeddingSearcher.
type EmbeddingOption func(*EmbeddingSearcher)

// WithMinSimilarity sets the similarity threshold.
func WithMinSimilarity(min float32) EmbeddingOption {
	return func(s *EmbeddingSearcher) {
		s.minSimilarity = min
	}
}

// WithLimit sets the maximum number of results.
func WithLimit(limit int) EmbeddingOption {
	return func(s *EmbeddingSearcher) {
		if limit > 0 {
			s.limit = limit
		}
	}
}

// NewEmbeddingSearcher creates an EmbeddingSearcher.
func NewEmbeddingSearcher(embedder ai.Embedder, index storage.VectorIndex, opts ...EmbeddingOption) (*EmbeddingSearcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	s := &EmbeddingSearcher{
		embedder:      embedder,
		index:         index,
		minSimilarity: DefaultMinSimilarity,
		limit:         DefaultLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Search embeds the query and returns the owner's nearest receipts.
func (s *EmbeddingSearcher) Search(ctx context.Context, query, ownerID string) ([]*core.SearchResult, error) {
	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := ai.CheckDimensions(vector, 0); err != nil {
		return nil, core.NewServiceError("embedding", core.FailureEmptyResponse, "query embedding", err)
	}

	return s.index.FindSimilar(ctx, ownerID, ai.NormalizeVector(vector), s.minSimilarity, s.limit)
}
