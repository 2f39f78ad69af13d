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
	"fmt"

	"github.com/poiesic/receiptrag/core"
)

// Retriever returns the owner's receipts relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query, ownerID string) ([]*core.SearchResult, error)
}

// SimilaritySearcher is a similarity-search service scoped to one owner.
// Failures are reported as *core.ServiceError.
type SimilaritySearcher interface {
	Search(ctx context.Context, query, ownerID string) ([]*core.SearchResult, error)
}

// VectorRetriever retrieves receipts through a SimilaritySearcher.
// Errors are returned to the caller unchanged so it can decide on a fallback.
type VectorRetriever struct {
	searcher SimilaritySearcher
}

var _ Retriever = (*VectorRetriever)(nil)

// NewVectorRetriever creates a VectorRetriever.
func NewVectorRetriever(searcher SimilaritySearcher) (*VectorRetriever, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	return &VectorRetriever{searcher: searcher}, nil
}

// Retrieve runs the similarity search for the owner.
func (v *VectorRetriever) Retrieve(ctx context.Context, query, ownerID string) ([]*core.SearchResult, error) {
	if err := core.ValidateOwnerID(ownerID); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}

	results, err := v.searcher.Search(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}

	out := make([]*core.SearchResult, 0, len(results))
	for _, r := range results {
		if r == nil || r.Receipt == nil {
			continue
		}
		r.Source = core.SourceVector
		r.Score = clampScore(r.Score)
		out = append(out, r)
	}
	return out, nil
}

func clampScore(s float32) float32 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}
