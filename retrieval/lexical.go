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
	"strings"

	"github.com/poiesic/receiptrag/core"
)

// LexicalScore is the score given to every lexical match. It is a marker,
// not a similarity measure.
const LexicalScore float32 = 0.5

// DefaultLexicalLimit caps the number of lexical matches.
const DefaultLexicalLimit = 10

// ReceiptLister reads all of an owner's receipts.
type ReceiptLister interface {
	ListReceiptsByOwner(ctx context.Context, ownerID string) ([]*core.Receipt, error)
}

// LexicalRetriever matches the query text against stored receipt fields.
type LexicalRetriever struct {
	lister    ReceiptLister
	limit     int
	termMatch bool
}

var _ Retriever = (*LexicalRetriever)(nil)

// LexicalOption configures a LexicalRetriever.
type LexicalOption func(*LexicalRetriever)

// WithLexicalLimit sets the maximum number of matches.
func WithLexicalLimit(limit int) LexicalOption {
	return func(l *LexicalRetriever) {
		if limit > 0 {
			l.limit = limit
		}
	}
}

// WithTermMatch makes a receipt match when its fields contain every
// non-stop-word of the query, in any order, instead of the whole query.
func WithTermMatch(enabled bool) LexicalOption {
	return func(l *LexicalRetriever) {
		l.termMatch = enabled
	}
}

// NewLexicalRetriever creates a LexicalRetriever.
func NewLexicalRetriever(lister ReceiptLister, opts ...LexicalOption) (*LexicalRetriever, error) {
	if lister == nil {
		return nil, ErrRepositoryRequired
	}
	l := &LexicalRetriever{lister: lister, limit: DefaultLexicalLimit}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Retrieve returns up to the configured number of the owner's receipts whose
// description, brand, model, store or location contains the query, ignoring
// case. No matches is an empty slice, not an error.
func (l *LexicalRetriever) Retrieve(ctx context.Context, query, ownerID string) ([]*core.SearchResult, error) {
	if err := core.ValidateOwnerID(ownerID); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, err)
	}

	matcher := l.matcher(query)
	if matcher == nil {
		return []*core.SearchResult{}, nil
	}

	receipts, err := l.lister.ListReceiptsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("lexical retrieval: %w", err)
	}

	results := make([]*core.SearchResult, 0)
	for _, r := range receipts {
		if len(results) >= l.limit {
			break
		}
		if r.OwnerID != ownerID || !matcher(searchableFields(r)) {
			continue
		}
		results = append(results, &core.SearchResult{
			Receipt: r,
			Score:   LexicalScore,
			Source:  core.SourceLexical,
		})
	}
	return results, nil
}

// matcher returns nil when the query has nothing to match on.
func (l *LexicalRetriever) matcher(query string) func([]string) bool {
	if l.termMatch {
		terms := tokenizeAndFilter(query)
		if len(terms) == 0 {
			return nil
		}
		return func(fields []string) bool {
			return containsAllTerms(fields, terms)
		}
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil
	}
	return func(fields []string) bool {
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), needle) {
				return true
			}
		}
		return false
	}
}

func searchableFields(r *core.Receipt) []string {
	return []string{r.Description, r.Brand, r.Model, r.Store, r.Location}
}
