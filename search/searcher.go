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

package search

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/receiptrag/classify"
	"github.com/poiesic/receiptrag/core"
	"github.com/poiesic/receiptrag/retrieval"
)

// AnswerSynthesizer generates an answer from retrieved receipts.
// The boolean is false when no answer was produced.
type AnswerSynthesizer interface {
	Synthesize(ctx context.Context, query string, results []*core.SearchResult, queryType core.QueryType) (string, bool)
}

// Searcher performs smart searches over one owner's receipts.
type Searcher struct {
	vector          retrieval.Retriever
	lexical         retrieval.Retriever
	synthesizer     AnswerSynthesizer
	fallbackOnEmpty bool
	logger          *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithFallbackOnEmpty also runs lexical retrieval when vector retrieval
// succeeds with no results. Off by default: an empty similarity result is
// a valid answer.
func WithFallbackOnEmpty(enabled bool) Option {
	return func(s *Searcher) error {
		s.fallbackOnEmpty = enabled
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	vector retrieval.Retriever,
	lexical retrieval.Retriever,
	synthesizer AnswerSynthesizer,
	opts ...Option,
) (*Searcher, error) {
	if vector == nil {
		return nil, ErrVectorRetrieverRequired
	}
	if lexical == nil {
		return nil, ErrLexicalRetrieverRequired
	}
	if synthesizer == nil {
		return nil, ErrSynthesizerRequired
	}

	s := &Searcher{
		vector:      vector,
		lexical:     lexical,
		synthesizer: synthesizer,
		logger:      slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search answers query for the owner.
func (s *Searcher) Search(ctx context.Context, query, ownerID string) (*core.SearchResponse, error) {
	return s.SearchWithMonitor(ctx, query, ownerID, nil)
}

// SearchWithMonitor answers query for the owner, reporting each stage to
// monitor. Only configuration errors are returned; all other failures
// degrade to fewer results or no answer.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query, ownerID string, monitor SearchMonitor) (*core.SearchResponse, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if strings.TrimSpace(query) == "" {
		return &core.SearchResponse{
			Results:   []*core.SearchResult{},
			QueryType: core.QueryTypeSearch,
		}, nil
	}

	monitor.Start(query, ownerID)
	log := s.logger.With("owner", ownerID)

	// 1. Classify
	queryType := classify.Classify(query)
	wantsAnswer := classify.NeedsSynthesis(query, queryType)
	monitor.AfterClassification(queryType, wantsAnswer)

	// 2. Retrieve, falling back to lexical matching
	source := core.SourceVector
	results, err := s.vector.Retrieve(ctx, query, ownerID)
	switch {
	case err != nil:
		if core.IsConfigurationError(err) {
			log.Error("vector retrieval misconfigured", "err", err)
			return nil, err
		}
		log.Warn("vector retrieval failed, using lexical fallback", "err", err)
		monitor.VectorRetrievalFailed(err)
		monitor.FallbackToLexical("vector retrieval failed")
		source = core.SourceLexical
		if results, err = s.lexicalFallback(ctx, query, ownerID); err != nil {
			return nil, err
		}
	case len(results) == 0 && s.fallbackOnEmpty:
		monitor.FallbackToLexical("vector retrieval returned no results")
		source = core.SourceLexical
		if results, err = s.lexicalFallback(ctx, query, ownerID); err != nil {
			return nil, err
		}
	}
	if results == nil {
		results = []*core.SearchResult{}
	}
	monitor.AfterRetrieval(source, results)

	response := &core.SearchResponse{
		Results:   results,
		QueryType: queryType,
	}

	// 3. Synthesize
	if wantsAnswer && len(results) > 0 {
		text, ok := s.synthesizer.Synthesize(ctx, query, results, queryType)
		if ok && text != "" {
			response.Answer = &core.Answer{Text: text, QueryType: queryType}
		}
		monitor.AfterSynthesis(response.Answer != nil)
	}

	monitor.Finish(response)
	log.Debug("search complete", "queryType", queryType, "source", source,
		"results", len(results), "answered", response.Answer != nil)

	return response, nil
}

// lexicalFallback runs the lexical retriever. Its failures, other than
// configuration errors, yield an empty result.
func (s *Searcher) lexicalFallback(ctx context.Context, query, ownerID string) ([]*core.SearchResult, error) {
	results, err := s.lexical.Retrieve(ctx, query, ownerID)
	if err != nil {
		if core.IsConfigurationError(err) {
			return nil, err
		}
		s.logger.Warn("lexical fallback failed", "owner", ownerID, "err", err)
		return []*core.SearchResult{}, nil
	}
	return results, nil
}
