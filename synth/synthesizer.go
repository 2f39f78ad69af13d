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

package synth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/poiesic/receiptrag/ai"
	"github.com/poiesic/receiptrag/core"
)

const (
	// DefaultTemperature keeps answers close to deterministic.
	DefaultTemperature = 0.2

	// DefaultMaxTokens bounds the answer length.
	DefaultMaxTokens = 512

	// DefaultMaxReceipts caps how many results are put in the prompt.
	DefaultMaxReceipts = 20
)

// ErrCompleterRequired is returned when a completer is not provided.
var ErrCompleterRequired = errors.New("completer required")

// Synthesizer asks a language model to answer a query from search results.
type Synthesizer struct {
	completer   ai.Completer
	temperature float64
	maxTokens   int
	maxReceipts int
	logger      *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithTemperature overrides DefaultTemperature.
func WithTemperature(temperature float64) Option {
	return func(s *Synthesizer) error {
		s.temperature = temperature
		return nil
	}
}

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(maxTokens int) Option {
	return func(s *Synthesizer) error {
		if maxTokens > 0 {
			s.maxTokens = maxTokens
		}
		return nil
	}
}

// WithMaxReceipts overrides DefaultMaxReceipts.
func WithMaxReceipts(n int) Option {
	return func(s *Synthesizer) error {
		if n > 0 {
			s.maxReceipts = n
		}
		return nil
	}
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(completer ai.Completer, opts ...Option) (*Synthesizer, error) {
	if completer == nil {
		return nil, ErrCompleterRequired
	}

	s := &Synthesizer{
		completer:   completer,
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		maxReceipts: DefaultMaxReceipts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "synthesizer")
	return s, nil
}

// Synthesize returns an answer for query grounded on results. The boolean
// is false when no answer could be produced; the cause is logged.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, results []*core.SearchResult, queryType core.QueryType) (string, bool) {
	if len(results) == 0 {
		return "", false
	}
	if len(results) > s.maxReceipts {
		results = results[:s.maxReceipts]
	}

	receiptContext := BuildContext(results)
	if receiptContext == "" {
		return "", false
	}

	system, user := buildPrompts(queryType, query, receiptContext)
	text, err := s.completer.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: system,
		UserPrompt:   user,
		MaxTokens:    s.maxTokens,
		Temperature:  s.temperature,
	})
	if err != nil {
		kind, _ := core.FailureKindOf(err)
		s.logger.Warn("answer synthesis failed", "queryType", queryType, "kind", kind, "err", err)
		return "", false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.logger.Warn("answer synthesis returned no text", "queryType", queryType)
		return "", false
	}
	return text, true
}
