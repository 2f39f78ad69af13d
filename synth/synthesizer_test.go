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
	"strings"
	"testing"
	"time"

	"github.com/poiesic/receiptrag/ai"
	"github.com/poiesic/receiptrag/ai/mock"
	"github.com/poiesic/receiptrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(f float64) *float64 { return &f }

func laptopBag() *core.SearchResult {
	return &core.SearchResult{
		Receipt: &core.Receipt{
			Id:             1,
			OwnerID:        "alice",
			Description:    "Laptop Bag",
			Brand:          "Targus",
			Store:          "Best Buy",
			PurchaseDate:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
			Amount:         amount(52.3),
			WarrantyPeriod: "1 year",
		},
		Score:  0.82,
		Source: core.SourceVector,
	}
}

func TestBuildContext(t *testing.T) {
	second := &core.SearchResult{Receipt: &core.Receipt{Description: "Mouse", Model: "MX Master"}}

	got := BuildContext([]*core.SearchResult{laptopBag(), nil, second})

	want := "Product: Laptop Bag\n" +
		"Brand: Targus\n" +
		"Store: Best Buy\n" +
		"Date: 2024-05-01\n" +
		"Amount: $52.30\n" +
		"Warranty: 1 year\n" +
		"\n" +
		"Product: Mouse\n" +
		"Model: MX Master"
	assert.Equal(t, want, got)
}

func TestBuildContext_Empty(t *testing.T) {
	assert.Equal(t, "", BuildContext(nil))
}

func TestBuildPrompts(t *testing.T) {
	tests := []struct {
		queryType core.QueryType
		contains  string
	}{
		{core.QueryTypeSummary, "total"},
		{core.QueryTypeQuestion, "Answer the question"},
		{core.QueryTypeSearch, "Summarize the relevant receipts"},
		{core.QueryType("unknown"), "Summarize the relevant receipts"},
	}

	for _, tt := range tests {
		t.Run(string(tt.queryType), func(t *testing.T) {
			system, user := buildPrompts(tt.queryType, "my query", "CONTEXT")
			assert.NotEmpty(t, system)
			assert.Contains(t, user, "my query")
			assert.Contains(t, user, "CONTEXT")
			assert.Contains(t, user, tt.contains)
		})
	}
}

func TestNewSynthesizer(t *testing.T) {
	_, err := NewSynthesizer(nil)
	assert.Equal(t, ErrCompleterRequired, err)

	s, err := NewSynthesizer(mock.NewMockCompleter(), WithLogger(nil))
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestSynthesize(t *testing.T) {
	ctx := context.Background()

	t.Run("sends grounded prompt with bounded parameters", func(t *testing.T) {
		completer := mock.NewMockCompleter()
		completer.CompleteFunc = func(_ context.Context, req ai.CompletionRequest) (string, error) {
			return "  You spent $52.30 on bags.  ", nil
		}
		s, err := NewSynthesizer(completer)
		require.NoError(t, err)

		answer, ok := s.Synthesize(ctx, "how much did I spend on bags", []*core.SearchResult{laptopBag()}, core.QueryTypeSummary)
		require.True(t, ok)
		assert.Equal(t, "You spent $52.30 on bags.", answer)

		req := completer.LastRequest()
		assert.Equal(t, DefaultTemperature, req.Temperature)
		assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
		assert.Contains(t, req.UserPrompt, "Amount: $52.30")
		assert.Contains(t, req.UserPrompt, "how much did I spend on bags")
		assert.Contains(t, req.SystemPrompt, "aggregate")
	})

	t.Run("no results means no call", func(t *testing.T) {
		completer := mock.NewMockCompleter()
		s, err := NewSynthesizer(completer)
		require.NoError(t, err)

		_, ok := s.Synthesize(ctx, "anything", nil, core.QueryTypeQuestion)
		assert.False(t, ok)
		assert.Equal(t, 0, completer.CallCount())
	})

	failures := map[string]error{
		"transport":     core.NewServiceError("completion", core.FailureTransport, "", errors.New("reset")),
		"configuration": core.NewServiceError("completion", core.FailureConfiguration, "no key", nil),
		"empty":         core.NewServiceError("completion", core.FailureEmptyResponse, "", nil),
		"unclassified":  errors.New("boom"),
	}
	for name, failure := range failures {
		t.Run(name+" failure yields no answer", func(t *testing.T) {
			completer := mock.NewMockCompleter()
			completer.CompleteFunc = func(context.Context, ai.CompletionRequest) (string, error) {
				return "", failure
			}
			s, err := NewSynthesizer(completer)
			require.NoError(t, err)

			answer, ok := s.Synthesize(ctx, "when", []*core.SearchResult{laptopBag()}, core.QueryTypeQuestion)
			assert.False(t, ok)
			assert.Empty(t, answer)
		})
	}

	t.Run("blank completion yields no answer", func(t *testing.T) {
		completer := mock.NewMockCompleter()
		completer.CompleteFunc = func(context.Context, ai.CompletionRequest) (string, error) {
			return " \n ", nil
		}
		s, err := NewSynthesizer(completer)
		require.NoError(t, err)

		_, ok := s.Synthesize(ctx, "when", []*core.SearchResult{laptopBag()}, core.QueryTypeQuestion)
		assert.False(t, ok)
	})

	t.Run("caps receipts in context", func(t *testing.T) {
		completer := mock.NewMockCompleter()
		s, err := NewSynthesizer(completer, WithMaxReceipts(2), WithTemperature(0.5), WithMaxTokens(64))
		require.NoError(t, err)

		results := []*core.SearchResult{laptopBag(), laptopBag(), laptopBag()}
		_, ok := s.Synthesize(ctx, "bags", results, core.QueryTypeSearch)
		require.True(t, ok)

		req := completer.LastRequest()
		assert.Equal(t, 2, strings.Count(req.UserPrompt, "Product: Laptop Bag"))
		assert.Equal(t, 0.5, req.Temperature)
		assert.Equal(t, 64, req.MaxTokens)
	})
}
