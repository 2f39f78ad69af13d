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
	"errors"
	"log/slog"
	"regexp"
	"testing"

	"github.com/poiesic/receiptrag/ai"
	"github.com/poiesic/receiptrag/ai/mock"
	"github.com/poiesic/receiptrag/core"
	"github.com/poiesic/receiptrag/retrieval"
	"github.com/poiesic/receiptrag/storage/badger"
	"github.com/poiesic/receiptrag/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type retrieverFunc func(ctx context.Context, query, ownerID string) ([]*core.SearchResult, error)

func (f retrieverFunc) Retrieve(ctx context.Context, query, ownerID string) ([]*core.SearchResult, error) {
	return f(ctx, query, ownerID)
}

func failingRetriever(err error) retrieval.Retriever {
	return retrieverFunc(func(context.Context, string, string) ([]*core.SearchResult, error) {
		return nil, err
	})
}

func emptyRetriever() retrieval.Retriever {
	return retrieverFunc(func(context.Context, string, string) ([]*core.SearchResult, error) {
		return []*core.SearchResult{}, nil
	})
}

func transportFailure() error {
	return core.NewServiceError("similarity", core.FailureTransport, "", errors.New("connection refused"))
}

type fixture struct {
	repo      *badger.ReceiptRepository
	embedder  *mock.MockEmbedder
	completer *mock.MockCompleter
	vector    retrieval.Retriever
	lexical   retrieval.Retriever
	synth     *synth.Synthesizer
}

func amount(f float64) *float64 { return &f }

// newFixture stores three receipts for alice: two embedded, one not.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, backend, err := badger.NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})

	ctx := context.Background()
	added, err := repo.AddReceipts(ctx,
		&core.Receipt{OwnerID: "alice", Description: "Laptop Bag", Brand: "Targus", Store: "Best Buy", Amount: amount(52.30)},
		&core.Receipt{OwnerID: "alice", Description: "Blender", Brand: "Vitamix", Amount: amount(399)},
		&core.Receipt{OwnerID: "alice", Description: "MacBook Air", Brand: "Apple", Amount: amount(1099)},
	)
	require.NoError(t, err)
	require.NoError(t, repo.SetEmbedding(ctx, added[0].Id, []float32{1, 0, 0}))
	require.NoError(t, repo.SetEmbedding(ctx, added[1].Id, []float32{0, 1, 0}))

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return []float32{1, 0.1, 0}, nil
	}

	amountPattern := regexp.MustCompile(`Amount: (\$[0-9.]+)`)
	completer := mock.NewMockCompleter()
	completer.CompleteFunc = func(_ context.Context, req ai.CompletionRequest) (string, error) {
		var total []string
		for _, m := range amountPattern.FindAllStringSubmatch(req.UserPrompt, -1) {
			total = append(total, m[1])
		}
		if len(total) == 0 {
			return "", nil
		}
		return "You spent " + total[0] + " in total.", nil
	}

	similarity, err := retrieval.NewEmbeddingSearcher(embedder, repo, retrieval.WithMinSimilarity(0.5))
	require.NoError(t, err)
	vector, err := retrieval.NewVectorRetriever(similarity)
	require.NoError(t, err)
	lexical, err := retrieval.NewLexicalRetriever(repo)
	require.NoError(t, err)
	synthesizer, err := synth.NewSynthesizer(completer)
	require.NoError(t, err)

	return &fixture{
		repo:      repo,
		embedder:  embedder,
		completer: completer,
		vector:    vector,
		lexical:   lexical,
		synth:     synthesizer,
	}
}

func (f *fixture) searcher(t *testing.T, vector retrieval.Retriever, opts ...Option) *Searcher {
	t.Helper()
	if vector == nil {
		vector = f.vector
	}
	s, err := NewSearcher(vector, f.lexical, f.synth, opts...)
	require.NoError(t, err)
	return s
}

type testMonitor struct {
	started        bool
	queryType      core.QueryType
	wantsAnswer    bool
	vectorFailures int
	fallbacks      []string
	source         core.ResultSource
	synthesized    bool
	answered       bool
	finished       *core.SearchResponse
}

func (m *testMonitor) Start(_, _ string) { m.started = true }
func (m *testMonitor) AfterClassification(qt core.QueryType, wants bool) {
	m.queryType = qt
	m.wantsAnswer = wants
}
func (m *testMonitor) VectorRetrievalFailed(_ error)  { m.vectorFailures++ }
func (m *testMonitor) FallbackToLexical(reason string) { m.fallbacks = append(m.fallbacks, reason) }
func (m *testMonitor) AfterRetrieval(source core.ResultSource, _ []*core.SearchResult) {
	m.source = source
}
func (m *testMonitor) AfterSynthesis(answered bool) {
	m.synthesized = true
	m.answered = answered
}
func (m *testMonitor) Finish(response *core.SearchResponse) { m.finished = response }

func TestNewSearcher(t *testing.T) {
	f := newFixture(t)

	t.Run("valid configuration", func(t *testing.T) {
		s, err := NewSearcher(f.vector, f.lexical, f.synth)
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("with custom logger", func(t *testing.T) {
		s, err := NewSearcher(f.vector, f.lexical, f.synth, WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		s, err := NewSearcher(f.vector, f.lexical, f.synth, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, s)
	})

	t.Run("nil vector retriever", func(t *testing.T) {
		_, err := NewSearcher(nil, f.lexical, f.synth)
		assert.Equal(t, ErrVectorRetrieverRequired, err)
	})

	t.Run("nil lexical retriever", func(t *testing.T) {
		_, err := NewSearcher(f.vector, nil, f.synth)
		assert.Equal(t, ErrLexicalRetrieverRequired, err)
	})

	t.Run("nil synthesizer", func(t *testing.T) {
		_, err := NewSearcher(f.vector, f.lexical, nil)
		assert.Equal(t, ErrSynthesizerRequired, err)
	})
}

func TestSearch_EmptyQuery(t *testing.T) {
	f := newFixture(t)
	s := f.searcher(t, nil)

	for _, q := range []string{"", "   ", "\t\n"} {
		resp, err := s.Search(context.Background(), q, "alice")
		require.NoError(t, err)
		assert.Equal(t, core.QueryTypeSearch, resp.QueryType)
		assert.NotNil(t, resp.Results)
		assert.Empty(t, resp.Results)
		assert.Nil(t, resp.Answer)
	}
	assert.Equal(t, 0, f.embedder.CallCount())
	assert.Equal(t, 0, f.completer.CallCount())
}

func TestSearch_EndToEndSummary(t *testing.T) {
	f := newFixture(t)
	s := f.searcher(t, nil)

	resp, err := s.Search(context.Background(), "how much did I spend on bags", "alice")
	require.NoError(t, err)

	assert.Equal(t, core.QueryTypeSummary, resp.QueryType)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Laptop Bag", resp.Results[0].Receipt.Description)
	assert.Greater(t, resp.Results[0].Score, float32(0))
	assert.Equal(t, core.SourceVector, resp.Results[0].Source)

	require.NotNil(t, resp.Answer)
	assert.Contains(t, resp.Answer.Text, "52.30")
	assert.Equal(t, core.QueryTypeSummary, resp.Answer.QueryType)
}

func TestSearch_FallbackOnVectorFailure(t *testing.T) {
	f := newFixture(t)
	monitor := &testMonitor{}
	s := f.searcher(t, failingRetriever(transportFailure()))

	resp, err := s.SearchWithMonitor(context.Background(), "apple", "alice", monitor)
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "MacBook Air", resp.Results[0].Receipt.Description)
	assert.Equal(t, retrieval.LexicalScore, resp.Results[0].Score)
	assert.Equal(t, core.SourceLexical, resp.Results[0].Source)

	assert.Equal(t, 1, monitor.vectorFailures)
	assert.Len(t, monitor.fallbacks, 1)
	assert.Equal(t, core.SourceLexical, monitor.source)
}

func TestSearch_FallbackNeverMerges(t *testing.T) {
	f := newFixture(t)
	s := f.searcher(t, nil)

	// Vector retrieval succeeds, so the lexical match on "blender" is not added.
	resp, err := s.Search(context.Background(), "blender", "alice")
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "Laptop Bag", resp.Results[0].Receipt.Description)
	assert.Equal(t, core.SourceVector, resp.Results[0].Source)
}

func TestSearch_BothRetrieversFail(t *testing.T) {
	f := newFixture(t)
	s, err := NewSearcher(failingRetriever(transportFailure()), failingRetriever(errors.New("store offline")), f.synth)
	require.NoError(t, err)

	resp, err := s.Search(context.Background(), "what did I buy?", "alice")
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Nil(t, resp.Answer)
	assert.Equal(t, 0, f.completer.CallCount())
}

func TestSearch_ConfigurationErrorPropagates(t *testing.T) {
	f := newFixture(t)
	misconfigured := core.NewServiceError("similarity", core.FailureConfiguration, "missing api key", nil)

	t.Run("from vector retrieval", func(t *testing.T) {
		s := f.searcher(t, failingRetriever(misconfigured))
		_, err := s.Search(context.Background(), "apple", "alice")
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("from lexical fallback", func(t *testing.T) {
		s, err := NewSearcher(failingRetriever(transportFailure()), failingRetriever(misconfigured), f.synth)
		require.NoError(t, err)
		_, err = s.Search(context.Background(), "apple", "alice")
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("missing owner", func(t *testing.T) {
		s := f.searcher(t, nil)
		_, err := s.Search(context.Background(), "apple", "")
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})
}

func TestSearch_EmptyVectorResults(t *testing.T) {
	f := newFixture(t)

	t.Run("no fallback by default", func(t *testing.T) {
		s := f.searcher(t, emptyRetriever())
		resp, err := s.Search(context.Background(), "apple", "alice")
		require.NoError(t, err)
		assert.Empty(t, resp.Results)
	})

	t.Run("fallback when enabled", func(t *testing.T) {
		monitor := &testMonitor{}
		s := f.searcher(t, emptyRetriever(), WithFallbackOnEmpty(true))
		resp, err := s.SearchWithMonitor(context.Background(), "apple", "alice", monitor)
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, core.SourceLexical, resp.Results[0].Source)
		assert.Equal(t, 0, monitor.vectorFailures)
		assert.Len(t, monitor.fallbacks, 1)
	})
}

func TestSearch_SynthesisGating(t *testing.T) {
	t.Run("no synthesis without results", func(t *testing.T) {
		f := newFixture(t)
		s := f.searcher(t, emptyRetriever())

		resp, err := s.Search(context.Background(), "how much did I spend on televisions", "alice")
		require.NoError(t, err)
		assert.Equal(t, core.QueryTypeSummary, resp.QueryType)
		assert.Nil(t, resp.Answer)
		assert.Equal(t, 0, f.completer.CallCount())
	})

	t.Run("no synthesis for short plain search", func(t *testing.T) {
		f := newFixture(t)
		monitor := &testMonitor{}
		s := f.searcher(t, nil)

		resp, err := s.SearchWithMonitor(context.Background(), "laptop bag", "alice", monitor)
		require.NoError(t, err)
		assert.Equal(t, core.QueryTypeSearch, resp.QueryType)
		assert.NotEmpty(t, resp.Results)
		assert.Nil(t, resp.Answer)
		assert.False(t, monitor.wantsAnswer)
		assert.False(t, monitor.synthesized)
		assert.Equal(t, 0, f.completer.CallCount())
	})

	t.Run("long plain search is synthesized", func(t *testing.T) {
		f := newFixture(t)
		s := f.searcher(t, nil)

		resp, err := s.Search(context.Background(), "Show me laptop bag receipts", "alice")
		require.NoError(t, err)
		assert.Equal(t, core.QueryTypeSearch, resp.QueryType)
		require.NotNil(t, resp.Answer)
		assert.Equal(t, core.QueryTypeSearch, resp.Answer.QueryType)
	})

	t.Run("synthesis failure keeps results", func(t *testing.T) {
		f := newFixture(t)
		f.completer.CompleteFunc = func(context.Context, ai.CompletionRequest) (string, error) {
			return "", core.NewServiceError("completion", core.FailureTransport, "", errors.New("timeout"))
		}
		monitor := &testMonitor{}
		s := f.searcher(t, nil)

		resp, err := s.SearchWithMonitor(context.Background(), "how much did I spend on bags", "alice", monitor)
		require.NoError(t, err)
		require.Len(t, resp.Results, 1)
		assert.Nil(t, resp.Answer)
		assert.True(t, monitor.synthesized)
		assert.False(t, monitor.answered)
	})

	t.Run("synthesis configuration failure is swallowed", func(t *testing.T) {
		f := newFixture(t)
		f.completer.CompleteFunc = func(context.Context, ai.CompletionRequest) (string, error) {
			return "", core.NewServiceError("completion", core.FailureConfiguration, "no token", nil)
		}
		s := f.searcher(t, nil)

		resp, err := s.Search(context.Background(), "when did I buy the bag?", "alice")
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Results)
		assert.Nil(t, resp.Answer)
	})
}

func TestSearchWithMonitor_Stages(t *testing.T) {
	f := newFixture(t)
	monitor := &testMonitor{}
	s := f.searcher(t, nil)

	resp, err := s.SearchWithMonitor(context.Background(), "how much did I spend on bags", "alice", monitor)
	require.NoError(t, err)

	assert.True(t, monitor.started)
	assert.Equal(t, core.QueryTypeSummary, monitor.queryType)
	assert.True(t, monitor.wantsAnswer)
	assert.Equal(t, core.SourceVector, monitor.source)
	assert.True(t, monitor.answered)
	assert.Same(t, resp, monitor.finished)
	assert.Empty(t, monitor.fallbacks)
}

func TestLogMonitor(t *testing.T) {
	f := newFixture(t)
	s := f.searcher(t, failingRetriever(transportFailure()))

	resp, err := s.SearchWithMonitor(context.Background(), "apple", "alice", NewLogMonitor(nil))
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
}
