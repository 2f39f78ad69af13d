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
	"log/slog"
	"time"

	"github.com/poiesic/receiptrag/ai"
	"github.com/poiesic/receiptrag/ai/openai"
	"github.com/poiesic/receiptrag/indexer"
	"github.com/poiesic/receiptrag/ingestion"
	"github.com/poiesic/receiptrag/retrieval"
	"github.com/poiesic/receiptrag/retrieval/remote"
	"github.com/poiesic/receiptrag/search"
	"github.com/poiesic/receiptrag/storage"
	"github.com/poiesic/receiptrag/storage/badger"
	"github.com/poiesic/receiptrag/storage/qdrant"
	"github.com/poiesic/receiptrag/synth"
)

// Database wires the record store, the AI provider and an optional qdrant
// mirror into ready-to-use indexers, searchers and importers.
type Database struct {
	backend  *badger.Backend
	repo     *badger.ReceiptRepository
	provider ai.AIProvider
	vectors  vectorMirror
	aiConfig *ai.Config
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	provider ai.AIProvider
	qdrant   *qdrant.Config
	inMemory bool
	logger   *slog.Logger
}

// WithAIConfig sets the configuration used to build the OpenAI-compatible provider.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithAIProvider uses an existing provider instead of building one.
// The Database takes ownership and closes it.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithQdrant mirrors embeddings into qdrant and answers similarity
// queries from it instead of the record store.
func WithQdrant(config *qdrant.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.qdrant = config
	}
}

// WithInMemory keeps the record store in memory. The path is ignored.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase opens the record store at filePath and builds its services.
func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.aiConfig == nil {
		options.aiConfig = ai.DefaultConfig()
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	repo, err := badger.NewReceiptRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			repo.Close()
			backend.Close()
			return nil, err
		}
	}

	db := &Database{
		backend:  backend,
		repo:     repo,
		provider: provider,
		aiConfig: options.aiConfig,
		logger:   options.logger,
	}

	if options.qdrant != nil {
		store, err := qdrant.New(options.qdrant)
		if err != nil {
			db.Close()
			return nil, err
		}
		db.vectors = store

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.EnsureCollection(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

// Close releases every resource held by the Database.
func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if db.vectors != nil {
		if err := db.vectors.Close(); err != nil {
			db.logger.Error("error closing qdrant connection", "err", err)
		}
	}

	if err := db.repo.Close(); err != nil {
		db.logger.Error("error closing receipt repository", "err", err)
		return err
	}

	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Repository returns the receipt record store.
func (db *Database) Repository() storage.ReceiptRepository {
	return db.repo
}

// VectorIndex returns the index that answers similarity queries: qdrant
// when configured, the record store otherwise. Qdrant hits are resolved
// against the record store so results never carry a stale payload.
func (db *Database) VectorIndex() storage.VectorIndex {
	if db.vectors != nil {
		return &mirroredIndex{mirror: db.vectors, repo: db.repo, logger: db.logger}
	}
	return db.repo
}

// NewIndexer creates an indexer over the record store. The qdrant mirror,
// when configured, receives every stored embedding. opts override the
// defaults.
func (db *Database) NewIndexer(opts ...indexer.Option) (*indexer.Indexer, error) {
	config := indexer.DefaultConfig()
	config.Dimensions = db.aiConfig.Dimensions

	defaults := []indexer.Option{
		indexer.WithConfig(config),
		indexer.WithLogger(db.logger),
	}
	if db.vectors != nil {
		defaults = append(defaults, indexer.WithVectorSink(db.vectors))
	}
	return indexer.NewIndexer(db.repo, db.provider.Embedder(), append(defaults, opts...)...)
}

// NewSearcher creates a searcher that embeds queries locally and searches
// VectorIndex, falling back to lexical matching over the record store.
func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	similarity, err := retrieval.NewEmbeddingSearcher(db.provider.Embedder(), db.VectorIndex())
	if err != nil {
		return nil, err
	}
	return db.newSearcher(similarity, opts...)
}

// NewRemoteSearcher creates a searcher whose similarity step is delegated
// to an external search service.
func (db *Database) NewRemoteSearcher(config *remote.Config, opts ...search.Option) (*search.Searcher, error) {
	client, err := remote.NewClient(config, remote.WithLogger(db.logger))
	if err != nil {
		return nil, err
	}
	return db.newSearcher(client, opts...)
}

// NewImporter creates an importer writing to the record store.
// The caller must Release it.
func (db *Database) NewImporter(opts ...ingestion.Option) (*ingestion.Importer, error) {
	return ingestion.NewImporter(db.repo, append([]ingestion.Option{ingestion.WithLogger(db.logger)}, opts...)...)
}

func (db *Database) newSearcher(similarity retrieval.SimilaritySearcher, opts ...search.Option) (*search.Searcher, error) {
	vector, err := retrieval.NewVectorRetriever(similarity)
	if err != nil {
		return nil, err
	}
	lexical, err := retrieval.NewLexicalRetriever(db.repo)
	if err != nil {
		return nil, err
	}
	synthesizer, err := synth.NewSynthesizer(
		db.provider.Completer(),
		synth.WithLogger(db.logger),
		synth.WithTemperature(db.aiConfig.Temperature),
		synth.WithMaxTokens(db.aiConfig.MaxTokens),
	)
	if err != nil {
		return nil, err
	}
	return search.NewSearcher(vector, lexical, synthesizer, append([]search.Option{search.WithLogger(db.logger)}, opts...)...)
}
