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

package indexer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/poiesic/receiptrag/ai"
	"github.com/poiesic/receiptrag/core"
	"github.com/poiesic/receiptrag/storage"
)

// Config holds configuration for embedding backfills.
type Config struct {
	// BatchSize is the number of receipts selected by a Backfill call
	// that does not pass its own size.
	BatchSize int

	// RecordInterval is the minimum spacing between embedding calls.
	// Zero disables throttling.
	RecordInterval time.Duration

	// MaxRetries is the maximum number of embedding attempts per receipt.
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// ReportInterval is how often to report progress (number of receipts)
	ReportInterval int

	// Dimensions is the required embedding length. Zero accepts any
	// non-empty vector.
	Dimensions int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      50,
		RecordInterval: 200 * time.Millisecond,
		MaxRetries:     3,
		RetryDelay:     500 * time.Millisecond,
		ReportInterval: 10,
		Dimensions:     384,
	}
}

// Validate checks the config for unusable values.
func (c *Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: BatchSize must be greater than 0", ErrInvalidConfig)
	case c.MaxRetries <= 0:
		return fmt.Errorf("%w: MaxRetries must be greater than 0", ErrInvalidConfig)
	case c.RecordInterval < 0:
		return fmt.Errorf("%w: RecordInterval cannot be negative", ErrInvalidConfig)
	case c.RetryDelay < 0:
		return fmt.Errorf("%w: RetryDelay cannot be negative", ErrInvalidConfig)
	case c.Dimensions < 0:
		return fmt.Errorf("%w: Dimensions cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Outcome is the result of indexing a single receipt.
type Outcome int

const (
	// OutcomeSkipped means the receipt had no text to embed.
	OutcomeSkipped Outcome = iota
	// OutcomeSuccess means the embedding was generated and stored.
	OutcomeSuccess
	// OutcomeError means embedding or storing failed; the receipt stays pending.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSuccess:
		return "success"
	case OutcomeError:
		return "error"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Status is the embedding coverage of one owner's receipts.
type Status struct {
	Total            int
	WithEmbedding    int
	WithoutEmbedding int
	// WithoutText is the part of WithoutEmbedding that Backfill never
	// selects because the receipt has no text to embed.
	WithoutText int
}

// BackfillResult aggregates the outcomes of one Backfill pass.
type BackfillResult struct {
	Processed  int
	Successful int
	Errors     int
	Skipped    int
	// Remaining is the number of the owner's receipts still without an
	// embedding after the pass.
	Remaining int
}

func (r *BackfillResult) add(o Outcome) {
	r.Processed++
	switch o {
	case OutcomeSuccess:
		r.Successful++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeError:
		r.Errors++
	}
}

// VectorSink receives every receipt whose embedding was stored.
type VectorSink interface {
	UpsertReceipt(ctx context.Context, receipt *core.Receipt) error
}

// Indexer generates and stores embeddings for receipts that lack them.
type Indexer struct {
	repo     storage.ReceiptRepository
	embedder ai.Embedder
	config   *Config
	limiter  *rate.Limiter
	sink     VectorSink
	progress io.Writer
	logger   *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer) error

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(ix *Indexer) error {
		if config == nil {
			return nil
		}
		if err := config.Validate(); err != nil {
			return err
		}
		ix.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
		return nil
	}
}

// WithLimiter overrides the throttle built from Config.RecordInterval.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(ix *Indexer) error {
		ix.limiter = limiter
		return nil
	}
}

// WithProgress writes progress lines to w during a backfill.
func WithProgress(w io.Writer) Option {
	return func(ix *Indexer) error {
		ix.progress = w
		return nil
	}
}

// WithVectorSink mirrors stored embeddings into sink. Sink failures are
// logged and do not change a receipt's outcome.
func WithVectorSink(sink VectorSink) Option {
	return func(ix *Indexer) error {
		ix.sink = sink
		return nil
	}
}

// NewIndexer creates a new indexer.
func NewIndexer(repo storage.ReceiptRepository, embedder ai.Embedder, opts ...Option) (*Indexer, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	ix := &Indexer{
		repo:     repo,
		embedder: embedder,
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(ix); err != nil {
			return nil, err
		}
	}

	if ix.limiter == nil {
		ix.limiter = newLimiter(ix.config.RecordInterval)
	}
	ix.logger = ix.logger.With("component", "indexer")

	return ix, nil
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// CheckStatus reports how many of the owner's receipts have embeddings.
func (ix *Indexer) CheckStatus(ctx context.Context, ownerID string) (Status, error) {
	if err := core.ValidateOwnerID(ownerID); err != nil {
		return Status{}, err
	}

	counts, err := ix.repo.CountEmbeddings(ctx, ownerID)
	if err != nil {
		return Status{}, fmt.Errorf("failed to count embeddings: %w", err)
	}

	return Status{
		Total:            counts.Total,
		WithEmbedding:    counts.WithEmbedding,
		WithoutEmbedding: counts.Total - counts.WithEmbedding,
		WithoutText:      counts.WithoutText,
	}, nil
}

// Backfill embeds up to batchSize of the owner's receipts that have no
// embedding, in store order. A batchSize <= 0 uses Config.BatchSize.
//
// Per-receipt failures are counted and never abort the pass. The pass stops
// early only when ctx is done or the embedder reports a configuration
// failure; the counters gathered so far are returned with the error.
func (ix *Indexer) Backfill(ctx context.Context, ownerID string, batchSize int) (BackfillResult, error) {
	var result BackfillResult
	if err := core.ValidateOwnerID(ownerID); err != nil {
		return result, err
	}
	if batchSize <= 0 {
		batchSize = ix.config.BatchSize
	}

	pending, err := ix.repo.ListReceiptsWithoutEmbedding(ctx, ownerID, batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list receipts without embedding: %w", err)
	}

	log := ix.logger.With("owner", ownerID)
	if len(pending) == 0 {
		log.Debug("nothing to backfill")
		return ix.finish(ctx, ownerID, result, nil)
	}

	log.Info("starting backfill", "receipts", len(pending), "batchSize", batchSize)
	tracker := NewProgressTracker(ix.progress, len(pending), ix.config.ReportInterval)
	tracker.Start()
	defer tracker.Finish()

	for _, receipt := range pending {
		if err := ix.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return ix.finish(ctx, ownerID, result, err)
		}

		outcome, err := ix.indexReceipt(ctx, receipt)
		result.add(outcome)
		tracker.Record(outcome)
		if err != nil {
			log.Error("backfill aborted", "receipt", receipt.Id, "err", err)
			return ix.finish(ctx, ownerID, result, err)
		}
	}

	log.Info("backfill complete",
		"processed", result.Processed,
		"successful", result.Successful,
		"errors", result.Errors,
		"skipped", result.Skipped,
		"elapsed", tracker.Elapsed().Round(time.Millisecond))

	return ix.finish(ctx, ownerID, result, nil)
}

// indexReceipt embeds and stores one receipt. A non-nil error means the
// whole pass must stop; ordinary failures are reported as OutcomeError.
func (ix *Indexer) indexReceipt(ctx context.Context, receipt *core.Receipt) (Outcome, error) {
	log := ix.logger.With("receipt", receipt.Id)

	text := receipt.EmbeddingText()
	if text == "" {
		log.Debug("skipping receipt without text")
		return OutcomeSkipped, nil
	}

	var vector []float32
	err := RetryWithBackoff(ctx, func() error {
		v, err := ix.embedder.EmbedText(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	}, ix.config.MaxRetries, ix.config.RetryDelay)
	if err != nil {
		if core.IsConfigurationError(err) {
			return OutcomeError, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return OutcomeError, ctxErr
		}
		log.Warn("failed to embed receipt", "err", err)
		return OutcomeError, nil
	}

	if err := ai.CheckDimensions(vector, ix.config.Dimensions); err != nil {
		log.Warn("rejecting embedding", "err", err)
		return OutcomeError, nil
	}
	vector = ai.NormalizeVector(vector)

	if err := ix.repo.SetEmbedding(ctx, receipt.Id, vector); err != nil {
		log.Warn("failed to store embedding", "err", err)
		return OutcomeError, nil
	}

	if ix.sink != nil {
		receipt.Vector = vector
		if err := ix.sink.UpsertReceipt(ctx, receipt); err != nil {
			log.Warn("failed to mirror embedding", "err", err)
		}
	}

	return OutcomeSuccess, nil
}

// finish fills in Remaining. The recount ignores cancellation so a stopped
// pass still reports how much is left.
func (ix *Indexer) finish(ctx context.Context, ownerID string, result BackfillResult, cause error) (BackfillResult, error) {
	counts, err := ix.repo.CountEmbeddings(context.WithoutCancel(ctx), ownerID)
	if err != nil {
		if cause == nil {
			cause = fmt.Errorf("failed to count embeddings: %w", err)
		}
		return result, cause
	}
	result.Remaining = counts.Total - counts.WithEmbedding
	return result, cause
}
