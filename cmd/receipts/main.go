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

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/poiesic/receiptrag"
	"github.com/poiesic/receiptrag/ai"
	"github.com/poiesic/receiptrag/core"
	"github.com/poiesic/receiptrag/indexer"
	"github.com/poiesic/receiptrag/ingestion"
	"github.com/poiesic/receiptrag/retrieval/remote"
	"github.com/poiesic/receiptrag/search"
	"github.com/poiesic/receiptrag/storage/qdrant"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "receipts",
		Usage: "Import, index and search digitized purchase receipts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Import receipts from JSON files",
				ArgsUsage: "FILE...",
				Action:    importCommand,
				Flags: append(storeFlags(),
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Owner assigned to receipts that don't name one",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of files decoded concurrently",
						Value: 4,
					},
				),
			},
			{
				Name:   "seed",
				Usage:  "Store a set of sample receipts for an owner",
				Action: seedCommand,
				Flags:  append(storeFlags(), ownerFlag()),
			},
			{
				Name:   "status",
				Usage:  "Report embedding coverage for an owner",
				Action: statusCommand,
				Flags:  append(storeFlags(), ownerFlag()),
			},
			{
				Name:   "backfill",
				Usage:  "Generate embeddings for receipts that lack them",
				Action: backfillCommand,
				Flags: append(append(storeFlags(), ownerFlag()), append(aiFlags(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of receipts to process in one pass",
						Value: 50,
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Minimum time between embedding requests",
						Value: 200 * time.Millisecond,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N receipts",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per embedding request",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 500 * time.Millisecond,
					},
					&cli.BoolFlag{
						Name:  "sync-mirror",
						Usage: "Re-send existing embeddings to qdrant before the pass",
					},
				)...),
			},
			{
				Name:      "search",
				Usage:     "Search an owner's receipts and answer questions about them",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: append(append(storeFlags(), ownerFlag()), append(aiFlags(),
					&cli.StringFlag{
						Name:  "remote-endpoint",
						Usage: "Delegate similarity search to this service URL",
					},
					&cli.StringFlag{
						Name:  "remote-api-key",
						Usage: "Bearer token for the similarity service",
					},
					&cli.DurationFlag{
						Name:  "remote-timeout",
						Usage: "Timeout for similarity service requests",
						Value: remote.DefaultTimeout,
					},
					&cli.BoolFlag{
						Name:  "fallback-on-empty",
						Usage: "Also run lexical matching when similarity search finds nothing",
					},
				)...),
			},
		},
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
	}
}

func ownerFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "owner",
		Aliases:  []string{"o"},
		Usage:    "Owner whose receipts are used",
		Required: true,
	}
}

func aiFlags() []cli.Flag {
	defaults := ai.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: defaults.EmbeddingHost,
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: defaults.EmbeddingModel,
		},
		&cli.StringFlag{
			Name:  "completion-host",
			Usage: "Completion service host URL (defaults to embedding-host)",
		},
		&cli.StringFlag{
			Name:  "completion-model",
			Usage: "Completion model name",
			Value: defaults.CompletionModel,
		},
		&cli.StringFlag{
			Name:  "api-token",
			Usage: "Bearer token for the AI services",
			Value: defaults.APIToken,
		},
		&cli.IntFlag{
			Name:  "dimensions",
			Usage: "Embedding vector length",
			Value: defaults.Dimensions,
		},
		&cli.StringFlag{
			Name:  "qdrant-address",
			Usage: "Mirror embeddings into qdrant at this gRPC address and search there",
		},
		&cli.StringFlag{
			Name:  "qdrant-collection",
			Usage: "Qdrant collection holding receipt vectors",
			Value: qdrant.DefaultConfig().Collection,
		},
	}
}

// openDatabase builds a Database from the command's flags. Commands without
// AI flags get the default AI configuration; they never call the services.
func openDatabase(c *cli.Context) (*receiptrag.Database, error) {
	embeddingHost := c.String("embedding-host")
	completionHost := c.String("completion-host")
	if completionHost == "" {
		completionHost = embeddingHost
	}

	aiConfig := ai.DefaultConfig()
	if c.IsSet("embedding-host") || c.IsSet("completion-host") {
		aiConfig.EmbeddingHost = embeddingHost
		aiConfig.CompletionHost = completionHost
	}
	if model := c.String("embedding-model"); model != "" {
		aiConfig.EmbeddingModel = model
	}
	if model := c.String("completion-model"); model != "" {
		aiConfig.CompletionModel = model
	}
	if token := c.String("api-token"); token != "" {
		aiConfig.APIToken = token
	}
	if dims := c.Int("dimensions"); dims > 0 {
		aiConfig.Dimensions = dims
	}

	opts := []receiptrag.DatabaseOption{receiptrag.WithAIConfig(aiConfig)}
	if addr := c.String("qdrant-address"); addr != "" {
		opts = append(opts, receiptrag.WithQdrant(&qdrant.Config{
			Address:    addr,
			Collection: c.String("qdrant-collection"),
			Dimensions: aiConfig.Dimensions,
		}))
	}

	db, err := receiptrag.NewDatabase(c.String("db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func importCommand(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("at least one receipt file is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	importer, err := db.NewImporter(
		ingestion.WithDefaultOwner(c.String("owner")),
		ingestion.WithPoolSize(c.Int("workers")),
	)
	if err != nil {
		return fmt.Errorf("failed to create importer: %w", err)
	}
	defer importer.Release()

	result, err := importer.ImportFiles(c.Context, paths...)
	fmt.Fprintf(c.App.Writer, "Imported %d receipts from %d files (%d rejected)\n",
		result.Imported, result.Files, result.Rejected)
	if err != nil {
		return fmt.Errorf("import finished with errors: %w", err)
	}
	return nil
}

func seedCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	importer, err := db.NewImporter()
	if err != nil {
		return fmt.Errorf("failed to create importer: %w", err)
	}
	defer importer.Release()

	result, err := importer.ImportReceipts(c.Context, sampleReceipts(c.String("owner"))...)
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Seeded %d receipts\n", result.Imported)
	return nil
}

func statusCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ix, err := db.NewIndexer()
	if err != nil {
		return err
	}

	status, err := ix.CheckStatus(c.Context, c.String("owner"))
	if err != nil {
		return fmt.Errorf("status check failed: %w", err)
	}
	printStatus(c.App.Writer, status)
	return nil
}

func backfillCommand(c *cli.Context) error {
	config := &indexer.Config{
		BatchSize:      c.Int("batch-size"),
		RecordInterval: c.Duration("interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
		ReportInterval: c.Int("report-interval"),
		Dimensions:     c.Int("dimensions"),
	}
	if err := config.Validate(); err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RecordInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(config.RecordInterval), 1)
	}
	ix, err := db.NewIndexer(
		indexer.WithConfig(config),
		indexer.WithLimiter(limiter),
		indexer.WithProgress(c.App.ErrWriter),
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	owner := c.String("owner")
	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", c.String("db"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(c.App.ErrWriter)

	if c.Bool("sync-mirror") {
		sent, err := db.SyncMirror(ctx, owner)
		fmt.Fprintf(c.App.ErrWriter, "Mirrored %d existing embeddings\n", sent)
		if err != nil {
			return fmt.Errorf("mirror sync failed: %w", err)
		}
	}

	result, err := ix.Backfill(ctx, owner, config.BatchSize)
	fmt.Fprintf(c.App.Writer, "Processed: %d  Embedded: %d  Skipped: %d  Errors: %d  Remaining: %d\n",
		result.Processed, result.Successful, result.Skipped, result.Errors, result.Remaining)
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a search query is required")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := []search.Option{search.WithFallbackOnEmpty(c.Bool("fallback-on-empty"))}
	var searcher *search.Searcher
	if endpoint := c.String("remote-endpoint"); endpoint != "" {
		searcher, err = db.NewRemoteSearcher(&remote.Config{
			Endpoint: endpoint,
			APIKey:   c.String("remote-api-key"),
			Timeout:  c.Duration("remote-timeout"),
		}, opts...)
	} else {
		searcher, err = db.NewSearcher(opts...)
	}
	if err != nil {
		return fmt.Errorf("failed to create searcher: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.Context, time.Minute)
	defer cancel()

	monitor := search.NewLogMonitor(slog.Default())
	resp, err := searcher.SearchWithMonitor(ctx, query, c.String("owner"), monitor)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	printResponse(c.App.Writer, resp)
	return nil
}

func printStatus(w io.Writer, status indexer.Status) {
	fmt.Fprintf(w, "Total receipts:    %d\n", status.Total)
	fmt.Fprintf(w, "With embedding:    %d\n", status.WithEmbedding)
	fmt.Fprintf(w, "Without embedding: %d\n", status.WithoutEmbedding)
	if status.WithoutText > 0 {
		fmt.Fprintf(w, "  (no text):       %d\n", status.WithoutText)
	}
}

func printResponse(w io.Writer, resp *core.SearchResponse) {
	if resp.Answer != nil {
		fmt.Fprintf(w, "%s\n\n", resp.Answer.Text)
	}
	fmt.Fprintf(w, "Found %d receipts (%s query)\n", len(resp.Results), resp.QueryType)
	for i, r := range resp.Results {
		amount := "-"
		if r.Receipt.Amount != nil {
			amount = fmt.Sprintf("$%.2f", *r.Receipt.Amount)
		}
		date := "-"
		if !r.Receipt.PurchaseDate.IsZero() {
			date = r.Receipt.PurchaseDate.Format(time.DateOnly)
		}
		fmt.Fprintf(w, "%d: %s | %s | %s | %s [%s %.3f]\n",
			i+1, r.Receipt.Description, r.Receipt.Store, date, amount, r.Source, r.Score)
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
