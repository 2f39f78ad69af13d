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

package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/receiptrag/core"
	"github.com/poiesic/receiptrag/storage"
)

// receiptJSON is the on-disk shape of one receipt.
type receiptJSON struct {
	OwnerID        string   `json:"ownerId"`
	Description    string   `json:"description"`
	Brand          string   `json:"brand"`
	Model          string   `json:"model"`
	Store          string   `json:"store"`
	Location       string   `json:"location"`
	PurchaseDate   string   `json:"purchaseDate"`
	Amount         *float64 `json:"amount"`
	WarrantyPeriod string   `json:"warrantyPeriod"`
}

// ImportResult summarizes one import run.
type ImportResult struct {
	Files    int // files read
	Imported int // receipts written
	Rejected int // receipts or files that could not be imported
}

// Importer decodes receipt files and writes them to the record store.
type Importer struct {
	repo   storage.ReceiptRepository
	pool   *ants.Pool
	owner  string
	logger *slog.Logger
}

// Option configures an Importer.
type Option func(*Importer) error

// WithPoolSize sets the number of files decoded concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(im *Importer) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if im.pool != nil {
			im.pool.Release()
		}
		im.pool = pool
		return nil
	}
}

// WithDefaultOwner sets the owner assigned to receipts that don't name one.
func WithDefaultOwner(owner string) Option {
	return func(im *Importer) error {
		im.owner = strings.TrimSpace(owner)
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(im *Importer) error {
		if logger == nil {
			logger = slog.Default()
		}
		im.logger = logger
		return nil
	}
}

// NewImporter creates an Importer writing to repo.
func NewImporter(repo storage.ReceiptRepository, opts ...Option) (*Importer, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	im := &Importer{
		repo:   repo,
		pool:   pool,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(im); optErr != nil {
			im.Release()
			return nil, optErr
		}
	}
	im.logger = im.logger.With("component", "importer")
	return im, nil
}

// Release stops the worker pool. The Importer must not be used afterwards.
func (im *Importer) Release() {
	if im.pool != nil {
		im.pool.Release()
	}
}

// ImportFiles decodes the given files concurrently and stores every valid
// receipt. Files or receipts that fail are counted as rejected and their
// errors are joined into the returned error; the rest are still stored.
func (im *Importer) ImportFiles(ctx context.Context, paths ...string) (ImportResult, error) {
	type decoded struct {
		receipts []*core.Receipt
		err      error
	}

	results := make([]decoded, len(paths))
	var wg sync.WaitGroup
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			results[i].err = err
			continue
		}
		wg.Add(1)
		submitErr := im.pool.Submit(func() {
			defer wg.Done()
			receipts, err := im.decodeFile(path)
			results[i] = decoded{receipts: receipts, err: err}
		})
		if submitErr != nil {
			wg.Done()
			results[i].err = fmt.Errorf("%s: %w", path, submitErr)
		}
	}
	wg.Wait()

	var result ImportResult
	var errs []error
	var receipts []*core.Receipt
	for i, d := range results {
		if d.err != nil {
			im.logger.Warn("skipping file", "path", paths[i], "err", d.err)
			result.Rejected++
			errs = append(errs, d.err)
			continue
		}
		result.Files++
		receipts = append(receipts, d.receipts...)
	}

	stored, err := im.ImportReceipts(ctx, receipts...)
	result.Imported = stored.Imported
	result.Rejected += stored.Rejected
	if err != nil {
		errs = append(errs, err)
	}
	return result, errors.Join(errs...)
}

// ImportReader decodes receipts from r and stores them.
func (im *Importer) ImportReader(ctx context.Context, r io.Reader) (ImportResult, error) {
	receipts, err := im.Decode(r)
	if err != nil {
		return ImportResult{Rejected: 1}, err
	}
	result, err := im.ImportReceipts(ctx, receipts...)
	result.Files = 1
	return result, err
}

// ImportReceipts validates the receipts, assigns content-derived IDs and
// stores the valid ones in a single write.
func (im *Importer) ImportReceipts(ctx context.Context, receipts ...*core.Receipt) (ImportResult, error) {
	var result ImportResult
	var errs []error

	seen := make(map[core.ID]int, len(receipts))
	valid := make([]*core.Receipt, 0, len(receipts))
	for _, r := range receipts {
		if r != nil && strings.TrimSpace(r.OwnerID) == "" {
			r.OwnerID = im.owner
		}
		if err := core.ValidateReceipt(r); err != nil {
			result.Rejected++
			errs = append(errs, err)
			continue
		}
		r.Id = core.IDFromContent(r.ContentKey())
		// Identical receipts in one batch collapse to the last copy.
		if idx, ok := seen[r.Id]; ok {
			valid[idx] = r
			continue
		}
		seen[r.Id] = len(valid)
		valid = append(valid, r)
	}

	if len(valid) > 0 {
		// Nothing is written once the caller has gone away.
		if err := ctx.Err(); err != nil {
			result.Rejected += len(valid)
			errs = append(errs, err)
			return result, errors.Join(errs...)
		}
		if _, err := im.repo.AddReceipts(ctx, valid...); err != nil {
			result.Rejected += len(valid)
			errs = append(errs, fmt.Errorf("store receipts: %w", err))
			return result, errors.Join(errs...)
		}
		result.Imported = len(valid)
	}

	im.logger.Info("import complete", "imported", result.Imported, "rejected", result.Rejected)
	return result, errors.Join(errs...)
}

// Decode reads either a single receipt object or an array of them.
// Receipts without an owner get the default owner. IDs are not assigned.
func (im *Importer) Decode(r io.Reader) ([]*core.Receipt, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedFile)
	}

	var raw []receiptJSON
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedFile, err)
		}
	case '{':
		var one receiptJSON
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedFile, err)
		}
		raw = append(raw, one)
	default:
		return nil, fmt.Errorf("%w: expected an object or an array", ErrMalformedFile)
	}

	receipts := make([]*core.Receipt, 0, len(raw))
	for i, rj := range raw {
		receipt, err := rj.toReceipt()
		if err != nil {
			return nil, fmt.Errorf("%w: receipt %d: %w", ErrMalformedFile, i, err)
		}
		if strings.TrimSpace(receipt.OwnerID) == "" {
			receipt.OwnerID = im.owner
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

func (im *Importer) decodeFile(path string) ([]*core.Receipt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	receipts, err := im.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	im.logger.Debug("decoded file", "path", path, "receipts", len(receipts))
	return receipts, nil
}

func (rj receiptJSON) toReceipt() (*core.Receipt, error) {
	r := &core.Receipt{
		OwnerID:        strings.TrimSpace(rj.OwnerID),
		Description:    strings.TrimSpace(rj.Description),
		Brand:          strings.TrimSpace(rj.Brand),
		Model:          strings.TrimSpace(rj.Model),
		Store:          strings.TrimSpace(rj.Store),
		Location:       strings.TrimSpace(rj.Location),
		Amount:         rj.Amount,
		WarrantyPeriod: strings.TrimSpace(rj.WarrantyPeriod),
	}
	if date := strings.TrimSpace(rj.PurchaseDate); date != "" {
		ts, err := parseDate(date)
		if err != nil {
			return nil, err
		}
		r.PurchaseDate = ts
	}
	return r, nil
}

func parseDate(s string) (time.Time, error) {
	if ts, err := time.Parse(time.DateOnly, s); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid purchase date %q", s)
	}
	return ts.UTC(), nil
}
