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

package core

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for receipts.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Receipt is a single digitized purchase owned by one user.
type Receipt struct {
	Id             ID
	OwnerID        string
	Description    string
	Brand          string
	Model          string
	Store          string
	Location       string
	PurchaseDate   time.Time
	Amount         *float64 // nil when the receipt carried no total
	WarrantyPeriod string   // free text, e.g. "2 years"
	Vector         []float32
	InsertedAt     time.Time // When the record was inserted into the database
	UpdatedAt      time.Time // When the record was last updated
	EmbeddedAt     time.Time // When Vector was last written by the indexer
}

// HasEmbedding reports whether the receipt carries a stored embedding.
func (r *Receipt) HasEmbedding() bool {
	return len(r.Vector) > 0
}

// EmbeddingText builds the composite text that is embedded for the receipt.
// Non-empty textual fields are joined by single spaces in a fixed order:
// description, brand, model, store, location, warranty. Purchase date and
// amount are not part of it.
func (r *Receipt) EmbeddingText() string {
	fields := []string{r.Description, r.Brand, r.Model, r.Store, r.Location, r.WarrantyPeriod}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}

// ContentKey returns the identity tuple used to derive a stable ID for an
// imported receipt, so importing the same file twice updates in place.
func (r *Receipt) ContentKey() string {
	amount := ""
	if r.Amount != nil {
		amount = strconv.FormatFloat(*r.Amount, 'f', 2, 64)
	}
	date := ""
	if !r.PurchaseDate.IsZero() {
		date = r.PurchaseDate.UTC().Format(time.DateOnly)
	}
	return "(" + strings.Join([]string{r.OwnerID, r.Description, r.Brand, r.Model, r.Store, date, amount}, ",") + ")"
}

// QueryType is the coarse intent derived from a search query.
type QueryType string

const (
	// QueryTypeSearch is a plain lookup, answered by results alone.
	QueryTypeSearch QueryType = "search"
	// QueryTypeSummary asks for an aggregate such as a total spend.
	QueryTypeSummary QueryType = "summary"
	// QueryTypeQuestion is an open question about the receipts.
	QueryTypeQuestion QueryType = "question"
)

// ResultSource records which retriever produced a SearchResult.
type ResultSource string

const (
	// SourceVector results carry a true similarity score.
	SourceVector ResultSource = "vector"
	// SourceLexical results carry a fixed nominal score.
	SourceLexical ResultSource = "lexical"
)

// SearchResult represents a receipt matched by a query along with its relevance score.
// Scores are only comparable between results of the same Source.
type SearchResult struct {
	Receipt *Receipt
	Score   float32 // in [0, 1]
	Source  ResultSource
}

// Answer is generated text grounded on a set of search results.
type Answer struct {
	Text      string
	QueryType QueryType
}

// SearchResponse is the user-visible outcome of a smart search.
type SearchResponse struct {
	Answer    *Answer // nil when no answer was produced
	Results   []*SearchResult
	QueryType QueryType
}
