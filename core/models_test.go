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
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantSame bool
	}{
		{
			name:     "simple content",
			content:  "test content",
			wantSame: true,
		},
		{
			name:     "empty string",
			content:  "",
			wantSame: true,
		},
		{
			name:     "receipt tuple",
			content:  "(alice,Laptop Bag,Targus,,Office Depot,2024-03-02,52.30)",
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)

			if tt.wantSame && id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	id1 := IDFromContent("content1")
	id2 := IDFromContent("content2")

	if id1 == id2 {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestReceipt_EmbeddingText(t *testing.T) {
	tests := []struct {
		name    string
		receipt Receipt
		want    string
	}{
		{
			name: "all fields in fixed order",
			receipt: Receipt{
				Description:    "Laptop Bag",
				Brand:          "Targus",
				Model:          "TSB883",
				Store:          "Office Depot",
				Location:       "Austin",
				WarrantyPeriod: "1 year",
			},
			want: "Laptop Bag Targus TSB883 Office Depot Austin 1 year",
		},
		{
			name: "empty fields are skipped",
			receipt: Receipt{
				Description: "Coffee Beans",
				Store:       "Whole Foods",
			},
			want: "Coffee Beans Whole Foods",
		},
		{
			name: "whitespace only fields are skipped",
			receipt: Receipt{
				Description: "  ",
				Brand:       "Apple",
			},
			want: "Apple",
		},
		{
			name: "date and amount are not included",
			receipt: Receipt{
				Description:  "Monitor",
				PurchaseDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
				Amount:       ptr(199.99),
			},
			want: "Monitor",
		},
		{
			name:    "nothing textual",
			receipt: Receipt{Amount: ptr(3.50)},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.receipt.EmbeddingText(); got != tt.want {
				t.Errorf("EmbeddingText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReceipt_HasEmbedding(t *testing.T) {
	r := Receipt{}
	if r.HasEmbedding() {
		t.Error("expected no embedding on zero receipt")
	}
	r.Vector = []float32{0.1}
	if !r.HasEmbedding() {
		t.Error("expected embedding after setting vector")
	}
}

func TestReceipt_ContentKey(t *testing.T) {
	a := Receipt{OwnerID: "alice", Description: "Laptop Bag", Amount: ptr(52.3)}
	b := Receipt{OwnerID: "alice", Description: "Laptop Bag", Amount: ptr(52.30)}
	c := Receipt{OwnerID: "bob", Description: "Laptop Bag", Amount: ptr(52.3)}

	if a.ContentKey() != b.ContentKey() {
		t.Errorf("equal receipts produced different keys: %s vs %s", a.ContentKey(), b.ContentKey())
	}
	if a.ContentKey() == c.ContentKey() {
		t.Error("receipts of different owners share a key")
	}
}

func TestServiceError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewServiceError("embedding", FailureTransport, "", cause)

	if !errors.Is(err, cause) {
		t.Error("ServiceError should unwrap to its cause")
	}
	if errors.Is(err, ErrConfiguration) {
		t.Error("transport failure must not match ErrConfiguration")
	}
	if got := err.Error(); got != "embedding: transport: connection refused" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := fmt.Errorf("search: %w", NewServiceError("completion", FailureConfiguration, "api key missing", nil))
	if !IsConfigurationError(wrapped) {
		t.Error("configuration failure should match ErrConfiguration through wrapping")
	}

	kind, ok := FailureKindOf(wrapped)
	if !ok || kind != FailureConfiguration {
		t.Errorf("FailureKindOf() = %v, %v", kind, ok)
	}

	if _, ok := FailureKindOf(cause); ok {
		t.Error("plain errors carry no failure kind")
	}
}

func TestFailureKind_String(t *testing.T) {
	tests := []struct {
		kind FailureKind
		want string
	}{
		{FailureTransport, "transport"},
		{FailureConfiguration, "configuration"},
		{FailureEmptyResponse, "empty-response"},
		{FailureMalformed, "malformed"},
		{FailureKind(42), "unknown(42)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func ptr(f float64) *float64 {
	return &f
}
