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
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/receiptrag/core"
)

// BuildContext formats each receipt as a block of "Label: value" lines and
// separates the blocks with a blank line. Empty fields are left out.
func BuildContext(results []*core.SearchResult) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		if r == nil || r.Receipt == nil {
			continue
		}
		blocks = append(blocks, formatReceipt(r.Receipt))
	}
	return strings.Join(blocks, "\n\n")
}

func formatReceipt(r *core.Receipt) string {
	var b strings.Builder
	line := func(label, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
	}

	line("Product", r.Description)
	line("Brand", r.Brand)
	line("Store", r.Store)
	line("Location", r.Location)
	if !r.PurchaseDate.IsZero() {
		line("Date", r.PurchaseDate.Format(time.DateOnly))
	}
	if r.Amount != nil {
		line("Amount", fmt.Sprintf("$%.2f", *r.Amount))
	}
	line("Warranty", r.WarrantyPeriod)
	line("Model", r.Model)
	return b.String()
}
