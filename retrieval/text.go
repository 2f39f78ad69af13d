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

package retrieval

import "strings"

// stopWords are dropped from a query before term matching.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "i": true, "me": true, "my": true, "did": true,
	"show": true, "find": true, "receipt": true, "receipts": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// containsAllTerms reports whether every term occurs in at least one field.
// A trailing plural "s" is ignored so "bags" finds "Laptop Bag".
func containsAllTerms(fields []string, terms []string) bool {
	haystack := strings.ToLower(strings.Join(fields, " "))
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			continue
		}
		if singular, ok := strings.CutSuffix(term, "s"); ok && len(singular) > 2 && strings.Contains(haystack, singular) {
			continue
		}
		return false
	}
	return true
}
