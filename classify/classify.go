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

// Package classify derives the intent of a free-text receipt query.
//
// Classification is a fixed keyword heuristic: it needs no model call and is
// deterministic for a given query.
package classify

import (
	"strings"
	"unicode"

	"github.com/poiesic/receiptrag/core"
)

// Keyword tables. Multi-word entries match consecutive words.
var (
	summaryKeywords  = []string{"how much", "total", "spent", "sum", "cost"}
	questionKeywords = []string{"what", "when", "where", "why", "how", "which", "who"}
	synthesisWords   = []string{"compare", "versus", "between"}
)

// synthesisWordCount is the query length above which an answer is
// worth generating regardless of the classification.
const synthesisWordCount = 3

// Classify returns the query type. Summary keywords take precedence
// over question keywords. Matching ignores case and punctuation and only
// matches whole words, so "show" never matches "how".
func Classify(query string) core.QueryType {
	words := tokenize(query)
	if containsAny(words, summaryKeywords) {
		return core.QueryTypeSummary
	}
	if strings.Contains(query, "?") || containsAny(words, questionKeywords) {
		return core.QueryTypeQuestion
	}
	return core.QueryTypeSearch
}

// IsSynthesisWorthy reports whether a query calls for a generated answer
// even when Classify says it is a plain search.
func IsSynthesisWorthy(query string) bool {
	words := tokenize(query)
	return len(words) > synthesisWordCount || containsAny(words, synthesisWords)
}

// NeedsSynthesis reports whether a query of the given type should get
// a generated answer.
func NeedsSynthesis(query string, queryType core.QueryType) bool {
	switch queryType {
	case core.QueryTypeSummary, core.QueryTypeQuestion:
		return true
	}
	return IsSynthesisWorthy(query)
}

// tokenize lowercases text and splits it on anything that is not a letter,
// digit or apostrophe. A contraction keeps only its stem, so "where's"
// counts as the one word "where".
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !isApostrophe(r)
	})
	words := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, isApostrophe)
		if i := strings.IndexFunc(f, isApostrophe); i >= 0 {
			f = f[:i]
		}
		if f != "" {
			words = append(words, f)
		}
	}
	return words
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '\u2019'
}

func containsAny(words []string, keywords []string) bool {
	for _, kw := range keywords {
		if containsPhrase(words, strings.Fields(kw)) {
			return true
		}
	}
	return false
}

func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(words); i++ {
		for j, p := range phrase {
			if words[i+j] != p {
				continue outer
			}
		}
		return true
	}
	return false
}
