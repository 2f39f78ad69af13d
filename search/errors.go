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

import "errors"

var (
	// ErrVectorRetrieverRequired is returned when a vector retriever is not provided.
	ErrVectorRetrieverRequired = errors.New("vector retriever required")

	// ErrLexicalRetrieverRequired is returned when a lexical retriever is not provided.
	ErrLexicalRetrieverRequired = errors.New("lexical retriever required")

	// ErrSynthesizerRequired is returned when an answer synthesizer is not provided.
	ErrSynthesizerRequired = errors.New("answer synthesizer required")
)
