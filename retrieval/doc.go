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

// Package retrieval finds an owner's receipts for a query.
//
// Two sources exist and they are never mixed in one response. VectorRetriever
// asks a similarity searcher and reports true similarity scores.
// LexicalRetriever reads the record store directly and gives every match the
// same nominal score, LexicalScore; it is the fallback when similarity search
// is unavailable. Callers must not rank lexical results against vector ones.
package retrieval
