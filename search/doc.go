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

// Package search answers a user's natural-language query about their receipts.
//
// The Searcher classifies the query, retrieves receipts by similarity and
// falls back to lexical matching when similarity search fails. It then
// optionally attaches a generated answer. A search only returns an error for
// configuration problems; every other failure degrades to fewer results or
// no answer.
package search
