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

// Package indexer maintains the embedding cache of stored receipts.
//
// Embeddings are produced on demand: CheckStatus reports how many of an
// owner's receipts are searchable semantically and Backfill embeds the ones
// that are not. Backfill is sequential and throttled so a single owner's
// catch-up never floods the embedding service. Individual failures are counted
// and left for the next pass.
package indexer
