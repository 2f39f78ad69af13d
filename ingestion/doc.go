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

// Package ingestion loads receipts from JSON files into the record store.
//
// The Importer decodes files concurrently on a worker pool, validates every
// receipt, and derives its ID from its content so importing the same file
// twice updates the stored receipts instead of duplicating them. Importing
// never generates embeddings; the indexer fills them in on demand.
package ingestion
