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

// Package storage provides the storage abstraction layer for receipts.
//
// This package defines repository interfaces that decouple storage implementation
// from business logic:
//
//   - ReceiptRepository: the record store, the source of truth for receipts and embeddings
//   - VectorIndex: owner-scoped similarity search, implemented by the record
//     store itself (storage/badger) and by an external vector database (storage/qdrant)
//
// Every query that returns receipts is scoped to a single owner. A receipt
// without an owner is rejected on write.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	repo, err := badger.NewReceiptRepository(backend)
//
// Use in tests with in-memory storage:
//
//	repo, backend, err := badger.NewMemoryRepository()
//
// # Serialization
//
// Receipts and IDs are encoded with hand-composed MUS serializers (see
// core.ReceiptMUS). Timestamps keep microsecond precision.
package storage
