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

// Package ai provides abstractions for the AI services used by receipt search.
//
// Three interfaces are defined here:
//
//   - Embedder: Generates vector embeddings from text
//   - Completer: Generates an answer from a system and user prompt
//   - AIProvider: Aggregates both for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// Public constructors in ai/openai return interface types. The mock
// constructors return concrete types so tests can inspect call counts
// and inject behavior.
//
// # Errors
//
// Implementations report failures as *core.ServiceError so callers can tell
// a transport failure (fall back, count, swallow) from a configuration
// failure (surface immediately). Config.Validate wraps core.ErrConfiguration.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Laptop Bag Targus")
//	answer, err := provider.Completer().Complete(ctx, ai.CompletionRequest{
//	    SystemPrompt: "You answer questions about receipts.",
//	    UserPrompt:   "How much did I spend on bags?",
//	})
package ai
