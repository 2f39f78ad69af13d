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

package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Failures are reported as *core.ServiceError.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionRequest is a single system/user exchange sent to a language model.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string

	// MaxTokens bounds the response. Zero means the provider default.
	MaxTokens int

	// Temperature controls sampling. Negative means the provider default.
	Temperature float64
}

// Completer generates text from a prompt.
// Implementations must be thread-safe for concurrent use.
type Completer interface {
	// Complete returns the model's text for the request.
	// An empty or missing response is an error of kind core.FailureEmptyResponse.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Completer returns the text completion service.
	Completer() Completer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
