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

package mock

import (
	"context"
	"sync"

	"github.com/poiesic/receiptrag/ai"
)

// DefaultAnswer is returned by MockCompleter when no CompleteFunc is set.
const DefaultAnswer = "mock answer"

// MockCompleter is a test double for ai.Completer.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	// If nil, returns DefaultAnswer.
	CompleteFunc func(ctx context.Context, req ai.CompletionRequest) (string, error)

	mu       sync.Mutex
	requests []ai.CompletionRequest
}

// NewMockCompleter creates a mock completer with default behavior.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// Complete records the request and returns the injected or default answer.
func (m *MockCompleter) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return DefaultAnswer, nil
}

// CallCount returns the number of Complete calls.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns the recorded requests in call order.
func (m *MockCompleter) Requests() []ai.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.CompletionRequest(nil), m.requests...)
}

// LastRequest returns the most recent request, or the zero value.
func (m *MockCompleter) LastRequest() ai.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ai.CompletionRequest{}
	}
	return m.requests[len(m.requests)-1]
}

// Reset clears recorded requests and injected behavior.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.CompleteFunc = nil
}
