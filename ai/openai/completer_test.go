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

package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/poiesic/receiptrag/ai"
	"github.com/poiesic/receiptrag/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanCompletion(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "You spent $52.30.", want: "You spent $52.30."},
		{name: "whitespace", in: "\n  answer  \n", want: "answer"},
		{name: "code fence", in: "```\nanswer\n```", want: "answer"},
		{name: "markdown fence", in: "```markdown\nanswer\n```", want: "answer"},
		{name: "empty", in: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanCompletion(tt.in))
		})
	}
}

func newChatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
	}))
}

func TestCompleter_Complete(t *testing.T) {
	t.Run("returns first choice", func(t *testing.T) {
		srv := newChatServer(t, http.StatusOK, "You spent $52.30 on a laptop bag.")
		defer srv.Close()

		completer, err := NewCompleter(ai.NewConfig(ai.WithHost(srv.URL)))
		require.NoError(t, err)

		text, err := completer.Complete(context.Background(), ai.CompletionRequest{
			SystemPrompt: "system",
			UserPrompt:   "user",
			Temperature:  -1,
		})
		require.NoError(t, err)
		assert.Equal(t, "You spent $52.30 on a laptop bag.", text)
	})

	t.Run("empty content is an empty response", func(t *testing.T) {
		srv := newChatServer(t, http.StatusOK, "   ")
		defer srv.Close()

		completer, err := NewCompleter(ai.NewConfig(ai.WithHost(srv.URL)))
		require.NoError(t, err)

		_, err = completer.Complete(context.Background(), ai.CompletionRequest{UserPrompt: "user"})
		require.Error(t, err)
		kind, ok := core.FailureKindOf(err)
		require.True(t, ok)
		assert.Equal(t, core.FailureEmptyResponse, kind)
	})

	t.Run("server error is a transport failure", func(t *testing.T) {
		srv := newChatServer(t, http.StatusInternalServerError, "")
		defer srv.Close()

		completer, err := NewCompleter(ai.NewConfig(ai.WithHost(srv.URL)))
		require.NoError(t, err)

		_, err = completer.Complete(context.Background(), ai.CompletionRequest{UserPrompt: "user"})
		require.Error(t, err)
		kind, ok := core.FailureKindOf(err)
		require.True(t, ok)
		assert.Equal(t, core.FailureTransport, kind)
	})
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	_, err := NewProvider(ai.NewConfig(ai.WithAPIToken("")))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}
