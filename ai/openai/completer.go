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
	"log/slog"
	"strings"

	"github.com/poiesic/receiptrag/ai"
	"github.com/poiesic/receiptrag/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const completionService = "completion"

// Completer implements ai.Completer using OpenAI-compatible chat APIs.
type Completer struct {
	client      llms.Model
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// newCompleter is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newCompleter(config *ai.Config) (*Completer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.CompletionHost),
		openai.WithToken(config.APIToken),
		openai.WithModel(config.CompletionModel),
	)
	if err != nil {
		return nil, core.NewServiceError(completionService, core.FailureConfiguration, "create client", err)
	}

	return &Completer{
		client:      client,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		logger:      slog.Default().With("component", "openai-completer"),
	}, nil
}

// NewCompleter creates a new completer using the provided configuration.
//
// Returns ai.Completer interface to enforce abstraction.
func NewCompleter(config *ai.Config) (ai.Completer, error) {
	return newCompleter(config)
}

// Complete sends the system and user prompts and returns the first choice.
func (c *Completer) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	temperature := req.Temperature
	if temperature < 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(req.SystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(req.UserPrompt)},
		},
	}

	response, err := c.client.GenerateContent(ctx, content,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		c.logger.Error("failed to generate content", "err", err)
		return "", core.NewServiceError(completionService, core.FailureTransport, "", err)
	}

	if len(response.Choices) < 1 {
		c.logger.Debug("no choices returned from model")
		return "", core.NewServiceError(completionService, core.FailureEmptyResponse, "no choices", nil)
	}

	text := cleanCompletion(response.Choices[0].Content)
	if text == "" {
		return "", core.NewServiceError(completionService, core.FailureEmptyResponse, "empty content", nil)
	}
	return text, nil
}

// cleanCompletion strips whitespace and markdown code fences some models wrap answers in.
func cleanCompletion(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```markdown")
		s = strings.TrimPrefix(s, "```text")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
