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

package search

import (
	"log/slog"

	"github.com/poiesic/receiptrag/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query, ownerID string)
	AfterClassification(queryType core.QueryType, wantsAnswer bool)
	VectorRetrievalFailed(err error)
	FallbackToLexical(reason string)
	AfterRetrieval(source core.ResultSource, results []*core.SearchResult)
	AfterSynthesis(answered bool)
	Finish(response *core.SearchResponse)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_, _ string)                                          {}
func (n *noopMonitor) AfterClassification(_ core.QueryType, _ bool)               {}
func (n *noopMonitor) VectorRetrievalFailed(_ error)                              {}
func (n *noopMonitor) FallbackToLexical(_ string)                                 {}
func (n *noopMonitor) AfterRetrieval(_ core.ResultSource, _ []*core.SearchResult) {}
func (n *noopMonitor) AfterSynthesis(_ bool)                                      {}
func (n *noopMonitor) Finish(_ *core.SearchResponse)                              {}


// LogMonitor writes each search stage to a logger at debug level.
type LogMonitor struct {
	logger *slog.Logger
}

var _ SearchMonitor = (*LogMonitor)(nil)

// NewLogMonitor creates a LogMonitor. A nil logger uses slog.Default().
func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{logger: logger.With("component", "search-monitor")}
}

func (m *LogMonitor) Start(query, ownerID string) {
	m.logger.Debug("search started", "query", query, "owner", ownerID)
}

func (m *LogMonitor) AfterClassification(queryType core.QueryType, wantsAnswer bool) {
	m.logger.Debug("query classified", "queryType", queryType, "wantsAnswer", wantsAnswer)
}

func (m *LogMonitor) VectorRetrievalFailed(err error) {
	m.logger.Debug("vector retrieval failed", "err", err)
}

func (m *LogMonitor) FallbackToLexical(reason string) {
	m.logger.Debug("falling back to lexical retrieval", "reason", reason)
}

func (m *LogMonitor) AfterRetrieval(source core.ResultSource, results []*core.SearchResult) {
	m.logger.Debug("retrieval finished", "source", source, "results", len(results))
}

func (m *LogMonitor) AfterSynthesis(answered bool) {
	m.logger.Debug("synthesis finished", "answered", answered)
}

func (m *LogMonitor) Finish(response *core.SearchResponse) {
	m.logger.Debug("search finished", "results", len(response.Results), "answered", response.Answer != nil)
}
