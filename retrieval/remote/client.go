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

// Package remote is a client for an external similarity-search service.
//
// The service accepts {"query", "ownerId"} and answers with ranked receipt
// summaries that already carry a relevance score. It is scoped to the owner
// on the server side.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/receiptrag/core"
	"github.com/poiesic/receiptrag/retrieval"
)

const serviceName = "similarity"

// ErrEndpointRequired is returned when no service endpoint is configured.
var ErrEndpointRequired = errors.New("similarity endpoint required")

// Config holds the settings for the similarity-search service.
type Config struct {
	// Endpoint is the full URL the search request is posted to.
	Endpoint string
	// APIKey is sent as a bearer token when set.
	APIKey string
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds a search request when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Validate checks that the config can be used.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("%w: %w", core.ErrConfiguration, ErrEndpointRequired)
	}
	return nil
}

// Client calls the similarity-search service.
type Client struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

var _ retrieval.SimilaritySearcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger == nil {
			logger = slog.Default()
		}
		cl.logger = logger
	}
}

// NewClient creates a Client.
func NewClient(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, ErrEndpointRequired)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		config: config,
		http:   &http.Client{Timeout: timeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "similarity-client")
	return c, nil
}

type searchRequest struct {
	Query   string `json:"query"`
	OwnerID string `json:"ownerId"`
}

type searchResponse struct {
	Results *[]resultJSON `json:"results"`
}

type resultJSON struct {
	ID             flexibleID `json:"id"`
	Title          string     `json:"title"`
	Brand          string     `json:"brand"`
	Model          string     `json:"model,omitempty"`
	Store          string     `json:"store,omitempty"`
	Location       string     `json:"location,omitempty"`
	PurchaseDate   string     `json:"purchaseDate"`
	Amount         *float64   `json:"amount,omitempty"`
	WarrantyPeriod string     `json:"warrantyPeriod"`
	RelevanceScore float32    `json:"relevanceScore"`
}

// flexibleID accepts a numeric id or a string id. Non-numeric strings are
// mapped to a content-derived ID.
type flexibleID core.ID

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	var n uint64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexibleID(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		*f = flexibleID(n)
		return nil
	}
	*f = flexibleID(core.IDFromContent(s))
	return nil
}

// Search posts the query to the service and converts its results.
func (c *Client) Search(ctx context.Context, query, ownerID string) ([]*core.SearchResult, error) {
	var rsp searchResponse
	if err := c.do(ctx, searchRequest{Query: query, OwnerID: ownerID}, &rsp); err != nil {
		return nil, err
	}
	if rsp.Results == nil {
		return nil, core.NewServiceError(serviceName, core.FailureMalformed, "response has no results field", nil)
	}

	results := make([]*core.SearchResult, 0, len(*rsp.Results))
	for _, r := range *rsp.Results {
		results = append(results, &core.SearchResult{
			Receipt: r.toReceipt(ownerID),
			Score:   r.RelevanceScore,
			Source:  core.SourceVector,
		})
	}
	c.logger.Debug("similarity search", "owner", ownerID, "results", len(results))
	return results, nil
}

func (r resultJSON) toReceipt(ownerID string) *core.Receipt {
	receipt := &core.Receipt{
		Id:             core.ID(r.ID),
		OwnerID:        ownerID,
		Description:    r.Title,
		Brand:          r.Brand,
		Model:          r.Model,
		Store:          r.Store,
		Location:       r.Location,
		Amount:         r.Amount,
		WarrantyPeriod: r.WarrantyPeriod,
	}
	receipt.PurchaseDate = parseDate(r.PurchaseDate)
	return receipt
}

func parseDate(s string) time.Time {
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func (c *Client) do(ctx context.Context, req any, rsp any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return core.NewServiceError(serviceName, core.FailureMalformed, "encode request", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(data))
	if err != nil {
		return core.NewServiceError(serviceName, core.FailureConfiguration, "build request", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	response, err := c.http.Do(request)
	if err != nil {
		return core.NewServiceError(serviceName, core.FailureTransport, "", err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return core.NewServiceError(serviceName, core.FailureTransport, "read response", err)
	}

	switch {
	case response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden:
		return core.NewServiceError(serviceName, core.FailureConfiguration,
			fmt.Sprintf("http %d: credentials rejected", response.StatusCode), nil)
	case response.StatusCode >= 400:
		return core.NewServiceError(serviceName, core.FailureTransport,
			fmt.Sprintf("http %d: %s", response.StatusCode, truncate(payload, 200)), nil)
	}

	if len(payload) == 0 {
		return core.NewServiceError(serviceName, core.FailureEmptyResponse, "empty body", nil)
	}
	if err := json.Unmarshal(payload, rsp); err != nil {
		return core.NewServiceError(serviceName, core.FailureMalformed, "decode response", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
