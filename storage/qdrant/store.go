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

package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/poiesic/receiptrag/core"
	"github.com/poiesic/receiptrag/storage"
)

const serviceName = "qdrant"

// Payload keys written for every point.
const (
	fieldOwner        = "owner_id"
	fieldDescription  = "description"
	fieldBrand        = "brand"
	fieldModel        = "model"
	fieldStore        = "store"
	fieldLocation     = "location"
	fieldWarranty     = "warranty_period"
	fieldPurchaseDate = "purchase_date"
	fieldAmount       = "amount"
)

// ErrAddressRequired is returned when no gRPC address is configured.
var ErrAddressRequired = errors.New("qdrant address required")

// PointsAPI is the subset of the qdrant points service used by Store.
type PointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// CollectionsAPI is the subset of the qdrant collections service used by Store.
type CollectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Config holds the connection settings for a qdrant collection.
type Config struct {
	// Address is the gRPC host:port, e.g. "localhost:6334".
	Address string
	// Collection is the collection holding receipt vectors.
	Collection string
	// Dimensions is the vector size used when creating the collection.
	Dimensions int
}

// DefaultConfig returns settings for a local qdrant instance.
func DefaultConfig() *Config {
	return &Config{
		Address:    "localhost:6334",
		Collection: "receipts",
		Dimensions: 384,
	}
}

// Store mirrors receipt embeddings into qdrant and answers owner-scoped
// similarity queries from it. The record store remains the source of truth.
type Store struct {
	conn        *grpc.ClientConn
	points      PointsAPI
	collections CollectionsAPI
	collection  string
	dims        int
	logger      *slog.Logger
}

var _ storage.VectorIndex = (*Store)(nil)

// New creates a Store connected to qdrant over gRPC.
func New(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, ErrAddressRequired)
	}
	conn, err := grpc.NewClient(cfg.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", cfg.Address, err)
	}
	s := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), cfg.Collection, cfg.Dimensions)
	s.conn = conn
	return s, nil
}

// NewWithClients creates a Store over existing service clients.
func NewWithClients(points PointsAPI, collections CollectionsAPI, collection string, dims int) *Store {
	return &Store{
		points:      points,
		collections: collections,
		collection:  collection,
		dims:        dims,
		logger:      slog.Default().With("component", "qdrant-store"),
	}
}

// Close closes the underlying gRPC connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (s *Store) EnsureCollection(ctx context.Context) error {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return transportError("list collections", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}

	s.logger.Info("creating collection", "collection", s.collection, "dims", s.dims)
	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(s.dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return transportError("create collection "+s.collection, err)
	}
	return nil
}

// UpsertReceipt writes the receipt's vector and display fields as one point.
func (s *Store) UpsertReceipt(ctx context.Context, receipt *core.Receipt) error {
	if !receipt.HasEmbedding() {
		return nil
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: pointID(receipt.Id),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: receipt.Vector},
				},
			},
			Payload: payloadFor(receipt),
		}},
	})
	if err != nil {
		return transportError(fmt.Sprintf("upsert receipt %d", receipt.Id), err)
	}
	return nil
}

// DeleteReceipt removes a receipt's point.
func (s *Store) DeleteReceipt(ctx context.Context, id core.ID) error {
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID(id)}},
			},
		},
	})
	if err != nil {
		return transportError(fmt.Sprintf("delete receipt %d", id), err)
	}
	return nil
}

// FindSimilar performs an owner-filtered k-NN search.
func (s *Store) FindSimilar(ctx context.Context, ownerID string, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	if err := core.ValidateOwnerID(ownerID); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	if limit <= 0 {
		limit = 10
	}

	threshold := minSimilarity
	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		ScoreThreshold: &threshold,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Filter:         &pb.Filter{Must: []*pb.Condition{fieldMatch(fieldOwner, ownerID)}},
	})
	if err != nil {
		return nil, transportError("search", err)
	}

	results := make([]*core.SearchResult, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		receipt := receiptFromPayload(point.GetPayload())
		receipt.Id = core.ID(point.GetId().GetNum())
		// The filter already scopes by owner; guard against a misconfigured index.
		if receipt.OwnerID != ownerID {
			continue
		}
		results = append(results, &core.SearchResult{
			Receipt: receipt,
			Score:   point.GetScore(),
			Source:  core.SourceVector,
		})
	}
	return results, nil
}

func pointID(id core.ID) *pb.PointId {
	return &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(id)}}
}

func payloadFor(r *core.Receipt) map[string]*pb.Value {
	payload := map[string]*pb.Value{
		fieldOwner:       stringValue(r.OwnerID),
		fieldDescription: stringValue(r.Description),
		fieldBrand:       stringValue(r.Brand),
		fieldModel:       stringValue(r.Model),
		fieldStore:       stringValue(r.Store),
		fieldLocation:    stringValue(r.Location),
		fieldWarranty:    stringValue(r.WarrantyPeriod),
	}
	if !r.PurchaseDate.IsZero() {
		payload[fieldPurchaseDate] = stringValue(r.PurchaseDate.UTC().Format(time.DateOnly))
	}
	if r.Amount != nil {
		payload[fieldAmount] = &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: *r.Amount}}
	}
	return payload
}

func receiptFromPayload(payload map[string]*pb.Value) *core.Receipt {
	r := &core.Receipt{
		OwnerID:        payload[fieldOwner].GetStringValue(),
		Description:    payload[fieldDescription].GetStringValue(),
		Brand:          payload[fieldBrand].GetStringValue(),
		Model:          payload[fieldModel].GetStringValue(),
		Store:          payload[fieldStore].GetStringValue(),
		Location:       payload[fieldLocation].GetStringValue(),
		WarrantyPeriod: payload[fieldWarranty].GetStringValue(),
	}
	if v, ok := payload[fieldPurchaseDate]; ok {
		if ts, err := time.Parse(time.DateOnly, v.GetStringValue()); err == nil {
			r.PurchaseDate = ts
		}
	}
	if v, ok := payload[fieldAmount]; ok {
		amount := v.GetDoubleValue()
		r.Amount = &amount
	}
	return r
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

func transportError(op string, err error) error {
	return core.NewServiceError(serviceName, core.FailureTransport, op, err)
}
