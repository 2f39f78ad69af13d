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
	"testing"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/poiesic/receiptrag/core"
	"github.com/poiesic/receiptrag/storage"
)

type mockPoints struct {
	upserted []*pb.UpsertPoints
	deleted  []*pb.DeletePoints
	searched []*pb.SearchPoints
	results  []*pb.ScoredPoint
	err      error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upserted = append(m.upserted, in)
	return &pb.PointsOperationResponse{}, m.err
}

func (m *mockPoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.deleted = append(m.deleted, in)
	return &pb.PointsOperationResponse{}, m.err
}

func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searched = append(m.searched, in)
	if m.err != nil {
		return nil, m.err
	}
	return &pb.SearchResponse{Result: m.results}, nil
}

type mockCollections struct {
	names   []string
	created []*pb.CreateCollection
	err     error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	resp := &pb.ListCollectionsResponse{}
	for _, n := range m.names {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: n})
	}
	return resp, nil
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = append(m.created, in)
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func assertKind(t *testing.T, want core.FailureKind, err error) {
	t.Helper()
	kind, ok := core.FailureKindOf(err)
	require.True(t, ok, "expected a service error, got %v", err)
	assert.Equal(t, want, kind)
}

func TestNew_RequiresAddress(t *testing.T) {
	_, err := New(&Config{Collection: "receipts", Dimensions: 4})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAddressRequired)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestEnsureCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("creates missing collection", func(t *testing.T) {
		cols := &mockCollections{names: []string{"other"}}
		s := NewWithClients(&mockPoints{}, cols, "receipts", 384)

		require.NoError(t, s.EnsureCollection(ctx))
		require.Len(t, cols.created, 1)
		assert.Equal(t, "receipts", cols.created[0].CollectionName)
		params := cols.created[0].GetVectorsConfig().GetParams()
		assert.Equal(t, uint64(384), params.GetSize())
		assert.Equal(t, pb.Distance_Cosine, params.GetDistance())
	})

	t.Run("skips existing collection", func(t *testing.T) {
		cols := &mockCollections{names: []string{"receipts"}}
		s := NewWithClients(&mockPoints{}, cols, "receipts", 384)

		require.NoError(t, s.EnsureCollection(ctx))
		assert.Empty(t, cols.created)
	})

	t.Run("list failure is a transport error", func(t *testing.T) {
		cols := &mockCollections{err: errors.New("unavailable")}
		s := NewWithClients(&mockPoints{}, cols, "receipts", 384)

		err := s.EnsureCollection(ctx)
		require.Error(t, err)
		assertKind(t, core.FailureTransport, err)
	})
}

func TestUpsertReceipt(t *testing.T) {
	ctx := context.Background()
	amount := 499.99
	receipt := &core.Receipt{
		Id:           42,
		OwnerID:      "alice",
		Description:  "Laptop",
		Brand:        "Dell",
		Store:        "Best Buy",
		PurchaseDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:       &amount,
		Vector:       []float32{1, 0, 0},
	}

	t.Run("writes point with payload", func(t *testing.T) {
		points := &mockPoints{}
		s := NewWithClients(points, &mockCollections{}, "receipts", 3)

		require.NoError(t, s.UpsertReceipt(ctx, receipt))
		require.Len(t, points.upserted, 1)
		req := points.upserted[0]
		assert.Equal(t, "receipts", req.CollectionName)
		require.Len(t, req.Points, 1)
		p := req.Points[0]
		assert.Equal(t, uint64(42), p.GetId().GetNum())
		assert.Equal(t, []float32{1, 0, 0}, p.GetVectors().GetVector().GetData())
		assert.Equal(t, "alice", p.Payload[fieldOwner].GetStringValue())
		assert.Equal(t, "2024-03-15", p.Payload[fieldPurchaseDate].GetStringValue())
		assert.InDelta(t, 499.99, p.Payload[fieldAmount].GetDoubleValue(), 1e-9)
	})

	t.Run("skips receipts without vector", func(t *testing.T) {
		points := &mockPoints{}
		s := NewWithClients(points, &mockCollections{}, "receipts", 3)

		require.NoError(t, s.UpsertReceipt(ctx, &core.Receipt{Id: 1, OwnerID: "alice"}))
		assert.Empty(t, points.upserted)
	})

	t.Run("propagates client failure", func(t *testing.T) {
		points := &mockPoints{err: errors.New("conn refused")}
		s := NewWithClients(points, &mockCollections{}, "receipts", 3)

		err := s.UpsertReceipt(ctx, receipt)
		require.Error(t, err)
		assertKind(t, core.FailureTransport, err)
	})
}

func TestDeleteReceipt(t *testing.T) {
	points := &mockPoints{}
	s := NewWithClients(points, &mockCollections{}, "receipts", 3)

	require.NoError(t, s.DeleteReceipt(context.Background(), 7))
	require.Len(t, points.deleted, 1)
	ids := points.deleted[0].GetPoints().GetPoints().GetIds()
	require.Len(t, ids, 1)
	assert.Equal(t, uint64(7), ids[0].GetNum())
}

func TestFindSimilar(t *testing.T) {
	ctx := context.Background()

	scored := func(id uint64, owner, desc string, score float32) *pb.ScoredPoint {
		return &pb.ScoredPoint{
			Id:    pointID(core.ID(id)),
			Score: score,
			Payload: map[string]*pb.Value{
				fieldOwner:        stringValue(owner),
				fieldDescription:  stringValue(desc),
				fieldPurchaseDate: stringValue("2024-01-02"),
				fieldAmount:       {Kind: &pb.Value_DoubleValue{DoubleValue: 12.5}},
			},
		}
	}

	t.Run("filters by owner and rebuilds receipts", func(t *testing.T) {
		points := &mockPoints{results: []*pb.ScoredPoint{
			scored(1, "alice", "Laptop", 0.9),
			scored(2, "bob", "Phone", 0.8),
		}}
		s := NewWithClients(points, &mockCollections{}, "receipts", 3)

		results, err := s.FindSimilar(ctx, "alice", []float32{1, 0, 0}, 0.5, 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, core.ID(1), results[0].Receipt.Id)
		assert.Equal(t, "Laptop", results[0].Receipt.Description)
		assert.Equal(t, core.SourceVector, results[0].Source)
		require.NotNil(t, results[0].Receipt.Amount)
		assert.InDelta(t, 12.5, *results[0].Receipt.Amount, 1e-9)
		assert.Equal(t, 2024, results[0].Receipt.PurchaseDate.Year())

		req := points.searched[0]
		assert.Equal(t, uint64(5), req.Limit)
		assert.InDelta(t, 0.5, req.GetScoreThreshold(), 1e-6)
		cond := req.GetFilter().GetMust()[0].GetField()
		assert.Equal(t, fieldOwner, cond.GetKey())
		assert.Equal(t, "alice", cond.GetMatch().GetKeyword())
	})

	t.Run("rejects empty owner", func(t *testing.T) {
		s := NewWithClients(&mockPoints{}, &mockCollections{}, "receipts", 3)
		_, err := s.FindSimilar(ctx, " ", []float32{1}, 0, 5)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})

	t.Run("search failure is a transport error", func(t *testing.T) {
		points := &mockPoints{err: errors.New("deadline exceeded")}
		s := NewWithClients(points, &mockCollections{}, "receipts", 3)

		_, err := s.FindSimilar(ctx, "alice", []float32{1, 0, 0}, 0, 5)
		require.Error(t, err)
		assertKind(t, core.FailureTransport, err)
	})
}
