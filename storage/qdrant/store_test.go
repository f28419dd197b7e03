package qdrant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/advisor/core"
	"github.com/poiesic/advisor/storage"
	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type mockPoints struct {
	upserts    []*pb.UpsertPoints
	deletes    []*pb.DeletePoints
	searchResp *pb.SearchResponse
	searchErr  error
	getResp    *pb.GetResponse
	getErr     error
	scrollResp []*pb.ScrollResponse
	scrollErr  error
	countResp  *pb.CountResponse
	countErr   error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upserts = append(m.upserts, in)
	return &pb.PointsOperationResponse{}, nil
}

func (m *mockPoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.deletes = append(m.deletes, in)
	return &pb.PointsOperationResponse{}, nil
}

func (m *mockPoints) Search(_ context.Context, _ *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	return m.searchResp, m.searchErr
}

func (m *mockPoints) Get(_ context.Context, _ *pb.GetPoints, _ ...grpc.CallOption) (*pb.GetResponse, error) {
	return m.getResp, m.getErr
}

func (m *mockPoints) Scroll(_ context.Context, _ *pb.ScrollPoints, _ ...grpc.CallOption) (*pb.ScrollResponse, error) {
	if m.scrollErr != nil {
		return nil, m.scrollErr
	}
	resp := m.scrollResp[0]
	m.scrollResp = m.scrollResp[1:]
	return resp, nil
}

func (m *mockPoints) Count(_ context.Context, _ *pb.CountPoints, _ ...grpc.CallOption) (*pb.CountResponse, error) {
	return m.countResp, m.countErr
}

type mockCollections struct {
	names   []string
	size    uint64
	created []*pb.CreateCollection
	deleted int
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	resp := &pb.ListCollectionsResponse{}
	for _, name := range m.names {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: name})
	}
	return resp, nil
}

func (m *mockCollections) Get(_ context.Context, _ *pb.GetCollectionInfoRequest, _ ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error) {
	return &pb.GetCollectionInfoResponse{
		Result: &pb.CollectionInfo{
			Config: &pb.CollectionConfig{
				Params: &pb.CollectionParams{
					VectorsConfig: &pb.VectorsConfig{
						Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{Size: m.size}},
					},
				},
			},
		},
	}, nil
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = append(m.created, in)
	m.names = append(m.names, in.GetCollectionName())
	m.size = in.GetVectorsConfig().GetParams().GetSize()
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func (m *mockCollections) Delete(_ context.Context, _ *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.deleted++
	m.names = nil
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func testVector(catalogID string, vec ...float32) *core.EmbeddingVector {
	return &core.EmbeddingVector{
		RecordID:   core.IDFromContent(catalogID),
		CatalogID:  catalogID,
		SourceHash: "hash-" + catalogID,
		Model:      "test-model",
		Vector:     vec,
		EmbeddedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPointID_Deterministic(t *testing.T) {
	id := core.IDFromContent("fg-1")
	assert.Equal(t, PointID(id), PointID(id))
	assert.NotEqual(t, PointID(id), PointID(core.IDFromContent("fg-2")))
	assert.Len(t, PointID(id), 36)
}

func TestPutVectors_CreatesCollection(t *testing.T) {
	points := &mockPoints{}
	cols := &mockCollections{}
	s := NewWithClients(points, cols, "")

	err := s.PutVectors(context.Background(), testVector("fg-1", 1, 0, 0), testVector("fg-2", 0, 1, 0))
	require.NoError(t, err)

	require.Len(t, cols.created, 1)
	assert.Equal(t, DefaultCollection, cols.created[0].GetCollectionName())
	assert.Equal(t, uint64(3), cols.created[0].GetVectorsConfig().GetParams().GetSize())
	assert.Equal(t, pb.Distance_Cosine, cols.created[0].GetVectorsConfig().GetParams().GetDistance())

	require.Len(t, points.upserts, 1)
	upserted := points.upserts[0].GetPoints()
	require.Len(t, upserted, 2)
	assert.Equal(t, PointID(core.IDFromContent("fg-1")), upserted[0].GetId().GetUuid())
	assert.Equal(t, "fg-1", upserted[0].GetPayload()[payloadCatalogID].GetStringValue())

	require.NoError(t, s.PutVectors(context.Background(), testVector("fg-3", 0, 0, 1)))
	assert.Len(t, cols.created, 1, "collection is created once")
}

func TestPutVectors_DimensionMismatch(t *testing.T) {
	cols := &mockCollections{names: []string{"catalog"}, size: 8}
	s := NewWithClients(&mockPoints{}, cols, "catalog")

	err := s.PutVectors(context.Background(), testVector("fg-1", 1, 0, 0))
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestReset_DropsCollection(t *testing.T) {
	cols := &mockCollections{names: []string{"catalog"}, size: 3}
	s := NewWithClients(&mockPoints{}, cols, "catalog")
	ctx := context.Background()

	require.NoError(t, s.PutVectors(ctx, testVector("fg-1", 1, 0, 0)))
	require.NoError(t, s.Reset(ctx))
	assert.Equal(t, 1, cols.deleted)

	require.NoError(t, s.PutVectors(ctx, testVector("fg-1", 1, 0, 0, 0)))
	require.Len(t, cols.created, 1)
	assert.Equal(t, uint64(4), cols.created[0].GetVectorsConfig().GetParams().GetSize())
}

func TestFindSimilar(t *testing.T) {
	a := testVector("fg-a", 1)
	b := testVector("fg-b", 1)
	points := &mockPoints{
		searchResp: &pb.SearchResponse{Result: []*pb.ScoredPoint{
			{Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(a.RecordID)}}, Payload: vectorPayload(a), Score: 0.5},
			{Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(b.RecordID)}}, Payload: vectorPayload(b), Score: 0.9},
			{Payload: map[string]*pb.Value{}, Score: 0.7},
		}},
	}
	s := NewWithClients(points, &mockCollections{}, "catalog")

	results, err := s.FindSimilar(context.Background(), []float32{1, 0}, 0, 10)
	require.NoError(t, err)
	require.Len(t, results, 2, "points without a record id are skipped")
	assert.Equal(t, "fg-b", results[0].CatalogID)
	assert.Equal(t, b.RecordID, results[0].RecordID)
	assert.InDelta(t, 0.9, results[0].Score, 1e-6)
}

func TestFindSimilar_Validation(t *testing.T) {
	s := NewWithClients(&mockPoints{}, &mockCollections{}, "catalog")
	_, err := s.FindSimilar(context.Background(), []float32{1}, 0, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	_, err = s.FindSimilar(context.Background(), nil, 0, 5)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestMissingCollectionIsEmpty(t *testing.T) {
	notFound := status.Error(codes.NotFound, "collection not found")
	points := &mockPoints{searchErr: notFound, getErr: notFound, scrollErr: notFound, countErr: notFound}
	s := NewWithClients(points, &mockCollections{}, "catalog")
	ctx := context.Background()

	results, err := s.FindSimilar(ctx, []float32{1}, 0, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	vectors, err := s.GetVectors(ctx, core.IDFromContent("fg-1"))
	require.NoError(t, err)
	assert.Empty(t, vectors)

	ids, err := s.VectorIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	count, err := s.CountVectors(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = s.GetVector(ctx, core.IDFromContent("fg-1"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestOtherErrorsSurface(t *testing.T) {
	points := &mockPoints{countErr: errors.New("connection refused")}
	s := NewWithClients(points, &mockCollections{}, "catalog")

	_, err := s.CountVectors(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestGetVectors_PreservesOrderAndPayload(t *testing.T) {
	a := testVector("fg-a", 1)
	b := testVector("fg-b", 1)
	points := &mockPoints{getResp: &pb.GetResponse{Result: []*pb.RetrievedPoint{
		{Payload: vectorPayload(b)},
		{Payload: vectorPayload(a)},
	}}}
	s := NewWithClients(points, &mockCollections{}, "catalog")

	vectors, err := s.GetVectors(context.Background(), a.RecordID, core.IDFromContent("fg-missing"), b.RecordID)
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, "fg-a", vectors[0].CatalogID)
	assert.Equal(t, "hash-fg-a", vectors[0].SourceHash)
	assert.Equal(t, "test-model", vectors[0].Model)
	assert.True(t, a.EmbeddedAt.Equal(vectors[0].EmbeddedAt))
	assert.Equal(t, "fg-b", vectors[1].CatalogID)
}

func TestVectorIDs_Scrolls(t *testing.T) {
	a := testVector("fg-a", 1)
	b := testVector("fg-b", 1)
	next := &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(b.RecordID)}}
	points := &mockPoints{scrollResp: []*pb.ScrollResponse{
		{Result: []*pb.RetrievedPoint{{Payload: vectorPayload(a)}}, NextPageOffset: next},
		{Result: []*pb.RetrievedPoint{{Payload: vectorPayload(b)}}},
	}}
	s := NewWithClients(points, &mockCollections{}, "catalog")

	ids, err := s.VectorIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.ID{a.RecordID, b.RecordID}, ids)
}

func TestDeleteVectors(t *testing.T) {
	points := &mockPoints{}
	s := NewWithClients(points, &mockCollections{}, "catalog")

	require.NoError(t, s.DeleteVectors(context.Background()))
	assert.Empty(t, points.deletes, "no call for an empty id list")

	id := core.IDFromContent("fg-1")
	require.NoError(t, s.DeleteVectors(context.Background(), id))
	require.Len(t, points.deletes, 1)
	ids := points.deletes[0].GetPoints().GetPoints().GetIds()
	require.Len(t, ids, 1)
	assert.Equal(t, PointID(id), ids[0].GetUuid())
}

func TestCountVectors(t *testing.T) {
	points := &mockPoints{countResp: &pb.CountResponse{Result: &pb.CountResult{Count: 42}}}
	s := NewWithClients(points, &mockCollections{}, "catalog")

	count, err := s.CountVectors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}
