// Package qdrant implements storage.VectorIndex on a Qdrant collection.
//
// The lookup table and index metadata stay in badger; only vectors and
// nearest-neighbor search move to Qdrant. Point IDs are UUIDs derived from
// the record ID, and the record ID itself travels in the point payload.
package qdrant

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/advisor/core"
	"github.com/poiesic/advisor/storage"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "advisor"

const scrollPageSize = 256

// pointNamespace seeds the UUIDv5 point IDs.
var pointNamespace = uuid.MustParse("6f1c8a52-3d0e-4a57-9b8e-2c41f0d7a9e3")

const (
	payloadRecordID   = "record_id"
	payloadCatalogID  = "catalog_id"
	payloadSourceHash = "source_hash"
	payloadModel      = "model"
	payloadEmbeddedAt = "embedded_at"
)

// PointsAPI is the subset of pb.PointsClient the store uses.
type PointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Get(ctx context.Context, in *pb.GetPoints, opts ...grpc.CallOption) (*pb.GetResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
}

// CollectionsAPI is the subset of pb.CollectionsClient the store uses.
type CollectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Get(ctx context.Context, in *pb.GetCollectionInfoRequest, opts ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Store is a VectorIndex backed by a Qdrant collection.
type Store struct {
	conn        *grpc.ClientConn
	points      PointsAPI
	collections CollectionsAPI
	collection  string
	dimension   int
	logger      *slog.Logger
}

var (
	_ storage.VectorIndex = (*Store)(nil)
	_ storage.Resetter    = (*Store)(nil)
)

// New connects to Qdrant's gRPC endpoint at addr.
func New(addr, collection string) (*Store, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", addr, err)
	}
	s := NewWithClients(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection)
	s.conn = conn
	return s, nil
}

// NewWithClients builds a Store on existing clients.
func NewWithClients(points PointsAPI, collections CollectionsAPI, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{
		points:      points,
		collections: collections,
		collection:  collection,
		logger:      slog.Default().With("component", "qdrant", "collection", collection),
	}
}

// Close closes the gRPC connection, if the store owns one.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// PointID returns the Qdrant point UUID for a record ID.
func PointID(id core.ID) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return uuid.NewSHA1(pointNamespace, buf[:]).String()
}

// ensureCollection creates the collection for vectors of size dim, or checks
// that an existing one matches.
func (s *Store) ensureCollection(ctx context.Context, dim int) error {
	if s.dimension == dim {
		return nil
	}
	size, exists, err := s.collectionSize(ctx)
	if err != nil {
		return err
	}
	if exists {
		if size != dim {
			return fmt.Errorf("%w: collection %s has %d, vectors have %d",
				storage.ErrDimensionMismatch, s.collection, size, dim)
		}
		s.dimension = dim
		return nil
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", s.collection, err)
	}
	s.logger.Info("created collection", "dimension", dim)
	s.dimension = dim
	return nil
}

func (s *Store) collectionSize(ctx context.Context) (int, bool, error) {
	list, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return 0, false, fmt.Errorf("qdrant: list collections: %w", err)
	}
	found := false
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			found = true
			break
		}
	}
	if !found {
		return 0, false, nil
	}
	info, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	if err != nil {
		return 0, false, fmt.Errorf("qdrant: collection info %s: %w", s.collection, err)
	}
	size := info.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	return int(size), true, nil
}

// Reset drops the collection. It is recreated by the next PutVectors.
func (s *Store) Reset(ctx context.Context) error {
	s.dimension = 0
	_, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("qdrant: delete collection %s: %w", s.collection, err)
	}
	return nil
}

// PutVectors upserts vectors as points.
func (s *Store) PutVectors(ctx context.Context, vectors ...*core.EmbeddingVector) error {
	if len(vectors) == 0 {
		return nil
	}
	for _, v := range vectors {
		if err := core.ValidateVector(v); err != nil {
			return err
		}
	}
	if err := s.ensureCollection(ctx, len(vectors[0].Vector)); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(vectors))
	for i, v := range vectors {
		if len(v.Vector) != s.dimension {
			return fmt.Errorf("%w: expected %d, got %d", storage.ErrDimensionMismatch, s.dimension, len(v.Vector))
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(v.RecordID)}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: v.Vector}},
			},
			Payload: vectorPayload(v),
		}
	}

	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(points), err)
	}
	return nil
}

// FindSimilar runs a cosine search against the collection. A missing
// collection is an empty index.
func (s *Store) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]core.QueryResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		ScoreThreshold: &minSimilarity,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		if isNotFound(err) {
			return []core.QueryResult{}, nil
		}
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}

	results := make([]core.QueryResult, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		v, err := vectorFromPayload(point.GetPayload())
		if err != nil {
			s.logger.Warn("skipping point with bad payload", "id", point.GetId().GetUuid(), "err", err)
			continue
		}
		results = append(results, core.QueryResult{
			RecordID:  v.RecordID,
			CatalogID: v.CatalogID,
			Score:     point.GetScore(),
		})
	}
	storage.SortResults(results)
	return results, nil
}

// GetVector retrieves the metadata of a stored vector. The vector values
// themselves are not fetched.
func (s *Store) GetVector(ctx context.Context, id core.ID) (*core.EmbeddingVector, error) {
	vectors, err := s.GetVectors(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, storage.ErrNotFound
	}
	return vectors[0], nil
}

// GetVectors retrieves the metadata of the vectors that exist for ids.
func (s *Store) GetVectors(ctx context.Context, ids ...core.ID) ([]*core.EmbeddingVector, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	resp, err := s.points.Get(ctx, &pb.GetPoints{
		CollectionName: s.collection,
		Ids:            pointIDs(ids),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("qdrant: get %d points: %w", len(ids), err)
	}

	byID := make(map[core.ID]*core.EmbeddingVector, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		v, err := vectorFromPayload(point.GetPayload())
		if err != nil {
			return nil, err
		}
		byID[v.RecordID] = v
	}
	var result []*core.EmbeddingVector
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			result = append(result, v)
		}
	}
	return result, nil
}

// DeleteVectors removes points by record ID.
func (s *Store) DeleteVectors(ctx context.Context, ids ...core.ID) error {
	if len(ids) == 0 {
		return nil
	}
	wait := true
	_, err := s.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: pointIDs(ids)},
			},
		},
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("qdrant: delete %d points: %w", len(ids), err)
	}
	return nil
}

// VectorIDs scrolls the whole collection and returns every record ID.
func (s *Store) VectorIDs(ctx context.Context) ([]core.ID, error) {
	ids := []core.ID{}
	limit := uint32(scrollPageSize)
	var offset *pb.PointId
	for {
		resp, err := s.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: s.collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			if isNotFound(err) {
				return ids, nil
			}
			return nil, fmt.Errorf("qdrant: scroll: %w", err)
		}
		for _, point := range resp.GetResult() {
			id, err := recordIDFromPayload(point.GetPayload())
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			return ids, nil
		}
	}
}

// CountVectors returns the exact number of points in the collection.
func (s *Store) CountVectors(ctx context.Context) (int, error) {
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("qdrant: count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func pointIDs(ids []core.ID) []*pb.PointId {
	out := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		out[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(id)}}
	}
	return out
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func vectorPayload(v *core.EmbeddingVector) map[string]*pb.Value {
	return map[string]*pb.Value{
		payloadRecordID:   stringValue(strconv.FormatUint(uint64(v.RecordID), 10)),
		payloadCatalogID:  stringValue(v.CatalogID),
		payloadSourceHash: stringValue(v.SourceHash),
		payloadModel:      stringValue(v.Model),
		payloadEmbeddedAt: stringValue(v.EmbeddedAt.UTC().Format(time.RFC3339Nano)),
	}
}

func recordIDFromPayload(payload map[string]*pb.Value) (core.ID, error) {
	raw := payload[payloadRecordID].GetStringValue()
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s %q", storage.ErrSerializationFailed, payloadRecordID, raw)
	}
	return core.ID(id), nil
}

func vectorFromPayload(payload map[string]*pb.Value) (*core.EmbeddingVector, error) {
	id, err := recordIDFromPayload(payload)
	if err != nil {
		return nil, err
	}
	v := &core.EmbeddingVector{
		RecordID:   id,
		CatalogID:  payload[payloadCatalogID].GetStringValue(),
		SourceHash: payload[payloadSourceHash].GetStringValue(),
		Model:      payload[payloadModel].GetStringValue(),
	}
	if raw := payload[payloadEmbeddedAt].GetStringValue(); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			v.EmbeddedAt = t
		}
	}
	return v, nil
}
