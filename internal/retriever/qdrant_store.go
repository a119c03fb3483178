package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/myrag/myrag/internal/embedding"
)

// Point payload layout: content at the top level, record metadata nested
// under its own key so a metadata "content" entry cannot shadow the text.
const (
	payloadContent  = "content"
	payloadMetadata = "metadata"
)

// pointsAPI is the subset of pb.PointsClient the store uses
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient the store uses
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// QdrantStore implements VectorStore using Qdrant over gRPC
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	embedder    embedding.Provider
	logger      *slog.Logger

	mu    sync.Mutex
	ready bool
}

// NewQdrantStore connects to Qdrant at the given gRPC address. The
// collection is created lazily on the first Add, once the dimension is known.
func NewQdrantStore(addr, collection string, embedder embedding.Provider, logger *slog.Logger) (*QdrantStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, &StoreError{Backend: "qdrant", Op: "dial", Err: fmt.Errorf("dial %s: %w", addr, err)}
	}
	store := newQdrantStore(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collection, embedder, logger)
	store.conn = conn
	return store, nil
}

func newQdrantStore(points pointsAPI, collections collectionsAPI, collection string, embedder embedding.Provider, logger *slog.Logger) *QdrantStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &QdrantStore{
		points:      points,
		collections: collections,
		collection:  collection,
		embedder:    embedder,
		logger:      logger,
	}
}

// ensureCollection creates the collection if it doesn't exist
func (q *QdrantStore) ensureCollection(ctx context.Context, dims int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ready {
		return nil
	}

	list, err := q.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return q.grpcError("list collections", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == q.collection {
			q.ready = true
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return q.grpcError("create collection", err)
	}

	q.logger.Info("qdrant collection created", "collection", q.collection, "dims", dims)
	q.ready = true
	return nil
}

// Add embeds the records and upserts them in one waited request
func (q *QdrantStore) Add(ctx context.Context, records []Record) ([]Chunk, error) {
	if len(records) == 0 {
		return nil, nil
	}

	vectors, err := embedRecords(ctx, q.embedder, records)
	if err != nil {
		return nil, err
	}

	if err := q.ensureCollection(ctx, len(vectors[0])); err != nil {
		return nil, err
	}

	chunks := make([]Chunk, len(records))
	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		chunks[i] = Chunk{
			ID:        uuid.NewString(),
			Content:   r.Content,
			Metadata:  metadataOf(r),
			Embedding: vectors[i],
		}

		payload := map[string]*pb.Value{
			payloadContent:  toValue(r.Content),
			payloadMetadata: toValue(chunks[i].Metadata),
		}

		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: chunks[i].ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vectors[i]},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err = q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return nil, q.grpcError("add", err)
	}

	return chunks, nil
}

// Match performs k-NN similarity search
func (q *QdrantStore) Match(ctx context.Context, query []float32, topK int) ([]RankedResult, error) {
	if topK <= 0 {
		return []RankedResult{}, nil
	}

	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         query,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, q.grpcError("match", err)
	}

	results := make([]RankedResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		score := float64(r.GetScore())
		res := RankedResult{
			ID:         pointID(r.GetId()),
			Metadata:   make(map[string]any),
			Similarity: &score,
		}
		payload := r.GetPayload()
		res.Content = payload[payloadContent].GetStringValue()
		if md, ok := payload[payloadMetadata]; ok && md.GetStructValue() != nil {
			for k, v := range md.GetStructValue().GetFields() {
				res.Metadata[k] = fromValue(v)
			}
		} else {
			// flat payloads written by other tools
			for k, v := range payload {
				if k != payloadContent {
					res.Metadata[k] = fromValue(v)
				}
			}
		}
		results[i] = res
	}
	return results, nil
}

func (q *QdrantStore) Name() string {
	return "qdrant"
}

// Close closes the underlying gRPC connection
func (q *QdrantStore) Close() error {
	if q.conn == nil {
		return nil
	}
	return q.conn.Close()
}

func (q *QdrantStore) grpcError(op string, err error) error {
	st, _ := status.FromError(err)
	return &StoreError{
		Backend: q.Name(),
		Op:      op,
		Status:  int(st.Code()),
		Message: st.Message(),
		Err:     err,
	}
}

func pointID(id *pb.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func toValue(v any) *pb.Value {
	switch tv := v.(type) {
	case nil:
		return &pb.Value{Kind: &pb.Value_NullValue{}}
	case string:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: tv}}
	case int:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(tv)}}
	case int64:
		return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: tv}}
	case float32:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: float64(tv)}}
	case float64:
		return &pb.Value{Kind: &pb.Value_DoubleValue{DoubleValue: tv}}
	case bool:
		return &pb.Value{Kind: &pb.Value_BoolValue{BoolValue: tv}}
	case map[string]any:
		fields := make(map[string]*pb.Value, len(tv))
		for k, fv := range tv {
			fields[k] = toValue(fv)
		}
		return &pb.Value{Kind: &pb.Value_StructValue{StructValue: &pb.Struct{Fields: fields}}}
	case []any:
		values := make([]*pb.Value, len(tv))
		for i, lv := range tv {
			values[i] = toValue(lv)
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: values}}}
	case []string:
		values := make([]*pb.Value, len(tv))
		for i, s := range tv {
			values[i] = toValue(s)
		}
		return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: values}}}
	default:
		return &pb.Value{Kind: &pb.Value_StringValue{StringValue: fmt.Sprint(tv)}}
	}
}

func fromValue(v *pb.Value) any {
	switch k := v.GetKind().(type) {
	case *pb.Value_StringValue:
		return k.StringValue
	case *pb.Value_IntegerValue:
		return k.IntegerValue
	case *pb.Value_DoubleValue:
		return k.DoubleValue
	case *pb.Value_BoolValue:
		return k.BoolValue
	case *pb.Value_StructValue:
		out := make(map[string]any, len(k.StructValue.GetFields()))
		for key, fv := range k.StructValue.GetFields() {
			out[key] = fromValue(fv)
		}
		return out
	case *pb.Value_ListValue:
		out := make([]any, len(k.ListValue.GetValues()))
		for i, lv := range k.ListValue.GetValues() {
			out[i] = fromValue(lv)
		}
		return out
	default:
		return nil
	}
}
