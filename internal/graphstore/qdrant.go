package graphstore

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/fractalcore/agentmem/internal/logging"
	"github.com/fractalcore/agentmem/internal/metrics"
	"github.com/fractalcore/agentmem/internal/retry"
)

// QdrantConfig configures the primary, external VectorIndex backend.
type QdrantConfig struct {
	Host           string
	Port           int
	CollectionName string
	VectorSize     int
}

// QdrantIndex is a VectorIndex backed by a single Qdrant collection, every
// point payload-tagged with "user_id" for per-user filtering. Adapted
// from the teacher's internal/vectorstore.QdrantStore: same client
// construction and PointStruct/Query/Delete call shapes, narrowed to the
// single collection + payload-filter model this domain needs instead of
// the teacher's hierarchical collection-per-tenant scheme.
type QdrantIndex struct {
	client     *qdrant.Client
	collection string
	policy     retry.Policy
	log        *logging.Logger
}

// NewQdrantIndex connects to a Qdrant instance and ensures the collection
// exists with the configured vector size and cosine distance.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig, log *logging.Logger) (*QdrantIndex, error) {
	if log == nil {
		log = logging.FromContext(ctx)
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}

	idx := &QdrantIndex{client: client, collection: cfg.CollectionName, policy: retry.DefaultPolicy(), log: log}

	exists, err := client.CollectionExists(ctx, cfg.CollectionName)
	if err != nil {
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		if err := client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: cfg.CollectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(cfg.VectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return nil, fmt.Errorf("create collection: %w", err)
		}
	}
	return idx, nil
}

func (q *QdrantIndex) do(ctx context.Context, op func() error) error {
	err := retry.Do(ctx, q.policy, retry.GRPCTransient, op)
	if err != nil && retry.GRPCTransient(err) {
		metrics.StoreUnavailable.WithLabelValues("graph").Inc()
	}
	return err
}

func toQdrantValue(v any) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprintf("%v", val)}}
	}
}

func fromQdrantValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	default:
		return nil
	}
}

func toPayload(userID string, payload map[string]any) map[string]*qdrant.Value {
	out := make(map[string]*qdrant.Value, len(payload)+1)
	out["user_id"] = toQdrantValue(userID)
	for k, v := range payload {
		out[k] = toQdrantValue(v)
	}
	return out
}

func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = fromQdrantValue(v)
	}
	return out
}

func (q *QdrantIndex) Upsert(ctx context.Context, userID, id string, vector []float32, payload map[string]any) error {
	return q.do(ctx, func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points: []*qdrant.PointStruct{{
				Id:      qdrant.NewIDUUID(id),
				Vectors: qdrant.NewVectors(vector...),
				Payload: toPayload(userID, payload),
			}},
		})
		return err
	})
}

func (q *QdrantIndex) UpdatePayload(ctx context.Context, userID, id string, payload map[string]any) error {
	return q.do(ctx, func() error {
		_, err := q.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
			CollectionName: q.collection,
			Payload:        toPayload(userID, payload),
			PointsSelector: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Points{
					Points: &qdrant.PointsIdsList{Ids: []*qdrant.PointId{qdrant.NewIDUUID(id)}},
				},
			},
		})
		return err
	})
}

func (q *QdrantIndex) Get(ctx context.Context, userID, id string) (map[string]any, bool, error) {
	var points []*qdrant.RetrievedPoint
	err := q.do(ctx, func() error {
		var err error
		points, err = q.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: q.collection,
			Ids:            []*qdrant.PointId{qdrant.NewIDUUID(id)},
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if len(points) == 0 {
		return nil, false, nil
	}
	payload := fromPayload(points[0].GetPayload())
	if payload["user_id"] != userID {
		return nil, false, nil
	}
	return payload, true, nil
}

func (q *QdrantIndex) Delete(ctx context.Context, userID string, ids []string) error {
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewIDUUID(id)
	}
	return q.do(ctx, func() error {
		_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: q.collection,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Points{
					Points: &qdrant.PointsIdsList{Ids: pointIDs},
				},
			},
		})
		return err
	})
}

func userFilter(userID string, filter map[string]any) *qdrant.Filter {
	conditions := []*qdrant.Condition{{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   "user_id",
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: userID}},
			},
		},
	}}
	for k, v := range filter {
		var match *qdrant.Match
		switch val := v.(type) {
		case string:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: val}}
		case bool:
			match = &qdrant.Match{MatchValue: &qdrant.Match_Boolean{Boolean: val}}
		default:
			continue
		}
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   k,
					Match: match,
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}

func (q *QdrantIndex) Search(ctx context.Context, userID string, queryVector []float32, k int, filter map[string]any) ([]ScoredPoint, error) {
	var results []*qdrant.ScoredPoint
	err := q.do(ctx, func() error {
		res, err := q.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: q.collection,
			Query:          qdrant.NewQuery(queryVector...),
			Filter:         userFilter(userID, filter),
			Limit:          qdrant.PtrOf(uint64(k)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		results = res
		return err
	})
	if err != nil {
		return nil, err
	}
	hits := make([]ScoredPoint, 0, len(results))
	for _, r := range results {
		hits = append(hits, ScoredPoint{
			ID:      r.GetId().GetUuid(),
			Score:   float64(r.GetScore()),
			Payload: fromPayload(r.GetPayload()),
		})
	}
	return hits, nil
}

// Scan uses Qdrant's Scroll primitive to page through every point
// matching filter, for the full scans decay/dedup/hard-delete need.
func (q *QdrantIndex) Scan(ctx context.Context, userID string, filter map[string]any) ([]map[string]any, error) {
	var points []*qdrant.RetrievedPoint
	err := q.do(ctx, func() error {
		res, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Filter:         userFilter(userID, filter),
			WithPayload:    qdrant.NewWithPayload(true),
			Limit:          qdrant.PtrOf(uint32(10000)),
		})
		points = res
		return err
	})
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]any, 0, len(points))
	for _, p := range points {
		payloads = append(payloads, fromPayload(p.GetPayload()))
	}
	return payloads, nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

var _ VectorIndex = (*QdrantIndex)(nil)
