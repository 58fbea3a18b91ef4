package index

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantIndex keeps one qdrant collection per user. Each ingestion of a
// document writes its chunk points under a fresh generation id and then flips
// a single manifest point to that generation. Readers resolve the manifest
// first and only admit chunks of its generation, so a search sees the previous
// version of a document or the new one, never a mix. Chunks of superseded
// generations are unreachable once the manifest flipped and are removed right
// after.
type QdrantIndex struct {
	client *qdrant.Client
	model  string
	dim    uint64
}

var _ Interface = &QdrantIndex{}

func NewQdrantIndex(host string, port int, model string, dim int) (*QdrantIndex, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, err
	}
	return &QdrantIndex{client: client, model: model, dim: uint64(dim)}, nil
}

func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

func (s *QdrantIndex) Model() string {
	return s.model
}

// collectionName sanitizes the user id into qdrant's allowed character set and
// appends a fingerprint of the raw id. Distinct ids that sanitize to the same
// text ("alice.1" and "alice/1") must never share a collection.
func collectionName(userID string) string {
	var b strings.Builder
	b.WriteString("user_")
	for _, r := range userID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	b.WriteByte('_')
	b.WriteString(uuid.NewSHA1(uuid.NameSpaceOID, []byte(userID)).String()[:8])
	return b.String()
}

func chunkPointID(userID, documentID, generation string, chunk int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID,
		[]byte(userID+"/"+documentID+"/"+generation+"/"+strconv.Itoa(chunk))).String()
}

// manifestPointID is generation-independent so flipping the manifest is an
// in-place overwrite of one point.
func manifestPointID(userID, documentID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID,
		[]byte(userID+"/"+documentID+"/manifest")).String()
}

func (s *QdrantIndex) ensureCollection(ctx context.Context, name string) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     s.dim,
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	}); err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

func (s *QdrantIndex) Upsert(ctx context.Context, userID, documentID string, entries []Entry) error {
	if len(entries) == 0 {
		return s.Delete(ctx, userID, documentID)
	}
	for _, e := range entries {
		if e.UserID != userID || e.DocumentID != documentID {
			return fmt.Errorf("entry owned by %s/%s upserted into %s/%s: %w",
				e.UserID, e.DocumentID, userID, documentID, ErrConsistency)
		}
		if uint64(len(e.Vector)) != s.dim {
			return fmt.Errorf("vector dimension %d, collection expects %d: %w",
				len(e.Vector), s.dim, ErrModelMismatch)
		}
	}

	name := collectionName(userID)
	if err := s.ensureCollection(ctx, name); err != nil {
		return err
	}

	generation := uuid.NewString()
	pts := make([]*qdrant.PointStruct, len(entries))
	for i, e := range entries {
		pts[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(chunkPointID(userID, documentID, generation, e.ChunkIndex)),
			Vectors: qdrant.NewVectors(e.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"kind":        "chunk",
				"generation":  generation,
				"user_id":     userID,
				"document_id": documentID,
				"chunk_index": e.ChunkIndex,
				"text":        e.Text,
				"start":       e.Start,
				"end":         e.End,
				"model":       s.model,
			}),
		}
	}

	wait := true
	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         pts,
		Wait:           &wait,
	}); err != nil {
		return fmt.Errorf("upsert document %s: %w", documentID, err)
	}

	// A single-point write: readers switch from the old generation to the new
	// one at once. The manifest vector is never searched, only its payload.
	manifest := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(manifestPointID(userID, documentID)),
		Vectors: qdrant.NewVectors(make([]float32, s.dim)...),
		Payload: qdrant.NewValueMap(map[string]any{
			"kind":        "manifest",
			"generation":  generation,
			"user_id":     userID,
			"document_id": documentID,
			"chunks":      len(entries),
		}),
	}
	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         []*qdrant.PointStruct{manifest},
		Wait:           &wait,
	}); err != nil {
		return fmt.Errorf("publish document %s: %w", documentID, err)
	}

	stale := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("user_id", userID),
			qdrant.NewMatch("document_id", documentID),
			qdrant.NewMatch("kind", "chunk"),
		},
		MustNot: []*qdrant.Condition{
			qdrant.NewMatch("generation", generation),
		},
	}
	if _, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points:         qdrant.NewPointsSelectorFilter(stale),
		Wait:           &wait,
	}); err != nil {
		return fmt.Errorf("trim stale chunks of %s: %w", documentID, err)
	}
	return nil
}

// manifests returns the current generation per document, for one document or
// for all of the user's documents.
func (s *QdrantIndex) manifests(ctx context.Context, name, userID, documentID string) (map[string]string, error) {
	must := []*qdrant.Condition{
		qdrant.NewMatch("user_id", userID),
		qdrant.NewMatch("kind", "manifest"),
	}
	if documentID != "" {
		must = append(must, qdrant.NewMatch("document_id", documentID))
	}
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: name,
		Filter:         &qdrant.Filter{Must: must},
		Limit:          qdrant.PtrOf(uint32(1024)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("read manifests of %s: %w", userID, err)
	}

	generations := make(map[string]string, len(points))
	for _, p := range points {
		generations[payloadString(p.Payload, "document_id")] = payloadString(p.Payload, "generation")
	}
	return generations, nil
}

func (s *QdrantIndex) Search(ctx context.Context, userID string, vector []float32, k int, documentID string) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	if uint64(len(vector)) != s.dim {
		return nil, fmt.Errorf("query dimension %d, collection expects %d: %w",
			len(vector), s.dim, ErrModelMismatch)
	}

	name := collectionName(userID)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	generations, err := s.manifests(ctx, name, userID, documentID)
	if err != nil {
		return nil, err
	}
	if len(generations) == 0 {
		return nil, nil
	}

	must := []*qdrant.Condition{
		qdrant.NewMatch("user_id", userID),
		qdrant.NewMatch("kind", "chunk"),
	}
	if documentID != "" {
		must = append(must, qdrant.NewMatch("document_id", documentID))
	}
	limit := uint64(k)
	resp, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Limit:          &limit,
		Filter:         &qdrant.Filter{Must: must},
		Query:          qdrant.NewQuery(vector...),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp))
	for _, r := range resp {
		doc := payloadString(r.Payload, "document_id")
		if payloadString(r.Payload, "generation") != generations[doc] {
			// Chunk of an ingestion that is no longer current.
			continue
		}
		entry := Entry{
			UserID:     payloadString(r.Payload, "user_id"),
			DocumentID: doc,
			ChunkIndex: payloadInt(r.Payload, "chunk_index"),
			Text:       payloadString(r.Payload, "text"),
			Start:      payloadInt(r.Payload, "start"),
			End:        payloadInt(r.Payload, "end"),
		}
		if entry.UserID != userID {
			return nil, fmt.Errorf("chunk of user %s in collection %s: %w",
				entry.UserID, name, ErrConsistency)
		}
		if model := payloadString(r.Payload, "model"); model != "" && model != s.model {
			return nil, fmt.Errorf("collection built with model %s, queried with %s: %w",
				model, s.model, ErrModelMismatch)
		}
		results = append(results, Result{Entry: entry, Score: float64(r.Score)})
	}

	// qdrant orders by score already; rank again for the deterministic
	// tie-break on chunk index.
	rankResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *QdrantIndex) Delete(ctx context.Context, userID, documentID string) error {
	name := collectionName(userID)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	wait := true
	// Removes the manifest along with every generation's chunks.
	filter := &qdrant.Filter{Must: []*qdrant.Condition{
		qdrant.NewMatch("user_id", userID),
		qdrant.NewMatch("document_id", documentID),
	}}
	if _, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points:         qdrant.NewPointsSelectorFilter(filter),
		Wait:           &wait,
	}); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	return nil
}

func (s *QdrantIndex) Count(ctx context.Context, userID, documentID string) (int, error) {
	name := collectionName(userID)
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	generations, err := s.manifests(ctx, name, userID, documentID)
	if err != nil {
		return 0, err
	}

	exact := true
	total := 0
	for doc, generation := range generations {
		n, err := s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: name,
			Filter: &qdrant.Filter{Must: []*qdrant.Condition{
				qdrant.NewMatch("user_id", userID),
				qdrant.NewMatch("document_id", doc),
				qdrant.NewMatch("kind", "chunk"),
				qdrant.NewMatch("generation", generation),
			}},
			Exact: &exact,
		})
		if err != nil {
			return 0, err
		}
		total += int(n)
	}
	return total, nil
}

func payloadString(p map[string]*qdrant.Value, key string) string {
	if v, ok := p[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func payloadInt(p map[string]*qdrant.Value, key string) int {
	if v, ok := p[key]; ok {
		return int(v.GetIntegerValue())
	}
	return 0
}
