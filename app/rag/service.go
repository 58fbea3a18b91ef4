// Package rag orchestrates the document pipeline: ingestion splits, embeds and
// indexes a document for one user; querying embeds the question, retrieves the
// nearest chunks and asks the generator for a grounded answer.
package rag

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"GoDocsAI/app/chunker"
	"GoDocsAI/app/index"
	"GoDocsAI/app/models"
	"GoDocsAI/app/storage"
)

const (
	defaultChunkSize        = 1000
	defaultChunkOverlap     = 200
	defaultTopK             = 5
	defaultMaxContextLength = 6000
)

type Options struct {
	ChunkSize        int
	ChunkOverlap     int
	TopK             int
	MaxContextLength int
}

// Answer is the result of a query. ContextUsed reports whether any retrieved
// chunk made it into the prompt.
type Answer struct {
	Text        string     `json:"text"`
	Citations   []Citation `json:"citations,omitempty"`
	ContextUsed bool       `json:"context_used"`
}

type Service struct {
	embedder  models.Embedder
	generator models.Generator
	index     index.Interface
	store     storage.Interface
	opts      Options

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewService wires the pipeline. The embedder and the index must agree on the
// embedding model; vectors from a different model are a configuration error,
// not something to detect chunk by chunk at query time.
func NewService(embedder models.Embedder, generator models.Generator, idx index.Interface, store storage.Interface, opts Options) (*Service, error) {
	if em, im := embedder.EmbeddingModel(), idx.Model(); em != im {
		return nil, fmt.Errorf("embedder uses model %q, index was built for %q: %w",
			em, im, index.ErrModelMismatch)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
		opts.ChunkOverlap = defaultChunkOverlap
	}
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.MaxContextLength <= 0 {
		opts.MaxContextLength = defaultMaxContextLength
	}
	return &Service{
		embedder:  embedder,
		generator: generator,
		index:     idx,
		store:     store,
		opts:      opts,
		inflight:  make(map[string]struct{}),
	}, nil
}

func ingestKey(userID, documentID string) string {
	return userID + "/" + documentID
}

func (s *Service) acquire(userID, documentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ingestKey(userID, documentID)
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Service) release(userID, documentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, ingestKey(userID, documentID))
}

// IngestDocument runs the full pipeline for one document. Re-ingesting an
// existing document replaces its chunks atomically; a second ingestion of the
// same document while one is running fails with ErrIngestionInProgress.
func (s *Service) IngestDocument(ctx context.Context, userID, documentID, source, text string) (*storage.Document, error) {
	if userID == "" || documentID == "" {
		return nil, fmt.Errorf("user and document id are required: %w", models.ErrInvalidRequest)
	}
	if !s.acquire(userID, documentID) {
		return nil, fmt.Errorf("document %s: %w", documentID, ErrIngestionInProgress)
	}
	defer s.release(userID, documentID)

	doc := &storage.Document{
		ID:     documentID,
		UserID: userID,
		Source: source,
		Status: storage.StatusPending,
	}
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("register document %s: %w", documentID, err)
	}

	if strings.TrimSpace(text) == "" {
		s.markFailed(ctx, doc, "no extractable text")
		return doc, fmt.Errorf("document %s: %w", documentID, ErrParseUpstream)
	}

	chunks, err := chunker.Split(text, s.opts.ChunkSize, s.opts.ChunkOverlap)
	if err != nil {
		s.markFailed(ctx, doc, err.Error())
		return doc, fmt.Errorf("split document %s: %w", documentID, err)
	}

	doc.Status = storage.StatusEmbedding
	if err = s.store.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("update document %s: %w", documentID, err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		s.markFailed(ctx, doc, err.Error())
		return doc, fmt.Errorf("embed document %s: %w", documentID, err)
	}

	entries := make([]index.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = index.Entry{
			UserID:     userID,
			DocumentID: documentID,
			ChunkIndex: c.Index,
			Text:       c.Text,
			Start:      c.Start,
			End:        c.End,
			Vector:     vectors[i],
		}
	}
	if err = s.index.Upsert(ctx, userID, documentID, entries); err != nil {
		// Leave no half-indexed document behind.
		if delErr := s.index.Delete(ctx, userID, documentID); delErr != nil {
			log.Printf("❌ rollback of document %s failed: %v", documentID, delErr)
		}
		s.markFailed(ctx, doc, err.Error())
		return doc, fmt.Errorf("index document %s: %w", documentID, err)
	}

	doc.Status = storage.StatusReady
	doc.Reason = ""
	doc.Chunks = len(chunks)
	if err = s.store.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("finalize document %s: %w", documentID, err)
	}
	log.Printf("✅ ingested document %s for user %s (%d chunks)", documentID, userID, len(chunks))
	return doc, nil
}

func (s *Service) markFailed(ctx context.Context, doc *storage.Document, reason string) {
	doc.Status = storage.StatusFailed
	doc.Reason = reason
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		log.Printf("⚠️ could not mark document %s failed: %v", doc.ID, err)
	}
}

// AnswerQuery retrieves the user's topK most relevant chunks and asks the
// generator for an answer grounded in them. A topK of zero or less falls back
// to the configured default; a non-empty documentID restricts retrieval to
// that document. When nothing relevant is found the generator is still called,
// instructed to answer from no context.
func (s *Service) AnswerQuery(ctx context.Context, userID, query string, topK int, documentID string) (*Answer, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required: %w", models.ErrInvalidRequest)
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty: %w", models.ErrInvalidRequest)
	}
	if topK <= 0 {
		topK = s.opts.TopK
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.index.Search(ctx, userID, vector, topK, documentID)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	contextBlock, citations := Assemble(results, s.opts.MaxContextLength)
	text, err := s.generator.Generate(ctx, "", contextBlock, query)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &Answer{
		Text:        text,
		Citations:   citations,
		ContextUsed: contextBlock != "",
	}, nil
}

// DeleteDocument removes the document's chunks from the index and its
// metadata record.
func (s *Service) DeleteDocument(ctx context.Context, userID, documentID string) error {
	if err := s.index.Delete(ctx, userID, documentID); err != nil {
		return fmt.Errorf("delete document %s from index: %w", documentID, err)
	}
	if err := s.store.DeleteDocument(ctx, userID, documentID); err != nil {
		return fmt.Errorf("delete document %s metadata: %w", documentID, err)
	}
	return nil
}

func (s *Service) ListDocuments(ctx context.Context, userID string) ([]storage.Document, error) {
	return s.store.ListDocuments(ctx, userID)
}

func (s *Service) GetDocument(ctx context.Context, userID, documentID string) (*storage.Document, error) {
	return s.store.GetDocument(ctx, userID, documentID)
}
