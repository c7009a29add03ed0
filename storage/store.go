package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"youtubeSearch/config"
	"youtubeSearch/core"
)

// ChunkStore persists transcript chunks with their embeddings and answers
// nearest-neighbour queries by cosine similarity.
type ChunkStore interface {
	Insert(ctx context.Context, chunks []core.Chunk) (int, error)
	Match(ctx context.Context, embedding []float32, k int) ([]core.SearchResult, error)
	HasVideo(ctx context.Context, videoID string) (bool, error)
	DeleteVideo(ctx context.Context, videoID string) (int, error)
	// ReplaceVideo swaps a video's stored chunks for chunks in one step.
	// On error the previous chunks are still there.
	ReplaceVideo(ctx context.Context, videoID string, chunks []core.Chunk) (replaced, inserted int, err error)
	Stats(ctx context.Context) (core.StoreStats, error)
	Ping(ctx context.Context) error
	Close() error
}

// NewStore opens the backend named by cfg.Store. Any failure falls back to
// the in-memory store so the service still starts.
func NewStore(ctx context.Context, cfg *config.Config) ChunkStore {
	var (
		s   ChunkStore
		err error
	)
	switch cfg.Store {
	case config.StorePgVector:
		s, err = NewPgVectorStore(ctx, cfg.PostgresURL, cfg.EmbeddingDim)
	case config.StoreMilvus:
		s, err = NewMilvusStore(ctx, MilvusConfig{
			Addr:       cfg.MilvusAddr,
			Username:   cfg.MilvusUsername,
			Password:   cfg.MilvusPassword,
			APIKey:     cfg.MilvusAPIKey,
			Collection: cfg.MilvusCollection,
			Dim:        cfg.EmbeddingDim,
		})
	case config.StoreSQLite:
		s, err = NewSQLiteStore(cfg.SQLitePath)
	case config.StoreMemory, "":
		slog.Info("vector store initialized", slog.String("backend", config.StoreMemory))
		return NewMemoryStore()
	default:
		slog.Warn("unknown store, using memory", slog.String("store", cfg.Store))
		return NewMemoryStore()
	}
	if err != nil {
		slog.Warn("vector store init failed, falling back to memory",
			slog.String("backend", cfg.Store), slog.Any("error", err))
		return NewMemoryStore()
	}
	slog.Info("vector store initialized", slog.String("backend", cfg.Store))
	return s
}

// ---------------- Memory implementation (kept for fallback) ----------------

type MemoryStore struct {
	mu     sync.RWMutex
	order  []string // video ids in insertion order
	chunks map[string][]core.Chunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string][]core.Chunk)}
}

func (s *MemoryStore) Insert(_ context.Context, chunks []core.Chunk) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(chunks)
	return len(chunks), nil
}

func (s *MemoryStore) insertLocked(chunks []core.Chunk) {
	for _, c := range chunks {
		if _, ok := s.chunks[c.VideoID]; !ok {
			s.order = append(s.order, c.VideoID)
		}
		c.Embedding = append([]float32(nil), c.Embedding...)
		s.chunks[c.VideoID] = append(s.chunks[c.VideoID], c)
	}
}

func (s *MemoryStore) ReplaceVideo(_ context.Context, videoID string, chunks []core.Chunk) (int, int, error) {
	if err := sameVideo(videoID, chunks); err != nil {
		return 0, 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := s.deleteLocked(videoID)
	s.insertLocked(chunks)
	return replaced, len(chunks), nil
}

func (s *MemoryStore) Match(_ context.Context, embedding []float32, k int) ([]core.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []core.SearchResult
	for _, id := range s.order {
		for _, c := range s.chunks[id] {
			results = append(results, core.SearchResult{
				VideoID:    c.VideoID,
				URL:        c.URL,
				ChunkIndex: c.Index,
				ChunkText:  c.Text,
				Score:      CosineSimilarity(embedding, c.Embedding),
			})
		}
	}
	return topK(results, k), nil
}

func (s *MemoryStore) HasVideo(_ context.Context, videoID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[videoID]) > 0, nil
}

func (s *MemoryStore) DeleteVideo(_ context.Context, videoID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(videoID), nil
}

func (s *MemoryStore) deleteLocked(videoID string) int {
	n := len(s.chunks[videoID])
	if n == 0 {
		return 0
	}
	delete(s.chunks, videoID)
	for i, id := range s.order {
		if id == videoID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return n
}

func (s *MemoryStore) Stats(context.Context) (core.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := core.StoreStats{Backend: config.StoreMemory, Videos: len(s.chunks)}
	for _, cs := range s.chunks {
		st.Chunks += len(cs)
	}
	return st, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func sameVideo(videoID string, chunks []core.Chunk) error {
	for _, c := range chunks {
		if c.VideoID != videoID {
			return fmt.Errorf("chunk %d belongs to %s, not %s", c.Index, c.VideoID, videoID)
		}
	}
	return nil
}

// topK sorts by descending score (stable, so ties keep insertion order) and
// keeps the first k; k <= 0 means 1.
func topK(results []core.SearchResult, k int) []core.SearchResult {
	if k <= 0 {
		k = 1
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results
}
