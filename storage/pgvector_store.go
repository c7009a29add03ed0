package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"youtubeSearch/config"
	"youtubeSearch/core"
)

const pgTable = "youtube_videos"

// PgVectorStore keeps chunks in PostgreSQL with the pgvector extension.
// Similarity search goes through the match_youtube_video SQL function.
type PgVectorStore struct {
	pool *pgxpool.Pool
	dim  int

	mu            sync.Mutex
	indexedAtRows int64
	stop          chan struct{}
	stopOnce      sync.Once
}

func NewPgVectorStore(ctx context.Context, dsn string, dim int) (*PgVectorStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: POSTGRES_URL is not set", core.ErrMissingConfig)
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PgVectorStore{pool: pool, dim: dim, stop: make(chan struct{})}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.rebuildVectorIndex(ctx); err != nil {
		slog.Warn("initial vector index build failed", slog.Any("error", err))
	}
	go s.indexMaintenance(30 * time.Minute)
	return s, nil
}

func (s *PgVectorStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			video_id TEXT NOT NULL,
			url TEXT NOT NULL,
			chunk_index INT NOT NULL,
			chunk_text TEXT NOT NULL,
			chunk_method TEXT NOT NULL DEFAULT 'basic',
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, pgTable, s.dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_video_id ON %s (video_id)`, pgTable, pgTable),
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION match_youtube_video(query_embedding vector(%d), match_count INT)
		RETURNS TABLE (video_id TEXT, url TEXT, chunk_index INT, chunk_text TEXT, similarity FLOAT8)
		LANGUAGE sql STABLE AS $$
			SELECT v.video_id, v.url, v.chunk_index, v.chunk_text,
			       1 - (v.embedding <=> query_embedding) AS similarity
			FROM %s v
			ORDER BY v.embedding <=> query_embedding
			LIMIT match_count
		$$`, s.dim, pgTable),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", pgTable, err)
		}
	}
	return nil
}

// ivfflatLists picks the list count from the row count.
func ivfflatLists(rows int64) int {
	switch {
	case rows < 1000:
		return 10
	case rows > 10000:
		return int(min(rows/100, 1000))
	default:
		return 100
	}
}

// rebuildVectorIndex recreates the ivfflat index when the table has at
// least doubled since the last build.
func (s *PgVectorStore) rebuildVectorIndex(ctx context.Context) error {
	var rows int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, pgTable)).Scan(&rows); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rows == 0 || (s.indexedAtRows > 0 && rows < 2*s.indexedAtRows) {
		return nil
	}

	lists := ivfflatLists(rows)
	start := time.Now()
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`DROP INDEX IF EXISTS idx_%s_embedding`, pgTable)); err != nil {
		return err
	}
	q := fmt.Sprintf(`CREATE INDEX idx_%s_embedding ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)`,
		pgTable, pgTable, lists)
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return err
	}
	s.indexedAtRows = rows
	slog.Info("vector index rebuilt",
		slog.Int64("rows", rows), slog.Int("lists", lists), slog.Duration("took", time.Since(start)))
	return nil
}

func (s *PgVectorStore) indexMaintenance(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if err := s.rebuildVectorIndex(ctx); err != nil {
				slog.Warn("vector index maintenance failed", slog.Any("error", err))
			}
			cancel()
		}
	}
}

func (s *PgVectorStore) Insert(ctx context.Context, chunks []core.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return insertBatch(ctx, tx, chunks)
	})
	if err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (s *PgVectorStore) ReplaceVideo(ctx context.Context, videoID string, chunks []core.Chunk) (int, int, error) {
	if err := sameVideo(videoID, chunks); err != nil {
		return 0, 0, err
	}
	var replaced int
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE video_id = $1`, pgTable), videoID)
		if err != nil {
			return err
		}
		replaced = int(tag.RowsAffected())
		return insertBatch(ctx, tx, chunks)
	})
	if err != nil {
		return 0, 0, err
	}
	return replaced, len(chunks), nil
}

func insertBatch(ctx context.Context, tx pgx.Tx, chunks []core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s (video_id, url, chunk_index, chunk_text, chunk_method, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)`, pgTable)

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(q, c.VideoID, c.URL, c.Index, c.Text, c.Method, pgvector.NewVector(c.Embedding))
	}
	br := tx.SendBatch(ctx, batch)
	for range chunks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	return br.Close()
}

func (s *PgVectorStore) Match(ctx context.Context, embedding []float32, k int) ([]core.SearchResult, error) {
	if k <= 0 {
		k = 1
	}
	rows, err := s.pool.Query(ctx,
		`SELECT video_id, url, chunk_index, chunk_text, similarity FROM match_youtube_video($1, $2)`,
		pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, fmt.Errorf("match_youtube_video: %w", err)
	}
	defer rows.Close()

	var out []core.SearchResult
	for rows.Next() {
		var r core.SearchResult
		if err := rows.Scan(&r.VideoID, &r.URL, &r.ChunkIndex, &r.ChunkText, &r.Score); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PgVectorStore) HasVideo(ctx context.Context, videoID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE video_id = $1)`, pgTable), videoID).Scan(&exists)
	return exists, err
}

func (s *PgVectorStore) DeleteVideo(ctx context.Context, videoID string) (int, error) {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE video_id = $1`, pgTable), videoID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PgVectorStore) Stats(ctx context.Context) (core.StoreStats, error) {
	st := core.StoreStats{Backend: config.StorePgVector}
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(DISTINCT video_id), COUNT(*) FROM %s`, pgTable)).Scan(&st.Videos, &st.Chunks)
	return st, err
}

func (s *PgVectorStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PgVectorStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.pool.Close()
	return nil
}
