package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"youtubeSearch/config"
	"youtubeSearch/core"
)

// SQLiteStore is a single-file store for local use. Embeddings are kept as
// JSON arrays and matched by a full scan.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "youtube_search.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS youtube_videos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			video_id TEXT NOT NULL,
			url TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			chunk_text TEXT NOT NULL,
			chunk_method TEXT NOT NULL DEFAULT 'basic',
			embedding TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_youtube_videos_video_id ON youtube_videos(video_id);
	`)
	if err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Insert(ctx context.Context, chunks []core.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := insertChunks(ctx, tx, chunks); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (s *SQLiteStore) ReplaceVideo(ctx context.Context, videoID string, chunks []core.Chunk) (int, int, error) {
	if err := sameVideo(videoID, chunks); err != nil {
		return 0, 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM youtube_videos WHERE video_id = ?`, videoID)
	if err != nil {
		return 0, 0, err
	}
	replaced, err := res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return int(replaced), len(chunks), nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []core.Chunk) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO youtube_videos
		(video_id, url, chunk_index, chunk_text, chunk_method, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range chunks {
		vec, err := json.Marshal(c.Embedding)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.VideoID, c.URL, c.Index, c.Text, c.Method, string(vec), now); err != nil {
			return fmt.Errorf("insert chunk: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Match(ctx context.Context, embedding []float32, k int) ([]core.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id, url, chunk_index, chunk_text, embedding FROM youtube_videos ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []core.SearchResult
	for rows.Next() {
		var (
			r   core.SearchResult
			raw string
			vec []float32
		)
		if err := rows.Scan(&r.VideoID, &r.URL, &r.ChunkIndex, &r.ChunkText, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &vec); err != nil {
			return nil, fmt.Errorf("decode embedding for %s/%d: %w", r.VideoID, r.ChunkIndex, err)
		}
		r.Score = CosineSimilarity(embedding, vec)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topK(results, k), nil
}

func (s *SQLiteStore) HasVideo(ctx context.Context, videoID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM youtube_videos WHERE video_id = ?`, videoID).Scan(&n)
	return n > 0, err
}

func (s *SQLiteStore) DeleteVideo(ctx context.Context, videoID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM youtube_videos WHERE video_id = ?`, videoID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) Stats(ctx context.Context) (core.StoreStats, error) {
	st := core.StoreStats{Backend: config.StoreSQLite}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT video_id), COUNT(*) FROM youtube_videos`).Scan(&st.Videos, &st.Chunks)
	return st, err
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error { return s.db.Close() }
