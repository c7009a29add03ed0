package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"youtubeSearch/config"
	"youtubeSearch/core"
)

type MilvusConfig struct {
	Addr       string
	Username   string
	Password   string
	APIKey     string // Zilliz Cloud
	Collection string
	Dim        int
}

type MilvusStore struct {
	mc   client.Client
	coll string
	dim  int
}

var milvusOutputFields = []string{"video_id", "url", "chunk_index", "chunk_text"}

func NewMilvusStore(ctx context.Context, cfg MilvusConfig) (*MilvusStore, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:19530"
	}
	if cfg.Collection == "" {
		cfg.Collection = "youtube_videos"
	}
	mc, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		APIKey:   cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	s := &MilvusStore{mc: mc, coll: cfg.Collection, dim: cfg.Dim}
	if err := s.ensureSchemaAndIndex(ctx); err != nil {
		mc.Close()
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) ensureSchemaAndIndex(ctx context.Context) error {
	has, err := s.mc.HasCollection(ctx, s.coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema().WithName(s.coll).WithDescription("youtube transcript chunks")
		schema.WithField(entity.NewField().WithName("id").WithIsAutoID(true).WithIsPrimaryKey(true).WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("video_id").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
		schema.WithField(entity.NewField().WithName("url").WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
		schema.WithField(entity.NewField().WithName("chunk_index").WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("chunk_text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(8192))
		schema.WithField(entity.NewField().WithName("chunk_method").WithDataType(entity.FieldTypeVarChar).WithMaxLength(32))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))

		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, s.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.mc.LoadCollection(ctx, s.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func (s *MilvusStore) Insert(ctx context.Context, chunks []core.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	if _, err := s.insert(ctx, chunks); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// insert writes chunks and returns their generated primary keys.
func (s *MilvusStore) insert(ctx context.Context, chunks []core.Chunk) ([]int64, error) {
	var (
		videoIDs = make([]string, 0, len(chunks))
		urls     = make([]string, 0, len(chunks))
		indexes  = make([]int64, 0, len(chunks))
		texts    = make([]string, 0, len(chunks))
		methods  = make([]string, 0, len(chunks))
		vectors  = make([][]float32, 0, len(chunks))
	)
	for _, c := range chunks {
		if len(c.Embedding) != s.dim {
			return nil, fmt.Errorf("chunk %s/%d: embedding has %d dims, want %d", c.VideoID, c.Index, len(c.Embedding), s.dim)
		}
		videoIDs = append(videoIDs, c.VideoID)
		urls = append(urls, c.URL)
		indexes = append(indexes, int64(c.Index))
		texts = append(texts, c.Text)
		methods = append(methods, c.Method)
		vectors = append(vectors, c.Embedding)
	}

	idCol, err := s.mc.Insert(ctx, s.coll, "",
		entity.NewColumnVarChar("video_id", videoIDs),
		entity.NewColumnVarChar("url", urls),
		entity.NewColumnInt64("chunk_index", indexes),
		entity.NewColumnVarChar("chunk_text", texts),
		entity.NewColumnVarChar("chunk_method", methods),
		entity.NewColumnFloatVector("vector", s.dim, vectors),
	)
	if err != nil {
		return nil, fmt.Errorf("milvus insert: %w", err)
	}
	ids := int64Data(idCol)
	// HasVideo must see the rows right away
	if err := s.mc.Flush(ctx, s.coll, false); err != nil {
		return ids, fmt.Errorf("milvus flush: %w", err)
	}
	return ids, nil
}

// ReplaceVideo inserts the new chunks before deleting the old ones by
// primary key, so a failed insert leaves the stored video untouched. If
// the delete fails the new rows are removed again.
func (s *MilvusStore) ReplaceVideo(ctx context.Context, videoID string, chunks []core.Chunk) (int, int, error) {
	if err := sameVideo(videoID, chunks); err != nil {
		return 0, 0, err
	}
	rs, err := s.mc.Query(ctx, s.coll, []string{}, videoFilter(videoID), []string{"id"})
	if err != nil {
		return 0, 0, fmt.Errorf("milvus query: %w", err)
	}
	var oldIDs []int64
	for _, col := range rs {
		if col.Name() == "id" {
			oldIDs = int64Data(col)
		}
	}

	var newIDs []int64
	if len(chunks) > 0 {
		newIDs, err = s.insert(ctx, chunks)
		if err != nil {
			s.deleteIDs(context.WithoutCancel(ctx), newIDs)
			return 0, 0, err
		}
	}
	if len(oldIDs) > 0 {
		if err := s.mc.Delete(ctx, s.coll, "", idFilter(oldIDs)); err != nil {
			s.deleteIDs(context.WithoutCancel(ctx), newIDs)
			return 0, 0, fmt.Errorf("milvus delete: %w", err)
		}
	}
	return len(oldIDs), len(chunks), nil
}

func (s *MilvusStore) deleteIDs(ctx context.Context, ids []int64) {
	if len(ids) == 0 {
		return
	}
	if err := s.mc.Delete(ctx, s.coll, "", idFilter(ids)); err != nil {
		slog.Warn("milvus rollback failed", slog.Int("rows", len(ids)), slog.Any("error", err))
	}
}

func int64Data(col entity.Column) []int64 {
	if c, ok := col.(*entity.ColumnInt64); ok {
		return c.Data()
	}
	return nil
}

func idFilter(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return "id in [" + strings.Join(parts, ",") + "]"
}

func (s *MilvusStore) Match(ctx context.Context, embedding []float32, k int) ([]core.SearchResult, error) {
	if k <= 0 {
		k = 1
	}
	sp, _ := entity.NewIndexHNSWSearchParam(74)
	res, err := s.mc.Search(ctx, s.coll, []string{}, "", milvusOutputFields,
		[]entity.Vector{entity.FloatVector(embedding)}, "vector", entity.COSINE, k, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}

	var out []core.SearchResult
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < r.ResultCount; i++ {
			hit := core.SearchResult{
				VideoID:   varCharAt(cols["video_id"], i),
				URL:       varCharAt(cols["url"], i),
				ChunkText: varCharAt(cols["chunk_text"], i),
				Score:     float64(r.Scores[i]),
			}
			if c, ok := cols["chunk_index"].(*entity.ColumnInt64); ok {
				if data := c.Data(); i < len(data) {
					hit.ChunkIndex = int(data[i])
				}
			}
			out = append(out, hit)
		}
	}
	return out, nil
}

func varCharAt(col entity.Column, i int) string {
	c, ok := col.(*entity.ColumnVarChar)
	if !ok {
		return ""
	}
	data := c.Data()
	if i >= len(data) {
		return ""
	}
	return data[i]
}

func videoFilter(videoID string) string {
	return fmt.Sprintf("video_id == \"%s\"", strings.ReplaceAll(videoID, "\"", "\\\""))
}

func (s *MilvusStore) HasVideo(ctx context.Context, videoID string) (bool, error) {
	rs, err := s.mc.Query(ctx, s.coll, []string{}, videoFilter(videoID), []string{"video_id"}, client.WithLimit(1))
	if err != nil {
		return false, fmt.Errorf("milvus query: %w", err)
	}
	for _, col := range rs {
		if col.Name() == "video_id" {
			return col.Len() > 0, nil
		}
	}
	return false, nil
}

func (s *MilvusStore) DeleteVideo(ctx context.Context, videoID string) (int, error) {
	rs, err := s.mc.Query(ctx, s.coll, []string{}, videoFilter(videoID), []string{"id"})
	if err != nil {
		return 0, fmt.Errorf("milvus query: %w", err)
	}
	n := 0
	for _, col := range rs {
		if col.Name() == "id" {
			n = col.Len()
		}
	}
	if n == 0 {
		return 0, nil
	}
	if err := s.mc.Delete(ctx, s.coll, "", videoFilter(videoID)); err != nil {
		return 0, fmt.Errorf("milvus delete: %w", err)
	}
	return n, nil
}

// Stats counts videos by their first chunk.
func (s *MilvusStore) Stats(ctx context.Context) (core.StoreStats, error) {
	st := core.StoreStats{Backend: config.StoreMilvus}
	stats, err := s.mc.GetCollectionStatistics(ctx, s.coll)
	if err != nil {
		return st, err
	}
	st.Chunks, _ = strconv.Atoi(stats["row_count"])

	rs, err := s.mc.Query(ctx, s.coll, []string{}, "chunk_index == 0", []string{"video_id"})
	if err != nil {
		return st, err
	}
	for _, col := range rs {
		if col.Name() == "video_id" {
			st.Videos = col.Len()
		}
	}
	return st, nil
}

func (s *MilvusStore) Ping(ctx context.Context) error {
	_, err := s.mc.HasCollection(ctx, s.coll)
	return err
}

func (s *MilvusStore) Close() error { return s.mc.Close() }
