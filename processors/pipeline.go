package processors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"youtubeSearch/config"
	"youtubeSearch/core"
	"youtubeSearch/storage"
	"youtubeSearch/youtube"
)

// VideoSource is the YouTube side of the pipeline.
type VideoSource interface {
	SearchVideos(ctx context.Context, query string) ([]core.VideoInfo, error)
	ChannelInfo(ctx context.Context, videoURL string) (*core.ChannelInfo, error)
	ChannelVideoIDs(ctx context.Context, channelID, pageToken string) ([]string, string, error)
	VideoDetails(ctx context.Context, ids []string) ([]core.VideoDetails, error)
	Transcript(ctx context.Context, videoID string) (*core.TranscriptRecord, error)
}

// Pipeline runs every user operation: YouTube lookups, transcript
// ingestion and similarity search.
type Pipeline struct {
	src      VideoSource
	embedder storage.Embedder // nil when no API key is configured
	store    storage.ChunkStore
	cache    *core.CacheManager
	health   *core.HealthMonitor

	pacer    *rate.Limiter // between chunk embeddings
	semantic Chunker
	cooking  Chunker

	chunkSize int
	maxNew    int
	maxPages  int
}

// sentenceInterval paces the per-sentence embedding calls of the semantic chunkers.
const sentenceInterval = 100 * time.Millisecond

func NewPipeline(cfg *config.Config, src VideoSource, emb storage.Embedder, store storage.ChunkStore,
	cache *core.CacheManager, health *core.HealthMonitor) *Pipeline {
	p := &Pipeline{
		src:       src,
		embedder:  emb,
		store:     store,
		cache:     cache,
		health:    health,
		pacer:     newLimiter(cfg.EmbedInterval),
		chunkSize: cfg.ChunkSize,
		maxNew:    cfg.ChannelMaxNewVideos,
		maxPages:  cfg.ChannelMaxPages,
	}
	if emb != nil {
		sentencePacer := newLimiter(min(sentenceInterval, cfg.EmbedInterval))
		p.semantic = NewSemanticChunker(emb, sentencePacer, cfg.SemanticThreshold)
		p.cooking = NewTopicSegmentator(emb, sentencePacer, cfg.CookingThreshold, cfg.ChunkSize)
	}
	return p
}

func newLimiter(every time.Duration) *rate.Limiter {
	if every <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(every), 1)
}

// track records the outcome of one operation on the health monitor.
func (p *Pipeline) track(name string, start time.Time, err *error) {
	p.health.RecordOperation(name, time.Since(start), *err)
	if *err != nil {
		slog.Warn("operation failed", slog.String("op", name), slog.Any("error", *err))
	}
}

func (p *Pipeline) requireEmbedder() error {
	if p.embedder == nil {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set", core.ErrMissingConfig)
	}
	return nil
}

// SearchSimilar returns the stored chunk closest to query.
func (p *Pipeline) SearchSimilar(ctx context.Context, query string) (res *core.SearchResult, err error) {
	defer p.track("search_similar", time.Now(), &err)
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.ErrEmptyInput
	}
	if err := p.requireEmbedder(); err != nil {
		return nil, err
	}
	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, core.WithKind(core.KindEmbedding, err)
	}
	matches, err := p.store.Match(ctx, vec, 1)
	if err != nil {
		return nil, core.WithKind(core.KindDatabase, err)
	}
	if len(matches) == 0 {
		return nil, core.ErrNoSimilarVideo
	}
	return &matches[0], nil
}

func (p *Pipeline) SearchYouTube(ctx context.Context, query string) (videos []core.VideoInfo, err error) {
	defer p.track("search_youtube", time.Now(), &err)
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.ErrEmptyInput
	}
	key := core.CacheKey("youtube_search", query)
	if p.cache.Get(ctx, key, &videos) {
		return videos, nil
	}
	videos, err = p.src.SearchVideos(ctx, query)
	if err != nil {
		return nil, core.WithKind(core.KindYouTube, err)
	}
	p.cache.Set(ctx, key, videos)
	return videos, nil
}

func (p *Pipeline) ChannelInfo(ctx context.Context, videoURL string) (info *core.ChannelInfo, err error) {
	defer p.track("channel_info", time.Now(), &err)
	info, err = p.src.ChannelInfo(ctx, videoURL)
	if err != nil {
		return nil, core.WithKind(core.KindYouTube, err)
	}
	return info, nil
}

// Transcript resolves the video id from url and returns its transcript.
// Failures carry the localized "not available" message.
func (p *Pipeline) Transcript(ctx context.Context, videoURL string) (rec *core.TranscriptRecord, err error) {
	defer p.track("transcript", time.Now(), &err)
	videoID, err := youtube.ExtractVideoID(videoURL)
	if err != nil {
		return nil, err
	}
	rec, err = p.transcript(ctx, videoID)
	if err != nil {
		return nil, transcriptError(videoID, err)
	}
	return rec, nil
}

func transcriptError(videoID string, err error) error {
	return core.WithKind(core.KindYouTube, fmt.Errorf("비디오 ID '%s'에 대한 자막을 찾을 수 없거나 사용할 수 없습니다. 오류: %w", videoID, err))
}

func (p *Pipeline) transcript(ctx context.Context, videoID string) (*core.TranscriptRecord, error) {
	key := core.CacheKey("transcript", videoID)
	var rec core.TranscriptRecord
	if p.cache.Get(ctx, key, &rec) {
		return &rec, nil
	}
	got, err := p.src.Transcript(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if got.Title == "" || got.Duration == "" {
		p.fillDetails(ctx, got)
	}
	p.cache.Set(ctx, key, got)
	return got, nil
}

// fillDetails completes a transcript record whose watch page lacked the
// title or length. Failures only leave the fields empty.
func (p *Pipeline) fillDetails(ctx context.Context, rec *core.TranscriptRecord) {
	details, err := p.src.VideoDetails(ctx, []string{rec.VideoID})
	if err != nil || len(details) == 0 {
		slog.Debug("video details unavailable", slog.String("video_id", rec.VideoID), slog.Any("error", err))
		return
	}
	if rec.Title == "" {
		rec.Title = details[0].Title
	}
	if rec.Duration == "" {
		rec.Duration = details[0].Duration
	}
}

// stepLog collects the human readable progress of a channel save.
type stepLog struct{ lines []string }

func (l *stepLog) add(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	l.lines = append(l.lines, line)
	slog.Info(line, slog.String("component", "save_channel"))
}

func (l *stepLog) String() string { return strings.Join(l.lines, "\n") }

// SaveChannel stores up to maxNew not-yet-stored videos of a channel, cut
// into fixed chunks. The returned text is the step log.
func (p *Pipeline) SaveChannel(ctx context.Context, channelID string) (msg string, err error) {
	defer p.track("save_channel", time.Now(), &err)
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return "", core.ErrEmptyInput
	}
	if err := p.requireEmbedder(); err != nil {
		return "", err
	}

	var (
		log    stepLog
		newIDs []string
		tried  = map[string]bool{}
		token  string
	)
	for page := 0; len(newIDs) < p.maxNew && page < p.maxPages; page++ {
		ids, next, err := p.src.ChannelVideoIDs(ctx, channelID, token)
		if err != nil {
			if page == 0 {
				return "", core.WithKind(core.KindYouTube, err)
			}
			log.add("❌ 영상 목록 조회 실패 (페이지 %d): %v", page+1, err)
			break
		}
		for _, id := range ids {
			if tried[id] {
				continue
			}
			tried[id] = true
			exists, err := p.store.HasVideo(ctx, id)
			if err != nil {
				log.add("❌ 영상 %s 조회 오류: %v", id, err)
				continue
			}
			if exists {
				continue
			}
			newIDs = append(newIDs, id)
			if len(newIDs) >= p.maxNew {
				break
			}
		}
		if next == "" {
			break
		}
		token = next
	}

	log.add("📊 찾은 새로운 영상: %d개 (목표: %d개)", len(newIDs), p.maxNew)
	if len(newIDs) == 0 {
		return "저장할 새로운 영상이 없습니다.", nil
	}
	if len(newIDs) < p.maxNew {
		log.add("⚠️ 새로운 영상이 부족합니다. (찾음: %d개, 목표: %d개)", len(newIDs), p.maxNew)
	}

	total := 0
	for _, videoID := range newIDs {
		rec, err := p.transcript(ctx, videoID)
		if err != nil {
			log.add("❌ %s - 자막 추출 실패: %v", videoID, err)
			continue
		}
		log.add("✅ %s - 자막 추출 완료 (%d자)", videoID, runeLen(rec.Transcript))

		chunks := p.basicChunks(videoID, rec.Transcript)
		log.add("📝 %s - %d개 청크로 분할", videoID, len(chunks))

		saved := 0
		for _, ch := range chunks {
			vec, err := p.pacedEmbed(ctx, ch.Text)
			if err != nil {
				if ctx.Err() != nil {
					return log.String(), ctx.Err()
				}
				log.add("❌ %s - 임베딩 실패 (청크 %d): %v", videoID, ch.Index, err)
				continue
			}
			ch.Embedding = vec
			if _, err := p.store.Insert(ctx, []core.Chunk{ch}); err != nil {
				log.add("❌ %s - DB 저장 실패 (청크 %d): %v", videoID, ch.Index, err)
				continue
			}
			saved++
		}
		total += saved
		log.add("💾 %s - %d개 청크 저장 완료", videoID, saved)
	}

	log.add("총 %d개 자막 청크가 저장되었습니다.", total)
	return log.String(), nil
}

func (p *Pipeline) basicChunks(videoID, transcript string) []core.Chunk {
	texts := ChunkFixed(transcript, p.chunkSize)
	chunks := make([]core.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = core.Chunk{
			VideoID: videoID,
			URL:     youtube.WatchURL(videoID),
			Index:   i,
			Text:    t,
			Method:  core.ChunkBasic,
		}
	}
	return chunks
}

func (p *Pipeline) pacedEmbed(ctx context.Context, text string) ([]float32, error) {
	if err := p.pacer.Wait(ctx); err != nil {
		return nil, err
	}
	return p.embedder.Embed(ctx, text)
}

// MethodName is the display name of a chunk method.
func MethodName(method string) string {
	switch method {
	case core.ChunkSemantic:
		return "의미 기반 청킹"
	case core.ChunkCooking:
		return "요리 특화 청킹"
	default:
		return "기본 청킹"
	}
}

// SaveVideo chunks one video with the given method, embeds the chunks and
// replaces whatever was stored for it before.
func (p *Pipeline) SaveVideo(ctx context.Context, videoURL, method string) (res *core.SaveVideoResult, err error) {
	defer p.track("save_video", time.Now(), &err)
	method = core.ParseChunkMethod(method)
	videoID, err := youtube.ExtractVideoID(videoURL)
	if err != nil {
		return nil, err
	}
	if err := p.requireEmbedder(); err != nil {
		return nil, err
	}
	rec, err := p.transcript(ctx, videoID)
	if err != nil {
		return nil, transcriptError(videoID, err)
	}

	chunks, method, err := p.chunkWith(ctx, videoID, rec.Transcript, method)
	if err != nil {
		return nil, err
	}

	stored := make([]core.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if ch.Embedding == nil {
			vec, err := p.pacedEmbed(ctx, ch.Text)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				slog.Warn("chunk embedding failed", slog.String("video_id", videoID), slog.Int("chunk", ch.Index), slog.Any("error", err))
				continue
			}
			ch.Embedding = vec
		}
		stored = append(stored, ch)
	}
	if len(stored) == 0 {
		return nil, core.WithKind(core.KindEmbedding, fmt.Errorf("no chunk of %s could be embedded", videoID))
	}

	removed, n, err := p.store.ReplaceVideo(ctx, videoID, stored)
	if err != nil {
		return nil, core.WithKind(core.KindDatabase, err)
	}
	slog.Info("video saved",
		slog.String("video_id", videoID), slog.String("method", method),
		slog.Int("chunks", n), slog.Int("replaced", removed))

	return &core.SaveVideoResult{
		Message:     fmt.Sprintf("영상 %s의 자막을 %s으로 %d개 청크로 저장했습니다.", videoID, MethodName(method), n),
		VideoID:     videoID,
		ChunkMethod: method,
		ChunkCount:  n,
	}, nil
}

// chunkWith splits transcript by method. A semantic method that fails or
// produces nothing falls back to basic chunks.
func (p *Pipeline) chunkWith(ctx context.Context, videoID, transcript, method string) ([]core.Chunk, string, error) {
	var c Chunker
	switch method {
	case core.ChunkSemantic:
		c = p.semantic
	case core.ChunkCooking:
		c = p.cooking
	}
	if c != nil {
		chunks, err := c.Chunk(ctx, transcript)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, method, ctx.Err()
		case err == nil && len(chunks) > 0:
			for i := range chunks {
				chunks[i].VideoID = videoID
				chunks[i].URL = youtube.WatchURL(videoID)
				chunks[i].Index = i
				chunks[i].Method = method
			}
			return chunks, method, nil
		case err != nil && !errors.Is(err, ErrTooFewSentences):
			slog.Warn("chunking failed, using basic", slog.String("method", method), slog.Any("error", err))
		}
	}
	return p.basicChunks(videoID, transcript), core.ChunkBasic, nil
}

// CompareChunking reports how each method would cut the video's transcript.
func (p *Pipeline) CompareChunking(ctx context.Context, videoURL string) (res *core.CompareResult, err error) {
	defer p.track("compare_chunking", time.Now(), &err)
	videoID, err := youtube.ExtractVideoID(videoURL)
	if err != nil {
		return nil, err
	}
	rec, err := p.transcript(ctx, videoID)
	if err != nil {
		return nil, transcriptError(videoID, err)
	}
	out := CompareChunking(ctx, rec.Transcript, p.chunkSize, p.semantic, p.cooking)
	return &out, nil
}

// Store exposes the chunk store for stats and health checks.
func (p *Pipeline) Store() storage.ChunkStore { return p.store }
