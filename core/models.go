package core

import "strings"

// ========== YouTube ==========

// VideoInfo is one video as listed by search and channel endpoints.
type VideoInfo struct {
	VideoID       string `json:"video_id,omitempty"`
	Title         string `json:"title"`
	PublishedDate string `json:"published_date"`
	ChannelName   string `json:"channel_name"`
	ChannelID     string `json:"channel_id"`
	ThumbnailURL  string `json:"thumbnail_url"`
	ViewCount     *int64 `json:"view_count"`
	LikeCount     *int64 `json:"like_count"`
	URL           string `json:"url"`
}

type ChannelInfo struct {
	ChannelID        string      `json:"channel_id"`
	ChannelName      string      `json:"channel_name"`
	ChannelURL       string      `json:"channel_url"`
	ChannelThumbnail string      `json:"channel_thumbnail,omitempty"`
	SubscriberCount  *int64      `json:"subscriber_count"`
	VideoCount       *int64      `json:"video_count"`
	RecentVideos     []VideoInfo `json:"recent_videos"`
}

type VideoDetails struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Duration     string `json:"duration"`
	ChannelID    string `json:"channel_id"`
	ChannelTitle string `json:"channel_title"`
}

// ========== Chunks and search ==========

const (
	ChunkBasic    = "basic"
	ChunkSemantic = "semantic"
	ChunkCooking  = "cooking"
)

// ParseChunkMethod normalises a chunk method name; unknown values map to basic.
func ParseChunkMethod(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case ChunkSemantic:
		return ChunkSemantic
	case ChunkCooking:
		return ChunkCooking
	default:
		return ChunkBasic
	}
}

// Chunk is one stored piece of a video transcript.
type Chunk struct {
	VideoID   string    `json:"video_id"`
	URL       string    `json:"url"`
	Index     int       `json:"chunk_index"`
	Text      string    `json:"chunk_text"`
	Method    string    `json:"chunk_method"`
	Embedding []float32 `json:"-"`
}

// SearchResult is the best stored chunk for a query.
type SearchResult struct {
	VideoID    string  `json:"video_id"`
	URL        string  `json:"url"`
	ChunkIndex int     `json:"chunk_index"`
	ChunkText  string  `json:"chunk_text"`
	Score      float64 `json:"score"`
}

type StoreStats struct {
	Backend string `json:"backend"`
	Videos  int    `json:"videos"`
	Chunks  int    `json:"chunks"`
}

// ========== Transcript ==========

type TranscriptRecord struct {
	VideoID    string `json:"video_id"`
	Title      string `json:"title"`
	Duration   string `json:"duration"`
	Transcript string `json:"transcript"`
}

// TranscriptResponse carries the record both flat and under data, so
// callers reading either shape see the same values.
type TranscriptResponse struct {
	Success bool              `json:"success"`
	Data    *TranscriptRecord `json:"data,omitempty"`
	TranscriptRecord
	Error string `json:"error,omitempty"`
}

// ========== Requests ==========

type SearchRequest struct {
	Query string `json:"query"`
}

type VideoURLRequest struct {
	VideoURL    string `json:"video_url"`
	ChunkMethod string `json:"chunk_method,omitempty"`
}

type TranscriptRequest struct {
	URL string `json:"url"`
}

type ChannelSaveRequest struct {
	ChannelID string `json:"channel_id"`
}

// ========== Responses ==========

type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type SaveVideoResult struct {
	Message     string `json:"message"`
	VideoID     string `json:"video_id"`
	ChunkMethod string `json:"chunk_method"`
	ChunkCount  int    `json:"chunk_count"`
}

type ChannelSaveResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type ChunkStats struct {
	ChunkCount     int      `json:"chunk_count"`
	AvgChunkLength float64  `json:"avg_chunk_length"`
	SampleChunks   []string `json:"sample_chunks"`
	Error          string   `json:"error,omitempty"`
}

type CompareResult struct {
	Basic            ChunkStats `json:"basic_chunking"`
	Semantic         ChunkStats `json:"semantic_chunking"`
	Cooking          ChunkStats `json:"cooking_semantic_chunking"`
	TranscriptLength int        `json:"transcript_length"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services,omitempty"`
}
