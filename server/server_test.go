package server

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"youtubeSearch/core"
	"youtubeSearch/storage"
)

type fakeService struct {
	store       *storage.MemoryStore
	search      *core.SearchResult
	searchErr   error
	videos      []core.VideoInfo
	transcript  *core.TranscriptRecord
	transErr    error
	saveErr     error
	gotMethod   string
	channelMsg  string
	channelErr  error
	compareData *core.CompareResult
}

func (f *fakeService) SearchSimilar(context.Context, string) (*core.SearchResult, error) {
	return f.search, f.searchErr
}

func (f *fakeService) SearchYouTube(context.Context, string) ([]core.VideoInfo, error) {
	return f.videos, nil
}

func (f *fakeService) ChannelInfo(_ context.Context, videoURL string) (*core.ChannelInfo, error) {
	if !strings.Contains(videoURL, "youtu") {
		return nil, core.ErrInvalidURL
	}
	return &core.ChannelInfo{ChannelID: "UC1", ChannelName: "집밥", RecentVideos: []core.VideoInfo{}}, nil
}

func (f *fakeService) Transcript(context.Context, string) (*core.TranscriptRecord, error) {
	return f.transcript, f.transErr
}

func (f *fakeService) SaveChannel(context.Context, string) (string, error) {
	return f.channelMsg, f.channelErr
}

func (f *fakeService) SaveVideo(_ context.Context, _ string, method string) (*core.SaveVideoResult, error) {
	f.gotMethod = method
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &core.SaveVideoResult{Message: "ok", VideoID: "abcdefghijk", ChunkMethod: method, ChunkCount: 2}, nil
}

func (f *fakeService) CompareChunking(context.Context, string) (*core.CompareResult, error) {
	return f.compareData, nil
}

func (f *fakeService) Store() storage.ChunkStore { return f.store }

func newTestServer(t *testing.T, svc *fakeService) *httptest.Server {
	t.Helper()
	if svc.store == nil {
		svc.store = storage.NewMemoryStore()
	}
	health := core.NewHealthMonitor()
	health.Register("vector_store", svc.store.Ping)
	cache := core.NewCacheManager("", time.Minute, 100, time.Minute)
	t.Cleanup(cache.Close)

	srv := httptest.NewServer(NewRouter(Deps{Service: svc, Health: health, Cache: cache, Version: "test"}))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestRequiredFields(t *testing.T) {
	srv := newTestServer(t, &fakeService{})
	cases := map[string]string{
		"/api/search":                     "query",
		"/api/youtube/search":             "query",
		"/api/channel/info":               "video_url",
		"/api/transcript":                 "url",
		"/api/channel/save":               "channel_id",
		"/api/save-single-video":          "video_url",
		"/api/save-single-video-semantic": "video_url",
		"/api/compare-chunking":           "video_url",
	}
	for path, field := range cases {
		body := fmt.Sprintf(`{%q: "   "}`, field)
		resp, out := post(t, srv, path, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		assert.Equal(t, field+" is required", out["error"], path)
	}

	resp, out := post(t, srv, "/api/search", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid JSON body", out["error"])
}

func TestSearchNoSimilarVideo(t *testing.T) {
	srv := newTestServer(t, &fakeService{searchErr: core.ErrNoSimilarVideo})
	resp, out := post(t, srv, "/api/search", `{"query":"pasta"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "No similar video found.", out["error"])
}

func TestSearchErrorKinds(t *testing.T) {
	svc := &fakeService{searchErr: core.WithKind(core.KindEmbedding, errors.New("rate limited"))}
	srv := newTestServer(t, svc)
	resp, out := post(t, srv, "/api/search", `{"query":"pasta"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, core.KindEmbedding, out["error"])
	assert.Equal(t, "rate limited", out["message"])

	svc.searchErr = fmt.Errorf("embed: %w", core.ErrMissingConfig)
	resp, out = post(t, srv, "/api/search", `{"query":"pasta"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, core.KindConfig, out["error"])
}

func TestSearchSuccess(t *testing.T) {
	srv := newTestServer(t, &fakeService{search: &core.SearchResult{VideoID: "abcdefghijk", Score: 0.9, ChunkIndex: 1}})
	resp, out := post(t, srv, "/api/search", `{"query":"pasta"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abcdefghijk", out["video_id"])
	assert.InDelta(t, 0.9, out["score"], 1e-9)
}

func TestYouTubeSearchEmptyIsList(t *testing.T) {
	srv := newTestServer(t, &fakeService{})
	resp, err := http.Post(srv.URL+"/api/youtube/search", "application/json", strings.NewReader(`{"query":"kimchi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "[]", strings.TrimSpace(string(raw)))
}

func TestChannelInfoInvalidURL(t *testing.T) {
	srv := newTestServer(t, &fakeService{})
	resp, out := post(t, srv, "/api/channel/info", `{"video_url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, core.ErrInvalidURL.Error(), out["error"])

	resp, out = post(t, srv, "/api/channel/info", `{"video_url":"https://youtu.be/abcdefghijk"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "집밥", out["channel_name"])
}

func TestTranscriptShapes(t *testing.T) {
	rec := &core.TranscriptRecord{VideoID: "abcdefghijk", Title: "김치찌개", Duration: "5:03", Transcript: "안녕하세요"}
	srv := newTestServer(t, &fakeService{transcript: rec})
	resp, out := post(t, srv, "/api/transcript", `{"url":"https://youtu.be/abcdefghijk"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "안녕하세요", out["transcript"])
	data, ok := out["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "김치찌개", data["title"])
}

func TestTranscriptSoftFailure(t *testing.T) {
	srv := newTestServer(t, &fakeService{transErr: errors.New("자막을 찾을 수 없거나 사용할 수 없습니다")})
	resp, out := post(t, srv, "/api/transcript", `{"url":"https://youtu.be/abcdefghijk"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "자막을 찾을 수 없")
	assert.NotContains(t, out, "data")
}

func TestSaveChannel(t *testing.T) {
	svc := &fakeService{channelMsg: "총 3개 자막 청크가 저장되었습니다."}
	srv := newTestServer(t, svc)
	resp, out := post(t, srv, "/api/channel/save", `{"channel_id":"UC1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, svc.channelMsg, out["message"])

	svc.channelErr = core.WithKind(core.KindYouTube, errors.New("quota exceeded"))
	resp, out = post(t, srv, "/api/channel/save", `{"channel_id":"UC1"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "quota exceeded", out["error"])
}

func TestSaveVideoEnvelopes(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc)

	resp, out := post(t, srv, "/api/save-single-video", `{"video_url":"https://youtu.be/abcdefghijk","chunk_method":"cooking"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, core.ChunkBasic, svc.gotMethod)

	resp, _ = post(t, srv, "/api/save-single-video-semantic", `{"video_url":"https://youtu.be/abcdefghijk"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, core.ChunkSemantic, svc.gotMethod)

	post(t, srv, "/api/save-single-video-semantic", `{"video_url":"https://youtu.be/abcdefghijk","chunk_method":"cooking"}`)
	assert.Equal(t, core.ChunkCooking, svc.gotMethod)

	svc.saveErr = core.ErrInvalidURL
	resp, out = post(t, srv, "/api/save-single-video", `{"video_url":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, core.ErrInvalidURL.Error(), out["error"])

	svc.saveErr = core.WithKind(core.KindDatabase, errors.New("insert failed"))
	resp, out = post(t, srv, "/api/save-single-video", `{"video_url":"https://youtu.be/abcdefghijk"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "insert failed", out["error"])
}

func TestCompareChunkingEnvelope(t *testing.T) {
	srv := newTestServer(t, &fakeService{compareData: &core.CompareResult{
		Basic:            core.ChunkStats{ChunkCount: 2, AvgChunkLength: 150, SampleChunks: []string{"a"}},
		TranscriptLength: 300,
	}})
	resp, out := post(t, srv, "/api/compare-chunking", `{"video_url":"https://youtu.be/abcdefghijk"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := out["data"].(map[string]any)
	assert.EqualValues(t, 300, data["transcript_length"])
	basic := data["basic_chunking"].(map[string]any)
	assert.EqualValues(t, 2, basic["chunk_count"])
	assert.Contains(t, data, "cooking_semantic_chunking")
}

func TestHealthAndStats(t *testing.T) {
	svc := &fakeService{store: storage.NewMemoryStore()}
	_, err := svc.store.Insert(context.Background(), []core.Chunk{
		{VideoID: "v1", Index: 0, Text: "a", Embedding: []float32{1, 0}},
		{VideoID: "v1", Index: 1, Text: "b", Embedding: []float32{0, 1}},
	})
	require.NoError(t, err)
	srv := newTestServer(t, svc)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var health core.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)
	assert.Equal(t, "ok", health.Services["vector_store"])

	resp, err = http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	var stats statsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	require.NotNil(t, stats.Store)
	assert.Equal(t, 1, stats.Store.Videos)
	assert.Equal(t, 2, stats.Store.Chunks)
	assert.NotEmpty(t, stats.System.GoVersion)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeService{})
	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/search", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStaticAssetsGzip(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/static/style.css", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := (&http.Transport{DisableCompression: true}).RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")

	gz, err := gzip.NewReader(resp.Body)
	require.NoError(t, err)
	css, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(css), ".panel")
	assert.NotContains(t, string(css), "/* youtubeSearch console */")

	resp2, err := http.Get(srv.URL + "/static/missing.js")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestGzipBytes(t *testing.T) {
	data := []byte(strings.Repeat("console ", 100))
	packed, err := gzipBytes(data)
	require.NoError(t, err)
	assert.Less(t, len(packed), len(data))

	gz, err := gzip.NewReader(bytes.NewReader(packed))
	require.NoError(t, err)
	got, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestMCPTools(t *testing.T) {
	ctx := context.Background()
	svc := &fakeService{
		store:  storage.NewMemoryStore(),
		search: &core.SearchResult{VideoID: "abcdefghijk", Score: 0.8},
	}
	server := NewMCPServer(svc, "test")

	clientT, serverT := mcp.NewInMemoryTransports()
	_, err := server.Connect(ctx, serverT, nil)
	require.NoError(t, err)
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"get_youtube_transcript", "search_youtube_videos", "get_channel_info",
		"save_channel_youtube_embeddings", "search_similar_youtube_video",
		"save_single_video_embedding", "compare_chunking",
	}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search_similar_youtube_video",
		Arguments: map[string]any{"query": "pasta"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	assert.True(t, bytes.Contains(raw, []byte("abcdefghijk")))
}
