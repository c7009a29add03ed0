package webui

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"youtubeSearch/core"
)

func newTestConsole(t *testing.T, handler http.HandlerFunc) (*Console, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewConsole(NewAPIClient(srv.URL+"/", nil))
	require.NoError(t, err)
	return c, srv
}

func replyJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestEmptyInputPromptsWithoutCalling(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		replyJSON(w, map[string]string{})
	})

	for _, name := range Actions() {
		out, err := c.Run(context.Background(), name, "  \t ", "")
		require.NoError(t, err, name)
		assert.NotEmpty(t, out.Alert, name)
		assert.Empty(t, out.HTML, name)
		assert.False(t, c.Page().Panel(out.Panel).Loading, name)
	}
	assert.Zero(t, calls.Load())

	out, _ := c.Run(context.Background(), "save-channel", "", "")
	assert.Equal(t, "채널 ID를 입력해주세요.", out.Alert)
	out, _ = c.Run(context.Background(), "search", "", "")
	assert.Equal(t, "검색어를 입력해주세요.", out.Alert)
}

func TestSearchSendsTrimmedQuery(t *testing.T) {
	var got core.SearchRequest
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/search", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		json.NewDecoder(r.Body).Decode(&got)
		replyJSON(w, core.SearchResult{
			VideoID: "abcdefghijk", URL: "https://www.youtube.com/watch?v=abcdefghijk",
			ChunkIndex: 3, ChunkText: "김치찌개 끓이는 법", Score: 0.734,
		})
	})

	out, err := c.Run(context.Background(), "search", "  김치찌개  ", "")
	require.NoError(t, err)
	assert.Equal(t, "김치찌개", got.Query)
	assert.Contains(t, string(out.HTML), "abcdefghijk")
	assert.Contains(t, string(out.HTML), "73.4%")
	assert.Contains(t, string(out.HTML), "김치찌개 끓이는 법")
	assert.Equal(t, out.HTML, c.Page().Panel("searchResult").HTML)
	assert.True(t, c.Page().Panel("searchResult").Visible)
}

func TestErrorFieldRendersVerbatim(t *testing.T) {
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, map[string]string{"error": "No similar video found."})
	})

	out, err := c.Run(context.Background(), "search", "pasta", "")
	require.NoError(t, err)
	assert.Contains(t, string(out.HTML), "No similar video found.")
	assert.Contains(t, string(out.HTML), "alert-danger")

	out, err = c.Run(context.Background(), "channel-info", "https://youtu.be/abcdefghijk", "")
	require.NoError(t, err)
	assert.Contains(t, string(out.HTML), "No similar video found.")
}

func TestMissingVideoIDRendersNotFound(t *testing.T) {
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, map[string]any{"url": "", "score": 0})
	})

	out, err := c.Run(context.Background(), "search", "pasta", "")
	require.NoError(t, err)
	assert.Contains(t, string(out.HTML), "유사한 비디오를 찾을 수 없습니다.")
}

func TestLoadingHiddenAfterSuccessAndFailure(t *testing.T) {
	var c *Console
	var sawLoading atomic.Bool
	c, srv := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		sawLoading.Store(c.Page().Panel("compare-result").Loading)
		replyJSON(w, core.Envelope{Success: true, Data: core.CompareResult{
			Basic: core.ChunkStats{ChunkCount: 4, AvgChunkLength: 299.6, SampleChunks: []string{"첫 번째 청크"}},
		}})
	})

	out, err := c.Run(context.Background(), "compare", "https://youtu.be/abcdefghijk", "")
	require.NoError(t, err)
	assert.True(t, sawLoading.Load())
	assert.False(t, c.Page().Panel("compare-result").Loading)
	assert.Contains(t, string(out.HTML), "4개")
	assert.Contains(t, string(out.HTML), "300자")
	assert.Contains(t, string(out.HTML), "샘플 없음")

	// unreachable API: network failure message, loading still cleared
	srv.Close()
	sawLoading.Store(false)
	out, err = c.Run(context.Background(), "compare", "https://youtu.be/abcdefghijk", "")
	require.NoError(t, err)
	assert.Contains(t, string(out.HTML), "청킹 방법 비교 중 오류가 발생했습니다.")
	assert.False(t, c.Page().Panel("compare-result").Loading)
}

func TestUndecodableResponseShowsFailureMessage(t *testing.T) {
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>bad gateway</html>")
	})

	out, err := c.Run(context.Background(), "transcript", "https://youtu.be/abcdefghijk", "")
	require.NoError(t, err)
	assert.Contains(t, string(out.HTML), "자막 가져오기 중 오류가 발생했습니다.")
	assert.False(t, c.Page().Panel("transcript-result").Loading)
}

func TestYouTubeSearchNonListIsNoResults(t *testing.T) {
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, map[string]string{"error": "youtube api error"})
	})
	out, err := c.Run(context.Background(), "youtube-search", "kimchi", "")
	require.NoError(t, err)
	assert.Contains(t, string(out.HTML), "검색 결과가 없습니다.")
}

func TestYouTubeSearchRendersCounts(t *testing.T) {
	views, likes := int64(1_530_000), int64(2400)
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, []core.VideoInfo{{
			Title: "백종원 김치찌개", ChannelName: "백종원", ViewCount: &views, LikeCount: &likes,
			URL: "https://www.youtube.com/watch?v=abcdefghijk",
		}})
	})
	out, err := c.Run(context.Background(), "youtube-search", "kimchi", "")
	require.NoError(t, err)
	assert.Contains(t, string(out.HTML), "백종원 김치찌개")
	assert.Contains(t, string(out.HTML), "1.5M")
	assert.Contains(t, string(out.HTML), "2.4K")
}

func TestTranscriptFailureMarker(t *testing.T) {
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, core.TranscriptResponse{
			Success:          true,
			TranscriptRecord: core.TranscriptRecord{Transcript: "자막 추출 실패: disabled"},
		})
	})
	out, err := c.Run(context.Background(), "transcript", "https://youtu.be/abcdefghijk", "")
	require.NoError(t, err)
	assert.Contains(t, string(out.HTML), "자막이 없습니다!")
}

func TestTranscriptThumbnailFromInput(t *testing.T) {
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, core.TranscriptResponse{
			Success:          true,
			TranscriptRecord: core.TranscriptRecord{Title: "파스타", Transcript: "물을 끓입니다"},
		})
	})
	out, err := c.Run(context.Background(), "transcript", "https://www.youtube.com/watch?v=abcdefghijk", "")
	require.NoError(t, err)
	html := string(out.HTML)
	assert.Contains(t, html, "img.youtube.com/vi/abcdefghijk/mqdefault.jpg")
	assert.Contains(t, html, "자막 길이: 7자")
	assert.Contains(t, html, "길이: N/A")
}

func TestPreviewTogglesSaveSection(t *testing.T) {
	transcript := strings.Repeat("가", 1200)
	var fail atomic.Bool
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			replyJSON(w, core.TranscriptResponse{Success: false, Error: "비디오 ID를 찾을 수 없습니다"})
			return
		}
		rec := core.TranscriptRecord{VideoID: "abcdefghijk", Transcript: transcript}
		replyJSON(w, core.TranscriptResponse{Success: true, Data: &rec, TranscriptRecord: rec})
	})

	out, err := c.Run(context.Background(), "preview", "https://youtu.be/abcdefghijk", "")
	require.NoError(t, err)
	html := string(out.HTML)
	assert.Contains(t, html, "전체 자막 길이: 1200자")
	assert.Contains(t, html, "청크 개수: 3개")
	assert.Contains(t, html, "청크 3 (200자)")
	assert.Contains(t, html, `data-save-section="true"`)
	visible, savedURL := c.Page().SaveSection()
	assert.True(t, visible)
	assert.Equal(t, "https://youtu.be/abcdefghijk", savedURL)

	fail.Store(true)
	out, err = c.Run(context.Background(), "preview", "https://youtu.be/abcdefghijk", "")
	require.NoError(t, err)
	assert.Contains(t, string(out.HTML), "비디오 ID를 찾을 수 없습니다")
	visible, _ = c.Page().SaveSection()
	assert.False(t, visible)
}

func TestSaveChannelSteps(t *testing.T) {
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, core.ChannelSaveResponse{Message: "📊 찾은 새로운 영상: 1개 (목표: 3개)\n\n✅ abc - 자막 추출 완료 (120자)\n❌ def - 자막 추출 실패: x"})
	})
	out, err := c.Run(context.Background(), "save-channel", "UC123", "")
	require.NoError(t, err)
	html := string(out.HTML)
	assert.Contains(t, html, "alert-primary")
	assert.Contains(t, html, "alert-success")
	assert.Contains(t, html, "alert-danger")
	assert.Equal(t, 3, strings.Count(html, `role="alert"`))
}

func TestSaveSemanticDefaultsMethod(t *testing.T) {
	var got core.VideoURLRequest
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/save-single-video-semantic", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&got)
		replyJSON(w, core.Envelope{Success: true, Data: core.SaveVideoResult{Message: "저장했습니다"}})
	})
	out, err := c.Run(context.Background(), "save-semantic", "https://youtu.be/abcdefghijk", "")
	require.NoError(t, err)
	assert.Equal(t, core.ChunkSemantic, got.ChunkMethod)
	assert.Contains(t, string(out.HTML), "청킹 방법: 의미 기반 청킹")
	assert.Contains(t, string(out.HTML), "결과: 저장했습니다")
}

func TestSaveSemanticShowsMethodUsed(t *testing.T) {
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, core.Envelope{Success: true, Data: core.SaveVideoResult{
			Message:     "기본 청킹으로 3개 청크로 저장했습니다.",
			ChunkMethod: core.ChunkBasic,
		}})
	})
	out, err := c.Run(context.Background(), "save-semantic", "https://youtu.be/abcdefghijk", core.ChunkCooking)
	require.NoError(t, err)
	assert.Contains(t, string(out.HTML), "청킹 방법: 기본 청킹")
	assert.NotContains(t, string(out.HTML), "요리 특화 청킹")
}

func TestSaveVideoFailure(t *testing.T) {
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		replyJSON(w, core.Envelope{Success: false})
	})
	out, err := c.Run(context.Background(), "save-video", "https://youtu.be/abcdefghijk", "")
	require.NoError(t, err)
	assert.Contains(t, string(out.HTML), "알 수 없는 오류가 발생했습니다.")
}

func TestUnknownAction(t *testing.T) {
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := c.Run(context.Background(), "delete-everything", "x", "")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestServeActionFragmentAndRedirect(t *testing.T) {
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		replyJSON(w, map[string]string{"error": "No similar video found."})
	})

	form := url.Values{"input": {"pasta"}}
	req := httptest.NewRequest(http.MethodPost, "/ui/search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Console-Fragment", "1")
	rec := httptest.NewRecorder()
	c.ServeAction(rec, req, "search")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No similar video found.")

	req = httptest.NewRequest(http.MethodPost, "/ui/search", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	c.ServeAction(rec, req, "search")
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = httptest.NewRecorder()
	c.ServeIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No similar video found.")
	assert.Contains(t, rec.Body.String(), "save-section")

	rec = httptest.NewRecorder()
	c.ServeAction(rec, httptest.NewRequest(http.MethodPost, "/ui/nope", nil), "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeActionFragmentEmptyInput(t *testing.T) {
	var calls atomic.Int64
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })
	req := httptest.NewRequest(http.MethodPost, "/ui/transcript", strings.NewReader("input=+"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Console-Fragment", "1")
	rec := httptest.NewRecorder()
	c.ServeAction(rec, req, "transcript")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "YouTube 영상 URL을 입력해주세요.")
	assert.Zero(t, calls.Load())

	// the prompt was answered in the fragment, not kept for the page
	assert.Empty(t, c.Page().takeAlert())
}

func TestEmptyInputAlertOnIndex(t *testing.T) {
	c, _ := newTestConsole(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("API must not be called")
	})
	req := httptest.NewRequest(http.MethodPost, "/ui/compare", strings.NewReader("input=+"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	c.ServeAction(rec, req, "compare")
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = httptest.NewRecorder()
	c.ServeIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "YouTube 영상 URL을 입력해주세요.")

	// the prompt is shown once
	rec = httptest.NewRecorder()
	c.ServeIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotContains(t, rec.Body.String(), "data-alert")
}

func TestFormatNumber(t *testing.T) {
	n := func(v int64) *int64 { return &v }
	assert.Equal(t, "0", formatNumber(nil))
	assert.Equal(t, "0", formatNumber(n(0)))
	assert.Equal(t, "999", formatNumber(n(999)))
	assert.Equal(t, "1.0K", formatNumber(n(1000)))
	assert.Equal(t, "12.3M", formatNumber(n(12_345_678)))
}
