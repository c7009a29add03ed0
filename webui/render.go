package webui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"

	"youtubeSearch/core"
	"youtubeSearch/youtube"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	previewChunkRunes = 500
	snippetRunes      = 100
)

// Markers the backend leaves in a transcript that could not be extracted.
var failureMarkers = []string{"자막 추출 실패", "자막을 찾을 수 없"}

var methodNames = map[string]string{
	core.ChunkBasic:    "기본 청킹",
	core.ChunkSemantic: "의미 기반 청킹",
	core.ChunkCooking:  "요리 특화 청킹",
}

// Response shapes as the API returns them.

type searchResponse struct {
	core.SearchResult
	Error   string `json:"error"`
	Message string `json:"message"`
}

type channelResponse struct {
	core.ChannelInfo
	Error   string `json:"error"`
	Message string `json:"message"`
}

type saveVideoResponse struct {
	Success bool                  `json:"success"`
	Data    *core.SaveVideoResult `json:"data"`
	Error   string                `json:"error"`
}

type compareResponse struct {
	Success bool                `json:"success"`
	Data    *core.CompareResult `json:"data"`
	Error   string              `json:"error"`
}

func parseTemplates() (*template.Template, error) {
	return template.New("console").Funcs(template.FuncMap{
		"formatNumber": formatNumber,
		"percent":      percent,
		"add1":         func(i int) int { return i + 1 },
		"alertClass":   alertClass,
	}).ParseFS(templateFS, "templates/*.html")
}

// formatNumber abbreviates counts: 1500 -> 1.5K, 2300000 -> 2.3M.
func formatNumber(n *int64) string {
	if n == nil || *n == 0 {
		return "0"
	}
	v := *n
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(v)/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("%.1fK", float64(v)/1_000)
	}
	return strconv.FormatInt(v, 10)
}

func percent(score float64) string {
	if score == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", score*100)
}

// alertClass picks the alert style for one save-channel log line.
func alertClass(step string) string {
	switch {
	case strings.Contains(step, "✅"), strings.Contains(step, "💾"):
		return "alert-success"
	case strings.Contains(step, "❌"):
		return "alert-danger"
	case strings.Contains(step, "⚠️"):
		return "alert-warning"
	case strings.Contains(step, "📊"):
		return "alert-primary"
	}
	return "alert-info"
}

func hasFailureMarker(s string) bool {
	for _, m := range failureMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// headRunes returns the first n runes of s and whether s was longer.
func headRunes(s string, n int) (string, bool) {
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}

type renderer struct {
	tmpl *template.Template
}

func (r *renderer) exec(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

func (r *renderer) errorBox(message string) (template.HTML, error) {
	return r.exec("error", message)
}

func (r *renderer) search(res searchResponse) (template.HTML, error) {
	return r.exec("search", res)
}

func (r *renderer) videoList(videos []core.VideoInfo) (template.HTML, error) {
	return r.exec("videos", videos)
}

func (r *renderer) channel(res channelResponse) (template.HTML, error) {
	return r.exec("channel", res)
}

type transcriptView struct {
	Missing    bool
	Error      string
	VideoID    string
	Title      string
	Duration   string
	Transcript string
	Length     int
}

// transcript renders the full transcript. inputURL supplies the thumbnail
// when the response carries no video ID.
func (r *renderer) transcript(res core.TranscriptResponse, inputURL string) (template.HTML, error) {
	rec := res.TranscriptRecord
	if res.Data != nil && rec.Transcript == "" {
		rec = *res.Data
	}
	v := transcriptView{
		VideoID:    rec.VideoID,
		Title:      rec.Title,
		Duration:   rec.Duration,
		Transcript: rec.Transcript,
		Length:     len([]rune(rec.Transcript)),
	}
	switch {
	case rec.Transcript != "" && hasFailureMarker(rec.Transcript):
		v.Missing = true
	case res.Error != "":
		v.Error = res.Error
	case !res.Success && rec.Transcript == "":
		v.Error = "자막 추출에 실패했습니다."
	}
	if v.VideoID == "" {
		if id, err := youtube.ExtractVideoID(inputURL); err == nil {
			v.VideoID = id
		} else {
			v.VideoID = "unknown"
		}
	}
	return r.exec("transcript", v)
}

func (r *renderer) saveChannel(res core.ChannelSaveResponse) (template.HTML, error) {
	if res.Error != "" {
		return r.errorBox(res.Error)
	}
	var steps []string
	for _, line := range strings.Split(res.Message, "\n") {
		if strings.TrimSpace(line) != "" {
			steps = append(steps, line)
		}
	}
	return r.exec("save_channel", steps)
}

type previewChunk struct {
	Index   int
	Length  int
	Snippet string
}

type previewView struct {
	Error   string
	Missing bool
	Length  int
	Preview string
	Chunks  []previewChunk
}

// preview splits the transcript into fixed display chunks. The second
// return value is the new save section visibility.
func (r *renderer) preview(res core.TranscriptResponse) (template.HTML, bool, error) {
	if !res.Success || res.Data == nil {
		msg := res.Error
		if msg == "" {
			msg = "자막 미리보기에 실패했습니다."
		}
		html, err := r.exec("preview", previewView{Error: msg})
		return html, false, err
	}

	text := res.Data.Transcript
	if text == "" || hasFailureMarker(text) {
		html, err := r.exec("preview", previewView{Missing: true})
		return html, false, err
	}

	runes := []rune(text)
	v := previewView{Length: len(runes)}
	head, more := headRunes(text, previewChunkRunes)
	v.Preview = head
	if more {
		v.Preview += "..."
	}
	for i := 0; i < len(runes); i += previewChunkRunes {
		end := min(i+previewChunkRunes, len(runes))
		chunk := string(runes[i:end])
		snippet, cut := headRunes(chunk, snippetRunes)
		if cut {
			snippet += "..."
		}
		v.Chunks = append(v.Chunks, previewChunk{Index: len(v.Chunks), Length: end - i, Snippet: snippet})
	}
	html, err := r.exec("preview", v)
	return html, true, err
}

func (r *renderer) singleVideo(res saveVideoResponse) (template.HTML, error) {
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "알 수 없는 오류가 발생했습니다."
		}
		return r.exec("failure", msg)
	}
	msg := "단일 영상 저장이 완료되었습니다."
	if res.Data != nil && res.Data.Message != "" {
		msg = res.Data.Message
	}
	return r.exec("single_video", msg)
}

type semanticView struct {
	Method string
	Result string
}

func (r *renderer) semantic(res saveVideoResponse, method string) (template.HTML, error) {
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "의미 기반 청킹 저장에 실패했습니다."
		}
		return r.exec("failure", msg)
	}
	// the backend reports the method it actually used
	if res.Data != nil && res.Data.ChunkMethod != "" {
		method = res.Data.ChunkMethod
	}
	name, ok := methodNames[method]
	if !ok {
		name = method
	}
	v := semanticView{Method: name}
	if res.Data != nil {
		v.Result = res.Data.Message
	}
	return r.exec("semantic", v)
}

type strategyView struct {
	Title  string
	Count  int
	Avg    int
	Sample string
}

func strategyOf(title string, s core.ChunkStats) strategyView {
	v := strategyView{
		Title:  title,
		Count:  s.ChunkCount,
		Avg:    int(math.Round(s.AvgChunkLength)),
		Sample: "샘플 없음",
	}
	if len(s.SampleChunks) > 0 && s.SampleChunks[0] != "" {
		v.Sample, _ = headRunes(s.SampleChunks[0], snippetRunes)
	}
	return v
}

func (r *renderer) compare(res compareResponse) (template.HTML, error) {
	if !res.Success || res.Data == nil {
		msg := res.Error
		if msg == "" {
			msg = "청킹 방법 비교에 실패했습니다."
		}
		return r.exec("failure", msg)
	}
	d := res.Data
	return r.exec("compare", []strategyView{
		strategyOf(methodNames[core.ChunkBasic], d.Basic),
		strategyOf(methodNames[core.ChunkSemantic], d.Semantic),
		strategyOf(methodNames[core.ChunkCooking], d.Cooking),
	})
}
