// Package webui renders the browser console. Each action reads one input,
// posts it once to the JSON API and renders the response into its own
// result container.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"

	"youtubeSearch/core"
)

var ErrUnknownAction = errors.New("unknown console action")

const (
	promptQuery   = "검색어를 입력해주세요."
	promptVideo   = "YouTube 영상 URL을 입력해주세요."
	promptChannel = "채널 ID를 입력해주세요."
)

type action struct {
	name        string
	panel       string // result container id
	title       string
	placeholder string
	button      string
	prompt      string // shown instead of calling the API on empty input
	failure     string // shown when the request or decode fails
	methods     bool
	do          func(ctx context.Context, c *Console, input, method string) (template.HTML, error)
}

var actions = []action{
	{
		name: "search", panel: "searchResult", title: "유사도 검색",
		placeholder: "찾고 싶은 내용을 입력하세요", button: "검색", prompt: promptQuery,
		failure: "검색 중 오류가 발생했습니다.",
		do: func(ctx context.Context, c *Console, input, _ string) (template.HTML, error) {
			var res searchResponse
			if err := c.api.Post(ctx, "/api/search", core.SearchRequest{Query: input}, &res); err != nil {
				return "", err
			}
			return c.render.search(res)
		},
	},
	{
		name: "youtube-search", panel: "youtubeSearchResult", title: "YouTube 검색",
		placeholder: "YouTube 검색어", button: "검색", prompt: promptQuery,
		failure: "YouTube 검색 중 오류가 발생했습니다.",
		do: func(ctx context.Context, c *Console, input, _ string) (template.HTML, error) {
			var raw json.RawMessage
			if err := c.api.Post(ctx, "/api/youtube/search", core.SearchRequest{Query: input}, &raw); err != nil {
				return "", err
			}
			// anything but a list renders as "no results"
			var videos []core.VideoInfo
			if json.Unmarshal(raw, &videos) != nil {
				videos = nil
			}
			return c.render.videoList(videos)
		},
	},
	{
		name: "channel-info", panel: "channelResult", title: "채널 정보",
		placeholder: "YouTube 영상 URL", button: "가져오기", prompt: promptVideo,
		failure: "채널 정보 가져오기 중 오류가 발생했습니다.",
		do: func(ctx context.Context, c *Console, input, _ string) (template.HTML, error) {
			var res channelResponse
			if err := c.api.Post(ctx, "/api/channel/info", core.VideoURLRequest{VideoURL: input}, &res); err != nil {
				return "", err
			}
			return c.render.channel(res)
		},
	},
	{
		name: "transcript", panel: "transcript-result", title: "자막 가져오기",
		placeholder: "YouTube 영상 URL", button: "가져오기", prompt: promptVideo,
		failure: "자막 가져오기 중 오류가 발생했습니다.",
		do: func(ctx context.Context, c *Console, input, _ string) (template.HTML, error) {
			var res core.TranscriptResponse
			if err := c.api.Post(ctx, "/api/transcript", core.TranscriptRequest{URL: input}, &res); err != nil {
				return "", err
			}
			return c.render.transcript(res, input)
		},
	},
	{
		name: "save-channel", panel: "saveChannelResult", title: "채널 저장",
		placeholder: "채널 ID (UC...)", button: "저장", prompt: promptChannel,
		failure: "채널 저장 중 오류가 발생했습니다.",
		do: func(ctx context.Context, c *Console, input, _ string) (template.HTML, error) {
			var res core.ChannelSaveResponse
			if err := c.api.Post(ctx, "/api/channel/save", core.ChannelSaveRequest{ChannelID: input}, &res); err != nil {
				return "", err
			}
			return c.render.saveChannel(res)
		},
	},
	{
		name: "preview", panel: "preview-result", title: "단일 영상 저장",
		placeholder: "YouTube 영상 URL", button: "자막 미리보기", prompt: promptVideo,
		failure: "자막 미리보기 중 오류가 발생했습니다.",
		do: func(ctx context.Context, c *Console, input, _ string) (template.HTML, error) {
			var res core.TranscriptResponse
			if err := c.api.Post(ctx, "/api/transcript", core.TranscriptRequest{URL: input}, &res); err != nil {
				return "", err
			}
			out, show, err := c.render.preview(res)
			c.page.setSaveSection(show, input)
			return out, err
		},
	},
	{
		name: "save-video", panel: "single-video-result", title: "임베딩 저장",
		placeholder: "YouTube 영상 URL", button: "저장", prompt: promptVideo,
		failure: "단일 영상 저장 중 오류가 발생했습니다.",
		do: func(ctx context.Context, c *Console, input, _ string) (template.HTML, error) {
			var res saveVideoResponse
			if err := c.api.Post(ctx, "/api/save-single-video", core.VideoURLRequest{VideoURL: input}, &res); err != nil {
				return "", err
			}
			return c.render.singleVideo(res)
		},
	},
	{
		name: "save-semantic", panel: "semantic-result", title: "의미 기반 청킹 저장",
		placeholder: "YouTube 영상 URL", button: "저장", prompt: promptVideo, methods: true,
		failure: "의미 기반 청킹 저장 중 오류가 발생했습니다.",
		do: func(ctx context.Context, c *Console, input, method string) (template.HTML, error) {
			if method == "" {
				method = core.ChunkSemantic
			}
			var res saveVideoResponse
			req := core.VideoURLRequest{VideoURL: input, ChunkMethod: method}
			if err := c.api.Post(ctx, "/api/save-single-video-semantic", req, &res); err != nil {
				return "", err
			}
			return c.render.semantic(res, method)
		},
	},
	{
		name: "compare", panel: "compare-result", title: "청킹 방법 비교",
		placeholder: "YouTube 영상 URL", button: "비교", prompt: promptVideo,
		failure: "청킹 방법 비교 중 오류가 발생했습니다.",
		do: func(ctx context.Context, c *Console, input, _ string) (template.HTML, error) {
			var res compareResponse
			if err := c.api.Post(ctx, "/api/compare-chunking", core.VideoURLRequest{VideoURL: input}, &res); err != nil {
				return "", err
			}
			return c.render.compare(res)
		},
	},
}

// Actions lists the action names in page order.
func Actions() []string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.name
	}
	return names
}

func findAction(name string) (*action, bool) {
	for i := range actions {
		if actions[i].name == name {
			return &actions[i], true
		}
	}
	return nil, false
}

// Outcome is what one action left in its container. Alert is set instead
// of HTML when the input was empty and nothing was sent.
type Outcome struct {
	Panel string
	HTML  template.HTML
	Alert string
}

type Console struct {
	api    *APIClient
	page   *Page
	tmpl   *template.Template
	render *renderer
	min    *minify.M
}

func NewConsole(api *APIClient) (*Console, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	return &Console{
		api:    api,
		page:   NewPage(),
		tmpl:   tmpl,
		render: &renderer{tmpl: tmpl},
		min:    m,
	}, nil
}

// Page exposes the container state.
func (c *Console) Page() *Page { return c.page }

// Run performs one action against the API and stores the rendered result
// in the action's container. The loading flag is cleared on every path.
func (c *Console) Run(ctx context.Context, name, input, method string) (Outcome, error) {
	a, ok := findAction(name)
	if !ok {
		return Outcome{}, ErrUnknownAction
	}
	input = strings.TrimSpace(input)
	if input == "" {
		c.page.setAlert(a.prompt)
		return Outcome{Panel: a.panel, Alert: a.prompt}, nil
	}

	c.page.showLoading(a.panel)
	defer c.page.hideLoading(a.panel)
	c.page.clear(a.panel)

	out, err := a.do(ctx, c, input, strings.TrimSpace(method))
	if err != nil {
		slog.Warn("console action failed", slog.String("action", a.name), slog.Any("error", err))
		if a.name == "preview" {
			c.page.setSaveSection(false, "")
			out, err = c.render.exec("preview", previewView{Error: a.failure})
		} else {
			out, err = c.render.errorBox(a.failure)
		}
		if err != nil {
			return Outcome{}, err
		}
	}
	c.page.render(a.panel, out)
	return Outcome{Panel: a.panel, HTML: out}, nil
}

type panelView struct {
	ID          string
	SectionID   string
	Action      string
	Title       string
	Placeholder string
	Button      string
	Prompt      string
	Value       string
	Methods     bool
	Hidden      bool
	Panel       Panel
}

type indexView struct {
	Alert  string
	Panels []panelView
}

func (c *Console) indexView() indexView {
	saveVisible, saveURL := c.page.SaveSection()
	v := indexView{Alert: c.page.takeAlert()}
	for _, a := range actions {
		pv := panelView{
			ID:          a.panel,
			Action:      a.name,
			Title:       a.title,
			Placeholder: a.placeholder,
			Button:      a.button,
			Prompt:      a.prompt,
			Methods:     a.methods,
			Panel:       c.page.Panel(a.panel),
		}
		if a.name == "save-video" {
			pv.SectionID = "save-section"
			pv.Hidden = !saveVisible
			pv.Value = saveURL
		}
		v.Panels = append(v.Panels, pv)
	}
	return v
}

// ServeIndex renders the whole console.
func (c *Console) ServeIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	mw := c.min.Writer("text/html", w)
	defer mw.Close()
	if err := c.tmpl.ExecuteTemplate(mw, "index", c.indexView()); err != nil {
		slog.Error("render console", slog.Any("error", err))
	}
}

// ServeAction runs the named action with the form fields input and
// chunk_method. Script-driven requests get the container fragment back;
// plain form posts are redirected to the page.
func (c *Console) ServeAction(w http.ResponseWriter, r *http.Request, name string) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	out, err := c.Run(r.Context(), name, r.FormValue("input"), r.FormValue("chunk_method"))
	if errors.Is(err, ErrUnknownAction) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if r.Header.Get("X-Console-Fragment") == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if out.Alert != "" {
		c.page.takeAlert()
		if err := c.tmpl.ExecuteTemplate(w, "error", out.Alert); err != nil {
			slog.Error("render console alert", slog.String("action", name), slog.Any("error", err))
		}
		return
	}
	if _, err := w.Write([]byte(out.HTML)); err != nil {
		slog.Debug("write console fragment", slog.String("action", name), slog.Any("error", err))
	}
}
