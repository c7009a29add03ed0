// Package youtube talks to the YouTube Data API v3, the public channel feed
// and the watch page caption tracks.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"youtubeSearch/config"
	"youtubeSearch/core"
)

const (
	searchMaxResults  = 20
	recentVideosLimit = 5
	channelPageSize   = 50
)

type Client struct {
	apiKey  string
	apiURL  string
	siteURL string
	langs   []string
	http    *http.Client
}

type Option func(*Client)

// WithSiteURL points watch page and feed requests at another host (tests).
func WithSiteURL(u string) Option {
	return func(c *Client) { c.siteURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLanguages sets the caption language preference order.
func WithLanguages(langs ...string) Option {
	return func(c *Client) { c.langs = langs }
}

func NewClient(apiKey, apiURL string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		apiURL:  strings.TrimRight(apiURL, "/"),
		siteURL: "https://www.youtube.com",
		langs:   []string{"ko", "en"},
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func NewClientFromConfig(cfg *config.Config) *Client {
	return NewClient(cfg.YouTubeAPIKey, cfg.YouTubeAPIURL)
}

// ---------------- Data API response shapes ----------------

type thumbnail struct {
	URL string `json:"url"`
}

type snippet struct {
	Title        string `json:"title"`
	PublishedAt  string `json:"publishedAt"`
	ChannelID    string `json:"channelId"`
	ChannelTitle string `json:"channelTitle"`
	Thumbnails   struct {
		Default *thumbnail `json:"default"`
		Medium  *thumbnail `json:"medium"`
		High    *thumbnail `json:"high"`
	} `json:"thumbnails"`
}

func (s snippet) bestThumbnail(videoID string) string {
	for _, t := range []*thumbnail{s.Thumbnails.High, s.Thumbnails.Medium, s.Thumbnails.Default} {
		if t != nil && t.URL != "" {
			return t.URL
		}
	}
	return DefaultThumbnail(videoID)
}

type searchResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet snippet `json:"snippet"`
	} `json:"items"`
}

type videoItem struct {
	ID         string  `json:"id"`
	Snippet    snippet `json:"snippet"`
	Statistics struct {
		ViewCount string `json:"viewCount"`
		LikeCount string `json:"likeCount"`
	} `json:"statistics"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}

type videosResponse struct {
	Items []videoItem `json:"items"`
}

type channelsResponse struct {
	Items []struct {
		ID         string  `json:"id"`
		Snippet    snippet `json:"snippet"`
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
			VideoCount      string `json:"videoCount"`
		} `json:"statistics"`
	} `json:"items"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (v videoItem) toVideoInfo() core.VideoInfo {
	return core.VideoInfo{
		VideoID:       v.ID,
		Title:         v.Snippet.Title,
		PublishedDate: v.Snippet.PublishedAt,
		ChannelName:   v.Snippet.ChannelTitle,
		ChannelID:     v.Snippet.ChannelID,
		ThumbnailURL:  v.Snippet.bestThumbnail(v.ID),
		ViewCount:     parseCount(v.Statistics.ViewCount),
		LikeCount:     parseCount(v.Statistics.LikeCount),
		URL:           WatchURL(v.ID),
	}
}

// getJSON calls one Data API resource and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, resource string, params url.Values, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("%w: YOUTUBE_API_KEY is not set", core.ErrMissingConfig)
	}
	params.Set("key", c.apiKey)
	endpoint := c.apiURL + "/" + resource + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("youtube %s: %w", resource, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return fmt.Errorf("youtube %s: read body: %w", resource, err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("youtube %s: %d %s", resource, resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("youtube %s: status %d", resource, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("youtube %s: decode: %w", resource, err)
	}
	return nil
}

func (c *Client) videos(ctx context.Context, part string, ids []string) ([]videoItem, error) {
	var items []videoItem
	for start := 0; start < len(ids); start += channelPageSize {
		end := min(start+channelPageSize, len(ids))
		var resp videosResponse
		params := url.Values{"part": {part}, "id": {strings.Join(ids[start:end], ",")}}
		if err := c.getJSON(ctx, "videos", params, &resp); err != nil {
			return nil, err
		}
		items = append(items, resp.Items...)
	}
	return items, nil
}

// SearchVideos runs a keyword search and returns up to 20 videos with statistics.
func (c *Client) SearchVideos(ctx context.Context, query string) ([]core.VideoInfo, error) {
	var sr searchResponse
	params := url.Values{
		"part":       {"snippet"},
		"q":          {query},
		"type":       {"video"},
		"maxResults": {fmt.Sprint(searchMaxResults)},
	}
	if err := c.getJSON(ctx, "search", params, &sr); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(sr.Items))
	for _, it := range sr.Items {
		if it.ID.VideoID != "" {
			ids = append(ids, it.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		return []core.VideoInfo{}, nil
	}

	items, err := c.videos(ctx, "snippet,statistics", ids)
	if err != nil {
		return nil, err
	}
	out := make([]core.VideoInfo, 0, len(items))
	for _, it := range items {
		out = append(out, it.toVideoInfo())
	}
	return out, nil
}

// ChannelInfo resolves the channel that published videoURL together with its
// most recent uploads.
func (c *Client) ChannelInfo(ctx context.Context, videoURL string) (*core.ChannelInfo, error) {
	videoID, err := ExtractVideoID(videoURL)
	if err != nil {
		return nil, err
	}

	items, err := c.videos(ctx, "snippet,statistics", []string{videoID})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 || items[0].Snippet.ChannelID == "" {
		return nil, fmt.Errorf("%w: Channel ID not found", core.ErrNotFound)
	}
	channelID := items[0].Snippet.ChannelID

	info := &core.ChannelInfo{
		ChannelID:   channelID,
		ChannelName: items[0].Snippet.ChannelTitle,
		ChannelURL:  "https://www.youtube.com/channel/" + channelID,
	}

	var cr channelsResponse
	if err := c.getJSON(ctx, "channels", url.Values{"part": {"snippet,statistics"}, "id": {channelID}}, &cr); err != nil {
		slog.Warn("youtube: channel statistics unavailable", slog.String("channel", channelID), slog.Any("error", err))
	} else if len(cr.Items) > 0 {
		ch := cr.Items[0]
		if ch.Snippet.Title != "" {
			info.ChannelName = ch.Snippet.Title
		}
		if t := ch.Snippet.Thumbnails.High; t != nil {
			info.ChannelThumbnail = t.URL
		} else if t := ch.Snippet.Thumbnails.Default; t != nil {
			info.ChannelThumbnail = t.URL
		}
		info.SubscriberCount = parseCount(ch.Statistics.SubscriberCount)
		info.VideoCount = parseCount(ch.Statistics.VideoCount)
	}

	recent, err := c.recentVideos(ctx, channelID)
	if err != nil || len(recent) == 0 {
		if err != nil {
			slog.Warn("youtube: recent videos via API failed, using feed", slog.String("channel", channelID), slog.Any("error", err))
		}
		recent, err = c.FeedVideos(ctx, channelID, recentVideosLimit)
		if err != nil {
			slog.Warn("youtube: channel feed failed", slog.String("channel", channelID), slog.Any("error", err))
		}
	}
	if recent == nil {
		recent = []core.VideoInfo{}
	}
	info.RecentVideos = recent
	return info, nil
}

func (c *Client) recentVideos(ctx context.Context, channelID string) ([]core.VideoInfo, error) {
	var sr searchResponse
	params := url.Values{
		"part":       {"snippet"},
		"channelId":  {channelID},
		"order":      {"date"},
		"type":       {"video"},
		"maxResults": {fmt.Sprint(recentVideosLimit)},
	}
	if err := c.getJSON(ctx, "search", params, &sr); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(sr.Items))
	for _, it := range sr.Items {
		ids = append(ids, it.ID.VideoID)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	items, err := c.videos(ctx, "snippet,statistics", ids)
	if err != nil {
		return nil, err
	}
	out := make([]core.VideoInfo, 0, len(items))
	for _, it := range items {
		out = append(out, it.toVideoInfo())
	}
	return out, nil
}

// ChannelVideoIDs returns one page of the channel's newest video ids and the
// token of the next page ("" on the last page).
func (c *Client) ChannelVideoIDs(ctx context.Context, channelID, pageToken string) ([]string, string, error) {
	var sr searchResponse
	params := url.Values{
		"part":       {"snippet"},
		"channelId":  {channelID},
		"order":      {"date"},
		"type":       {"video"},
		"maxResults": {fmt.Sprint(channelPageSize)},
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	if err := c.getJSON(ctx, "search", params, &sr); err != nil {
		return nil, "", err
	}
	ids := make([]string, 0, len(sr.Items))
	for _, it := range sr.Items {
		if it.ID.VideoID != "" {
			ids = append(ids, it.ID.VideoID)
		}
	}
	return ids, sr.NextPageToken, nil
}

// VideoDetails fetches title, channel and formatted duration for ids.
func (c *Client) VideoDetails(ctx context.Context, ids []string) ([]core.VideoDetails, error) {
	items, err := c.videos(ctx, "snippet,contentDetails", ids)
	if err != nil {
		return nil, err
	}
	out := make([]core.VideoDetails, 0, len(items))
	for _, it := range items {
		out = append(out, core.VideoDetails{
			ID:           it.ID,
			Title:        it.Snippet.Title,
			Duration:     FormatISODuration(it.ContentDetails.Duration),
			ChannelID:    it.Snippet.ChannelID,
			ChannelTitle: it.Snippet.ChannelTitle,
		})
	}
	return out, nil
}
