package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"youtubeSearch/core"
)

const playerResponseMarker = "ytInitialPlayerResponse"

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	VideoDetails struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		LengthSeconds string `json:"lengthSeconds"`
	} `json:"videoDetails"`
}

type timedText struct {
	Lines []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
}

// Transcript scrapes the watch page for caption tracks and returns the
// plain text of the best track, along with the title and duration shown on
// that page.
func (c *Client) Transcript(ctx context.Context, videoID string) (*core.TranscriptRecord, error) {
	pr, err := c.playerResponse(ctx, videoID)
	if err != nil {
		return nil, err
	}

	rec := &core.TranscriptRecord{
		VideoID: videoID,
		Title:   pr.VideoDetails.Title,
	}
	if secs, err := strconv.Atoi(pr.VideoDetails.LengthSeconds); err == nil {
		rec.Duration = FormatSeconds(secs)
	}

	if pr.Captions == nil || len(pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks) == 0 {
		if pr.PlayabilityStatus != nil && pr.PlayabilityStatus.Reason != "" {
			return nil, fmt.Errorf("%w: %s", core.ErrNoTranscript, pr.PlayabilityStatus.Reason)
		}
		return nil, fmt.Errorf("%w: no caption tracks", core.ErrNoTranscript)
	}

	track := pickTrack(pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, c.langs)
	text, err := c.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty caption track", core.ErrNoTranscript)
	}
	rec.Transcript = text
	return rec, nil
}

func (c *Client) playerResponse(ctx context.Context, videoID string) (*playerResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.siteURL+"/watch?v="+videoID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	req.Header.Set("Accept-Language", "ko,en;q=0.9")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("watch page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("parse watch page: %w", err)
	}

	var raw []byte
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := s.Text()
		idx := strings.Index(src, playerResponseMarker)
		if idx < 0 {
			return true
		}
		rest := src[idx+len(playerResponseMarker):]
		brace := strings.IndexByte(rest, '{')
		if brace < 0 {
			return true
		}
		raw = extractJSON([]byte(rest[brace:]))
		return raw == nil
	})
	if raw == nil {
		return nil, fmt.Errorf("%w: player response not found in watch page", core.ErrNoTranscript)
	}

	var pr playerResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return nil, fmt.Errorf("decode player response: %w", err)
	}
	return &pr, nil
}

// pickTrack prefers a manual track in a preferred language, then an
// auto-generated one, then the first track.
func pickTrack(tracks []captionTrack, langs []string) captionTrack {
	for _, lang := range langs {
		for _, t := range tracks {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t
			}
		}
	}
	for _, lang := range langs {
		for _, t := range tracks {
			if t.LanguageCode == lang {
				return t
			}
		}
	}
	return tracks[0]
}

func (c *Client) fetchTimedText(ctx context.Context, baseURL string) (string, error) {
	if baseURL == "" {
		return "", errors.New("caption track has no URL")
	}
	if strings.HasPrefix(baseURL, "/") {
		baseURL = c.siteURL + baseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch timedtext: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return "", err
	}
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext XML: %w", err)
	}

	var sb strings.Builder
	for _, line := range tt.Lines {
		text := strings.Join(strings.Fields(html.UnescapeString(line.Text)), " ")
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// extractJSON returns the balanced JSON object at the start of b.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr, escaped := false, false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
