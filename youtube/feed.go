package youtube

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"youtubeSearch/core"
)

type atomFeed struct {
	Title   string      `xml:"title"`
	Entries []feedEntry `xml:"entry"`
}

type feedEntry struct {
	ChannelID string `xml:"http://www.youtube.com/xml/schemas/2015 channelId"`
	VideoID   string `xml:"http://www.youtube.com/xml/schemas/2015 videoId"`
	Title     string `xml:"title"`
	Link      struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Published string `xml:"published"`

	Media struct {
		Thumbnail struct {
			URL string `xml:"url,attr"`
		} `xml:"thumbnail"`
		Community struct {
			Statistics struct {
				Views string `xml:"views,attr"`
			} `xml:"statistics"`
		} `xml:"community"`
	} `xml:"http://search.yahoo.com/mrss/ group"`

	Author struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

// FeedVideos reads the channel's public Atom feed, which needs no API key.
func (c *Client) FeedVideos(ctx context.Context, channelID string, limit int) ([]core.VideoInfo, error) {
	feedURL := c.siteURL + "/feeds/videos.xml?channel_id=" + url.QueryEscape(channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("channel feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("channel feed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("channel feed: read: %w", err)
	}
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("channel feed: parse: %w", err)
	}

	out := make([]core.VideoInfo, 0, min(limit, len(feed.Entries)))
	for _, e := range feed.Entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		thumb := e.Media.Thumbnail.URL
		if thumb == "" {
			thumb = DefaultThumbnail(e.VideoID)
		}
		link := e.Link.Href
		if link == "" {
			link = WatchURL(e.VideoID)
		}
		out = append(out, core.VideoInfo{
			VideoID:       e.VideoID,
			Title:         e.Title,
			PublishedDate: e.Published,
			ChannelName:   e.Author.Name,
			ChannelID:     e.ChannelID,
			ThumbnailURL:  thumb,
			ViewCount:     parseCount(e.Media.Community.Statistics.Views),
			URL:           link,
		})
	}
	return out, nil
}
