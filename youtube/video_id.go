package youtube

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"youtubeSearch/core"
)

var videoIDRe = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`)

// ExtractVideoID returns the 11 character id from a watch, short or embed URL.
func ExtractVideoID(rawURL string) (string, error) {
	m := videoIDRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidURL, rawURL)
	}
	return m[1], nil
}

func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

func DefaultThumbnail(videoID string) string {
	return "https://img.youtube.com/vi/" + videoID + "/mqdefault.jpg"
}

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?T?(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// FormatISODuration turns an ISO-8601 duration (PT1H2M3S) into H:MM:SS or M:SS.
// Unparseable input is returned unchanged.
func FormatISODuration(iso string) string {
	m := isoDurationRe.FindStringSubmatch(iso)
	if m == nil || iso == "P" || iso == "PT" {
		return iso
	}
	atoi := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	total := atoi(m[1])*86400 + atoi(m[2])*3600 + atoi(m[3])*60 + atoi(m[4])
	return FormatSeconds(total)
}

func FormatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// parseCount reads a decimal count; empty or malformed values yield nil.
func parseCount(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
