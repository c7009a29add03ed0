package processors

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrTooFewSentences is returned by the embedding-based chunkers when the
// transcript does not yield at least two usable sentences.
var ErrTooFewSentences = errors.New("문장이 부족합니다")

// minChunkRunes is the shortest chunk the semantic chunkers keep.
const minChunkRunes = 20

var sentenceSep = regexp.MustCompile(`[.!?,]+`)

// ChunkFixed cuts text into consecutive windows of size runes. The last
// window may be shorter.
func ChunkFixed(text string, size int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if size <= 0 || len(runes) <= size {
		return []string{text}
	}
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}

// SplitSentences splits on runs of . ! ? and commas, dropping pieces
// shorter than three runes.
func SplitSentences(text string) []string {
	var out []string
	for _, s := range sentenceSep.Split(text, -1) {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) >= 3 {
			out = append(out, s)
		}
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
