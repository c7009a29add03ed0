package processors

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/time/rate"

	"youtubeSearch/core"
	"youtubeSearch/storage"
)

// stepCues open a new step in a recipe.
var stepCues = []string{
	"재료", "먼저", "그다음", "다음", "마지막",
	"ingredients", "first", "next", "then", "finally", "step",
}

// TopicSegmentator is the cooking-oriented chunker. Unlike SemanticChunker
// it keeps sentence order and cuts where the topic shifts between adjacent
// sentences, where a recipe step starts, or where a chunk grows too long.
// Every embedded sentence ends up in exactly one chunk.
type TopicSegmentator struct {
	embedder  storage.Embedder
	limiter   *rate.Limiter
	threshold float64
	maxRunes  int
}

// NewTopicSegmentator caps chunks at twice chunkSize runes.
func NewTopicSegmentator(emb storage.Embedder, limiter *rate.Limiter, threshold float64, chunkSize int) *TopicSegmentator {
	return &TopicSegmentator{embedder: emb, limiter: limiter, threshold: threshold, maxRunes: 2 * chunkSize}
}

// Chunk returns chunks without embeddings; their text is embedded as a whole
// when stored.
func (ts *TopicSegmentator) Chunk(ctx context.Context, text string) ([]core.Chunk, error) {
	sentences := SplitSentences(text)
	if len(sentences) < 2 {
		return nil, ErrTooFewSentences
	}
	embedded, err := embedSentences(ctx, ts.embedder, ts.limiter, sentences)
	if err != nil {
		return nil, err
	}
	if len(embedded) < 2 {
		return nil, ErrTooFewSentences
	}

	vecs := make([][]float32, len(embedded))
	for i, s := range embedded {
		vecs[i] = s.vec
	}
	boundaries := map[int]bool{}
	for _, b := range ts.findTopicBoundaries(vecs, ts.threshold) {
		boundaries[b] = true
	}

	var (
		chunks  []core.Chunk
		current []string
		size    int
	)
	// A piece shorter than minChunkRunes is not emitted on its own: at a cut
	// it carries into the next chunk, at the end it joins the previous one.
	flush := func(last bool) {
		joined := strings.TrimSpace(strings.Join(current, " "))
		if runeLen(joined) < minChunkRunes {
			if !last {
				return
			}
			if len(chunks) > 0 {
				prev := &chunks[len(chunks)-1]
				prev.Text += " " + joined
				current, size = nil, 0
				return
			}
		}
		chunks = append(chunks, core.Chunk{Text: joined})
		current, size = nil, 0
	}
	for i, s := range embedded {
		n := runeLen(s.text)
		if len(current) > 0 && (boundaries[i] || startsStep(s.text) || (ts.maxRunes > 0 && size+n > ts.maxRunes)) {
			flush(false)
		}
		current = append(current, s.text)
		size += n + 1
	}
	if len(current) > 0 {
		flush(true)
	}

	slog.Debug("topic segmentation done",
		slog.Int("sentences", len(embedded)), slog.Int("boundaries", len(boundaries)), slog.Int("chunks", len(chunks)))
	return chunks, nil
}

// findTopicBoundaries returns the indexes whose similarity to the previous
// sentence drops below threshold.
func (ts *TopicSegmentator) findTopicBoundaries(embeddings [][]float32, threshold float64) []int {
	var boundaries []int
	for i := 1; i < len(embeddings); i++ {
		if storage.CosineSimilarity(embeddings[i-1], embeddings[i]) < threshold {
			boundaries = append(boundaries, i)
		}
	}
	return boundaries
}

// startsStep reports whether the sentence opens with a step cue. Korean cues
// match as prefixes (particles attach to them), English ones as whole words.
func startsStep(sentence string) bool {
	fields := strings.Fields(strings.ToLower(sentence))
	if len(fields) == 0 {
		return false
	}
	first := strings.TrimRightFunc(fields[0], func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
	for _, cue := range stepCues {
		if isASCII(cue) {
			if first == cue {
				return true
			}
		} else if strings.HasPrefix(first, cue) {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
