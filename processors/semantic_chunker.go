package processors

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"youtubeSearch/core"
	"youtubeSearch/storage"
)

// embeddedSentence is a sentence with its vector.
type embeddedSentence struct {
	text string
	vec  []float32
}

// embedSentences embeds every sentence, skipping the ones that fail.
func embedSentences(ctx context.Context, emb storage.Embedder, limiter *rate.Limiter, sentences []string) ([]embeddedSentence, error) {
	out := make([]embeddedSentence, 0, len(sentences))
	for i, s := range sentences {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		vec, err := emb.Embed(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Debug("sentence embedding failed", slog.Int("sentence", i), slog.Any("error", err))
			continue
		}
		out = append(out, embeddedSentence{text: s, vec: vec})
	}
	return out, nil
}

// SemanticChunker groups sentences by meaning regardless of where they
// appear: each unused sentence pulls in every later unused sentence whose
// similarity to it reaches the threshold.
type SemanticChunker struct {
	embedder  storage.Embedder
	limiter   *rate.Limiter
	threshold float64
}

func NewSemanticChunker(emb storage.Embedder, limiter *rate.Limiter, threshold float64) *SemanticChunker {
	return &SemanticChunker{embedder: emb, limiter: limiter, threshold: threshold}
}

// Chunk returns chunks carrying the embedding of their first sentence.
func (c *SemanticChunker) Chunk(ctx context.Context, text string) ([]core.Chunk, error) {
	sentences := SplitSentences(text)
	if len(sentences) < 2 {
		return nil, ErrTooFewSentences
	}
	embedded, err := embedSentences(ctx, c.embedder, c.limiter, sentences)
	if err != nil {
		return nil, err
	}
	if len(embedded) < 2 {
		return nil, ErrTooFewSentences
	}

	used := make([]bool, len(embedded))
	var chunks []core.Chunk
	for i := range embedded {
		if used[i] {
			continue
		}
		used[i] = true
		cluster := []string{embedded[i].text}
		for j := i + 1; j < len(embedded); j++ {
			if used[j] {
				continue
			}
			if storage.CosineSimilarity(embedded[i].vec, embedded[j].vec) >= c.threshold {
				cluster = append(cluster, embedded[j].text)
				used[j] = true
			}
		}
		joined := strings.TrimSpace(strings.Join(cluster, " "))
		if runeLen(joined) >= minChunkRunes {
			chunks = append(chunks, core.Chunk{Text: joined, Embedding: embedded[i].vec})
		}
	}
	slog.Debug("semantic chunking done",
		slog.Int("sentences", len(embedded)), slog.Int("chunks", len(chunks)))
	return chunks, nil
}
