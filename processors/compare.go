package processors

import (
	"context"

	"youtubeSearch/core"
)

// Chunker is implemented by the embedding-based chunkers.
type Chunker interface {
	Chunk(ctx context.Context, text string) ([]core.Chunk, error)
}

// CompareChunking runs all three methods over one transcript. A failing
// method yields an empty entry carrying its error.
func CompareChunking(ctx context.Context, transcript string, chunkSize int, semantic, cooking Chunker) core.CompareResult {
	res := core.CompareResult{
		Basic:            statsOf(ChunkFixed(transcript, chunkSize)),
		TranscriptLength: runeLen(transcript),
	}
	res.Semantic = runChunker(ctx, semantic, transcript)
	res.Cooking = runChunker(ctx, cooking, transcript)
	return res
}

func runChunker(ctx context.Context, c Chunker, text string) core.ChunkStats {
	if c == nil {
		return core.ChunkStats{SampleChunks: []string{}, Error: core.ErrMissingConfig.Error()}
	}
	chunks, err := c.Chunk(ctx, text)
	if err != nil {
		return core.ChunkStats{SampleChunks: []string{}, Error: err.Error()}
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	return statsOf(texts)
}

// statsOf counts chunks, averages their rune length and keeps up to three samples.
func statsOf(chunks []string) core.ChunkStats {
	st := core.ChunkStats{ChunkCount: len(chunks), SampleChunks: []string{}}
	if len(chunks) == 0 {
		return st
	}
	total := 0
	for _, c := range chunks {
		total += runeLen(c)
	}
	st.AvgChunkLength = float64(total) / float64(len(chunks))
	st.SampleChunks = append(st.SampleChunks, chunks[:min(3, len(chunks))]...)
	return st
}
