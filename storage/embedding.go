package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"youtubeSearch/config"
	"youtubeSearch/core"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder calls an OpenAI compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	dim    int
}

func NewOpenAIEmbedder(cfg *config.Config) (*OpenAIEmbedder, error) {
	if !cfg.HasValidAPI() {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is not set", core.ErrMissingConfig)
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.EmbeddingModel,
		dim:    cfg.EmbeddingDim,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, core.ErrEmptyInput
	}
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	}
	// only the v3 models accept a dimensions override
	if strings.HasPrefix(e.model, "text-embedding-3") && e.dim > 0 {
		req.Dimensions = e.dim
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embedding API failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embeddings returned")
	}
	vec := resp.Data[0].Embedding
	// the stores are created for a fixed vector size
	if e.dim > 0 && len(vec) != e.dim {
		return nil, fmt.Errorf("model %s returned %d dims, EMBEDDING_DIM is %d", e.model, len(vec), e.dim)
	}
	return vec, nil
}

// CosineSimilarity returns 0 for empty or mismatched vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
