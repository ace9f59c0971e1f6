// Package vector embeds query text through an external provider and performs
// nearest-neighbor similarity search against a pgvector-indexed table.
package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/quarryhq/quarry/internal/fault"
	"github.com/quarryhq/quarry/internal/log"
)

// DefaultEmbeddingModel matches the model the vector tables were populated
// with; querying with a different model's embeddings gives meaningless
// distances.
const DefaultEmbeddingModel = "text-embedding-3-large"

// Embedder turns text into an embedding vector. Defined on the consumer side
// so tests substitute a deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderConfig holds embedding-provider settings.
type EmbedderConfig struct {
	// APIKey authenticates against the provider.
	APIKey string

	// BaseURL overrides the API endpoint for OpenAI-compatible providers.
	BaseURL string

	// Model is the embedding model. Empty means DefaultEmbeddingModel.
	Model string

	// RateLimit and RateBurst throttle provider calls. A zero RateLimit
	// disables throttling.
	RateLimit rate.Limit
	RateBurst int
}

// OpenAIEmbedder is the production Embedder, backed by the OpenAI embeddings
// API (or any compatible endpoint via BaseURL).
type OpenAIEmbedder struct {
	client  openai.Client
	model   string
	limiter *rate.Limiter
	logger  log.Logger
}

// NewOpenAIEmbedder creates an embedder from cfg.
func NewOpenAIEmbedder(cfg EmbedderConfig, logger log.Logger) *OpenAIEmbedder {
	if logger == nil {
		logger = log.NewNop()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(cfg.RateLimit, burst)
	}

	return &OpenAIEmbedder{
		client:  openai.NewClient(opts...),
		model:   model,
		limiter: limiter,
		logger:  logger,
	}
}

// Embed computes the embedding of text in a single blocking provider call.
// Newlines are replaced with spaces first; embedding models treat them as
// token boundaries and drift otherwise.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.ReplaceAll(text, "\n", " ")

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for embedding rate limit: %w", err)
		}
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fault.Wrap(fault.KindBackend, err, "generating embedding")
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fault.New(fault.KindBackend, "embedding provider returned no data")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}

	e.logger.Debug("embedded query", "model", e.model, "dimensions", len(vec))
	return vec, nil
}
