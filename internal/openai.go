package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const embedBatchSize = 64

// OpenAIEmbedder talks to an OpenAI-compatible embeddings endpoint. The base
// URL is configurable, so any service speaking the same wire format works.
type OpenAIEmbedder struct {
	client  *openai.Client
	model   string
	timeout time.Duration

	mu  sync.Mutex
	dim int // pinned on first response when not configured
}

var _ Embedder = (*OpenAIEmbedder)(nil)

func NewOpenAIEmbedder(cfg ServiceConfig, dimension int) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedder: api key is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		dim:     dimension,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedMany embeds texts in request batches, preserving input order.
func (e *OpenAIEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vecs := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, batch...)
	}
	return vecs, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, classifyEmbeddingError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrEmbeddingService, len(resp.Data), len(texts))
	}

	// The API reports positions explicitly; order by them rather than
	// trusting response order.
	sort.Slice(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})

	vecs := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vec := make([]float32, len(data.Embedding))
		for j := range data.Embedding {
			vec[j] = float32(data.Embedding[j])
		}
		Normalize(vec)

		if err := e.checkDimension(len(vec)); err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

// checkDimension pins the dimension on first use and rejects any drift
// afterwards. Mixed-dimension vectors must fail fast, never pad.
func (e *OpenAIEmbedder) checkDimension(got int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dim == 0 {
		e.dim = got
		return nil
	}
	if got != e.dim {
		return fmt.Errorf("%w: dimension %d does not match model dimension %d", ErrEmbeddingService, got, e.dim)
	}
	return nil
}

func (e *OpenAIEmbedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dim
}

func (e *OpenAIEmbedder) Model() string { return e.model }

func classifyEmbeddingError(err error) error {
	// Caller cancellation is not a service failure.
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrEmbeddingService, err)
}
