// Package provider holds the OpenAI-backed pipeline stages. Both
// adapters sit behind a circuit breaker so a degraded upstream fails
// fast instead of queueing timeouts.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"pipeline_server/core/domain"
	"pipeline_server/pkg/logger"
)

// breakerSettings builds the shared circuit breaker policy: trip on 5
// consecutive failures, or a 60% failure ratio once at least 10
// requests were seen.
func breakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	}
}

// OpenAIEmbedder produces embeddings via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dim    int
	cb     *gobreaker.CircuitBreaker
}

func NewOpenAIEmbedder(apiKey, model string, dim int) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
		dim:    dim,
		cb:     gobreaker.NewCircuitBreaker(breakerSettings("openai-embeddings")),
	}
}

func (e *OpenAIEmbedder) Dimension() int { return e.dim }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.cb.Execute(func() (interface{}, error) {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model:      e.model,
			Input:      []string{text},
			Dimensions: e.dim,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("empty embedding response")
		}
		return resp.Data[0].Embedding, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.EmbeddingFailure{Err: err}
	}

	vec := res.([]float32)
	if len(vec) != e.dim {
		// Provider and index disagree on dimension. Retrying the
		// same deployment cannot fix this.
		return nil, domain.NewDimensionMismatch(e.dim, len(vec))
	}
	return vec, nil
}
