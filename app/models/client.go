// Package models talks to the OpenAI-compatible embedding and chat-completion
// endpoints of an external model provider.
package models

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"GoDocsAI/app/restclient"
)

const (
	chatEndpoint      = "/v1/chat/completions"
	embeddingEndpoint = "/v1/embeddings"

	defaultBatchSize = 50
	defaultTimeout   = 60 * time.Second
)

// Embedder turns text into fixed-dimension vectors. Vectors for the same text
// and model are stable, so callers may retry freely.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbeddingModel() string
}

// Generator produces an answer grounded in the supplied context block.
type Generator interface {
	Generate(ctx context.Context, system, contextBlock, query string) (string, error)
}

type LLMClient struct {
	restClient      restclient.Interface
	model           string
	embeddingsModel string
	batchSize       int
	timeout         time.Duration
	retry           RetryPolicy
	cache           sync.Map
}

var (
	_ Embedder  = &LLMClient{}
	_ Generator = &LLMClient{}
)

func NewLLMClient(rest restclient.Interface, model, embModel string, policy RetryPolicy, timeout time.Duration, batchSize int) *LLMClient {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &LLMClient{
		restClient:      rest,
		model:           model,
		embeddingsModel: embModel,
		batchSize:       batchSize,
		timeout:         timeout,
		retry:           policy,
	}
}

func (mc *LLMClient) EmbeddingModel() string {
	return mc.embeddingsModel
}

// postWithRetry sends payload to endpoint, retrying transient failures per
// the policy. Every attempt runs under its own wall-clock timeout; an attempt
// that exceeds it is cancelled and counted as failed.
func (mc *LLMClient) postWithRetry(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < mc.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(mc.retry.Backoff(attempt)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, mc.timeout)
		body, status, err := mc.restClient.Post(attemptCtx, endpoint, payload, nil)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			log.Printf("⚠️ %s attempt %d failed: %v", endpoint, attempt+1, err)
			continue
		}

		switch {
		case status == http.StatusOK:
			return body, nil
		case retryableStatus(status):
			lastErr = fmt.Errorf("http %d: %s", status, snippet(body))
			log.Printf("⚠️ %s attempt %d failed: %v", endpoint, attempt+1, lastErr)
		default:
			return nil, fmt.Errorf("%s http %d: %s: %w", endpoint, status, snippet(body), ErrInvalidRequest)
		}
	}

	return nil, fmt.Errorf("%s failed after %d attempts: %v: %w",
		endpoint, mc.retry.MaxAttempts, lastErr, ErrProviderUnavailable)
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
