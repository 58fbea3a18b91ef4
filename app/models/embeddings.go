package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// EmbedTexts returns one vector per input, in input order. Inputs are sent in
// batches of at most the configured batch size.
func (mc *LLMClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if mc.embeddingsModel == "" {
		return nil, errors.New("embeddings model is not configured")
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += mc.batchSize {
		end := min(start+mc.batchSize, len(texts))
		batch := texts[start:end]

		body, err := mc.postWithRetry(ctx, embeddingEndpoint, embeddingRequestPayload{
			Model: mc.embeddingsModel,
			Input: batch,
		})
		if err != nil {
			return nil, err
		}

		var resp embeddingResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("parse embeddings json: %v: %w", err, ErrProviderUnavailable)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs: %w",
				len(resp.Data), len(batch), ErrProviderUnavailable)
		}

		vecs := make([][]float32, len(batch))
		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(batch) || vecs[item.Index] != nil {
				return nil, fmt.Errorf("embeddings: bad item index %d: %w", item.Index, ErrProviderUnavailable)
			}
			vecs[item.Index] = item.Embedding
		}
		out = append(out, vecs...)
	}

	return out, nil
}

// EmbedText embeds a single text, caching the vector. Embeddings are
// deterministic per model, so the cache never goes stale.
func (mc *LLMClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if v, ok := mc.cache.Load(text); ok {
		if emb, ok2 := v.([]float32); ok2 {
			return emb, nil
		}
	}

	vecs, err := mc.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	mc.cache.Store(text, vecs[0])
	return vecs[0], nil
}
