package models

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// GroundedInstructions is the default system prompt when retrieved context is
// available. Answers must stay inside the context blocks.
const GroundedInstructions = `You answer questions about a document the user uploaded.
Answer ONLY from the context blocks below. Each block starts with a
[source: <document> #<chunk>] marker; reference those markers when you use a block.
If the context does not contain the answer, say the document does not cover it.
Do not invent information that is not in the context.`

// NoContextInstructions is used when retrieval produced nothing within the
// context budget: the model must say so rather than fake a grounded answer.
const NoContextInstructions = `No relevant passages were found in the user's document for this
question. Say so explicitly, then answer from general knowledge if you can,
making clear the answer is not based on the document.`

const contextHeader = "\n\nCONTEXT FROM DOCUMENTS:\n"

// Generate asks the chat model for an answer to query. system overrides the
// default grounded instructions; an empty contextBlock switches to the
// no-context instructions regardless.
func (mc *LLMClient) Generate(ctx context.Context, system, contextBlock, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("empty query: %w", ErrInvalidRequest)
	}

	if system == "" {
		system = GroundedInstructions
	}
	if contextBlock == "" {
		system = NoContextInstructions
	} else {
		system += contextHeader + contextBlock
	}

	payload := requestPayload{
		Model: mc.model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: query},
		},
		Temperature: 0.7,
		MaxTokens:   -1,
	}

	body, err := mc.postWithRetry(ctx, chatEndpoint, payload)
	if err != nil {
		return "", err
	}

	var resp ResponseLLM
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse completion json: %v: %w", err, ErrProviderUnavailable)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in completion response: %w", ErrProviderUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}
