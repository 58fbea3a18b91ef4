package models

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"GoDocsAI/app/restclient"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func newTestClient(rest restclient.Interface, batchSize int) *LLMClient {
	return NewLLMClient(rest, "test-chat", "test-embed", fastPolicy(), time.Second, batchSize)
}

func embeddingsBody(t *testing.T, vectors map[int][]float32) []byte {
	t.Helper()
	resp := embeddingResponse{Model: "test-embed"}
	for idx, vec := range vectors {
		resp.Data = append(resp.Data, embeddingItem{Index: idx, Embedding: vec})
	}
	body, err := json.Marshal(resp)
	require.NoError(t, err)
	return body
}

func TestEmbedTextsPreservesOrder(t *testing.T) {
	rest := &restclient.MockRestClient{}
	// Items returned out of order must land back at their input positions.
	rest.On("Post", mock.Anything, embeddingEndpoint, mock.Anything, mock.Anything).
		Return(embeddingsBody(t, map[int][]float32{
			2: {3, 0},
			0: {1, 0},
			1: {2, 0},
		}), http.StatusOK, nil).Once()

	mc := newTestClient(rest, 10)
	vecs, err := mc.EmbedTexts(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, []float32{2, 0}, vecs[1])
	assert.Equal(t, []float32{3, 0}, vecs[2])
	rest.AssertExpectations(t)
}

func matchBatch(first string, size int) any {
	return mock.MatchedBy(func(p embeddingRequestPayload) bool {
		return len(p.Input) == size && p.Input[0] == first
	})
}

func TestEmbedTextsBatches(t *testing.T) {
	rest := &restclient.MockRestClient{}
	pair := embeddingsBody(t, map[int][]float32{0: {1, 0}, 1: {2, 0}})
	single := embeddingsBody(t, map[int][]float32{0: {3, 0}})

	rest.On("Post", mock.Anything, embeddingEndpoint, matchBatch("a", 2), mock.Anything).
		Return(pair, http.StatusOK, nil).Once()
	rest.On("Post", mock.Anything, embeddingEndpoint, matchBatch("c", 2), mock.Anything).
		Return(pair, http.StatusOK, nil).Once()
	rest.On("Post", mock.Anything, embeddingEndpoint, matchBatch("e", 1), mock.Anything).
		Return(single, http.StatusOK, nil).Once()

	mc := newTestClient(rest, 2)
	vecs, err := mc.EmbedTexts(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	require.Len(t, vecs, 5)
	assert.Equal(t, []float32{3, 0}, vecs[4])
	rest.AssertExpectations(t)
}

func TestEmbedTextsEmptyInput(t *testing.T) {
	rest := &restclient.MockRestClient{}
	mc := newTestClient(rest, 10)

	vecs, err := mc.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
	rest.AssertNotCalled(t, "Post", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEmbedTextsRetriesExhausted(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Post", mock.Anything, embeddingEndpoint, mock.Anything, mock.Anything).
		Return([]byte("boom"), http.StatusInternalServerError, nil).Times(3)

	mc := newTestClient(rest, 10)
	_, err := mc.EmbedTexts(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	rest.AssertNumberOfCalls(t, "Post", 3)
}

func TestEmbedTextsInvalidInputNotRetried(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Post", mock.Anything, embeddingEndpoint, mock.Anything, mock.Anything).
		Return([]byte(`{"error":"input too long"}`), http.StatusBadRequest, nil).Once()

	mc := newTestClient(rest, 10)
	_, err := mc.EmbedTexts(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	rest.AssertNumberOfCalls(t, "Post", 1)
}

func TestEmbedTextsCountMismatch(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Post", mock.Anything, embeddingEndpoint, mock.Anything, mock.Anything).
		Return(embeddingsBody(t, map[int][]float32{0: {1}}), http.StatusOK, nil).Once()

	mc := newTestClient(rest, 10)
	_, err := mc.EmbedTexts(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestEmbedTextTransportErrorThenSuccess(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Post", mock.Anything, embeddingEndpoint, mock.Anything, mock.Anything).
		Return([]byte(nil), 0, errors.New("connection refused")).Once()
	rest.On("Post", mock.Anything, embeddingEndpoint, mock.Anything, mock.Anything).
		Return(embeddingsBody(t, map[int][]float32{0: {1, 2}}), http.StatusOK, nil).Once()

	mc := newTestClient(rest, 10)
	vec, err := mc.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
	rest.AssertExpectations(t)
}

func TestEmbedTextCaches(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Post", mock.Anything, embeddingEndpoint, mock.Anything, mock.Anything).
		Return(embeddingsBody(t, map[int][]float32{0: {1, 2}}), http.StatusOK, nil).Once()

	mc := newTestClient(rest, 10)
	first, err := mc.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	second, err := mc.EmbedText(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	rest.AssertNumberOfCalls(t, "Post", 1)
}
