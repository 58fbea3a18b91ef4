package models

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"GoDocsAI/app/restclient"
)

func completionBody(t *testing.T, content string) []byte {
	t.Helper()
	resp := ResponseLLM{Model: "test-chat"}
	resp.Choices = make([]struct {
		Index        int     `json:"index"`
		FinishReason string  `json:"finish_reason"`
		Message      Message `json:"message"`
	}, 1)
	resp.Choices[0].Message = Message{Role: "assistant", Content: content}
	body, err := json.Marshal(resp)
	require.NoError(t, err)
	return body
}

func TestGenerateIncludesContext(t *testing.T) {
	rest := &restclient.MockRestClient{}
	var sent requestPayload
	rest.On("Post", mock.Anything, chatEndpoint, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sent = args.Get(2).(requestPayload)
		}).
		Return(completionBody(t, "the answer"), http.StatusOK, nil).Once()

	mc := newTestClient(rest, 10)
	answer, err := mc.Generate(context.Background(), "", "[source: doc1 #0]\nsome facts", "What is X?")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)

	require.Len(t, sent.Messages, 2)
	assert.Equal(t, "system", sent.Messages[0].Role)
	assert.True(t, strings.Contains(sent.Messages[0].Content, "some facts"))
	assert.True(t, strings.HasPrefix(sent.Messages[0].Content, GroundedInstructions))
	assert.Equal(t, "What is X?", sent.Messages[1].Content)
}

func TestGenerateEmptyContextPolicy(t *testing.T) {
	rest := &restclient.MockRestClient{}
	var sent requestPayload
	rest.On("Post", mock.Anything, chatEndpoint, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sent = args.Get(2).(requestPayload)
		}).
		Return(completionBody(t, "not in the document"), http.StatusOK, nil).Once()

	mc := newTestClient(rest, 10)
	_, err := mc.Generate(context.Background(), "", "", "What is X?")
	require.NoError(t, err)

	require.Len(t, sent.Messages, 2)
	assert.Equal(t, NoContextInstructions, sent.Messages[0].Content)
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	rest := &restclient.MockRestClient{}
	// Two timed-out attempts, then success within the retry bound of 3.
	rest.On("Post", mock.Anything, chatEndpoint, mock.Anything, mock.Anything).
		Return([]byte(nil), 0, context.DeadlineExceeded).Twice()
	rest.On("Post", mock.Anything, chatEndpoint, mock.Anything, mock.Anything).
		Return(completionBody(t, "third time lucky"), http.StatusOK, nil).Once()

	mc := newTestClient(rest, 10)
	answer, err := mc.Generate(context.Background(), "", "ctx", "What is X?")
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", answer)
	rest.AssertNumberOfCalls(t, "Post", 3)
}

func TestGenerateInvalidRequestNotRetried(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Post", mock.Anything, chatEndpoint, mock.Anything, mock.Anything).
		Return([]byte(`{"error":"context length exceeded"}`), http.StatusBadRequest, nil).Once()

	mc := newTestClient(rest, 10)
	_, err := mc.Generate(context.Background(), "", "ctx", "What is X?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	rest.AssertNumberOfCalls(t, "Post", 1)
}

func TestGenerateRetriesExhausted(t *testing.T) {
	rest := &restclient.MockRestClient{}
	rest.On("Post", mock.Anything, chatEndpoint, mock.Anything, mock.Anything).
		Return([]byte("upstream down"), http.StatusBadGateway, nil).Times(3)

	mc := newTestClient(rest, 10)
	_, err := mc.Generate(context.Background(), "", "ctx", "What is X?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	rest.AssertNumberOfCalls(t, "Post", 3)
}

func TestGenerateEmptyQuery(t *testing.T) {
	rest := &restclient.MockRestClient{}
	mc := newTestClient(rest, 10)

	_, err := mc.Generate(context.Background(), "", "ctx", "   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	rest.AssertNotCalled(t, "Post", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
