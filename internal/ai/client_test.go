package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:            baseURL,
		APIKey:             "test-key",
		ChatModel:          "test-chat",
		EmbeddingModel:     "test-embed",
		EmbeddingDimension: 3,
		EmbeddingBatchSize: 2,
	})
}

func TestHasCredentials(t *testing.T) {
	assert.True(t, newTestClient("http://x").HasCredentials())
	assert.False(t, NewClient(Config{}).HasCredentials())
}

func TestComplete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-chat", body["model"])
		assert.Equal(t, false, body["stream"])

		fmt.Fprint(w, `{"choices":[{"message":{"content":"the answer"}}]}`)
	}))
	defer server.Close()

	reply, err := newTestClient(server.URL).Complete(context.Background(), []ChatMessage{
		{Role: "user", Content: "question"},
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer", reply)
}

func TestComplete_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), []ChatMessage{
		{Role: "user", Content: "question"},
	})
	assert.ErrorIs(t, err, ErrGenerationProvider)
}

func TestComplete_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrGenerationProvider)
}

func TestCompleteJSON_SetsResponseFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		format, ok := body["response_format"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "json_object", format["type"])
		assert.Equal(t, 0.1, body["temperature"])

		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`)
	}))
	defer server.Close()

	reply, err := newTestClient(server.URL).CompleteJSON(context.Background(), []ChatMessage{
		{Role: "user", Content: "extract"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, reply)
}

func TestStreamComplete_DeliversDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	var deltas []string
	full, err := newTestClient(server.URL).StreamComplete(context.Background(), nil, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", full)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
}

func TestStreamComplete_CallbackErrorAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	sentinel := errors.New("client gone")
	_, err := newTestClient(server.URL).StreamComplete(context.Background(), nil, func(string) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}

func TestStreamComplete_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).StreamComplete(context.Background(), nil, func(string) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrGenerationProvider)
}
