package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"The lease runs five years."}}]}`))
	}))
	defer server.Close()

	client := NewOpenAICompatibleClient()
	cfg := ChatConfig{BaseURL: server.URL, APIKey: "secret", Model: "gpt-4o", Temperature: 0, MaxTokens: 1000}

	answer, err := client.Complete(context.Background(), cfg, []ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "lease term?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "The lease runs five years.", answer)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "gpt-4o", gotBody["model"])
	assert.EqualValues(t, 1000, gotBody["max_tokens"])
	// Temperature zero is still sent explicitly.
	assert.Contains(t, gotBody, "temperature")
	assert.EqualValues(t, 0, gotBody["temperature"])
}

func TestCompleteUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	client := NewOpenAICompatibleClient()
	cfg := ChatConfig{BaseURL: server.URL, APIKey: "secret", Model: "gpt-4o"}

	_, err := client.Complete(context.Background(), cfg, []ChatMessage{{Role: "user", Content: "hi"}})
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusTooManyRequests, upstream.StatusCode)
	assert.Contains(t, upstream.Body, "rate limited")
}

func TestStreamComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"The \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"answer.\"}}]}\n\n")
		fmt.Fprint(w, ": keepalive comment\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ignored\"}}]}\n\n")
	}))
	defer server.Close()

	client := NewOpenAICompatibleClient()
	cfg := ChatConfig{BaseURL: server.URL, APIKey: "secret", Model: "gpt-4o"}

	var chunks []string
	full, err := client.StreamComplete(context.Background(), cfg, []ChatMessage{{Role: "user", Content: "hi"}}, func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "The answer.", full)
	assert.Equal(t, []string{"The ", "answer."}, chunks)
}

func TestStreamCompleteCallbackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"chunk\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewOpenAICompatibleClient()
	cfg := ChatConfig{BaseURL: server.URL, APIKey: "secret", Model: "gpt-4o"}

	wantErr := fmt.Errorf("client went away")
	_, err := client.StreamComplete(context.Background(), cfg, []ChatMessage{{Role: "user", Content: "hi"}}, func(string) error {
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "text-embedding-3-small", body["model"])
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	client := NewOpenAICompatibleClient()
	cfg := EmbeddingConfig{BaseURL: server.URL, APIKey: "secret", Model: "text-embedding-3-small"}

	vec, err := client.Embed(context.Background(), cfg, "some clause")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)

	_, err = client.Embed(context.Background(), cfg, "   ")
	assert.Error(t, err)
}

func TestEmbedBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0]},{"embedding":[0,1]}]}`))
	}))
	defer server.Close()

	client := NewOpenAICompatibleClient()
	cfg := EmbeddingConfig{BaseURL: server.URL, APIKey: "secret", Model: "text-embedding-3-small"}

	vecs, err := client.EmbedBatch(context.Background(), cfg, []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, []float32{0, 1}, vecs[1])
}

func TestEmbedUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer server.Close()

	client := NewOpenAICompatibleClient()
	cfg := EmbeddingConfig{BaseURL: server.URL, APIKey: "wrong", Model: "text-embedding-3-small"}

	_, err := client.Embed(context.Background(), cfg, "clause")
	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusUnauthorized, upstream.StatusCode)
}
