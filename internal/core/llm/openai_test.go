package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lueurxax/idea-aggregator/internal/core/errors"
)

func newOpenAIServer(t *testing.T, content string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, testModel, body["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  testModel,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": testModel, "object": "model"}},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestOpenAIGenerate(t *testing.T) {
	srv := newOpenAIServer(t, `{"score":70}`)
	g := NewOpenAI("key", srv.URL+"/v1", srv.Client(), 0, testLogger())

	text, err := g.Generate(context.Background(), Request{Model: testModel, Prompt: "p", MaxTokens: 500})
	require.NoError(t, err)

	assert.Equal(t, `{"score":70}`, text)
	assert.Equal(t, ProviderNameOpenAI, g.Name())
	require.NoError(t, g.Ping(context.Background(), testModel))
}

func TestOpenAIGenerate_EmptyContent(t *testing.T) {
	srv := newOpenAIServer(t, "")
	g := NewOpenAI("key", srv.URL+"/v1", srv.Client(), 0, testLogger())

	_, err := g.Generate(context.Background(), Request{Model: testModel})
	require.ErrorIs(t, err, apperrors.ErrEmptyResponse)
}

func TestOpenAIPing_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	g := NewOpenAI("key", url+"/v1", http.DefaultClient, 0, testLogger())

	require.ErrorIs(t, g.Ping(context.Background(), testModel), apperrors.ErrGeneratorUnavailable)
}
