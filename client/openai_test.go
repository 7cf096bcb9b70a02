package client

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

func sseChunk(content string, finish bool) string {
	var reason any
	if finish {
		reason = "stop"
	}
	payload, _ := json.Marshal(map[string]any{
		"id":      "chunk",
		"object":  "chat.completion.chunk",
		"created": 0,
		"model":   "llama3.2",
		"choices": []map[string]any{{
			"index":         0,
			"delta":         map[string]string{"role": "assistant", "content": content},
			"finish_reason": reason,
		}},
	})
	return "data: " + string(payload) + "\n\n"
}

func TestOpenAITransport_StreamsFragments(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer ollama", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("Hello wor", false))
		fmt.Fprint(w, sseChunk("ld.", false))
		fmt.Fprint(w, sseChunk("", true))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	transport := NewOpenAITransport("", quietLogger())
	stream, err := transport.Open(context.Background(), endpointFor(t, server), testRequest())
	require.NoError(t, err)

	frags, errs := collect(t, stream)
	assert.Empty(t, errs)
	require.Len(t, frags, 3)
	assert.Equal(t, "Hello wor", frags[0].Content)
	assert.Equal(t, "ld.", frags[1].Content)
	assert.True(t, frags[2].Done)

	assert.Equal(t, "llama3.2", body["model"])
	assert.Equal(t, true, body["stream"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestOpenAITransport_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"boom"}}`)
	}))
	defer server.Close()

	transport := NewOpenAITransport("key", quietLogger())
	stream, err := transport.Open(context.Background(), endpointFor(t, server), testRequest())
	assert.Nil(t, stream)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}
