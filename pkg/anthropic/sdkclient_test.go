package anthropic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a client pointed at a local test server.
func newTestClient(baseURL string) *sdkClient {
	client := sdk.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	)
	return &sdkClient{client: client}
}

func TestSDKClient_CreateMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_test_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5-20251001",
			"content": [{"type": "text", "text": "Rave RE"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 25, "output_tokens": 8}
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 256,
		Messages: []Message{
			{Role: "user", Content: "Which model family does RAVE RE 850 belong to?"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "msg_test_1", resp.ID)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "Rave RE", resp.Content[0].Text)
	assert.Equal(t, int64(25), resp.Usage.InputTokens)
	assert.Equal(t, int64(8), resp.Usage.OutputTokens)
}

func TestSDKClient_CreateMessage_WithSystemAndTemp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_test_2",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "{\"category\": \"track\"}"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 1200, "output_tokens": 40, "cache_creation_input_tokens": 5000, "cache_read_input_tokens": 0}
		}`))
	}))
	defer server.Close()

	temp := 0.0
	client := newTestClient(server.URL)
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 1024,
		System: []SystemBlock{
			{Text: "You classify snowmobile option tokens.", CacheControl: &CacheControl{TTL: "1h"}},
		},
		Messages: []Message{
			{Role: "user", Content: "Classify: STUDDED TRACK"},
		},
		Temperature: &temp,
	})

	require.NoError(t, err)
	assert.Equal(t, "msg_test_2", resp.ID)
	assert.Equal(t, int64(5000), resp.Usage.CacheCreationInputTokens)
}

func TestSDKClient_CreateMessage_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "invalid_request_error", "message": "max_tokens required"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.CreateMessage(context.Background(), MessageRequest{
		Model: "claude-haiku-4-5-20251001",
		Messages: []Message{
			{Role: "user", Content: "hello"},
		},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
}
