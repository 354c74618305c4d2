package llm

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

func completionFixture(content string) string {
	body := map[string]any{
		"id":    "chatcmpl-1",
		"model": "gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	out, _ := json.Marshal(body)
	return string(out)
}

func TestCompleteWithSystem(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		fmt.Fprint(w, completionFixture("hello"))
	}))
	defer ts.Close()

	c := NewClient(ClientConfig{Endpoint: ts.URL, APIKey: "test-key"})
	out, err := c.CompleteWithSystem(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestCompleteAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
	}))
	defer ts.Close()

	c := NewClient(ClientConfig{Endpoint: ts.URL})
	_, err := c.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestCompleteNoChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"x","choices":[]}`)
	}))
	defer ts.Close()

	c := NewClient(ClientConfig{Endpoint: ts.URL})
	_, err := c.CompleteWithSystem(context.Background(), "sys", "usr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestParseJSONResponse(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bare json", `{"sentiment":"POSITIVE","score":0.8,"confidence":0.9}`},
		{"json fence", "```json\n{\"sentiment\":\"POSITIVE\",\"score\":0.8,\"confidence\":0.9}\n```"},
		{"bare fence", "```\n{\"sentiment\":\"POSITIVE\",\"score\":0.8,\"confidence\":0.9}\n```"},
		{"fence with prose", "Here you go:\n```json\n{\"sentiment\":\"POSITIVE\",\"score\":0.8,\"confidence\":0.9}\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v SentimentVerdict
			require.NoError(t, ParseJSONResponse(tt.content, &v))
			assert.Equal(t, "POSITIVE", v.Sentiment)
			assert.Equal(t, 0.8, v.Score)
		})
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	var v SentimentVerdict
	assert.Error(t, ParseJSONResponse("not json at all", &v))
}

func TestBuildSentimentPrompt(t *testing.T) {
	p := BuildSentimentPrompt("BTC-USD", []string{"Bitcoin surges", "ETF inflows hit record"})
	assert.Contains(t, p, "BTC-USD")
	assert.Contains(t, p, "1. Bitcoin surges")
	assert.Contains(t, p, "2. ETF inflows hit record")
	assert.Contains(t, p, `"sentiment"`)
}
