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

	"github.com/autofinance/autofinance/internal/config"
)

// failPrimaryServer errors for the primary model and answers for the fallback
func failPrimaryServer(t *testing.T, primary string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Model == primary {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"model down"}}`)
			return
		}
		fmt.Fprint(w, completionFixture("fallback answer"))
	}))
}

func TestFallbackClientUsesSecondModel(t *testing.T) {
	ts := failPrimaryServer(t, "primary-model")
	defer ts.Close()

	fc := NewFallbackClient(config.LLMConfig{
		Endpoint:      ts.URL,
		PrimaryModel:  "primary-model",
		FallbackModel: "backup-model",
	})

	out, err := fc.CompleteWithSystem(context.Background(), "sys", "usr")
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", out)
}

func TestFallbackClientAllModelsFail(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":{"message":"down"}}`)
	}))
	defer ts.Close()

	fc := NewFallbackClient(config.LLMConfig{
		Endpoint:      ts.URL,
		PrimaryModel:  "a",
		FallbackModel: "b",
	})

	_, err := fc.CompleteWithSystem(context.Background(), "sys", "usr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all models failed")
}

func TestFallbackClientSingleModelWhenDuplicate(t *testing.T) {
	fc := NewFallbackClient(config.LLMConfig{PrimaryModel: "same", FallbackModel: "same"})
	assert.Len(t, fc.clients, 1)
}

func TestFallbackBreakerSkipsDeadModel(t *testing.T) {
	primaryHits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Model == "dead" {
			primaryHits++
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, completionFixture("ok"))
	}))
	defer ts.Close()

	fc := NewFallbackClient(config.LLMConfig{
		Endpoint:      ts.URL,
		PrimaryModel:  "dead",
		FallbackModel: "alive",
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		out, err := fc.CompleteWithSystem(ctx, "sys", "usr")
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	}
	// Breaker trips after three consecutive failures; the dead model stops
	// seeing traffic
	assert.Equal(t, 3, primaryHits)
}
