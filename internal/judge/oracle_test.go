package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatResponse(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(body)
}

func newTestOracle(t *testing.T, baseURL string) Oracle {
	t.Helper()
	oracle, err := NewOpenAIOracle(OracleConfig{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		MaxRetries: 2,
	})
	require.NoError(t, err)
	oracle.(*openAIOracle).baseBackoff = time.Millisecond
	return oracle
}

func TestNewOpenAIOracle(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		_, err := NewOpenAIOracle(OracleConfig{})
		assert.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		oracle, err := NewOpenAIOracle(OracleConfig{APIKey: "k"})
		require.NoError(t, err)

		impl := oracle.(*openAIOracle)
		assert.Equal(t, defaultModel, impl.model)
		assert.Equal(t, defaultBaseURL, impl.baseURL)
		assert.Equal(t, defaultMaxRetries, impl.maxRetries)
	})
}

func TestOracleJudge(t *testing.T) {
	ctx := context.Background()

	t.Run("returns model content", func(t *testing.T) {
		var gotAuth string
		var gotReq openAIRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			w.Write([]byte(chatResponse(`{"decision":"allow","message":"ok"}`)))
		}))
		defer server.Close()

		content, err := newTestOracle(t, server.URL).Judge(ctx, "system text", "user text")
		require.NoError(t, err)

		assert.Equal(t, `{"decision":"allow","message":"ok"}`, content)
		assert.Equal(t, "Bearer test-key", gotAuth)
		assert.Equal(t, "json_object", gotReq.ResponseFormat.Type)
		require.Len(t, gotReq.Messages, 2)
		assert.Equal(t, "system", gotReq.Messages[0].Role)
		assert.Equal(t, "user", gotReq.Messages[1].Role)
	})

	t.Run("retries on 500 then succeeds", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(chatResponse("late but fine")))
		}))
		defer server.Close()

		content, err := newTestOracle(t, server.URL).Judge(ctx, "s", "u")
		require.NoError(t, err)
		assert.Equal(t, "late but fine", content)
		assert.Equal(t, 2, calls)
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		var calls int
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key","type":"auth"}}`))
		}))
		defer server.Close()

		_, err := newTestOracle(t, server.URL).Judge(ctx, "s", "u")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad key")
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := newTestOracle(t, server.URL).Judge(ctx, "s", "u")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max retries exceeded")
	})

	t.Run("empty choices is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"choices":[]}`))
		}))
		defer server.Close()

		_, err := newTestOracle(t, server.URL).Judge(ctx, "s", "u")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(500 * time.Millisecond)
			w.Write([]byte(chatResponse("too late")))
		}))
		defer server.Close()

		cancelled, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := newTestOracle(t, server.URL).Judge(cancelled, "s", "u")
		assert.Error(t, err)
	})
}
