package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOllama(t *testing.T, handler http.HandlerFunc) Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter, err := NewOllamaAdapter(Config{
		ID:           "p-ollama",
		Name:         "Local LLM",
		BaseURL:      srv.URL,
		DefaultModel: "llama3",
		Timeout:      2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func TestOllamaAdapter_CompleteStream(t *testing.T) {
	t.Run("reassembles chunks in order", func(t *testing.T) {
		adapter := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/chat", r.URL.Path)

			var body ollamaChatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.True(t, body.Stream)
			assert.Equal(t, "llama3", body.Model)
			assert.Equal(t, 2048, body.Options.NumPredict)

			w.Header().Set("Content-Type", "application/x-ndjson")
			for _, c := range []string{"a", "b", "c"} {
				fmt.Fprintf(w, `{"model":"llama3","message":{"role":"assistant","content":%q},"done":false}`+"\n", c)
				w.(http.Flusher).Flush()
			}
			fmt.Fprintln(w, `{"model":"llama3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":12,"eval_count":3}`)
		})

		var chunks []string
		resp, err := adapter.CompleteStream(context.Background(), CompletionRequest{
			Messages: []Message{{Role: RoleUser, Content: "hi"}},
		}, func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"a", "b", "c"}, chunks)
		assert.Equal(t, "abc", resp.Content)
		assert.Equal(t, Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15}, resp.Usage)
		assert.Equal(t, FinishStop, resp.FinishReason)
		assert.Zero(t, resp.SkippedFrames)
	})

	t.Run("malformed frames are counted and skipped", func(t *testing.T) {
		adapter := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"message":{"content":"a"},"done":false}`)
			fmt.Fprintln(w, `{not json`)
			fmt.Fprintln(w, `{"message":{"content":"b"},"done":true}`)
		})

		resp, err := adapter.CompleteStream(context.Background(), CompletionRequest{}, nil)
		require.NoError(t, err)
		assert.Equal(t, "ab", resp.Content)
		assert.Equal(t, 1, resp.SkippedFrames)
	})

	t.Run("handler error aborts", func(t *testing.T) {
		adapter := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintln(w, `{"message":{"content":"a"},"done":false}`)
			fmt.Fprintln(w, `{"message":{"content":"b"},"done":true}`)
		})

		stop := errors.New("client went away")
		calls := 0
		_, err := adapter.CompleteStream(context.Background(), CompletionRequest{}, func(string) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})
}

func TestOllamaAdapter_Complete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		adapter := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			var body ollamaChatRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.False(t, body.Stream)
			assert.Equal(t, "codellama", body.Model)
			fmt.Fprint(w, `{"model":"codellama","message":{"role":"assistant","content":"lists files"},"done":true,"prompt_eval_count":5,"eval_count":2}`)
		})

		resp, err := adapter.Complete(context.Background(), CompletionRequest{Model: "codellama"})
		require.NoError(t, err)
		assert.Equal(t, "lists files", resp.Content)
		assert.Equal(t, "codellama", resp.Model)
		assert.Equal(t, 7, resp.Usage.TotalTokens)
		assert.NotEmpty(t, resp.ID)
	})

	t.Run("non-2xx names the provider", func(t *testing.T) {
		adapter := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		})

		_, err := adapter.Complete(context.Background(), CompletionRequest{})
		require.Error(t, err)

		var perr *ProviderError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, http.StatusNotFound, perr.StatusCode)
		assert.Contains(t, err.Error(), "Local LLM")
	})

	t.Run("timeout surfaces as transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		adapter, err := NewOllamaAdapter(Config{Name: "Slow", BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
		require.NoError(t, err)

		_, err = adapter.Complete(context.Background(), CompletionRequest{})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestOllamaAdapter_ListModelsAndTest(t *testing.T) {
	adapter := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models":[{"name":"llama3:latest","model":"llama3:latest","size":4661224676,"modified_at":"2024-05-01T10:00:00Z"}]}`)
	})

	models, err := adapter.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "llama3:latest", models[0].Name)
	assert.EqualValues(t, 4661224676, models[0].Size)

	res := adapter.TestConnection(context.Background())
	assert.True(t, res.Success)
	assert.Equal(t, []string{"llama3:latest"}, res.AvailableModels)
}

func TestNewOllamaAdapter_RequiresBaseURL(t *testing.T) {
	_, err := NewOllamaAdapter(Config{Name: "x"})
	assert.Error(t, err)
}
