package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/pi-llama/pkg/config"
	"github.com/ilkoid/pi-llama/pkg/llm"
	"github.com/ilkoid/pi-llama/pkg/tools"
)

// streamRecorder собирает колбэки одного Stream вызова.
type streamRecorder struct {
	mu        sync.Mutex
	tokens    []string
	completed int
	errs      []error
}

func (r *streamRecorder) callbacks() llm.StreamCallbacks {
	return llm.StreamCallbacks{
		OnToken: func(tok string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.tokens = append(r.tokens, tok)
		},
		OnComplete: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completed++
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs = append(r.errs, err)
		},
	}
}

func newTestClient(url string) *Client {
	return NewClient(config.LLMConfig{
		BaseURL:        url,
		APIKey:         "secret",
		Model:          "qwen",
		EmbeddingModel: "nomic",
	})
}

func sseFrame(content string) string {
	raw, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"content": content}}},
	})
	return "data: " + string(raw) + "\n\n"
}

func TestStream_Tokens(t *testing.T) {
	var got streamRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, chatCompletionsPath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, tok := range []string{"<think>", "hm", "</think>", "Hi"} {
			fmt.Fprint(w, sseFrame(tok))
			flusher.Flush()
		}
		fmt.Fprint(w, ": keep-alive\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{}}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	rec := &streamRecorder{}
	newTestClient(srv.URL).Stream(context.Background(), llm.StreamRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "sys"},
			{Role: llm.RoleUser, Content: "weather?"},
			{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c1", Name: "get_weather", Args: "{}"}}},
			{Role: llm.RoleTool, Content: `{"t":1}`, ToolCallID: "c1"},
		},
		MaxTokens:   256,
		Temperature: 0.3,
	}, rec.callbacks())

	assert.Equal(t, []string{"<think>", "hm", "</think>", "Hi"}, rec.tokens)
	assert.Equal(t, 1, rec.completed)
	assert.Empty(t, rec.errs)

	assert.True(t, got.Stream)
	assert.Equal(t, "qwen", got.Model)
	assert.Equal(t, 256, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, wireMessage{Role: "tool", Content: `{"t":1}`, ToolCallID: "c1"}, got.Messages[3])
}

func TestStream_Defaults(t *testing.T) {
	var got streamRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	rec := &streamRecorder{}
	newTestClient(srv.URL).Stream(context.Background(), llm.StreamRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	}, rec.callbacks())

	assert.Equal(t, llm.DefaultMaxTokens, got.MaxTokens)
	assert.InDelta(t, llm.DefaultTemperature, got.Temperature, 1e-9)
	assert.Empty(t, rec.tokens)
	assert.Equal(t, 1, rec.completed)
}

func TestStream_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model is loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec := &streamRecorder{}
	newTestClient(srv.URL).Stream(context.Background(), llm.StreamRequest{}, rec.callbacks())

	assert.Zero(t, rec.completed)
	require.Len(t, rec.errs, 1)

	var httpErr *llm.HTTPError
	require.ErrorAs(t, rec.errs[0], &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Contains(t, httpErr.Body, "model is loading")
	assert.Equal(t, "HTTP 503: Service Unavailable", rec.errs[0].Error())
}

func TestStream_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rec := &streamRecorder{}
	newTestClient(url).Stream(context.Background(), llm.StreamRequest{}, rec.callbacks())

	require.Len(t, rec.errs, 1)
	var netErr *llm.NetworkError
	assert.ErrorAs(t, rec.errs[0], &netErr)
	assert.Zero(t, rec.completed)
}

func TestStream_Cancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sseFrame("first"))
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &streamRecorder{}
	cb := rec.callbacks()
	onToken := cb.OnToken
	cb.OnToken = func(tok string) {
		onToken(tok)
		cancel()
	}

	newTestClient(srv.URL).Stream(ctx, llm.StreamRequest{}, cb)

	assert.Equal(t, []string{"first"}, rec.tokens)
	assert.Zero(t, rec.completed)
	require.Len(t, rec.errs, 1)
	assert.ErrorIs(t, rec.errs[0], context.Canceled)
}

func TestGenerate_ToolCalls(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "cmpl-1",
			"object": "chat.completion",
			"model": "qwen",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "get_weather", "arguments": "{\"location\":\"Tokyo\"}"}
					}]
				}
			}]
		}`)
	}))
	defer srv.Close()

	defs := []tools.ToolDefinition{{
		Name:        "get_weather",
		Description: "Get the current weather",
		Parameters:  tools.JSONSchema{"type": "object", "properties": map[string]any{}},
	}}

	msg, err := newTestClient(srv.URL).Generate(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "weather in Tokyo?"}},
		defs,
		llm.WithMaxTokens(512), llm.WithTemperature(0.5))
	require.NoError(t, err)

	assert.Equal(t, llm.RoleAssistant, msg.Role)
	assert.Equal(t, []llm.ToolCall{{ID: "call_1", Name: "get_weather", Args: `{"location":"Tokyo"}`}}, msg.ToolCalls)

	assert.Equal(t, "qwen", got["model"])
	assert.EqualValues(t, 512, got["max_tokens"])
	assert.InDelta(t, 0.5, got["temperature"], 1e-6)
	assert.Equal(t, "auto", got["tool_choice"])
	require.Len(t, got["tools"], 1)
}

func TestGenerate_PlainAnswerWithoutTools(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"index":0,"message":{"role":"assistant","content":"Hello!"}}]}`)
	}))
	defer srv.Close()

	msg, err := newTestClient(srv.URL).Generate(context.Background(),
		[]llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", msg.Content)
	assert.False(t, msg.HasToolCalls())

	assert.NotContains(t, got, "tools")
	assert.NotContains(t, got, "tool_choice")
}

func TestGenerate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "http status",
			status: http.StatusInternalServerError,
			body:   `{"error":{"message":"boom","type":"server_error"}}`,
			check: func(t *testing.T, err error) {
				assert.True(t, llm.IsHTTPStatus(err, http.StatusInternalServerError))
				assert.Equal(t, "HTTP 500: Internal Server Error", err.Error())
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, llm.ErrNoChoices)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Generate(context.Background(),
				[]llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic", req.Model)
		assert.Equal(t, []string{"likes tea"}, req.Input)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","model":"nomic","data":[{"object":"embedding","index":0,"embedding":[0.5,-0.25,1]}]}`)
	}))
	defer srv.Close()

	vec, err := newTestClient(srv.URL).Embed(context.Background(), "likes tea")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -0.25, 1}, vec)
}

func TestEmbed_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[]}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Embed(context.Background(), "x")
	assert.ErrorIs(t, err, llm.ErrNoChoices)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(config.LLMConfig{BaseURL: "http://llm.local/"})

	assert.Equal(t, "http://llm.local", c.baseURL)
	assert.Equal(t, "qwen", c.model)
	assert.Equal(t, "qwen", c.embeddingModel)
	assert.Equal(t, 512, c.defaults.MaxTokens)
	assert.Equal(t, "auto", c.defaults.ToolChoice)
	assert.NotNil(t, c.api)
}

func TestMapToOpenAI(t *testing.T) {
	m := mapToOpenAI(llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: "c1", Name: "calculator", Args: `{"expression":"2+2"}`}},
	})
	require.Len(t, m.ToolCalls, 1)
	assert.Equal(t, "calculator", m.ToolCalls[0].Function.Name)
	assert.Equal(t, `{"expression":"2+2"}`, m.ToolCalls[0].Function.Arguments)

	tool := mapToOpenAI(llm.Message{Role: llm.RoleTool, Content: "4", ToolCallID: "c1"})
	assert.Equal(t, "c1", tool.ToolCallID)
	assert.True(t, strings.EqualFold("tool", tool.Role))
}
