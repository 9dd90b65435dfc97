// Package openai реализует адаптер LLM провайдера для OpenAI-совместимых API
// (llama-server за reverse proxy).
//
// Generate и Embed идут через go-openai, Stream читает SSE поток напрямую
// через net/http и pkg/sse.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ilkoid/pi-llama/pkg/config"
	"github.com/ilkoid/pi-llama/pkg/llm"
	"github.com/ilkoid/pi-llama/pkg/sse"
	"github.com/ilkoid/pi-llama/pkg/tools"
	"github.com/ilkoid/pi-llama/pkg/utils"
)

const (
	chatCompletionsPath = "/v1/chat/completions"
	maxErrorBody        = 4 << 10
)

// Client реализует llm.Provider, llm.Streamer и llm.Embedder.
type Client struct {
	api            *openai.Client
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	model          string
	embeddingModel string
	timeout        time.Duration
	defaults       llm.GenerateOptions
}

var (
	_ llm.Provider = (*Client)(nil)
	_ llm.Streamer = (*Client)(nil)
	_ llm.Embedder = (*Client)(nil)
)

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет HTTP клиент (тесты, кастомный транспорт).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient создает клиент на основе конфигурации llm секции.
//
// cfg.BaseURL указывается без /v1: суффикс добавляется здесь.
// Streaming запросы не ограничены таймаутом: прерываются только
// через context.
func NewClient(cfg config.LLMConfig, opts ...Option) *Client {
	cfg = cfg.GetDefaults()

	c := &Client{
		httpClient:     &http.Client{},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		timeout:        cfg.Timeout,
		defaults: llm.GenerateOptions{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.ToolMaxTokens,
			ToolChoice:  "auto",
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	apiCfg := openai.DefaultConfig(c.apiKey)
	apiCfg.BaseURL = c.baseURL + "/v1"
	apiCfg.HTTPClient = c.httpClient
	c.api = openai.NewClientWithConfig(apiCfg)

	return c
}

// Generate выполняет non-streaming запрос и возвращает assistant-сообщение.
//
// Если defs не пуст, каталог инструментов уходит в запрос с tool_choice
// "auto" и модель может вернуть ToolCalls вместо текста.
//
// Правило 7: Все ошибки возвращаются, никаких panic.
func (c *Client) Generate(ctx context.Context, messages []llm.Message, defs []tools.ToolDefinition, opts ...llm.GenerateOption) (llm.Message, error) {
	startTime := time.Now()
	o := llm.ApplyOptions(c.defaults, opts...)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	utils.Debug("LLM request started",
		"model", o.Model,
		"messages_count", len(messages),
		"tools_count", len(defs))

	openaiMsgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		openaiMsgs[i] = mapToOpenAI(m)
	}

	req := openai.ChatCompletionRequest{
		Model:       o.Model,
		Messages:    openaiMsgs,
		MaxTokens:   o.MaxTokens,
		Temperature: float32(o.Temperature),
	}

	if len(defs) > 0 {
		req.Tools = convertToolsToOpenAI(defs)
		req.ToolChoice = o.ToolChoice
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		utils.Error("LLM API request failed",
			"error", err,
			"model", o.Model,
			"duration_ms", time.Since(startTime).Milliseconds())
		return llm.Message{}, normalizeError("generate", err)
	}

	if len(resp.Choices) == 0 {
		return llm.Message{}, llm.ErrNoChoices
	}

	choice := resp.Choices[0].Message
	result := llm.Message{
		Role:    llm.RoleAssistant,
		Content: choice.Content,
	}

	if len(choice.ToolCalls) > 0 {
		result.ToolCalls = make([]llm.ToolCall, len(choice.ToolCalls))
		for i, tc := range choice.ToolCalls {
			result.ToolCalls[i] = llm.ToolCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: tc.Function.Arguments,
			}
		}
	}

	utils.Info("LLM response received",
		"model", o.Model,
		"tool_calls_count", len(result.ToolCalls),
		"content_length", len(result.Content),
		"duration_ms", time.Since(startTime).Milliseconds())

	return result, nil
}

// streamRequestBody — тело streaming запроса.
type streamRequestBody struct {
	Model       string        `json:"model,omitempty"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type wireMessage struct {
	Role       string `json:"role"`
	Content    string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Stream отправляет streaming запрос и доставляет токены через колбэки.
//
// Ровно один из OnComplete/OnError вызывается ровно один раз.
// Отмена ctx обрывает соединение и приходит в OnError как
// *llm.NetworkError, оборачивающий context.Canceled.
func (c *Client) Stream(ctx context.Context, req llm.StreamRequest, cb llm.StreamCallbacks) {
	startTime := time.Now()
	d := llm.NewDispatcher(cb)
	req = req.WithDefaults()

	body := streamRequestBody{
		Model:       c.model,
		Messages:    make([]wireMessage, len(req.Messages)),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	}
	for i, m := range llm.StripToolCalls(req.Messages) {
		body.Messages[i] = wireMessage{Role: string(m.Role), Content: m.Content, ToolCallID: m.ToolCallID}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		d.Fail(fmt.Errorf("marshal stream request: %w", err))
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatCompletionsPath, bytes.NewReader(payload))
	if err != nil {
		d.Fail(&llm.NetworkError{Op: "build request", Err: err})
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	utils.Debug("LLM stream started",
		"model", c.model,
		"messages_count", len(req.Messages),
		"max_tokens", req.MaxTokens)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		utils.Error("LLM stream request failed", "error", err)
		d.Fail(&llm.NetworkError{Op: "stream request", Err: err})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		httpErr := &llm.HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(raw)}
		utils.Error("LLM stream rejected", "status", resp.StatusCode, "body", httpErr.Body)
		d.Fail(httpErr)
		return
	}

	tokens := 0
	err = sse.Scan(ctx, resp.Body, func(tok string) {
		tokens++
		d.Token(tok)
	})
	if err != nil {
		utils.Warn("LLM stream interrupted", "error", err, "tokens", tokens)
		d.Fail(&llm.NetworkError{Op: "stream read", Err: err})
		return
	}

	utils.Info("LLM stream completed",
		"tokens", tokens,
		"duration_ms", time.Since(startTime).Milliseconds())
	d.Complete()
}

// Embed возвращает embedding текста через /v1/embeddings.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, normalizeError("embed", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embed: %w", llm.ErrNoChoices)
	}

	vec := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float64(v)
	}
	return vec, nil
}

// normalizeError приводит ошибки go-openai к llm.HTTPError / llm.NetworkError.
func normalizeError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &llm.HTTPError{StatusCode: apiErr.HTTPStatusCode, Status: apiErr.HTTPStatus, Body: apiErr.Message}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &llm.HTTPError{StatusCode: reqErr.HTTPStatusCode, Status: reqErr.HTTPStatus, Body: string(reqErr.Body)}
	}

	return &llm.NetworkError{Op: op, Err: err}
}

// mapToOpenAI конвертирует наше внутреннее сообщение в формат SDK.
func mapToOpenAI(m llm.Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}

	if len(m.ToolCalls) > 0 {
		msg.ToolCalls = make([]openai.ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			msg.ToolCalls[i] = openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Args,
				},
			}
		}
	}

	return msg
}

// convertToolsToOpenAI конвертирует определения инструментов
// в формат OpenAI Function Calling.
//
// Parameters уже является JSON Schema объектом и передаётся как есть.
func convertToolsToOpenAI(defs []tools.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(defs))

	for i, def := range defs {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		}
	}

	return result
}
