package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// HTTPClient интерфейс для выполнения HTTP запросов (для тестирования).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client — HTTP клиент memory-api.
//
// Thread-safe.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	limiter    *rate.Limiter
}

var _ Backend = (*Client)(nil)

// APIError — memory-api ответил не-2xx статусом.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("memory-api: %d %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("memory-api: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// NewClient создаёт клиент.
//
// ratePerMinute и burst настраивают rate limiter; ratePerMinute <= 0
// отключает ограничение.
func NewClient(baseURL string, ratePerMinute, burst int, timeout time.Duration) *Client {
	limit := rate.Inf
	if ratePerMinute > 0 {
		limit = rate.Limit(float64(ratePerMinute) / 60.0)
	}
	if burst <= 0 {
		burst = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// SetHTTPClient подменяет HTTP клиент.
func (c *Client) SetHTTPClient(hc HTTPClient) {
	c.httpClient = hc
}

// Save сохраняет факт через POST /memories.
func (c *Client) Save(ctx context.Context, content, category string) (Memory, error) {
	if category == "" {
		category = DefaultCategory
	}

	var mem Memory
	err := c.do(ctx, http.MethodPost, "/memories", createRequest{Content: content, Category: category}, &mem)
	return mem, err
}

// Search ищет через GET /memories/search.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	var resp searchResponse
	if err := c.do(ctx, http.MethodGet, "/memories/search?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// List возвращает записи через GET /memories.
func (c *Client) List(ctx context.Context, category string, limit int) ([]Memory, error) {
	params := url.Values{}
	if category != "" {
		params.Set("category", category)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	path := "/memories"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var memories []Memory
	err := c.do(ctx, http.MethodGet, path, nil, &memories)
	return memories, err
}

// Delete удаляет запись через DELETE /memories/{id}.
func (c *Client) Delete(ctx context.Context, id int64) error {
	err := c.do(ctx, http.MethodDelete, "/memories/"+strconv.FormatInt(id, 10), nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

// Health проверяет доступность сервиса.
func (c *Client) Health(ctx context.Context) error {
	var resp map[string]string
	if err := c.do(ctx, http.MethodGet, "/", nil, &resp); err != nil {
		return err
	}
	if resp["status"] != "ok" {
		return fmt.Errorf("memory-api: unexpected health status %q", resp["status"])
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("memory-api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var detail struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&detail)
		return &APIError{StatusCode: resp.StatusCode, Detail: detail.Detail}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
