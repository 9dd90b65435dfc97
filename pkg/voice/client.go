package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ilkoid/pi-llama/pkg/config"
	"github.com/ilkoid/pi-llama/pkg/utils"
)

const (
	transcribePath = "/whisper/asr"
	speechPath     = "/tts/v1/audio/speech"

	// DefaultFilename — имя файла в multipart запросе к Whisper.
	DefaultFilename = "recording.webm"

	ttsModel  = "tts-1"
	ttsFormat = "mp3"
)

// HTTPClient интерфейс для выполнения HTTP запросов (для тестирования).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ServiceError — сервис речи ответил не-2xx статусом.
//
// Текст ошибки: "Transcription failed: 500 Internal Server Error".
type ServiceError struct {
	Op         string
	StatusCode int
	Status     string
}

func (e *ServiceError) Error() string {
	text := http.StatusText(e.StatusCode)
	if text == "" {
		text = e.Status
	}
	return fmt.Sprintf("%s failed: %d %s", e.Op, e.StatusCode, text)
}

// Client — HTTP клиент Whisper и TTS.
//
// Thread-safe.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	limiter    *rate.Limiter
}

// NewClient создаёт клиент из voice секции конфигурации.
func NewClient(cfg config.VoiceConfig) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(float64(cfg.RateLimit) / 60.0)
	}
	burst := cfg.BurstLimit
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.TimeoutDuration()},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// SetHTTPClient подменяет HTTP клиент.
func (c *Client) SetHTTPClient(hc HTTPClient) {
	c.httpClient = hc
}

// Transcribe отправляет запись в Whisper и возвращает распознанный текст.
//
// filename передаётся серверу как имя файла; пустое значение заменяется
// на recording.webm.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if filename == "" {
		filename = DefaultFilename
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("audio_file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	size, err := io.Copy(part, audio)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	start := time.Now()
	resp, err := c.post(ctx, transcribePath, mw.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ServiceError{Op: "Transcription", StatusCode: resp.StatusCode, Status: resp.Status}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcription: %w", err)
	}

	text := strings.TrimSpace(string(raw))
	utils.Info("Audio transcribed",
		"bytes", size,
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds())
	return text, nil
}

type speechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          Voice  `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize озвучивает текст и возвращает mp3.
func (c *Client) Synthesize(ctx context.Context, text string, v Voice) ([]byte, error) {
	if v == "" {
		v = DefaultVoice
	}
	if !v.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVoice, v)
	}

	payload, err := json.Marshal(speechRequest{Model: ttsModel, Input: text, Voice: v, ResponseFormat: ttsFormat})
	if err != nil {
		return nil, fmt.Errorf("marshal speech request: %w", err)
	}

	start := time.Now()
	resp, err := c.post(ctx, speechPath, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServiceError{Op: "Speech synthesis", StatusCode: resp.StatusCode, Status: resp.Status}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}

	utils.Info("Speech synthesized",
		"voice", v,
		"chars", len(text),
		"bytes", len(audio),
		"duration_ms", time.Since(start).Milliseconds())
	return audio, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("voice request %s: %w", path, err)
	}
	return resp, nil
}
