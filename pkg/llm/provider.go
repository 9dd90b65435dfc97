// Интерфейсы провайдера через которые работает всё приложение.

package llm

import (
	"context"

	"github.com/ilkoid/pi-llama/pkg/tools"
)

// Provider — non-streaming completion с поддержкой tool calling.
type Provider interface {
	// Generate отправляет контекст и каталог инструментов и возвращает
	// assistant-сообщение: либо текст, либо список ToolCalls.
	Generate(ctx context.Context, messages []Message, defs []tools.ToolDefinition, opts ...GenerateOption) (Message, error)
}

// Streamer — streaming completion без инструментов.
type Streamer interface {
	// Stream блокируется до конца потока и сообщает о результате
	// только через колбэки. Ровно один из OnComplete/OnError вызывается
	// ровно один раз.
	Stream(ctx context.Context, req StreamRequest, cb StreamCallbacks)
}

// Embedder строит векторное представление текста.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
