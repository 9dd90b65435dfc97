// Package chain — цикл вызова инструментов вокруг completion endpoint.
//
// Каждая итерация делает один non-streaming запрос с каталогом
// инструментов. Если модель запросила инструменты, они выполняются
// последовательно, результаты добавляются в контекст и транскрипт,
// и цикл повторяется. Если нет, тот же контекст отправляется
// streaming запросом, и ответ выводится в транскрипт по токенам.
//
// Правила:
//   - Rule 1: инструменты работают по контракту "Raw In, String Out"
//   - Rule 4: LLM вызывается через llm.Provider / llm.Streamer
//   - Rule 7: все ошибки заканчиваются записью в транскрипте, нет panic
//   - Rule 11: уважает context.Context
package chain

import (
	"errors"
	"fmt"

	"github.com/ilkoid/pi-llama/pkg/llm"
	"github.com/ilkoid/pi-llama/pkg/thinking"
)

// TooManyIterationsText — текст бота при исчерпании итераций.
const TooManyIterationsText = "Error: Too many tool iterations"

// ErrTooManyIterations — модель не дала ответа за MaxIterations итераций.
var ErrTooManyIterations = errors.New("too many tool iterations")

const (
	DefaultMaxIterations = 5
	DefaultMaxTokens     = 512
	DefaultTemperature   = 0.7
)

// LoopConfig — параметры цикла.
type LoopConfig struct {
	// MaxIterations — максимум non-streaming запросов на одно сообщение.
	MaxIterations int

	// MaxTokens и Temperature используются и для запросов с инструментами,
	// и для финального streaming ответа.
	MaxTokens   int
	Temperature float64
}

// DefaultLoopConfig возвращает параметры по умолчанию: 5 итераций, 512 токенов, 0.7.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxIterations: DefaultMaxIterations,
		MaxTokens:     DefaultMaxTokens,
		Temperature:   DefaultTemperature,
	}
}

func (c LoopConfig) withDefaults() LoopConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	return c
}

// Outcome — чем закончилась обработка сообщения.
type Outcome int

const (
	// OutcomeFinalAnswer — ответ получен и выведен полностью.
	OutcomeFinalAnswer Outcome = iota

	// OutcomeIterationCap — модель вызывала инструменты MaxIterations раз подряд.
	OutcomeIterationCap

	// OutcomeFailed — сетевая или HTTP ошибка.
	OutcomeFailed

	// OutcomeCanceled — контекст отменён.
	OutcomeCanceled
)

// String возвращает строковое представление Outcome (для логов и событий).
func (o Outcome) String() string {
	switch o {
	case OutcomeFinalAnswer:
		return "final_answer"
	case OutcomeIterationCap:
		return "iteration_cap"
	case OutcomeFailed:
		return "failed"
	case OutcomeCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("Unknown(%d)", int(o))
	}
}

// Result — итог обработки одного сообщения пользователя.
type Result struct {
	// Iterations — сколько non-streaming запросов было сделано.
	Iterations int

	Outcome Outcome

	// Answer — финальный текст и рассуждения бота (после trim).
	Answer thinking.Result

	// BotIndex — индекс записи бота в транскрипте, -1 если её нет.
	BotIndex int

	// Context — итоговый контекст модели, включая tool сообщения.
	Context []llm.Message

	// Err — причина, если Outcome не OutcomeFinalAnswer.
	Err error
}
