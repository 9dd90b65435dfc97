package chain

import (
	"context"
	"errors"
	"time"

	"github.com/ilkoid/pi-llama/pkg/llm"
	"github.com/ilkoid/pi-llama/pkg/thinking"
	"github.com/ilkoid/pi-llama/pkg/transcript"
	"github.com/ilkoid/pi-llama/pkg/utils"
)

// StreamOptions — параметры финального streaming запроса.
type StreamOptions struct {
	MaxTokens   int
	Temperature float64
}

// StreamAnswer добавляет пустую запись бота и заполняет её по мере
// прихода токенов, разделяя рассуждения и ответ.
//
// Контекст отправляется без tool_calls. При ошибке запись бота
// получает текст "Error: <message>". При отмене уже полученный текст
// сохраняется.
func (l *ToolLoop) StreamAnswer(ctx context.Context, messages []llm.Message, gen transcript.Generation, opts StreamOptions) Result {
	return StreamAnswer(ctx, l.streamer, l.store, messages, gen, opts)
}

// StreamAnswer — то же без цикла инструментов (plain режим).
func StreamAnswer(
	ctx context.Context,
	streamer llm.Streamer,
	store *transcript.Store,
	messages []llm.Message,
	gen transcript.Generation,
	opts StreamOptions,
) Result {
	res := Result{BotIndex: -1, Context: messages}

	idx, ok := store.AppendAt(gen, transcript.BotMessage{})
	if !ok {
		res.Outcome = OutcomeCanceled
		res.Err = context.Canceled
		return res
	}
	res.BotIndex = idx

	state := thinking.New()
	tokens := 0
	start := time.Now()

	setBot := func(text, thought string) {
		store.PatchAtGen(gen, idx, func(transcript.Message) transcript.Message {
			return transcript.BotMessage{Text: text, Thinking: thought}
		})
	}

	streamer.Stream(ctx, llm.StreamRequest{
		Messages:    llm.StripToolCalls(messages),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}, llm.StreamCallbacks{
		OnToken: func(tok string) {
			tokens++
			state = thinking.Step(state, tok)
			setBot(state.Text, state.Thinking)
		},
		OnComplete: func() {
			res.Answer = thinking.Finalize(state)
			res.Outcome = OutcomeFinalAnswer
			setBot(res.Answer.Text, res.Answer.Thinking)
		},
		OnError: func(err error) {
			res.Err = err
			if errors.Is(err, context.Canceled) {
				res.Outcome = OutcomeCanceled
				res.Answer = thinking.Finalize(state)
				if res.Answer.Text == "" && res.Answer.Thinking == "" {
					res.Answer.Text = ErrorText(err)
				}
			} else {
				res.Outcome = OutcomeFailed
				res.Answer = thinking.Result{Text: ErrorText(err)}
			}
			setBot(res.Answer.Text, res.Answer.Thinking)
		},
	})

	utils.Debug("Stream finished",
		"tokens", tokens,
		"outcome", res.Outcome.String(),
		"duration_ms", time.Since(start).Milliseconds())
	return res
}
