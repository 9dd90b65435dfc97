package chain

import (
	"github.com/ilkoid/pi-llama/pkg/llm"
	"github.com/ilkoid/pi-llama/pkg/transcript"
)

// BuildContext собирает контекст модели: системный промпт, последние
// window реплик пользователя и бота из истории и текущая реплика.
//
// Вызовы и результаты инструментов из прошлых сообщений в контекст
// не попадают. Пустой system пропускается.
func BuildContext(system string, history []transcript.Message, window int, userText string) []llm.Message {
	var turns []llm.Message
	for _, m := range history {
		switch v := m.(type) {
		case transcript.UserMessage:
			turns = append(turns, llm.Message{Role: llm.RoleUser, Content: v.Text})
		case transcript.BotMessage:
			turns = append(turns, llm.Message{Role: llm.RoleAssistant, Content: v.Text})
		}
	}
	if window >= 0 && len(turns) > window {
		turns = turns[len(turns)-window:]
	}

	out := make([]llm.Message, 0, len(turns)+2)
	if system != "" {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: system})
	}
	out = append(out, turns...)
	out = append(out, llm.Message{Role: llm.RoleUser, Content: userText})
	return out
}
