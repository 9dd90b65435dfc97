// Базовые типы - универсальный язык общения с completion endpoint.
package llm

// Role — роль автора сообщения в контексте модели.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message — одно сообщение контекста.
//
// ToolCalls заполняется только у assistant-сообщений, запросивших
// инструменты. ToolCallID — только у tool-сообщений с результатом.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall — запрос модели на вызов инструмента.
//
// Args — сырой JSON аргументов, как его вернула модель.
type ToolCall struct {
	ID   string
	Name string
	Args string
}

// HasToolCalls сообщает, запросила ли модель инструменты.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// StripToolCalls возвращает копию контекста без tool_calls у assistant
// сообщений. Используется для финального streaming запроса.
func StripToolCalls(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = Message{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
	}
	return out
}
