// Package debug записывает трейсы обработки сообщений в JSON файлы.
//
// Один файл на одну реплику пользователя: итерации цикла инструментов,
// вызовы с аргументами и результатами, длительности, итог.
package debug

import "time"

// Trace — полный трейс обработки одной реплики.
type Trace struct {
	// RunID — уникальный идентификатор (используется в имени файла)
	RunID string `json:"run_id"`

	// SessionID — разговор, к которому относится реплика
	SessionID string `json:"session_id,omitempty"`

	// Timestamp — время начала обработки
	Timestamp time.Time `json:"timestamp"`

	// Mode — режим чата ("tools" | "plain")
	Mode string `json:"mode"`

	// UserQuery — реплика пользователя
	UserQuery string `json:"user_query"`

	// Duration — общая длительность в миллисекундах
	Duration int64 `json:"duration_ms"`

	// Iterations — итерации цикла инструментов (пусто в plain режиме)
	Iterations []Iteration `json:"iterations,omitempty"`

	// Outcome — итог: final_answer, iteration_cap, failed, canceled
	Outcome string `json:"outcome"`

	// FinalAnswer и Thinking — ответ модели после разделения
	FinalAnswer string `json:"final_answer,omitempty"`
	Thinking    string `json:"thinking,omitempty"`

	// Error — причина, если ответ не получен
	Error string `json:"error,omitempty"`

	Summary Summary `json:"summary"`
}

// Iteration — один non-streaming запрос к модели и вызванные инструменты.
type Iteration struct {
	Number        int             `json:"iteration"`
	Duration      int64           `json:"duration_ms"`
	ToolsExecuted []ToolExecution `json:"tools_executed,omitempty"`
}

// ToolExecution — один вызов инструмента.
type ToolExecution struct {
	Name string `json:"name"`

	// Args — сырой JSON аргументов от модели
	Args string `json:"args,omitempty"`

	// Result — результат (может быть обрезан по MaxResultSize)
	Result          string `json:"result,omitempty"`
	ResultTruncated bool   `json:"result_truncated,omitempty"`

	Duration int64 `json:"duration_ms"`
}

// Summary — агрегированная статистика трейса.
type Summary struct {
	TotalIterations    int      `json:"total_iterations"`
	TotalToolsExecuted int      `json:"total_tools_executed"`
	TotalToolDuration  int64    `json:"total_tool_duration_ms"`
	VisitedTools       []string `json:"visited_tools,omitempty"`
}
