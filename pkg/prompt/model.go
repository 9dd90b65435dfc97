// Package prompt загружает системные промпты из YAML файла.
//
// Формат файла:
//
//	system: |
//	  You are a helpful assistant. Today is {{.Date}}.
//	tools_system: |
//	  You can call: {{join .Tools ", "}}.
//
// Пустое поле оставляет промпт из конфигурации.
package prompt

import "time"

// PromptFile описывает структуру YAML-файла с промптами
type PromptFile struct {
	System      string `yaml:"system"`       // Промпт режима plain
	ToolsSystem string `yaml:"tools_system"` // Промпт режима tools
}

// Vars — данные для шаблонов промптов.
type Vars struct {
	Title   string
	Date    string // 2006-01-02
	Weekday string
	Tools   []string
}

// NewVars заполняет дату из now.
func NewVars(title string, now time.Time, tools []string) Vars {
	return Vars{
		Title:   title,
		Date:    now.Format("2006-01-02"),
		Weekday: now.Weekday().String(),
		Tools:   tools,
	}
}
