// Контракт инструмента и JSON Schema его аргументов.

package tools

import "context"

// JSONSchema — JSON Schema объекта аргументов в формате Function Calling API.
type JSONSchema map[string]any

// ToolDefinition — то, что модель видит в списке tools.
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

// Property — один аргумент инструмента.
type Property struct {
	Type        string
	Description string
	Enum        []string // Необязательный список допустимых значений
}

// ObjectSchema собирает схему {"type":"object", ...} из описаний аргументов.
// required добавляется только если не пуст.
func ObjectSchema(props map[string]Property, required ...string) JSONSchema {
	properties := make(map[string]any, len(props))
	for name, p := range props {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[name] = prop
	}

	schema := JSONSchema{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Tool — инструмент из каталога чата.
//
// Execute получает очищенный JSON аргументов. Ошибка не уходит дальше
// Executor: она превращается в {"error": "..."} для модели.
type Tool interface {
	Definition() ToolDefinition
	Execute(ctx context.Context, argsJSON string) (string, error)
}
