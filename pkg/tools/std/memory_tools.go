package std

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ilkoid/pi-llama/pkg/memory"
	"github.com/ilkoid/pi-llama/pkg/tools"
)

// RecallLimit — сколько воспоминаний запрашивает recall_memories.
const RecallLimit = 5

var memoryCategories = []string{"preference", "personal", "general"}

// SaveMemoryTool сохраняет факт о пользователе в memory.Backend.
type SaveMemoryTool struct {
	backend memory.Backend
}

// NewSaveMemoryTool создаёт инструмент save_memory.
func NewSaveMemoryTool(backend memory.Backend) *SaveMemoryTool {
	return &SaveMemoryTool{backend: backend}
}

// Definition возвращает определение инструмента для function calling.
func (t *SaveMemoryTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "save_memory",
		Description: "Save an important fact about the user for future reference. Use this when the user shares preferences, personal information, or anything worth remembering.",
		Parameters: tools.ObjectSchema(map[string]tools.Property{
			"content": {
				Type:        "string",
				Description: `The fact or preference to remember, e.g. "User prefers dark mode" or "User's name is Alex"`,
			},
			"category": {Type: "string", Description: "Category of the memory", Enum: memoryCategories},
		}, "content"),
	}
}

type saveResult struct {
	Saved   bool   `json:"saved"`
	ID      int64  `json:"id,omitempty"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Execute сохраняет факт. Сбой backend возвращается как
// {"saved":false,"error":...}.
func (t *SaveMemoryTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Content  string `json:"content"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return tools.MarshalResult(saveResult{Error: fmt.Sprintf("invalid arguments: %v", err)})
	}
	if args.Category == "" {
		args.Category = memory.DefaultCategory
	}

	mem, err := t.backend.Save(ctx, args.Content, args.Category)
	if err != nil {
		return tools.MarshalResult(saveResult{Error: err.Error()})
	}
	return tools.MarshalResult(saveResult{Saved: true, ID: mem.ID, Content: mem.Content})
}

// RecallMemoriesTool ищет сохранённые факты.
type RecallMemoriesTool struct {
	backend memory.Backend
}

// NewRecallMemoriesTool создаёт инструмент recall_memories.
func NewRecallMemoriesTool(backend memory.Backend) *RecallMemoriesTool {
	return &RecallMemoriesTool{backend: backend}
}

// Definition возвращает определение инструмента для function calling.
func (t *RecallMemoriesTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "recall_memories",
		Description: "Search for relevant memories about the user. Use this to recall previously saved information.",
		Parameters: tools.ObjectSchema(map[string]tools.Property{
			"query": {
				Type:        "string",
				Description: `Search query to find relevant memories, e.g. "name" or "preferences"`,
			},
		}, "query"),
	}
}

type recalledMemory struct {
	Content   string  `json:"content"`
	Category  string  `json:"category"`
	Relevance float64 `json:"relevance"`
}

type recallResult struct {
	Found    bool             `json:"found"`
	Memories []recalledMemory `json:"memories,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Execute ищет до RecallLimit воспоминаний.
func (t *RecallMemoriesTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return tools.MarshalResult(recallResult{Error: fmt.Sprintf("invalid arguments: %v", err)})
	}

	matches, err := t.backend.Search(ctx, args.Query, RecallLimit)
	if err != nil {
		return tools.MarshalResult(recallResult{Error: err.Error()})
	}
	if len(matches) == 0 {
		// Пустой список, а не null: {"found":false,"memories":[]}.
		return `{"found":false,"memories":[]}`, nil
	}

	out := recallResult{Found: true, Memories: make([]recalledMemory, 0, len(matches))}
	for _, m := range matches {
		out.Memories = append(out.Memories, recalledMemory{
			Content:   m.Content,
			Category:  m.Category,
			Relevance: m.Similarity,
		})
	}
	return tools.MarshalResult(out)
}
