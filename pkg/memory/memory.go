// Package memory — долговременная память о пользователе: факты,
// сохранённые моделью через save_memory, и семантический поиск по ним.
//
// Store хранит записи в SQLite вместе с embedding-векторами.
// Server отдаёт Store по HTTP (memory-api), Client ходит в него.
// И Store, и Client реализуют Backend, который используют инструменты.
package memory

import (
	"context"
	"errors"
)

// DefaultCategory присваивается записи без категории.
const DefaultCategory = "general"

var (
	// ErrNotFound — запись с таким id не существует.
	ErrNotFound = errors.New("memory not found")

	// ErrEmptyContent — попытка сохранить пустой факт.
	ErrEmptyContent = errors.New("content is required")

	// ErrEmptyQuery — поиск без запроса.
	ErrEmptyQuery = errors.New("query is required")
)

// Memory — сохранённая запись.
type Memory struct {
	ID           int64  `json:"id"`
	Content      string `json:"content"`
	Category     string `json:"category"`
	CreatedAt    string `json:"created_at"`
	HasEmbedding bool   `json:"has_embedding,omitempty"`
}

// Match — результат поиска.
type Match struct {
	ID         int64   `json:"id"`
	Content    string  `json:"content"`
	Category   string  `json:"category"`
	Similarity float64 `json:"similarity"`
	CreatedAt  string  `json:"created_at"`
}

// Backend — то, что нужно инструментам save_memory / recall_memories.
type Backend interface {
	Save(ctx context.Context, content, category string) (Memory, error)
	Search(ctx context.Context, query string, limit int) ([]Match, error)
}

// Embedder строит векторное представление текста.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
