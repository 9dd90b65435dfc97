package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ilkoid/pi-llama/pkg/sqlstore"
	"github.com/ilkoid/pi-llama/pkg/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	category TEXT DEFAULT 'general',
	embedding BLOB,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_category ON memories(category);
`

// timeLayout — ISO 8601 без зоны, время в UTC.
const timeLayout = "2006-01-02T15:04:05.000000"

const (
	// DefaultThreshold — минимальная близость для семантического поиска.
	DefaultThreshold = 0.3

	// TextMatchSimilarity — оценка для результатов текстового поиска.
	TextMatchSimilarity = 0.5

	DefaultSearchLimit = 5
	DefaultListLimit   = 50
)

// Store — SQLite хранилище воспоминаний.
//
// Thread-safe: database/sql сериализует доступ через пул из одного соединения.
type Store struct {
	db        *sql.DB
	embedder  Embedder
	threshold float64
	now       func() time.Time
}

var _ Backend = (*Store)(nil)

// StoreOption настраивает Store.
type StoreOption func(*Store)

// WithThreshold задаёт порог близости для семантического поиска.
func WithThreshold(t float64) StoreOption {
	return func(s *Store) {
		s.threshold = t
	}
}

// WithClock подменяет источник времени (тесты).
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// Open открывает хранилище по пути path. embedder может быть nil:
// тогда записи сохраняются без векторов, а поиск работает по тексту.
func Open(path string, embedder Embedder, opts ...StoreOption) (*Store, error) {
	db, err := sqlstore.Open(path, schema)
	if err != nil {
		return nil, fmt.Errorf("memory store: %w", err)
	}

	s := &Store{
		db:        db,
		embedder:  embedder,
		threshold: DefaultThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close закрывает базу.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save сохраняет факт вместе с embedding.
//
// Ошибка embedding не прерывает сохранение: запись остаётся без вектора.
func (s *Store) Save(ctx context.Context, content, category string) (Memory, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Memory{}, ErrEmptyContent
	}
	if category == "" {
		category = DefaultCategory
	}

	vec := s.embed(ctx, content)

	var embedding any
	if vec != nil {
		raw, err := json.Marshal(vec)
		if err != nil {
			return Memory{}, fmt.Errorf("encode embedding: %w", err)
		}
		embedding = string(raw)
	}

	now := s.now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (content, category, embedding, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		content, category, embedding, now, now)
	if err != nil {
		return Memory{}, fmt.Errorf("insert memory: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Memory{}, fmt.Errorf("insert memory: %w", err)
	}

	utils.Info("Memory saved", "id", id, "category", category, "has_embedding", vec != nil)

	return Memory{
		ID:           id,
		Content:      content,
		Category:     category,
		CreatedAt:    now,
		HasEmbedding: vec != nil,
	}, nil
}

// Search ищет воспоминания, близкие к query.
//
// Если у запроса или у записей нет векторов, используется текстовый
// поиск по подстроке (TextSearch).
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	queryVec := s.embed(ctx, query)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, category, embedding, created_at FROM memories WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		match Match
		vec   []float64
	}
	var candidates []candidate
	for rows.Next() {
		var (
			c   candidate
			raw string
		)
		if err := rows.Scan(&c.match.ID, &c.match.Content, &c.match.Category, &raw, &c.match.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &c.vec); err != nil {
			utils.Warn("Skipping memory with corrupt embedding", "id", c.match.ID, "error", err)
			continue
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}

	if queryVec == nil || len(candidates) == 0 {
		return s.TextSearch(ctx, query, limit)
	}

	results := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		sim := CosineSimilarity(queryVec, c.vec)
		if sim < s.threshold {
			continue
		}
		c.match.Similarity = round4(sim)
		results = append(results, c.match)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// TextSearch — поиск по подстроке, новые записи первыми.
func (s *Store) TextSearch(ctx context.Context, query string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, category, created_at FROM memories
		 WHERE content LIKE ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		"%"+query+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	defer rows.Close()

	results := []Match{}
	for rows.Next() {
		m := Match{Similarity: TextMatchSimilarity}
		if err := rows.Scan(&m.ID, &m.Content, &m.Category, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// List возвращает записи, новые первыми. Пустая category — все категории.
func (s *Store) List(ctx context.Context, category string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id, content, category, created_at FROM memories ORDER BY created_at DESC, id DESC LIMIT ?`
	args := []any{limit}
	if category != "" {
		query = `SELECT id, content, category, created_at FROM memories WHERE category = ? ORDER BY created_at DESC, id DESC LIMIT ?`
		args = []any{category, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	memories := []Memory{}
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.Content, &m.Category, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// Delete удаляет запись. Возвращает ErrNotFound, если её нет.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	utils.Info("Memory deleted", "id", id)
	return nil
}

func (s *Store) embed(ctx context.Context, text string) []float64 {
	if s.embedder == nil {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			utils.Warn("Embedding failed", "error", err)
		}
		return nil
	}
	if len(vec) == 0 {
		return nil
	}
	return vec
}
