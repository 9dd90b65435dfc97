package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ilkoid/pi-llama/pkg/chain"
	"github.com/ilkoid/pi-llama/pkg/llm"
	"github.com/ilkoid/pi-llama/pkg/utils"
)

// Recorder пишет трейс каждой реплики в отдельный JSON файл.
//
// Реализует chain.Observer. Start открывает трейс, OnFinish сохраняет
// его и сбрасывает состояние. Уведомления без Start игнорируются.
//
// Потокобезопасен.
type Recorder struct {
	mu sync.Mutex

	config RecorderConfig
	now    func() time.Time

	trace    *Trace
	current  *Iteration
	iterAt   time.Time
	visited  map[string]struct{}
	lastPath string
}

var _ chain.Observer = (*Recorder)(nil)

// RecorderConfig конфигурация для создания Recorder.
type RecorderConfig struct {
	// LogsDir — директория для трейсов
	LogsDir string

	// IncludeToolArgs — включать аргументы инструментов
	IncludeToolArgs bool

	// IncludeToolResults — включать результаты инструментов
	IncludeToolResults bool

	// MaxResultSize — максимальный размер результата, 0 = без ограничений
	MaxResultSize int
}

// NewRecorder создаёт Recorder. Если LogsDir не существует, создаёт её.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.LogsDir != "" {
		if err := os.MkdirAll(cfg.LogsDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create trace directory: %w", err)
		}
	}
	return &Recorder{config: cfg, now: time.Now}, nil
}

// Start начинает трейс новой реплики. Незавершённый трейс отбрасывается.
func (r *Recorder) Start(sessionID, mode, query string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trace = &Trace{
		RunID:     uuid.NewString(),
		SessionID: sessionID,
		Timestamp: r.now(),
		Mode:      mode,
		UserQuery: query,
	}
	r.current = nil
	r.visited = make(map[string]struct{})
}

// OnIterationStart закрывает предыдущую итерацию и открывает новую.
func (r *Recorder) OnIterationStart(iteration int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.trace == nil {
		return
	}
	r.endIteration()
	r.current = &Iteration{Number: iteration}
	r.iterAt = r.now()
}

// OnToolCall добавляет вызов в текущую итерацию.
func (r *Recorder) OnToolCall(call llm.ToolCall) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return
	}

	exec := ToolExecution{Name: call.Name}
	if r.config.IncludeToolArgs {
		exec.Args = call.Args
	}
	r.current.ToolsExecuted = append(r.current.ToolsExecuted, exec)
	r.visited[call.Name] = struct{}{}
}

// OnToolResult дописывает результат к последнему вызову с этим именем.
func (r *Recorder) OnToolResult(name, result string, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return
	}

	for i := len(r.current.ToolsExecuted) - 1; i >= 0; i-- {
		exec := &r.current.ToolsExecuted[i]
		if exec.Name != name {
			continue
		}
		exec.Duration = duration.Milliseconds()
		if r.config.IncludeToolResults {
			exec.Result, exec.ResultTruncated = truncateString(result, r.config.MaxResultSize)
		}
		return
	}
}

// OnFinish сохраняет трейс. Ошибка записи только логируется.
func (r *Recorder) OnFinish(result chain.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.trace == nil {
		return
	}
	r.endIteration()

	t := r.trace
	t.Duration = r.now().Sub(t.Timestamp).Milliseconds()
	t.Outcome = result.Outcome.String()
	t.FinalAnswer = result.Answer.Text
	t.Thinking = result.Answer.Thinking
	if result.Err != nil {
		t.Error = result.Err.Error()
	}
	r.buildSummary()

	path, err := r.save()
	if err != nil {
		utils.Warn("Failed to save trace", "run_id", t.RunID, "error", err)
	} else {
		r.lastPath = path
		utils.Debug("Trace saved", "path", path, "outcome", t.Outcome)
	}

	r.trace = nil
	r.current = nil
}

// LastPath возвращает путь к последнему сохранённому трейсу.
func (r *Recorder) LastPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPath
}

func (r *Recorder) endIteration() {
	if r.current == nil {
		return
	}
	r.current.Duration = r.now().Sub(r.iterAt).Milliseconds()
	r.trace.Iterations = append(r.trace.Iterations, *r.current)
	r.current = nil
}

// buildSummary формирует агрегированную статистику.
func (r *Recorder) buildSummary() {
	summary := Summary{TotalIterations: len(r.trace.Iterations)}

	for tool := range r.visited {
		summary.VisitedTools = append(summary.VisitedTools, tool)
	}
	slices.Sort(summary.VisitedTools)

	for _, iter := range r.trace.Iterations {
		for _, tool := range iter.ToolsExecuted {
			summary.TotalToolsExecuted++
			summary.TotalToolDuration += tool.Duration
		}
	}

	r.trace.Summary = summary
}

func (r *Recorder) save() (string, error) {
	data, err := json.MarshalIndent(r.trace, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal trace: %w", err)
	}

	name := fmt.Sprintf("trace_%s_%s.json", r.trace.Timestamp.Format("20060102_150405"), r.trace.RunID[:8])
	path := filepath.Join(r.config.LogsDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write trace: %w", err)
	}
	return path, nil
}

// truncateString обрезает s до maxSize байт, 0 = без ограничений.
func truncateString(s string, maxSize int) (string, bool) {
	if maxSize <= 0 || len(s) <= maxSize {
		return s, false
	}
	return s[:maxSize] + "... (truncated)", true
}
