// Package app собирает компоненты pi-llama из конфигурации для
// переиспользования в разных контекстах (TUI, CLI).
//
// Пакет следует правилам проекта:
//   - Работает через llm.Provider / llm.Streamer интерфейсы (Правило 4)
//   - Использует tools.Registry (Правило 3)
//   - Все ошибки возвращаются, никаких panic (Правило 7)
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilkoid/pi-llama/pkg/config"
	"github.com/ilkoid/pi-llama/pkg/conversation"
	"github.com/ilkoid/pi-llama/pkg/debug"
	"github.com/ilkoid/pi-llama/pkg/llm/openai"
	"github.com/ilkoid/pi-llama/pkg/memory"
	"github.com/ilkoid/pi-llama/pkg/prompt"
	"github.com/ilkoid/pi-llama/pkg/s3storage"
	"github.com/ilkoid/pi-llama/pkg/settings"
	"github.com/ilkoid/pi-llama/pkg/tools"
	"github.com/ilkoid/pi-llama/pkg/tools/std"
	"github.com/ilkoid/pi-llama/pkg/transcript"
	"github.com/ilkoid/pi-llama/pkg/utils"
	"github.com/ilkoid/pi-llama/pkg/voice"
)

// Components содержит все компоненты приложения.
//
// TUI и CLI используют одну и ту же инициализацию.
type Components struct {
	Config     *config.AppConfig
	LLM        *openai.Client
	Memory     memory.Backend
	Tools      *tools.Registry
	Settings   *settings.Repository
	Voice      *voice.Client
	Speaker    *voice.Speaker
	Archive    *s3storage.Client // nil, если s3 не настроен
	Tracer     *debug.Recorder   // nil, если app.trace выключен
	Controller *conversation.Controller

	closers []func() error
}

// ConfigPathFinder определяет стратегию поиска пути к config.yaml.
type ConfigPathFinder interface {
	FindConfigPath() string
}

// DefaultConfigPathFinder реализует стандартную стратегию поиска config.yaml.
//
// Порядок поиска:
// 1. Флаг -config (если указан)
// 2. Текущая директория (./config.yaml)
// 3. Директория бинарника
// 4. Родительские директории (для запуска из cmd/<name>/)
type DefaultConfigPathFinder struct {
	// ConfigFlag - значение флага -config, если указан
	ConfigFlag string
}

// FindConfigPath находит путь к config.yaml.
func (f *DefaultConfigPathFinder) FindConfigPath() string {
	if f.ConfigFlag != "" {
		return resolveAbsPath(f.ConfigFlag)
	}

	candidates := []string{"config.yaml"}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), "config.yaml"))
	}
	candidates = append(candidates,
		filepath.Join("..", "config.yaml"),
		filepath.Join("..", "..", "config.yaml"),
	)

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return resolveAbsPath(p)
		}
	}

	// Возвращаем дефолтный путь (даже если не существует)
	return resolveAbsPath("config.yaml")
}

// InitializeConfig загружает конфигурацию.
//
// Если файл не найден и путь не задан флагом, используются дефолты.
// Правило 2: все настройки в YAML с поддержкой ENV-переменных.
func InitializeConfig(finder ConfigPathFinder) (*config.AppConfig, string, error) {
	cfgPath := finder.FindConfigPath()

	if f, ok := finder.(*DefaultConfigPathFinder); ok && f.ConfigFlag != "" {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config from %s: %w", cfgPath, err)
		}
		return cfg, cfgPath, nil
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config from %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}

// Option настраивает Initialize.
type Option func(*initOptions)

type initOptions struct {
	autoPlay bool
}

// WithoutAutoPlay отключает озвучку ответов контроллером независимо от
// сохранённых настроек (одноразовые CLI утилиты).
func WithoutAutoPlay() Option {
	return func(o *initOptions) {
		o.autoPlay = false
	}
}

// Initialize создаёт и связывает все компоненты приложения.
//
// Правило 6: entry points - initialization and orchestration only.
func Initialize(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*Components, error) {
	o := initOptions{autoPlay: true}
	for _, opt := range opts {
		opt(&o)
	}

	utils.Info("Initializing components",
		"llm", cfg.LLM.BaseURL,
		"model", cfg.LLM.Model,
		"mode", cfg.Chat.Mode)

	c := &Components{Config: cfg}

	// 1. LLM провайдер (Generate, Stream, Embed)
	c.LLM = openai.NewClient(cfg.LLM)

	// 2. Память: удалённый memory-api или встроенное хранилище
	mem, err := c.initMemory(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Memory = mem

	// 3. Инструменты
	registry, err := std.NewCatalog(c.Memory)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	c.Tools = registry
	utils.Info("Tools registered", "tools", registry.Names())

	if cfg.Chat.PromptFile != "" {
		if err := applyPromptFile(&cfg.Chat, cfg.App.Title, registry.Names()); err != nil {
			c.Close()
			return nil, err
		}
	}

	// 4. Настройки голоса
	kv, err := settings.OpenSQLite(cfg.Storage.SettingsDB)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}
	c.closers = append(c.closers, kv.Close)
	c.Settings = settings.NewRepository(kv)

	// 5. Голос и архив озвучки
	c.Voice = voice.NewClient(cfg.Voice)
	c.Speaker = voice.NewSpeaker(c.Voice, cfg.Voice.OutputDir, cfg.Voice.Player)

	archive, err := s3storage.New(cfg.S3)
	switch {
	case errors.Is(err, s3storage.ErrDisabled):
		utils.Debug("S3 archive disabled")
	case err != nil:
		utils.Warn("S3 archive unavailable", "error", err)
	default:
		c.Archive = archive
		c.Speaker.SetArchive(archive)
		utils.Info("S3 archive enabled", "bucket", archive.Bucket())
	}

	// 6. Контроллер диалога
	ctrlOpts := []conversation.Option{conversation.WithSettings(c.Settings)}
	if o.autoPlay {
		ctrlOpts = append(ctrlOpts, conversation.WithSpeaker(c.Speaker))
	}
	if cfg.App.Trace {
		rec, err := debug.NewRecorder(debug.RecorderConfig{
			LogsDir:            filepath.Join(cfg.App.LogDir, "traces"),
			IncludeToolArgs:    true,
			IncludeToolResults: true,
			MaxResultSize:      4000,
		})
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Tracer = rec
		ctrlOpts = append(ctrlOpts, conversation.WithTracer(rec))
	}
	c.Controller = conversation.New(conversation.Deps{
		Provider: c.LLM,
		Streamer: c.LLM,
		Executor: tools.NewExecutor(registry, cfg.Chat.ToolTimeout),
		Defs:     registry.GetDefinitions(),
		Store:    transcript.NewStore(),
	}, *cfg, ctrlOpts...)

	utils.Info("Components initialized", "session", c.Controller.SessionID())
	return c, nil
}

func (c *Components) initMemory(ctx context.Context) (memory.Backend, error) {
	cfg := c.Config.Memory

	if cfg.URL != "" {
		client := memory.NewClient(cfg.URL, cfg.RateLimit, cfg.BurstLimit, c.Config.LLM.Timeout)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Health(pingCtx); err != nil {
			utils.Warn("memory-api health check failed", "url", cfg.URL, "error", err)
		} else {
			utils.Info("memory-api reachable", "url", cfg.URL)
		}
		return client, nil
	}

	store, err := memory.Open(cfg.DBPath, c.LLM, memory.WithThreshold(cfg.SimilarityThreshold))
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}
	c.closers = append(c.closers, store.Close)
	utils.Info("Memory store opened", "path", cfg.DBPath)
	return store, nil
}

// applyPromptFile подставляет промпты из chat.prompt_file.
func applyPromptFile(chat *config.ChatConfig, title string, toolNames []string) error {
	pf, err := prompt.Load(resolveAbsPath(chat.PromptFile))
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}
	rendered, err := pf.Render(prompt.NewVars(title, time.Now(), toolNames))
	if err != nil {
		return fmt.Errorf("failed to render prompts: %w", err)
	}

	if rendered.System != "" {
		chat.SystemPrompt = rendered.System
	}
	if rendered.ToolsSystem != "" {
		chat.ToolsSystemPrompt = rendered.ToolsSystem
	}
	utils.Info("Prompts loaded", "path", chat.PromptFile)
	return nil
}

// Close освобождает ресурсы (базы данных) в обратном порядке открытия.
func (c *Components) Close() error {
	if c == nil {
		return nil
	}
	if c.Controller != nil {
		c.Controller.Cancel()
	}

	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// resolveAbsPath преобразует путь в абсолютный (если это не уже абсолютный путь).
func resolveAbsPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
