package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Режимы работы чата.
const (
	ModeTools = "tools" // tool-calling цикл + финальный streaming ответ
	ModePlain = "plain" // только streaming, без инструментов
)

const (
	DefaultSystemPrompt = "You are Qwen3, a helpful and knowledgeable AI assistant. " +
		"You excel at reasoning, coding, math, and creative tasks. Be helpful, accurate, and concise."

	DefaultToolsSystemPrompt = `You are Qwen3, a helpful AI assistant with access to tools. Use the available tools when appropriate to answer user questions. Be concise.

MEMORY INSTRUCTIONS:
- When the user shares personal preferences, facts about themselves, or information worth remembering, use the save_memory tool to store it.
- When you need to recall something about the user (their name, preferences, past information), use the recall_memories tool first.
- Examples of things to save: name, preferences, favorite topics, important facts they've shared.
- Always acknowledge when you've saved a memory.`
)

// AppConfig — корневая структура конфигурации.
// Она зеркалит структуру config.yaml.
type AppConfig struct {
	LLM     LLMConfig     `yaml:"llm"`
	Chat    ChatConfig    `yaml:"chat"`
	Voice   VoiceConfig   `yaml:"voice"`
	Memory  MemoryConfig  `yaml:"memory"`
	Storage StorageConfig `yaml:"storage"`
	S3      S3Config      `yaml:"s3"`
	App     AppSpecific   `yaml:"app"`
}

// LLMConfig — OpenAI-совместимый completion endpoint (llama-server за прокси).
type LLMConfig struct {
	BaseURL        string        `yaml:"base_url"` // Без суффикса /v1
	APIKey         string        `yaml:"api_key"`  // Поддерживает ${VAR}
	Model          string        `yaml:"model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	MaxTokens      int           `yaml:"max_tokens"`      // Для plain режима
	ToolMaxTokens  int           `yaml:"tool_max_tokens"` // Для tool-calling цикла
	Temperature    float64       `yaml:"temperature"`
	Timeout        time.Duration `yaml:"timeout"` // Только для non-streaming запросов; 0 = без таймаута
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *LLMConfig) GetDefaults() LLMConfig {
	result := *c

	if result.BaseURL == "" {
		result.BaseURL = "http://localhost:3080"
	}
	if result.Model == "" {
		result.Model = "qwen"
	}
	if result.EmbeddingModel == "" {
		result.EmbeddingModel = result.Model
	}
	if result.MaxTokens == 0 {
		result.MaxTokens = 512
	}
	if result.ToolMaxTokens == 0 {
		result.ToolMaxTokens = 512
	}
	if result.Temperature == 0 {
		result.Temperature = 0.7
	}

	return result
}

// ChatConfig — поведение диалога.
type ChatConfig struct {
	Mode              string        `yaml:"mode"` // "tools" | "plain"
	SystemPrompt      string        `yaml:"system_prompt"`
	ToolsSystemPrompt string        `yaml:"tools_system_prompt"`
	HistoryWindow     int           `yaml:"history_window"`      // Сколько прошлых user/bot реплик уходит в контекст
	DisplayWindow     int           `yaml:"display_window"`      // Сколько записей транскрипта показывать
	MaxToolIterations int           `yaml:"max_tool_iterations"` // Ограничение tool-calling цикла
	ToolTimeout       time.Duration `yaml:"tool_timeout"`
	PromptFile        string        `yaml:"prompt_file"` // YAML с шаблонами system / tools_system; перекрывает промпты выше
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *ChatConfig) GetDefaults() ChatConfig {
	result := *c

	if result.Mode == "" {
		result.Mode = ModeTools
	}
	if result.SystemPrompt == "" {
		result.SystemPrompt = DefaultSystemPrompt
	}
	if result.ToolsSystemPrompt == "" {
		result.ToolsSystemPrompt = DefaultToolsSystemPrompt
	}
	if result.HistoryWindow == 0 {
		result.HistoryWindow = 6
	}
	if result.DisplayWindow == 0 {
		result.DisplayWindow = 30
	}
	if result.MaxToolIterations == 0 {
		result.MaxToolIterations = 5
	}
	if result.ToolTimeout == 0 {
		result.ToolTimeout = 30 * time.Second
	}

	return result
}

// ActivePrompt возвращает системный промпт для текущего режима.
func (c ChatConfig) ActivePrompt() string {
	if c.Mode == ModePlain {
		return c.SystemPrompt
	}
	return c.ToolsSystemPrompt
}

// VoiceConfig — Whisper STT, TTS и Vosk live-распознавание.
type VoiceConfig struct {
	BaseURL    string `yaml:"base_url"`    // Прокси с /whisper/asr и /v1/audio/speech
	VoskURL    string `yaml:"vosk_url"`    // ws://host/vosk/
	Voice      string `yaml:"voice"`       // Голос TTS по умолчанию
	RateLimit  int    `yaml:"rate_limit"`  // Запросов в минуту
	BurstLimit int    `yaml:"burst_limit"` // Burst для rate limiter
	Timeout    string `yaml:"timeout"`     // Timeout для HTTP запросов (например, "60s")
	OutputDir  string `yaml:"output_dir"`  // Куда сохранять синтезированный звук
	Player     string `yaml:"player"`      // Команда проигрывания mp3 (например, "mpg123 -q"); пусто = только сохранять
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
// baseURL используется, если voice.base_url не задан.
func (c *VoiceConfig) GetDefaults(baseURL string) VoiceConfig {
	result := *c

	if result.BaseURL == "" {
		result.BaseURL = baseURL
	}
	if result.VoskURL == "" {
		result.VoskURL = "ws://localhost:3080/vosk/"
	}
	if result.Voice == "" {
		result.Voice = "alloy"
	}
	if result.RateLimit == 0 {
		result.RateLimit = 60
	}
	if result.BurstLimit == 0 {
		result.BurstLimit = 5
	}
	if result.Timeout == "" {
		result.Timeout = "60s"
	}
	if result.OutputDir == "" {
		result.OutputDir = "audio"
	}

	return result
}

// TimeoutDuration парсит Timeout; при ошибке возвращает 60s.
func (c VoiceConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// MemoryConfig — сервис долговременной памяти.
type MemoryConfig struct {
	URL                 string  `yaml:"url"`     // Адрес memory-api для клиента; пусто = встроенное хранилище
	DBPath              string  `yaml:"db_path"` // SQLite файл для встроенного хранилища и memory-api
	Listen              string  `yaml:"listen"`  // Адрес HTTP сервера memory-api
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	SearchLimit         int     `yaml:"search_limit"`
	ListLimit           int     `yaml:"list_limit"`
	RateLimit           int     `yaml:"rate_limit"`
	BurstLimit          int     `yaml:"burst_limit"`
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *MemoryConfig) GetDefaults() MemoryConfig {
	result := *c

	if result.DBPath == "" {
		result.DBPath = "memories.db"
	}
	if result.Listen == "" {
		result.Listen = ":3000"
	}
	if result.SimilarityThreshold == 0 {
		result.SimilarityThreshold = 0.3
	}
	if result.SearchLimit == 0 {
		result.SearchLimit = 5
	}
	if result.ListLimit == 0 {
		result.ListLimit = 50
	}
	if result.RateLimit == 0 {
		result.RateLimit = 120
	}
	if result.BurstLimit == 0 {
		result.BurstLimit = 10
	}

	return result
}

// StorageConfig — локальное хранилище настроек.
type StorageConfig struct {
	SettingsDB string `yaml:"settings_db"` // SQLite файл; ":memory:" для тестов
}

// S3Config — настройки объектного хранилища для архива аудио.
// Пустой endpoint отключает архив.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// Enabled сообщает, настроен ли архив.
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// AppSpecific — общие настройки приложения.
type AppSpecific struct {
	Debug  bool   `yaml:"debug"`
	Title  string `yaml:"title"`
	Theme  string `yaml:"theme"`   // Цветовая схема TUI: default | light | dracula
	LogDir string `yaml:"log_dir"` // Каталог лог-файлов
	Trace  bool   `yaml:"trace"`   // JSON трейс каждой реплики в <log_dir>/traces
}

// Default возвращает конфигурацию без файла: все поля по умолчанию.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.applyDefaults()
	return cfg
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
func Load(path string) (*AppConfig, error) {
	// 1. Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	// 2. Читаем файл целиком
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(rawBytes)
}

// Parse разбирает YAML из памяти: подстановка ENV, дефолты, валидация.
func Parse(raw []byte) (*AppConfig, error) {
	// os.ExpandEnv заменяет ${VAR} или $VAR на значение из системы.
	contentWithEnv := os.ExpandEnv(string(raw))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault читает path, если файл существует, иначе возвращает Default().
func LoadOrDefault(path string) (*AppConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}

func (c *AppConfig) applyDefaults() {
	c.LLM = c.LLM.GetDefaults()
	c.Chat = c.Chat.GetDefaults()
	c.Voice = c.Voice.GetDefaults(c.LLM.BaseURL)
	c.Memory = c.Memory.GetDefaults()
	if c.Storage.SettingsDB == "" {
		c.Storage.SettingsDB = "settings.db"
	}
	if c.App.Title == "" {
		c.App.Title = "Pi-Llama"
	}
	if c.App.Theme == "" {
		c.App.Theme = "default"
	}
	if c.App.LogDir == "" {
		c.App.LogDir = "logs"
	}
}

// validate проверяет критические поля.
func (c *AppConfig) validate() error {
	if err := validateURL("llm.base_url", c.LLM.BaseURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("voice.base_url", c.Voice.BaseURL, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("voice.vosk_url", c.Voice.VoskURL, "ws", "wss"); err != nil {
		return err
	}
	if c.Memory.URL != "" {
		if err := validateURL("memory.url", c.Memory.URL, "http", "https"); err != nil {
			return err
		}
	}
	if c.Chat.Mode != ModeTools && c.Chat.Mode != ModePlain {
		return fmt.Errorf("chat.mode must be %q or %q, got %q", ModeTools, ModePlain, c.Chat.Mode)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be in [0, 2], got %v", c.LLM.Temperature)
	}
	if c.Chat.MaxToolIterations < 1 {
		return fmt.Errorf("chat.max_tool_iterations must be positive")
	}
	if c.Chat.HistoryWindow < 0 || c.Chat.DisplayWindow < 1 {
		return fmt.Errorf("chat.history_window and chat.display_window must be positive")
	}
	if c.Memory.SimilarityThreshold < 0 || c.Memory.SimilarityThreshold > 1 {
		return fmt.Errorf("memory.similarity_threshold must be in [0, 1]")
	}
	if c.S3.Endpoint != "" && c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when s3.endpoint is set")
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid url: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%s must be an absolute %v url, got %q", field, schemes, raw)
}
