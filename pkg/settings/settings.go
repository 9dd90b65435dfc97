// Package settings хранит пользовательские настройки голоса.
//
// Настройки сериализуются в JSON и лежат в key-value хранилище под
// ключом StorageKey. Испорченное значение не является ошибкой:
// возвращаются значения по умолчанию.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ilkoid/pi-llama/pkg/utils"
	"github.com/ilkoid/pi-llama/pkg/voice"
)

// StorageKey — ключ настроек голоса в хранилище.
const StorageKey = "pi-llama-voice-settings"

// ErrNotFound — ключа нет в хранилище.
var ErrNotFound = errors.New("settings key not found")

// Settings — настройки голосового вывода.
type Settings struct {
	AutoPlay bool        `json:"autoPlay"`
	Voice    voice.Voice `json:"voice"`
}

// Defaults возвращает настройки по умолчанию: автопроигрывание, голос alloy.
func Defaults() Settings {
	return Settings{AutoPlay: true, Voice: voice.DefaultVoice}
}

// KV — минимальное key-value хранилище строк.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Repository читает и пишет Settings поверх KV.
//
// Настройки читаются из хранилища один раз и кэшируются; Save обновляет
// и кэш, и хранилище. Thread-safe.
type Repository struct {
	mu     sync.Mutex
	kv     KV
	cached *Settings
}

// NewRepository создаёт репозиторий настроек.
func NewRepository(kv KV) *Repository {
	return &Repository{kv: kv}
}

// Load возвращает сохранённые настройки.
//
// Отсутствующий ключ, невалидный JSON или неизвестный голос дают
// Defaults() без ошибки. Ошибка возвращается только при сбое хранилища.
func (r *Repository) Load(ctx context.Context) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadLocked(ctx)
}

func (r *Repository) loadLocked(ctx context.Context) (Settings, error) {
	if r.cached != nil {
		return *r.cached, nil
	}

	raw, err := r.kv.Get(ctx, StorageKey)
	if errors.Is(err, ErrNotFound) {
		s := Defaults()
		r.cached = &s
		return s, nil
	}
	if err != nil {
		return Defaults(), fmt.Errorf("load settings: %w", err)
	}

	s := decode(raw)
	r.cached = &s
	return s, nil
}

// Save сохраняет настройки целиком.
func (r *Repository) Save(ctx context.Context, s Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(ctx, s)
}

func (r *Repository) saveLocked(ctx context.Context, s Settings) error {
	if !s.Voice.Valid() {
		return fmt.Errorf("%w: %q", voice.ErrInvalidVoice, s.Voice)
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := r.kv.Set(ctx, StorageKey, string(raw)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	r.cached = &s

	utils.Debug("Settings saved", "auto_play", s.AutoPlay, "voice", s.Voice)
	return nil
}

// Update загружает настройки, применяет fn и сохраняет результат.
func (r *Repository) Update(ctx context.Context, fn func(*Settings)) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.loadLocked(ctx)
	if err != nil {
		return s, err
	}
	fn(&s)
	if err := r.saveLocked(ctx, s); err != nil {
		return s, err
	}
	return s, nil
}

// SetAutoPlay включает или выключает автопроигрывание.
func (r *Repository) SetAutoPlay(ctx context.Context, on bool) (Settings, error) {
	return r.Update(ctx, func(s *Settings) { s.AutoPlay = on })
}

// SetVoice меняет голос.
func (r *Repository) SetVoice(ctx context.Context, v voice.Voice) (Settings, error) {
	if !v.Valid() {
		return Settings{}, fmt.Errorf("%w: %q", voice.ErrInvalidVoice, v)
	}
	return r.Update(ctx, func(s *Settings) { s.Voice = v })
}

func decode(raw string) Settings {
	// Поля, отсутствующие в JSON, берутся из Defaults.
	s := Defaults()
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		utils.Warn("Corrupt settings, using defaults", "error", err)
		return Defaults()
	}
	if !s.Voice.Valid() {
		utils.Warn("Unknown voice in settings, using default", "voice", s.Voice)
		s.Voice = voice.DefaultVoice
	}
	return s
}
