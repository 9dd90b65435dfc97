package voice

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ilkoid/pi-llama/pkg/utils"
)

// Synthesizer — источник озвучки.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, v Voice) ([]byte, error)
}

// Archiver сохраняет озвучку во внешнее хранилище.
type Archiver interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Speaker озвучивает ответы: синтез, сохранение на диск, архив и
// проигрывание внешним плеером.
type Speaker struct {
	synth   Synthesizer
	outDir  string
	player  []string
	archive Archiver
	now     func() time.Time
}

// NewSpeaker создаёт Speaker. player — команда с аргументами, к которой
// дописывается путь к файлу; пустая строка отключает проигрывание.
func NewSpeaker(synth Synthesizer, outDir, player string) *Speaker {
	return &Speaker{
		synth:  synth,
		outDir: outDir,
		player: strings.Fields(player),
		now:    time.Now,
	}
}

// SetArchive подключает архив (nil отключает).
func (s *Speaker) SetArchive(a Archiver) {
	s.archive = a
}

// Speak синтезирует text голосом v и возвращает путь к mp3.
func (s *Speaker) Speak(ctx context.Context, text string, v Voice) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}

	audio, err := s.synth.Synthesize(ctx, text, v)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s.mp3", s.now().UTC().Format("20060102-150405"), uuid.NewString()[:8])
	path := filepath.Join(s.outDir, name)
	if err := os.WriteFile(path, audio, 0o600); err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}

	if s.archive != nil {
		key := "tts/" + name
		if _, err := s.archive.Upload(ctx, key, audio, "audio/mpeg"); err != nil {
			utils.Warn("Audio archive upload failed", "key", key, "error", err)
		}
	}

	if len(s.player) > 0 {
		args := append(append([]string(nil), s.player[1:]...), path)
		cmd := exec.CommandContext(ctx, s.player[0], args...)
		if err := cmd.Run(); err != nil {
			return path, fmt.Errorf("play audio: %w", err)
		}
	}

	return path, nil
}
