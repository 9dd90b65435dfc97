// Package voice — распознавание и синтез речи: Whisper (файл целиком),
// Vosk (live поток по WebSocket) и TTS.
package voice

import (
	"errors"
	"fmt"
	"strings"
)

// Voice — голос TTS.
type Voice string

const (
	Alloy   Voice = "alloy"
	Echo    Voice = "echo"
	Fable   Voice = "fable"
	Onyx    Voice = "onyx"
	Nova    Voice = "nova"
	Shimmer Voice = "shimmer"

	DefaultVoice = Alloy
)

// ErrInvalidVoice — неизвестное имя голоса.
var ErrInvalidVoice = errors.New("invalid voice")

// Voices возвращает все голоса в фиксированном порядке.
func Voices() []Voice {
	return []Voice{Alloy, Echo, Fable, Onyx, Nova, Shimmer}
}

// Valid сообщает, поддерживается ли голос.
func (v Voice) Valid() bool {
	for _, known := range Voices() {
		if v == known {
			return true
		}
	}
	return false
}

// ParseVoice разбирает имя голоса без учёта регистра.
func ParseVoice(s string) (Voice, error) {
	v := Voice(strings.ToLower(strings.TrimSpace(s)))
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidVoice, s)
	}
	return v, nil
}
