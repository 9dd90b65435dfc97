// Package thinking разделяет поток токенов модели на ответ и
// рассуждения, обёрнутые в теги <think>...</think>.
//
// Теги могут быть разрезаны между токенами произвольным образом,
// поэтому хвост буфера, совпадающий с началом ожидаемого тега,
// удерживается до следующего токена.
//
// Пример:
//
//	st := thinking.New()
//	for _, tok := range []string{"<thi", "nk>plan</th", "ink>Answer"} {
//	    st = thinking.Step(st, tok)
//	}
//	res := thinking.Finalize(st) // {Text: "Answer", Thinking: "plan"}
package thinking

import "strings"

const (
	OpenTag  = "<think>"
	CloseTag = "</think>"
)

// State — состояние разбора потока.
//
// State — значение: Step возвращает новое состояние, не изменяя старое.
// Buffer содержит только возможное начало ожидаемого тега и никогда не
// длиннее этого тега.
type State struct {
	Buffer     string
	InThinking bool
	Thinking   string
	Text       string
}

// Result — итог разбора.
type Result struct {
	Text     string
	Thinking string
}

// New возвращает пустое состояние: режим ответа, без накопленного текста.
func New() State {
	return State{}
}

// Step добавляет токен и переносит в Text/Thinking всё, что уже
// однозначно относится к одному из каналов.
func Step(s State, token string) State {
	s.Buffer += token

	for {
		tag := s.expectedTag()

		if idx := strings.Index(s.Buffer, tag); idx >= 0 {
			s = s.commit(s.Buffer[:idx])
			s.Buffer = s.Buffer[idx+len(tag):]
			s.InThinking = !s.InThinking
			continue
		}

		if n := PartialTagLen(s.Buffer, tag); n > 0 {
			s = s.commit(s.Buffer[:len(s.Buffer)-n])
			s.Buffer = s.Buffer[len(s.Buffer)-n:]
			return s
		}

		s = s.commit(s.Buffer)
		s.Buffer = ""
		return s
	}
}

// PartialTagLen возвращает длину k (1 <= k < len(tag)), при которой
// последние k байт buf совпадают с первыми k байтами tag, иначе 0.
//
// Для <think> и </think> подходящее k всегда не больше одного:
// '<' встречается в этих тегах только первым символом.
func PartialTagLen(buf, tag string) int {
	for k := 1; k < len(tag) && k <= len(buf); k++ {
		if buf[len(buf)-k:] == tag[:k] {
			return k
		}
	}
	return 0
}

// Finalize завершает поток: нераспознанный остаток буфера дописывается
// в текущий канал, оба канала обрезаются по пробелам.
//
// Незакрытый <think> оставляет весь хвост в Thinking.
func Finalize(s State) Result {
	s = s.commit(s.Buffer)
	return Result{
		Text:     strings.TrimSpace(s.Text),
		Thinking: strings.TrimSpace(s.Thinking),
	}
}

// Split разбирает готовую строку целиком.
func Split(text string) Result {
	return Finalize(Step(New(), text))
}

func (s State) expectedTag() string {
	if s.InThinking {
		return CloseTag
	}
	return OpenTag
}

func (s State) commit(fragment string) State {
	if fragment == "" {
		return s
	}
	if s.InThinking {
		s.Thinking += fragment
	} else {
		s.Text += fragment
	}
	return s
}
