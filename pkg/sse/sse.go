// Package sse разбирает поток Server-Sent Events от OpenAI-совместимого
// completion endpoint и извлекает из него текстовые токены.
//
// Сетевые чанки режутся на строки по '\n', незавершённая строка
// переносится в следующий чанк. Каждая строка обрезается по пробелам,
// пустые строки пропускаются. Распознаются только строки вида
//
//	data: {"choices":[{"delta":{"content":"..."}}]}
//
// Маркер `data: [DONE]`, битый JSON и чанки без content молча игнорируются.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	// readBufferSize — размер буфера чтения тела ответа.
	readBufferSize = 32 * 1024
)

// completionChunk — минимальная форма streaming чанка chat completions.
type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ParseLine извлекает токен из одной SSE строки.
//
// Возвращает ("", false) для всего, что не является data-строкой
// с непустым choices[0].delta.content: комментарии, event:/id: поля,
// [DONE], невалидный JSON, чанки без choices.
func ParseLine(line string) (string, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}

	payload := line[len(dataPrefix):]
	if payload == doneSentinel {
		return "", false
	}

	var chunk completionChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", false
	}

	if len(chunk.Choices) == 0 {
		return "", false
	}
	content := chunk.Choices[0].Delta.Content
	if content == nil || *content == "" {
		return "", false
	}

	return *content, true
}

// Decoder превращает произвольно нарезанные байтовые чанки в токены.
//
// Результат не зависит от того, как поток был нарезан на чанки.
// Нулевое значение готово к использованию. Не thread-safe.
type Decoder struct {
	pending []byte
}

// Feed добавляет чанк и возвращает токены всех строк, завершённых '\n'.
//
// Хвост без '\n' остаётся в буфере до следующего Feed или Flush.
func (d *Decoder) Feed(chunk []byte) []string {
	d.pending = append(d.pending, chunk...)

	var tokens []string
	consumed := 0
	for {
		i := bytes.IndexByte(d.pending[consumed:], '\n')
		if i < 0 {
			break
		}
		if tok, ok := parseRaw(d.pending[consumed : consumed+i]); ok {
			tokens = append(tokens, tok)
		}
		consumed += i + 1
	}

	if consumed > 0 {
		d.pending = append(d.pending[:0:0], d.pending[consumed:]...)
	}

	return tokens
}

// Flush разбирает остаток буфера как последнюю строку потока.
func (d *Decoder) Flush() []string {
	rest := d.pending
	d.pending = nil

	if tok, ok := parseRaw(rest); ok {
		return []string{tok}
	}
	return nil
}

// Pending возвращает количество байт, ожидающих завершения строки.
func (d *Decoder) Pending() int {
	return len(d.pending)
}

// Scan читает r до EOF и вызывает onToken для каждого токена по порядку.
//
// Остаток без завершающего '\n' обрабатывается после EOF.
// При отмене ctx возвращает ctx.Err(); ошибки чтения возвращаются как есть.
func Scan(ctx context.Context, r io.Reader, onToken func(string)) error {
	var dec Decoder
	buf := make([]byte, readBufferSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			for _, tok := range dec.Feed(buf[:n]) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				onToken(tok)
			}
		}

		if err == io.EOF {
			break
		}
		if err != nil {
			// Тело ответа закрывается при отмене запроса, поэтому
			// отмену контекста отдаём приоритетно.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
	}

	for _, tok := range dec.Flush() {
		onToken(tok)
	}
	return nil
}

func parseRaw(raw []byte) (string, bool) {
	line := strings.TrimSpace(string(raw))
	if line == "" {
		return "", false
	}
	return ParseLine(line)
}
