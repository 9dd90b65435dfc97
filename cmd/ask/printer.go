package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"github.com/ilkoid/pi-llama/pkg/transcript"
)

// streamPrinter печатает ответ модели по мере роста транскрипта.
//
// Транскрипт читается целиком на каждое событие, поэтому потерянные
// события (DropWhenFull) не теряют текст: печатается всё, что
// накопилось с прошлого вызова.
type streamPrinter struct {
	mu        sync.Mutex
	out       io.Writer // Ответ модели
	side      io.Writer // Рассуждения и вызовы инструментов
	think     bool
	printed   map[int]printedState
	announced int // Сколько записей уже обработано для side
}

type printedState struct {
	text     string
	thinking string
}

func newStreamPrinter(out, side io.Writer, think bool) *streamPrinter {
	return &streamPrinter{
		out:     out,
		side:    side,
		think:   think,
		printed: make(map[int]printedState),
	}
}

// Flush допечатывает новое содержимое записей msgs.
//
// msgs — весь транскрипт (Store.Snapshot), а не окно отображения:
// состояние печати привязано к абсолютному индексу записи.
func (p *streamPrinter) Flush(msgs []transcript.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, m := range msgs {
		switch msg := m.(type) {
		case transcript.BotMessage:
			st := p.printed[i]
			if p.think {
				st.thinking = p.writeDelta(p.side, msg.Thinking, st.thinking)
			}
			st.text = p.writeDelta(p.out, msg.Text, st.text)
			p.printed[i] = st

		case transcript.ToolCallMessage:
			if i >= p.announced {
				args, _ := json.Marshal(msg.Args)
				fmt.Fprintf(p.side, "🔧 %s %s\n", msg.Name, args)
			}

		case transcript.ToolResultMessage:
			if i >= p.announced {
				fmt.Fprintf(p.side, "↳ %s\n", strings.Join(strings.Fields(msg.Result), " "))
			}
		}
	}
	p.announced = max(p.announced, len(msgs))
}

// writeDelta печатает то, что добавилось к s после done.
//
// Finalize обрезает пробелы по краям, поэтому s, совпадающий с
// напечатанным без ведущих и хвостовых пробелов, считается продолжением.
// Если s не продолжает напечатанное (текст заменён на ошибку), s
// печатается целиком с новой строки.
func (p *streamPrinter) writeDelta(w io.Writer, s, done string) string {
	body := strings.TrimLeftFunc(done, unicode.IsSpace)
	switch {
	case s == done:
	case strings.HasPrefix(s, done):
		io.WriteString(w, s[len(done):])
	case strings.HasPrefix(s, body):
		io.WriteString(w, s[len(body):])
	case strings.HasPrefix(body, s) && strings.TrimSpace(body[len(s):]) == "":
	default:
		io.WriteString(w, "\n"+s)
	}
	return s
}
