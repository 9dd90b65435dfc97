package tui

import (
	"encoding/json"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"github.com/ilkoid/pi-llama/pkg/transcript"
)

const (
	minRenderWidth = 20

	// Пока модель не прислала ни одного токена.
	typingPlaceholder = "…"
)

// RenderOptions управляет отрисовкой транскрипта.
type RenderOptions struct {
	Width        int
	Scheme       ColorScheme
	ShowThinking bool
}

// RenderTranscript отрисовывает записи транскрипта в текст для viewport.
//
// Функция чистая: один и тот же вход даёт один и тот же выход,
// поэтому её удобно тестировать без терминала.
func RenderTranscript(msgs []transcript.Message, opts RenderOptions) string {
	width := max(opts.Width, minRenderWidth)
	s := newStyles(opts.Scheme)

	blocks := make([]string, 0, len(msgs))
	for _, m := range msgs {
		switch msg := m.(type) {
		case transcript.UserMessage:
			blocks = append(blocks, s.userLabel.Render("You")+"\n"+
				s.user.Render(fit(msg.Text, width)))

		case transcript.BotMessage:
			var b strings.Builder
			b.WriteString(s.botLabel.Render("AI"))
			if opts.ShowThinking && msg.Thinking != "" {
				b.WriteString("\n")
				b.WriteString(s.thinking.Render(fit(msg.Thinking, width)))
			}
			b.WriteString("\n")
			b.WriteString(renderBotText(s, msg.Text, width))
			blocks = append(blocks, b.String())

		case transcript.ToolCallMessage:
			line := "🔧 " + msg.Name + "(" + formatArgs(msg.Args) + ")"
			blocks = append(blocks, s.toolCall.Render(truncate.StringWithTail(line, uint(width), "…")))

		case transcript.ToolResultMessage:
			line := "↳ " + strings.Join(strings.Fields(msg.Result), " ")
			blocks = append(blocks, s.toolResult.Render(truncate.StringWithTail(line, uint(width), "…")))
		}
	}
	return strings.Join(blocks, "\n\n")
}

func renderBotText(s styles, text string, width int) string {
	switch {
	case text == "":
		return s.system.Render(typingPlaceholder)
	case strings.HasPrefix(text, "Error: "):
		return s.err.Render(fit(text, width))
	default:
		return s.bot.Render(fit(text, width))
	}
}

// fit переносит текст по словам, а слишком длинные слова режет по ширине.
func fit(text string, width int) string {
	return wrap.String(wordwrap.String(text, width), width)
}

// formatArgs показывает аргументы вызова компактным JSON.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "…"
	}
	return string(raw)
}

type styles struct {
	userLabel  lipgloss.Style
	user       lipgloss.Style
	botLabel   lipgloss.Style
	bot        lipgloss.Style
	thinking   lipgloss.Style
	toolCall   lipgloss.Style
	toolResult lipgloss.Style
	system     lipgloss.Style
	err        lipgloss.Style
}

func newStyles(c ColorScheme) styles {
	return styles{
		userLabel:  lipgloss.NewStyle().Foreground(c.UserMessage).Bold(true),
		user:       lipgloss.NewStyle().Foreground(c.UserMessage),
		botLabel:   lipgloss.NewStyle().Foreground(c.AIMessage).Bold(true),
		bot:        lipgloss.NewStyle().Foreground(c.AIMessage),
		thinking:   lipgloss.NewStyle().Foreground(c.Thinking).Italic(true),
		toolCall:   lipgloss.NewStyle().Foreground(c.ToolCall),
		toolResult: lipgloss.NewStyle().Foreground(c.ToolResult),
		system:     lipgloss.NewStyle().Foreground(c.SystemMessage),
		err:        lipgloss.NewStyle().Foreground(c.ErrorMessage),
	}
}
