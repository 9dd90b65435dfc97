package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// statusBar — строка состояния: спиннер, режим, голос, последний
// инструмент и последняя ошибка.
//
// Не thread-safe: живёт внутри Bubble Tea модели.
type statusBar struct {
	spinner    spinner.Model
	processing bool

	mode     string
	voice    string
	autoPlay bool
	activity string // "🔧 get_weather" пока работает инструмент
	notice   string // Последнее служебное сообщение
	isError  bool

	scheme ColorScheme
}

func newStatusBar(scheme ColorScheme) statusBar {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(scheme.AIMessage)

	return statusBar{spinner: s, scheme: scheme}
}

func (sb statusBar) Render(width int) string {
	base := lipgloss.NewStyle().
		Background(sb.scheme.StatusBackground).
		Foreground(sb.scheme.StatusForeground).
		Padding(0, 1)

	var state string
	if sb.processing {
		state = base.Foreground(sb.scheme.AIMessage).Render(sb.spinner.View() + " thinking")
	} else {
		state = base.Foreground(sb.scheme.SystemMessage).Render("✓ Ready")
	}

	parts := []string{state, base.Render("mode: " + sb.mode)}
	if sb.voice != "" {
		play := "off"
		if sb.autoPlay {
			play = "on"
		}
		parts = append(parts, base.Render("voice: "+sb.voice+" | auto-play: "+play))
	}
	if sb.activity != "" {
		parts = append(parts, base.Foreground(sb.scheme.ToolCall).Render(sb.activity))
	}
	if sb.notice != "" {
		style := base
		if sb.isError {
			style = base.Foreground(sb.scheme.ErrorMessage).Bold(true)
		}
		parts = append(parts, style.Render(sb.notice))
	}

	line := strings.Join(parts, "")
	if width > 0 && lipgloss.Width(line) < width {
		line += base.Width(width - lipgloss.Width(line)).Render("")
	}
	return line
}

func (sb *statusBar) setNotice(text string, isError bool) {
	sb.notice = text
	sb.isError = isError
}
