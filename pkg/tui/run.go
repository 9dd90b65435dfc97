package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/pi-llama/pkg/conversation"
)

// Run запускает TUI поверх контроллера диалога.
//
// Подписывается на события контроллера и блокируется до выхода
// пользователя или отмены ctx.
//
// Правило 11: принимает и распространяет context.Context.
func Run(ctx context.Context, ctrl *conversation.Controller, opts ...Option) error {
	if ctrl == nil {
		return fmt.Errorf("controller is nil")
	}

	sub := ctrl.Subscribe()
	defer sub.Close()

	model := NewModel(ctx, ctrl, sub, opts...)

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// Option - функция для кастомизации TUI.
type Option func(*Model)

// WithTitle устанавливает заголовок TUI.
func WithTitle(title string) Option {
	return func(m *Model) {
		if title != "" {
			m.title = title
		}
	}
}

// WithPrompt устанавливает текст приглашения ввода.
func WithPrompt(prompt string) Option {
	return func(m *Model) {
		m.input.Prompt = prompt
	}
}

// WithColorScheme выбирает цветовую схему по имени (см. ColorSchemes).
func WithColorScheme(name string) Option {
	return func(m *Model) {
		m.scheme = GetColorScheme(name)
	}
}

// WithKeyMap подменяет клавиатурные сокращения.
func WithKeyMap(km KeyMap) Option {
	return func(m *Model) {
		m.keys = km
	}
}
