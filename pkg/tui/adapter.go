// Package tui — терминальный интерфейс pi-llama на Bubble Tea.
//
// Port & Adapter паттерн:
//   - pkg/events.* — Port (интерфейсы)
//   - pkg/tui.* — Adapter: события транскрипта превращаются в tea.Msg,
//     а экран перерисовывается из conversation.Controller.View()
//
// # Basic Usage
//
//	comps, _ := app.Initialize(ctx, cfg)
//	if err := tui.Run(ctx, comps.Controller, tui.WithTitle(cfg.App.Title)); err != nil {
//	    log.Fatal(err)
//	}
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/pi-llama/pkg/events"
)

// EventMsg конвертирует events.Event в Bubble Tea сообщение.
type EventMsg events.Event

// subscriptionClosedMsg — канал событий закрыт.
type subscriptionClosedMsg struct{}

// ReceiveEventCmd возвращает Bubble Tea Cmd для чтения одного события
// из Subscriber. После обработки события Update должен вызвать его снова.
func ReceiveEventCmd(sub events.Subscriber) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-sub.Events()
		if !ok {
			return subscriptionClosedMsg{}
		}
		return EventMsg(event)
	}
}
