// Package std предоставляет стандартные инструменты чата.
//
// Каталог фиксирован: get_weather, calculator, get_time, save_memory,
// recall_memories. Порядок регистрации совпадает с порядком, в котором
// определения уходят в модель.
package std

import (
	"fmt"

	"github.com/ilkoid/pi-llama/pkg/memory"
	"github.com/ilkoid/pi-llama/pkg/tools"
)

// NewCatalog создаёт реестр со всеми стандартными инструментами.
// backend может быть nil: тогда инструменты памяти не регистрируются.
func NewCatalog(backend memory.Backend) (*tools.Registry, error) {
	list := []tools.Tool{
		NewWeatherTool(),
		NewCalculatorTool(),
		NewTimeTool(),
	}
	if backend != nil {
		list = append(list, NewSaveMemoryTool(backend), NewRecallMemoriesTool(backend))
	}

	registry := tools.NewRegistry()
	for _, t := range list {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("register %s: %w", t.Definition().Name, err)
		}
	}
	return registry, nil
}
