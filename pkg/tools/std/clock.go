package std

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ilkoid/pi-llama/pkg/tools"
	"github.com/ilkoid/pi-llama/pkg/utils"
)

const (
	isoLayout   = "2006-01-02T15:04:05.000Z"
	localLayout = "1/2/2006, 3:04:05 PM"
)

// TimeTool — текущие дата и время.
type TimeTool struct {
	now   func() time.Time
	local *time.Location
}

// NewTimeTool создаёт инструмент get_time.
func NewTimeTool() *TimeTool {
	return &TimeTool{now: time.Now, local: time.Local}
}

// Definition возвращает определение инструмента для function calling.
func (t *TimeTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "get_time",
		Description: "Get current date and time",
		Parameters: tools.ObjectSchema(map[string]tools.Property{
			"timezone": {Type: "string", Description: "Timezone (optional)"},
		}),
	}
}

type timeResult struct {
	Datetime string `json:"datetime"`
	Local    string `json:"local"`
	Timezone string `json:"timezone"`
}

// Execute возвращает время в UTC (ISO 8601) и локальное время.
// Неизвестная timezone игнорируется, используется зона процесса.
func (t *TimeTool) Execute(_ context.Context, argsJSON string) (string, error) {
	var args struct {
		Timezone string `json:"timezone"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}

	loc := t.local
	if args.Timezone != "" {
		if l, err := time.LoadLocation(args.Timezone); err == nil {
			loc = l
		} else {
			utils.Debug("Unknown timezone, using local", "timezone", args.Timezone)
		}
	}

	now := t.now()
	local := now.In(loc)

	return tools.MarshalResult(timeResult{
		Datetime: now.UTC().Format(isoLayout),
		Local:    local.Format(localLayout),
		Timezone: zoneName(local, loc),
	})
}

// zoneName возвращает IANA имя зоны, а для time.Local — аббревиатуру.
func zoneName(t time.Time, loc *time.Location) string {
	if name := loc.String(); name != "Local" {
		return name
	}
	abbr, _ := t.Zone()
	return abbr
}
