package std

import (
	"context"
	"encoding/json"
	"math"
	"math/rand/v2"

	"github.com/ilkoid/pi-llama/pkg/tools"
)

// knownTemperatures — фиксированные температуры (°C) для демо-городов.
var knownTemperatures = map[string]int{
	"Tokyo":    22,
	"London":   15,
	"New York": 18,
	"Paris":    17,
	"Sydney":   25,
}

var weatherConditions = []string{"sunny", "cloudy", "partly cloudy", "rainy"}

// WeatherTool — демо-погода без внешнего API.
type WeatherTool struct {
	intn func(n int) int
}

// NewWeatherTool создаёт инструмент get_weather.
func NewWeatherTool() *WeatherTool {
	return &WeatherTool{intn: rand.IntN}
}

// Definition возвращает определение инструмента для function calling.
func (t *WeatherTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "get_weather",
		Description: "Get current weather for a location",
		Parameters: tools.ObjectSchema(map[string]tools.Property{
			"location": {Type: "string", Description: "City name"},
			"unit":     {Type: "string", Description: "Temperature unit", Enum: []string{"celsius", "fahrenheit"}},
		}, "location"),
	}
}

type weatherResult struct {
	Location    string `json:"location,omitempty"`
	Temperature int    `json:"temperature"`
	Unit        string `json:"unit"`
	Condition   string `json:"condition"`
}

// Execute возвращает температуру из таблицы или случайную 10..29 °C.
func (t *WeatherTool) Execute(_ context.Context, argsJSON string) (string, error) {
	var args struct {
		Location string `json:"location"`
		Unit     string `json:"unit"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", err
	}
	if args.Unit == "" {
		args.Unit = "celsius"
	}

	temp, ok := knownTemperatures[args.Location]
	if !ok {
		temp = t.intn(20) + 10
	}
	condition := weatherConditions[t.intn(len(weatherConditions))]

	if args.Unit == "fahrenheit" {
		temp = int(math.Round(float64(temp)*9/5 + 32))
	}

	return tools.MarshalResult(weatherResult{
		Location:    args.Location,
		Temperature: temp,
		Unit:        args.Unit,
		Condition:   condition,
	})
}
