package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJsonBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain JSON", `{"location": "Tokyo"}`, `{"location": "Tokyo"}`},
		{"json fence", "```json\n{\"location\": \"Tokyo\"}\n```", `{"location": "Tokyo"}`},
		{"upper case fence", "```JSON\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  ```json  \n  {\"a\": 1}  \n  ```  ", `{"a": 1}`},
		{"text after closing fence is kept", "```json\n{\"a\": 1}\n``` end", "{\"a\": 1}\n``` end"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJsonBlock(tt.input))
		})
	}
}
