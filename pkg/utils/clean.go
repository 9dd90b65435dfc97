// Package utils — файловый логгер, graceful shutdown и очистка
// ответов модели.
package utils

import (
	"strings"
)

// CleanJsonBlock удаляет markdown-обёртку вокруг JSON.
//
// Модели иногда присылают аргументы инструмента обёрнутыми в кодовый блок:
//
//	```json
//	{"location": "Tokyo"}
//	```
//
// Обрезается только обёртка в начале и в конце; текст внутри не меняется.
func CleanJsonBlock(s string) string {
	s = strings.TrimSpace(s)

	for _, fence := range []string{"```json", "```JSON", "```Json", "```"} {
		if strings.HasPrefix(s, fence) {
			s = strings.TrimPrefix(s, fence)
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}
