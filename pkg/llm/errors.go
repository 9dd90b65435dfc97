package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoChoices возвращается, если endpoint ответил без choices.
	ErrNoChoices = errors.New("empty response from endpoint")

	// ErrNoBody возвращается, если у успешного ответа нет тела.
	ErrNoBody = errors.New("no response body")
)

// HTTPError — endpoint ответил не-2xx статусом.
//
// Текст ошибки имеет вид "HTTP 500: Internal Server Error".
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	text := http.StatusText(e.StatusCode)
	if text == "" {
		text = e.Status
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, text)
}

// NetworkError — транспортная ошибка: соединение, чтение тела, отмена.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsHTTPStatus сообщает, является ли err HTTPError с данным кодом.
func IsHTTPStatus(err error, code int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == code
}
