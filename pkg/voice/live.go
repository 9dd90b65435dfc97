package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ilkoid/pi-llama/pkg/utils"
)

const (
	// SampleRate — частота дискретизации, которую ждёт Vosk.
	SampleRate = 16000

	// FrameSamples — сэмплов в одном отправляемом кадре.
	FrameSamples = 4096

	eofMessage = `{"eof" : 1}`

	handshakeTimeout = 8 * time.Second
	stopTimeout      = 5 * time.Second
)

// ErrSessionClosed — отправка в закрытую сессию.
var ErrSessionClosed = errors.New("live session closed")

// LiveUpdate — состояние распознавания после очередного сообщения Vosk.
type LiveUpdate struct {
	Partial string
	Final   string
}

// voskResult — сообщение Vosk: либо partial, либо text.
type voskResult struct {
	Partial string `json:"partial"`
	Text    string `json:"text"`
}

// LiveSession — потоковое распознавание через Vosk WebSocket.
//
// Partial заменяется каждым новым частичным результатом. Финальные
// фрагменты склеиваются через пробел, partial при этом очищается.
type LiveSession struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	mu       sync.RWMutex
	partial  string
	final    string
	closed   bool
	err      error
	done     chan struct{}
	onUpdate func(LiveUpdate)
}

// DialLive подключается к Vosk. onUpdate (может быть nil) вызывается из
// горутины чтения после каждого распознанного сообщения.
func DialLive(ctx context.Context, url string, onUpdate func(LiveUpdate)) (*LiveSession, error) {
	d := &websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, resp, err := d.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("vosk dial failed: %w (status %s)", err, resp.Status)
		}
		return nil, fmt.Errorf("vosk dial failed: %w", err)
	}
	utils.Info("Vosk connected", "url", url)

	s := &LiveSession{
		conn:     conn,
		done:     make(chan struct{}),
		onUpdate: onUpdate,
	}
	go s.readLoop()
	return s, nil
}

// SendPCM отправляет кадр 16-bit PCM.
func (s *LiveSession) SendPCM(frame []byte) error {
	return s.write(websocket.BinaryMessage, frame)
}

// SendSamples конвертирует float сэмплы в PCM и отправляет их.
func (s *LiveSession) SendSamples(samples []float32) error {
	return s.SendPCM(Float32ToPCM16(samples))
}

// StreamPCM читает r кадрами по FrameSamples сэмплов и отправляет их,
// пока r не закончится или ctx не будет отменён.
func (s *LiveSession) StreamPCM(ctx context.Context, r io.Reader) error {
	buf := make([]byte, FrameSamples*2)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			if sendErr := s.SendPCM(buf[:n-n%2]); sendErr != nil {
				return sendErr
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read pcm: %w", err)
		}
	}
}

// Stop отправляет EOF, ждёт последний результат (не дольше stopTimeout)
// и закрывает соединение. Возвращает итоговый текст.
func (s *LiveSession) Stop() (string, error) {
	if err := s.write(websocket.TextMessage, []byte(eofMessage)); err != nil && !errors.Is(err, ErrSessionClosed) {
		utils.Warn("Vosk EOF failed", "error", err)
	}

	select {
	case <-s.done:
	case <-time.After(stopTimeout):
		utils.Warn("Vosk did not close in time")
	}

	s.Close()
	return s.FinalText(), s.Err()
}

// Close закрывает соединение без ожидания.
func (s *LiveSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()

	return s.conn.Close()
}

// Done закрывается, когда горутина чтения завершилась.
func (s *LiveSession) Done() <-chan struct{} {
	return s.done
}

// Err возвращает ошибку чтения, если соединение оборвалось не штатно.
func (s *LiveSession) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Partial возвращает текущий частичный результат.
func (s *LiveSession) Partial() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partial
}

// FinalText возвращает накопленный финальный текст.
func (s *LiveSession) FinalText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.final
}

// Clear сбрасывает накопленный текст.
func (s *LiveSession) Clear() {
	s.mu.Lock()
	s.partial = ""
	s.final = ""
	s.mu.Unlock()
}

func (s *LiveSession) write(messageType int, data []byte) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrSessionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *LiveSession) readLoop() {
	defer close(s.done)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			if !s.closed && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.err = err
			}
			s.mu.Unlock()
			return
		}

		update, ok := s.apply(data)
		if ok && s.onUpdate != nil {
			s.onUpdate(update)
		}
	}
}

// apply применяет сообщение Vosk к состоянию. Нераспознанные сообщения
// игнорируются.
func (s *LiveSession) apply(data []byte) (LiveUpdate, bool) {
	var res voskResult
	if err := json.Unmarshal(data, &res); err != nil {
		return LiveUpdate{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case res.Partial != "":
		s.partial = res.Partial
	case res.Text != "":
		s.final = strings.TrimSpace(s.final + " " + res.Text)
		s.partial = ""
	default:
		return LiveUpdate{}, false
	}

	return LiveUpdate{Partial: s.partial, Final: s.final}, true
}
