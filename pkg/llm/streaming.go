package llm

const (
	// DefaultMaxTokens используется, если StreamRequest.MaxTokens не задан.
	DefaultMaxTokens = 1024

	// DefaultTemperature используется, если StreamRequest.Temperature не задана.
	DefaultTemperature = 0.7
)

// StreamRequest — параметры streaming запроса.
//
// Нулевые MaxTokens и Temperature заменяются значениями по умолчанию.
type StreamRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// WithDefaults возвращает копию запроса с заполненными значениями по умолчанию.
func (r StreamRequest) WithDefaults() StreamRequest {
	if r.MaxTokens <= 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	if r.Temperature == 0 {
		r.Temperature = DefaultTemperature
	}
	return r
}

// StreamCallbacks — колбэки streaming запроса.
//
// OnToken вызывается для каждого непустого токена в порядке прихода,
// до OnComplete. Nil-колбэки пропускаются.
type StreamCallbacks struct {
	OnToken    func(token string)
	OnComplete func()
	OnError    func(err error)
}

func (cb StreamCallbacks) token(tok string) {
	if cb.OnToken != nil {
		cb.OnToken(tok)
	}
}

func (cb StreamCallbacks) complete() {
	if cb.OnComplete != nil {
		cb.OnComplete()
	}
}

func (cb StreamCallbacks) fail(err error) {
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

// Dispatcher гарантирует контракт колбэков: после первого терминального
// события остальные вызовы игнорируются.
//
// Не thread-safe: все вызовы должны идти из одной горутины.
type Dispatcher struct {
	cb   StreamCallbacks
	done bool
}

// NewDispatcher оборачивает колбэки.
func NewDispatcher(cb StreamCallbacks) *Dispatcher {
	return &Dispatcher{cb: cb}
}

// Token передаёт токен, если поток ещё не завершён.
func (d *Dispatcher) Token(tok string) {
	if d.done || tok == "" {
		return
	}
	d.cb.token(tok)
}

// Complete вызывает OnComplete один раз.
func (d *Dispatcher) Complete() {
	if d.done {
		return
	}
	d.done = true
	d.cb.complete()
}

// Fail вызывает OnError один раз.
func (d *Dispatcher) Fail(err error) {
	if d.done {
		return
	}
	d.done = true
	d.cb.fail(err)
}

// Done сообщает, был ли уже вызван терминальный колбэк.
func (d *Dispatcher) Done() bool {
	return d.done
}
