// Package conversation — фасад чата: принимает реплику пользователя,
// собирает контекст, запускает цикл инструментов или простой стрим
// и озвучивает ответ.
//
// Basic usage:
//
//	ctrl := conversation.New(deps, cfg)
//	sub := ctrl.Subscribe()
//	res, err := ctrl.Send(ctx, "What's the weather in Tokyo?")
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ilkoid/pi-llama/pkg/chain"
	"github.com/ilkoid/pi-llama/pkg/config"
	"github.com/ilkoid/pi-llama/pkg/events"
	"github.com/ilkoid/pi-llama/pkg/llm"
	"github.com/ilkoid/pi-llama/pkg/settings"
	"github.com/ilkoid/pi-llama/pkg/tools"
	"github.com/ilkoid/pi-llama/pkg/transcript"
	"github.com/ilkoid/pi-llama/pkg/utils"
	"github.com/ilkoid/pi-llama/pkg/voice"
)

var (
	// ErrEmptyInput — пустая реплика (после trim).
	ErrEmptyInput = errors.New("empty input")

	// ErrBusy — предыдущее сообщение ещё обрабатывается.
	ErrBusy = errors.New("previous message is still being processed")

	// ErrInvalidMode — неизвестный режим чата.
	ErrInvalidMode = errors.New("invalid chat mode")
)

// SettingsStore — настройки голоса.
type SettingsStore interface {
	Load(ctx context.Context) (settings.Settings, error)
	SetAutoPlay(ctx context.Context, on bool) (settings.Settings, error)
	SetVoice(ctx context.Context, v voice.Voice) (settings.Settings, error)
}

// Speaker озвучивает текст.
type Speaker interface {
	Speak(ctx context.Context, text string, v voice.Voice) (string, error)
}

// Tracer записывает ход обработки каждой реплики.
type Tracer interface {
	chain.Observer
	Start(sessionID, mode, query string)
}

// Deps — внешние зависимости контроллера.
type Deps struct {
	Provider llm.Provider
	Streamer llm.Streamer
	Executor tools.Executor
	Defs     []tools.ToolDefinition
	Store    *transcript.Store
}

// Controller — один разговор в один момент времени.
//
// Thread-safe: Send может вызываться из любой горутины, но параллельный
// второй Send получает ErrBusy.
type Controller struct {
	store    *transcript.Store
	loop     *chain.ToolLoop
	streamer llm.Streamer
	chat     config.ChatConfig
	llm      config.LLMConfig
	settings SettingsStore
	speaker  Speaker
	tracer   Tracer

	busy atomic.Bool

	mu        sync.Mutex
	mode      string
	sessionID string
	cancel    context.CancelFunc

	emitterMu sync.RWMutex
	emitter   events.Emitter
}

// Option настраивает Controller.
type Option func(*Controller)

// WithSettings подключает хранилище настроек голоса.
func WithSettings(s SettingsStore) Option {
	return func(c *Controller) { c.settings = s }
}

// WithSpeaker подключает озвучку ответов.
func WithSpeaker(s Speaker) Option {
	return func(c *Controller) { c.speaker = s }
}

// WithTracer подключает запись трейсов.
func WithTracer(t Tracer) Option {
	return func(c *Controller) { c.tracer = t }
}

// WithEmitter задаёт получателя событий.
func WithEmitter(e events.Emitter) Option {
	return func(c *Controller) { c.emitter = e }
}

// New создаёт контроллер. cfg должен быть с применёнными дефолтами.
func New(deps Deps, cfg config.AppConfig, opts ...Option) *Controller {
	store := deps.Store
	if store == nil {
		store = transcript.NewStore()
	}

	c := &Controller{
		store:     store,
		streamer:  deps.Streamer,
		chat:      cfg.Chat,
		llm:       cfg.LLM,
		mode:      cfg.Chat.Mode,
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}

	proxy := emitterProxy{c: c}
	store.SetEmitter(proxy)

	loopOpts := []chain.Option{chain.WithObserver(chain.NewEmitterObserver(proxy))}
	if c.tracer != nil {
		loopOpts = append(loopOpts, chain.WithObserver(c.tracer))
	}
	c.loop = chain.NewToolLoop(deps.Provider, deps.Streamer, deps.Executor, deps.Defs, store,
		chain.LoopConfig{
			MaxIterations: cfg.Chat.MaxToolIterations,
			MaxTokens:     cfg.LLM.ToolMaxTokens,
			Temperature:   cfg.LLM.Temperature,
		},
		loopOpts...)

	return c
}

// SetEmitter устанавливает emitter для отправки событий.
//
// Port & Adapter паттерн: контроллер зависит от events.Emitter,
// а не от конкретного UI. Thread-safe.
func (c *Controller) SetEmitter(e events.Emitter) {
	c.emitterMu.Lock()
	defer c.emitterMu.Unlock()
	c.emitter = e
}

// Subscribe возвращает Subscriber для чтения событий.
//
// Если emitter не установлен, создаёт ChanEmitter с буфером 256,
// отбрасывающий события при переполнении.
func (c *Controller) Subscribe() events.Subscriber {
	c.emitterMu.Lock()
	defer c.emitterMu.Unlock()

	if ce, ok := c.emitter.(*events.ChanEmitter); ok {
		return ce.Subscribe()
	}
	ce := events.NewChanEmitter(256, events.DropWhenFull())
	c.emitter = ce
	return ce.Subscribe()
}

// Send обрабатывает реплику пользователя и блокируется до конца ответа.
//
// Ошибка возвращается только для ErrEmptyInput и ErrBusy; сбои модели
// попадают в транскрипт и в Result.
func (c *Controller) Send(ctx context.Context, text string) (chain.Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chain.Result{}, ErrEmptyInput
	}
	if !c.busy.CompareAndSwap(false, true) {
		return chain.Result{}, ErrBusy
	}
	defer c.busy.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	mode, session := c.mode, c.sessionID
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		cancel()
	}()

	gen := c.store.Generation()
	history := c.store.Snapshot()
	if _, ok := c.store.AppendAt(gen, transcript.UserMessage{Text: text}); !ok {
		return chain.Result{Outcome: chain.OutcomeCanceled, BotIndex: -1, Err: context.Canceled}, nil
	}

	utils.Info("Message received", "session", session, "mode", mode, "length", len(text))
	if c.tracer != nil {
		c.tracer.Start(session, mode, text)
	}

	var res chain.Result
	if mode == config.ModePlain {
		// Окно plain режима включает текущую реплику.
		messages := chain.BuildContext(c.chat.SystemPrompt, history, max(c.chat.HistoryWindow-1, 0), text)
		res = chain.StreamAnswer(ctx, c.streamer, c.store, messages, gen, chain.StreamOptions{
			MaxTokens:   c.llm.MaxTokens,
			Temperature: c.llm.Temperature,
		})
		chain.NewEmitterObserver(emitterProxy{c: c}).OnFinish(res)
		if c.tracer != nil {
			c.tracer.OnFinish(res)
		}
	} else {
		messages := chain.BuildContext(c.chat.ToolsSystemPrompt, history, c.chat.HistoryWindow, text)
		res = c.loop.Run(ctx, messages, gen)
	}

	if res.Outcome == chain.OutcomeFinalAnswer {
		c.autoPlay(ctx, res.Answer.Text)
	}
	return res, nil
}

// autoPlay озвучивает ответ, если это включено в настройках.
// Ошибки озвучки только логируются.
func (c *Controller) autoPlay(ctx context.Context, text string) {
	if c.speaker == nil || c.settings == nil || strings.TrimSpace(text) == "" {
		return
	}
	s, err := c.settings.Load(ctx)
	if err != nil {
		utils.Warn("Settings unavailable, skipping auto-play", "error", err)
		return
	}
	if !s.AutoPlay {
		return
	}
	if _, err := c.speaker.Speak(ctx, text, s.Voice); err != nil {
		utils.Warn("Auto-play failed", "error", err)
	}
}

// Cancel прерывает обрабатываемое сообщение, если оно есть.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// NewConversation очищает транскрипт и начинает новую сессию.
// Незавершённый ответ прерывается, его записи отбрасываются.
func (c *Controller) NewConversation() string {
	c.Cancel()
	c.store.Reset()

	c.mu.Lock()
	c.sessionID = uuid.NewString()
	id := c.sessionID
	c.mu.Unlock()

	utils.Info("New conversation", "session", id)
	return id
}

// SetMode переключает режим: config.ModeTools или config.ModePlain.
func (c *Controller) SetMode(mode string) error {
	if mode != config.ModeTools && mode != config.ModePlain {
		return fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	return nil
}

// Mode возвращает текущий режим.
func (c *Controller) Mode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SessionID возвращает id текущего разговора.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Busy сообщает, обрабатывается ли сообщение.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// View возвращает последние записи транскрипта для отображения.
func (c *Controller) View() []transcript.Message {
	return c.store.WindowedView(c.chat.DisplayWindow)
}

// Transcript возвращает хранилище транскрипта.
func (c *Controller) Transcript() *transcript.Store {
	return c.store
}

// Settings возвращает настройки голоса (Defaults, если хранилища нет).
func (c *Controller) Settings(ctx context.Context) (settings.Settings, error) {
	if c.settings == nil {
		return settings.Defaults(), nil
	}
	return c.settings.Load(ctx)
}

// SetAutoPlay включает или выключает озвучку ответов.
func (c *Controller) SetAutoPlay(ctx context.Context, on bool) (settings.Settings, error) {
	if c.settings == nil {
		return settings.Defaults(), errors.New("settings store is not configured")
	}
	return c.settings.SetAutoPlay(ctx, on)
}

// SetVoice меняет голос озвучки.
func (c *Controller) SetVoice(ctx context.Context, v voice.Voice) (settings.Settings, error) {
	if c.settings == nil {
		return settings.Defaults(), errors.New("settings store is not configured")
	}
	return c.settings.SetVoice(ctx, v)
}

// emitterProxy читает текущий emitter контроллера при каждом событии,
// чтобы SetEmitter/Subscribe работали после создания цикла.
type emitterProxy struct {
	c *Controller
}

func (p emitterProxy) Emit(ctx context.Context, e events.Event) {
	p.c.emitterMu.RLock()
	em := p.c.emitter
	p.c.emitterMu.RUnlock()
	if em != nil {
		em.Emit(ctx, e)
	}
}
