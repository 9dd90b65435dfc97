package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/pi-llama/pkg/chain"
	"github.com/ilkoid/pi-llama/pkg/config"
	"github.com/ilkoid/pi-llama/pkg/events"
	"github.com/ilkoid/pi-llama/pkg/llm"
	"github.com/ilkoid/pi-llama/pkg/settings"
	"github.com/ilkoid/pi-llama/pkg/tools"
	"github.com/ilkoid/pi-llama/pkg/transcript"
	"github.com/ilkoid/pi-llama/pkg/voice"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls [][]llm.Message
}

func (p *fakeProvider) Generate(_ context.Context, messages []llm.Message, _ []tools.ToolDefinition, _ ...llm.GenerateOption) (llm.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, messages)
	return llm.Message{Role: llm.RoleAssistant}, nil
}

// fakeStreamer отвечает эхом последней реплики. Если gate не nil,
// ждёт его закрытия или отмены контекста.
type fakeStreamer struct {
	mu      sync.Mutex
	reqs    []llm.StreamRequest
	gate    chan struct{}
	started chan struct{}
}

func (s *fakeStreamer) Stream(ctx context.Context, req llm.StreamRequest, cb llm.StreamCallbacks) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()

	if s.started != nil {
		close(s.started)
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			cb.OnError(&llm.NetworkError{Op: "stream read", Err: ctx.Err()})
			return
		}
	}

	last := req.Messages[len(req.Messages)-1].Content
	cb.OnToken("<think>echo</think>")
	cb.OnToken("You said: " + last)
	cb.OnComplete()
}

func (s *fakeStreamer) lastRequest() llm.StreamRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reqs[len(s.reqs)-1]
}

type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []string
}

func (f *fakeSpeaker) Speak(_ context.Context, text string, v voice.Voice) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, string(v)+":"+text)
	return "/tmp/x.mp3", nil
}

type nopExecutor struct{}

func (nopExecutor) Execute(context.Context, string, string) string { return "{}" }

func newController(t *testing.T, mode string, streamer *fakeStreamer, opts ...Option) (*Controller, *fakeProvider) {
	t.Helper()
	cfg := config.Default()
	cfg.Chat.Mode = mode

	provider := &fakeProvider{}
	ctrl := New(Deps{
		Provider: provider,
		Streamer: streamer,
		Executor: nopExecutor{},
	}, *cfg, opts...)
	return ctrl, provider
}

func TestController_SendToolsMode(t *testing.T) {
	streamer := &fakeStreamer{}
	speaker := &fakeSpeaker{}
	repo := settings.NewRepository(settings.NewMemoryKV())
	_, err := repo.SetVoice(context.Background(), voice.Nova)
	require.NoError(t, err)

	ctrl, provider := newController(t, config.ModeTools, streamer, WithSettings(repo), WithSpeaker(speaker))

	res, err := ctrl.Send(context.Background(), "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, chain.OutcomeFinalAnswer, res.Outcome)
	assert.Equal(t, 1, res.Iterations)

	assert.Equal(t, []transcript.Message{
		transcript.UserMessage{Text: "hello"},
		transcript.BotMessage{Text: "You said: hello", Thinking: "echo"},
	}, ctrl.View())

	require.Len(t, provider.calls, 1)
	assert.Equal(t, llm.Message{Role: llm.RoleSystem, Content: config.DefaultToolsSystemPrompt}, provider.calls[0][0])
	assert.Equal(t, 512, streamer.lastRequest().MaxTokens)

	assert.Equal(t, []string{"nova:You said: hello"}, speaker.spoken)
	assert.False(t, ctrl.Busy())
}

func TestController_SendPlainMode(t *testing.T) {
	streamer := &fakeStreamer{}
	speaker := &fakeSpeaker{}
	repo := settings.NewRepository(settings.NewMemoryKV())
	_, err := repo.SetAutoPlay(context.Background(), false)
	require.NoError(t, err)

	ctrl, provider := newController(t, config.ModePlain, streamer, WithSettings(repo), WithSpeaker(speaker))

	_, err = ctrl.Send(context.Background(), "hi")
	require.NoError(t, err)

	assert.Empty(t, provider.calls)
	req := streamer.lastRequest()
	assert.Equal(t, 512, req.MaxTokens)
	assert.Equal(t, llm.Message{Role: llm.RoleSystem, Content: config.DefaultSystemPrompt}, req.Messages[0])
	assert.Empty(t, speaker.spoken)
}

func TestController_EmptyInput(t *testing.T) {
	ctrl, _ := newController(t, config.ModeTools, &fakeStreamer{})
	_, err := ctrl.Send(context.Background(), " \n\t")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Equal(t, 0, ctrl.Transcript().Len())
}

func TestController_HistoryWindow(t *testing.T) {
	streamer := &fakeStreamer{}
	ctrl, _ := newController(t, config.ModePlain, streamer)

	for _, msg := range []string{"one", "two", "three", "four", "five"} {
		_, err := ctrl.Send(context.Background(), msg)
		require.NoError(t, err)
	}

	// system + 5 прошлых реплик + текущая: окно из 6 включает текущую.
	req := streamer.lastRequest()
	require.Len(t, req.Messages, 7)
	assert.Equal(t, llm.RoleAssistant, req.Messages[1].Role)
	assert.Equal(t, "You said: two", req.Messages[1].Content)
	assert.Equal(t, "three", req.Messages[2].Content)
	assert.Equal(t, "five", req.Messages[6].Content)
}

func TestController_ToolsHistoryWindow(t *testing.T) {
	streamer := &fakeStreamer{}
	ctrl, provider := newController(t, config.ModeTools, streamer)

	for _, msg := range []string{"one", "two", "three", "four", "five"} {
		_, err := ctrl.Send(context.Background(), msg)
		require.NoError(t, err)
	}

	// system + 6 прошлых реплик + текущая.
	provider.mu.Lock()
	defer provider.mu.Unlock()
	last := provider.calls[len(provider.calls)-1]
	require.Len(t, last, 8)
	assert.Equal(t, "two", last[1].Content)
	assert.Equal(t, "five", last[7].Content)
}

func TestController_BusyAndNewConversation(t *testing.T) {
	streamer := &fakeStreamer{gate: make(chan struct{}), started: make(chan struct{})}
	ctrl, _ := newController(t, config.ModePlain, streamer)
	firstSession := ctrl.SessionID()

	done := make(chan chain.Result, 1)
	go func() {
		res, _ := ctrl.Send(context.Background(), "slow question")
		done <- res
	}()
	<-streamer.started

	assert.True(t, ctrl.Busy())
	_, err := ctrl.Send(context.Background(), "again")
	assert.ErrorIs(t, err, ErrBusy)

	newSession := ctrl.NewConversation()
	assert.NotEqual(t, firstSession, newSession)

	select {
	case res := <-done:
		assert.Equal(t, chain.OutcomeCanceled, res.Outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("send did not finish after NewConversation")
	}

	assert.Equal(t, 0, ctrl.Transcript().Len())
	assert.False(t, ctrl.Busy())
}

func TestController_SubscribeReceivesDone(t *testing.T) {
	ctrl, _ := newController(t, config.ModeTools, &fakeStreamer{})
	sub := ctrl.Subscribe()

	_, err := ctrl.Send(context.Background(), "hi")
	require.NoError(t, err)

	var types []events.EventType
	for len(sub.Events()) > 0 {
		types = append(types, (<-sub.Events()).Type)
	}
	require.NotEmpty(t, types)
	assert.Equal(t, events.EventAppend, types[0])
	assert.Equal(t, events.EventDone, types[len(types)-1])
}

func TestController_ModeAndSettings(t *testing.T) {
	ctrl, _ := newController(t, config.ModeTools, &fakeStreamer{})

	assert.ErrorIs(t, ctrl.SetMode("chaos"), ErrInvalidMode)
	require.NoError(t, ctrl.SetMode(config.ModePlain))
	assert.Equal(t, config.ModePlain, ctrl.Mode())

	s, err := ctrl.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, settings.Defaults(), s)

	_, err = ctrl.SetVoice(context.Background(), voice.Echo)
	assert.Error(t, err)
}

type fakeTracer struct {
	mu       sync.Mutex
	starts   []string
	iters    int
	outcomes []chain.Outcome
}

func (f *fakeTracer) Start(_, mode, query string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, mode+":"+query)
}

func (f *fakeTracer) OnIterationStart(int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.iters++
}

func (f *fakeTracer) OnToolCall(llm.ToolCall)                    {}
func (f *fakeTracer) OnToolResult(string, string, time.Duration) {}

func (f *fakeTracer) OnFinish(res chain.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, res.Outcome)
}

func TestController_Tracer(t *testing.T) {
	tracer := &fakeTracer{}
	ctrl, _ := newController(t, config.ModeTools, &fakeStreamer{}, WithTracer(tracer))

	_, err := ctrl.Send(context.Background(), "first")
	require.NoError(t, err)
	require.NoError(t, ctrl.SetMode(config.ModePlain))
	_, err = ctrl.Send(context.Background(), "second")
	require.NoError(t, err)

	assert.Equal(t, []string{"tools:first", "plain:second"}, tracer.starts)
	assert.Equal(t, 1, tracer.iters)
	assert.Equal(t, []chain.Outcome{chain.OutcomeFinalAnswer, chain.OutcomeFinalAnswer}, tracer.outcomes)
}
