package chain

import (
	"context"
	"sync"

	"github.com/ilkoid/pi-llama/pkg/events"
	"github.com/ilkoid/pi-llama/pkg/llm"
	"github.com/ilkoid/pi-llama/pkg/tools"
)

// scriptedProvider возвращает ответы по очереди; последний повторяется.
type scriptedProvider struct {
	responses []llm.Message
	err       error
	calls     [][]llm.Message
	before    func(call int)
}

func (p *scriptedProvider) Generate(_ context.Context, messages []llm.Message, _ []tools.ToolDefinition, _ ...llm.GenerateOption) (llm.Message, error) {
	p.calls = append(p.calls, append([]llm.Message(nil), messages...))
	if p.before != nil {
		p.before(len(p.calls))
	}
	if p.err != nil {
		return llm.Message{}, p.err
	}
	i := min(len(p.calls)-1, len(p.responses)-1)
	return p.responses[i], nil
}

// scriptedStreamer отдаёт токены и завершается OnComplete или OnError.
type scriptedStreamer struct {
	tokens []string
	err    error
	req    *llm.StreamRequest
}

func (s *scriptedStreamer) Stream(_ context.Context, req llm.StreamRequest, cb llm.StreamCallbacks) {
	s.req = &req
	for _, tok := range s.tokens {
		cb.OnToken(tok)
	}
	if s.err != nil {
		cb.OnError(s.err)
		return
	}
	cb.OnComplete()
}

type recordingExecutor struct {
	results map[string]string
	calls   []string
}

func (e *recordingExecutor) Execute(_ context.Context, name, argsJSON string) string {
	e.calls = append(e.calls, name+" "+argsJSON)
	if r, ok := e.results[name]; ok {
		return r
	}
	return tools.UnknownToolResult
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func toolCall(id, name, args string) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: id, Name: name, Args: args}}}
}

func answer(text string) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, Content: text}
}
