package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/pi-llama/pkg/thinking"
	"github.com/ilkoid/pi-llama/pkg/transcript"
)

func TestStreamPrinter_Deltas(t *testing.T) {
	var out, side bytes.Buffer
	p := newStreamPrinter(&out, &side, true)

	user := transcript.UserMessage{Text: "hi"}
	p.Flush([]transcript.Message{user, transcript.BotMessage{}})
	p.Flush([]transcript.Message{user, transcript.BotMessage{Text: "Hel", Thinking: "hm"}})
	p.Flush([]transcript.Message{user, transcript.BotMessage{Text: "Hello", Thinking: "hmm"}})
	p.Flush([]transcript.Message{user, transcript.BotMessage{Text: "Hello", Thinking: "hmm"}})

	assert.Equal(t, "Hello", out.String())
	assert.Equal(t, "hmm", side.String())
}

func TestStreamPrinter_ThinkingHidden(t *testing.T) {
	var out, side bytes.Buffer
	p := newStreamPrinter(&out, &side, false)

	p.Flush([]transcript.Message{transcript.BotMessage{Text: "4", Thinking: "2+2"}})

	assert.Equal(t, "4", out.String())
	assert.Empty(t, side.String())
}

func TestStreamPrinter_ReplacedText(t *testing.T) {
	var out, side bytes.Buffer
	p := newStreamPrinter(&out, &side, false)

	p.Flush([]transcript.Message{transcript.BotMessage{Text: "partial"}})
	p.Flush([]transcript.Message{transcript.BotMessage{Text: "Error: HTTP 500"}})

	assert.Equal(t, "partial\nError: HTTP 500", out.String())
}

func TestStreamPrinter_FinalizedAnswerPrintedOnce(t *testing.T) {
	var out, side bytes.Buffer
	p := newStreamPrinter(&out, &side, true)
	user := transcript.UserMessage{Text: "hi"}

	st := thinking.New()
	for _, tok := range []string{"<think>plan</think>", "\n\n", "Hello", " world", "\n"} {
		st = thinking.Step(st, tok)
		p.Flush([]transcript.Message{user, transcript.BotMessage{Text: st.Text, Thinking: st.Thinking}})
	}
	final := thinking.Finalize(st)
	require.Equal(t, "Hello world", final.Text)
	p.Flush([]transcript.Message{user, transcript.BotMessage{Text: final.Text, Thinking: final.Thinking}})

	assert.Equal(t, "\n\nHello world\n", out.String())
	assert.Equal(t, 1, strings.Count(out.String(), "Hello world"))
	assert.Equal(t, "plan", side.String())
}

func TestStreamPrinter_WriteDelta(t *testing.T) {
	tests := []struct {
		name string
		done string
		s    string
		want string
	}{
		{name: "unchanged", done: "Hello", s: "Hello", want: ""},
		{name: "appended", done: "Hel", s: "Hello", want: "lo"},
		{name: "trimmed both sides", done: "\n Hello \n", s: "Hello", want: ""},
		{name: "trimmed then grown", done: "\n\nHello ", s: "Hello <", want: "<"},
		{name: "replaced by error", done: "partial", s: "Error: HTTP 500", want: "\nError: HTTP 500"},
		{name: "shorter text is a rewrite", done: "Hello world", s: "Hello", want: "\nHello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := newStreamPrinter(&out, &out, false)
			got := p.writeDelta(&out, tt.s, tt.done)
			assert.Equal(t, tt.s, got)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestStreamPrinter_LongTranscript(t *testing.T) {
	var out, side bytes.Buffer
	p := newStreamPrinter(&out, &side, false)
	store := transcript.NewStore()

	store.Append(transcript.UserMessage{Text: "count"})
	p.Flush(store.Snapshot())
	for i := 0; i < 20; i++ {
		store.Append(transcript.ToolCallMessage{Name: "calculator", Args: map[string]any{"expression": "1+1"}})
		p.Flush(store.Snapshot())
		store.Append(transcript.ToolResultMessage{Result: "2"})
		p.Flush(store.Snapshot())
	}
	idx := store.Append(transcript.BotMessage{Text: "Done"})
	p.Flush(store.Snapshot())
	store.PatchAt(idx, func(transcript.Message) transcript.Message {
		return transcript.BotMessage{Text: "Done, 40 calls"}
	})
	p.Flush(store.Snapshot())

	require.Greater(t, store.Len(), 30)
	assert.Equal(t, 20, strings.Count(side.String(), "🔧 calculator"))
	assert.Equal(t, 20, strings.Count(side.String(), "↳ 2"))
	assert.Equal(t, "Done, 40 calls", out.String())
}

func TestStreamPrinter_ToolEntriesOnce(t *testing.T) {
	var out, side bytes.Buffer
	p := newStreamPrinter(&out, &side, false)

	msgs := []transcript.Message{
		transcript.UserMessage{Text: "weather?"},
		transcript.ToolCallMessage{Name: "get_weather", Args: map[string]any{"location": "Tokyo"}},
		transcript.ToolResultMessage{Result: "Tokyo:\n  Sunny, 21°C"},
	}
	p.Flush(msgs)
	p.Flush(append(msgs, transcript.BotMessage{Text: "Sunny"}))

	lines := strings.Split(strings.TrimSpace(side.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `🔧 get_weather {"location":"Tokyo"}`, lines[0])
	assert.Equal(t, "↳ Tokyo: Sunny, 21°C", lines[1])
	assert.Equal(t, "Sunny", out.String())
}

func TestReadQuestion(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		stdin   string
		want    string
		wantErr string
	}{
		{name: "joined args", args: []string{"what", "is", "go?"}, want: "what is go?"},
		{name: "stdin", args: []string{"-"}, stdin: "  from pipe\n", want: "from pipe"},
		{name: "no args", wantErr: "question argument is required"},
		{name: "blank", args: []string{"   "}, wantErr: "question is empty"},
		{name: "blank stdin", args: []string{"-"}, stdin: "\n", wantErr: "question is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readQuestion(tt.args, strings.NewReader(tt.stdin))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
