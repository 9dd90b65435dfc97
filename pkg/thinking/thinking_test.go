package thinking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(tokens ...string) State {
	st := New()
	for _, tok := range tokens {
		st = Step(st, tok)
	}
	return st
}

func TestStep(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   State
	}{
		{
			name:   "plain text",
			tokens: []string{"Hello", " world"},
			want:   State{Text: "Hello world"},
		},
		{
			name:   "open tag split across tokens",
			tokens: []string{"<thi", "nk>plan"},
			want:   State{InThinking: true, Thinking: "plan"},
		},
		{
			name:   "full think block then answer",
			tokens: []string{"<think>plan</think>", "Answer"},
			want:   State{Text: "Answer", Thinking: "plan"},
		},
		{
			name:   "close tag split across tokens",
			tokens: []string{"<think>plan</th", "ink>Answer"},
			want:   State{Text: "Answer", Thinking: "plan"},
		},
		{
			name:   "partial open tag is held back",
			tokens: []string{"Hi <th"},
			want:   State{Text: "Hi ", Buffer: "<th"},
		},
		{
			name:   "held back prefix released when it diverges",
			tokens: []string{"a <th", "e"},
			want:   State{Text: "a <the"},
		},
		{
			name:   "lone angle bracket in text",
			tokens: []string{"1 <", " 2"},
			want:   State{Text: "1 < 2"},
		},
		{
			name:   "two think blocks",
			tokens: []string{"<think>a</think>x<think>b</think>y"},
			want:   State{Text: "xy", Thinking: "ab"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, feed(tt.tokens...))
		})
	}
}

func TestStep_DoesNotMutateInput(t *testing.T) {
	before := feed("<think>abc")
	snapshot := before

	_ = Step(before, "</think>done")

	assert.Equal(t, snapshot, before)
}

func TestPartialTagLen(t *testing.T) {
	tests := []struct {
		buf  string
		tag  string
		want int
	}{
		{"", OpenTag, 0},
		{"hello", OpenTag, 0},
		{"hello<", OpenTag, 1},
		{"x<t", OpenTag, 2},
		{"<thin", OpenTag, 5},
		{"<think", OpenTag, 6},
		{"<think>", OpenTag, 0},
		{"</", CloseTag, 2},
		{"abc</think", CloseTag, 7},
		{"<", CloseTag, 1},
		{"<t", CloseTag, 0},
	}

	for _, tt := range tests {
		t.Run(tt.buf+"|"+tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.want, PartialTagLen(tt.buf, tt.tag))
		})
	}
}

// Для каждого буфера существует не более одной длины частичного совпадения.
func TestPartialTagLen_SingleMatch(t *testing.T) {
	for _, tag := range []string{OpenTag, CloseTag} {
		samples := []string{"", "x", "<", "<<", "</", "<</", "a<th", "</thi", "<think<", "</think</"}
		for i := 1; i < len(tag); i++ {
			samples = append(samples, "pre"+tag[:i], tag[:i]+tag[:i])
		}

		for _, buf := range samples {
			matches := 0
			for k := 1; k < len(tag) && k <= len(buf); k++ {
				if buf[len(buf)-k:] == tag[:k] {
					matches++
				}
			}
			assert.LessOrEqual(t, matches, 1, "buf=%q tag=%q", buf, tag)
		}
	}
}

// Итог не зависит от нарезки входа на токены.
func TestStep_ChunkingInvariance(t *testing.T) {
	inputs := []string{
		"<think>Let me think.</think>The answer is 42.",
		"no tags at all < > </ <t",
		"<think>unterminated reasoning <th",
		"a<think>b</think>c<think>d</think>e",
		"<<think>>x</</think>>",
		"text then <thi",
	}

	for _, input := range inputs {
		whole := feed(input)

		for size := 1; size <= len(input); size++ {
			var tokens []string
			for start := 0; start < len(input); start += size {
				tokens = append(tokens, input[start:min(start+size, len(input))])
			}
			got := feed(tokens...)

			require.Equal(t, whole, got, "input=%q size=%d", input, size)
			require.LessOrEqual(t, len(got.Buffer), len(CloseTag))
		}
	}
}

func TestFinalize(t *testing.T) {
	tests := []struct {
		name string
		st   State
		want Result
	}{
		{
			name: "trims both channels",
			st:   feed("<think>  plan \n</think>\n  Answer  "),
			want: Result{Text: "Answer", Thinking: "plan"},
		},
		{
			name: "unterminated think keeps tail in thinking",
			st:   feed("<think>still going"),
			want: Result{Thinking: "still going"},
		},
		{
			name: "held back prefix flushed to text",
			st:   feed("see <thi"),
			want: Result{Text: "see <thi"},
		},
		{
			name: "held back close prefix flushed to thinking",
			st:   feed("<think>hmm </thi"),
			want: Result{Thinking: "hmm </thi"},
		},
		{
			name: "empty stream",
			st:   New(),
			want: Result{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Finalize(tt.st))
		})
	}
}

func TestSplit(t *testing.T) {
	res := Split("<think>reasoning</think>\n\nFinal")
	assert.Equal(t, "Final", res.Text)
	assert.Equal(t, "reasoning", res.Thinking)

	res = Split(strings.Repeat("x", 3))
	assert.Equal(t, Result{Text: "xxx"}, res)
}
