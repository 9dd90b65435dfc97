package sse

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		want   string
		wantOK bool
	}{
		{
			name:   "content delta",
			line:   `data: {"choices":[{"delta":{"content":"Hello"}}]}`,
			want:   "Hello",
			wantOK: true,
		},
		{
			name:   "whitespace is preserved inside content",
			line:   `data: {"choices":[{"delta":{"content":" world "}}]}`,
			want:   " world ",
			wantOK: true,
		},
		{
			name: "done sentinel",
			line: "data: [DONE]",
		},
		{
			name: "malformed json",
			line: "data: {not json",
		},
		{
			name: "role only delta",
			line: `data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		},
		{
			name: "empty content",
			line: `data: {"choices":[{"delta":{"content":""}}]}`,
		},
		{
			name: "null content",
			line: `data: {"choices":[{"delta":{"content":null}}]}`,
		},
		{
			name: "no choices",
			line: `data: {"choices":[]}`,
		},
		{
			name: "comment line",
			line: ": keep-alive",
		},
		{
			name: "event field",
			line: "event: message",
		},
		{
			name: "prefix without space",
			line: `data:{"choices":[{"delta":{"content":"x"}}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLine(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func frame(content string) string {
	return `data: {"choices":[{"delta":{"content":"` + content + `"}}]}` + "\n\n"
}

func TestDecoder_FeedCarriesPartialLine(t *testing.T) {
	var dec Decoder

	line := frame("abc")
	tokens := dec.Feed([]byte(line[:10]))
	assert.Empty(t, tokens)
	assert.Equal(t, 10, dec.Pending())

	tokens = dec.Feed([]byte(line[10:]))
	assert.Equal(t, []string{"abc"}, tokens)
	assert.Equal(t, 0, dec.Pending())
}

func TestDecoder_SkipsBlankAndCRLFLines(t *testing.T) {
	var dec Decoder

	input := "\r\n   \n" + strings.TrimSuffix(frame("x"), "\n\n") + "\r\n" + "data: [DONE]\r\n"
	tokens := dec.Feed([]byte(input))

	assert.Equal(t, []string{"x"}, tokens)
	assert.Empty(t, dec.Flush())
}

func TestDecoder_FlushParsesUnterminatedTail(t *testing.T) {
	var dec Decoder

	tail := strings.TrimSuffix(frame("tail"), "\n\n")
	assert.Empty(t, dec.Feed([]byte(tail)))
	assert.Equal(t, []string{"tail"}, dec.Flush())
	assert.Empty(t, dec.Flush(), "flush drains the buffer")
}

// Результат не зависит от нарезки потока на чанки.
func TestDecoder_ChunkingIndependence(t *testing.T) {
	stream := frame("Hel") + frame("lo") + ": ping\n" + frame(", ") + "data: oops\n" + frame("world") + "data: [DONE]\n"
	want := []string{"Hel", "lo", ", ", "world"}

	for size := 1; size <= len(stream); size++ {
		var dec Decoder
		var got []string
		for start := 0; start < len(stream); start += size {
			end := min(start+size, len(stream))
			got = append(got, dec.Feed([]byte(stream[start:end]))...)
		}
		got = append(got, dec.Flush()...)

		require.Equal(t, want, got, "chunk size %d", size)
	}
}

// oneByteReader отдаёт поток по одному байту за Read.
type oneByteReader struct {
	r io.Reader
}

func (o *oneByteReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return o.r.Read(p[:1])
}

func TestScan(t *testing.T) {
	body := frame("a") + frame("b") + strings.TrimSuffix(frame("c"), "\n\n")

	var got []string
	err := Scan(context.Background(), &oneByteReader{r: strings.NewReader(body)}, func(tok string) {
		got = append(got, tok)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

type failingReader struct {
	data string
	err  error
	done bool
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.done {
		return 0, f.err
	}
	f.done = true
	return copy(p, f.data), nil
}

func TestScan_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := &failingReader{data: frame("partial"), err: boom}

	var got []string
	err := Scan(context.Background(), r, func(tok string) { got = append(got, tok) })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"partial"}, got)
}

func TestScan_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Scan(ctx, strings.NewReader(frame("x")), func(string) { called = true })

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
