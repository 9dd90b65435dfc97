package voice

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/pi-llama/pkg/config"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.VoiceConfig{BaseURL: srv.URL}
	cfg = cfg.GetDefaults(srv.URL)
	return NewClient(cfg)
}

func TestClient_Transcribe(t *testing.T) {
	var gotFilename, gotAudio string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/whisper/asr", r.URL.Path)
		file, header, err := r.FormFile("audio_file")
		require.NoError(t, err)
		defer file.Close()
		raw, _ := io.ReadAll(file)
		gotFilename, gotAudio = header.Filename, string(raw)
		io.WriteString(w, "  hello world \n")
	}))

	text, err := client.Transcribe(context.Background(), strings.NewReader("RIFF...."), "")
	require.NoError(t, err)

	assert.Equal(t, "hello world", text)
	assert.Equal(t, "recording.webm", gotFilename)
	assert.Equal(t, "RIFF....", gotAudio)
}

func TestClient_TranscribeFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.Transcribe(context.Background(), strings.NewReader("x"), "clip.wav")
	require.Error(t, err)
	assert.Equal(t, "Transcription failed: 503 Service Unavailable", err.Error())
}

func TestClient_Synthesize(t *testing.T) {
	var got speechRequest
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tts/v1/audio/speech", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3mp3"))
	}))

	audio, err := client.Synthesize(context.Background(), "Hi there", "")
	require.NoError(t, err)

	assert.Equal(t, []byte("ID3mp3"), audio)
	assert.Equal(t, speechRequest{Model: "tts-1", Input: "Hi there", Voice: Alloy, ResponseFormat: "mp3"}, got)
}

func TestClient_SynthesizeFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.Synthesize(context.Background(), "Hi", Nova)
	require.Error(t, err)
	assert.Equal(t, "Speech synthesis failed: 500 Internal Server Error", err.Error())

	_, err = client.Synthesize(context.Background(), "Hi", Voice("robot"))
	assert.ErrorIs(t, err, ErrInvalidVoice)
}

func TestParseVoice(t *testing.T) {
	v, err := ParseVoice(" Shimmer ")
	require.NoError(t, err)
	assert.Equal(t, Shimmer, v)

	_, err = ParseVoice("robot")
	assert.ErrorIs(t, err, ErrInvalidVoice)

	assert.Len(t, Voices(), 6)
	assert.Equal(t, Alloy, DefaultVoice)
}
