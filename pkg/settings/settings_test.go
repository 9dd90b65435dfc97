package settings

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/pi-llama/pkg/voice"
)

type brokenKV struct{}

func (brokenKV) Get(context.Context, string) (string, error) { return "", errors.New("disk gone") }
func (brokenKV) Set(context.Context, string, string) error   { return errors.New("disk gone") }

func TestRepository_LoadFallbacks(t *testing.T) {
	tests := []struct {
		name string
		raw  *string
		want Settings
	}{
		{name: "missing key", raw: nil, want: Defaults()},
		{name: "invalid json", raw: ptr("{not json"), want: Defaults()},
		{name: "unknown voice", raw: ptr(`{"autoPlay":false,"voice":"robot"}`), want: Settings{AutoPlay: false, Voice: voice.Alloy}},
		{name: "partial object", raw: ptr(`{"voice":"nova"}`), want: Settings{AutoPlay: true, Voice: voice.Nova}},
		{name: "full object", raw: ptr(`{"autoPlay":false,"voice":"echo"}`), want: Settings{AutoPlay: false, Voice: voice.Echo}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := NewMemoryKV()
			if tt.raw != nil {
				require.NoError(t, kv.Set(context.Background(), StorageKey, *tt.raw))
			}

			got, err := NewRepository(kv).Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepository_Update(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	repo := NewRepository(kv)

	s, err := repo.SetVoice(ctx, voice.Fable)
	require.NoError(t, err)
	assert.Equal(t, Settings{AutoPlay: true, Voice: voice.Fable}, s)

	s, err = repo.SetAutoPlay(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, Settings{AutoPlay: false, Voice: voice.Fable}, s)

	raw, err := kv.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"autoPlay":false,"voice":"fable"}`, raw)

	_, err = repo.SetVoice(ctx, voice.Voice("robot"))
	assert.ErrorIs(t, err, voice.ErrInvalidVoice)
}

func TestRepository_LoadIsCached(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	require.NoError(t, kv.Set(ctx, StorageKey, `{"autoPlay":false,"voice":"echo"}`))

	repo := NewRepository(kv)
	first, err := repo.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, kv.Set(ctx, StorageKey, `{"autoPlay":true,"voice":"nova"}`))
	second, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRepository_StoreFailure(t *testing.T) {
	repo := NewRepository(brokenKV{})

	s, err := repo.Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, Defaults(), s)

	assert.Error(t, repo.Save(context.Background(), Defaults()))
}

func TestSQLiteKV_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.db")

	kv, err := OpenSQLite(path)
	require.NoError(t, err)

	_, err = kv.Get(ctx, StorageKey)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewRepository(kv).SetVoice(ctx, voice.Onyx)
	require.NoError(t, err)
	require.NoError(t, kv.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	s, err := NewRepository(reopened).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Settings{AutoPlay: true, Voice: voice.Onyx}, s)
}

func ptr(s string) *string { return &s }
