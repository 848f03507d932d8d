package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/cinq/internal/notifier/sound"
)

func writeWav(t *testing.T, rate beep.SampleRate, d time.Duration) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cue.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	require.NoError(t, wav.Encode(f, beep.Silence(rate.N(d)), format))
	return path
}

func TestLoad(t *testing.T) {
	p := New()
	path := writeWav(t, 44100, 100*time.Millisecond)

	require.NoError(t, p.Load(sound.CueMessage, sound.Cue{Path: path, Volume: 0.5}))

	assert.True(t, p.Loaded(sound.CueMessage))
	assert.False(t, p.Loaded(sound.CuePing))
	assert.Equal(t, beep.SampleRate(44100), p.sampleRate)
	assert.Equal(t, 4410, p.clips[sound.CueMessage].buf.Len())
}

func TestLoad_ResamplesToFirstRate(t *testing.T) {
	p := New()
	require.NoError(t, p.Load(sound.CueMessage, sound.Cue{Path: writeWav(t, 44100, 100*time.Millisecond)}))
	require.NoError(t, p.Load(sound.CuePing, sound.Cue{Path: writeWav(t, 22050, 100*time.Millisecond)}))

	assert.Equal(t, beep.SampleRate(44100), p.sampleRate)
	assert.InDelta(t, 4410, p.clips[sound.CuePing].buf.Len(), 32)
}

func TestLoad_Errors(t *testing.T) {
	p := New()

	require.Error(t, p.Load("x", sound.Cue{Path: "cue.ogg"}))
	require.Error(t, p.Load("x", sound.Cue{Path: filepath.Join(t.TempDir(), "missing.mp3")}))

	garbage := filepath.Join(t.TempDir(), "bad.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("not audio"), 0o600))
	require.Error(t, p.Load("x", sound.Cue{Path: garbage}))
}

func TestPlay_NotLoaded(t *testing.T) {
	require.Error(t, New().Play("missing"))
}

func TestLevelToVolume(t *testing.T) {
	assert.InDelta(t, -10, levelToVolume(0), 0)
	assert.InDelta(t, -1, levelToVolume(0.5), 1e-9)
	assert.InDelta(t, 0, levelToVolume(1), 0)
	assert.InDelta(t, 0, levelToVolume(2), 0)
}
