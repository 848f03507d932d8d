// Package audio plays short notification cues through the system speaker.
package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"

	"github.com/colonyops/cinq/internal/notifier/sound"
)

type clip struct {
	buf    *beep.Buffer
	volume float64
}

// Player decodes cues into memory and plays them on demand.
type Player struct {
	mu         sync.Mutex
	clips      map[string]clip
	sampleRate beep.SampleRate
	speakerErr error
	speakerOn  bool
}

// New creates a player. The speaker is opened on the first Play.
func New() *Player {
	return &Player{clips: make(map[string]clip)}
}

// Load decodes the cue file and keeps it in memory under name.
func (p *Player) Load(name string, cue sound.Cue) error {
	streamer, format, err := decode(cue.Path)
	if err != nil {
		return err
	}
	defer func() { _ = streamer.Close() }()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.sampleRate == 0 {
		p.sampleRate = format.SampleRate
	}

	var s beep.Streamer = streamer
	if format.SampleRate != p.sampleRate {
		s = beep.Resample(4, format.SampleRate, p.sampleRate, streamer)
	}

	buf := beep.NewBuffer(beep.Format{SampleRate: p.sampleRate, NumChannels: 2, Precision: 2})
	buf.Append(s)

	p.clips[name] = clip{buf: buf, volume: cue.Volume}
	return nil
}

// Loaded reports whether name has been decoded.
func (p *Player) Loaded(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.clips[name]
	return ok
}

// Play starts playback of name without waiting for it to finish.
func (p *Player) Play(name string) error {
	p.mu.Lock()
	c, ok := p.clips[name]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("sound %q not loaded", name)
	}
	if err := p.ensureSpeaker(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	speaker.Play(&effects.Volume{
		Streamer: c.buf.Streamer(0, c.buf.Len()),
		Base:     2,
		Volume:   levelToVolume(c.volume),
		Silent:   c.volume <= 0,
	})
	return nil
}

func (p *Player) ensureSpeaker() error {
	if p.speakerOn {
		return nil
	}
	if p.speakerErr != nil {
		return p.speakerErr
	}
	if err := speaker.Init(p.sampleRate, p.sampleRate.N(time.Second/10)); err != nil {
		p.speakerErr = fmt.Errorf("open speaker: %w", err)
		return p.speakerErr
	}
	p.speakerOn = true
	return nil
}

func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".mp3" && ext != ".flac" && ext != ".wav" {
		return nil, beep.Format{}, fmt.Errorf("unsupported format: %s", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("open sound: %w", err)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	}
	if err != nil {
		_ = f.Close()
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return streamer, format, nil
}

// levelToVolume converts a 0.0-1.0 level to beep's base-2 volume.
// 1.0 -> 0, 0.5 -> -1, 0.25 -> -2, 0 -> -10.
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}
