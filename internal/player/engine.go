package player

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/soundwave/internal/shared"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

// Engine is the local audio surface the controller drives. The production
// implementation wraps beep; tests inject a fake so they run without an
// audio device.
type Engine interface {
	// Load decodes the file and returns its duration in seconds.
	Load(path string) (float64, error)
	// Play starts or resumes output. Returns [shared.ErrPlaybackBlocked]
	// when the audio device cannot be opened.
	Play() error
	// Pause suspends output without losing position.
	Pause()
	// SeekTo jumps to an absolute position in seconds.
	SeekTo(seconds float64)
	// SetVolume applies a level in [0, 1].
	SetVolume(v float64)
	// SetMuted silences output without changing the stored level.
	SetMuted(muted bool)
	// Position returns the playhead in seconds.
	Position() float64
	// Ended signals once when the loaded stream finishes.
	Ended() <-chan struct{}
	// Close releases the loaded stream.
	Close() error
}

// BeepEngine decodes and plays local files through the speaker package.
type BeepEngine struct {
	mu sync.Mutex

	sampleRate  beep.SampleRate
	bufferSize  time.Duration
	speakerInit bool

	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	started  bool
	ended    chan struct{}

	// drained flips when the end-of-stream callback fires. The mixer drops
	// drained streamers, so resuming the old ctrl would be a no-op; Play has
	// to hand the speaker a fresh chain instead. Atomic because the callback
	// runs on the speaker goroutine and must not take mu.
	drained atomic.Bool

	level  float64
	muted  bool
	logger *log.Logger
}

var _ Engine = (*BeepEngine)(nil)

// NewBeepEngine creates an engine using the configured speaker settings.
func NewBeepEngine(cfg shared.AudioConfig, logger *log.Logger) *BeepEngine {
	sampleRate := beep.SampleRate(cfg.SampleRate)
	if sampleRate <= 0 {
		sampleRate = beep.SampleRate(44100)
	}

	buffer := time.Duration(cfg.BufferMS) * time.Millisecond
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}

	return &BeepEngine{
		sampleRate: sampleRate,
		bufferSize: buffer,
		level:      cfg.DefaultVolume,
		ended:      make(chan struct{}, 1),
		logger:     logger,
	}
}

// Load decodes the file by extension and prepares it for playback. Any
// previously loaded stream is released.
func (e *BeepEngine) Load(path string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.releaseLocked()

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open audio file: %w", err)
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	default:
		f.Close()
		return 0, fmt.Errorf("%w: unsupported audio format %q", shared.ErrInvalidInput, filepath.Ext(path))
	}

	if err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to decode audio: %w", err)
	}

	e.file = f
	e.streamer = streamer
	e.format = format
	e.started = false
	e.ended = make(chan struct{}, 1)

	duration := format.SampleRate.D(streamer.Len()).Seconds()
	e.logger.Debug("loaded audio file", "path", path, "duration", duration)

	return duration, nil
}

// Play starts the loaded stream, or resumes it when paused. The speaker is
// initialized lazily; failure to open the device reports
// [shared.ErrPlaybackBlocked] so the controller can simulate instead.
func (e *BeepEngine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.streamer == nil {
		return fmt.Errorf("no track loaded")
	}

	if !e.speakerInit {
		if err := speaker.Init(e.sampleRate, e.sampleRate.N(e.bufferSize)); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrPlaybackBlocked, err)
		}
		e.speakerInit = true
	}

	if e.started && e.ctrl != nil && !e.drained.Load() {
		speaker.Lock()
		e.ctrl.Paused = false
		speaker.Unlock()
		return nil
	}

	var stream beep.Streamer = e.streamer
	if e.format.SampleRate != e.sampleRate {
		stream = beep.Resample(4, e.format.SampleRate, e.sampleRate, e.streamer)
	}

	ended := e.ended
	e.volume = &effects.Volume{
		Streamer: stream,
		Base:     2,
		Volume:   levelToExponent(e.level),
		Silent:   e.muted || e.level == 0,
	}
	e.ctrl = &beep.Ctrl{
		Streamer: beep.Seq(e.volume, beep.Callback(func() {
			e.drained.Store(true)
			select {
			case ended <- struct{}{}:
			default:
			}
		})),
	}

	e.drained.Store(false)
	speaker.Play(e.ctrl)
	e.started = true

	return nil
}

// Pause suspends output, keeping the playhead.
func (e *BeepEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctrl == nil {
		return
	}

	speaker.Lock()
	e.ctrl.Paused = true
	speaker.Unlock()
}

// SeekTo jumps to an absolute position in seconds.
func (e *BeepEngine) SeekTo(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.streamer == nil {
		return
	}

	position := e.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	if position < 0 {
		position = 0
	}
	if position > e.streamer.Len() {
		position = e.streamer.Len()
	}

	speaker.Lock()
	if err := e.streamer.Seek(position); err != nil {
		e.logger.Debug("seek failed", "error", err)
	}
	speaker.Unlock()
}

// SetVolume applies a level in [0, 1], mapped to a decibel exponent.
func (e *BeepEngine) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.level = shared.Clamp(v, 0, 1)

	if e.volume == nil {
		return
	}

	speaker.Lock()
	e.volume.Volume = levelToExponent(e.level)
	e.volume.Silent = e.muted || e.level == 0
	speaker.Unlock()
}

// SetMuted silences output without touching the stored level.
func (e *BeepEngine) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.muted = muted

	if e.volume == nil {
		return
	}

	speaker.Lock()
	e.volume.Silent = muted || e.level == 0
	speaker.Unlock()
}

// Position returns the playhead in seconds.
func (e *BeepEngine) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.streamer == nil {
		return 0
	}

	speaker.Lock()
	position := e.streamer.Position()
	speaker.Unlock()

	return e.format.SampleRate.D(position).Seconds()
}

// Ended signals when the loaded stream finishes.
func (e *BeepEngine) Ended() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended
}

// Close releases the loaded stream and file.
func (e *BeepEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.speakerInit {
		speaker.Clear()
	}
	e.releaseLocked()

	return nil
}

func (e *BeepEngine) releaseLocked() {
	if e.speakerInit && e.started {
		speaker.Clear()
	}
	if e.streamer != nil {
		e.streamer.Close()
		e.streamer = nil
	}
	if e.file != nil {
		e.file.Close()
		e.file = nil
	}
	e.ctrl = nil
	e.volume = nil
	e.started = false
	e.drained.Store(false)
}

// levelToExponent maps a linear [0, 1] level onto a base-2 volume exponent.
// Zero is handled by the Silent flag, not the exponent.
func levelToExponent(level float64) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}
