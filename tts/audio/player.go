package audio

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

const (
	// outputSampleRate is the rate of the shared oto context.
	outputSampleRate = 44100

	// pollInterval is how often a playing source is checked for completion.
	pollInterval = 20 * time.Millisecond
)

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

// sharedContext returns the process-wide oto context. oto allows only one.
func sharedContext() (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   outputSampleRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// Player is an Element that decodes MP3 sources and plays them through oto.
type Player struct {
	client *http.Client
	logger *log.Logger

	mu       sync.Mutex
	loadID   uint64
	pcm      []byte
	srcRate  int
	handlers Handlers
	player   *oto.Player
	paused   bool
	volume   float64
	rate     float64
	closed   bool
}

// NewPlayer creates a Player. A nil client uses a client with a 30s timeout.
func NewPlayer(client *http.Client) *Player {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Player{
		client: client,
		logger: log.Default().WithPrefix("audio"),
		volume: 1,
		rate:   1,
	}
}

// Load fetches and decodes src.
func (p *Player) Load(ctx context.Context, src string, h Handlers) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.loadID++
	id := p.loadID
	p.closePlayerLocked()
	p.pcm = nil
	p.handlers = Handlers{}
	p.mu.Unlock()

	data, err := fetchSource(ctx, p.client, src)
	if err != nil {
		return err
	}
	pcm, rate, err := decodeMP3(data)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadID != id {
		return fmt.Errorf("load superseded: %w", context.Canceled)
	}
	p.pcm = pcm
	p.srcRate = rate
	p.handlers = h
	p.logger.Debug("Source loaded", "bytes", len(data), "sampleRate", rate)
	return nil
}

// Play starts the loaded source or continues it after Pause.
func (p *Player) Play() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.pcm == nil {
		p.mu.Unlock()
		return ErrNoSource
	}
	if p.player != nil {
		if p.paused {
			p.player.Play()
			p.paused = false
		}
		p.mu.Unlock()
		return nil
	}

	octx, err := sharedContext()
	if err != nil {
		p.mu.Unlock()
		return err
	}
	data := resample(p.pcm, p.srcRate, outputSampleRate, p.rate)
	pl := octx.NewPlayer(bytes.NewReader(data))
	pl.SetVolume(p.volume)
	p.player = pl
	p.paused = false
	id, h := p.loadID, p.handlers
	pl.Play()
	p.mu.Unlock()

	go p.watch(id, pl, h)
	return nil
}

// watch reports OnPlay, then OnEnded or OnError once pl drains.
func (p *Player) watch(id uint64, pl *oto.Player, h Handlers) {
	h.play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for range ticker.C {
		p.mu.Lock()
		if p.loadID != id || p.player != pl {
			p.mu.Unlock()
			return
		}
		if p.paused || pl.IsPlaying() {
			p.mu.Unlock()
			continue
		}
		err := pl.Err()
		p.closePlayerLocked()
		p.mu.Unlock()

		if err != nil {
			h.fail(err)
		} else {
			h.ended()
		}
		return
	}
}

// Pause suspends output.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player != nil && !p.paused {
		p.player.Pause()
		p.paused = true
	}
}

// SetVolume sets the output volume, clamped to [0, 1].
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = min(max(v, 0), 1)
	if p.player != nil {
		p.player.SetVolume(p.volume)
	}
}

// SetPlaybackRate sets the rate used when playback next starts.
func (p *Player) SetPlaybackRate(r float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r > 0 {
		p.rate = r
	}
}

// Playing reports whether audio is being produced.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.player != nil && !p.paused && p.player.IsPlaying()
}

// Close stops playback and releases the source.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closePlayerLocked()
	p.pcm = nil
	p.closed = true
	return nil
}

func (p *Player) closePlayerLocked() {
	if p.player == nil {
		return
	}
	p.player.Pause()
	_ = p.player.Close()
	p.player = nil
	p.paused = false
}

var _ Element = (*Player)(nil)
