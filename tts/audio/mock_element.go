package audio

import (
	"context"
	"fmt"
	"sync"
)

// MockElement implements Element without producing sound. Handlers fire
// synchronously from Play, Finish and Fail.
type MockElement struct {
	// LoadErr and PlayErr are returned by Load and Play when set.
	LoadErr error
	PlayErr error

	// LoadGate, when non-nil, blocks Load until it is closed or the
	// context is done.
	LoadGate chan struct{}

	// AutoFinish ends playback as soon as it starts.
	AutoFinish bool

	mu         sync.Mutex
	loadSeq    int
	sources    []string
	handlers   Handlers
	loaded     bool
	started    bool
	playing    bool
	volume     float64
	rate       float64
	playCount  int
	pauseCount int
}

// NewMockElement creates a MockElement at volume and rate 1.
func NewMockElement() *MockElement {
	return &MockElement{volume: 1, rate: 1}
}

// Load records src and stores h.
func (m *MockElement) Load(ctx context.Context, src string, h Handlers) error {
	m.mu.Lock()
	m.loadSeq++
	seq := m.loadSeq
	m.sources = append(m.sources, src)
	m.handlers = Handlers{}
	m.loaded = false
	m.started = false
	m.playing = false
	gate, err := m.LoadGate, m.LoadErr
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadSeq != seq {
		return fmt.Errorf("load superseded: %w", context.Canceled)
	}
	m.handlers = h
	m.loaded = true
	return nil
}

// Play starts or resumes playback.
func (m *MockElement) Play() error {
	m.mu.Lock()
	if m.PlayErr != nil {
		err := m.PlayErr
		m.mu.Unlock()
		return err
	}
	if !m.loaded {
		m.mu.Unlock()
		return ErrNoSource
	}
	m.playCount++
	resumed := m.started
	m.started = true
	m.playing = true
	h, auto := m.handlers, m.AutoFinish
	m.mu.Unlock()

	if resumed {
		return nil
	}
	h.play()
	if auto {
		m.Finish()
	}
	return nil
}

// Pause suspends playback.
func (m *MockElement) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseCount++
	m.playing = false
}

// SetVolume records v.
func (m *MockElement) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
}

// SetPlaybackRate records r.
func (m *MockElement) SetPlaybackRate(r float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = r
}

// Playing reports whether playback is active.
func (m *MockElement) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// Finish ends the current playback and fires OnEnded.
func (m *MockElement) Finish() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.playing = false
	m.started = false
	h := m.handlers
	m.mu.Unlock()
	h.ended()
}

// Fail fires OnError with err.
func (m *MockElement) Fail(err error) {
	m.mu.Lock()
	m.playing = false
	m.started = false
	h := m.handlers
	m.mu.Unlock()
	h.fail(err)
}

// Sources returns every source passed to Load, oldest first.
func (m *MockElement) Sources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sources...)
}

// Volume returns the last volume set.
func (m *MockElement) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// PlaybackRate returns the last rate set.
func (m *MockElement) PlaybackRate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rate
}

// PlayCount returns the number of successful Play calls.
func (m *MockElement) PlayCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playCount
}

// PauseCount returns the number of Pause calls.
func (m *MockElement) PauseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pauseCount
}

var _ Element = (*MockElement)(nil)
