package tts

import "sync"

// Generation numbers the speak sessions of one engine instance. Events
// are delivered only while their session number is current, so a
// superseded or stopped session cannot reach the caller.
type Generation struct {
	mu      sync.Mutex
	current uint64
}

// Next starts a new session and returns its number.
func (g *Generation) Next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current++
	return g.current
}

// Current returns the number of the newest session.
func (g *Generation) Current() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// IsCurrent reports whether id is still the newest session.
func (g *Generation) IsCurrent(id uint64) bool {
	return g.Current() == id
}

// Invalidate retires the current session without starting another.
func (g *Generation) Invalidate() {
	g.Next()
}

// Guard wraps fn so that it receives events only while id is current,
// and nothing after the first terminal event.
func (g *Generation) Guard(id uint64, fn EventFunc) EventFunc {
	var (
		mu   sync.Mutex
		done bool
	)
	return func(ev Event) {
		if fn == nil || !g.IsCurrent(id) {
			return
		}
		mu.Lock()
		if done {
			mu.Unlock()
			return
		}
		if ev.Terminal() {
			done = true
		}
		mu.Unlock()
		fn(ev)
	}
}

// Session tracks the asynchronous readiness chain of one Speak call.
type Session struct {
	ID uint64

	done     chan struct{}
	doneOnce sync.Once
}

// NewSession returns an unsettled session.
func NewSession(id uint64) *Session {
	return &Session{ID: id, done: make(chan struct{})}
}

// Settle marks the readiness chain as finished. It is safe to call more than once.
func (s *Session) Settle() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Done is closed once the chain has settled.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// AfterSettle runs fn on a new goroutine once s has settled. A nil
// session runs fn right away.
func AfterSettle(s *Session, fn func()) {
	if s == nil {
		fn()
		return
	}
	go func() {
		<-s.Done()
		fn()
	}()
}
