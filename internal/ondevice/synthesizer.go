// Package ondevice adapts speech synthesizers available on the local
// machine to tts.Engine.
package ondevice

import "sync"

// HostVoice is a voice as reported by a Synthesizer.
type HostVoice struct {
	Name   string
	Lang   string
	Gender string
}

// Synthesizer is a local speech host. Hosts report progress by calling
// the Started, Ended and Failed methods of the Utterance they were given.
type Synthesizer interface {
	// Speak begins speaking u, cancelling anything in progress.
	Speak(u *Utterance) error
	// Cancel stops speech without ending the utterance.
	Cancel()
	Pause()
	Resume()
	Speaking() bool

	// Voices returns the voices known so far. The list may be empty until
	// VoicesChanged fires.
	Voices() []HostVoice
	// VoicesChanged fires when the voice list is updated. Hosts whose list
	// never changes return nil.
	VoicesChanged() <-chan struct{}
}

// Utterance is one request to a Synthesizer.
type Utterance struct {
	Text   string
	Voice  string
	Lang   string
	Rate   float64
	Pitch  float64
	Volume float64

	mu      sync.Mutex
	onStart func()
	onEnd   func()
	onError func(error)
}

// Started reports that audio began.
func (u *Utterance) Started() {
	u.mu.Lock()
	fn := u.onStart
	u.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Ended reports that the utterance finished naturally.
func (u *Utterance) Ended() {
	u.mu.Lock()
	fn := u.onEnd
	u.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Failed reports a host error.
func (u *Utterance) Failed(err error) {
	u.mu.Lock()
	fn := u.onError
	u.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// detachEnd drops the end handler so a cancel is not reported as a
// natural end.
func (u *Utterance) detachEnd() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onEnd = nil
}
