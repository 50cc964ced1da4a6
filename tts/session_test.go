package tts

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGuardDropsStaleSessions(t *testing.T) {
	var g Generation
	var got []EventType
	fn := func(ev Event) { got = append(got, ev.Type) }

	first := g.Guard(g.Next(), fn)
	second := g.Guard(g.Next(), fn)

	first(StartEvent())
	second(StartEvent())
	assert.Equal(t, []EventType{EventStart}, got)

	g.Invalidate()
	second(EndEvent("x"))
	assert.Equal(t, []EventType{EventStart}, got)
}

func TestGuardSingleTerminal(t *testing.T) {
	var g Generation
	var got []EventType
	emit := g.Guard(g.Next(), func(ev Event) { got = append(got, ev.Type) })

	emit(StartEvent())
	emit(EndEvent("abc"))
	emit(ErrorEvent(ErrNeverStarted))
	emit(EndEvent("abc"))

	assert.Equal(t, []EventType{EventStart, EventEnd}, got)
}

func TestGuardConcurrentTerminals(t *testing.T) {
	var g Generation
	var mu sync.Mutex
	terminals := 0
	emit := g.Guard(g.Next(), func(ev Event) {
		if ev.Terminal() {
			mu.Lock()
			terminals++
			mu.Unlock()
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			emit(EndEvent(""))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, terminals)
}

func TestGuardNilFunc(t *testing.T) {
	var g Generation
	assert.NotPanics(t, func() { g.Guard(g.Next(), nil)(StartEvent()) })
}

func TestAfterSettle(t *testing.T) {
	ran := make(chan struct{})
	s := NewSession(1)
	AfterSettle(s, func() { close(ran) })

	select {
	case <-ran:
		t.Fatal("ran before settle")
	case <-time.After(20 * time.Millisecond):
	}

	s.Settle()
	s.Settle()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("did not run after settle")
	}

	called := false
	AfterSettle(nil, func() { called = true })
	assert.True(t, called)
}
