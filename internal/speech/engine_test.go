package speech

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeRecognizer struct {
	locale string
	events chan Event
	// flushOnStop mimics a service committing buffered words during the
	// close handshake.
	flushOnStop []string

	mu      sync.Mutex
	started bool
	stopped bool
}

func newFakeRecognizer(locale string) *fakeRecognizer {
	return &fakeRecognizer{locale: locale, events: make(chan Event, 16)}
}

func (f *fakeRecognizer) Start() error {
	f.mu.Lock()
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeRecognizer) Stop() {
	f.mu.Lock()
	if !f.stopped {
		f.stopped = true
		if len(f.flushOnStop) > 0 {
			f.events <- Event{Type: EventResult, Finals: f.flushOnStop}
		}
		f.events <- Event{Type: EventEnd}
		close(f.events)
	}
	f.mu.Unlock()
}

func (f *fakeRecognizer) Events() <-chan Event { return f.events }

// trackingFactory records every recognizer it hands out.
type trackingFactory struct {
	mu   sync.Mutex
	recs []*fakeRecognizer
}

func (tf *trackingFactory) factory(locale string) (Recognizer, error) {
	r := newFakeRecognizer(locale)
	tf.mu.Lock()
	tf.recs = append(tf.recs, r)
	tf.mu.Unlock()
	return r, nil
}

func (tf *trackingFactory) rec(i int) *fakeRecognizer {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.recs[i]
}

func (tf *trackingFactory) count() int {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return len(tf.recs)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition never met")
}

func TestEngine_BufferSurvivesStopStart(t *testing.T) {
	tf := &trackingFactory{}
	e := NewEngine(tf.factory, "en-US", Hooks{})

	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	tf.rec(0).events <- Event{Type: EventResult, Finals: []string{"part one"}}
	waitFor(t, func() bool { return e.Buffer().Committed() == "part one" })

	e.Stop()
	if err := e.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	tf.rec(1).events <- Event{Type: EventResult, Finals: []string{"part two"}}
	waitFor(t, func() bool { return e.Buffer().Committed() == "part one part two" })
}

func TestEngine_LocaleSwitchSuppressesOldEnd(t *testing.T) {
	tf := &trackingFactory{}
	var endCount int
	var mu sync.Mutex
	e := NewEngine(tf.factory, "en-US", Hooks{
		OnEnd: func(string) {
			mu.Lock()
			endCount++
			mu.Unlock()
		},
	})

	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.SetLocale("hi-IN"); err != nil {
		t.Fatalf("set locale: %v", err)
	}

	waitFor(t, func() bool { return tf.count() == 2 })
	if got := tf.rec(1).locale; got != "hi-IN" {
		t.Fatalf("new recognizer locale = %q, want hi-IN", got)
	}
	if !e.Active() {
		t.Fatalf("engine must continue the logical run across a locale switch")
	}

	// The old instance's end-of-run must be ignored.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if endCount != 0 {
		t.Fatalf("locale switch leaked %d end callbacks", endCount)
	}
}

func TestEngine_StopDoesNotFireOnEnd(t *testing.T) {
	tf := &trackingFactory{}
	fired := make(chan struct{}, 1)
	e := NewEngine(tf.factory, "en-US", Hooks{
		OnEnd: func(string) { fired <- struct{}{} },
	})
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	e.Stop()
	select {
	case <-fired:
		t.Fatalf("OnEnd must not fire for an explicit Stop")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestEngine_ErrorHaltsActiveAndSurfaces(t *testing.T) {
	tf := &trackingFactory{}
	errCh := make(chan error, 1)
	e := NewEngine(tf.factory, "en-US", Hooks{
		OnError: func(err error) { errCh <- err },
	})
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	want := errors.New("mic denied")
	tf.rec(0).events <- Event{Type: EventError, Err: want}

	select {
	case got := <-errCh:
		if !errors.Is(got, want) {
			t.Fatalf("surfaced error = %v, want %v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatalf("error never surfaced")
	}
	if e.Active() {
		t.Fatalf("engine must halt its active flag on recognizer error")
	}
}

func TestEngine_StopKeepsFinalsFlushedWhileClosing(t *testing.T) {
	tf := &trackingFactory{}
	fired := make(chan struct{}, 1)
	e := NewEngine(tf.factory, "en-US", Hooks{
		OnEnd: func(string) { fired <- struct{}{} },
	})
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	tf.rec(0).events <- Event{Type: EventResult, Finals: []string{"spoken before stop"}}
	waitFor(t, func() bool { return e.Buffer().Committed() == "spoken before stop" })

	tf.rec(0).flushOnStop = []string{"trailing words"}
	e.Stop()

	waitFor(t, func() bool { return e.Buffer().Committed() == "spoken before stop trailing words" })
	select {
	case <-fired:
		t.Fatalf("OnEnd must not fire for an explicit Stop")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestEngine_LocaleSwitchKeepsFinalsFlushedWhileClosing(t *testing.T) {
	tf := &trackingFactory{}
	e := NewEngine(tf.factory, "en-US", Hooks{})
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	tf.rec(0).flushOnStop = []string{"last english words"}

	if err := e.SetLocale("hi-IN"); err != nil {
		t.Fatalf("set locale: %v", err)
	}
	waitFor(t, func() bool { return e.Buffer().Committed() == "last english words" })
	if !e.Active() {
		t.Fatalf("engine must continue the logical run across a locale switch")
	}
}

func TestEngine_NaturalEndDropsProvisional(t *testing.T) {
	tf := &trackingFactory{}
	done := make(chan struct{}, 1)
	e := NewEngine(tf.factory, "en-US", Hooks{
		OnEnd: func(string) { done <- struct{}{} },
	})
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	tf.rec(0).events <- Event{Type: EventResult, Finals: []string{"hello"}, Provisional: "wor"}
	tf.rec(0).events <- Event{Type: EventEnd}

	<-done
	if live := e.Buffer().Live(); live != "hello" {
		t.Fatalf("live after end = %q, interim text must be discarded", live)
	}
}

func TestEngine_NaturalEndFiresOnEndWithCommitted(t *testing.T) {
	tf := &trackingFactory{}
	got := make(chan string, 1)
	e := NewEngine(tf.factory, "en-US", Hooks{
		OnEnd: func(committed string) { got <- committed },
	})
	if err := e.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	tf.rec(0).events <- Event{Type: EventResult, Finals: []string{"hello there"}}
	tf.rec(0).events <- Event{Type: EventEnd}

	select {
	case text := <-got:
		if text != "hello there" {
			t.Fatalf("OnEnd committed = %q", text)
		}
	case <-time.After(time.Second):
		t.Fatalf("OnEnd never fired")
	}
}
