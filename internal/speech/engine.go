package speech

import (
	"fmt"
	"log"
	"sync"
)

// Hooks are optional engine callbacks. They are invoked from the engine's
// event goroutine, one at a time.
type Hooks struct {
	// OnUpdate receives the live view (committed + provisional) after each
	// recognition result.
	OnUpdate func(live string)
	// OnEnd fires when a recognition run ends while the engine is still
	// logically active (not for runs ended by Stop or a locale switch).
	OnEnd func(committed string)
	// OnError receives recognizer failures. The engine halts its active flag
	// before invoking it.
	OnError func(err error)
}

// Engine wraps a continuous recognizer into an accumulating transcript
// buffer that survives start/stop cycles. At most one recognizer instance
// runs at a time; switching locale swaps the instance under the hood while
// the logical run continues.
type Engine struct {
	factory Factory
	hooks   Hooks

	mu     sync.Mutex
	locale string
	rec    Recognizer
	active bool
	// gen tags the current recognizer instance; events from superseded
	// instances (stopped on locale switch) are dropped so their end-of-run
	// does not trigger a stray restart.
	gen int

	buf *Buffer
}

// NewEngine builds an engine for the given locale. The factory is invoked
// lazily on Start and again on every locale change.
func NewEngine(factory Factory, locale string, hooks Hooks) *Engine {
	return &Engine{factory: factory, locale: locale, hooks: hooks, buf: NewBuffer()}
}

// Buffer exposes the transcript buffer. Callers may Reset it between tools;
// the engine never resets it on its own.
func (e *Engine) Buffer() *Buffer { return e.buf }

// Active reports whether a recognition run is logically in progress.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Locale returns the configured recognition locale.
func (e *Engine) Locale() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locale
}

// Start begins continuous recognition. Buffer state is carried over from any
// previous run; callers wanting a fresh transcript reset the buffer first.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active {
		return nil
	}
	if err := e.startLocked(); err != nil {
		return err
	}
	e.active = true
	return nil
}

// startLocked creates and starts a recognizer instance for the current
// locale and begins consuming its events.
func (e *Engine) startLocked() error {
	rec, err := e.factory(e.locale)
	if err != nil {
		return fmt.Errorf("create recognizer (%s): %w", e.locale, err)
	}
	if err := rec.Start(); err != nil {
		return fmt.Errorf("start recognizer (%s): %w", e.locale, err)
	}
	e.rec = rec
	e.gen++
	go e.consume(rec, e.gen)
	return nil
}

// Stop ends the current recognition run. The committed buffer stays intact
// so the run can be resumed; the provisional tail is discarded. Finals the
// recognizer flushes while closing still reach the buffer.
func (e *Engine) Stop() {
	e.mu.Lock()
	rec := e.rec
	e.rec = nil
	e.active = false
	e.gen++ // orphan the instance so its end event is ignored
	e.mu.Unlock()

	if rec != nil {
		rec.Stop()
	}
	e.buf.DropProvisional()
}

// SetLocale reconfigures the recognition locale. If a run is active the old
// instance is stopped with its end-of-run suppressed and a new instance
// continues the same logical run silently.
func (e *Engine) SetLocale(locale string) error {
	e.mu.Lock()
	if locale == e.locale {
		e.mu.Unlock()
		return nil
	}
	e.locale = locale
	if !e.active {
		e.mu.Unlock()
		return nil
	}
	old := e.rec
	e.rec = nil
	e.gen++ // suppress the old instance's end event
	e.mu.Unlock()

	if old != nil {
		old.Stop()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.active {
		return nil
	}
	if err := e.startLocked(); err != nil {
		e.active = false
		return err
	}
	return nil
}

// consume applies one recognizer's events to the buffer in delivery order.
// A superseded instance keeps flushing: finals emitted during its close
// handshake still commit, only its end-of-run and errors are suppressed.
func (e *Engine) consume(rec Recognizer, gen int) {
	for ev := range rec.Events() {
		current := e.currentGen(gen)
		switch ev.Type {
		case EventResult:
			if !current {
				// Last words from the closing instance; the interim tail
				// is discarded with the run.
				if len(ev.Finals) > 0 {
					e.buf.Apply(ev.Finals, "")
				}
				continue
			}
			e.buf.Apply(ev.Finals, ev.Provisional)
			if e.hooks.OnUpdate != nil {
				e.hooks.OnUpdate(e.buf.Live())
			}
		case EventError:
			if !current {
				return
			}
			log.Printf("speech: recognizer error: %v", ev.Err)
			e.mu.Lock()
			wasActive := e.active && e.gen == gen
			if wasActive {
				e.active = false
				e.rec = nil
			}
			e.mu.Unlock()
			if wasActive && e.hooks.OnError != nil {
				e.hooks.OnError(ev.Err)
			}
			return
		case EventEnd:
			if !current {
				return
			}
			e.mu.Lock()
			stillActive := e.active && e.gen == gen
			if stillActive {
				e.active = false
				e.rec = nil
			}
			e.mu.Unlock()
			// The run is over either way; interim text dies with it.
			e.buf.DropProvisional()
			if stillActive && e.hooks.OnEnd != nil {
				e.hooks.OnEnd(e.buf.Committed())
			}
			return
		}
	}
}

// AudioSink is implemented by recognizers that accept raw PCM input.
type AudioSink interface {
	SendAudio(pcm []byte) error
}

// FeedAudio forwards captured audio to the active recognizer, if it takes
// raw input. Audio arriving between runs is dropped.
func (e *Engine) FeedAudio(pcm []byte) {
	e.mu.Lock()
	rec := e.rec
	e.mu.Unlock()
	if sink, ok := rec.(AudioSink); ok {
		_ = sink.SendAudio(pcm)
	}
}

func (e *Engine) currentGen(gen int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen == gen
}
