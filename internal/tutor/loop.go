// Package tutor runs the spoken tutor's turn-taking loop: listen to the
// user, think up a reply, speak it aloud, and listen again.
package tutor

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/prav10140/Shiksha-Sarthi/internal/ai"
	"github.com/prav10140/Shiksha-Sarthi/internal/speech"
	"github.com/prav10140/Shiksha-Sarthi/internal/tts"
)

// State is the loop's current phase. Exactly one holds at a time.
type State int

const (
	StateIdle State = iota
	StateListening
	StateThinking
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateThinking:
		return "thinking"
	case StateSpeaking:
		return "speaking"
	default:
		return "idle"
	}
}

// Chat is the conversational generation operation.
type Chat interface {
	VoiceChat(ctx context.Context, history []ai.Message, userText, locale string) (string, error)
}

// Engine is the slice of the speech engine the loop drives.
type Engine interface {
	Start() error
	Stop()
	SetLocale(locale string) error
	Buffer() *speech.Buffer
}

// Hooks observe loop progress. Both are optional and are invoked from loop
// goroutines.
type Hooks struct {
	OnState   func(State)
	OnCaption func(text string)
}

// Loop is the tutor's dialogue state machine:
//
//	idle -> listening -> thinking -> speaking -> listening -> ...
//
// End returns to idle from any active state, stopping recognition and
// cancelling in-progress playback. A silent listen self-loops back into
// listening instead of advancing.
type Loop struct {
	ctx    context.Context
	chat   Chat
	synth  tts.Synthesizer
	engine Engine
	hooks  Hooks

	mu          sync.Mutex
	state       State
	active      bool
	locale      string
	history     []ai.Message
	speakCancel context.CancelFunc
	voices      []tts.Voice
	voicesOnce  sync.Once
}

// NewLoop builds an idle loop. The engine's OnEnd hook must be wired to
// HandleListenEnd (NewEngineLoop does this for callers using the speech
// package directly).
func NewLoop(ctx context.Context, chat Chat, synth tts.Synthesizer, engine Engine, locale string, hooks Hooks) *Loop {
	return &Loop{ctx: ctx, chat: chat, synth: synth, engine: engine, locale: locale, hooks: hooks, state: StateIdle}
}

// NewEngineLoop constructs the loop together with its speech engine so the
// end-of-listen hook is wired correctly.
func NewEngineLoop(ctx context.Context, chat Chat, synth tts.Synthesizer, factory speech.Factory, locale string, hooks Hooks) *Loop {
	l := &Loop{ctx: ctx, chat: chat, synth: synth, locale: locale, hooks: hooks, state: StateIdle}
	l.engine = speech.NewEngine(factory, locale, speech.Hooks{
		OnUpdate: func(live string) {
			if hooks.OnCaption != nil {
				hooks.OnCaption(live)
			}
		},
		OnEnd: func(committed string) { l.HandleListenEnd(committed) },
		OnError: func(err error) {
			log.Printf("tutor: recognition error: %v", err)
			l.End()
		},
	})
	return l
}

// FeedAudio forwards captured audio to the loop's recognizer.
func (l *Loop) FeedAudio(pcm []byte) {
	if feeder, ok := l.engine.(interface{ FeedAudio([]byte) }); ok {
		feeder.FeedAudio(pcm)
	}
}

// State returns the loop's current phase.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
	if l.hooks.OnState != nil {
		l.hooks.OnState(s)
	}
}

// Start begins a conversation: the loop enters listening.
func (l *Loop) Start() error {
	l.mu.Lock()
	if l.active {
		l.mu.Unlock()
		return nil
	}
	l.active = true
	l.mu.Unlock()

	l.engine.Buffer().Reset()
	if err := l.engine.Start(); err != nil {
		l.mu.Lock()
		l.active = false
		l.mu.Unlock()
		return err
	}
	l.setState(StateListening)
	return nil
}

// End stops the conversation from any state: recognition halts and any
// in-progress playback is cancelled.
func (l *Loop) End() {
	l.mu.Lock()
	wasActive := l.active
	l.active = false
	cancel := l.speakCancel
	l.speakCancel = nil
	l.mu.Unlock()

	if !wasActive {
		return
	}
	l.engine.Stop()
	if cancel != nil {
		cancel()
	}
	l.setState(StateIdle)
}

// SetLocale changes recognition and synthesis language. A switch while
// listening re-creates the recognizer and keeps the session going.
func (l *Loop) SetLocale(locale string) error {
	l.mu.Lock()
	l.locale = locale
	l.mu.Unlock()
	return l.engine.SetLocale(locale)
}

// HandleListenEnd consumes the committed transcript of one listening run.
// Silence self-loops back into listening; anything else advances to
// thinking.
func (l *Loop) HandleListenEnd(committed string) {
	l.mu.Lock()
	active := l.active
	l.mu.Unlock()
	if !active {
		l.setState(StateIdle)
		return
	}

	text := strings.TrimSpace(committed)
	if text == "" {
		// Tolerate silence and false triggers with a silent restart.
		l.engine.Buffer().Reset()
		if err := l.engine.Start(); err != nil {
			log.Printf("tutor: listen restart failed: %v", err)
			l.End()
		}
		return
	}

	l.setState(StateThinking)
	l.engine.Buffer().Reset()
	go l.think(text)
}

func (l *Loop) think(userText string) {
	l.mu.Lock()
	history := make([]ai.Message, len(l.history))
	copy(history, l.history)
	locale := l.locale
	l.mu.Unlock()

	reply, err := l.chat.VoiceChat(l.ctx, history, userText, locale)
	if err != nil {
		log.Printf("tutor: generation failed: %v", err)
		// Fall straight back to listening so the user can retry.
		l.resumeListening()
		return
	}

	l.mu.Lock()
	l.history = append(l.history,
		ai.Message{Role: "user", Content: userText},
		ai.Message{Role: "assistant", Content: reply},
	)
	l.mu.Unlock()

	l.speak(reply)
}

func (l *Loop) speak(text string) {
	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(l.ctx)
	l.speakCancel = cancel
	locale := l.locale
	l.mu.Unlock()

	l.setState(StateSpeaking)
	if l.hooks.OnCaption != nil {
		l.hooks.OnCaption(text)
	}

	voice, ok := l.voiceFor(ctx, locale)
	if !ok {
		log.Printf("tutor: no specific voice for locale %s, using default", locale)
	}
	if err := l.synth.Speak(ctx, text, voice); err != nil && ctx.Err() == nil {
		log.Printf("tutor: playback failed: %v", err)
	}

	l.mu.Lock()
	l.speakCancel = nil
	l.mu.Unlock()
	cancel()

	l.resumeListening()
}

// voiceFor resolves the locale's voice via the selection policy. The voice
// catalog is fetched once; a fetch failure just means the default voice.
func (l *Loop) voiceFor(ctx context.Context, locale string) (tts.Voice, bool) {
	l.voicesOnce.Do(func() {
		voices, err := l.synth.Voices(ctx)
		if err != nil {
			log.Printf("tutor: voice listing failed: %v", err)
			return
		}
		l.mu.Lock()
		l.voices = voices
		l.mu.Unlock()
	})
	l.mu.Lock()
	voices := l.voices
	l.mu.Unlock()
	return tts.SelectVoice(voices, locale)
}

// resumeListening re-enters listening if the session is still active.
func (l *Loop) resumeListening() {
	l.mu.Lock()
	active := l.active
	l.mu.Unlock()
	if !active {
		l.setState(StateIdle)
		return
	}
	l.engine.Buffer().Reset()
	if err := l.engine.Start(); err != nil {
		log.Printf("tutor: listen restart failed: %v", err)
		l.End()
		return
	}
	l.setState(StateListening)
}
