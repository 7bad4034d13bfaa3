package speech

import "errors"

// ErrPermissionDenied is returned when microphone access is refused. It is
// fatal to the requested capture and must not be retried automatically.
var ErrPermissionDenied = errors.New("speech: microphone permission denied")

// EventType discriminates recognition events.
type EventType int

const (
	// EventResult carries zero or more committed segments and at most one
	// provisional segment for the current utterance window.
	EventResult EventType = iota
	// EventEnd signals the recognition run ended.
	EventEnd
	// EventError signals the recognizer failed; Err is set.
	EventError
)

// Event is a single recognition update. Events for one recognizer instance
// are delivered in the order the underlying engine emitted them.
type Event struct {
	Type        EventType
	Finals      []string
	Provisional string
	Err         error
}

// Recognizer is a continuous, interim-result speech recognition instance
// bound to a single locale. Changing locale requires a new instance.
type Recognizer interface {
	Start() error
	Stop()
	Events() <-chan Event
}

// Factory creates a recognizer for the given locale.
type Factory func(locale string) (Recognizer, error)
