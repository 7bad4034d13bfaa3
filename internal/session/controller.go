// Package session coordinates the live-class capture tools: which tool owns
// the microphone, when the transcript buffer is handed to generation, and
// how results flow back to the teacher.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prav10140/Shiksha-Sarthi/internal/ai"
	"github.com/prav10140/Shiksha-Sarthi/internal/speech"
)

// Tool selects a capture mode.
type Tool string

const (
	ToolNone Tool = ""
	// ToolQuick captures a short spoken question for an instant explainer.
	ToolQuick Tool = "quick"
	// ToolFull records the whole session for summary and quiz generation.
	// Its buffer survives pause/resume cycles.
	ToolFull Tool = "full"
)

var (
	// ErrToolBusy means another tool currently owns the recognizer, or a
	// generation for this tool is still outstanding.
	ErrToolBusy = errors.New("session: another capture is in progress")
	// ErrNoSpeech means the buffer was empty when generation was requested.
	ErrNoSpeech = errors.New("session: no speech detected")
	// ErrUnknownTool means the tool name is not one of quick or full.
	ErrUnknownTool = errors.New("session: unknown tool")
)

// CaptureEngine is the slice of the speech engine the controller drives.
type CaptureEngine interface {
	Start() error
	Stop()
	Buffer() *speech.Buffer
}

// ContentGenerator produces the three artifact kinds for a class.
type ContentGenerator interface {
	QuickAssist(ctx context.Context, classID, text string) (ai.Artifact, error)
	Summary(ctx context.Context, classID, text string) (ai.Artifact, error)
	Quiz(ctx context.Context, classID, text string) (ai.Artifact, error)
}

// Hooks receive asynchronous controller outcomes. Both are optional.
type Hooks struct {
	OnResult func(tool Tool, art ai.Artifact)
	OnError  func(tool Tool, err error)
}

// Controller is a small state machine over {none, quick-recording,
// full-recording}. At most one tool records at a time.
type Controller struct {
	classID string
	engine  CaptureEngine
	gen     ContentGenerator
	hooks   Hooks
	// settle is how long a Stop waits before dispatching, so a trailing
	// recognition callback can still flush into the buffer.
	settle time.Duration

	mu      sync.Mutex
	active  Tool
	pending map[Tool]bool
	// owner is the tool whose transcript the engine buffer currently holds.
	owner Tool
	// fullText preserves the full session's committed transcript across a
	// quick-tool interlude, so a resumed full session continues where it
	// paused.
	fullText string
}

// NewController wires a controller for one class session.
func NewController(classID string, engine CaptureEngine, gen ContentGenerator, settle time.Duration, hooks Hooks) *Controller {
	return &Controller{
		classID: classID,
		engine:  engine,
		gen:     gen,
		hooks:   hooks,
		settle:  settle,
		pending: make(map[Tool]bool),
	}
}

// Active returns the tool currently recording, if any.
func (c *Controller) Active() Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Recording reports whether any capture is running.
func (c *Controller) Recording() bool { return c.Active() != ToolNone }

// Start begins capture for the given tool. Allowed only from the idle
// state; a different recording tool or an outstanding generation for this
// tool rejects the call.
func (c *Controller) Start(tool Tool) error {
	if tool != ToolQuick && tool != ToolFull {
		return fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}

	c.mu.Lock()
	if c.active != ToolNone {
		c.mu.Unlock()
		return ErrToolBusy
	}
	if c.pending[tool] {
		c.mu.Unlock()
		return ErrToolBusy
	}
	c.active = tool
	owner := c.owner
	fullText := c.fullText
	c.owner = tool
	c.mu.Unlock()

	// Each tool owns its own transcript. The quick tool starts from a clean
	// slate after stashing the full session's text; a resumed full session
	// gets that text back.
	buf := c.engine.Buffer()
	switch {
	case tool == ToolQuick:
		if owner == ToolFull {
			if text := buf.Committed(); text != "" {
				c.mu.Lock()
				c.fullText = text
				c.mu.Unlock()
			}
		}
		buf.Reset()
	case tool == ToolFull && owner == ToolQuick:
		buf.Reset()
		if fullText != "" {
			buf.Apply([]string{fullText}, "")
		}
	}

	if err := c.engine.Start(); err != nil {
		c.mu.Lock()
		c.active = ToolNone
		c.mu.Unlock()
		return err
	}
	return nil
}

// Stop ends the active capture and, after the settle delay, hands the
// buffered transcript to generation. The result arrives via hooks. At most
// one dispatch happens per Stop.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	tool := c.active
	if tool == ToolNone {
		c.mu.Unlock()
		return fmt.Errorf("session: nothing is recording")
	}
	c.active = ToolNone
	c.pending[tool] = true
	c.mu.Unlock()

	c.engine.Stop()

	// Snapshot in case the other tool takes the buffer during the settle
	// delay; the dispatch re-reads only while it still owns it.
	go c.dispatch(ctx, tool, c.engine.Buffer().Committed())
	return nil
}

func (c *Controller) dispatch(ctx context.Context, tool Tool, snapshot string) {
	defer func() {
		c.mu.Lock()
		delete(c.pending, tool)
		c.mu.Unlock()
	}()

	// Let a trailing recognition callback flush before reading the buffer.
	if c.settle > 0 {
		select {
		case <-time.After(c.settle):
		case <-ctx.Done():
			return
		}
	}

	text := snapshot
	c.mu.Lock()
	owner := c.owner
	c.mu.Unlock()
	if owner == tool {
		// Pick up anything the settle delay let flush.
		text = c.engine.Buffer().Committed()
	}
	if text == "" {
		// A paused full session may still hold text from an earlier segment;
		// Committed() covers that, so an empty read really means silence.
		c.fail(tool, ErrNoSpeech)
		return
	}

	var (
		art ai.Artifact
		err error
	)
	switch tool {
	case ToolQuick:
		art, err = c.gen.QuickAssist(ctx, c.classID, text)
	case ToolFull:
		c.mu.Lock()
		c.fullText = text
		c.mu.Unlock()
		art, err = c.gen.Summary(ctx, c.classID, text)
	}
	if err != nil {
		c.fail(tool, err)
		return
	}
	log.Printf("session: %s generation done for class %s", tool, c.classID)
	if c.hooks.OnResult != nil {
		c.hooks.OnResult(tool, art)
	}
}

func (c *Controller) fail(tool Tool, err error) {
	log.Printf("session: %s failed: %v", tool, err)
	if c.hooks.OnError != nil {
		c.hooks.OnError(tool, err)
	}
}

// GenerateQuiz derives a quiz from the accumulated full-session transcript.
// It requires a recorded session and runs synchronously; concurrent
// duplicates are rejected by the orchestrator's per-kind gate.
func (c *Controller) GenerateQuiz(ctx context.Context) (ai.Artifact, error) {
	c.mu.Lock()
	owner := c.owner
	text := c.fullText
	c.mu.Unlock()
	// The quiz is derived from the full session; the quick tool's buffer
	// content never feeds it.
	if owner != ToolQuick {
		if live := c.engine.Buffer().Committed(); live != "" {
			text = live
		}
	}
	if text == "" {
		return ai.Artifact{}, ErrNoSpeech
	}
	return c.gen.Quiz(ctx, c.classID, text)
}
