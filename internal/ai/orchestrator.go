package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prav10140/Shiksha-Sarthi/internal/store"
)

// Kind identifies a generated content type.
type Kind string

const (
	KindQuickAssist Kind = "quick_assist"
	KindSummary     Kind = "summary"
	KindQuiz        Kind = "quiz"
)

// Title returns the display title persisted alongside the artifact.
func (k Kind) Title() string {
	switch k {
	case KindQuickAssist:
		return "Quick Explainer"
	case KindQuiz:
		return "Class Quiz"
	default:
		return "Session Summary"
	}
}

// ErrBusy is returned when a generation of the same kind is already
// outstanding for the same class.
var ErrBusy = errors.New("ai: generation already in progress for this kind")

// Artifact is an immutable generated result with its provenance.
type Artifact struct {
	Kind       Kind
	SourceText string
	Content    string
	CreatedAt  time.Time
}

// HistorySink persists artifacts to a per-class history log.
type HistorySink interface {
	AppendHistory(ctx context.Context, classID string, entry store.HistoryEntry) error
}

// Orchestrator sequences generation calls for class sessions and persists
// each success plus its source text. At most one request per kind may be in
// flight per class; different classes run independently.
type Orchestrator struct {
	gen     Generator
	history HistorySink

	mu       sync.Mutex
	inflight map[genKey]bool
}

// genKey scopes the in-flight gate to one class's session.
type genKey struct {
	classID string
	kind    Kind
}

// NewOrchestrator builds an orchestrator. history may be nil, in which case
// results are not persisted.
func NewOrchestrator(gen Generator, history HistorySink) *Orchestrator {
	return &Orchestrator{gen: gen, history: history, inflight: make(map[genKey]bool)}
}

func (o *Orchestrator) acquire(classID string, kind Kind) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := genKey{classID: classID, kind: kind}
	if o.inflight[key] {
		return ErrBusy
	}
	o.inflight[key] = true
	return nil
}

func (o *Orchestrator) release(classID string, kind Kind) {
	o.mu.Lock()
	delete(o.inflight, genKey{classID: classID, kind: kind})
	o.mu.Unlock()
}

// QuickAssist explains a spoken topic in a short structured answer.
func (o *Orchestrator) QuickAssist(ctx context.Context, classID, text string) (Artifact, error) {
	messages := []Message{
		{Role: "system", Content: "You are a helpful teaching assistant. Provide a definition, an analogy, and 3 bullet points."},
		{Role: "user", Content: fmt.Sprintf("Explain this concept: %q.", text)},
	}
	return o.run(ctx, KindQuickAssist, classID, text, messages)
}

// Summary condenses a class transcript into structured markdown sections.
func (o *Orchestrator) Summary(ctx context.Context, classID, transcript string) (Artifact, error) {
	messages := []Message{
		{Role: "system", Content: "You are an expert scribe. Summarize this class transcript into structured sections: 1. **Topics Covered**, 2. **Key Decisions/Takeaways**, and 3. **Action Items/Homework**. Use Markdown."},
		{Role: "user", Content: fmt.Sprintf("Transcript:\n%q", transcript)},
	}
	return o.run(ctx, KindSummary, classID, transcript, messages)
}

// Quiz derives multiple-choice questions from a class transcript in the
// checked-box markdown format the quiz parser understands.
func (o *Orchestrator) Quiz(ctx context.Context, classID, transcript string) (Artifact, error) {
	messages := []Message{
		{Role: "system", Content: "You are a teacher. Based on the transcript, generate 3 Multiple Choice Questions (MCQs) in Markdown format. Format:\n**Question**\n- [ ] Option A\n- [ ] Option B\n- [x] Correct Option"},
		{Role: "user", Content: fmt.Sprintf("Generate a quiz based on this: %q", transcript)},
	}
	return o.run(ctx, KindQuiz, classID, transcript, messages)
}

// VoiceChat answers one conversational turn for the spoken tutor. Responses
// are kept short and unformatted because they are read aloud. Not persisted
// to class history.
func (o *Orchestrator) VoiceChat(ctx context.Context, history []Message, userText, locale string) (string, error) {
	system := "You are 'Nova', an advanced 3D AI tutor. This is a spoken conversation. Keep responses SHORT (1-2 sentences). Be friendly, encouraging, and concise. Do not use markdown formatting (like **bold**) because it will be read aloud."
	if locale == "hi-IN" {
		system += " You must reply in Hindi (using Devanagari script)."
	}
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: system})
	messages = append(messages, history...)
	messages = append(messages, Message{Role: "user", Content: userText})

	return o.gen.Generate(ctx, messages)
}

// run executes one gated generation and records the result.
func (o *Orchestrator) run(ctx context.Context, kind Kind, classID, source string, messages []Message) (Artifact, error) {
	if err := o.acquire(classID, kind); err != nil {
		return Artifact{}, err
	}
	defer o.release(classID, kind)

	content, err := o.gen.Generate(ctx, messages)
	if err != nil {
		return Artifact{}, fmt.Errorf("generate %s: %w", kind, err)
	}

	art := Artifact{Kind: kind, SourceText: source, Content: content, CreatedAt: time.Now()}

	if o.history != nil {
		entry := store.HistoryEntry{
			Kind:       string(kind),
			Title:      kind.Title(),
			InputQuery: source,
			AIResponse: content,
		}
		// History is an audit trail; a failed write must not discard the
		// generated result.
		if err := o.history.AppendHistory(ctx, classID, entry); err != nil {
			log.Printf("ai: failed to save %s to history: %v", kind, err)
		}
	}
	return art, nil
}
