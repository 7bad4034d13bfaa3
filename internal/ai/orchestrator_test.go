package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prav10140/Shiksha-Sarthi/internal/store"
)

type fakeGenerator struct {
	mu       sync.Mutex
	reply    string
	err      error
	messages [][]Message
	block    chan struct{}
}

func (f *fakeGenerator) Generate(_ context.Context, messages []Message) (string, error) {
	f.mu.Lock()
	f.messages = append(f.messages, messages)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeGenerator) lastMessages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[len(f.messages)-1]
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []store.HistoryEntry
	err     error
}

func (f *fakeHistory) AppendHistory(_ context.Context, _ string, entry store.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func TestQuickAssist_PersistsSourceAndResult(t *testing.T) {
	gen := &fakeGenerator{reply: "A force that attracts masses."}
	history := &fakeHistory{}
	o := NewOrchestrator(gen, history)

	art, err := o.QuickAssist(context.Background(), "class-1", "gravity")
	if err != nil {
		t.Fatalf("quick assist: %v", err)
	}
	if art.Kind != KindQuickAssist || art.SourceText != "gravity" || art.Content != gen.reply {
		t.Fatalf("artifact = %+v", art)
	}

	if len(history.entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history.entries))
	}
	e := history.entries[0]
	if e.Kind != "quick_assist" || e.Title != "Quick Explainer" {
		t.Errorf("entry kind/title = %q/%q", e.Kind, e.Title)
	}
	if e.InputQuery != "gravity" || e.AIResponse != gen.reply {
		t.Errorf("entry = %+v", e)
	}
}

func TestRun_GenerationErrorSkipsHistory(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("rate limited")}
	history := &fakeHistory{}
	o := NewOrchestrator(gen, history)

	if _, err := o.Summary(context.Background(), "class-1", "transcript"); err == nil {
		t.Fatalf("expected error")
	}
	if len(history.entries) != 0 {
		t.Fatalf("failed generation must not write history")
	}
}

func TestRun_HistoryWriteFailureKeepsArtifact(t *testing.T) {
	gen := &fakeGenerator{reply: "## Topics Covered"}
	history := &fakeHistory{err: errors.New("store down")}
	o := NewOrchestrator(gen, history)

	art, err := o.Summary(context.Background(), "class-1", "transcript")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if art.Content != gen.reply {
		t.Fatalf("artifact lost: %+v", art)
	}
}

func TestRun_SameKindGateReturnsBusy(t *testing.T) {
	gen := &fakeGenerator{reply: "ok", block: make(chan struct{})}
	o := NewOrchestrator(gen, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := o.Summary(context.Background(), "class-1", "t"); err != nil {
			t.Errorf("first summary: %v", err)
		}
	}()

	// wait for the first call to enter generation
	deadline := make(chan struct{})
	go func() {
		for {
			gen.mu.Lock()
			n := len(gen.messages)
			gen.mu.Unlock()
			if n > 0 {
				close(deadline)
				return
			}
		}
	}()
	<-deadline

	if _, err := o.Summary(context.Background(), "class-1", "t"); !errors.Is(err, ErrBusy) {
		t.Fatalf("concurrent summary err = %v, want ErrBusy", err)
	}
	// a different kind is not blocked by the summary gate
	quizDone := make(chan error, 1)
	go func() {
		_, err := o.Quiz(context.Background(), "class-1", "t")
		quizDone <- err
	}()

	close(gen.block)
	<-done
	if err := <-quizDone; err != nil {
		t.Fatalf("quiz during summary: %v", err)
	}

	// the gate is released after completion
	gen.block = nil
	if _, err := o.Summary(context.Background(), "class-1", "t"); err != nil {
		t.Fatalf("summary after release: %v", err)
	}
}

// The gate is per class: one class's outstanding summary must not block
// another class's.
func TestRun_GateIsScopedPerClass(t *testing.T) {
	gen := &fakeGenerator{reply: "ok", block: make(chan struct{})}
	o := NewOrchestrator(gen, nil)

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		if _, err := o.Summary(context.Background(), "class-1", "t"); err != nil {
			t.Errorf("class-1 summary: %v", err)
		}
	}()
	waitForCalls(t, gen, 1)

	secondDone := make(chan error, 1)
	go func() {
		_, err := o.Summary(context.Background(), "class-2", "t")
		secondDone <- err
	}()
	// class-2 must reach generation instead of bouncing off class-1's gate
	waitForCalls(t, gen, 2)

	if _, err := o.Summary(context.Background(), "class-1", "t"); !errors.Is(err, ErrBusy) {
		t.Fatalf("same-class duplicate err = %v, want ErrBusy", err)
	}

	close(gen.block)
	<-firstDone
	if err := <-secondDone; err != nil {
		t.Fatalf("class-2 summary: %v", err)
	}
}

func waitForCalls(t *testing.T, gen *fakeGenerator, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		gen.mu.Lock()
		got := len(gen.messages)
		gen.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("generator never reached %d calls", n)
}

func TestVoiceChat_BuildsConversation(t *testing.T) {
	gen := &fakeGenerator{reply: "Great question!"}
	o := NewOrchestrator(gen, &fakeHistory{})

	history := []Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello"},
	}
	reply, err := o.VoiceChat(context.Background(), history, "what is an atom", "en-US")
	if err != nil {
		t.Fatalf("voice chat: %v", err)
	}
	if reply != "Great question!" {
		t.Fatalf("reply = %q", reply)
	}

	msgs := gen.lastMessages()
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want system + history + user", len(msgs))
	}
	if msgs[0].Role != "system" || !strings.Contains(msgs[0].Content, "Nova") {
		t.Errorf("system prompt = %+v", msgs[0])
	}
	if msgs[3].Content != "what is an atom" {
		t.Errorf("user turn = %+v", msgs[3])
	}
	if strings.Contains(msgs[0].Content, "Hindi") {
		t.Errorf("english locale must not request Hindi replies")
	}
}

func TestVoiceChat_HindiLocaleAdjustsSystemPrompt(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	o := NewOrchestrator(gen, nil)

	if _, err := o.VoiceChat(context.Background(), nil, "hello", "hi-IN"); err != nil {
		t.Fatalf("voice chat: %v", err)
	}
	if !strings.Contains(gen.lastMessages()[0].Content, "Devanagari") {
		t.Fatalf("hi-IN must switch the reply language")
	}
}
