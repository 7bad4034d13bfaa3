package speech

import (
	"strings"
	"sync"
)

// Buffer accumulates recognition output across start/stop cycles. Committed
// segments are append-only and never mutated once added; the provisional
// segment is replaced on every update and discarded on commit or stop.
type Buffer struct {
	mu          sync.Mutex
	committed   []string
	provisional string
}

// NewBuffer returns an empty transcript buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// Apply folds one recognition update into the buffer, in delivery order.
func (b *Buffer) Apply(finals []string, provisional string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range finals {
		f = strings.TrimSpace(f)
		if f != "" {
			b.committed = append(b.committed, f)
		}
	}
	b.provisional = provisional
}

// Committed returns the settled transcript: every final segment in delivery
// order, space-joined. Provisional text is never included.
func (b *Buffer) Committed() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.committed, " ")
}

// Live returns the committed transcript plus the current provisional tail,
// for UI feedback.
func (b *Buffer) Live() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	live := strings.Join(b.committed, " ")
	if b.provisional != "" {
		if live != "" {
			live += " "
		}
		live += b.provisional
	}
	return live
}

// DropProvisional discards the in-flight provisional segment.
func (b *Buffer) DropProvisional() {
	b.mu.Lock()
	b.provisional = ""
	b.mu.Unlock()
}

// Reset clears the buffer entirely.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.committed = nil
	b.provisional = ""
	b.mu.Unlock()
}

// Empty reports whether no committed text has accumulated.
func (b *Buffer) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.committed) == 0
}
