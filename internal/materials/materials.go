// Package materials fans generated artifacts out to enrolled students'
// personal inboxes.
package materials

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/prav10140/Shiksha-Sarthi/internal/ai"
	"github.com/prav10140/Shiksha-Sarthi/internal/store"
)

// InboxWriter appends one material copy to a student's inbox collection.
type InboxWriter interface {
	AddMaterial(ctx context.Context, studentID string, m store.Material) error
}

// Distributor sends artifacts to students. Sends are at-least-once and not
// idempotent: re-sending the same artifact creates duplicate inbox entries.
type Distributor struct {
	inbox InboxWriter
}

func NewDistributor(inbox InboxWriter) *Distributor {
	return &Distributor{inbox: inbox}
}

// Send writes one copy of the artifact into every student's inbox, all
// writes issued concurrently. Success requires every write to succeed; on
// any failure the whole send is reported failed with no rollback of the
// copies already delivered.
func (d *Distributor) Send(ctx context.Context, classID, classBatch string, studentIDs []string, art ai.Artifact) error {
	title := fmt.Sprintf("Summary: %s", classBatch)
	if art.Kind == ai.KindQuiz {
		title = fmt.Sprintf("Quiz: %s", classBatch)
	}

	m := store.Material{
		Kind:    string(art.Kind),
		Title:   title,
		Content: art.Content,
		ClassID: classID,
		Read:    false,
	}

	// Every write is attempted even when a sibling fails; only the overall
	// outcome is collapsed to a single error.
	var g errgroup.Group
	for _, id := range studentIDs {
		id := id
		g.Go(func() error {
			return d.inbox.AddMaterial(ctx, id, m)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("send %s to class %s: %w", art.Kind, classID, err)
	}
	log.Printf("materials: sent %s to %d students of class %s", art.Kind, len(studentIDs), classID)
	return nil
}
