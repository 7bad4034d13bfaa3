// Package attendance implements geofenced attendance sessions: a teacher
// anchors a session to their current location, and students inside a fixed
// radius mark themselves present.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/prav10140/Shiksha-Sarthi/internal/geo"
	"github.com/prav10140/Shiksha-Sarthi/internal/store"
)

// DefaultRadiusMeters is the fixed geofence radius around the teacher.
const DefaultRadiusMeters = 100

var (
	// ErrNoSession means attendance has not been started for the class.
	ErrNoSession = errors.New("attendance: not started")
	// ErrClosed means the session exists but is no longer active.
	ErrClosed = errors.New("attendance: closed")
	// ErrOutsideGeofence is a deliberate rejection, not a system failure:
	// the student is farther from the anchor than the session radius.
	ErrOutsideGeofence = errors.New("attendance: outside the classroom")
)

// SessionStore is the slice of the document store attendance needs.
type SessionStore interface {
	AttendanceSession(ctx context.Context, classID string) (store.AttendanceSession, error)
	PutAttendanceSession(ctx context.Context, classID string, s store.AttendanceSession) error
	SetAttendanceActive(ctx context.Context, classID string, active bool) error
	AddPresentStudent(ctx context.Context, classID, studentID string) error
	WatchAttendance(ctx context.Context, classID string) (<-chan store.AttendanceSession, error)
	UserName(ctx context.Context, userID string) (string, error)
}

// Service drives the attendance lifecycle for both roles.
type Service struct {
	store   SessionStore
	locator geo.Locator
	radius  float64
}

// NewService builds an attendance service with the default radius.
func NewService(st SessionStore, locator geo.Locator) *Service {
	return &Service{store: st, locator: locator, radius: DefaultRadiusMeters}
}

// Start anchors a new session at the teacher's current location, replacing
// any prior session for the class. A location permission denial is fatal to
// this action and is not retried.
func (s *Service) Start(ctx context.Context, classID string) error {
	pos, err := s.locator.Current(ctx)
	if err != nil {
		return fmt.Errorf("resolve teacher location: %w", err)
	}

	session := store.AttendanceSession{
		TeacherLat:      pos.Latitude,
		TeacherLng:      pos.Longitude,
		RadiusMeters:    s.radius,
		Active:          true,
		PresentStudents: []string{},
	}
	if err := s.store.PutAttendanceSession(ctx, classID, session); err != nil {
		return err
	}
	log.Printf("attendance: started for class %s at (%.4f, %.4f)", classID, pos.Latitude, pos.Longitude)
	return nil
}

// End deactivates the class's session. Present entries are kept; there is
// no removal path for a student once marked present.
func (s *Service) End(ctx context.Context, classID string) error {
	err := s.store.SetAttendanceActive(ctx, classID, false)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoSession
	}
	return err
}

// MarkPresent verifies the student's proximity to the session anchor and
// appends their id to the present list. Marking twice is an idempotent
// no-op thanks to set semantics on the present list.
func (s *Service) MarkPresent(ctx context.Context, classID, studentID string) error {
	pos, err := s.locator.Current(ctx)
	if err != nil {
		return fmt.Errorf("resolve student location: %w", err)
	}

	session, err := s.store.AttendanceSession(ctx, classID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoSession
	}
	if err != nil {
		return err
	}
	if !session.Active {
		return ErrClosed
	}

	distance := geo.Distance(pos.Latitude, pos.Longitude, session.TeacherLat, session.TeacherLng)
	if distance > session.RadiusMeters {
		return fmt.Errorf("%w (%.0fm away, radius %.0fm)", ErrOutsideGeofence, distance, session.RadiusMeters)
	}

	return s.store.AddPresentStudent(ctx, classID, studentID)
}

// PresentStudent is one resolved entry of the live present list.
type PresentStudent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Roster is one update of the live present list.
type Roster struct {
	Active   bool             `json:"active"`
	Students []PresentStudent `json:"students"`
}

// Watch streams the present list as it changes, resolving each id to a
// display name. Ids that no longer resolve to a user are skipped.
func (s *Service) Watch(ctx context.Context, classID string) (<-chan Roster, error) {
	sessions, err := s.store.WatchAttendance(ctx, classID)
	if err != nil {
		return nil, err
	}

	out := make(chan Roster, 1)
	go func() {
		defer close(out)
		for session := range sessions {
			roster := Roster{Active: session.Active}
			for _, id := range session.PresentStudents {
				name, err := s.store.UserName(ctx, id)
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				if err != nil {
					log.Printf("attendance: resolve student %s: %v", id, err)
					continue
				}
				roster.Students = append(roster.Students, PresentStudent{ID: id, Name: name})
			}
			select {
			case out <- roster:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
