package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("store: document not found")

// Class is the class record a live session is anchored to.
type Class struct {
	ID        string `firestore:"-"`
	Batch     string `firestore:"batch"`
	Subject   string `firestore:"subject"`
	TeacherID string `firestore:"teacherId"`
	StartTime string `firestore:"startTime,omitempty"`
}

// Student is a user enrolled in a class.
type Student struct {
	ID   string `firestore:"-"`
	Name string `firestore:"name"`
}

// HistoryEntry is one generated artifact persisted with its provenance,
// appended to the per-class history log.
type HistoryEntry struct {
	Kind       string    `firestore:"type"`
	Title      string    `firestore:"title"`
	InputQuery string    `firestore:"inputQuery"`
	AIResponse string    `firestore:"aiResponse"`
	Timestamp  time.Time `firestore:"timestamp,serverTimestamp"`
}

// Material is one copy of a distributed artifact placed in a student's
// personal inbox.
type Material struct {
	Kind      string    `firestore:"type"`
	Title     string    `firestore:"title"`
	Content   string    `firestore:"content"`
	ClassID   string    `firestore:"classId"`
	Read      bool      `firestore:"read"`
	Timestamp time.Time `firestore:"timestamp,serverTimestamp"`
}

// AttendanceSession is the teacher-anchored geofence record, keyed by class id.
// Students only ever append their own id to PresentStudents.
type AttendanceSession struct {
	TeacherLat      float64   `firestore:"teacherLat"`
	TeacherLng      float64   `firestore:"teacherLng"`
	RadiusMeters    float64   `firestore:"radius"`
	Active          bool      `firestore:"active"`
	PresentStudents []string  `firestore:"presentStudents"`
	StartedAt       time.Time `firestore:"startedAt,serverTimestamp"`
}

// Store is the persistent document store consumed by the live-session and
// attendance subsystems. Implementations must keep every write scoped to a
// single document so partial failures stay independent.
type Store interface {
	Class(ctx context.Context, classID string) (Class, error)
	StudentsByClass(ctx context.Context, classID string) ([]Student, error)
	UserName(ctx context.Context, userID string) (string, error)

	AppendHistory(ctx context.Context, classID string, entry HistoryEntry) error
	AddMaterial(ctx context.Context, studentID string, m Material) error

	AttendanceSession(ctx context.Context, classID string) (AttendanceSession, error)
	PutAttendanceSession(ctx context.Context, classID string, s AttendanceSession) error
	SetAttendanceActive(ctx context.Context, classID string, active bool) error
	AddPresentStudent(ctx context.Context, classID, studentID string) error
	// WatchAttendance streams the session document as it changes. The channel
	// closes when ctx is done or the subscription fails.
	WatchAttendance(ctx context.Context, classID string) (<-chan AttendanceSession, error)
}
