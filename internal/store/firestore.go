package store

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	colClasses    = "classes"
	colUsers      = "users"
	colAttendance = "attendanceSessions"
	subColHistory = "history"
	subColInbox   = "classMaterials"
)

// FirestoreStore implements Store on top of Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore connects to the given project. credentialsFile may be
// empty, in which case ambient credentials are used.
func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore connect: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

// Close releases the underlying client.
func (fs *FirestoreStore) Close() error { return fs.client.Close() }

func (fs *FirestoreStore) Class(ctx context.Context, classID string) (Class, error) {
	snap, err := fs.client.Collection(colClasses).Doc(classID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Class{}, ErrNotFound
	}
	if err != nil {
		return Class{}, fmt.Errorf("read class %s: %w", classID, err)
	}
	var c Class
	if err := snap.DataTo(&c); err != nil {
		return Class{}, fmt.Errorf("decode class %s: %w", classID, err)
	}
	c.ID = snap.Ref.ID
	return c, nil
}

func (fs *FirestoreStore) StudentsByClass(ctx context.Context, classID string) ([]Student, error) {
	iter := fs.client.Collection(colUsers).
		Where("enrolledClassId", "==", classID).
		Documents(ctx)
	defer iter.Stop()

	var students []Student
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query students of %s: %w", classID, err)
		}
		var s Student
		if err := snap.DataTo(&s); err != nil {
			return nil, fmt.Errorf("decode student %s: %w", snap.Ref.ID, err)
		}
		s.ID = snap.Ref.ID
		students = append(students, s)
	}
	return students, nil
}

func (fs *FirestoreStore) UserName(ctx context.Context, userID string) (string, error) {
	snap, err := fs.client.Collection(colUsers).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read user %s: %w", userID, err)
	}
	var s Student
	if err := snap.DataTo(&s); err != nil {
		return "", fmt.Errorf("decode user %s: %w", userID, err)
	}
	return s.Name, nil
}

func (fs *FirestoreStore) AppendHistory(ctx context.Context, classID string, entry HistoryEntry) error {
	ref := fs.client.Collection(colClasses).Doc(classID).
		Collection(subColHistory).Doc(uuid.NewString())
	if _, err := ref.Set(ctx, entry); err != nil {
		return fmt.Errorf("append history for class %s: %w", classID, err)
	}
	return nil
}

func (fs *FirestoreStore) AddMaterial(ctx context.Context, studentID string, m Material) error {
	ref := fs.client.Collection(colUsers).Doc(studentID).
		Collection(subColInbox).Doc(uuid.NewString())
	if _, err := ref.Set(ctx, m); err != nil {
		return fmt.Errorf("add material for student %s: %w", studentID, err)
	}
	return nil
}

func (fs *FirestoreStore) AttendanceSession(ctx context.Context, classID string) (AttendanceSession, error) {
	snap, err := fs.client.Collection(colAttendance).Doc(classID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return AttendanceSession{}, ErrNotFound
	}
	if err != nil {
		return AttendanceSession{}, fmt.Errorf("read attendance session %s: %w", classID, err)
	}
	var s AttendanceSession
	if err := snap.DataTo(&s); err != nil {
		return AttendanceSession{}, fmt.Errorf("decode attendance session %s: %w", classID, err)
	}
	return s, nil
}

func (fs *FirestoreStore) PutAttendanceSession(ctx context.Context, classID string, s AttendanceSession) error {
	if _, err := fs.client.Collection(colAttendance).Doc(classID).Set(ctx, s); err != nil {
		return fmt.Errorf("write attendance session %s: %w", classID, err)
	}
	return nil
}

func (fs *FirestoreStore) SetAttendanceActive(ctx context.Context, classID string, active bool) error {
	_, err := fs.client.Collection(colAttendance).Doc(classID).Update(ctx, []firestore.Update{
		{Path: "active", Value: active},
	})
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update attendance session %s: %w", classID, err)
	}
	return nil
}

func (fs *FirestoreStore) AddPresentStudent(ctx context.Context, classID, studentID string) error {
	_, err := fs.client.Collection(colAttendance).Doc(classID).Update(ctx, []firestore.Update{
		{Path: "presentStudents", Value: firestore.ArrayUnion(studentID)},
	})
	if err != nil {
		return fmt.Errorf("mark student %s present in %s: %w", studentID, classID, err)
	}
	return nil
}

func (fs *FirestoreStore) WatchAttendance(ctx context.Context, classID string) (<-chan AttendanceSession, error) {
	out := make(chan AttendanceSession, 1)
	snaps := fs.client.Collection(colAttendance).Doc(classID).Snapshots(ctx)

	go func() {
		defer close(out)
		defer snaps.Stop()
		for {
			snap, err := snaps.Next()
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("attendance watch %s ended: %v", classID, err)
				}
				return
			}
			if !snap.Exists() {
				continue
			}
			var s AttendanceSession
			if err := snap.DataTo(&s); err != nil {
				log.Printf("attendance watch %s: decode: %v", classID, err)
				continue
			}
			select {
			case out <- s:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
