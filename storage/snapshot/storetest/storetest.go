// Package storetest checks that an institute.Store behaves like every other one.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/AntoVGreco/app-instituto-MCV/core/course"
	"github.com/AntoVGreco/app-instituto-MCV/core/institute"
	"github.com/AntoVGreco/app-instituto-MCV/core/user"
)

// Sample returns a small but complete snapshot: an admin, a teacher, two students
// and a course with an active offering and one archived offering.
func Sample() *institute.Snapshot {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	finished := at.Add(90 * 24 * time.Hour)
	return &institute.Snapshot{
		Version:       institute.SnapshotVersion,
		SavedAt:       at.Add(time.Hour),
		AdminIdentity: "1234",
		Users: []institute.UserRecord{
			{Profile: user.ProfileAdmin, Identity: "1234", FirstName: "Administrador", LastName: "Instituto", PasswordHash: "h0", CreatedAt: at},
			{Profile: user.ProfileTeacher, Identity: "87654321", FirstName: "Tomas", LastName: "Perez", PasswordHash: "h1", CreatedAt: at},
			{Profile: user.ProfileStudent, Identity: "12345678", FirstName: "Ana", LastName: "Gomez", PasswordHash: "h2",
				Enrolled: []string{"c1"}, Approved: []string{"c1"}, CreatedAt: at},
			{Profile: user.ProfileStudent, Identity: "23456789", FirstName: "Bea", LastName: "Lopez", PasswordHash: "h3",
				Suspended: true, CreatedAt: at},
		},
		Courses: []institute.CourseRecord{
			{
				ID: "c1", Name: "Algebra", Description: "Lineal", Capacity: 2, State: course.StateEnabled,
				Teacher: "87654321", CreatedAt: at,
				Active: &institute.CursadaRecord{
					ID: "o2", Teacher: "87654321", Roster: []string{"12345678"}, CreatedAt: finished,
				},
				History: []institute.CursadaRecord{{
					ID: "o1", Teacher: "87654321", Roster: []string{"12345678", "23456789"},
					Grades:   map[string]course.Grade{"12345678": course.GradeApproved, "23456789": course.GradeFailed},
					Finished: true, CreatedAt: at, FinishedAt: &finished,
				}},
			},
		},
	}
}

// Run checks the Store contract on the stores built by newStore, which must start empty.
func Run(t *testing.T, newStore func(t *testing.T) institute.Store) {
	ctx := context.Background()

	t.Run("load empty", func(t *testing.T) {
		st := newStore(t)
		if _, err := st.Load(ctx); !errors.Is(err, institute.ErrSnapshotNotFound) {
			t.Errorf("Load() error = %v, want %v", err, institute.ErrSnapshotNotFound)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		st := newStore(t)
		want := Sample()
		if err := st.Save(ctx, want); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := st.Load(ctx)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Load() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("save replaces", func(t *testing.T) {
		st := newStore(t)
		first := Sample()
		if err := st.Save(ctx, first); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		second := Sample()
		second.Courses[0].State = course.StateClosed
		second.Users = second.Users[:2]
		if err := st.Save(ctx, second); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := st.Load(ctx)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if diff := cmp.Diff(second, got); diff != "" {
			t.Errorf("Load() mismatch (-want +got):\n%s", diff)
		}
	})
}
