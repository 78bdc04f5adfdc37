package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"studyhive/pkg/domain"
	"studyhive/pkg/oid"
	"studyhive/pkg/store"
)

func newTestApp(t *testing.T) (*App, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	a, err := New(Config{Store: s})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, s
}

func seedUser(t *testing.T, s *store.MemoryStore, email string) domain.User {
	t.Helper()
	now := time.Now().UTC()
	user, err := s.InsertUser(domain.User{
		Email:     email,
		Name:      "Test User",
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return user
}

func TestCreateClassroom(t *testing.T) {
	a, s := newTestApp(t)
	ctx := context.Background()
	admin := seedUser(t, s, "admin@example.edu")

	classroom, err := a.Create(ctx, admin.ID, CreateInput{Name: "Algorithms 101"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !classroom.IsAdmin(admin.ID) || !classroom.IsMember(admin.ID) {
		t.Fatalf("creator must be admin and member: %+v", classroom)
	}
	if len(classroom.InviteCode) != inviteCodeLength {
		t.Fatalf("expected %d-char invite code, got %q", inviteCodeLength, classroom.InviteCode)
	}

	if _, err := a.Create(ctx, oid.New(), CreateInput{Name: "Ghost Class"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown admin, got %v", err)
	}
	if _, err := a.Create(ctx, admin.ID, CreateInput{Name: "  "}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank name, got %v", err)
	}
}

func TestJoinByInviteCode(t *testing.T) {
	a, s := newTestApp(t)
	ctx := context.Background()
	admin := seedUser(t, s, "admin@example.edu")
	student := seedUser(t, s, "student@example.edu")

	classroom, err := a.Create(ctx, admin.ID, CreateInput{Name: "Algorithms 101"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	joined, err := a.Join(ctx, student.ID, classroom.InviteCode)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if !joined.IsMember(student.ID) {
		t.Fatalf("expected student in member list")
	}

	// Joining again is a no-op, not an error.
	again, err := a.Join(ctx, student.ID, classroom.InviteCode)
	if err != nil {
		t.Fatalf("re-join: %v", err)
	}
	if len(again.Members) != 2 {
		t.Fatalf("expected 2 members after re-join, got %d", len(again.Members))
	}

	if _, err := a.Join(ctx, student.ID, "NO5UCHC0DE"); !errors.Is(err, domain.ErrInvalidInviteCode) {
		t.Fatalf("expected ErrInvalidInviteCode, got %v", err)
	}
}

func TestUpdateClassroomAdminOnly(t *testing.T) {
	a, s := newTestApp(t)
	ctx := context.Background()
	admin := seedUser(t, s, "admin@example.edu")
	student := seedUser(t, s, "student@example.edu")

	classroom, err := a.Create(ctx, admin.ID, CreateInput{Name: "Algorithms 101"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.Join(ctx, student.ID, classroom.InviteCode); err != nil {
		t.Fatalf("join: %v", err)
	}

	name := "Algorithms 201"
	if _, err := a.UpdateClassroom(ctx, student.ID, classroom.ID, Update{Name: &name}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for member update, got %v", err)
	}
	updated, err := a.UpdateClassroom(ctx, admin.ID, classroom.ID, Update{Name: &name})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Name != name {
		t.Fatalf("expected renamed classroom, got %q", updated.Name)
	}
}

func TestRemoveMember(t *testing.T) {
	a, s := newTestApp(t)
	ctx := context.Background()
	admin := seedUser(t, s, "admin@example.edu")
	student := seedUser(t, s, "student@example.edu")

	classroom, err := a.Create(ctx, admin.ID, CreateInput{Name: "Algorithms 101"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.Join(ctx, student.ID, classroom.InviteCode); err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := a.RemoveMember(ctx, student.ID, classroom.ID, admin.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin removal, got %v", err)
	}
	if _, err := a.RemoveMember(ctx, admin.ID, classroom.ID, admin.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden removing the admin, got %v", err)
	}

	updated, err := a.RemoveMember(ctx, admin.ID, classroom.ID, student.ID)
	if err != nil {
		t.Fatalf("remove member: %v", err)
	}
	if updated.IsMember(student.ID) {
		t.Fatalf("expected student removed")
	}
	if _, err := a.RemoveMember(ctx, admin.ID, classroom.ID, student.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for repeat removal, got %v", err)
	}
}

func TestRoomLifecycle(t *testing.T) {
	a, s := newTestApp(t)
	ctx := context.Background()
	admin := seedUser(t, s, "admin@example.edu")
	outsider := seedUser(t, s, "outsider@example.edu")

	classroom, err := a.Create(ctx, admin.ID, CreateInput{Name: "Algorithms 101"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := a.CreateRoom(ctx, outsider.ID, classroom.ID, "general", ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for outsider, got %v", err)
	}
	room, err := a.CreateRoom(ctx, admin.ID, classroom.ID, "general", "course chat")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if room.ClassroomID != classroom.ID {
		t.Fatalf("room bound to wrong classroom")
	}

	rooms, err := a.ListRooms(ctx, admin.ID, classroom.ID)
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != room.ID {
		t.Fatalf("expected the created room, got %+v", rooms)
	}
	if _, err := a.ListRooms(ctx, outsider.ID, classroom.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden listing as outsider, got %v", err)
	}
}

func TestDeleteClassroomRejectedWhileRoomsExist(t *testing.T) {
	a, s := newTestApp(t)
	ctx := context.Background()
	admin := seedUser(t, s, "admin@example.edu")

	classroom, err := a.Create(ctx, admin.ID, CreateInput{Name: "Algorithms 101"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := a.CreateRoom(ctx, admin.ID, classroom.ID, "general", ""); err != nil {
		t.Fatalf("create room: %v", err)
	}

	if err := a.DeleteClassroom(ctx, admin.ID, classroom.ID); !errors.Is(err, ErrClassroomNotEmpty) {
		t.Fatalf("expected ErrClassroomNotEmpty, got %v", err)
	}

	// An empty classroom deletes cleanly.
	empty, err := a.Create(ctx, admin.ID, CreateInput{Name: "Empty Class"})
	if err != nil {
		t.Fatalf("create empty: %v", err)
	}
	if err := a.DeleteClassroom(ctx, admin.ID, empty.ID); err != nil {
		t.Fatalf("delete empty: %v", err)
	}
	if _, err := a.GetClassroom(ctx, admin.ID, empty.ID); !errors.Is(err, ErrClassroomNotFound) {
		t.Fatalf("expected ErrClassroomNotFound after delete, got %v", err)
	}
}
