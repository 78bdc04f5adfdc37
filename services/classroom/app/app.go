// Package app implements classrooms and their chat rooms: creation with
// a unique invite code, join-by-code, admin-gated management, and the
// room lifecycle within a classroom.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"studyhive/internal/util"
	"studyhive/pkg/domain"
	"studyhive/pkg/oid"
	"studyhive/pkg/realtime"
	"studyhive/pkg/store"
)

const (
	inviteCodeLength = 8
	// inviteCodeRetries bounds regeneration on an invite-code collision.
	// The code space is 32^8, so a second collision in a row means
	// something is wrong beyond bad luck.
	inviteCodeRetries = 5
)

// Config wires the classroom service.
type Config struct {
	Store     store.Store
	Publisher realtime.Publisher
	Logger    *slog.Logger
}

// App is the classroom service core.
type App struct {
	store     store.Store
	publisher realtime.Publisher
	logger    *slog.Logger
}

// New constructs the classroom service.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{store: cfg.Store, publisher: publisher, logger: logger}, nil
}

// CreateInput carries the classroom creation fields. The creator becomes
// the admin and the first member.
type CreateInput struct {
	Name        string
	Description string
	Logo        string
}

// Create persists a classroom with a freshly generated invite code,
// regenerating on the rare code collision.
func (a *App) Create(ctx context.Context, admin oid.ID, in CreateInput) (domain.Classroom, error) {
	if _, ok, err := a.store.GetUser(admin); err != nil {
		return domain.Classroom{}, fmt.Errorf("load admin: %w", err)
	} else if !ok {
		return domain.Classroom{}, fmt.Errorf("%w: unknown admin", domain.ErrValidation)
	}
	now := time.Now().UTC()
	classroom := domain.Classroom{
		Name:        in.Name,
		Description: in.Description,
		Logo:        in.Logo,
		AdminID:     admin,
		Members:     []oid.ID{admin},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var err error
	for attempt := 0; attempt < inviteCodeRetries; attempt++ {
		classroom.InviteCode = util.NewInviteCode(inviteCodeLength)
		if err = classroom.Validate(); err != nil {
			return domain.Classroom{}, err
		}
		var saved domain.Classroom
		saved, err = a.store.InsertClassroom(classroom)
		if errors.Is(err, store.ErrInviteCodeTaken) {
			a.logger.Warn("invite code collision", "attempt", attempt+1)
			continue
		}
		if err != nil {
			return domain.Classroom{}, fmt.Errorf("save classroom: %w", err)
		}
		a.logger.Info("classroom created", "classroom", saved.ID, "admin", admin)
		return saved, nil
	}
	return domain.Classroom{}, fmt.Errorf("allocate invite code: %w", err)
}

// Join adds the user to the classroom matching the invite code. Joining a
// classroom the user already belongs to succeeds without effect.
func (a *App) Join(ctx context.Context, userID oid.ID, code string) (domain.Classroom, error) {
	if _, ok, err := a.store.GetUser(userID); err != nil {
		return domain.Classroom{}, fmt.Errorf("load user: %w", err)
	} else if !ok {
		return domain.Classroom{}, fmt.Errorf("%w: unknown user", domain.ErrValidation)
	}
	classroom, ok, err := a.store.GetClassroomByCode(code)
	if err != nil {
		return domain.Classroom{}, fmt.Errorf("look up invite code: %w", err)
	}
	if !ok {
		return domain.Classroom{}, domain.ErrInvalidInviteCode
	}
	if !classroom.AddMember(userID) {
		return classroom, nil
	}
	classroom.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateClassroom(classroom); err != nil {
		return domain.Classroom{}, fmt.Errorf("save classroom: %w", err)
	}
	a.publish(ctx, realtime.Envelope{
		Type: realtime.EventMemberJoined,
		Data: realtime.MemberJoinedPayload{
			ClassroomID: classroom.ID,
			UserID:      userID,
		},
	})
	return classroom, nil
}

// Update mutates classroom metadata. Admin only; the admin itself cannot
// be reassigned.
type Update struct {
	Name        *string
	Description *string
	Logo        *string
}

// UpdateClassroom applies an admin's metadata mutation.
func (a *App) UpdateClassroom(ctx context.Context, actor, classroomID oid.ID, up Update) (domain.Classroom, error) {
	classroom, err := a.requireAdmin(actor, classroomID)
	if err != nil {
		return domain.Classroom{}, err
	}
	if up.Name != nil {
		classroom.Name = *up.Name
	}
	if up.Description != nil {
		classroom.Description = *up.Description
	}
	if up.Logo != nil {
		classroom.Logo = *up.Logo
	}
	if err := classroom.Validate(); err != nil {
		return domain.Classroom{}, err
	}
	classroom.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateClassroom(classroom); err != nil {
		return domain.Classroom{}, fmt.Errorf("save classroom: %w", err)
	}
	return classroom, nil
}

// RemoveMember evicts a member. Admin only, and the admin cannot be
// removed; transfer of ownership is out of scope.
func (a *App) RemoveMember(ctx context.Context, actor, classroomID, memberID oid.ID) (domain.Classroom, error) {
	classroom, err := a.requireAdmin(actor, classroomID)
	if err != nil {
		return domain.Classroom{}, err
	}
	if memberID == classroom.AdminID {
		return domain.Classroom{}, fmt.Errorf("%w: the admin cannot be removed", domain.ErrForbidden)
	}
	if !classroom.IsMember(memberID) {
		return domain.Classroom{}, fmt.Errorf("%w: not a member", domain.ErrValidation)
	}
	members := classroom.Members[:0:0]
	for _, m := range classroom.Members {
		if m != memberID {
			members = append(members, m)
		}
	}
	classroom.Members = members
	classroom.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateClassroom(classroom); err != nil {
		return domain.Classroom{}, fmt.Errorf("save classroom: %w", err)
	}
	a.logger.Info("member removed", "classroom", classroom.ID, "member", memberID)
	return classroom, nil
}

// DeleteClassroom removes an empty classroom. Deletion is rejected while
// rooms still reference it.
func (a *App) DeleteClassroom(ctx context.Context, actor, classroomID oid.ID) error {
	classroom, err := a.requireAdmin(actor, classroomID)
	if err != nil {
		return err
	}
	rooms, err := a.store.ListRoomsByClassroom(classroom.ID)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}
	if len(rooms) > 0 {
		return ErrClassroomNotEmpty
	}
	if err := a.store.DeleteClassroom(classroom.ID); err != nil {
		return fmt.Errorf("delete classroom: %w", err)
	}
	a.logger.Info("classroom deleted", "classroom", classroom.ID)
	return nil
}

// CreateRoom adds a chat room to a classroom. Any member may create one.
func (a *App) CreateRoom(ctx context.Context, actor, classroomID oid.ID, name, description string) (domain.Room, error) {
	classroom, ok, err := a.store.GetClassroom(classroomID)
	if err != nil {
		return domain.Room{}, fmt.Errorf("load classroom: %w", err)
	}
	if !ok {
		return domain.Room{}, ErrClassroomNotFound
	}
	if !classroom.IsMember(actor) {
		return domain.Room{}, fmt.Errorf("%w: not a classroom member", domain.ErrForbidden)
	}
	now := time.Now().UTC()
	room := domain.Room{
		Name:        name,
		Description: description,
		ClassroomID: classroom.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := room.Validate(); err != nil {
		return domain.Room{}, err
	}
	room, err = a.store.InsertRoom(room)
	if err != nil {
		return domain.Room{}, fmt.Errorf("save room: %w", err)
	}
	a.logger.Info("room created", "room", room.ID, "classroom", classroom.ID)
	return room, nil
}

// ListRooms returns a classroom's rooms to a member.
func (a *App) ListRooms(ctx context.Context, actor, classroomID oid.ID) ([]domain.Room, error) {
	classroom, ok, err := a.store.GetClassroom(classroomID)
	if err != nil {
		return nil, fmt.Errorf("load classroom: %w", err)
	}
	if !ok {
		return nil, ErrClassroomNotFound
	}
	if !classroom.IsMember(actor) {
		return nil, fmt.Errorf("%w: not a classroom member", domain.ErrForbidden)
	}
	rooms, err := a.store.ListRoomsByClassroom(classroom.ID)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// GetClassroom returns a classroom to one of its members.
func (a *App) GetClassroom(ctx context.Context, actor, classroomID oid.ID) (domain.Classroom, error) {
	classroom, ok, err := a.store.GetClassroom(classroomID)
	if err != nil {
		return domain.Classroom{}, fmt.Errorf("load classroom: %w", err)
	}
	if !ok {
		return domain.Classroom{}, ErrClassroomNotFound
	}
	if !classroom.IsMember(actor) {
		return domain.Classroom{}, fmt.Errorf("%w: not a classroom member", domain.ErrForbidden)
	}
	return classroom, nil
}

func (a *App) requireAdmin(actor, classroomID oid.ID) (domain.Classroom, error) {
	classroom, ok, err := a.store.GetClassroom(classroomID)
	if err != nil {
		return domain.Classroom{}, fmt.Errorf("load classroom: %w", err)
	}
	if !ok {
		return domain.Classroom{}, ErrClassroomNotFound
	}
	if !classroom.IsAdmin(actor) {
		return domain.Classroom{}, fmt.Errorf("%w: admin only", domain.ErrForbidden)
	}
	return classroom, nil
}

func (a *App) publish(ctx context.Context, e realtime.Envelope) {
	if err := a.publisher.Publish(ctx, e); err != nil {
		a.logger.Warn("publish event", "type", e.Type, "err", err)
	}
}
