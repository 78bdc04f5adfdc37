// Package store defines the document-store abstraction the platform is
// built against. The store generates canonical record identifiers on
// insert, enforces the unique constraints on email and invite code, and
// provides the two single-document atomic operations the entity model
// relies on: conversation resolve-or-create and the last-message cache
// compare-and-set.
package store

import (
	"errors"
	"time"

	"studyhive/pkg/domain"
	"studyhive/pkg/oid"
)

var (
	// ErrEmailTaken signals a violation of the unique constraint on email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInviteCodeTaken signals an invite-code collision on insert.
	// Callers regenerate and retry; this is not a fatal condition.
	ErrInviteCodeTaken = errors.New("invite code already in use")
)

// Store persists the platform's entity records. Implementations must make
// every method atomic with respect to the single document it touches.
type Store interface {
	// users
	InsertUser(u domain.User) (domain.User, error)
	GetUser(id oid.ID) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	UpdateUser(u domain.User) error
	// AddFriendEdge unions friendID into the user's friend set. It is
	// idempotent so friendship establishment can be retried to
	// convergence.
	AddFriendEdge(userID, friendID oid.ID) error

	// friend requests
	InsertFriendRequest(r domain.FriendRequest) (domain.FriendRequest, error)
	GetFriendRequest(id oid.ID) (domain.FriendRequest, bool, error)
	UpdateFriendRequest(r domain.FriendRequest) error
	// FindPendingRequest looks up a pending request between the unordered
	// {a, b} pair, in either direction.
	FindPendingRequest(a, b oid.ID) (domain.FriendRequest, bool, error)

	// classrooms
	InsertClassroom(c domain.Classroom) (domain.Classroom, error)
	GetClassroom(id oid.ID) (domain.Classroom, bool, error)
	GetClassroomByCode(code string) (domain.Classroom, bool, error)
	UpdateClassroom(c domain.Classroom) error
	DeleteClassroom(id oid.ID) error

	// rooms
	InsertRoom(r domain.Room) (domain.Room, error)
	GetRoom(id oid.ID) (domain.Room, bool, error)
	ListRoomsByClassroom(classroomID oid.ID) ([]domain.Room, error)

	// room messages
	InsertMessage(m domain.Message) (domain.Message, error)
	GetMessage(id oid.ID) (domain.Message, bool, error)
	UpdateMessage(m domain.Message) error
	ListMessagesByRoom(roomID oid.ID, limit int) ([]domain.Message, error)

	// conversations
	// UpsertConversation resolves or creates the conversation for the
	// unordered {a, b} pair as one atomic operation, so concurrent
	// first-contact sends never produce duplicates.
	UpsertConversation(a, b oid.ID, now time.Time) (domain.Conversation, error)
	GetConversation(id oid.ID) (domain.Conversation, bool, error)
	ListConversationsByUser(userID oid.ID) ([]domain.Conversation, error)
	// SetConversationLastMessage updates the denormalized cache via
	// compare-and-set on the message timestamp: an older message never
	// overwrites a newer cache entry.
	SetConversationLastMessage(conversationID oid.ID, m domain.DirectMessage) error

	// direct messages
	InsertDirectMessage(m domain.DirectMessage) (domain.DirectMessage, error)
	GetDirectMessage(id oid.ID) (domain.DirectMessage, bool, error)
	UpdateDirectMessage(m domain.DirectMessage) error
	ListDirectMessages(conversationID oid.ID, limit int) ([]domain.DirectMessage, error)

	// youtube sessions
	InsertYouTubeSession(s domain.YouTubeSession) (domain.YouTubeSession, error)
	GetYouTubeSession(id oid.ID) (domain.YouTubeSession, bool, error)
	UpdateYouTubeSession(s domain.YouTubeSession) error
	AppendSessionChat(sessionID oid.ID, entry domain.YouTubeChatMessage) error
	ListYouTubeSessionsByUser(userID oid.ID) ([]domain.YouTubeSession, error)
}
