// Package realtime defines the push-notification payload shapes for
// entity mutations and a publisher that hands them to the delivery
// transport. The core defines the shapes only; delivery (websocket
// fan-out, presence) is an external collaborator consuming the stream.
package realtime

import (
	"context"
	"time"

	"studyhive/pkg/domain"
	"studyhive/pkg/oid"
)

// Event types carried in the envelope's type field.
const (
	EventFriendRequest       = "friend_request"
	EventFriendAccepted      = "friend_accepted"
	EventRoomMessage         = "room_message"
	EventMessageEdited       = "message_edited"
	EventMessageDeleted      = "message_deleted"
	EventDirectMessage       = "direct_message"
	EventConversationUpdated = "conversation_updated"
	EventMemberJoined        = "member_joined"
)

// Envelope is the generic {type, data} push frame.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// FriendRequestPayload notifies the receiver of a new or resolved request.
type FriendRequestPayload struct {
	RequestID  oid.ID                     `json:"requestId"`
	SenderID   oid.ID                     `json:"senderId"`
	ReceiverID oid.ID                     `json:"receiverId"`
	Status     domain.FriendRequestStatus `json:"status"`
}

// RoomMessagePayload carries a room chat mutation. Deleted messages ship
// the display placeholder, never the retained content.
type RoomMessagePayload struct {
	MessageID oid.ID    `json:"messageId"`
	RoomID    oid.ID    `json:"roomId"`
	SenderID  oid.ID    `json:"senderId"`
	Content   string    `json:"content"`
	Edited    bool      `json:"edited"`
	Deleted   bool      `json:"deleted"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomMessageFrom builds the payload from an entity record, applying the
// presentation-boundary filter for soft-deleted messages.
func RoomMessageFrom(m domain.Message) RoomMessagePayload {
	return RoomMessagePayload{
		MessageID: m.ID,
		RoomID:    m.RoomID,
		SenderID:  m.SenderID,
		Content:   m.DisplayContent(),
		Edited:    m.Edited,
		Deleted:   m.Deleted,
		Timestamp: m.Timestamp,
	}
}

// DirectMessagePayload carries a direct-message send to both participants.
type DirectMessagePayload struct {
	MessageID      oid.ID             `json:"messageId"`
	ConversationID oid.ID             `json:"conversationId"`
	SenderID       oid.ID             `json:"senderId"`
	ReceiverID     oid.ID             `json:"receiverId"`
	Content        string             `json:"content"`
	Kind           domain.MessageKind `json:"messageType"`
	File           *domain.FileMeta   `json:"file,omitempty"`
	Timestamp      time.Time          `json:"timestamp"`
}

// ConversationPayload refreshes a participant's conversation listing.
type ConversationPayload struct {
	ConversationID     oid.ID     `json:"conversationId"`
	LastMessageID      oid.ID     `json:"lastMessageId,omitempty"`
	LastMessageContent string     `json:"lastMessageContent,omitempty"`
	LastMessageAt      *time.Time `json:"lastMessageTimestamp,omitempty"`
}

// MemberJoinedPayload announces an invite-code redemption to a classroom.
type MemberJoinedPayload struct {
	ClassroomID oid.ID `json:"classroomId"`
	UserID      oid.ID `json:"userId"`
}

// Publisher hands envelopes to the delivery transport.
type Publisher interface {
	Publish(ctx context.Context, e Envelope) error
}

// NopPublisher drops envelopes; used where no transport is wired.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Envelope) error { return nil }
