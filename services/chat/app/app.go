// Package app implements the two messaging surfaces: classroom room chat
// with edit and soft-delete, and one-to-one direct messages with
// attachment upload and the per-conversation last-message cache.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"studyhive/pkg/domain"
	"studyhive/pkg/oid"
	"studyhive/pkg/realtime"
	"studyhive/pkg/storage"
	"studyhive/pkg/store"
)

const defaultListLimit = 50

// Config wires the chat service.
type Config struct {
	Store       store.Store
	Attachments storage.AttachmentStore
	Publisher   realtime.Publisher
	Logger      *slog.Logger
}

// App is the chat service core.
type App struct {
	store       store.Store
	attachments storage.AttachmentStore
	publisher   realtime.Publisher
	logger      *slog.Logger
}

// New constructs the chat service.
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
	return &App{
		store:       cfg.Store,
		attachments: cfg.Attachments,
		publisher:   publisher,
		logger:      logger,
	}, nil
}

// PostMessage sends a room message. The sender must belong to the room's
// classroom.
func (a *App) PostMessage(ctx context.Context, sender, roomID oid.ID, content string) (domain.Message, error) {
	if _, err := a.requireRoomMember(sender, roomID); err != nil {
		return domain.Message{}, err
	}
	message := domain.Message{
		RoomID:    roomID,
		SenderID:  sender,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	if message.Content == "" {
		return domain.Message{}, fmt.Errorf("%w: message content required", domain.ErrValidation)
	}
	message, err := a.store.InsertMessage(message)
	if err != nil {
		return domain.Message{}, fmt.Errorf("save message: %w", err)
	}
	a.publish(ctx, realtime.Envelope{
		Type: realtime.EventRoomMessage,
		Data: realtime.RoomMessageFrom(message),
	})
	return message, nil
}

// EditMessage replaces a room message's content. Sender only; deleted
// messages reject edits.
func (a *App) EditMessage(ctx context.Context, actor, messageID oid.ID, content string) (domain.Message, error) {
	message, ok, err := a.store.GetMessage(messageID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("load message: %w", err)
	}
	if !ok {
		return domain.Message{}, ErrMessageNotFound
	}
	if err := message.Edit(actor, content, time.Now().UTC()); err != nil {
		return domain.Message{}, err
	}
	if err := a.store.UpdateMessage(message); err != nil {
		return domain.Message{}, fmt.Errorf("save message: %w", err)
	}
	a.publish(ctx, realtime.Envelope{
		Type: realtime.EventMessageEdited,
		Data: realtime.RoomMessageFrom(message),
	})
	return message, nil
}

// DeleteMessage soft-deletes a room message. The sender may always
// delete; the admin of the room's classroom may moderate any message.
func (a *App) DeleteMessage(ctx context.Context, actor, messageID oid.ID) (domain.Message, error) {
	message, ok, err := a.store.GetMessage(messageID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("load message: %w", err)
	}
	if !ok {
		return domain.Message{}, ErrMessageNotFound
	}
	classroom, err := a.classroomOfRoom(message.RoomID)
	if err != nil {
		return domain.Message{}, err
	}
	if err := message.SoftDelete(actor, classroom.IsAdmin(actor)); err != nil {
		return domain.Message{}, err
	}
	if err := a.store.UpdateMessage(message); err != nil {
		return domain.Message{}, fmt.Errorf("save message: %w", err)
	}
	a.publish(ctx, realtime.Envelope{
		Type: realtime.EventMessageDeleted,
		Data: realtime.RoomMessageFrom(message),
	})
	a.logger.Info("message deleted", "message", message.ID, "actor", actor)
	return message, nil
}

// ListMessages returns a room's recent messages to a classroom member.
// Soft-deleted messages are included with their placeholder content.
func (a *App) ListMessages(ctx context.Context, actor, roomID oid.ID, limit int) ([]realtime.RoomMessagePayload, error) {
	if _, err := a.requireRoomMember(actor, roomID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	messages, err := a.store.ListMessagesByRoom(roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]realtime.RoomMessagePayload, 0, len(messages))
	for _, m := range messages {
		out = append(out, realtime.RoomMessageFrom(m))
	}
	return out, nil
}

// Attachment is an upload accompanying a direct message.
type Attachment struct {
	Name        string
	Reader      io.Reader
	Size        int64
	ContentType string
}

// DirectMessageInput carries one direct-message send.
type DirectMessageInput struct {
	Receiver   oid.ID
	Content    string
	Kind       domain.MessageKind
	RepliedTo  oid.ID
	Attachment *Attachment
}

// SendDirectMessage resolves or creates the pair's conversation, uploads
// the attachment if any, persists the message, and advances the
// conversation's last-message cache.
func (a *App) SendDirectMessage(ctx context.Context, sender oid.ID, in DirectMessageInput) (domain.DirectMessage, error) {
	if sender == in.Receiver {
		return domain.DirectMessage{}, fmt.Errorf("%w: cannot message yourself", domain.ErrValidation)
	}
	if _, ok, err := a.store.GetUser(in.Receiver); err != nil {
		return domain.DirectMessage{}, fmt.Errorf("load receiver: %w", err)
	} else if !ok {
		return domain.DirectMessage{}, fmt.Errorf("%w: unknown receiver", domain.ErrValidation)
	}
	now := time.Now().UTC()
	conversation, err := a.store.UpsertConversation(sender, in.Receiver, now)
	if err != nil {
		return domain.DirectMessage{}, fmt.Errorf("resolve conversation: %w", err)
	}

	message := domain.DirectMessage{
		ConversationID: conversation.ID,
		SenderID:       sender,
		ReceiverID:     in.Receiver,
		Content:        in.Content,
		Kind:           in.Kind,
		RepliedTo:      in.RepliedTo,
		Timestamp:      now,
	}
	if in.Attachment != nil {
		if a.attachments == nil {
			return domain.DirectMessage{}, errors.New("attachment store not configured")
		}
		file, err := a.attachments.UploadAttachment(ctx, conversation.ID, in.Attachment.Name,
			in.Attachment.Reader, in.Attachment.Size, in.Attachment.ContentType)
		if err != nil {
			return domain.DirectMessage{}, fmt.Errorf("upload attachment: %w", err)
		}
		message.File = &file
	}
	if err := message.Validate(); err != nil {
		return domain.DirectMessage{}, err
	}
	message, err = a.store.InsertDirectMessage(message)
	if err != nil {
		return domain.DirectMessage{}, fmt.Errorf("save message: %w", err)
	}
	if err := a.store.SetConversationLastMessage(conversation.ID, message); err != nil {
		return domain.DirectMessage{}, fmt.Errorf("update conversation cache: %w", err)
	}

	a.publish(ctx, realtime.Envelope{
		Type: realtime.EventDirectMessage,
		Data: realtime.DirectMessagePayload{
			MessageID:      message.ID,
			ConversationID: message.ConversationID,
			SenderID:       message.SenderID,
			ReceiverID:     message.ReceiverID,
			Content:        message.Content,
			Kind:           message.Kind,
			File:           message.File,
			Timestamp:      message.Timestamp,
		},
	})
	if conversation, ok, err := a.store.GetConversation(conversation.ID); err == nil && ok {
		a.publish(ctx, realtime.Envelope{
			Type: realtime.EventConversationUpdated,
			Data: realtime.ConversationPayload{
				ConversationID:     conversation.ID,
				LastMessageID:      conversation.LastMessageID,
				LastMessageContent: conversation.LastMessageContent,
				LastMessageAt:      conversation.LastMessageAt,
			},
		})
	}
	return message, nil
}

// EditDirectMessage replaces an own message's content.
func (a *App) EditDirectMessage(ctx context.Context, actor, messageID oid.ID, content string) (domain.DirectMessage, error) {
	message, ok, err := a.store.GetDirectMessage(messageID)
	if err != nil {
		return domain.DirectMessage{}, fmt.Errorf("load message: %w", err)
	}
	if !ok {
		return domain.DirectMessage{}, ErrMessageNotFound
	}
	if err := message.Edit(actor, content, time.Now().UTC()); err != nil {
		return domain.DirectMessage{}, err
	}
	if err := a.store.UpdateDirectMessage(message); err != nil {
		return domain.DirectMessage{}, fmt.Errorf("save message: %w", err)
	}
	// An edit of the latest message refreshes the cached snippet. The CAS
	// admits it because the timestamp is unchanged.
	if err := a.store.SetConversationLastMessage(message.ConversationID, message); err != nil {
		a.logger.Warn("refresh conversation cache", "conversation", message.ConversationID, "err", err)
	}
	return message, nil
}

// MarkRead flags a direct message read. Receiver only.
func (a *App) MarkRead(ctx context.Context, actor, messageID oid.ID) (domain.DirectMessage, error) {
	message, ok, err := a.store.GetDirectMessage(messageID)
	if err != nil {
		return domain.DirectMessage{}, fmt.Errorf("load message: %w", err)
	}
	if !ok {
		return domain.DirectMessage{}, ErrMessageNotFound
	}
	if message.ReceiverID != actor {
		return domain.DirectMessage{}, fmt.Errorf("%w: only the receiver may mark read", domain.ErrForbidden)
	}
	if message.IsRead {
		return message, nil
	}
	message.IsRead = true
	if err := a.store.UpdateDirectMessage(message); err != nil {
		return domain.DirectMessage{}, fmt.Errorf("save message: %w", err)
	}
	return message, nil
}

// ListConversations returns the actor's conversations, most recently
// active first.
func (a *App) ListConversations(ctx context.Context, actor oid.ID) ([]domain.Conversation, error) {
	conversations, err := a.store.ListConversationsByUser(actor)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

// ListDirectMessages returns a conversation's recent messages to one of
// its participants.
func (a *App) ListDirectMessages(ctx context.Context, actor, conversationID oid.ID, limit int) ([]domain.DirectMessage, error) {
	conversation, ok, err := a.store.GetConversation(conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if !ok {
		return nil, ErrConversationNotFound
	}
	if !conversation.HasParticipant(actor) {
		return nil, fmt.Errorf("%w: not a participant", domain.ErrForbidden)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	messages, err := a.store.ListDirectMessages(conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

func (a *App) requireRoomMember(actor, roomID oid.ID) (domain.Room, error) {
	room, ok, err := a.store.GetRoom(roomID)
	if err != nil {
		return domain.Room{}, fmt.Errorf("load room: %w", err)
	}
	if !ok {
		return domain.Room{}, ErrRoomNotFound
	}
	classroom, ok, err := a.store.GetClassroom(room.ClassroomID)
	if err != nil {
		return domain.Room{}, fmt.Errorf("load classroom: %w", err)
	}
	if !ok {
		return domain.Room{}, fmt.Errorf("load classroom: orphaned room %s", room.ID)
	}
	if !classroom.IsMember(actor) {
		return domain.Room{}, fmt.Errorf("%w: not a classroom member", domain.ErrForbidden)
	}
	return room, nil
}

func (a *App) classroomOfRoom(roomID oid.ID) (domain.Classroom, error) {
	room, ok, err := a.store.GetRoom(roomID)
	if err != nil {
		return domain.Classroom{}, fmt.Errorf("load room: %w", err)
	}
	if !ok {
		return domain.Classroom{}, ErrRoomNotFound
	}
	classroom, ok, err := a.store.GetClassroom(room.ClassroomID)
	if err != nil {
		return domain.Classroom{}, fmt.Errorf("load classroom: %w", err)
	}
	if !ok {
		return domain.Classroom{}, fmt.Errorf("load classroom: orphaned room %s", room.ID)
	}
	return classroom, nil
}

func (a *App) publish(ctx context.Context, e realtime.Envelope) {
	if err := a.publisher.Publish(ctx, e); err != nil {
		a.logger.Warn("publish event", "type", e.Type, "err", err)
	}
}
