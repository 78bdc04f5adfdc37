// Package domain defines the persisted entity records of the platform and
// the transition rules that must hold wherever they are mutated. Entities
// reference each other by canonical identifier only; no entity needs to
// load another to remain valid.
package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"studyhive/pkg/oid"
)

// User is a registered account. Friends is a symmetric relation: whenever
// A lists B, B must list A. The symmetry is maintained by the friendship
// operations, never by ad hoc field writes.
type User struct {
	ID              oid.ID    `bson:"_id,omitempty" json:"id"`
	Email           string    `bson:"email" json:"email"`
	Name            string    `bson:"name" json:"name"`
	Bio             string    `bson:"bio,omitempty" json:"bio,omitempty"`
	Avatar          string    `bson:"avatar,omitempty" json:"avatar,omitempty"`
	StudyInterests  []string  `bson:"study_interests" json:"studyInterests"`
	LearningStreaks int       `bson:"learning_streaks" json:"learningStreaks"`
	StudentID       string    `bson:"student_id,omitempty" json:"studentId,omitempty"`
	PasswordHash    string    `bson:"hashed_password" json:"-"`
	IsVerified      bool      `bson:"is_verified" json:"isVerified"`
	Friends         []oid.ID  `bson:"friends" json:"friends"`
	CreatedAt       time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updatedAt"`
}

// Validate checks field shape ahead of persistence.
func (u User) Validate() error {
	if _, err := NormalizeEmail(u.Email); err != nil {
		return err
	}
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("%w: name required", ErrValidation)
	}
	if u.LearningStreaks < 0 {
		return fmt.Errorf("%w: learning streak must be non-negative", ErrValidation)
	}
	return nil
}

// AddFriend records a friendship edge on this side. Returns false when the
// edge already exists, making repeated application safe.
func (u *User) AddFriend(id oid.ID) bool {
	if u.HasFriend(id) {
		return false
	}
	u.Friends = append(u.Friends, id)
	return true
}

func (u User) HasFriend(id oid.ID) bool {
	for _, f := range u.Friends {
		if f == id {
			return true
		}
	}
	return false
}

// NormalizeEmail validates and canonicalizes an address to lowercase.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email required", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: malformed email %q", ErrValidation, email)
	}
	return email, nil
}

// FriendRequestStatus is the friend-request lifecycle state. Accepted and
// declined are terminal.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestDeclined FriendRequestStatus = "declined"
)

// FriendRequest records one user asking another for friendship. At most
// one pending request may exist per unordered sender/receiver pair; that
// invariant is enforced where requests are created.
type FriendRequest struct {
	ID         oid.ID              `bson:"_id,omitempty" json:"id"`
	SenderID   oid.ID              `bson:"sender_id" json:"senderId"`
	ReceiverID oid.ID              `bson:"receiver_id" json:"receiverId"`
	Status     FriendRequestStatus `bson:"status" json:"status"`
	CreatedAt  time.Time           `bson:"created_at" json:"createdAt"`
}

func (r FriendRequest) Validate() error {
	if r.SenderID.IsZero() || r.ReceiverID.IsZero() {
		return fmt.Errorf("%w: sender and receiver required", ErrValidation)
	}
	if r.SenderID == r.ReceiverID {
		return fmt.Errorf("%w: cannot send a friend request to yourself", ErrValidation)
	}
	return nil
}

// Accept transitions pending -> accepted. The caller is responsible for
// establishing the symmetric friendship afterwards.
func (r *FriendRequest) Accept() error {
	if r.Status != FriendRequestPending {
		return fmt.Errorf("%w: request is %s", ErrInvalidStateTransition, r.Status)
	}
	r.Status = FriendRequestAccepted
	return nil
}

// Decline transitions pending -> declined with no friend-set effect.
func (r *FriendRequest) Decline() error {
	if r.Status != FriendRequestPending {
		return fmt.Errorf("%w: request is %s", ErrInvalidStateTransition, r.Status)
	}
	r.Status = FriendRequestDeclined
	return nil
}

// Classroom groups users under an admin. The admin is always a member and
// cannot change after creation. The invite code is the sole join-by-code
// mechanism and is unique across classrooms.
type Classroom struct {
	ID          oid.ID    `bson:"_id,omitempty" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Logo        string    `bson:"logo,omitempty" json:"logo,omitempty"`
	AdminID     oid.ID    `bson:"admin_id" json:"adminId"`
	Members     []oid.ID  `bson:"members" json:"members"`
	InviteCode  string    `bson:"invite_code" json:"inviteCode"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updatedAt"`
}

func (c Classroom) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: classroom name required", ErrValidation)
	}
	if c.AdminID.IsZero() {
		return fmt.Errorf("%w: classroom admin required", ErrValidation)
	}
	if !c.IsMember(c.AdminID) {
		return fmt.Errorf("%w: admin must be a member", ErrValidation)
	}
	return nil
}

func (c Classroom) IsAdmin(userID oid.ID) bool { return c.AdminID == userID }

func (c Classroom) IsMember(userID oid.ID) bool {
	for _, m := range c.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// AddMember appends a member exactly once. Returns false for existing
// members so join-by-code stays idempotent.
func (c *Classroom) AddMember(userID oid.ID) bool {
	if c.IsMember(userID) {
		return false
	}
	c.Members = append(c.Members, userID)
	return true
}

// Room is a chat space owned by exactly one classroom.
type Room struct {
	ID          oid.ID    `bson:"_id,omitempty" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	ClassroomID oid.ID    `bson:"classroom_id" json:"classroomId"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updatedAt"`
}

func (r Room) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: room name required", ErrValidation)
	}
	if r.ClassroomID.IsZero() {
		return fmt.Errorf("%w: room must belong to a classroom", ErrValidation)
	}
	return nil
}

// Message is a room-scoped chat message. Deletion is a soft flag: content
// is retained for audit and filtered at the presentation boundary.
type Message struct {
	ID        oid.ID     `bson:"_id,omitempty" json:"id"`
	RoomID    oid.ID     `bson:"room_id" json:"roomId"`
	SenderID  oid.ID     `bson:"sender_id" json:"senderId"`
	Content   string     `bson:"content" json:"content"`
	Timestamp time.Time  `bson:"timestamp" json:"timestamp"`
	Edited    bool       `bson:"edited" json:"edited"`
	EditedAt  *time.Time `bson:"edited_at,omitempty" json:"editedAt,omitempty"`
	Deleted   bool       `bson:"deleted" json:"deleted"`
}

// Edit replaces content. Only the original sender may edit, and a deleted
// message accepts no further edits.
func (m *Message) Edit(actor oid.ID, content string, now time.Time) error {
	if actor != m.SenderID {
		return fmt.Errorf("%w: only the sender may edit", ErrForbidden)
	}
	if m.Deleted {
		return ErrAlreadyDeleted
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: message content required", ErrValidation)
	}
	m.Content = content
	m.Edited = true
	m.EditedAt = &now
	return nil
}

// SoftDelete marks the message deleted. The sender or a classroom admin
// may delete; content stays in place for audit.
func (m *Message) SoftDelete(actor oid.ID, isAdmin bool) error {
	if actor != m.SenderID && !isAdmin {
		return fmt.Errorf("%w: only the sender or an admin may delete", ErrForbidden)
	}
	if m.Deleted {
		return ErrAlreadyDeleted
	}
	m.Deleted = true
	return nil
}

// DisplayContent is what consumers render; deleted messages surface a
// placeholder instead of their retained content.
func (m Message) DisplayContent() string {
	if m.Deleted {
		return "message deleted"
	}
	return m.Content
}

// MessageKind is the closed set of direct-message content kinds.
type MessageKind string

const (
	KindText       MessageKind = "text"
	KindImage      MessageKind = "image"
	KindVideo      MessageKind = "video"
	KindAudio      MessageKind = "audio"
	KindFile       MessageKind = "file"
	KindAIResponse MessageKind = "ai_response"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVideo, KindAudio, KindFile, KindAIResponse:
		return true
	}
	return false
}

// RequiresFile reports whether the kind carries a file payload.
func (k MessageKind) RequiresFile() bool {
	switch k {
	case KindImage, KindVideo, KindAudio, KindFile:
		return true
	}
	return false
}

// FileMeta describes an uploaded attachment. The three fields are required
// together.
type FileMeta struct {
	URL  string `bson:"file_url" json:"fileUrl"`
	Name string `bson:"file_name" json:"fileName"`
	Size int64  `bson:"file_size" json:"fileSize"`
}

func (f FileMeta) complete() bool {
	return f.URL != "" && f.Name != "" && f.Size > 0
}

// DirectMessage is a one-to-one message inside a conversation whose
// participant set must contain both sender and receiver.
type DirectMessage struct {
	ID             oid.ID      `bson:"_id,omitempty" json:"id"`
	ConversationID oid.ID      `bson:"conversation_id" json:"conversationId"`
	SenderID       oid.ID      `bson:"sender_id" json:"senderId"`
	ReceiverID     oid.ID      `bson:"receiver_id" json:"receiverId"`
	Content        string      `bson:"content" json:"content"`
	Kind           MessageKind `bson:"message_type" json:"messageType"`
	File           *FileMeta   `bson:"file,omitempty" json:"file,omitempty"`
	RepliedTo      oid.ID      `bson:"replied_to,omitempty" json:"repliedTo,omitempty"`
	Timestamp      time.Time   `bson:"timestamp" json:"timestamp"`
	IsRead         bool        `bson:"is_read" json:"isRead"`
	IsEdited       bool        `bson:"is_edited" json:"isEdited"`
	EditedAt       *time.Time  `bson:"edited_at,omitempty" json:"editedAt,omitempty"`
}

// Validate enforces the kind set and the kind-specific file requirements.
func (m DirectMessage) Validate() error {
	if m.SenderID.IsZero() || m.ReceiverID.IsZero() {
		return fmt.Errorf("%w: sender and receiver required", ErrValidation)
	}
	if m.SenderID == m.ReceiverID {
		return fmt.Errorf("%w: cannot message yourself", ErrValidation)
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidContentKind, m.Kind)
	}
	if m.Kind.RequiresFile() && strings.TrimSpace(m.Content) == "" {
		if m.File == nil || !m.File.complete() {
			return fmt.Errorf("%w: %s message requires file metadata", ErrInvalidContentKind, m.Kind)
		}
	}
	if m.File != nil && !m.File.complete() {
		return fmt.Errorf("%w: incomplete file metadata", ErrInvalidContentKind)
	}
	if m.Kind == KindText && strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("%w: message content required", ErrValidation)
	}
	return nil
}

// Edit replaces the content of an own message.
func (m *DirectMessage) Edit(actor oid.ID, content string, now time.Time) error {
	if actor != m.SenderID {
		return fmt.Errorf("%w: only the sender may edit", ErrForbidden)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: message content required", ErrValidation)
	}
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &now
	return nil
}

const lastMessageSnippetLen = 120

// Conversation is the unordered pair of participants in a direct-message
// thread plus a denormalized cache of the most recent message for fast
// listing.
type Conversation struct {
	ID                 oid.ID     `bson:"_id,omitempty" json:"id"`
	Participants       []oid.ID   `bson:"participants" json:"participants"`
	LastMessageID      oid.ID     `bson:"last_message_id,omitempty" json:"lastMessageId,omitempty"`
	LastMessageContent string     `bson:"last_message_content,omitempty" json:"lastMessageContent,omitempty"`
	LastMessageAt      *time.Time `bson:"last_message_timestamp,omitempty" json:"lastMessageTimestamp,omitempty"`
	CreatedAt          time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `bson:"updated_at" json:"updatedAt"`
}

func (c Conversation) HasParticipant(userID oid.ID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ApplyLastMessage updates the cache fields from a newly persisted
// message. Ordering is by message timestamp, not arrival order: a stale
// message never overwrites a newer cache entry. Reports whether the
// update was applied.
func (c *Conversation) ApplyLastMessage(m DirectMessage) bool {
	if c.LastMessageAt != nil && m.Timestamp.Before(*c.LastMessageAt) {
		return false
	}
	ts := m.Timestamp
	c.LastMessageID = m.ID
	c.LastMessageContent = messageSnippet(m)
	c.LastMessageAt = &ts
	if ts.After(c.UpdatedAt) {
		c.UpdatedAt = ts
	}
	return true
}

func messageSnippet(m DirectMessage) string {
	text := strings.TrimSpace(m.Content)
	if text == "" && m.File != nil {
		text = m.File.Name
	}
	runes := []rune(text)
	if len(runes) > lastMessageSnippetLen {
		return string(runes[:lastMessageSnippetLen]) + "…"
	}
	return text
}

// ChatRole tags entries in a video session's chat log.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// YouTubeChatMessage is one entry of a session's append-only chat log.
type YouTubeChatMessage struct {
	Role      ChatRole  `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// YouTubeSession holds a per-user transcript-summarization session and the
// conversational context for follow-up questions about the video. Summary
// fields are computed by an external service and merely stored here.
type YouTubeSession struct {
	ID              oid.ID               `bson:"_id,omitempty" json:"id"`
	UserID          oid.ID               `bson:"user_id" json:"userId"`
	VideoURL        string               `bson:"video_url" json:"videoUrl"`
	VideoTitle      string               `bson:"video_title,omitempty" json:"videoTitle,omitempty"`
	VideoDuration   int                  `bson:"video_duration,omitempty" json:"videoDuration,omitempty"`
	Transcript      string               `bson:"transcript,omitempty" json:"transcript,omitempty"`
	ShortSummary    string               `bson:"short_summary,omitempty" json:"shortSummary,omitempty"`
	DetailedSummary string               `bson:"detailed_summary,omitempty" json:"detailedSummary,omitempty"`
	ChatHistory     []YouTubeChatMessage `bson:"chat_history" json:"chatHistory"`
	CreatedAt       time.Time            `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time            `bson:"updated_at" json:"updatedAt"`
}

func (s YouTubeSession) Validate() error {
	if s.UserID.IsZero() {
		return fmt.Errorf("%w: session owner required", ErrValidation)
	}
	if strings.TrimSpace(s.VideoURL) == "" {
		return fmt.Errorf("%w: video url required", ErrValidation)
	}
	return nil
}

// AppendChat appends a role-tagged entry to the chat log. The log is
// append-only: prior entries are never mutated or removed.
func (s *YouTubeSession) AppendChat(role ChatRole, content string, now time.Time) (YouTubeChatMessage, error) {
	if role != ChatRoleUser && role != ChatRoleAssistant {
		return YouTubeChatMessage{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if strings.TrimSpace(content) == "" {
		return YouTubeChatMessage{}, fmt.Errorf("%w: chat content required", ErrValidation)
	}
	entry := YouTubeChatMessage{Role: role, Content: content, Timestamp: now}
	s.ChatHistory = append(s.ChatHistory, entry)
	s.UpdatedAt = now
	return entry, nil
}
