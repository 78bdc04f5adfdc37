package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"studyhive/pkg/domain"
	"studyhive/pkg/oid"
)

// MemoryStore keeps all entities in-process. It is the reference
// implementation of the Store contract and backs the test suites; every
// method holds the store lock for its full critical section, which gives
// the single-document atomicity the contract asks for.
type MemoryStore struct {
	mu sync.RWMutex

	users      map[oid.ID]domain.User
	emailIndex map[string]oid.ID

	requests     map[oid.ID]domain.FriendRequest
	requestOrder []oid.ID

	classrooms map[oid.ID]domain.Classroom
	codeIndex  map[string]oid.ID

	rooms     map[oid.ID]domain.Room
	roomOrder []oid.ID

	messages     map[oid.ID]domain.Message
	messageOrder []oid.ID

	conversations map[oid.ID]domain.Conversation
	pairIndex     map[string]oid.ID

	directMessages map[oid.ID]domain.DirectMessage
	dmOrder        []oid.ID

	sessions     map[oid.ID]domain.YouTubeSession
	sessionOrder []oid.ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:          make(map[oid.ID]domain.User),
		emailIndex:     make(map[string]oid.ID),
		requests:       make(map[oid.ID]domain.FriendRequest),
		classrooms:     make(map[oid.ID]domain.Classroom),
		codeIndex:      make(map[string]oid.ID),
		rooms:          make(map[oid.ID]domain.Room),
		messages:       make(map[oid.ID]domain.Message),
		conversations:  make(map[oid.ID]domain.Conversation),
		pairIndex:      make(map[string]oid.ID),
		directMessages: make(map[oid.ID]domain.DirectMessage),
		sessions:       make(map[oid.ID]domain.YouTubeSession),
	}
}

// pairKey builds the canonical key for an unordered identifier pair.
func pairKey(a, b oid.ID) string {
	if strings.Compare(a.String(), b.String()) > 0 {
		a, b = b, a
	}
	return a.String() + "|" + b.String()
}

// InsertUser assigns a fresh identifier and enforces email uniqueness.
func (m *MemoryStore) InsertUser(u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.emailIndex[u.Email]; taken {
		return domain.User{}, ErrEmailTaken
	}
	u.ID = oid.New()
	m.users[u.ID] = u
	m.emailIndex[u.Email] = u.ID
	return u, nil
}

func (m *MemoryStore) GetUser(id oid.ID) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emailIndex[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) UpdateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.users[u.ID]
	if !ok {
		return fmt.Errorf("user %s not found", u.ID)
	}
	if prev.Email != u.Email {
		if _, taken := m.emailIndex[u.Email]; taken {
			return ErrEmailTaken
		}
		delete(m.emailIndex, prev.Email)
		m.emailIndex[u.Email] = u.ID
	}
	m.users[u.ID] = u
	return nil
}

// AddFriendEdge unions friendID into the user's friend set atomically on
// that single user document.
func (m *MemoryStore) AddFriendEdge(userID, friendID oid.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %s not found", userID)
	}
	if u.AddFriend(friendID) {
		u.UpdatedAt = time.Now().UTC()
		m.users[userID] = u
	}
	return nil
}

func (m *MemoryStore) InsertFriendRequest(r domain.FriendRequest) (domain.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = oid.New()
	m.requests[r.ID] = r
	m.requestOrder = append(m.requestOrder, r.ID)
	return r, nil
}

func (m *MemoryStore) GetFriendRequest(id oid.ID) (domain.FriendRequest, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	return r, ok, nil
}

func (m *MemoryStore) UpdateFriendRequest(r domain.FriendRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; !ok {
		return fmt.Errorf("friend request %s not found", r.ID)
	}
	m.requests[r.ID] = r
	return nil
}

func (m *MemoryStore) FindPendingRequest(a, b oid.ID) (domain.FriendRequest, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := pairKey(a, b)
	for _, id := range m.requestOrder {
		r := m.requests[id]
		if r.Status == domain.FriendRequestPending && pairKey(r.SenderID, r.ReceiverID) == key {
			return r, true, nil
		}
	}
	return domain.FriendRequest{}, false, nil
}

// InsertClassroom enforces invite-code uniqueness; callers treat
// ErrInviteCodeTaken as a signal to regenerate and retry.
func (m *MemoryStore) InsertClassroom(c domain.Classroom) (domain.Classroom, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.codeIndex[c.InviteCode]; taken {
		return domain.Classroom{}, ErrInviteCodeTaken
	}
	c.ID = oid.New()
	m.classrooms[c.ID] = c
	m.codeIndex[c.InviteCode] = c.ID
	return c, nil
}

func (m *MemoryStore) GetClassroom(id oid.ID) (domain.Classroom, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.classrooms[id]
	return c, ok, nil
}

func (m *MemoryStore) GetClassroomByCode(code string) (domain.Classroom, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.codeIndex[code]
	if !ok {
		return domain.Classroom{}, false, nil
	}
	c, ok := m.classrooms[id]
	return c, ok, nil
}

func (m *MemoryStore) UpdateClassroom(c domain.Classroom) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.classrooms[c.ID]
	if !ok {
		return fmt.Errorf("classroom %s not found", c.ID)
	}
	if prev.InviteCode != c.InviteCode {
		if _, taken := m.codeIndex[c.InviteCode]; taken {
			return ErrInviteCodeTaken
		}
		delete(m.codeIndex, prev.InviteCode)
		m.codeIndex[c.InviteCode] = c.ID
	}
	m.classrooms[c.ID] = c
	return nil
}

func (m *MemoryStore) DeleteClassroom(id oid.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classrooms[id]
	if !ok {
		return fmt.Errorf("classroom %s not found", id)
	}
	delete(m.codeIndex, c.InviteCode)
	delete(m.classrooms, id)
	return nil
}

func (m *MemoryStore) InsertRoom(r domain.Room) (domain.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = oid.New()
	m.rooms[r.ID] = r
	m.roomOrder = append(m.roomOrder, r.ID)
	return r, nil
}

func (m *MemoryStore) GetRoom(id oid.ID) (domain.Room, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok, nil
}

func (m *MemoryStore) ListRoomsByClassroom(classroomID oid.ID) ([]domain.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Room, 0)
	for _, id := range m.roomOrder {
		if r, ok := m.rooms[id]; ok && r.ClassroomID == classroomID {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *MemoryStore) InsertMessage(msg domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = oid.New()
	m.messages[msg.ID] = msg
	m.messageOrder = append(m.messageOrder, msg.ID)
	return msg, nil
}

func (m *MemoryStore) GetMessage(id oid.ID) (domain.Message, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	return msg, ok, nil
}

func (m *MemoryStore) UpdateMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[msg.ID]; !ok {
		return fmt.Errorf("message %s not found", msg.ID)
	}
	m.messages[msg.ID] = msg
	return nil
}

func (m *MemoryStore) ListMessagesByRoom(roomID oid.ID, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Message, 0)
	for _, id := range m.messageOrder {
		if msg, ok := m.messages[id]; ok && msg.RoomID == roomID {
			res = append(res, msg)
		}
	}
	if limit > 0 && len(res) > limit {
		res = res[len(res)-limit:]
	}
	return res, nil
}

// UpsertConversation resolves or creates the conversation for the
// unordered pair under the store lock, so concurrent first-contact sends
// converge on a single record.
func (m *MemoryStore) UpsertConversation(a, b oid.ID, now time.Time) (domain.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(a, b)
	if id, ok := m.pairIndex[key]; ok {
		return m.conversations[id], nil
	}
	conv := domain.Conversation{
		ID:           oid.New(),
		Participants: []oid.ID{a, b},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.conversations[conv.ID] = conv
	m.pairIndex[key] = conv.ID
	return conv, nil
}

func (m *MemoryStore) GetConversation(id oid.ID) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[id]
	return c, ok, nil
}

func (m *MemoryStore) ListConversationsByUser(userID oid.ID) ([]domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Conversation, 0)
	for _, c := range m.conversations {
		if c.HasParticipant(userID) {
			res = append(res, c)
		}
	}
	// Most recently active first, the order conversation lists render in.
	sort.Slice(res, func(i, j int) bool {
		return res[i].UpdatedAt.After(res[j].UpdatedAt)
	})
	return res, nil
}

// SetConversationLastMessage applies the cache update as a compare-and-set
// on the message timestamp. Stale messages leave the cache untouched.
func (m *MemoryStore) SetConversationLastMessage(conversationID oid.ID, msg domain.DirectMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation %s not found", conversationID)
	}
	if conv.ApplyLastMessage(msg) {
		m.conversations[conversationID] = conv
	}
	return nil
}

func (m *MemoryStore) InsertDirectMessage(msg domain.DirectMessage) (domain.DirectMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = oid.New()
	m.directMessages[msg.ID] = msg
	m.dmOrder = append(m.dmOrder, msg.ID)
	return msg, nil
}

func (m *MemoryStore) GetDirectMessage(id oid.ID) (domain.DirectMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.directMessages[id]
	return msg, ok, nil
}

func (m *MemoryStore) UpdateDirectMessage(msg domain.DirectMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.directMessages[msg.ID]; !ok {
		return fmt.Errorf("direct message %s not found", msg.ID)
	}
	m.directMessages[msg.ID] = msg
	return nil
}

func (m *MemoryStore) ListDirectMessages(conversationID oid.ID, limit int) ([]domain.DirectMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.DirectMessage, 0)
	for _, id := range m.dmOrder {
		if msg, ok := m.directMessages[id]; ok && msg.ConversationID == conversationID {
			res = append(res, msg)
		}
	}
	if limit > 0 && len(res) > limit {
		res = res[len(res)-limit:]
	}
	return res, nil
}

func (m *MemoryStore) InsertYouTubeSession(s domain.YouTubeSession) (domain.YouTubeSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = oid.New()
	m.sessions[s.ID] = s
	m.sessionOrder = append(m.sessionOrder, s.ID)
	return s, nil
}

func (m *MemoryStore) GetYouTubeSession(id oid.ID) (domain.YouTubeSession, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok, nil
}

func (m *MemoryStore) UpdateYouTubeSession(s domain.YouTubeSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return fmt.Errorf("session %s not found", s.ID)
	}
	m.sessions[s.ID] = s
	return nil
}

// AppendSessionChat appends to the session's chat log atomically on the
// session document; prior entries are never rewritten.
func (m *MemoryStore) AppendSessionChat(sessionID oid.ID, entry domain.YouTubeChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	s.ChatHistory = append(s.ChatHistory, entry)
	s.UpdatedAt = entry.Timestamp
	m.sessions[sessionID] = s
	return nil
}

func (m *MemoryStore) ListYouTubeSessionsByUser(userID oid.ID) ([]domain.YouTubeSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.YouTubeSession, 0)
	for _, id := range m.sessionOrder {
		if s, ok := m.sessions[id]; ok && s.UserID == userID {
			res = append(res, s)
		}
	}
	return res, nil
}
