package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"studyhive/pkg/ai"
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
	user, err := s.InsertUser(domain.User{Email: email, Name: "Test User", CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return user
}

func TestStartSession(t *testing.T) {
	a, s := newTestApp(t)
	ctx := context.Background()
	owner := seedUser(t, s, "owner@example.edu")

	session, err := a.StartSession(ctx, owner.ID, StartInput{
		VideoURL:   "https://youtube.com/watch?v=dQw4w9WgXcQ",
		VideoTitle: "Graph Algorithms Lecture",
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.UserID != owner.ID || len(session.ChatHistory) != 0 {
		t.Fatalf("unexpected session: %+v", session)
	}

	if _, err := a.StartSession(ctx, owner.ID, StartInput{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing url, got %v", err)
	}
	if _, err := a.StartSession(ctx, oid.New(), StartInput{VideoURL: "https://youtube.com/watch?v=x"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown owner, got %v", err)
	}
}

func TestTranscriptAndSummaries(t *testing.T) {
	a, s := newTestApp(t)
	ctx := context.Background()
	owner := seedUser(t, s, "owner@example.edu")
	other := seedUser(t, s, "other@example.edu")

	session, err := a.StartSession(ctx, owner.ID, StartInput{VideoURL: "https://youtube.com/watch?v=x"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := a.SetTranscript(ctx, other.ID, session.ID, "stolen", "", 0); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}

	updated, err := a.SetTranscript(ctx, owner.ID, session.ID, "full transcript text", "Discovered Title", 900)
	if err != nil {
		t.Fatalf("set transcript: %v", err)
	}
	if updated.Transcript != "full transcript text" || updated.VideoTitle != "Discovered Title" || updated.VideoDuration != 900 {
		t.Fatalf("transcript fields not applied: %+v", updated)
	}

	summarized, err := a.SetSummaries(ctx, owner.ID, session.ID, "short version", "long version")
	if err != nil {
		t.Fatalf("set summaries: %v", err)
	}
	if summarized.ShortSummary != "short version" || summarized.DetailedSummary != "long version" {
		t.Fatalf("summaries not applied: %+v", summarized)
	}

	// Empty fields leave the stored values untouched.
	kept, err := a.SetSummaries(ctx, owner.ID, session.ID, "", "revised long version")
	if err != nil {
		t.Fatalf("revise summaries: %v", err)
	}
	if kept.ShortSummary != "short version" || kept.DetailedSummary != "revised long version" {
		t.Fatalf("partial summary update wrong: %+v", kept)
	}
}

func TestAppendChatMessage(t *testing.T) {
	a, s := newTestApp(t)
	ctx := context.Background()
	owner := seedUser(t, s, "owner@example.edu")
	other := seedUser(t, s, "other@example.edu")

	session, err := a.StartSession(ctx, owner.ID, StartInput{VideoURL: "https://youtube.com/watch?v=x"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := a.AppendChatMessage(ctx, other.ID, session.ID, domain.ChatRoleUser, "let me in"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}
	if _, err := a.AppendChatMessage(ctx, owner.ID, session.ID, domain.ChatRole("moderator"), "x"); !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}

	if _, err := a.AppendChatMessage(ctx, owner.ID, session.ID, domain.ChatRoleUser, "what is the main theorem?"); err != nil {
		t.Fatalf("append user entry: %v", err)
	}
	if _, err := a.AppendChatMessage(ctx, owner.ID, session.ID, domain.ChatRoleAssistant, "the max-flow min-cut theorem"); err != nil {
		t.Fatalf("append assistant entry: %v", err)
	}

	got, err := a.GetSession(ctx, owner.ID, session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.ChatHistory) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got.ChatHistory))
	}
	// Append order is preserved.
	if got.ChatHistory[0].Role != domain.ChatRoleUser || got.ChatHistory[1].Role != domain.ChatRoleAssistant {
		t.Fatalf("entries out of order: %+v", got.ChatHistory)
	}
}

// fakeAssistant answers every question with a fixed string.
type fakeAssistant struct {
	calls int
}

func (f *fakeAssistant) Summarize(_ context.Context, _, transcript string) (ai.Summary, error) {
	f.calls++
	if transcript == "" {
		return ai.Summary{}, errors.New("no transcript")
	}
	return ai.Summary{Short: "short", Detailed: "detailed"}, nil
}

func (f *fakeAssistant) Answer(_ context.Context, _ domain.YouTubeSession, question string) (string, error) {
	f.calls++
	return "answer to: " + question, nil
}

func TestSummarizeStoresBothSummaries(t *testing.T) {
	s := store.NewMemoryStore()
	assistant := &fakeAssistant{}
	a, err := New(Config{Store: s, Assistant: assistant})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	ctx := context.Background()
	owner := seedUser(t, s, "owner@example.edu")

	session, err := a.StartSession(ctx, owner.ID, StartInput{VideoURL: "https://youtube.com/watch?v=x"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// No transcript yet.
	if _, err := a.Summarize(ctx, owner.ID, session.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation without transcript, got %v", err)
	}

	if _, err := a.SetTranscript(ctx, owner.ID, session.ID, "lecture text", "", 0); err != nil {
		t.Fatalf("set transcript: %v", err)
	}
	summarized, err := a.Summarize(ctx, owner.ID, session.ID)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summarized.ShortSummary != "short" || summarized.DetailedSummary != "detailed" {
		t.Fatalf("summaries not stored: %+v", summarized)
	}
}

func TestAskAppendsQuestionAndAnswer(t *testing.T) {
	s := store.NewMemoryStore()
	a, err := New(Config{Store: s, Assistant: &fakeAssistant{}})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	ctx := context.Background()
	owner := seedUser(t, s, "owner@example.edu")

	session, err := a.StartSession(ctx, owner.ID, StartInput{VideoURL: "https://youtube.com/watch?v=x"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	reply, err := a.Ask(ctx, owner.ID, session.ID, "what is a cut?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if reply.Role != domain.ChatRoleAssistant || reply.Content != "answer to: what is a cut?" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	got, err := a.GetSession(ctx, owner.ID, session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.ChatHistory) != 2 {
		t.Fatalf("expected question and answer in log, got %d entries", len(got.ChatHistory))
	}
	if got.ChatHistory[0].Role != domain.ChatRoleUser || got.ChatHistory[1].Role != domain.ChatRoleAssistant {
		t.Fatalf("log order wrong: %+v", got.ChatHistory)
	}
}

func TestAskWithoutAssistant(t *testing.T) {
	a, s := newTestApp(t)
	ctx := context.Background()
	owner := seedUser(t, s, "owner@example.edu")
	session, err := a.StartSession(ctx, owner.ID, StartInput{VideoURL: "https://youtube.com/watch?v=x"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := a.Ask(ctx, owner.ID, session.ID, "anyone there?"); err == nil {
		t.Fatalf("expected error without assistant")
	}
}

func TestListSessions(t *testing.T) {
	a, s := newTestApp(t)
	ctx := context.Background()
	owner := seedUser(t, s, "owner@example.edu")
	other := seedUser(t, s, "other@example.edu")

	for _, url := range []string{"https://youtube.com/watch?v=a", "https://youtube.com/watch?v=b"} {
		if _, err := a.StartSession(ctx, owner.ID, StartInput{VideoURL: url}); err != nil {
			t.Fatalf("start %s: %v", url, err)
		}
	}
	if _, err := a.StartSession(ctx, other.ID, StartInput{VideoURL: "https://youtube.com/watch?v=c"}); err != nil {
		t.Fatalf("start other: %v", err)
	}

	sessions, err := a.ListSessions(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions for owner, got %d", len(sessions))
	}
	for _, session := range sessions {
		if session.UserID != owner.ID {
			t.Fatalf("foreign session listed: %+v", session)
		}
	}
}
