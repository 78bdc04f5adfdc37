// Package app implements per-user video study sessions: transcript and
// summary storage plus the append-only follow-up chat log. Transcript
// fetching and summarization are external collaborators; this service
// owns the session record.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"studyhive/pkg/ai"
	"studyhive/pkg/domain"
	"studyhive/pkg/oid"
	"studyhive/pkg/store"
)

// Assistant produces summaries and follow-up answers for a session.
// *ai.StudyAssistant is the production implementation.
type Assistant interface {
	Summarize(ctx context.Context, title, transcript string) (ai.Summary, error)
	Answer(ctx context.Context, session domain.YouTubeSession, question string) (string, error)
}

// Config wires the youtube session service. Assistant is optional; when
// absent, Summarize and Ask are unavailable but storage still works.
type Config struct {
	Store     store.Store
	Assistant Assistant
	Logger    *slog.Logger
}

// App is the youtube session service core.
type App struct {
	store     store.Store
	assistant Assistant
	logger    *slog.Logger
}

// New constructs the session service.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{store: cfg.Store, assistant: cfg.Assistant, logger: logger}, nil
}

// StartInput carries the session creation fields. Title and duration are
// optional; the transcript collaborator fills them in later when absent.
type StartInput struct {
	VideoURL      string
	VideoTitle    string
	VideoDuration int
}

// StartSession creates a session for the owner with an empty chat log.
func (a *App) StartSession(ctx context.Context, owner oid.ID, in StartInput) (domain.YouTubeSession, error) {
	if _, ok, err := a.store.GetUser(owner); err != nil {
		return domain.YouTubeSession{}, fmt.Errorf("load owner: %w", err)
	} else if !ok {
		return domain.YouTubeSession{}, fmt.Errorf("%w: unknown owner", domain.ErrValidation)
	}
	now := time.Now().UTC()
	session := domain.YouTubeSession{
		UserID:        owner,
		VideoURL:      in.VideoURL,
		VideoTitle:    in.VideoTitle,
		VideoDuration: in.VideoDuration,
		ChatHistory:   []domain.YouTubeChatMessage{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := session.Validate(); err != nil {
		return domain.YouTubeSession{}, err
	}
	session, err := a.store.InsertYouTubeSession(session)
	if err != nil {
		return domain.YouTubeSession{}, fmt.Errorf("save session: %w", err)
	}
	a.logger.Info("session started", "session", session.ID, "owner", owner)
	return session, nil
}

// SetTranscript records the fetched transcript and any video metadata the
// fetch discovered. Owner only.
func (a *App) SetTranscript(ctx context.Context, actor, sessionID oid.ID, transcript, title string, duration int) (domain.YouTubeSession, error) {
	session, err := a.requireOwner(actor, sessionID)
	if err != nil {
		return domain.YouTubeSession{}, err
	}
	session.Transcript = transcript
	if title != "" {
		session.VideoTitle = title
	}
	if duration > 0 {
		session.VideoDuration = duration
	}
	session.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateYouTubeSession(session); err != nil {
		return domain.YouTubeSession{}, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// SetSummaries records the computed short and detailed summaries. Owner
// only. Either field may be empty to leave the stored value in place.
func (a *App) SetSummaries(ctx context.Context, actor, sessionID oid.ID, short, detailed string) (domain.YouTubeSession, error) {
	session, err := a.requireOwner(actor, sessionID)
	if err != nil {
		return domain.YouTubeSession{}, err
	}
	if short != "" {
		session.ShortSummary = short
	}
	if detailed != "" {
		session.DetailedSummary = detailed
	}
	session.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateYouTubeSession(session); err != nil {
		return domain.YouTubeSession{}, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

// AppendChatMessage appends one role-tagged entry to the session's chat
// log. Owner only; the log is append-only.
func (a *App) AppendChatMessage(ctx context.Context, actor, sessionID oid.ID, role domain.ChatRole, content string) (domain.YouTubeChatMessage, error) {
	session, err := a.requireOwner(actor, sessionID)
	if err != nil {
		return domain.YouTubeChatMessage{}, err
	}
	now := time.Now().UTC()
	entry, err := session.AppendChat(role, content, now)
	if err != nil {
		return domain.YouTubeChatMessage{}, err
	}
	if err := a.store.AppendSessionChat(session.ID, entry); err != nil {
		return domain.YouTubeChatMessage{}, fmt.Errorf("append chat: %w", err)
	}
	return entry, nil
}

// Summarize computes and stores both summaries from the session's
// transcript. Owner only; the transcript must already be set.
func (a *App) Summarize(ctx context.Context, actor, sessionID oid.ID) (domain.YouTubeSession, error) {
	if a.assistant == nil {
		return domain.YouTubeSession{}, errors.New("assistant not configured")
	}
	session, err := a.requireOwner(actor, sessionID)
	if err != nil {
		return domain.YouTubeSession{}, err
	}
	if session.Transcript == "" {
		return domain.YouTubeSession{}, fmt.Errorf("%w: transcript not set", domain.ErrValidation)
	}
	summary, err := a.assistant.Summarize(ctx, session.VideoTitle, session.Transcript)
	if err != nil {
		return domain.YouTubeSession{}, fmt.Errorf("summarize: %w", err)
	}
	session.ShortSummary = summary.Short
	session.DetailedSummary = summary.Detailed
	session.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateYouTubeSession(session); err != nil {
		return domain.YouTubeSession{}, fmt.Errorf("save session: %w", err)
	}
	a.logger.Info("session summarized", "session", session.ID)
	return session, nil
}

// Ask records the owner's question, generates an answer from the
// transcript and the prior chat log, and records the answer. Both
// entries land in the append-only log; the assistant entry is returned.
func (a *App) Ask(ctx context.Context, actor, sessionID oid.ID, question string) (domain.YouTubeChatMessage, error) {
	if a.assistant == nil {
		return domain.YouTubeChatMessage{}, errors.New("assistant not configured")
	}
	session, err := a.requireOwner(actor, sessionID)
	if err != nil {
		return domain.YouTubeChatMessage{}, err
	}
	now := time.Now().UTC()
	asked, err := session.AppendChat(domain.ChatRoleUser, question, now)
	if err != nil {
		return domain.YouTubeChatMessage{}, err
	}
	if err := a.store.AppendSessionChat(session.ID, asked); err != nil {
		return domain.YouTubeChatMessage{}, fmt.Errorf("append question: %w", err)
	}
	answer, err := a.assistant.Answer(ctx, session, question)
	if err != nil {
		// The question stays in the log; the owner can retry.
		return domain.YouTubeChatMessage{}, fmt.Errorf("answer question: %w", err)
	}
	replied, err := session.AppendChat(domain.ChatRoleAssistant, answer, time.Now().UTC())
	if err != nil {
		return domain.YouTubeChatMessage{}, err
	}
	if err := a.store.AppendSessionChat(session.ID, replied); err != nil {
		return domain.YouTubeChatMessage{}, fmt.Errorf("append answer: %w", err)
	}
	return replied, nil
}

// GetSession returns a session to its owner.
func (a *App) GetSession(ctx context.Context, actor, sessionID oid.ID) (domain.YouTubeSession, error) {
	return a.requireOwner(actor, sessionID)
}

// ListSessions returns the actor's sessions.
func (a *App) ListSessions(ctx context.Context, actor oid.ID) ([]domain.YouTubeSession, error) {
	sessions, err := a.store.ListYouTubeSessionsByUser(actor)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

func (a *App) requireOwner(actor, sessionID oid.ID) (domain.YouTubeSession, error) {
	session, ok, err := a.store.GetYouTubeSession(sessionID)
	if err != nil {
		return domain.YouTubeSession{}, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return domain.YouTubeSession{}, ErrSessionNotFound
	}
	if session.UserID != actor {
		return domain.YouTubeSession{}, fmt.Errorf("%w: not the session owner", domain.ErrForbidden)
	}
	return session, nil
}
