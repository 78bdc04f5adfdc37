// Package platform is the composition root: it builds the shared
// collaborators from configuration and assembles the four service cores
// around one store.
package platform

import (
	"fmt"
	"log/slog"
	"time"

	"studyhive/internal/config"
	"studyhive/internal/ratelimit"
	"studyhive/internal/util"
	"studyhive/pkg/ai"
	"studyhive/pkg/realtime"
	"studyhive/pkg/storage"
	"studyhive/pkg/store"
	"studyhive/pkg/token"

	chatapp "studyhive/services/chat/app"
	classroomapp "studyhive/services/classroom/app"
	socialapp "studyhive/services/social/app"
	youtubeapp "studyhive/services/youtube/app"
)

// Issuance throttle for verification codes, per address.
const (
	verifyResendLimit  = 3
	verifyResendWindow = 10 * time.Minute
)

// Platform bundles the assembled services and the shared collaborators
// an embedding program needs to reach directly.
type Platform struct {
	Logger *slog.Logger
	Store  store.Store

	Social    *socialapp.App
	Classroom *classroomapp.App
	Chat      *chatapp.App
	YouTube   *youtubeapp.App

	Signer       *token.Signer
	Verifier     *token.Verifier
	RefreshStore *token.RedisRefreshStore

	publisher *realtime.RedisPublisher
}

// New assembles the platform from configuration. The store is the
// in-memory reference implementation; a database-backed Store slots in
// through the same interface.
func New(cfg config.FileConfig) (*Platform, error) {
	logger := util.InitLogger(cfg.LogLevel, "studyhive")

	p := &Platform{
		Logger: logger,
		Store:  store.NewMemoryStore(),
	}

	publisher, err := realtime.NewRedisPublisher(realtime.RedisPublisherConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Stream:   cfg.EventStream,
		MaxLen:   cfg.EventStreamMaxLen,
	})
	if err != nil {
		return nil, fmt.Errorf("event publisher: %w", err)
	}
	p.publisher = publisher

	verifications, err := socialapp.NewVerificationStore(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, fmt.Errorf("verification store: %w", err)
	}
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(
		cfg.RedisAddr, cfg.RedisPassword, "", verifyResendLimit, verifyResendWindow)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	if cfg.JWTPrivateKeyPath != "" {
		signer, err := token.NewSignerFromPEM(cfg.JWTPrivateKeyPath, cfg.JWTKeyID, cfg.AccessTokenTTL())
		if err != nil {
			return nil, fmt.Errorf("token signer: %w", err)
		}
		p.Signer = signer
	}
	if cfg.JWTPublicKeyPath != "" {
		verifier, err := token.NewVerifierFromPEM(map[string]string{cfg.JWTKeyID: cfg.JWTPublicKeyPath})
		if err != nil {
			return nil, fmt.Errorf("token verifier: %w", err)
		}
		p.Verifier = verifier
	}
	p.RefreshStore = token.NewRedisRefreshStore(cfg.RedisAddr, cfg.RedisPassword)

	var attachments storage.AttachmentStore
	if cfg.MinioEndpoint != "" {
		minioStore, err := storage.NewMinioStore(
			cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, fmt.Errorf("attachment store: %w", err)
		}
		attachments = minioStore
	}

	var assistant youtubeapp.Assistant
	if generator := newGenerator(cfg); generator != nil {
		assistant = ai.NewStudyAssistant(generator)
	}

	social, err := socialapp.New(socialapp.Config{
		Store:         p.Store,
		Verifications: verifications,
		Limiter:       limiter,
		Publisher:     publisher,
		Logger:        logger.With("component", "social"),
	})
	if err != nil {
		return nil, fmt.Errorf("social service: %w", err)
	}
	p.Social = social

	classroom, err := classroomapp.New(classroomapp.Config{
		Store:     p.Store,
		Publisher: publisher,
		Logger:    logger.With("component", "classroom"),
	})
	if err != nil {
		return nil, fmt.Errorf("classroom service: %w", err)
	}
	p.Classroom = classroom

	chat, err := chatapp.New(chatapp.Config{
		Store:       p.Store,
		Attachments: attachments,
		Publisher:   publisher,
		Logger:      logger.With("component", "chat"),
	})
	if err != nil {
		return nil, fmt.Errorf("chat service: %w", err)
	}
	p.Chat = chat

	youtube, err := youtubeapp.New(youtubeapp.Config{
		Store:     p.Store,
		Assistant: assistant,
		Logger:    logger.With("component", "youtube"),
	})
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	p.YouTube = youtube

	return p, nil
}

// Close releases the shared collaborators.
func (p *Platform) Close() error {
	if p.publisher != nil {
		return p.publisher.Close()
	}
	return nil
}

func newGenerator(cfg config.FileConfig) ai.TextGenerator {
	switch cfg.AIProvider {
	case "ollama":
		return ai.NewOllamaGenerator(cfg.AIBaseURL, cfg.AIModel)
	case "openai":
		return ai.NewOpenAICompatGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)
	}
	return nil
}
