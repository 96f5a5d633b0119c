package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/yt-front/internal/audit"
	"github.com/dgellow/yt-front/internal/auth"
	"github.com/dgellow/yt-front/internal/config"
	"github.com/dgellow/yt-front/internal/crypto"
	"github.com/dgellow/yt-front/internal/idp"
	"github.com/dgellow/yt-front/internal/log"
	"github.com/dgellow/yt-front/internal/server"
	"github.com/dgellow/yt-front/internal/session"
	"github.com/dgellow/yt-front/internal/storage"
	"github.com/dgellow/yt-front/internal/youtube"
)

const shutdownTimeout = 30 * time.Second

// YTFront is the complete proxy application
type YTFront struct {
	config     config.Config
	handler    http.Handler
	httpServer *server.HTTPServer
	storage    storage.Storage
	sessions   session.Binding
}

// New builds the application and all of its dependencies
func New(ctx context.Context, cfg config.Config) (*YTFront, error) {
	log.LogInfoWithFields("ytfront", "Building YouTube proxy application", map[string]any{
		"baseURL":  cfg.Proxy.BaseURL,
		"storage":  cfg.Storage.Kind,
		"sessions": cfg.Sessions.Kind,
	})

	var encryptor crypto.Encryptor
	if cfg.NeedsEncryption() {
		var err error
		encryptor, err = crypto.NewDerivedEncryptor([]byte(cfg.Auth.EncryptionKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
	}

	store, err := setupStorage(ctx, cfg, encryptor)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	sessions, err := setupSessions(ctx, cfg, encryptor)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to setup sessions: %w", err)
	}

	endpoints, err := config.EndpointsFromEnv()
	if err != nil {
		_ = sessions.Close()
		_ = store.Close()
		return nil, err
	}

	manager, err := setupAuthentication(ctx, cfg, endpoints, store)
	if err != nil {
		_ = sessions.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to setup authentication: %w", err)
	}

	var ytOpts []youtube.Option
	if endpoints.YouTubeURL != "" {
		log.LogWarnWithFields("ytfront", "Using YouTube API endpoint override", map[string]any{
			"url": endpoints.YouTubeURL,
		})
		ytOpts = append(ytOpts, youtube.WithEndpoint(endpoints.YouTubeURL))
	}

	recorder := audit.NewRecorder(audit.MultiSink{audit.LogSink{}, store}, audit.DefaultTimeout)

	handler := server.NewRouter(server.Routes{
		Auth:           server.NewAuthHandlers(manager, sessions, recorder, cfg.Proxy.ClientURL),
		API:            server.NewAPIHandlers(youtube.NewClient(ytOpts...), recorder, store),
		Gate:           server.NewGate(manager, sessions, cfg.Auth.RefreshSkew),
		Sessions:       sessions,
		SessionTTL:     cfg.Sessions.TTL,
		AllowedOrigins: cfg.Proxy.AllowedOrigins,
	})

	return &YTFront{
		config:     cfg,
		handler:    handler,
		httpServer: server.NewHTTPServer(handler, cfg.Proxy.Addr),
		storage:    store,
		sessions:   sessions,
	}, nil
}

// Handler returns the fully wired HTTP handler
func (y *YTFront) Handler() http.Handler {
	return y.handler
}

// Run serves until SIGINT, SIGTERM or a server error, then shuts down
// gracefully
func (y *YTFront) Run() error {
	log.LogInfoWithFields("ytfront", "Starting YouTube proxy application", map[string]any{
		"addr": y.config.Proxy.Addr,
	})

	errChan := make(chan error, 1)
	go func() {
		if err := y.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var shutdownReason string
	var runErr error
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("ytfront", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		runErr = err
		log.LogErrorWithFields("ytfront", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("ytfront", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": shutdownTimeout.String(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := y.Shutdown(ctx); err != nil {
		return err
	}

	log.LogInfoWithFields("ytfront", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return runErr
}

// Shutdown stops the HTTP server, then releases the session and credential
// stores
func (y *YTFront) Shutdown(ctx context.Context) error {
	if err := y.httpServer.Stop(ctx); err != nil {
		log.LogErrorWithFields("ytfront", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}
	if err := y.sessions.Close(); err != nil {
		log.LogWarnWithFields("ytfront", "Failed to close session store", map[string]any{
			"error": err.Error(),
		})
	}
	if err := y.storage.Close(); err != nil {
		log.LogWarnWithFields("ytfront", "Failed to close storage", map[string]any{
			"error": err.Error(),
		})
	}
	return nil
}

// setupStorage creates the credential and audit store
func setupStorage(ctx context.Context, cfg config.Config, encryptor crypto.Encryptor) (storage.Storage, error) {
	if cfg.Storage.Kind == config.StorageKindFirestore {
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":     cfg.Storage.GCPProject,
			"database":    cfg.Storage.FirestoreDatabase,
			"credentials": cfg.Storage.CredentialsCollection,
			"events":      cfg.Storage.EventsCollection,
		})
		firestoreStorage, err := storage.NewFirestoreStorage(
			ctx,
			cfg.Storage.GCPProject,
			cfg.Storage.FirestoreDatabase,
			cfg.Storage.CredentialsCollection,
			cfg.Storage.EventsCollection,
			encryptor,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Firestore storage: %w", err)
		}
		return firestoreStorage, nil
	}

	log.LogInfoWithFields("storage", "Using in-memory storage", map[string]any{})
	return storage.NewMemoryStorage(), nil
}

// setupSessions creates the session binding. Redis settings come from the
// environment.
func setupSessions(ctx context.Context, cfg config.Config, encryptor crypto.Encryptor) (session.Binding, error) {
	opts := []session.Option{session.WithTTL(cfg.Sessions.TTL)}

	if cfg.Sessions.Kind == config.SessionsKindRedis {
		redisCfg, err := session.RedisConfigFromEnv()
		if err != nil {
			return nil, fmt.Errorf("reading redis configuration: %w", err)
		}
		log.LogInfoWithFields("session", "Using Redis sessions", map[string]any{
			"addr":   redisCfg.Addr,
			"db":     redisCfg.DB,
			"prefix": redisCfg.KeyPrefix,
		})
		binding, err := session.NewRedisBinding(ctx, redisCfg, encryptor, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return binding, nil
	}

	log.LogInfoWithFields("session", "Using in-memory sessions", map[string]any{
		"ttl": cfg.Sessions.TTL.String(),
	})
	return session.NewMemoryBinding(opts...), nil
}

// setupAuthentication builds the Google provider and the token lifecycle
// manager on top of store
func setupAuthentication(ctx context.Context, cfg config.Config, endpoints config.Endpoints, store storage.Storage) (*auth.Manager, error) {
	stateKey, err := crypto.DeriveKey([]byte(cfg.Auth.SessionSecret), crypto.PurposeOAuthState)
	if err != nil {
		return nil, fmt.Errorf("failed to derive state key: %w", err)
	}

	scopes := cfg.Auth.Scopes
	if len(scopes) == 0 {
		scopes = idp.DefaultScopes
	}

	provider := idp.NewGoogleProvider(ctx, idp.GoogleConfig{
		ClientID:     cfg.Auth.GoogleClientID,
		ClientSecret: string(cfg.Auth.GoogleClientSecret),
		RedirectURI:  cfg.Auth.GoogleRedirectURI,
		Scopes:       scopes,
		AuthURL:      endpoints.GoogleAuthURL,
		TokenURL:     endpoints.GoogleTokenURL,
		UserInfoURL:  endpoints.GoogleUserInfoURL,
		JWKSURL:      endpoints.GoogleJWKSURL,
	})

	log.LogDebugWithFields("auth", "OAuth components initialized", map[string]any{
		"redirectUri": cfg.Auth.GoogleRedirectURI,
		"scopes":      scopes,
		"refreshSkew": cfg.Auth.RefreshSkew.String(),
	})

	return auth.NewManager(provider, store,
		auth.WithScopes(scopes),
		auth.WithTimeout(cfg.Auth.ProviderTimeout),
		auth.WithStateKey(stateKey),
	), nil
}
