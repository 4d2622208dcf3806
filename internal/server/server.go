// ABOUTME: Server wiring and lifecycle for the spacesync daemon
// ABOUTME: Assembles store, registry clients, reconcilers, scheduler, and the HTTP server

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/2389/spacesync/internal/auth"
	"github.com/2389/spacesync/internal/circle"
	"github.com/2389/spacesync/internal/config"
	"github.com/2389/spacesync/internal/reconcile"
	"github.com/2389/spacesync/internal/scheduler"
	"github.com/2389/spacesync/internal/store"
	"github.com/2389/spacesync/internal/teachable"
	"github.com/2389/spacesync/internal/webhook"
)

// Server owns the daemon's components and lifecycle.
type Server struct {
	config     *config.Config
	store      *store.SQLiteStore
	reconciler *reconcile.Reconciler
	scheduler  *scheduler.Scheduler
	httpServer *http.Server
	logger     *slog.Logger
}

// New assembles a Server from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	courses := teachable.NewHTTPClient(cfg.Teachable.BaseURL, cfg.Teachable.APIKey, cfg.Sync.HTTPTimeout, logger)
	spaces := circle.NewHTTPClient(cfg.Circle.BaseURL, cfg.Circle.APITokenV1, cfg.Circle.APITokenV2, cfg.Sync.HTTPTimeout, logger)

	reconciler := reconcile.New(st, courses, spaces,
		reconcile.Credentials{
			TeachableAPIKey: cfg.Teachable.APIKey,
			CircleTokenV1:   cfg.Circle.APITokenV1,
			CircleTokenV2:   cfg.Circle.APITokenV2,
		},
		reconcile.SpaceConfig{
			CommunityID:          cfg.Circle.CommunityID,
			SpaceGroupID:         cfg.Circle.SpaceGroupID,
			Private:              cfg.Circle.Space.Private,
			HiddenFromNonMembers: cfg.Circle.Space.HiddenFromNonMembers,
			Hidden:               cfg.Circle.Space.Hidden,
		},
		logger,
	)

	cadence, err := scheduler.ParseCadence(cfg.Sync.DeleteInterval)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("parsing sync cadence: %w", err)
	}

	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		logger.Info("admin API auth enabled")
	} else {
		logger.Warn("admin API auth disabled - no jwt_secret configured")
	}

	handler := webhook.New(reconciler, st, verifier, cfg.Auth.WebhookSecret, logger)

	return &Server{
		config:     cfg,
		store:      st,
		reconciler: reconciler,
		scheduler:  scheduler.New(reconciler, cadence, logger),
		httpServer: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           handler.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With("component", "server"),
	}, nil
}

// Run serves until the context is cancelled, then shuts down gracefully.
// Returns nil on graceful shutdown, or an error if the HTTP server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.config.Server.HTTPAddr, err)
	}

	schedCtx, stopScheduler := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.scheduler.Run(schedCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	serverErr := s.waitForShutdownSignal(ctx, errCh)

	stopScheduler()
	wg.Wait()
	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// waitForShutdownSignal waits for context cancellation or a server error.
func (s *Server) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		s.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is already canceled.
func (s *Server) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var firstErr error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("shutting down HTTP server: %w", err)
	}
	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}

	s.logger.Info("shutdown complete")
	return firstErr
}
