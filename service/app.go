package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"postsapi/app/config"
	"postsapi/app/repositories"
	"postsapi/app/routes"

	"github.com/rs/zerolog"
)

// RunAppServer opens the configured store, serves the posts API until ctx
// is cancelled, then shuts the server down and closes the store.
func RunAppServer(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := repositories.Open(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close store")
		}
	}()

	ln, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr(), err)
	}

	srv := NewServer(cfg.Server, store, log)
	return serve(ctx, srv, ln, cfg.Server, log)
}

// NewServer builds the HTTP server for the posts API.
func NewServer(cfg config.ServerConfig, store repositories.PostStore, log zerolog.Logger) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      routes.SetupRoutes(store, log, cfg.BasePath),
		ReadTimeout:  config.Seconds(cfg.ReadTimeout),
		WriteTimeout: config.Seconds(cfg.WriteTimeout),
		IdleTimeout:  config.Seconds(cfg.IdleTimeout),
	}
}

func serve(ctx context.Context, srv *http.Server, ln net.Listener, cfg config.ServerConfig, log zerolog.Logger) error {
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Str("base_path", cfg.BasePath).Msg("serving posts API")
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
