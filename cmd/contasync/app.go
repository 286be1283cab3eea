package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/contasync/contasync/internal/db"
	"github.com/contasync/contasync/internal/handlers"
	"github.com/contasync/contasync/internal/logger"
	"github.com/contasync/contasync/internal/repository/files"
	"github.com/contasync/contasync/internal/repository/postgres"
	"github.com/contasync/contasync/internal/service/extract"
	"github.com/contasync/contasync/internal/service/oauth"
	"github.com/contasync/contasync/internal/service/token"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	tokenRepo := &postgres.TokenRepo{DB: pool}
	store, err := files.NewStore(c.DataDir)
	if err != nil {
		return nil, fmt.Errorf("error while preparing data directory. Err: %w", err)
	}

	// Initialize services
	oauthClient, err := oauth.NewClient(oauth.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		AuthURL:      c.AuthURL,
		TokenURL:     c.TokenURL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating oauth client. Err: %w", err)
	}

	tokenService, err := token.NewService(token.Config{SecretKey: c.SecretKey}, oauthClient, tokenRepo, logger)
	if err != nil {
		return nil, fmt.Errorf("error while creating token service. Err: %w", err)
	}

	salesClient := extract.NewClient(c.AccountingAPIURL, logger)
	extractService := extract.NewService(tokenService, store, salesClient, logger)

	mux := handlers.NewRouter(
		tokenService,
		extractService,
		store,
		handlers.APIAuth{Username: c.APIUsername, PasswordHash: c.APIPasswordHash},
		logger,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
