// Package main starts ocsd, a share server speaking the OCS sharing API.
// It wires configuration, logging, storage, services, handlers and
// optional TLS, then serves until interrupted.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/Azelphur/ownCloud-share-tools/internal/config"
	"github.com/Azelphur/ownCloud-share-tools/internal/db"
	"github.com/Azelphur/ownCloud-share-tools/internal/logger"
	"github.com/Azelphur/ownCloud-share-tools/internal/repository"
	"github.com/Azelphur/ownCloud-share-tools/internal/server/handler/http"
	"github.com/Azelphur/ownCloud-share-tools/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

// stores groups the repositories backing the services.
type stores struct {
	users   service.UserRepository
	shares  service.ShareRepository
	expired db.ExpiredShareDeleter
	close   func() error
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "ocsd: failed to load .env:", err)
		os.Exit(1)
	}
	options, err := config.ParseServer(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "ocsd:", err)
		os.Exit(2)
	}

	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.Logging.Level); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(options.DatabaseDSN, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot init storage", zap.Error(err))
	}
	defer func() { _ = st.close() }()

	authService := service.NewAuthService(st.users)
	for login, password := range options.Users {
		if err := authService.Register(ctx, login, password); err != nil {
			zapLogger.Fatal("failed to seed user", zap.String("login", login), zap.Error(err))
		}
	}
	shareService := service.NewShareService(st.shares, st.users, zapLogger)

	if options.Cleaner.Interval > 0 {
		db.StartExpiredShareCleaner(ctx, st.expired, options.Cleaner.Interval, zapLogger)
	}

	shareHandler := &http.ShareHandler{
		Shares:    shareService,
		PublicURL: options.PublicURL,
		Logger:    zapLogger,
	}
	router := http.NewRouter(shareHandler, authService, zapLogger, http.RouterOptions{
		Metrics: options.Metrics.Enabled,
	})

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if options.TLS.Enabled() {
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("starting server",
			zap.String("addr", options.Address),
			zap.Bool("tls", options.TLS.Enabled()),
		)
		if options.TLS.Enabled() {
			errCh <- server.ListenAndServeTLS(options.TLS.CertFile, options.TLS.KeyFile)
			return
		}
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}

// openStores connects to Postgres when dsn is set and falls back to memory.
func openStores(dsn string, log *zap.Logger) (*stores, error) {
	if dsn == "" {
		log.Warn("no database configured, shares are kept in memory")
		shares := repository.NewMemoryShareRepository()
		return &stores{
			users:   repository.NewMemoryUserRepository(),
			shares:  shares,
			expired: shares,
			close:   func() error { return nil },
		}, nil
	}

	postgresDB, err := db.InitPostgres(dsn)
	if err != nil {
		return nil, err
	}
	shares := repository.NewPostgresShareRepository(postgresDB)
	return &stores{
		users:   repository.NewPostgresUserRepository(postgresDB),
		shares:  shares,
		expired: shares,
		close:   postgresDB.Close,
	}, nil
}
