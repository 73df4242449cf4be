package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"approvalflow/backend/internal/api"
	"approvalflow/backend/internal/config"
	"approvalflow/backend/internal/domain"
	"approvalflow/backend/internal/engine"
	"approvalflow/backend/internal/logging"
	"approvalflow/backend/internal/notify"
	"approvalflow/backend/internal/repository"
	devtls "approvalflow/backend/internal/tls"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New("info", false)
		fallback.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create database pool")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("database is not reachable")
	}
	logger.Info().Str("host", cfg.DB.Host).Str("database", cfg.DB.Name).Msg("database connected")

	var sink notify.Sink = notify.NoopSink{}
	if cfg.Notifications.Enabled {
		sink = notify.NewLogSink(logger)
	}

	eng := engine.New(engine.Deps{
		Definitions: repository.NewPostgresDefinitionRepository(pool),
		Instances:   repository.NewPostgresInstanceRepository(pool),
		Steps:       repository.NewPostgresStepRepository(pool),
		Comments:    repository.NewPostgresCommentRepository(pool),
		Numbers:     repository.NewPostgresDisplayNumberAllocator(pool),
		Tx:          repository.NewPgxTxManager(pool),
		Sink:        sink,
		Clock:       domain.SystemClock{},
		Logger:      logger,
	})
	defs := engine.NewDefinitionService(repository.NewPostgresDefinitionRepository(pool), domain.SystemClock{})

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	api.NewServer(eng, defs).Register(e)

	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	go func() {
		var err error
		if cfg.TLS.Enable {
			certFile, keyFile := cfg.TLS.CertFile, cfg.TLS.KeyFile
			if certFile == "" || keyFile == "" {
				certFile, keyFile = "server.crt", "server.key"
				hosts := cfg.TLS.Hostnames
				if len(hosts) == 0 {
					hosts = []string{"localhost", "127.0.0.1"}
				}
				if err := devtls.GenerateSelfSignedCert(certFile, keyFile, hosts); err != nil {
					logger.Fatal().Err(err).Msg("failed to generate development certificate")
				}
				logger.Warn().Msg("serving with a generated self-signed certificate")
			}
			err = e.StartTLS(cfg.Server.Addr, certFile, keyFile)
		} else {
			err = e.Start(cfg.Server.Addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()
	logger.Info().Str("addr", cfg.Server.Addr).Msg("approval workflow service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
