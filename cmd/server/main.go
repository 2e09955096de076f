package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/manor-backend/internal/config"
	"github.com/DoyleJ11/manor-backend/internal/httpapi"
	"github.com/DoyleJ11/manor-backend/internal/hub"
	"github.com/DoyleJ11/manor-backend/internal/logger"
	"github.com/DoyleJ11/manor-backend/internal/session"
	"github.com/DoyleJ11/manor-backend/internal/store"
)

func main() {
	cfg := config.GetConfig()
	logger.InitLogger(cfg.LogLevel)
	defer func() { _ = zap.L().Sync() }()

	if err := run(cfg); err != nil {
		zap.L().Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.AppConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionOpts := session.Options{TurnTimeout: cfg.TurnTimeout}
	routeOpts := httpapi.RouteOptions{
		APIPrefix:   cfg.APIPrefix,
		CORSOrigins: cfg.CORSOrigins,
	}
	if cfg.DatabaseURL != "" {
		archive, err := store.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer archive.Close()
		sessionOpts.Archive = archive
		routeOpts.Matches = archive
		zap.L().Info("match archive enabled")
	}

	h := hub.NewHub(ctx, hub.Options{
		Rules:         cfg.Rules(),
		Session:       sessionOpts,
		Seed:          cfg.Seed,
		IdleTTL:       cfg.SessionIdleTTL,
		SweepInterval: cfg.SweepInterval,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpapi.SetupRoutes(h, routeOpts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("listening", zap.String("addr", srv.Addr), zap.String("api_prefix", cfg.APIPrefix))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		h.Inbox() <- hub.ShutdownHub{}
		<-h.Done()
		return err
	})

	return g.Wait()
}
