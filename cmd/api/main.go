package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/icctweb/team-registration/internal/app"
	"github.com/icctweb/team-registration/internal/config"
	"github.com/icctweb/team-registration/internal/observability"
	"github.com/icctweb/team-registration/internal/platform/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slogLevel(cfg.LogLevel),
	}))

	mirrorLogger := logging.NewJSON(cfg.LogLevel)
	logging.SetDefault(mirrorLogger)
	defer func() { _ = mirrorLogger.Sync() }()

	shutdownUptrace, err := observability.InitUptrace(cfg, mirrorLogger)
	if err != nil {
		logger.Error("init uptrace", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownUptrace(ctx); err != nil {
			logger.Error("shutdown uptrace", "error", err)
		}
	}()

	stopPyroscope, err := observability.InitPyroscope(cfg, logger)
	if err != nil {
		logger.Error("init pyroscope", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := stopPyroscope(); err != nil {
			logger.Error("stop pyroscope", "error", err)
		}
	}()

	pprofSrv, err := observability.StartPprofServer(cfg, logger)
	if err != nil {
		logger.Error("start pprof server", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := observability.StopPprofServer(pprofSrv, logger, 5*time.Second); err != nil {
			logger.Error("stop pprof server", "error", err)
		}
	}()

	srv, err := app.NewHTTPServer(cfg, logger)
	if err != nil {
		logger.Error("build app", "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("http server starting", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("http server stopped")
}

func slogLevel(level logging.Level) slog.Level {
	switch {
	case level <= logging.LevelDebug:
		return slog.LevelDebug
	case level == logging.LevelInfo:
		return slog.LevelInfo
	case level == logging.LevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
