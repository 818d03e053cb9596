package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/argosaqua/argos/internal/api"
	"github.com/argosaqua/argos/internal/config"
	"github.com/argosaqua/argos/internal/storage"
)

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing storage", "error", err)
		}
	}()

	var draining atomic.Bool
	handler := api.NewHandler(api.Deps{
		Store:      store,
		APIKey:     cfg.Auth.APIKey,
		MachineID:  cfg.Machine.ID,
		RateWindow: cfg.Rate.Window,
		RateMax:    cfg.Rate.Max,
		Draining:   &draining,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	useTLS := cfg.Server.CertFile != ""
	if useTLS {
		// HTTP/2 over TLS, HTTP/1.1 fallback via ALPN.
		if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
			return fmt.Errorf("configuring http2: %w", err)
		}
	} else {
		// Cleartext HTTP/2 (h2c) so field machines behind a TLS-terminating
		// proxy still get multiplexing; plain HTTP/1.1 keeps working.
		srv.Handler = h2c.NewHandler(handler, &http2.Server{})
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("argos listening", "addr", addr, "tls", useTLS, "machine_id", cfg.Machine.ID)
		var err error
		if useTLS {
			err = srv.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutting down")

		// Flip readiness first so load balancers stop routing to us, then
		// drain in-flight requests.
		draining.Store(true)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
