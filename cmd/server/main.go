package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gogpu/gg"

	"github.com/inamate/vecanim/internal/config"
	"github.com/inamate/vecanim/internal/remote"
	"github.com/inamate/vecanim/internal/visual"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	gg.SetLogger(logger.With("component", "gg"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := visual.NewManager(visual.Config{
		Workers:        cfg.RasterWorkers,
		BridgeCapacity: cfg.BridgeCapacity,
		FrameCacheSize: cfg.FrameCacheSize,
		Loader:         visual.AssetLoader{Dir: cfg.AssetDir},
		Logger:         logger,
	})

	hub := remote.NewHub(manager, logger)
	go hub.Run(ctx)
	go runUITick(ctx, manager, hub, cfg.TickRate)

	r := newRouter(cfg, manager, hub, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
		cancel()
	}()

	slog.Info("server starting", "addr", addr, "workers", cfg.RasterWorkers)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-ctx.Done()
	manager.Close()
}

// runUITick is the server's UI goroutine: it delivers worker signals,
// uploads fast-track frames and forwards the signals to websocket viewers.
// It runs at rate ticks per second and early when a signal arrives.
func runUITick(ctx context.Context, manager *visual.Manager, hub *remote.Hub, rate int) {
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-manager.Bridge().Notify():
		}
		sigs := manager.ProcessEvents()
		manager.FlushTextures()
		hub.Publish(sigs)
	}
}
