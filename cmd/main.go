package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wirechat/wirechat/internal/config"
	"github.com/wirechat/wirechat/internal/handler"
	"github.com/wirechat/wirechat/internal/hub"
	"github.com/wirechat/wirechat/internal/service"
	"github.com/wirechat/wirechat/internal/store"
	"github.com/wirechat/wirechat/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		boot := log.L()
		boot.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Init(cfg.Log)
	l := log.L()
	l.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting wirechat relay")

	// Open the message store; an unusable store medium is fatal at
	// startup rather than a surprise on the first send.
	st, err := store.NewFileStore(cfg.Store.Path)
	if err != nil {
		l.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("failed to open message store")
	}
	l.Info().Str("path", cfg.Store.Path).Int("history_len", st.Len()).Msg("message store opened")

	// Wire hub, relay service and WebSocket handler
	wsHub := hub.NewHub()
	relaySvc := service.NewRelayService(wsHub, st)
	wsHandler := handler.NewWSHandler(relaySvc, cfg.WebSocket)

	mux := http.NewServeMux()
	wsHandler.RegisterRoutes(mux)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		l.Info().Str("addr", server.Addr).Msg("relay listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info().Msg("shutting down relay")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error().Err(err).Msg("server forced to shutdown")
	}

	l.Info().Msg("relay stopped")
}
