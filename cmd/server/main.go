package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/blipchat/blip-backend/internal/api/messages"
	"github.com/blipchat/blip-backend/internal/chat"
	"github.com/blipchat/blip-backend/internal/config"
	"github.com/blipchat/blip-backend/internal/middleware"
	"github.com/blipchat/blip-backend/internal/storage"
	"github.com/blipchat/blip-backend/internal/storage/memory"
	"github.com/blipchat/blip-backend/internal/storage/postgres"
	"github.com/blipchat/blip-backend/internal/storage/valkey"
	"github.com/blipchat/blip-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("configuration failed")
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx := context.Background()

	var (
		store storage.MessageStore
		users storage.UserDirectory
	)
	switch cfg.StoreBackend {
	case "postgres":
		pg, err := postgres.NewMessageStore(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pg.Close()
		store = pg
		users = postgres.NewUserDirectory(pg)
		logger.Info().Msg("connected to PostgreSQL")
	case "valkey":
		vk, err := valkey.NewMessageStore(ctx, cfg.ValkeyURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("valkey connection failed")
		}
		defer vk.Close()
		store = vk
		// The auth subsystem owns user records; without its database the
		// roster directory runs in memory.
		users = memory.NewUserDirectory()
		logger.Info().Msg("connected to Valkey")
	default:
		store = memory.NewMessageStore()
		users = memory.NewUserDirectory()
		logger.Info().Msg("using in-memory store")
	}

	hub := ws.NewHub(logger)
	service := chat.NewService(store, users, hub, logger)
	auth := middleware.NewAuth(cfg.JWTSecret)
	handler := messages.NewHandler(service, hub, auth, logger)

	router := mux.NewRouter()
	router.Use(middleware.CORS(cfg.ClientURL))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics)

	messages.RegisterRoutes(router, handler, auth)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"Server is running"}`))
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("store", cfg.StoreBackend).
			Msg("starting blip server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}
	logger.Info().Msg("server stopped")
}
