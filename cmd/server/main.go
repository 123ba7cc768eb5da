package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/zhouzirui/chat-relay/internal/config"
	"github.com/zhouzirui/chat-relay/internal/handler"
	"github.com/zhouzirui/chat-relay/internal/service/broadcast"
	"github.com/zhouzirui/chat-relay/internal/service/responder"
	"github.com/zhouzirui/chat-relay/internal/service/session"
	"github.com/zhouzirui/chat-relay/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	log.Printf("Using Gemini API at: %s", cfg.Gemini.URL)

	db, err := store.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("failed to connect to PostgreSQL database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL database")

	messages := store.New(db)
	if err := messages.Migrate(ctx); err != nil {
		log.Fatalf("failed to initialize database schema: %v", err)
	}
	log.Println("Database initialized successfully")

	registry := session.NewRegistry()
	broadcastRouter := broadcast.NewRouter(cfg.Chat.BroadcastBuffer)
	gemini := responder.NewGeminiClient(cfg.Gemini)
	responderSvc := responder.NewService(messages, broadcastRouter, gemini, cfg.Chat.ContextLimit, cfg.Chat.ResponseDelay)

	router := handler.NewRouter(cfg, registry, messages, broadcastRouter, responderSvc)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Chat relay listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
