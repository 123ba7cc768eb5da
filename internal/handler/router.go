package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/chat-relay/internal/config"
	"github.com/zhouzirui/chat-relay/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/chat-relay/internal/middleware"
	"github.com/zhouzirui/chat-relay/internal/service/broadcast"
	"github.com/zhouzirui/chat-relay/internal/service/responder"
	"github.com/zhouzirui/chat-relay/internal/service/session"
	"github.com/zhouzirui/chat-relay/internal/store"
	"github.com/zhouzirui/chat-relay/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg *config.Config, registry *session.Registry, messages *store.MessageStore, router *broadcast.Router, responderSvc *responder.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	wsHandler := ws.New(registry, messages, router, responderSvc, cfg.Chat)
	wsHandler.RegisterRoutes(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	registerStaticRoutes(r, cfg.StaticDir)

	return r
}

// registerStaticRoutes serves the built frontend with SPA fallback
// routing. Skipped entirely when no build output exists, so the relay can
// run headless.
func registerStaticRoutes(r chi.Router, staticDir string) {
	indexPath := filepath.Join(staticDir, "index.html")
	if _, err := os.Stat(indexPath); err != nil {
		return
	}

	fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(filepath.Join(staticDir, "static"))))
	r.Get("/static/*", fileServer.ServeHTTP)

	// Any other GET falls through to the SPA entry point.
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.NotFound(w, req)
			return
		}
		http.ServeFile(w, req, indexPath)
	})
}
