package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kniti.io/focus-monitor/internal/orchestrator"
)

// App serves the admin endpoints of a running service.
type App struct {
	Orch   orchestrator.Orchestrator
	Logger *slog.Logger
}

// NewRouter mounts /healthz, /readyz and /stats.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", PingHandler)
	r.Get("/readyz", app.ReadyHandler)
	r.Get("/stats", app.StatsHandler)

	return r
}

func PingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ReadyHandler answers 503 until the poll loop has seen its first roll.
func (app *App) ReadyHandler(w http.ResponseWriter, _ *http.Request) {
	if !app.Orch.Ready() {
		http.Error(w, "awaiting first snapshot", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("tracking"))
}

func (app *App) StatsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(app.Orch.Stats()); err != nil {
		app.Logger.ErrorContext(r.Context(), "encode stats", slog.String("err", err.Error()))
	}
}
