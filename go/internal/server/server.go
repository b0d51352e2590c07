// Package server exposes the bot's state over HTTP.
package server

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/miou/go/internal/gamestate"
	"github.com/mcdev12/miou/go/internal/models"
	"github.com/mcdev12/miou/go/internal/polling"
	"github.com/mcdev12/miou/go/internal/scheduler"
)

type SnapshotProvider interface {
	Snapshot() (gamestate.Snapshot, bool)
}

type AlertLister interface {
	ListByRoom(roomID string) []models.Alert
	ListAll() []models.Alert
}

type LoopStatus interface {
	Stats() polling.Stats
}

type PendingLister interface {
	Pending() []scheduler.PendingTimer
}

// Deps are the components the endpoints read from. WS is optional.
type Deps struct {
	Snapshots SnapshotProvider
	Alerts    AlertLister
	Loop      LoopStatus
	Scheduler PendingLister
	WS        http.Handler
}

// New builds the HTTP server on addr.
func New(addr string, deps Deps) *http.Server {
	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(c.Handler(Routes(deps)), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Routes returns the mux with every endpoint registered.
func Routes(deps Deps) *http.ServeMux {
	mux := http.NewServeMux()
	setupHealthCheck(mux)

	h := &handlers{deps: deps}
	mux.HandleFunc("GET /games", h.games)
	mux.HandleFunc("GET /alerts", h.alerts)
	mux.HandleFunc("GET /status", h.status)
	if deps.WS != nil {
		mux.Handle("/ws", deps.WS)
	}
	return mux
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

type handlers struct {
	deps Deps
}

type gamesResponse struct {
	TakenAt time.Time     `json:"taken_at"`
	Games   []models.Game `json:"games"`
	Unknown []string      `json:"unknown"`
}

func (h *handlers) games(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.deps.Snapshots.Snapshot()
	if !ok {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}

	resp := gamesResponse{TakenAt: snap.TakenAt, Games: snap.SortedGames(), Unknown: []string{}}
	for id := range snap.Unknown {
		resp.Unknown = append(resp.Unknown, id)
	}
	sort.Strings(resp.Unknown)
	writeJSON(w, resp)
}

func (h *handlers) alerts(w http.ResponseWriter, r *http.Request) {
	var list []models.Alert
	if room := r.URL.Query().Get("room"); room != "" {
		list = h.deps.Alerts.ListByRoom(room)
	} else {
		list = h.deps.Alerts.ListAll()
	}
	if list == nil {
		list = []models.Alert{}
	}
	writeJSON(w, list)
}

type statusResponse struct {
	Polling polling.Stats            `json:"polling"`
	Pending []scheduler.PendingTimer `json:"pending"`
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statusResponse{
		Polling: h.deps.Loop.Stats(),
		Pending: h.deps.Scheduler.Pending(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write json response")
	}
}
