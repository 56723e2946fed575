// Package ingest exposes the HTTP surface a presence source feeds. A
// snapshot arrives as JSON, is normalized, and is handed to the tracking
// loop through a bounded channel.
package ingest

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Darkatse/StatusHub/internal/presence"
	"github.com/Darkatse/StatusHub/pkg/logx"
)

type Config struct {
	Addr    string
	Token   string
	Metrics bool
}

// Server accepts presence snapshots over HTTP and pushes them into feed.
// A full feed yields 503 so the source can back off; the tracking loop is
// never blocked by slow ingestion.
type Server struct {
	cfg      Config
	feed     chan<- presence.Snapshot
	registry *prometheus.Registry
	log      logx.Logger

	srv *http.Server
}

func NewServer(cfg Config, feed chan<- presence.Snapshot, registry *prometheus.Registry, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{cfg: cfg, feed: feed, registry: registry, log: log}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.cfg.Metrics && s.registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	r.Route("/v1", func(r chi.Router) {
		if s.cfg.Token != "" {
			r.Use(s.requireToken)
		}
		r.Post("/presence", s.handlePresence)
	})
	return r
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		got, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.Token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type activityPayload struct {
	Name    string `json:"name,omitempty"`
	Details string `json:"details,omitempty"`
	State   string `json:"state,omitempty"`
	Assets  *struct {
		LargeImage string `json:"large_image,omitempty"`
		SmallImage string `json:"small_image,omitempty"`
	} `json:"assets,omitempty"`
	// Explicit app id wins over asset parsing when both are present.
	AppID uint32 `json:"app_id,omitempty"`
}

type snapshotPayload struct {
	Status     string           `json:"status"`
	Activity   *activityPayload `json:"activity,omitempty"`
	ObservedAt *time.Time       `json:"observed_at,omitempty"`
}

func (s *Server) handlePresence(w http.ResponseWriter, r *http.Request) {
	var payload snapshotPayload
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&payload); err != nil {
		http.Error(w, "malformed snapshot: "+err.Error(), http.StatusBadRequest)
		return
	}

	status := presence.Status(strings.ToLower(strings.TrimSpace(payload.Status)))
	if !status.Valid() {
		http.Error(w, "unknown status "+strconv.Quote(payload.Status), http.StatusBadRequest)
		return
	}

	snap := presence.Snapshot{Status: status, ObservedAt: time.Now()}
	if payload.ObservedAt != nil {
		snap.ObservedAt = *payload.ObservedAt
	}
	if payload.Activity != nil {
		snap.Activity = normalizeActivity(payload.Activity)
	}

	select {
	case s.feed <- snap:
		w.WriteHeader(http.StatusAccepted)
	default:
		http.Error(w, "feed saturated", http.StatusServiceUnavailable)
	}
}

// normalizeActivity extracts the external app id. Rich-presence assets
// carry it as a "steam:<id>" image key; an explicit app_id overrides.
func normalizeActivity(p *activityPayload) *presence.ActivityInfo {
	info := &presence.ActivityInfo{
		Name:          p.Name,
		Details:       p.Details,
		State:         p.State,
		ExternalAppID: p.AppID,
	}
	if info.ExternalAppID == 0 && p.Assets != nil {
		if id, ok := parseSteamAsset(p.Assets.LargeImage); ok {
			info.ExternalAppID = id
		} else if id, ok := parseSteamAsset(p.Assets.SmallImage); ok {
			info.ExternalAppID = id
		}
	}
	return info
}

func parseSteamAsset(asset string) (uint32, bool) {
	raw, ok := strings.CutPrefix(asset, "steam:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint32(id), true
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()

	s.log.Info("ingest listening", logx.String("addr", s.cfg.Addr))
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }
