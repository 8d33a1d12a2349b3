package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/domain"
	"github.com/couchcryptid/quakewatch-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// Dashboard is the pipeline surface the HTTP API drives.
type Dashboard interface {
	sharedobs.ReadinessChecker
	Snapshot() pipeline.Snapshot
	Refresh(ctx context.Context, trigger pipeline.Trigger) pipeline.Snapshot
	UseCachedData() (pipeline.Snapshot, error)
	LoadMore() pipeline.Snapshot
	Page(n int) domain.Page
	Detail(ctx context.Context, id string) (domain.EarthquakeDetail, error)
	CheckAPIHealth(ctx context.Context) pipeline.APIStatus
	UpdateFilters(ctx context.Context, c domain.FilterCriteria) (pipeline.Snapshot, error)
	SetVisible(ctx context.Context, visible bool) pipeline.Snapshot
	SetOnline(ctx context.Context, online bool) pipeline.Snapshot
	SetLocation(ctx context.Context, loc domain.Location) (pipeline.Snapshot, error)
	Theme(ctx context.Context) domain.Theme
	SetTheme(ctx context.Context, theme domain.Theme) error
	SetNotifications(ctx context.Context, enabled bool)
	ResetPreferences(ctx context.Context) (pipeline.Snapshot, error)
}

// Server exposes the dashboard API alongside health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	dash       Dashboard
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /api dashboard routes.
func NewServer(addr string, dash Dashboard, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:    addr,
			Handler: mux,
			// Refreshes may sit through a full retry schedule.
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		dash:   dash,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(dash))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/earthquakes", s.handlePage)
	mux.HandleFunc("GET /api/earthquakes/{id}", s.handleDetail)
	mux.HandleFunc("POST /api/earthquakes/more", s.handleLoadMore)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh(pipeline.TriggerManual))
	mux.HandleFunc("POST /api/retry", s.handleRefresh(pipeline.TriggerRetry))
	mux.HandleFunc("POST /api/use-cache", s.handleUseCache)
	mux.HandleFunc("PUT /api/filters", s.handleFilters)
	mux.HandleFunc("POST /api/visibility", s.handleVisibility)
	mux.HandleFunc("POST /api/connectivity", s.handleConnectivity)
	mux.HandleFunc("PUT /api/location", s.handleLocation)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/theme", s.handleGetTheme)
	mux.HandleFunc("PUT /api/theme", s.handleSetTheme)
	mux.HandleFunc("PUT /api/notifications", s.handleNotifications)
	mux.HandleFunc("DELETE /api/preferences", s.handleResetPreferences)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.Snapshot())
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	n := 1
	if v := r.URL.Query().Get("page"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		n = parsed
	}
	writeJSON(w, http.StatusOK, s.dash.Page(n))
}

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	detail, err := s.dash.Detail(r.Context(), id)
	if err != nil {
		s.logger.Warn("earthquake detail failed", "id", id, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleLoadMore(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.LoadMore())
}

func (s *Server) handleRefresh(trigger pipeline.Trigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.dash.Refresh(r.Context(), trigger))
	}
}

func (s *Server) handleUseCache(w http.ResponseWriter, _ *http.Request) {
	snap, err := s.dash.UseCachedData()
	if errors.Is(err, pipeline.ErrNoCachedData) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	var c domain.FilterCriteria
	if !decodeBody(w, r, &c) {
		return
	}
	snap, err := s.dash.UpdateFilters(r.Context(), c)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Hidden *bool `json:"hidden"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Hidden == nil {
		writeError(w, http.StatusBadRequest, "hidden is required")
		return
	}
	writeJSON(w, http.StatusOK, s.dash.SetVisible(r.Context(), !*body.Hidden))
}

func (s *Server) handleConnectivity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Online *bool `json:"online"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Online == nil {
		writeError(w, http.StatusBadRequest, "online is required")
		return
	}
	writeJSON(w, http.StatusOK, s.dash.SetOnline(r.Context(), *body.Online))
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var loc domain.Location
	if !decodeBody(w, r, &loc) {
		return
	}
	snap, err := s.dash.SetLocation(r.Context(), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.dash.CheckAPIHealth(r.Context()))
}

type themeBody struct {
	Theme domain.Theme `json:"theme"`
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, themeBody{Theme: s.dash.Theme(r.Context())})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var body themeBody
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.dash.SetTheme(r.Context(), body.Theme); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrInvalidTheme) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	s.dash.SetNotifications(r.Context(), *body.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": *body.Enabled})
}

func (s *Server) handleResetPreferences(w http.ResponseWriter, r *http.Request) {
	snap, err := s.dash.ResetPreferences(r.Context())
	if err != nil {
		s.logger.Error("reset preferences failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset preferences")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	sharedobs.WriteJSON(w, status, v)
}
