package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/beamline"
	"github.com/aretw0/beamline/internal/logging"
	"github.com/aretw0/beamline/pkg/dispatch"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/plan"
	"github.com/aretw0/beamline/pkg/ports"
	"github.com/aretw0/beamline/pkg/registry"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine is the part of the beamline engine exposed over HTTP.
type Engine interface {
	PlanNames() []string
	Devices() *registry.Registry
	Dispatcher() *dispatch.Dispatcher
	Abort(reason string) bool
	Busy() (string, bool)
}

// Runner executes plans on behalf of the server.
type Runner interface {
	RunNamed(ctx context.Context, name string, overrides map[string]any) (*domain.RunResult, error)
	RunSpec(ctx context.Context, spec plan.Spec) (*domain.RunResult, error)
}

// Server serves the beamline API.
type Server struct {
	Engine  Engine
	Runner  Runner
	Store   ports.DocumentStore
	Streams *StreamManager

	logger   *slog.Logger
	gatherer prometheus.Gatherer
	router   chi.Router
	token    dispatch.Token
}

// Option configures the Server.
type Option func(*Server)

// WithStore serves recorded runs from store.
func WithStore(store ports.DocumentStore) Option {
	return func(s *Server) {
		s.Store = store
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics exposes g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// NewServer creates the server and subscribes its event stream to the
// engine's dispatcher. Call Close to unsubscribe.
func NewServer(engine Engine, runner Runner, opts ...Option) *Server {
	s := &Server{
		Engine:  engine,
		Runner:  runner,
		Streams: NewStreamManager(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	s.token = engine.Dispatcher().Subscribe(domain.DocAll, s.broadcast)

	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/devices", s.ListDevices)
	r.Get("/devices/{name}", s.ReadDevice)
	r.Get("/plans", s.ListPlans)
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", s.StartRun)
		r.Get("/", s.ListRuns)
		r.Get("/active", s.ActiveRun)
		r.Get("/{uid}", s.GetRun)
		r.Delete("/{uid}", s.DeleteRun)
	})
	r.Post("/abort", s.AbortRun)
	r.Get("/events", s.SubscribeEvents)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	s.router = r
	return s
}

// NewHandler creates a server and returns it as a CORS-enabled handler.
func NewHandler(engine Engine, runner Runner, opts ...Option) http.Handler {
	return enableCORS(NewServer(engine, runner, opts...))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops forwarding documents to event streams.
func (s *Server) Close() {
	s.Engine.Dispatcher().Unsubscribe(s.token)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "beamline-http",
		"version": strings.TrimSpace(beamline.Version),
	})
}

// ListDevices handles the GET /devices request.
func (s *Server) ListDevices(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Engine.Devices().Describe())
}

// ReadDevice handles the GET /devices/{name} request.
func (s *Server) ReadDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.Engine.Devices().Readable(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	reading, err := dev.Read(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, reading)
}

// ListPlans handles the GET /plans request.
func (s *Server) ListPlans(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"plans": s.Engine.PlanNames(),
		"kinds": plan.Kinds(),
	})
}

// RunRequest selects a named plan, with optional overrides, or an ad-hoc spec.
type RunRequest struct {
	Plan      string         `json:"plan,omitempty"`
	Overrides map[string]any `json:"overrides,omitempty"`
	Spec      *plan.Spec     `json:"spec,omitempty"`
}

// RunResponse carries the outcome of a run. Error is set for stopped,
// aborted and failed runs.
type RunResponse struct {
	Result *domain.RunResult `json:"result"`
	Error  string            `json:"error,omitempty"`
}

// StartRun handles the POST /runs request. The run executes synchronously and
// is not tied to the request: a disconnecting client does not abort it.
func (s *Server) StartRun(w http.ResponseWriter, r *http.Request) {
	var body RunRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("StartRun: Invalid request body", "error", err)
		return
	}
	if (body.Plan == "") == (body.Spec == nil) {
		http.Error(w, "Exactly one of plan or spec is required", http.StatusBadRequest)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	var (
		res *domain.RunResult
		err error
	)
	if body.Spec != nil {
		res, err = s.Runner.RunSpec(ctx, *body.Spec)
	} else {
		res, err = s.Runner.RunNamed(ctx, body.Plan, body.Overrides)
	}
	if res == nil {
		s.writeError(w, err)
		return
	}

	resp := RunResponse{Result: res}
	if err != nil {
		resp.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// ActiveRun handles the GET /runs/active request.
func (s *Server) ActiveRun(w http.ResponseWriter, r *http.Request) {
	uid, busy := s.Engine.Busy()
	s.writeJSON(w, http.StatusOK, map[string]any{"busy": busy, "uid": uid})
}

// ListRuns handles the GET /runs request.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	uids, err := s.Store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, uids)
}

// GetRun handles the GET /runs/{uid} request.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	records, err := s.Store.Load(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

// DeleteRun handles the DELETE /runs/{uid} request.
func (s *Server) DeleteRun(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.Store.Delete(r.Context(), chi.URLParam(r, "uid")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AbortRun handles the POST /abort request.
func (s *Server) AbortRun(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "aborted over http"
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"aborted": s.Engine.Abort(reason)})
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.Store == nil {
		http.Error(w, "No document store configured", http.StatusNotImplemented)
		return false
	}
	return true
}

func (s *Server) broadcast(_ context.Context, doc domain.Document) error {
	rec, err := domain.NewRecord(doc)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode %s document: %w", doc.DocType(), err)
	}
	s.Streams.Broadcast(doc.DocType(), string(payload))
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrDeviceNotFound), errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRunInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
