package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/grainstack/grain/pkg/anomaly"
	"github.com/grainstack/grain/pkg/dispatch"
	"github.com/grainstack/grain/pkg/eventstore"
	"github.com/grainstack/grain/pkg/log"
	"github.com/grainstack/grain/pkg/metrics"
	"github.com/grainstack/grain/pkg/pubsub"
	"github.com/grainstack/grain/pkg/snapshot"
	"github.com/grainstack/grain/pkg/types"
)

// ContextFn supplies transport-layer additional context (e.g. auth
// identity) merged into the processing context of each request.
type ContextFn func(r *http.Request) map[string]any

// Config holds API server configuration.
type Config struct {
	Commands *dispatch.CommandRegistry
	Queries  *dispatch.QueryRegistry
	Store    eventstore.Store
	Bus      *pubsub.Bus
	Cache    snapshot.Store
	// AdditionalContext may be nil.
	AdditionalContext ContextFn
}

// Server is the HTTP boundary adapter: it maps wire envelopes onto the
// command and query processors and the result taxonomy onto HTTP
// status codes.
type Server struct {
	cfg    Config
	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates the API server and registers its endpoints.
func NewServer(cfg Config) *Server {
	mux := http.NewServeMux()
	s := &Server{cfg: cfg, mux: mux}

	mux.HandleFunc("/command", s.commandHandler)
	mux.HandleFunc("/query", s.queryHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", metrics.Handler())

	return s
}

// Handler returns the underlying handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	logger := log.WithComponent("api")
	logger.Info().Str("addr", addr).Msg("HTTP API listening")
	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// commandEnvelope is the wire shape of POST /command.
type commandEnvelope struct {
	Command *types.Command `json:"command"`
}

// queryEnvelope is the wire shape of POST /query.
type queryEnvelope struct {
	Query *types.Query `json:"query"`
}

func (s *Server) commandHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.HTTPRequestDuration.WithLabelValues("/command").Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		s.writeError(w, "/command", anomaly.Incorrect("POST required"))
		return
	}

	var env commandEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil || env.Command == nil {
		s.writeError(w, "/command", anomaly.Incorrect("Invalid request body: expected {\"command\": {...}}"))
		return
	}

	cmd := *env.Command
	// The transport owns id and timestamp; callers do not set them.
	cmd.ID = uuid.Must(uuid.NewV7())
	cmd.Timestamp = time.Now().UTC()

	gc := s.baseContext(r)
	gc.Command = cmd

	result, err := dispatch.ProcessCommand(r.Context(), gc)
	if err != nil {
		s.writeError(w, "/command", err)
		return
	}
	s.writeResult(w, "/command", result.Result)
}

func (s *Server) queryHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		metrics.HTTPRequestDuration.WithLabelValues("/query").Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		s.writeError(w, "/query", anomaly.Incorrect("POST required"))
		return
	}

	var env queryEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil || env.Query == nil {
		s.writeError(w, "/query", anomaly.Incorrect("Invalid request body: expected {\"query\": {...}}"))
		return
	}

	q := *env.Query
	q.ID = uuid.Must(uuid.NewV7())
	q.Timestamp = time.Now().UTC()

	gc := s.baseContext(r)
	gc.Query = q

	result, err := dispatch.ProcessQuery(r.Context(), gc)
	if err != nil {
		s.writeError(w, "/query", err)
		return
	}
	s.writeResult(w, "/query", result.Result)
}

// baseContext assembles the processing context for one request.
func (s *Server) baseContext(r *http.Request) *dispatch.Context {
	gc := &dispatch.Context{
		Commands: s.cfg.Commands,
		Queries:  s.cfg.Queries,
		Store:    s.cfg.Store,
		Bus:      s.cfg.Bus,
		Cache:    s.cfg.Cache,
	}
	if s.cfg.AdditionalContext != nil {
		gc.Extra = s.cfg.AdditionalContext(r)
	}
	return gc
}

// errorBody is the wire shape of a failed request.
type errorBody struct {
	Message string `json:"message"`
	Explain any    `json:"explain,omitempty"`
}

// writeResult maps a success to 200: the result value if present,
// "OK" otherwise.
func (s *Server) writeResult(w http.ResponseWriter, endpoint string, result any) {
	if result == nil {
		result = "OK"
	}
	s.writeJSON(w, endpoint, http.StatusOK, result)
}

// writeError maps the anomaly taxonomy to HTTP status.
func (s *Server) writeError(w http.ResponseWriter, endpoint string, err error) {
	a := anomaly.From(err)
	status := statusFor(a.Category)
	if status >= http.StatusInternalServerError {
		logger := log.WithComponent("api")
		logger.Error().Err(err).Str("endpoint", endpoint).Msg("Request failed")
	}
	s.writeJSON(w, endpoint, status, errorBody{Message: a.Message, Explain: a.Explain})
}

func (s *Server) writeJSON(w http.ResponseWriter, endpoint string, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger := log.WithComponent("api")
		logger.Error().Err(err).Msg("Failed to encode response")
	}
	metrics.HTTPRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// statusFor implements the anomaly category → HTTP status table.
func statusFor(category anomaly.Category) int {
	switch category {
	case anomaly.CategoryIncorrect:
		return http.StatusBadRequest
	case anomaly.CategoryForbidden:
		return http.StatusForbidden
	case anomaly.CategoryNotFound:
		return http.StatusNotFound
	case anomaly.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// healthHandler implements the /health endpoint, a simple liveness
// check: 200 if the process is alive.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}
