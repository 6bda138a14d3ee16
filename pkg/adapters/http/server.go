// Package http exposes the engine's session boundary as a JSON REST API on chi.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/insurai"
	"github.com/aretw0/insurai/internal/logging"
	presentation "github.com/aretw0/insurai/internal/presentation/graph"
	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/graph"
	"github.com/aretw0/insurai/pkg/runner"
	"github.com/go-chi/chi/v5"
)

// Engine is the session boundary served over HTTP.
type Engine interface {
	Flows() []string
	Flow(name string) (*graph.Graph, bool)
	StartSession(ctx context.Context, flow string, inputs ...domain.Input) (insurai.Result, error)
	Advance(ctx context.Context, sessionID string, inputs ...domain.Input) (insurai.Result, error)
	Session(ctx context.Context, sessionID string) (*domain.SessionRecord, error)
	Sessions(ctx context.Context) ([]string, error)
	EndSession(ctx context.Context, sessionID string) (*domain.State, error)
}

// Server holds the handlers of the REST API.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	logger  *slog.Logger
	metrics http.Handler
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetricsHandler mounts h (usually promhttp.Handler) under /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	server := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
	}
	for _, opt := range opts {
		opt(server)
	}
	if server.logger == nil {
		server.logger = logging.NewNop()
	}

	r := chi.NewRouter()
	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	if server.metrics != nil {
		r.Handle("/metrics", server.metrics)
	}

	r.Route("/flows", func(r chi.Router) {
		r.Get("/", server.ListFlows)
		r.Get("/{flow}/graph", server.GetGraph)
		r.Post("/{flow}/sessions", server.StartSession)
	})
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", server.ListSessions)
		r.Get("/{id}", server.GetSession)
		r.Delete("/{id}", server.EndSession)
		r.Post("/{id}/advance", server.Advance)
		r.Get("/{id}/events", server.SubscribeEvents)
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StepRequest is the body of the start and advance calls.
// Text is a shorthand for a single value of the awaited input.
type StepRequest struct {
	Inputs []domain.Input `json:"inputs,omitempty"`
	Text   *string        `json:"text,omitempty"`
}

// StartSession handles POST /flows/{flow}/sessions.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	body, ok := s.decodeStep(w, r)
	if !ok {
		return
	}
	inputs, err := s.inputs(body, "")
	if err != nil {
		s.fail(w, "StartSession", err)
		return
	}

	res, err := s.Engine.StartSession(r.Context(), chi.URLParam(r, "flow"), inputs...)
	if err != nil {
		s.fail(w, "StartSession", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, res)
}

// Advance handles POST /sessions/{id}/advance.
func (s *Server) Advance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, ok := s.decodeStep(w, r)
	if !ok {
		return
	}

	awaiting := ""
	if body.Text != nil {
		rec, err := s.Engine.Session(r.Context(), id)
		if err != nil {
			s.fail(w, "Advance", err)
			return
		}
		awaiting = rec.Awaiting
	}
	inputs, err := s.inputs(body, awaiting)
	if err != nil {
		s.fail(w, "Advance", err)
		return
	}

	res, err := s.Engine.Advance(r.Context(), id, inputs...)
	if err != nil {
		s.fail(w, "Advance", err)
		return
	}

	if res.Diff != nil {
		if b, err := json.Marshal(res.Diff); err == nil {
			s.Streams.Broadcast(id, string(b))
		}
	}
	s.writeJSON(w, http.StatusOK, res)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Engine.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "GetSession", err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Sessions(r.Context())
	if err != nil {
		s.fail(w, "ListSessions", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

// EndSession handles DELETE /sessions/{id} and returns the final state.
func (s *Server) EndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := s.Engine.EndSession(r.Context(), id)
	if err != nil {
		s.fail(w, "EndSession", err)
		return
	}
	s.Streams.Close(id)
	s.writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "state": state})
}

// ListFlows handles GET /flows.
func (s *Server) ListFlows(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"flows": s.Engine.Flows()})
}

// GraphView describes a compiled flow.
type GraphView struct {
	Flow        string     `json:"flow"`
	Start       string     `json:"start"`
	Terminal    string     `json:"terminal,omitempty"`
	Nodes       []NodeView `json:"nodes"`
	Unreachable []string   `json:"unreachable,omitempty"`
	Mermaid     string     `json:"mermaid"`
}

// NodeView describes one node of a flow.
type NodeView struct {
	Name       string          `json:"name"`
	Kind       domain.NodeKind `json:"kind"`
	Input      string          `json:"input,omitempty"`
	Capability string          `json:"capability,omitempty"`
	Next       []string        `json:"next,omitempty"`
}

// GetGraph handles GET /flows/{flow}/graph.
// With ?session=<id> the diagram highlights where that session stands.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "flow")
	g, ok := s.Engine.Flow(name)
	if !ok {
		s.fail(w, "GetGraph", fmt.Errorf("%w: %q", domain.ErrUnknownFlow, name))
		return
	}

	var overlay *presentation.Overlay
	if id := r.URL.Query().Get("session"); id != "" {
		rec, err := s.Engine.Session(r.Context(), id)
		if err != nil {
			s.fail(w, "GetGraph", err)
			return
		}
		overlay = &presentation.Overlay{Current: rec.SuspendedAt, Failed: rec.Status == domain.StatusDoneWithError}
	}

	view := GraphView{
		Flow:        g.Name(),
		Start:       g.Start(),
		Terminal:    g.Terminal(),
		Unreachable: g.Unreachable(),
		Mermaid:     presentation.GenerateMermaid(g, overlay),
	}
	for _, n := range g.Nodes() {
		nv := NodeView{Name: n.Name, Kind: n.Kind, Input: n.Input, Capability: n.Capability}
		if e, ok := g.Edge(n.Name); ok {
			nv.Next = e.Destinations()
		}
		view.Nodes = append(view.Nodes, nv)
	}
	s.writeJSON(w, http.StatusOK, view)
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "insurai-http",
		"version": strings.TrimSpace(insurai.Version),
	})
}

func (s *Server) decodeStep(w http.ResponseWriter, r *http.Request) (StepRequest, bool) {
	var body StepRequest
	if r.ContentLength == 0 {
		return body, true
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("invalid request body", "path", r.URL.Path, "error", err)
		return body, false
	}
	return body, true
}

// inputs sanitizes every string value before it reaches a flow.
func (s *Server) inputs(body StepRequest, awaiting string) ([]domain.Input, error) {
	inputs := append([]domain.Input(nil), body.Inputs...)
	if body.Text != nil {
		if awaiting == "" {
			return nil, badRequest("the session is not waiting for input")
		}
		inputs = append(inputs, domain.Input{Name: awaiting, Value: *body.Text})
	}
	for i, in := range inputs {
		if in.Name == "" {
			return nil, badRequest("every input needs a name")
		}
		text, ok := in.Value.(string)
		if !ok {
			continue
		}
		clean, err := runner.SanitizeInput(text)
		if err != nil {
			return nil, badRequest(fmt.Sprintf("invalid input %q: %v", in.Name, err))
		}
		inputs[i].Value = clean
	}
	return inputs, nil
}

type badRequest string

func (e badRequest) Error() string { return string(e) }

// fail maps engine errors to status codes.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	var br badRequest
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &br):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrUnknownFlow):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSessionFinished):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err)
	} else {
		s.logger.Warn(op+" rejected", "error", err, "status", status)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}
