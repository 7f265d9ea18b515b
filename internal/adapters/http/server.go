// Package http exposes the engine's command surface over a JSON API, with
// an SSE stream for lifecycle events and a Prometheus metrics endpoint.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/latticehq/lattice"
	"github.com/latticehq/lattice/internal/layout"
	"github.com/latticehq/lattice/internal/logging"
	"github.com/latticehq/lattice/pkg/domain"
)

// Server handles the HTTP command API over one engine.
type Server struct {
	engine *lattice.Engine
	events *Broadcaster
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithBroadcaster attaches the event broadcaster backing GET /events. The
// same broadcaster's Hooks must be wired into the engine.
func WithBroadcaster(b *Broadcaster) Option {
	return func(s *Server) { s.events = b }
}

// NewServer creates a server around an engine.
func NewServer(engine *lattice.Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		events: NewBroadcaster(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/events", s.subscribeEvents)

	r.Get("/workflow", s.getWorkflow)
	r.Put("/workflow", s.putWorkflow)
	r.Get("/workflow/mermaid", s.getMermaid)

	r.Route("/nodes", func(r chi.Router) {
		r.Get("/", s.listNodes)
		r.Post("/", s.addNode)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getNode)
			r.Patch("/", s.updateNode)
			r.Delete("/", s.deleteNode)
			r.Post("/move", s.moveNode)
			r.Post("/resize", s.resizeNode)
			r.Post("/drag-end", s.endDrag)
			r.Post("/duplicate", s.duplicateNode)
			r.Post("/run", s.runNode)
		})
	})

	r.Route("/edges", func(r chi.Router) {
		r.Get("/", s.listEdges)
		r.Post("/", s.connect)
		r.Delete("/{id}", s.disconnect)
	})

	r.Post("/history/undo", s.undo)
	r.Post("/history/redo", s.redo)

	r.Post("/clipboard/copy", s.copyNodes)
	r.Post("/clipboard/paste", s.paste)

	r.Post("/layout/align", s.align)
	r.Post("/layout/distribute", s.distribute)

	r.Post("/run", s.runWorkflow)
	r.Post("/run/cancel", s.cancelRun)

	r.Route("/workflows", func(r chi.Router) {
		r.Get("/", s.listWorkflows)
		r.Post("/{id}/save", s.saveWorkflow)
		r.Post("/{id}/open", s.openWorkflow)
	})

	return r
}

// -- Workflow --

func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) putWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf domain.Workflow
	if !s.decode(w, r, &wf) {
		return
	}
	if err := s.engine.LoadSnapshot(&wf); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) getMermaid(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, s.engine.ExportMermaid())
}

// -- Nodes --

type addNodeRequest struct {
	Kind     domain.Kind     `json:"type"`
	Position domain.Position `json:"position"`
	Data     map[string]any  `json:"data"`
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Nodes())
}

func (s *Server) addNode(w http.ResponseWriter, r *http.Request) {
	var body addNodeRequest
	if !s.decode(w, r, &body) {
		return
	}
	node, err := s.engine.AddNode(body.Kind, body.Position, body.Data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, node)
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	node, err := s.engine.Node(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

func (s *Server) updateNode(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if !s.decode(w, r, &patch) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.engine.UpdateNode(id, patch); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeNode(w, id)
}

func (s *Server) deleteNode(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteNode(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type positionRequest struct {
	Position domain.Position `json:"position"`
}

func (s *Server) moveNode(w http.ResponseWriter, r *http.Request) {
	var body positionRequest
	if !s.decode(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.engine.MoveNode(id, body.Position); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeNode(w, id)
}

func (s *Server) resizeNode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Size domain.Size `json:"size"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.engine.ResizeNode(id, body.Size); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeNode(w, id)
}

func (s *Server) endDrag(w http.ResponseWriter, r *http.Request) {
	var body positionRequest
	if !s.decode(w, r, &body) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.engine.EndDrag(id, body.Position); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeNode(w, id)
}

func (s *Server) duplicateNode(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.Duplicate(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"nodeIds": ids})
}

// -- Edges --

type connectRequest struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
}

func (s *Server) listEdges(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.Edges())
}

func (s *Server) connect(w http.ResponseWriter, r *http.Request) {
	var body connectRequest
	if !s.decode(w, r, &body) {
		return
	}
	edge, err := s.engine.Connect(body.Source, body.Target, body.SourceHandle, body.TargetHandle)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, edge)
}

func (s *Server) disconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Disconnect(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- History --

func (s *Server) undo(w http.ResponseWriter, r *http.Request) {
	applied, err := s.engine.Undo()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

func (s *Server) redo(w http.ResponseWriter, r *http.Request) {
	applied, err := s.engine.Redo()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

// -- Clipboard --

func (s *Server) copyNodes(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NodeIDs []string `json:"nodeIds"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.engine.Copy(body.NodeIDs); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) paste(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Position *domain.Position `json:"position"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	ids, err := s.engine.Paste(body.Position)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{"nodeIds": ids})
}

// -- Layout --

func (s *Server) align(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NodeIDs []string         `json:"nodeIds"`
		Mode    layout.AlignMode `json:"mode"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.engine.Align(body.NodeIDs, body.Mode); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) distribute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		NodeIDs []string    `json:"nodeIds"`
		Axis    layout.Axis `json:"axis"`
	}
	if !s.decode(w, r, &body) {
		return
	}
	if err := s.engine.Distribute(body.NodeIDs, body.Axis); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- Execution --

// runWorkflow starts a run in the background and returns immediately; run
// progress streams over /events and lands in node statuses.
func (s *Server) runWorkflow(w http.ResponseWriter, r *http.Request) {
	if s.engine.Running() {
		s.writeError(w, domain.ErrRunInProgress)
		return
	}
	go func() {
		if _, err := s.engine.RunWorkflow(context.Background()); err != nil {
			s.logger.Warn("workflow run failed", "error", err)
		}
	}()
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) runNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	force := r.URL.Query().Get("force") == "true"
	result, err := s.engine.RunNode(r.Context(), id, force)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	s.engine.CancelExecution()
	w.WriteHeader(http.StatusNoContent)
}

// -- Persistence --

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	ids, err := s.engine.ListWorkflows(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"workflows": ids})
}

func (s *Server) saveWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Save(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) openWorkflow(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Open(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// -- Events --

func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := s.events.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", event.marshal())
			flusher.Flush()
		}
	}
}

// -- Helpers --

func (s *Server) writeNode(w http.ResponseWriter, id string) {
	node, err := s.engine.Node(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, node)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrEdgeNotFound),
		errors.Is(err, domain.ErrWorkflowNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidConnection),
		errors.Is(err, domain.ErrGroupParent),
		errors.Is(err, domain.ErrDuplicateID):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRunInProgress):
		status = http.StatusConflict
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
