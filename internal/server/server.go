// Package server serves the interactive dashboard: a Plotly page backed by a
// small JSON API that keeps one interaction state per browser session.
package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/lamim/vecplot/internal/backend"
	"github.com/lamim/vecplot/internal/config"
	"github.com/lamim/vecplot/internal/dataset"
	"github.com/lamim/vecplot/internal/debug"
	"github.com/lamim/vecplot/internal/interaction"
	"github.com/lamim/vecplot/internal/plot"
	"github.com/lamim/vecplot/internal/render"
)

//go:embed dashboard.html
var dashboardHTML []byte

// maxBodyBytes caps request bodies; every request is a small JSON object.
const maxBodyBytes = 1 << 16

// Server is the dashboard HTTP server.
type Server struct {
	source      backend.Source
	config      *config.Config
	logger      *slog.Logger
	debugLogger *debug.Logger
	sessions    *sessionStore
}

// New creates a dashboard server. A nil logger discards logs; a nil debug
// logger disables request capture.
func New(cfg *config.Config, src backend.Source, logger *slog.Logger, debugLog *debug.Logger) *Server {
	if logger == nil {
		logger = NoopLogger()
	}
	return &Server{
		source:      src,
		config:      cfg,
		logger:      logger,
		debugLogger: debugLog,
		sessions:    newSessionStore(cfg.Server.SessionTTLDuration()),
	}
}

// Handler returns the gzip-compressed, request-logged route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /api/collections", s.handleCollections)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/fetch", s.handleFetch)
	mux.HandleFunc("POST /api/sessions/{id}/color", s.handleColor)
	mux.HandleFunc("POST /api/sessions/{id}/mode", s.handleMode)
	mux.HandleFunc("POST /api/sessions/{id}/legend", s.handleLegend)
	mux.HandleFunc("POST /api/sessions/{id}/point", s.handlePoint)

	return logRequests(s.logger, gzhttp.GzipHandler(mux))
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", s.config.Server.Addr, "source", s.source.Name())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("dashboard shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// View is the JSON representation of a session's current plot.
type View struct {
	ID            string               `json:"id"`
	Collection    string               `json:"collection"`
	ColorBy       plot.ColorBy         `json:"color_by"`
	Mode          interaction.Mode     `json:"mode"`
	Palette       plot.Policy          `json:"palette"`
	Status        string               `json:"status"`
	Message       string               `json:"message,omitempty"`
	Error         string               `json:"error,omitempty"`
	Loading       bool                 `json:"loading"`
	Dimension     int                  `json:"dimension"`
	Points        int                  `json:"points"`
	Traces        []plot.Trace         `json:"traces"`
	Layout        map[string]any       `json:"layout,omitempty"`
	Ranges        *plot.Ranges         `json:"ranges,omitempty"`
	Isolated      *plot.Isolation      `json:"isolated,omitempty"`
	SelectedIndex *int                 `json:"selected_index,omitempty"`
	Selection     []interaction.Detail `json:"selection,omitempty"`
}

// viewOf renders a session snapshot.
func viewOf(sess Session) View {
	v := View{
		ID:         sess.ID,
		Collection: sess.Collection,
		ColorBy:    sess.State.ColorBy,
		Mode:       sess.State.Mode(),
		Palette:    sess.State.Policy,
		Message:    sess.Message,
		Error:      sess.Error,
		Loading:    sess.Loading,
		Traces:     []plot.Trace{},
	}
	if sess.State.Mode() == interaction.Isolate {
		v.Isolated = sess.State.Isolated
	}
	if sess.Selection != nil {
		idx := sess.Selection.Index
		v.SelectedIndex = &idx
		v.Selection = sess.Selection.Details(sess.FullDetail)
	}

	if sess.Loading {
		v.Status = dataset.StatusLoading
		return v
	}

	out := sess.State.Render(sess.Dataset)
	v.Status = out.Status
	v.Dimension = out.Dimension
	v.Points = sess.Dataset.Len()
	if out.Traces != nil {
		v.Traces = out.Traces
		ranges := sess.Ranges
		v.Ranges = &ranges
		v.Layout = plot.Layout(sess.State.ColorBy, out.Dimension, ranges)
	}
	return v
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(dashboardHTML)
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.config.General.TimeoutDuration())
	defer cancel()

	if len(s.config.Collections) > 0 {
		writeJSON(w, http.StatusOK, map[string]any{"collections": s.config.Collections})
		return
	}

	names, err := s.source.Collections(ctx)
	if err != nil {
		s.logger.Warn("list collections failed", "source", s.source.Name(), "error", err)
		writeError(w, http.StatusBadGateway, fmt.Errorf("failed to list collections: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": names})
}

type createRequest struct {
	Collection string `json:"collection"`
	ColorBy    string `json:"color_by"`
	Palette    string `json:"palette"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Collection == "" {
		writeError(w, http.StatusBadRequest, errors.New("collection is required"))
		return
	}
	if req.ColorBy == "" {
		req.ColorBy = string(plot.ColorByComponent)
	}
	colorBy, err := plot.ParseColorBy(req.ColorBy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	policy, err := plot.ParsePolicy(req.Palette)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if n := s.sessions.expire(); n > 0 {
		s.logger.Info("sessions expired", "count", n, "active", s.sessions.len())
	}

	state := interaction.NewState(colorBy)
	state.Policy = policy
	sess := s.sessions.create(req.Collection, state)
	s.logger.Info("session created", "session", sess.ID, "collection", req.Collection, "color_by", colorBy)

	sess, err = s.fetch(r.Context(), sess.ID, req.Collection)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	status := http.StatusCreated
	if err != nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, viewOf(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

type fetchRequest struct {
	Collection string `json:"collection"`
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req fetchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	collection := req.Collection
	if collection == "" {
		sess, err := s.sessions.get(id)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		collection = sess.Collection
	}

	sess, err := s.fetch(r.Context(), id, collection)
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeJSON(w, http.StatusBadGateway, viewOf(sess))
	default:
		writeJSON(w, http.StatusOK, viewOf(sess))
	}
}

// fetch loads a collection into a session. The session shows the loading
// status while the request is in flight; a newer fetch supersedes it.
func (s *Server) fetch(ctx context.Context, id, collection string) (Session, error) {
	var seq uint64
	if _, err := s.sessions.update(id, func(sess *Session) error {
		sess.fetchSeq++
		seq = sess.fetchSeq
		sess.Loading = true
		sess.Collection = collection
		sess.Error = ""
		return nil
	}); err != nil {
		return Session{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.General.TimeoutDuration())
	defer cancel()

	if s.debugLogger.IsEnabled() {
		fetchLog := s.debugLogger.StartFetch(s.source.Name(), collection, "dashboard_fetch")
		ctx = backend.WithDebugLogger(ctx, s.debugLogger)
		ctx = backend.WithFetchLog(ctx, fetchLog)
		defer s.debugLogger.EndFetch(fetchLog)
	}

	start := time.Now()
	result, fetchErr := s.source.Fetch(ctx, render.FetchOptions(s.config.Fetch, collection))
	latency := time.Since(start)
	if fetchErr == nil && (result == nil || result.Dataset == nil) {
		fetchErr = errors.New("backend returned no dataset")
	}

	sess, err := s.sessions.update(id, func(sess *Session) error {
		if sess.fetchSeq != seq {
			return nil
		}
		sess.Loading = false
		sess.State = sess.State.DatasetChanged()
		sess.Selection = nil
		if fetchErr != nil {
			sess.Dataset = nil
			sess.Message = ""
			sess.Error = fetchErr.Error()
			return nil
		}
		sess.Dataset = result.Dataset
		sess.Message = result.Dataset.Message
		sess.Ranges = plot.AxisRanges(result.Dataset)
		return nil
	})
	if err != nil {
		return sess, err
	}

	if fetchErr != nil {
		s.logger.Warn("fetch failed", "session", id, "collection", collection, "error", fetchErr, "latency", latency)
		backend.LogError(ctx, fetchErr.Error(), "fetch", "dashboard fetch")
		return sess, fetchErr
	}
	s.logger.Info("fetch completed", "session", id, "collection", collection,
		"points", result.Dataset.Len(), "dimension", result.Dataset.Dimension(), "latency", latency)
	return sess, nil
}

type colorRequest struct {
	ColorBy string  `json:"color_by"`
	Palette *string `json:"palette,omitempty"`
}

func (s *Server) handleColor(w http.ResponseWriter, r *http.Request) {
	var req colorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	colorBy, err := plot.ParseColorBy(req.ColorBy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var policy plot.Policy
	if req.Palette != nil {
		if policy, err = plot.ParsePolicy(*req.Palette); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	s.respond(w, r, func(sess *Session) error {
		sess.State = sess.State.ColorByChanged(colorBy)
		if req.Palette != nil {
			sess.State.Policy = policy
		}
		return nil
	})
}

type modeRequest struct {
	Mode   string `json:"mode"`
	Toggle bool   `json:"toggle"`
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var mode interaction.Mode
	if !req.Toggle {
		var err error
		if mode, err = interaction.ParseMode(req.Mode); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	s.respond(w, r, func(sess *Session) error {
		if req.Toggle {
			sess.State = sess.State.ToggleMode(sess.State.ColorBy)
		} else {
			sess.State = sess.State.WithMode(sess.State.ColorBy, mode)
		}
		return nil
	})
}

type legendRequest struct {
	CurveNumber *int   `json:"curve_number"`
	Name        string `json:"name"`
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	var req legendRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CurveNumber == nil && req.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("curve_number or name is required"))
		return
	}

	s.respond(w, r, func(sess *Session) error {
		if sess.Loading {
			return nil
		}
		names := interaction.Names(sess.State.Render(sess.Dataset).Traces)
		curve := -1
		if req.CurveNumber != nil {
			curve = *req.CurveNumber
		} else {
			for i, n := range names {
				if n == req.Name {
					curve = i
					break
				}
			}
		}
		sess.State, _ = sess.State.LegendClick(names, curve)
		return nil
	})
}

type pointRequest struct {
	Points []int `json:"points"`
	Full   bool  `json:"full"`
}

func (s *Server) handlePoint(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.respond(w, r, func(sess *Session) error {
		sel, ok := interaction.PointClick(sess.Dataset, req.Points)
		if !ok {
			return nil
		}
		sess.Selection = sel
		sess.FullDetail = req.Full
		return nil
	})
}

// respond applies an interaction to a session and writes the resulting view.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, fn func(*Session) error) {
	sess, err := s.sessions.update(r.PathValue("id"), fn)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
