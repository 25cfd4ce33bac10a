// Package testutil provides a local HTTP server for backend and dashboard tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"
)

// Request is what the server saw of one incoming request.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

// Server is a local HTTP server that records every request it receives.
type Server struct {
	URL string

	listener  net.Listener
	server    *http.Server
	closeOnce sync.Once

	mu       sync.Mutex
	requests []Request
}

// Close shuts down the test server.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.server != nil {
			_ = s.server.Close()
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
	})
}

// Requests returns the recorded requests in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsWithMethod returns the recorded requests using method.
func (s *Server) RequestsWithMethod(method string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// NewIPv4Server starts handler on 127.0.0.1. Tests are skipped when the
// runtime cannot bind a local socket.
func NewIPv4Server(t testing.TB, handler http.Handler) *Server {
	t.Helper()

	listener, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: unable to bind local tcp4 listener: %v", err)
		return nil
	}

	testServer := &Server{
		URL:      fmt.Sprintf("http://%s", listener.Addr().String()),
		listener: listener,
	}
	testServer.server = &http.Server{
		Handler:           testServer.record(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		_ = testServer.server.Serve(listener)
	}()

	t.Cleanup(testServer.Close)
	return testServer
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
