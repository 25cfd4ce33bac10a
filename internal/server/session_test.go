package server

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/lamim/vecplot/internal/config"
	"github.com/lamim/vecplot/internal/interaction"
	"github.com/lamim/vecplot/internal/plot"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedStore(ttl time.Duration) (*sessionStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	store := newSessionStore(ttl)
	store.now = clock.now
	return store, clock
}

func TestSessionStore_ExpireDropsIdleSessions(t *testing.T) {
	store, clock := newClockedStore(10 * time.Minute)
	state := interaction.NewState(plot.ColorByFamily)

	idle := store.create("Malware1", state)
	clock.advance(6 * time.Minute)
	active := store.create("Malware1", state)
	clock.advance(5 * time.Minute)

	if n := store.expire(); n != 1 {
		t.Fatalf("expected 1 expired session, got %d", n)
	}
	if _, err := store.get(idle.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected idle session to be gone, got %v", err)
	}
	if _, err := store.get(active.ID); err != nil {
		t.Errorf("expected active session to survive, got %v", err)
	}
}

func TestSessionStore_UpdateKeepsSessionAlive(t *testing.T) {
	store, clock := newClockedStore(10 * time.Minute)
	sess := store.create("Malware1", interaction.NewState(plot.ColorByFamily))

	for i := 0; i < 3; i++ {
		clock.advance(8 * time.Minute)
		if _, err := store.update(sess.ID, func(*Session) error { return nil }); err != nil {
			t.Fatalf("update %d failed: %v", i, err)
		}
	}
	if store.expire() != 0 || store.len() != 1 {
		t.Errorf("expected the touched session to stay, have %d", store.len())
	}
}

func TestSessionStore_LookupDropsExpired(t *testing.T) {
	store, clock := newClockedStore(time.Minute)
	sess := store.create("Malware1", interaction.NewState(plot.ColorByFamily))
	clock.advance(2 * time.Minute)

	if _, err := store.update(sess.ID, func(*Session) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired session, got %v", err)
	}
	if store.len() != 0 {
		t.Errorf("expected expired session removed on lookup, have %d", store.len())
	}
}

func TestServer_ExpiresSessionsOnCreate(t *testing.T) {
	cfg := config.Default()
	cfg.General.Timeout = "5s"
	cfg.Server.SessionTTL = "15m"
	srv := New(cfg, &mockSource{}, nil, nil)
	clock := &fakeClock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	srv.sessions.now = clock.now
	h := srv.Handler()

	first := createSession(t, h, "family")
	clock.advance(20 * time.Minute)
	createSession(t, h, "family")

	if srv.sessions.len() != 1 {
		t.Errorf("expected only the new session to remain, have %d", srv.sessions.len())
	}
	rec, _ := do(t, h, http.MethodGet, "/api/sessions/"+first.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for expired session, got %d", rec.Code)
	}
}
