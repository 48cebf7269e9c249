package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubReadiness struct {
	connections int
	pending     int
	uptime      time.Duration
	err         error
}

func (s *stubReadiness) SnapshotConnectionCounts() (int, int) { return s.connections, s.pending }
func (s *stubReadiness) StartupError() error                 { return s.err }
func (s *stubReadiness) Uptime() time.Duration                { return s.uptime }

type stubLimiter struct {
	remaining int
}

func (s *stubLimiter) Allow() bool {
	if s.remaining <= 0 {
		return false
	}
	s.remaining--
	return true
}

type stubFlusher struct {
	location string
	err      error
	calls    int
}

func (s *stubFlusher) FlushCanvasLogs(ctx context.Context) (string, error) {
	s.calls++
	return s.location, s.err
}

func TestLivenessHandlerReportsAlive(t *testing.T) {
	//1.- Liveness never depends on collaborators, only the clock.
	hs := NewHandlerSet(Options{})
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	rec := httptest.NewRecorder()
	hs.LivenessHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadinessHandlerReportsStartupError(t *testing.T) {
	//1.- A non-nil StartupError should surface as a 503 with the error message.
	hs := NewHandlerSet(Options{Readiness: &stubReadiness{connections: 3, pending: 1, err: errors.New("boom")}})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	hs.ReadinessHandler()(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestReadinessHandlerReportsOK(t *testing.T) {
	hs := NewHandlerSet(Options{Readiness: &stubReadiness{connections: 2, uptime: time.Minute}})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	hs.ReadinessHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsHandlerEmitsCounters(t *testing.T) {
	hs := NewHandlerSet(Options{
		Stats:     func() (int, int) { return 42, 5 },
		Readiness: &stubReadiness{connections: 5, pending: 1},
	})
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	hs.MetricsHandler()(rec, req)
	body := rec.Body.String()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if want := "canvas_broker_events_published_total 42"; !contains(body, want) {
		t.Fatalf("expected metrics body to contain %q, got %q", want, body)
	}
}

func TestCanvasLogFlushHandlerRequiresAdminToken(t *testing.T) {
	flusher := &stubFlusher{location: "s3://bucket/flush-1"}
	hs := NewHandlerSet(Options{AdminToken: "secret", LogFlusher: flusher})

	req := httptest.NewRequest(http.MethodPost, "/admin/canvas-log/flush", nil)
	rec := httptest.NewRecorder()
	hs.CanvasLogFlushHandler()(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/canvas-log/flush", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	hs.CanvasLogFlushHandler()(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 with the correct token, got %d", rec.Code)
	}
	if flusher.calls != 1 {
		t.Fatalf("expected the flusher to be invoked once, got %d", flusher.calls)
	}
}

func TestCanvasLogFlushHandlerRespectsRateLimit(t *testing.T) {
	hs := NewHandlerSet(Options{
		AdminToken:  "secret",
		LogFlusher:  &stubFlusher{},
		RateLimiter: &stubLimiter{remaining: 0},
	})
	req := httptest.NewRequest(http.MethodPost, "/admin/canvas-log/flush", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	hs.CanvasLogFlushHandler()(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestCanvasLogFlushHandlerRejectsWrongMethod(t *testing.T) {
	hs := NewHandlerSet(Options{AdminToken: "secret", LogFlusher: &stubFlusher{}})
	req := httptest.NewRequest(http.MethodGet, "/admin/canvas-log/flush", nil)
	rec := httptest.NewRecorder()
	hs.CanvasLogFlushHandler()(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
