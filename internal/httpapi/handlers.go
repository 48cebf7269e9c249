// Package httpapi implements the broker's operational HTTP surface:
// liveness/readiness probes, Prometheus-style metrics, and an admin-token
// gated canvas log flush trigger. Grounded on the teacher's
// internal/http.HandlerSet, generalized from broadcast/snapshot/replay
// metrics to canvas connection/event/log-flush metrics.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"canvasboard/broker/internal/logging"
)

// ReadinessProvider exposes broker state required for readiness checks.
type ReadinessProvider interface {
	SnapshotConnectionCounts() (connections, pendingHandshakes int)
	StartupError() error
	Uptime() time.Duration
}

// StatsFunc returns cumulative published-event and connection statistics.
type StatsFunc func() (eventsPublished, connections int)

// CanvasLogFlusher forces every open canvas's in-memory log to durable
// storage and reports where it was written.
type CanvasLogFlusher interface {
	FlushCanvasLogs(ctx context.Context) (string, error)
}

// CanvasLogFlusherFunc adapts a function into a CanvasLogFlusher.
type CanvasLogFlusherFunc func(ctx context.Context) (string, error)

// FlushCanvasLogs implements CanvasLogFlusher.
func (f CanvasLogFlusherFunc) FlushCanvasLogs(ctx context.Context) (string, error) { return f(ctx) }

// RateLimiter gates how frequently sensitive operations may be invoked.
type RateLimiter interface {
	Allow() bool
}

// Options configures the HandlerSet.
type Options struct {
	Logger      *logging.Logger
	Readiness   ReadinessProvider
	Stats       StatsFunc
	LogFlusher  CanvasLogFlusher
	AdminToken  string
	RateLimiter RateLimiter
	TimeSource  func() time.Time
}

// HandlerSet bundles the broker's operational handlers.
type HandlerSet struct {
	logger      *logging.Logger
	readiness   ReadinessProvider
	stats       StatsFunc
	logFlusher  CanvasLogFlusher
	adminToken  string
	rateLimiter RateLimiter
	now         func() time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:      logger,
		readiness:   opts.Readiness,
		stats:       opts.Stats,
		logFlusher:  opts.LogFlusher,
		adminToken:  strings.TrimSpace(opts.AdminToken),
		rateLimiter: opts.RateLimiter,
		now:         now,
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/admin/canvas-log/flush", h.CanvasLogFlushHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports broker readiness, including connection counts and
// startup status.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status            string  `json:"status"`
		Message           string  `json:"message,omitempty"`
		UptimeSeconds     float64 `json:"uptime_seconds"`
		Connections       int     `json:"connections"`
		PendingHandshakes int     `json:"pending_handshakes"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := response{Status: "ok"}
		if h.readiness != nil {
			connections, pending := h.readiness.SnapshotConnectionCounts()
			resp.Connections = connections
			resp.PendingHandshakes = pending
			resp.UptimeSeconds = h.readiness.Uptime().Seconds()
			if err := h.readiness.StartupError(); err != nil {
				status = http.StatusServiceUnavailable
				resp.Status = "error"
				resp.Message = err.Error()
			}
		}
		writeJSON(w, status, resp)
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventsPublished, connections := h.metricsStats()
		pending, uptime := h.pendingAndUptime()

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(w, "# HELP canvas_broker_uptime_seconds Broker uptime in seconds.\n")
		fmt.Fprintf(w, "# TYPE canvas_broker_uptime_seconds gauge\n")
		fmt.Fprintf(w, "canvas_broker_uptime_seconds %.0f\n", uptime)

		fmt.Fprintf(w, "# HELP canvas_broker_connections Current connected WebSocket connections.\n")
		fmt.Fprintf(w, "# TYPE canvas_broker_connections gauge\n")
		fmt.Fprintf(w, "canvas_broker_connections %d\n", connections)

		fmt.Fprintf(w, "# HELP canvas_broker_pending_handshakes Pending WebSocket handshakes awaiting upgrade.\n")
		fmt.Fprintf(w, "# TYPE canvas_broker_pending_handshakes gauge\n")
		fmt.Fprintf(w, "canvas_broker_pending_handshakes %d\n", pending)

		fmt.Fprintf(w, "# HELP canvas_broker_events_published_total Total events accepted and fanned out.\n")
		fmt.Fprintf(w, "# TYPE canvas_broker_events_published_total counter\n")
		fmt.Fprintf(w, "canvas_broker_events_published_total %d\n", eventsPublished)
	}
}

// CanvasLogFlushHandler authorises and triggers an immediate canvas log
// flush to durable storage.
func (h *HandlerSet) CanvasLogFlushHandler() http.HandlerFunc {
	type response struct {
		Status   string `json:"status"`
		Location string `json:"location,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.logger.With(
			logging.String("handler", "canvas_log_flush"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.adminToken == "" {
			reqLogger.Warn("canvas log flush denied: admin auth disabled")
			http.Error(w, "admin authentication not configured", http.StatusForbidden)
			return
		}
		if !h.authorise(r) {
			reqLogger.Warn("canvas log flush denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if h.rateLimiter != nil && !h.rateLimiter.Allow() {
			reqLogger.Warn("canvas log flush denied: rate limit exceeded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if h.logFlusher == nil {
			reqLogger.Warn("canvas log flush denied: no flusher configured")
			http.Error(w, "canvas log flushing is unavailable", http.StatusServiceUnavailable)
			return
		}
		location, err := h.logFlusher.FlushCanvasLogs(r.Context())
		if err != nil {
			reqLogger.Error("canvas log flush failed", logging.Error(err))
			http.Error(w, "failed to flush canvas logs", http.StatusInternalServerError)
			return
		}
		reqLogger.Info("canvas log flush triggered")
		writeJSON(w, http.StatusAccepted, response{Status: "accepted", Location: location})
	}
}

func (h *HandlerSet) metricsStats() (eventsPublished, connections int) {
	if h.stats != nil {
		return h.stats()
	}
	if h.readiness != nil {
		connections, _ = h.readiness.SnapshotConnectionCounts()
	}
	return
}

func (h *HandlerSet) pendingAndUptime() (pending int, uptime float64) {
	if h.readiness == nil {
		return 0, 0
	}
	_, pending = h.readiness.SnapshotConnectionCounts()
	return pending, h.readiness.Uptime().Seconds()
}

func (h *HandlerSet) authorise(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	var token string
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	} else if header != "" {
		token = header
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
