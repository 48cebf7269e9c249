// Command broker runs the canvas broker: it upgrades WebSocket connections,
// authenticates each one into a stable identity.Identity, and hands it off
// to a per-connection router.Connection multiplexed over lazily-created
// per-canvas hub.Hubs. Grounded on the teacher's main.go Broker/NewBroker/
// serveWS/buildHandler wiring, generalized from one flat client/state
// registry into delegation onto router.HubRegistry.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"canvasboard/broker/internal/canvaslog"
	configpkg "canvasboard/broker/internal/config"
	"canvasboard/broker/internal/hub"
	"canvasboard/broker/internal/httpapi"
	"canvasboard/broker/internal/logging"
	"canvasboard/broker/internal/metadata"
	"canvasboard/broker/internal/replay"
	"canvasboard/broker/internal/router"

	"github.com/gorilla/websocket"
)

// upgrader is package-level so tests can override CheckOrigin directly, the
// same pattern the teacher's serveWS tests rely on.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Broker owns every collaborator needed to serve WebSocket canvas traffic:
// the per-canvas Hub registry, the metadata collaborator client, the
// websocket authenticator, and the bookkeeping the operational HTTP surface
// reports on. Grounded on the teacher's Broker struct, generalized from a
// flat client/state registry into delegation onto HubRegistry.
type Broker struct {
	cfg            *configpkg.Config
	logger         *logging.Logger
	hubs           *router.HubRegistry
	metadataClient *metadata.Client

	wsAuthenticator websocketAuthenticator
	startedAt       time.Time

	mu                sync.Mutex
	connections       int
	pendingHandshakes int
	startupErr        error

	eventsPublished int64
}

// BrokerOption customises Broker construction.
type BrokerOption func(*Broker)

// NewBroker wires the metadata client, the per-canvas Hub/Log factories, and
// the websocket authenticator (HMAC when an auth secret is configured,
// allow-all otherwise) into a ready-to-serve Broker.
func NewBroker(cfg *configpkg.Config, logger *logging.Logger, opts ...BrokerOption) (*Broker, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	if logger == nil {
		logger = logging.L()
	}

	metadataClient, err := metadata.New(cfg.MetadataBaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("construct metadata client: %w", err)
	}

	b := &Broker{
		cfg:            cfg,
		logger:         logger,
		metadataClient: metadataClient,
		startedAt:      time.Now(),
	}

	logFactory := func(canvasID string) *canvaslog.Log {
		return canvaslog.New(nil)
	}
	hubFactory := func(canvasID string, log *canvaslog.Log) *hub.Hub {
		return hub.New(canvasID, log, metadataClient, hub.WithLogger(logger.With(logging.String("canvas", canvasID))))
	}
	b.hubs = router.NewHubRegistry(hubFactory, logFactory)

	if cfg.AuthSecret != "" {
		authenticator, err := newHMACWebsocketAuthenticator(cfg.AuthSecret)
		if err != nil {
			return nil, fmt.Errorf("construct websocket authenticator: %w", err)
		}
		b.wsAuthenticator = authenticator
	} else {
		b.wsAuthenticator = allowAllAuthenticator{}
	}

	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	upgrader.CheckOrigin = buildOriginChecker(cfg.AllowedOrigins)
	return b, nil
}

// SnapshotConnectionCounts implements httpapi.ReadinessProvider.
func (b *Broker) SnapshotConnectionCounts() (connections, pendingHandshakes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connections, b.pendingHandshakes
}

// StartupError implements httpapi.ReadinessProvider.
func (b *Broker) StartupError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.startupErr
}

// Uptime implements httpapi.ReadinessProvider.
func (b *Broker) Uptime() time.Duration {
	return time.Since(b.startedAt)
}

// Stats implements httpapi.StatsFunc.
func (b *Broker) Stats() (eventsPublished, connections int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(atomic.LoadInt64(&b.eventsPublished)), b.connections
}

// FlushCanvasLogs implements httpapi.CanvasLogFlusher: it persists every
// open canvas's in-memory log to a fresh dump directory under
// cfg.StatePath, using replay.Writer, and reports the directories written.
func (b *Broker) FlushCanvasLogs(ctx context.Context) (string, error) {
	if strings.TrimSpace(b.cfg.StatePath) == "" {
		return "", errors.New("canvas-log dump path not configured")
	}

	var dirs []string
	var flushErr error
	b.hubs.Each(func(canvasID string, h *hub.Hub) {
		if flushErr != nil {
			return
		}
		writer, _, err := replay.NewWriter(b.cfg.StatePath, canvasID, nil)
		if err != nil {
			flushErr = fmt.Errorf("open dump for canvas %q: %w", canvasID, err)
			return
		}
		if err := writer.AppendEntries(h.Log().Entries()); err != nil {
			flushErr = fmt.Errorf("write dump for canvas %q: %w", canvasID, err)
			_ = writer.Close()
			return
		}
		if err := writer.Close(); err != nil {
			flushErr = fmt.Errorf("close dump for canvas %q: %w", canvasID, err)
			return
		}
		dirs = append(dirs, writer.Directory())
	})
	if flushErr != nil {
		return "", flushErr
	}
	if len(dirs) == 0 {
		return "no open canvases", nil
	}
	return strings.Join(dirs, ", "), nil
}

// serveWS authenticates the incoming request, upgrades it to a WebSocket,
// and hands the connection to a router.Connection for its lifetime.
// Grounded on the teacher's serveWS: capacity check before authentication,
// authentication before upgrade, a pending-handshake counter bracketing the
// whole handshake.
func (b *Broker) serveWS(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	if b.cfg.MaxClients > 0 && b.connections >= b.cfg.MaxClients {
		b.mu.Unlock()
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}
	b.pendingHandshakes++
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.pendingHandshakes--
		b.mu.Unlock()
	}()

	id, err := b.wsAuthenticator.Authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if b.logger != nil {
			b.logger.Debug("websocket upgrade failed", logging.Error(err))
		}
		return
	}

	b.mu.Lock()
	b.connections++
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.connections--
		b.mu.Unlock()
	}()

	cfg := router.Config{
		MaxPayloadBytes:   b.cfg.MaxPayloadBytes,
		WriteDeadline:     b.cfg.SinkWriteDeadline,
		HeartbeatDeadline: b.cfg.HeartbeatDeadline,
		DispatchQueueLen:  256,
		OnEventPublished:  func() { atomic.AddInt64(&b.eventsPublished, 1) },
	}
	connLogger := b.logger.With(logging.String("identity", id.ID))
	c := router.NewConnection(id, conn, b.hubs, cfg, connLogger)
	c.Serve(r.Context())
}

// buildOriginChecker builds a gorilla/websocket CheckOrigin func from the
// configured allow-list. An empty list allows every origin, matching the
// teacher's permissive default for local/dev deployments.
func buildOriginChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[strings.ToLower(strings.TrimSpace(origin))] = true
	}
	return func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		if set[strings.ToLower(origin)] {
			return true
		}
		parsed, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return set[strings.ToLower(parsed.Host)]
	}
}

// buildHandler mounts the WebSocket endpoint, the tool-documentation API,
// and the operational HTTP surface onto one mux, wrapped in trace-ID
// middleware. Grounded on the teacher's buildHandler.
func buildHandler(b *Broker, cfg *configpkg.Config) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/channel", b.serveWS)
	registerControlDocEndpoints(mux)

	limiter := httpapi.NewSlidingWindowLimiter(cfg.ReplayDumpWindow, cfg.ReplayDumpBurst, nil)
	handlers := httpapi.NewHandlerSet(httpapi.Options{
		Logger:      b.logger,
		Readiness:   b,
		Stats:       b.Stats,
		LogFlusher:  httpapi.CanvasLogFlusherFunc(b.FlushCanvasLogs),
		AdminToken:  cfg.AdminToken,
		RateLimiter: limiter,
	})
	handlers.Register(mux)

	return logging.HTTPTraceMiddleware(b.logger)(mux)
}

func main() {
	cfg, err := configpkg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "construct logger:", err)
		os.Exit(1)
	}

	broker, err := NewBroker(cfg, logger)
	if err != nil {
		logger.Fatal("construct broker", logging.Error(err))
	}

	handler := buildHandler(broker, cfg)
	server := &http.Server{
		Addr:    cfg.Address,
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", logging.Error(err))
		}
	}()

	logger.Info("canvas broker listening",
		logging.String("address", listenerURL(cfg.Address, cfg.TLSCertPath != "")))

	var serveErr error
	if cfg.TLSCertPath != "" {
		serveErr = server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
	} else {
		serveErr = server.ListenAndServe()
	}
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		logger.Fatal("server exited", logging.Error(serveErr))
	}
}
