// Package api exposes converge's HTTP surface: process health, GitHub
// webhook ingress, and read-only intent/queue/dashboard views
// (SPEC_FULL.md §6). It is the ambient entrypoint surface the teacher
// always carries alongside its core engine, reimplemented with gin
// (the framework actually declared in go.mod) rather than the stale
// echo-based handlers this package inherited.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/ghmbegerez/converge/pkg/config"
	"github.com/ghmbegerez/converge/pkg/database"
	"github.com/ghmbegerez/converge/pkg/events"
	"github.com/ghmbegerez/converge/pkg/models"
	"github.com/ghmbegerez/converge/pkg/projections"
	"github.com/ghmbegerez/converge/pkg/store"
	"github.com/ghmbegerez/converge/pkg/version"
	"github.com/ghmbegerez/converge/pkg/webhook"
)

// Server is the HTTP API server.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	cfg         *config.Config
	dbClient    *database.Client
	webhooks    *webhook.Dispatcher
	deliveries  store.DeliveryStore
	intents     store.IntentStore
	projections *projections.Service

	// Events serves live WebSocket delivery over /events/ws (SPEC_FULL.md
	// §6). Nil (the default) disables the route: it responds 503 rather
	// than upgrading, so running without a ConnectionManager configured
	// degrades gracefully instead of panicking.
	Events *events.ConnectionManager
}

// NewServer builds a Server with gin and registers all routes.
func NewServer(
	cfg *config.Config,
	dbClient *database.Client,
	webhooks *webhook.Dispatcher,
	deliveries store.DeliveryStore,
	intents store.IntentStore,
	proj *projections.Service,
) *Server {
	gin.SetMode(cfg.HTTP.GinMode)
	router := gin.Default()
	router.Use(securityHeaders())

	s := &Server{
		router:      router,
		cfg:         cfg,
		dbClient:    dbClient,
		webhooks:    webhooks,
		deliveries:  deliveries,
		intents:     intents,
		projections: proj,
	}
	s.setupRoutes()
	return s
}

// setupRoutes registers all API routes (SPEC_FULL.md §6).
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/readyz", s.readyHandler)
	s.router.POST("/webhooks/github", s.githubWebhookHandler)

	authed := s.router.Group("/")
	authed.Use(requireBearerToken())
	authed.GET("/intents/:id", s.getIntentHandler)
	authed.GET("/queue", s.queueHandler)
	authed.GET("/dashboard/health", s.dashboardHealthHandler)
	authed.GET("/events/ws", s.eventsWebSocketHandler)
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.HTTP.ReadTimeout,
		WriteTimeout: s.cfg.HTTP.WriteTimeout,
	}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener.
// Used by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.router}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health: liveness plus DB health and
// config stats, mirroring the teacher's cmd/tarsy/main.go shape.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(reqCtx, s.dbClient.DB())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, &HealthResponse{
			Status:   "unhealthy",
			Version:  version.Full(),
			Database: dbHealth,
		})
		return
	}

	stats := s.cfg.Stats()
	c.JSON(http.StatusOK, &HealthResponse{
		Status:   "healthy",
		Version:  version.Full(),
		Database: dbHealth,
		Configuration: map[string]any{
			"http_port":                  stats.HTTPPort,
			"queue_poll_interval_seconds": stats.QueuePollSecond,
			"retention_days":             stats.RetentionDays,
		},
	})
}

// readyHandler handles GET /readyz: a process-liveness check with no
// database round-trip, for orchestrators distinguishing "process is
// up" from "process is fully healthy".
func (s *Server) readyHandler(c *gin.Context) {
	c.JSON(http.StatusOK, &ReadyResponse{Ready: true})
}

// githubWebhookHandler handles POST /webhooks/github. It keeps only
// infrastructure here — signature verification, delivery dedup,
// parsing — while all event-handling logic lives in
// pkg/webhook.Dispatcher, matching github_events.py's own separation
// of HTTP plumbing from event semantics.
func (s *Server) githubWebhookHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return
	}

	if !verifyGithubSignature(body, c.GetHeader("X-Hub-Signature-256")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	deliveryID := c.GetHeader("X-GitHub-Delivery")
	eventType := c.GetHeader("X-GitHub-Event")

	if deliveryID != "" {
		fresh, err := s.deliveries.RecordDelivery(c.Request.Context(), deliveryID, models.NowISO())
		if err != nil {
			code, msg := mapError(err)
			c.JSON(code, gin.H{"error": msg})
			return
		}
		if !fresh {
			code, msg := mapError(&deliveryError{DeliveryID: deliveryID})
			c.JSON(code, gin.H{"error": msg})
			return
		}
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	result, err := s.webhooks.Dispatch(c.Request.Context(), eventType, payload, deliveryID)
	if err != nil {
		code, msg := mapError(err)
		c.JSON(code, gin.H{"error": msg})
		return
	}
	slog.Info("webhook delivered", "event", eventType, "delivery_id", deliveryID, "actor", extractActor(c))

	c.JSON(http.StatusOK, &WebhookResponse{DeliveryID: deliveryID, Result: result})
}

// getIntentHandler handles GET /intents/:id.
func (s *Server) getIntentHandler(c *gin.Context) {
	intent, found, err := s.intents.GetIntent(c.Request.Context(), c.Param("id"))
	if err != nil {
		code, msg := mapError(err)
		c.JSON(code, gin.H{"error": msg})
		return
	}
	if !found {
		code, msg := mapError(ErrIntentNotFound)
		c.JSON(code, gin.H{"error": msg})
		return
	}

	c.JSON(http.StatusOK, &IntentResponse{
		ID: intent.ID, Source: intent.Source, Target: intent.Target,
		Status: string(intent.Status), RiskLevel: string(intent.RiskLevel),
		Priority: intent.Priority, CreatedAt: intent.CreatedAt, UpdatedAt: intent.UpdatedAt,
		CreatedBy: intent.CreatedBy, Semantic: intent.Semantic, Technical: intent.Technical,
		ChecksRequired: intent.ChecksRequired, Dependencies: intent.Dependencies, Retries: intent.Retries,
	})
}

// queueHandler handles GET /queue: the live intent queue breakdown
// (pkg/projections.Service.QueueState).
func (s *Server) queueHandler(c *gin.Context) {
	tenantID := tenantFromQuery(c)
	snapshot, err := s.projections.QueueState(c.Request.Context(), tenantID)
	if err != nil {
		code, msg := mapError(err)
		c.JSON(code, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// dashboardHealthHandler handles GET /dashboard/health: the repo
// health projection (pkg/projections.Service.RepoHealth).
func (s *Server) dashboardHealthHandler(c *gin.Context) {
	tenantID := tenantFromQuery(c)
	snapshot, err := s.projections.RepoHealth(c.Request.Context(), tenantID, dashboardWindowHours)
	if err != nil {
		code, msg := mapError(err)
		c.JSON(code, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// eventsWebSocketHandler handles GET /events/ws: upgrades the
// connection and hands it to the ConnectionManager, which blocks for
// the connection's lifetime serving subscribe/unsubscribe/catchup
// messages and live event fan-out (SPEC_FULL.md §6).
func (s *Server) eventsWebSocketHandler(c *gin.Context) {
	if s.Events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event streaming is not configured"})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("events: websocket upgrade failed", "error", err)
		return
	}

	s.Events.HandleConnection(c.Request.Context(), conn)
}

// dashboardWindowHours is the lookback window for GET /dashboard/health,
// matching health.py's default 24h dashboard window.
const dashboardWindowHours = 24

func tenantFromQuery(c *gin.Context) *string {
	if t := c.Query("tenant_id"); t != "" {
		return &t
	}
	return nil
}
