// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jeranaias/fcrouter/internal/config"
	"github.com/jeranaias/fcrouter/internal/router"
	"github.com/jeranaias/fcrouter/internal/storage"
	"github.com/jeranaias/fcrouter/internal/telemetry"
	"github.com/jeranaias/fcrouter/internal/tools"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// MaxMessageCount is the maximum number of messages in a request.
	MaxMessageCount = 100

	// MaxMessageLength is the maximum content length of one message.
	MaxMessageLength = 100000

	// DefaultDecisionLimit is how many decisions /v1/decisions returns by default.
	DefaultDecisionLimit = 20

	// MaxDecisionLimit caps the limit query parameter.
	MaxDecisionLimit = 500
)

// Version is reported by /health.
var Version = "dev"

// ============================================================================
// DEPENDENCIES
// ============================================================================

// Router routes a conversation against a catalog. *router.Controller
// implements it.
type Router interface {
	Route(ctx context.Context, messages []router.Message, catalog *tools.Catalog) router.Result
}

// HealthChecker reports whether a backend is reachable.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// DecisionStore is the read side of the decision log.
type DecisionStore interface {
	List(ctx context.Context, limit int) ([]storage.Entry, error)
	Summary(ctx context.Context) ([]storage.PathSummary, error)
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the fcrouter HTTP API.
type Server struct {
	cfg     config.ServerConfig
	router  Router
	catalog tools.Source

	decisions DecisionStore
	stats     *telemetry.RouteStats
	metrics   *telemetry.Metrics
	gatherer  prometheus.Gatherer

	local          HealthChecker
	cloudProvider  string
	cloudAvailable bool

	logger  *zap.Logger
	started time.Time
	engine  *gin.Engine
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDecisionLog enables /v1/decisions.
func WithDecisionLog(d DecisionStore) Option {
	return func(s *Server) { s.decisions = d }
}

// WithStats enables /stats.
func WithStats(rs *telemetry.RouteStats) Option {
	return func(s *Server) { s.stats = rs }
}

// WithMetrics counts API requests in m and serves g on /metrics.
func WithMetrics(m *telemetry.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithLocalHealth sets the on-device backend checked by /health.
func WithLocalHealth(hc HealthChecker) Option {
	return func(s *Server) { s.local = hc }
}

// WithCloudStatus sets the cloud provider reported by /health.
func WithCloudStatus(provider string, configured bool) Option {
	return func(s *Server) {
		s.cloudProvider = provider
		s.cloudAvailable = configured
	}
}

// New creates a Server routing with rt against the catalog from source.
func New(cfg config.ServerConfig, rt Router, source tools.Source, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		router:  rt,
		catalog: source,
		logger:  zap.NewNop(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.engine,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() *gin.Engine {
	r := gin.New()
	r.Use(
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger, s.metrics),
		NewRateLimiter(s.cfg.RateLimit, s.cfg.Burst).Middleware(s.logger),
		AuthMiddleware(s.cfg.AuthToken, s.logger),
		BodyLimitMiddleware(s.cfg.BodyLimitBytes),
	)

	r.GET("/health", s.handleHealth)
	r.GET("/stats", s.handleStats)
	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	v1.POST("/route", s.handleRoute)
	v1.GET("/tools", s.handleTools)
	v1.GET("/decisions", s.handleDecisions)
	v1.GET("/decisions/summary", s.handleDecisionSummary)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "not_found", "Not Found")
	})
	return r
}

// ============================================================================
// ROUTE HANDLER
// ============================================================================

// RouteRequest is the body of POST /v1/route. Omitting tools uses the
// server's active catalog.
type RouteRequest struct {
	Messages            []router.Message `json:"messages"`
	Tools               *tools.Catalog   `json:"tools,omitempty"`
	ConfidenceThreshold *float64         `json:"confidence_threshold,omitempty"`
}

// RouteResponse is the body returned by POST /v1/route.
type RouteResponse struct {
	ID             string        `json:"id"`
	Result         router.Result `json:"result"`
	LocationIntent bool          `json:"location_intent"`
}

// validateRequest checks roles and sizes.
func validateRequest(req *RouteRequest) error {
	if len(req.Messages) == 0 {
		return errors.New("request must contain at least one message")
	}
	if len(req.Messages) > MaxMessageCount {
		return fmt.Errorf("too many messages: maximum is %d", MaxMessageCount)
	}
	for i, m := range req.Messages {
		if !m.Role.Valid() {
			return fmt.Errorf("invalid role '%s' at message %d: must be one of user, assistant, developer", m.Role, i)
		}
		if len(m.Content) > MaxMessageLength {
			return fmt.Errorf("message %d exceeds maximum length of %d", i, MaxMessageLength)
		}
	}
	if !router.HasUserMessage(req.Messages) {
		return errors.New("request must contain at least one user message")
	}
	if t := req.ConfidenceThreshold; t != nil && (*t < 0 || *t > 1) {
		return errors.New("confidence_threshold must be between 0 and 1")
	}
	return nil
}

// handleRoute handles POST /v1/route.
func (s *Server) handleRoute(c *gin.Context) {
	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, http.StatusRequestEntityTooLarge,
				"invalid_request_error", fmt.Sprintf("Request body exceeds maximum size of %d bytes", tooLarge.Limit))
			return
		}
		s.logger.Debug("INVALID_REQUEST", zap.Error(err))
		writeError(c, http.StatusBadRequest, "invalid_request_error", "Invalid request: "+err.Error())
		return
	}
	if err := validateRequest(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	catalog := req.Tools
	if catalog == nil {
		catalog = s.activeCatalog()
	}

	id := uuid.NewString()
	ctx := storage.WithDecisionID(c.Request.Context(), id)
	if req.ConfidenceThreshold != nil {
		ctx = router.WithConfidenceThreshold(ctx, *req.ConfidenceThreshold)
	}

	result := s.router.Route(ctx, req.Messages, catalog)
	c.JSON(http.StatusOK, RouteResponse{
		ID:             id,
		Result:         result,
		LocationIntent: router.DetectLocationIntent(router.UserText(req.Messages)),
	})
}

func (s *Server) activeCatalog() *tools.Catalog {
	if s.catalog == nil {
		return nil
	}
	return s.catalog.Catalog()
}

// ============================================================================
// CATALOG & DECISIONS
// ============================================================================

// handleTools handles GET /v1/tools.
func (s *Server) handleTools(c *gin.Context) {
	cat := s.activeCatalog()
	c.JSON(http.StatusOK, gin.H{
		"count": cat.Len(),
		"tools": cat,
	})
}

// handleDecisions handles GET /v1/decisions?limit=n.
func (s *Server) handleDecisions(c *gin.Context) {
	if s.decisions == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", "Decision log is disabled")
		return
	}

	limit := DefaultDecisionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(c, http.StatusBadRequest, "invalid_request_error", "limit must be a positive integer")
			return
		}
		limit = min(n, MaxDecisionLimit)
	}

	entries, err := s.decisions.List(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("DECISION_LIST_FAILED", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "server_error", "Could not read decision log")
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": entries})
}

// handleDecisionSummary handles GET /v1/decisions/summary.
func (s *Server) handleDecisionSummary(c *gin.Context) {
	if s.decisions == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", "Decision log is disabled")
		return
	}
	sum, err := s.decisions.Summary(c.Request.Context())
	if err != nil {
		s.logger.Error("DECISION_SUMMARY_FAILED", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "server_error", "Could not read decision log")
		return
	}
	c.JSON(http.StatusOK, gin.H{"paths": sum})
}

// ============================================================================
// HEALTH & STATS
// ============================================================================

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	LocalStatus   string `json:"local_status"`
	CloudProvider string `json:"cloud_provider,omitempty"`
	CloudStatus   string `json:"cloud_status"`
	Tools         int    `json:"tools"`
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(c *gin.Context) {
	health := HealthResponse{
		Status:        "ok",
		Version:       Version,
		CloudProvider: s.cloudProvider,
		CloudStatus:   "not_configured",
		Tools:         s.activeCatalog().Len(),
	}

	if s.local != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.local.CheckHealth(ctx); err == nil {
			health.LocalStatus = "ok"
		} else {
			health.LocalStatus = "unavailable"
			health.Status = "degraded"
		}
	} else {
		health.LocalStatus = "not_configured"
	}

	if s.cloudAvailable {
		health.CloudStatus = "configured"
	}

	c.JSON(http.StatusOK, health)
}

// StatsResponse represents the usage statistics response.
type StatsResponse struct {
	telemetry.Summary
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// handleStats handles GET /stats.
func (s *Server) handleStats(c *gin.Context) {
	if s.stats == nil {
		writeError(c, http.StatusServiceUnavailable, "unavailable", "Statistics are disabled")
		return
	}
	c.JSON(http.StatusOK, StatsResponse{
		Summary:       s.stats.Snapshot().Summary(),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Start listens on the configured address and blocks until the server stops.
// It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	s.logger.Info("SERVER_START", zap.String("addr", s.cfg.Addr), zap.String("version", Version),
		zap.Bool("auth", s.cfg.AuthToken != ""))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("SERVER_SHUTDOWN")
	return s.server.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// errorBody is the JSON error envelope.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func newErrorBody(status int, typ, message string) errorBody {
	var b errorBody
	b.Error.Message = message
	b.Error.Type = typ
	b.Error.Code = status
	return b
}

func writeError(c *gin.Context, status int, typ, message string) {
	c.JSON(status, newErrorBody(status, typ, message))
}

func abortError(c *gin.Context, status int, typ, message string) {
	c.AbortWithStatusJSON(status, newErrorBody(status, typ, message))
}
