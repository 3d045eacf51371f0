// Package api exposes the operational REST surface: system status,
// automation pause/resume, decision history, approvals, orders, agents
// and analytics snapshots.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/brendan721/Flipsync-Final-sub011/internal/agent"
	"github.com/brendan721/Flipsync-Final-sub011/internal/analytics"
	"github.com/brendan721/Flipsync-Final-sub011/internal/decision"
	"github.com/brendan721/Flipsync-Final-sub011/internal/executive"
	"github.com/brendan721/Flipsync-Final-sub011/internal/inventory"
	"github.com/brendan721/Flipsync-Final-sub011/internal/metrics"
	"github.com/brendan721/Flipsync-Final-sub011/internal/orders"
)

// DecisionStore serves decision history, normally the tracker
type DecisionStore interface {
	GetHistory(filters *decision.HistoryFilters) []*decision.Decision
	GetDecision(id string) (*decision.Decision, error)
	GetStats() decision.Stats
}

// OrderStore serves unified orders, normally the order manager
type OrderStore interface {
	List() []orders.UnifiedOrder
	Get(orderID string) (orders.UnifiedOrder, bool)
}

// AgentDirectory serves the agent registry, normally the executive
type AgentDirectory interface {
	Agents() []agent.RegistryEntry
	MonitorAgentPerformance() executive.PerformanceReport
}

// AutomationControl pauses and resumes the automation agent
type AutomationControl interface {
	Pause()
	Resume()
	Paused() bool
}

// ApprovalStore resolves pending approvals
type ApprovalStore interface {
	ApproveDecision(ctx context.Context, approvalID, approver string) error
	RejectDecision(ctx context.Context, approvalID, approver, reason string) error
}

// AnalyticsSource serves the latest analytics snapshot
type AnalyticsSource interface {
	Snapshot() analytics.Snapshot
}

// SpecialistMessenger routes a free-form message to one specialist agent
type SpecialistMessenger interface {
	HandleMessage(ctx context.Context, message, conversationID, userID string) (*agent.Response, error)
}

// Config contains server configuration and component handles. Nil
// components disable their endpoints with 503.
type Config struct {
	Host       string
	Port       int
	Decisions  DecisionStore
	Orders     OrderStore
	Agents     AgentDirectory
	Automation AutomationControl
	Approvals  ApprovalStore
	Analytics  AnalyticsSource
	Inventory  *inventory.Store

	// Specialists routes messages to the specialist agents by agent id
	Specialists map[string]SpecialistMessenger
}

// Server represents the REST API server
type Server struct {
	router *gin.Engine
	cfg    Config
	addr   string
	server *http.Server
}

var startTime = time.Now()

// NewServer creates a new API server
func NewServer(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	server := &Server{
		router: router,
		cfg:    cfg,
		addr:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
	server.setupRoutes()
	return server
}

// Start starts the HTTP server. It blocks until shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping API server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}
	return nil
}

// Handler exposes the router, used by tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// LoggerMiddleware logs each request and records its latency metric
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		method := c.Request.Method

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordAPIRequest(method, route, strconv.Itoa(statusCode), float64(latency.Milliseconds()))

		logEvent := log.Info().
			Str("method", method).
			Str("path", path).
			Str("query", query).
			Int("status", statusCode).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP())

		if len(c.Errors) > 0 {
			logEvent.Str("errors", c.Errors.String())
		}
		logEvent.Msg("API request")
	}
}
