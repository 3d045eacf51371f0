package api

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brendan721/Flipsync-Final-sub011/internal/config"
	"github.com/brendan721/Flipsync-Final-sub011/internal/decision"
	"github.com/brendan721/Flipsync-Final-sub011/internal/orders"
)

func notConfigured(c *gin.Context, component string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": component + " not configured"})
}

// Root handler
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "FlipSync API",
		"version": config.Version,
		"status":  "running",
		"time":    time.Now().UTC(),
	})
}

// handleGetStatus returns comprehensive system status
func (s *Server) handleGetStatus(c *gin.Context) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	componentStatus := func(configured bool) string {
		if configured {
			return "configured"
		}
		return "not_configured"
	}

	automationPaused := false
	if s.cfg.Automation != nil {
		automationPaused = s.cfg.Automation.Paused()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"timestamp":         time.Now().UTC(),
		"uptime":            time.Since(startTime).Seconds(),
		"version":           config.Version,
		"automation_paused": automationPaused,
		"components": gin.H{
			"decisions":  gin.H{"status": componentStatus(s.cfg.Decisions != nil)},
			"orders":     gin.H{"status": componentStatus(s.cfg.Orders != nil)},
			"agents":     gin.H{"status": componentStatus(s.cfg.Agents != nil)},
			"automation": gin.H{"status": componentStatus(s.cfg.Automation != nil)},
			"analytics":  gin.H{"status": componentStatus(s.cfg.Analytics != nil)},
			"inventory":  gin.H{"status": componentStatus(s.cfg.Inventory != nil)},
		},
		"system": gin.H{
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"alloc_mb": memStats.Alloc / 1024 / 1024,
				"sys_mb":   memStats.Sys / 1024 / 1024,
				"num_gc":   memStats.NumGC,
			},
			"go_version": runtime.Version(),
		},
	})
}

// handleGetHealth returns a simple health check for load balancers
func (s *Server) handleGetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

// Control endpoints

func (s *Server) handlePause(c *gin.Context) {
	if s.cfg.Automation == nil {
		notConfigured(c, "automation")
		return
	}
	s.cfg.Automation.Pause()
	c.JSON(http.StatusOK, gin.H{"automation_paused": true})
}

func (s *Server) handleResume(c *gin.Context) {
	if s.cfg.Automation == nil {
		notConfigured(c, "automation")
		return
	}
	s.cfg.Automation.Resume()
	c.JSON(http.StatusOK, gin.H{"automation_paused": false})
}

// Decision endpoints

func (s *Server) handleListDecisions(c *gin.Context) {
	if s.cfg.Decisions == nil {
		notConfigured(c, "decisions")
		return
	}

	filters := &decision.HistoryFilters{
		Type:   decision.Type(c.Query("type")),
		Status: decision.Status(c.Query("status")),
	}
	if raw := c.Query("min_confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_confidence"})
			return
		}
		filters.MinConfidence = v
	}

	history := s.cfg.Decisions.GetHistory(filters)

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		if limit < len(history) {
			history = history[len(history)-limit:] // most recent
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"decisions": history,
		"count":     len(history),
	})
}

func (s *Server) handleGetDecision(c *gin.Context) {
	if s.cfg.Decisions == nil {
		notConfigured(c, "decisions")
		return
	}

	d, err := s.cfg.Decisions.GetDecision(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleDecisionStats(c *gin.Context) {
	if s.cfg.Decisions == nil {
		notConfigured(c, "decisions")
		return
	}
	c.JSON(http.StatusOK, s.cfg.Decisions.GetStats())
}

// Approval endpoints

type approvalRequest struct {
	Approver string `json:"approver" binding:"required"`
	Reason   string `json:"reason"`
}

func (s *Server) handleApprove(c *gin.Context) {
	if s.cfg.Approvals == nil {
		notConfigured(c, "approvals")
		return
	}

	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "approver is required"})
		return
	}

	id := c.Param("id")
	if err := s.cfg.Approvals.ApproveDecision(c.Request.Context(), id, req.Approver); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"approval_id": id, "status": "approved"})
}

func (s *Server) handleReject(c *gin.Context) {
	if s.cfg.Approvals == nil {
		notConfigured(c, "approvals")
		return
	}

	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "approver is required"})
		return
	}

	id := c.Param("id")
	if err := s.cfg.Approvals.RejectDecision(c.Request.Context(), id, req.Approver, req.Reason); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"approval_id": id, "status": "rejected"})
}

// Order endpoints

func (s *Server) handleListOrders(c *gin.Context) {
	if s.cfg.Orders == nil {
		notConfigured(c, "orders")
		return
	}

	all := s.cfg.Orders.List()

	status := c.Query("status")
	mp := c.Query("marketplace")
	filtered := make([]orders.UnifiedOrder, 0, len(all))
	for _, o := range all {
		if status != "" && string(o.Status) != status {
			continue
		}
		if mp != "" && string(o.Marketplace) != mp {
			continue
		}
		filtered = append(filtered, o)
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": filtered,
		"count":  len(filtered),
	})
}

func (s *Server) handleGetOrder(c *gin.Context) {
	if s.cfg.Orders == nil {
		notConfigured(c, "orders")
		return
	}

	order, ok := s.cfg.Orders.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, order)
}

// Agent endpoints

func (s *Server) handleListAgents(c *gin.Context) {
	if s.cfg.Agents == nil {
		notConfigured(c, "agents")
		return
	}

	entries := s.cfg.Agents.Agents()
	c.JSON(http.StatusOK, gin.H{
		"agents": entries,
		"count":  len(entries),
	})
}

func (s *Server) handleAgentPerformance(c *gin.Context) {
	if s.cfg.Agents == nil {
		notConfigured(c, "agents")
		return
	}
	c.JSON(http.StatusOK, s.cfg.Agents.MonitorAgentPerformance())
}

type agentMessageRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

// handleAgentMessage dispatches a message to one specialist agent
func (s *Server) handleAgentMessage(c *gin.Context) {
	if len(s.cfg.Specialists) == 0 {
		notConfigured(c, "specialists")
		return
	}

	specialist, ok := s.cfg.Specialists[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown agent: " + c.Param("id")})
		return
	}

	var req agentMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	resp, err := specialist.HandleMessage(c.Request.Context(), req.Message, req.ConversationID, req.UserID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Inventory endpoints

func (s *Server) handleListInventory(c *gin.Context) {
	if s.cfg.Inventory == nil {
		notConfigured(c, "inventory")
		return
	}

	skus := s.cfg.Inventory.SKUs()
	items := make([]interface{}, 0, len(skus))
	for _, sku := range skus {
		if item, ok := s.cfg.Inventory.Get(sku); ok {
			items = append(items, item)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) handleGetInventoryItem(c *gin.Context) {
	if s.cfg.Inventory == nil {
		notConfigured(c, "inventory")
		return
	}

	item, ok := s.cfg.Inventory.Get(c.Param("sku"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "sku not found"})
		return
	}
	c.JSON(http.StatusOK, item)
}

// Analytics endpoint

func (s *Server) handleAnalytics(c *gin.Context) {
	if s.cfg.Analytics == nil {
		notConfigured(c, "analytics")
		return
	}
	c.JSON(http.StatusOK, s.cfg.Analytics.Snapshot())
}
