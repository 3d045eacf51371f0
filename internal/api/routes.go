package api

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.handleGetStatus)
		v1.GET("/health", s.handleGetHealth)

		v1.POST("/pause", s.handlePause)
		v1.POST("/resume", s.handleResume)

		decisions := v1.Group("/decisions")
		{
			decisions.GET("", s.handleListDecisions)
			decisions.GET("/stats", s.handleDecisionStats)
			decisions.GET("/:id", s.handleGetDecision)
		}

		approvals := v1.Group("/approvals")
		{
			approvals.POST("/:id/approve", s.handleApprove)
			approvals.POST("/:id/reject", s.handleReject)
		}

		orders := v1.Group("/orders")
		{
			orders.GET("", s.handleListOrders)
			orders.GET("/:id", s.handleGetOrder)
		}

		agents := v1.Group("/agents")
		{
			agents.GET("", s.handleListAgents)
			agents.GET("/performance", s.handleAgentPerformance)
			agents.POST("/:id/message", s.handleAgentMessage)
		}

		inventory := v1.Group("/inventory")
		{
			inventory.GET("", s.handleListInventory)
			inventory.GET("/:sku", s.handleGetInventoryItem)
		}

		v1.GET("/analytics", s.handleAnalytics)
	}

	s.router.GET("/", s.handleRoot)
}
