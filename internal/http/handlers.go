package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/enginebridge/backend/internal/bridge"
	"github.com/enginebridge/backend/internal/monitoring"
	"github.com/enginebridge/backend/internal/service"
	"github.com/enginebridge/backend/internal/shared/id"
	"github.com/enginebridge/backend/internal/shared/types"
	"github.com/enginebridge/backend/internal/utils"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	registry *service.Registry
	executor *bridge.Executor
	metrics  *monitoring.Metrics
}

// NewHandlers creates a new handler set
func NewHandlers(registry *service.Registry, executor *bridge.Executor, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		registry: registry,
		executor: executor,
		metrics:  metrics,
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Engine Bridge Service",
		"version": "0.3.0",
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	status := h.executor.Client().Status()
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"bridge":           status,
		"editor_available": h.executor.IsAvailable(),
		"service_registry": h.registry.Stats(),
	})
}

// Status reports the bridge connection, breaker stats, and call counters
func (h *Handlers) Status(c *gin.Context) {
	client := h.executor.Client()
	stats := client.Breaker().Stats()

	resp := gin.H{
		"bridge":  client.Status(),
		"breaker": breakerJSON(stats),
	}
	if h.metrics != nil {
		snap := h.metrics.Snapshot()
		resp["counters"] = gin.H{
			"http_requests":    snap.TotalRequests,
			"http_errors":      snap.TotalErrors,
			"bridge_calls":     snap.BridgeCalls,
			"bridge_fallbacks": snap.BridgeFallbacks,
			"uptime_seconds":   snap.UptimeSeconds,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ListServices lists all available services
func (h *Handlers) ListServices(c *gin.Context) {
	categoryStr := c.Query("category")

	var category *types.Category
	if categoryStr != "" {
		cat := types.Category(categoryStr)
		category = &cat
	}

	services := h.registry.List(category)
	stats := h.registry.Stats()

	c.JSON(http.StatusOK, gin.H{
		"services": services,
		"stats":    stats,
	})
}

// DiscoverServices discovers relevant services for an intent
func (h *Handlers) DiscoverServices(c *gin.Context) {
	var req types.DiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := utils.ValidateIntent(req.Intent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 5
	}

	services := h.registry.Discover(req.Intent, limit)

	c.JSON(http.StatusOK, gin.H{
		"query":    req.Intent,
		"services": services,
	})
}

// ExecuteService executes a service tool
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := utils.ValidateToolID(req.ToolID, true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateParams(req.Params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requestID := string(id.NewRequestID())
	reqCtx := &types.Context{RequestID: &requestID}

	result, err := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params, reqCtx)

	if h.metrics != nil {
		serviceID, toolName := splitToolID(req.ToolID)
		status := "success"
		if result == nil || !result.Success {
			status = "error"
		}
		h.metrics.RecordToolExecution(serviceID, toolName, status)
	}

	if err != nil && result == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Tool failures keep the uniform result shape with a 200; the result
	// body carries success=false and the error message.
	c.JSON(http.StatusOK, result)
}

// ConnectBridge establishes the editor connection on demand
func (h *Handlers) ConnectBridge(c *gin.Context) {
	if err := h.executor.Client().Connect(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true})
}

// DisconnectBridge tears the editor connection down
func (h *Handlers) DisconnectBridge(c *gin.Context) {
	if err := h.executor.Client().Disconnect(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": false})
}

// ResetBreaker clears the circuit breaker back to closed
func (h *Handlers) ResetBreaker(c *gin.Context) {
	breaker := h.executor.Client().Breaker()
	breaker.Reset()
	c.JSON(http.StatusOK, gin.H{
		"breaker": breakerJSON(breaker.Stats()),
	})
}
