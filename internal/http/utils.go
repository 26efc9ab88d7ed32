package http

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/enginebridge/backend/internal/resilience"
)

// breakerJSON renders breaker stats with the state as a string.
func breakerJSON(stats resilience.Stats) gin.H {
	return gin.H{
		"state":             stats.State.String(),
		"window_failures":   stats.WindowFailures,
		"probe_successes":   stats.ProbeSuccesses,
		"total_requests":    stats.TotalRequests,
		"total_successes":   stats.TotalSuccesses,
		"total_failures":    stats.TotalFailures,
		"rejected_requests": stats.RejectedRequests,
	}
}

// splitToolID separates "service.tool" into its parts for metric labels.
func splitToolID(toolID string) (string, string) {
	parts := strings.SplitN(toolID, ".", 2)
	if len(parts) < 2 {
		return toolID, ""
	}
	return parts[0], parts[1]
}
