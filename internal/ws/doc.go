// Package ws streams bridge connectivity and circuit breaker events over
// WebSocket so clients can track editor availability without polling.
package ws
