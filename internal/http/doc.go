// Package http contains the Gin handlers for the tool server REST API:
// service listing and discovery, tool execution, bridge status and control.
package http
