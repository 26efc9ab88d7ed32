// Package types defines shared data structures used across the bridge server.
//
// These types form the contract between the tool dispatch layer, the bridge
// executor, and the HTTP API: service/tool definitions for discovery, and the
// uniform Result shape every execution path normalizes into.
package types
