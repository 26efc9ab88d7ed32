// Package server wires configuration, logging, the editor bridge, the
// service registry, and the HTTP surface into one runnable unit.
package server
