// Package cli runs the game engine binary in headless mode. Providers use
// it as the fallback execution path when the editor bridge is down.
package cli
