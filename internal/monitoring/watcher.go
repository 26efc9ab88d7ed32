package monitoring

import (
	"github.com/enginebridge/backend/internal/bridge"
	"github.com/enginebridge/backend/internal/pubsub"
	"github.com/enginebridge/backend/internal/resilience"
)

// WatchBridge subscribes to the client's lifecycle events and mirrors them
// into the connection and reconnect metrics. Returns a cancel function.
func (m *Metrics) WatchBridge(client *bridge.Client) func() {
	events, cancel := client.Events().Subscribe(pubsub.KindAll)
	go func() {
		for evt := range events {
			switch evt.Kind {
			case bridge.EventConnected:
				m.SetBridgeConnected(true)
			case bridge.EventDisconnected:
				m.SetBridgeConnected(false)
			case bridge.EventReconnecting:
				m.IncBridgeReconnects()
			}
		}
	}()
	return cancel
}

// WatchBreaker mirrors breaker state transitions into the state gauge.
// Returns a cancel function.
func (m *Metrics) WatchBreaker(breaker *resilience.Breaker) func() {
	events, cancel := breaker.Events().Subscribe(pubsub.KindAll)
	go func() {
		for evt := range events {
			switch evt.Kind {
			case resilience.EventOpen:
				m.SetBreakerState(resilience.StateOpen)
			case resilience.EventClose:
				m.SetBreakerState(resilience.StateClosed)
			case resilience.EventHalfOpen:
				m.SetBreakerState(resilience.StateHalfOpen)
			}
		}
	}()
	return cancel
}
