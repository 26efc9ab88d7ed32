package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/enginebridge/backend/internal/logging"
	"github.com/enginebridge/backend/internal/resilience"
	"github.com/enginebridge/backend/internal/shared/types"
)

// Fallback is the alternate execution path invoked when the live channel is
// unavailable or fails for transport reasons.
type Fallback func(ctx context.Context) (*types.Result, error)

// Observer receives execution telemetry. Implemented by the monitoring
// package; a nil observer disables it.
type Observer interface {
	CallCompleted(action, outcome string, duration time.Duration)
	FallbackInvoked(action string)
}

// Executor routes each named action to the live channel or the fallback and
// normalizes whichever path ran into one uniform result shape.
//
// The routing rule: transport-class failures (not connected, circuit open,
// timeout, connection closed) fall back; a peer-reported error is
// authoritative and is returned directly, because falling back after the
// peer already answered could silently produce an inconsistent result for
// the same logical action.
type Executor struct {
	client   *Client
	logger   *logging.Logger
	observer Observer
}

// NewExecutor creates an executor over the given bridge client.
func NewExecutor(client *Client, logger *logging.Logger) *Executor {
	return &Executor{
		client: client,
		logger: logger.Named("executor"),
	}
}

// SetObserver wires execution telemetry.
func (e *Executor) SetObserver(o Observer) {
	e.observer = o
}

// Client returns the underlying bridge client.
func (e *Executor) Client() *Client {
	return e.client
}

// IsAvailable reports whether an Invoke would currently attempt the live
// channel, without performing a call. For UI and telemetry use.
func (e *Executor) IsAvailable() bool {
	return e.client.Connected() && e.client.Breaker().State() != resilience.StateOpen
}

// Invoke executes a named action, preferring the live channel and falling
// back on transport failure. The fallback's own result and error are
// returned verbatim; no composite error is synthesized. With no fallback
// the transport error itself is returned: ErrNotConnected when the channel
// is down, the breaker's open error when it is refusing.
func (e *Executor) Invoke(ctx context.Context, action string, params map[string]interface{}, fallback Fallback) (*types.Result, error) {
	if e.client.Connected() {
		start := time.Now()
		env, err := e.client.Call(ctx, action, params)
		if err == nil {
			e.observe(action, "success", time.Since(start))
			return normalizeSuccess(env.Result), nil
		}

		var peerErr *PeerError
		if errors.As(err, &peerErr) {
			// The peer is reachable and its answer is authoritative.
			e.observe(action, "peer_error", time.Since(start))
			return peerResult(peerErr), nil
		}

		if !IsTransportFailure(err) {
			// Caller cancellation and other non-transport errors propagate.
			e.observe(action, "error", time.Since(start))
			return nil, err
		}

		e.observe(action, transportOutcome(err), time.Since(start))
		if fallback == nil {
			return nil, err
		}
		e.logger.Info("live channel unavailable, using fallback",
			zap.String("action", action),
			zap.Error(err))
	}

	if fallback == nil {
		return nil, ErrNotConnected
	}

	if e.observer != nil {
		e.observer.FallbackInvoked(action)
	}
	return fallback(ctx)
}

func (e *Executor) observe(action, outcome string, duration time.Duration) {
	if e.observer != nil {
		e.observer.CallCompleted(action, outcome, duration)
	}
}

func transportOutcome(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	default:
		return "connection_closed"
	}
}

// normalizeSuccess renders a successful payload into the uniform result
// shape: nil becomes a generic completion message, a string passes through,
// anything structured is carried (serialized if it is not already a map).
func normalizeSuccess(result interface{}) *types.Result {
	switch v := result.(type) {
	case nil:
		return types.Ok(map[string]interface{}{"message": "operation completed"})
	case string:
		return types.Ok(map[string]interface{}{"message": v})
	case map[string]interface{}:
		return types.Ok(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return types.Ok(map[string]interface{}{"message": "operation completed"})
		}
		return types.Ok(map[string]interface{}{"result": json.RawMessage(data)})
	}
}

// peerResult surfaces the peer's own error code and message verbatim.
func peerResult(peerErr *PeerError) *types.Result {
	result := types.Fail(peerErr.Message)
	if peerErr.Message == "" {
		result = types.Fail("the editor rejected the request")
	}
	if peerErr.Code != "" {
		result.Data = map[string]interface{}{"code": peerErr.Code}
	}
	return result
}
