package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/enginebridge/backend/internal/logging"
	"github.com/enginebridge/backend/internal/pubsub"
	"github.com/enginebridge/backend/internal/resilience"
	"github.com/enginebridge/backend/internal/shared/id"
)

// Connection lifecycle event kinds published on the client's bus. Unsolicited
// peer events are published under their own event name.
const (
	EventConnected    = "bridge.connected"
	EventDisconnected = "bridge.disconnected"
	EventReconnecting = "bridge.reconnecting"
)

// reconnectCapMultiplier caps the linear backoff growth.
const reconnectCapMultiplier = 5

// Config holds the client's connection and timing parameters.
type Config struct {
	Host                 string
	Port                 int
	ConnectTimeout       time.Duration
	RequestTimeout       time.Duration
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
}

// DefaultConfig returns production-ready client configuration.
func DefaultConfig() Config {
	return Config{
		Host:                 "127.0.0.1",
		Port:                 6400,
		ConnectTimeout:       5 * time.Second,
		RequestTimeout:       10 * time.Second,
		ReconnectInterval:    2 * time.Second,
		MaxReconnectAttempts: 10,
	}
}

// Addr returns the host:port dial target.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Status is the derived connection state exposed for telemetry. Computed on
// demand, never persisted.
type Status struct {
	Connected         bool      `json:"connected"`
	CircuitState      string    `json:"circuit_state"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
	LastMessageTime   time.Time `json:"last_message_time"`
	PendingCalls      int       `json:"pending_calls"`
}

type callOutcome struct {
	env *ResultEnvelope
	err error
}

// pendingCall is one in-flight request. Exactly one of {matching response,
// timeout, connection loss} delivers its outcome; whichever fires first
// removes the entry from the pending table, making the others no-ops.
type pendingCall struct {
	id        string
	action    string
	done      chan callOutcome // buffered 1: the winning resolver never blocks
	startTime time.Time
}

// Client multiplexes concurrent logical calls over one connection to the
// editor peer, correlating responses by id and enforcing per-call deadlines.
// Connection attempts and transport failures are tracked by the owned
// circuit breaker; peer-reported errors are not.
type Client struct {
	cfg       Config
	transport Transport
	breaker   *resilience.Breaker
	logger    *logging.Logger
	bus       *pubsub.Bus

	// writeMu serializes frame writes so they never interleave.
	writeMu sync.Mutex

	// mu guards everything below.
	mu                sync.Mutex
	conn              Conn
	gen               int // connection generation, invalidates stale readers
	pending           map[string]*pendingCall
	reconnectAttempts int
	reconnectTimer    *time.Timer
	closing           bool
	lastMessageTime   time.Time
}

// NewClient creates a bridge client. The breaker is owned by the client but
// constructed by the caller so its settings and events stay configurable.
func NewClient(cfg Config, transport Transport, breaker *resilience.Breaker, logger *logging.Logger) *Client {
	return &Client{
		cfg:       cfg,
		transport: transport,
		breaker:   breaker,
		logger:    logger.Named("bridge"),
		bus:       pubsub.New(),
		pending:   make(map[string]*pendingCall),
	}
}

// Breaker exposes the owned circuit breaker for introspection.
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// Events returns the bus carrying connection lifecycle and peer events.
func (c *Client) Events() *pubsub.Bus {
	return c.bus
}

// Connected reports whether the connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Status returns the current connection status snapshot.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Status{
		Connected:         c.conn != nil,
		CircuitState:      c.breaker.State().String(),
		ReconnectAttempts: c.reconnectAttempts,
		LastMessageTime:   c.lastMessageTime,
		PendingCalls:      len(c.pending),
	}
}

// Connect establishes the connection, guarded by the circuit breaker.
// Idempotent when already connected. A failed dial counts as a circuit
// failure.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.closing = false
	c.mu.Unlock()

	if err := c.breaker.Allow(); err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout)
	defer cancel()

	conn, err := c.transport.Dial(dialCtx, c.cfg.Addr())
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("dial %s: %w", c.cfg.Addr(), err)
	}
	c.breaker.RecordSuccess()

	c.mu.Lock()
	if c.conn != nil {
		// A concurrent Connect won the race.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.gen++
	gen := c.gen
	c.reconnectAttempts = 0
	c.lastMessageTime = time.Now()
	c.mu.Unlock()

	go c.readLoop(conn, gen)

	c.logger.Info("connected to editor peer", zap.String("addr", c.cfg.Addr()))
	c.bus.Publish(EventConnected, map[string]interface{}{"addr": c.cfg.Addr()})
	return nil
}

// Disconnect closes the connection, cancels any pending reconnect timer, and
// rejects every outstanding call with ErrClientDisconnected. The pending
// table is empty afterwards.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	c.closing = true
	c.gen++ // readers of the old connection become no-ops
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.reconnectAttempts = 0
	calls := c.drainPendingLocked()
	c.mu.Unlock()

	for _, pc := range calls {
		pc.done <- callOutcome{err: ErrClientDisconnected}
	}

	var err error
	if conn != nil {
		err = conn.Close()
		c.logger.Info("disconnected from editor peer", zap.Int("rejected_calls", len(calls)))
		c.bus.Publish(EventDisconnected, map[string]interface{}{"reason": "client request"})
	}
	return err
}

// Call sends one action to the peer and waits for whichever of {matching
// response, deadline, connection loss} happens first.
func (c *Client) Call(ctx context.Context, action string, params map[string]interface{}) (*ResultEnvelope, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		// Local precondition, not a circuit failure.
		return nil, ErrNotConnected
	}

	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	pc := &pendingCall{
		id:        id.NewCallID().String(),
		action:    action,
		done:      make(chan callOutcome, 1),
		startTime: time.Now(),
	}

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	conn = c.conn
	c.pending[pc.id] = pc
	c.mu.Unlock()

	data, err := json.Marshal(CallEnvelope{ID: pc.id, Action: action, Params: params})
	if err != nil {
		c.takePending(pc.id)
		return nil, fmt.Errorf("encode call %q: %w", action, err)
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(data)
	c.writeMu.Unlock()
	if err != nil {
		if c.takePending(pc.id) {
			c.breaker.RecordFailure()
			return nil, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}
		// The read loop already rejected this call; consume its outcome.
		return c.finish(action, <-pc.done)
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case out := <-pc.done:
		return c.finish(action, out)

	case <-timer.C:
		if c.takePending(pc.id) {
			c.breaker.RecordFailure()
			c.logger.Warn("call timed out",
				zap.String("action", action),
				zap.String("call_id", pc.id),
				zap.Duration("timeout", c.cfg.RequestTimeout))
			return nil, &TimeoutError{Action: action, Timeout: c.cfg.RequestTimeout}
		}
		// Response arrived between deadline and removal.
		return c.finish(action, <-pc.done)

	case <-ctx.Done():
		if c.takePending(pc.id) {
			return nil, ctx.Err()
		}
		return c.finish(action, <-pc.done)
	}
}

// finish classifies a delivered outcome and records it against the breaker.
func (c *Client) finish(action string, out callOutcome) (*ResultEnvelope, error) {
	if out.err != nil {
		if out.err == ErrConnectionClosed {
			c.breaker.RecordFailure()
		}
		// ErrClientDisconnected is caller-initiated: no breaker record.
		return nil, out.err
	}

	env := out.env
	if !env.Success {
		// The peer is alive and answering; its rejection is authoritative
		// and does not move the breaker.
		peerErr := &PeerError{Action: action}
		if env.Error != nil {
			peerErr.Code = env.Error.Code
			peerErr.Message = env.Error.Message
		}
		return nil, peerErr
	}

	c.breaker.RecordSuccess()
	return env, nil
}

// takePending removes a call from the pending table, reporting whether this
// caller won the removal race.
func (c *Client) takePending(callID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[callID]; !ok {
		return false
	}
	delete(c.pending, callID)
	return true
}

// drainPendingLocked empties the pending table. Caller holds c.mu.
func (c *Client) drainPendingLocked() []*pendingCall {
	calls := make([]*pendingCall, 0, len(c.pending))
	for _, pc := range c.pending {
		calls = append(calls, pc)
	}
	c.pending = make(map[string]*pendingCall)
	return calls
}

// readLoop reads frames until the connection fails, then hands off to the
// disconnect path. gen identifies which connection this loop belongs to.
func (c *Client) readLoop(conn Conn, gen int) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(gen, err)
			return
		}
		c.dispatch(data)
	}
}

// dispatch routes one incoming frame by shape.
func (c *Client) dispatch(data []byte) {
	f, err := decodeFrame(data)
	if err != nil {
		// Malformed frames are logged and dropped, never surfaced as call
		// failures.
		c.logger.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	c.mu.Lock()
	c.lastMessageTime = time.Now()
	c.mu.Unlock()

	switch {
	case f.ID != "":
		c.resolve(f)
	case f.Event != "":
		c.bus.Publish(f.Event, f.Payload)
	default:
		c.logger.Warn("dropping frame with neither id nor event")
	}
}

// resolve completes the pending call matching the frame's id, if any.
func (c *Client) resolve(f *frame) {
	c.mu.Lock()
	pc, ok := c.pending[f.ID]
	if ok {
		delete(c.pending, f.ID)
	}
	c.mu.Unlock()

	if !ok {
		// Late response after timeout, or an id we never issued.
		c.logger.Debug("dropping unmatched response", zap.String("call_id", f.ID))
		return
	}

	pc.done <- callOutcome{env: &ResultEnvelope{
		ID:      f.ID,
		Success: f.Success,
		Result:  f.Result,
		Error:   f.Error,
	}}
}

// handleClosed reacts to an unexpected connection loss: rejects all pending
// calls and schedules a reconnect. Explicit disconnects bump the generation
// first, making this a no-op for their reader.
func (c *Client) handleClosed(gen int, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	calls := c.drainPendingLocked()
	if !c.closing {
		c.scheduleReconnectLocked()
	}
	c.mu.Unlock()

	for _, pc := range calls {
		pc.done <- callOutcome{err: ErrConnectionClosed}
	}

	c.logger.Warn("connection to editor peer lost",
		zap.Error(cause),
		zap.Int("rejected_calls", len(calls)))
	c.bus.Publish(EventDisconnected, map[string]interface{}{"reason": cause.Error()})
}

// scheduleReconnectLocked arms the reconnect timer with linear backoff capped
// at reconnectCapMultiplier. Only one timer is ever pending. Caller holds c.mu.
func (c *Client) scheduleReconnectLocked() {
	if c.reconnectTimer != nil {
		return
	}
	if c.reconnectAttempts >= c.cfg.MaxReconnectAttempts {
		c.logger.Error("giving up on reconnection",
			zap.Int("attempts", c.reconnectAttempts))
		return
	}

	c.reconnectAttempts++
	attempt := c.reconnectAttempts

	multiplier := attempt
	if multiplier > reconnectCapMultiplier {
		multiplier = reconnectCapMultiplier
	}
	delay := c.cfg.ReconnectInterval * time.Duration(multiplier)

	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
		err := c.Connect(ctx)
		cancel()
		if err != nil {
			c.logger.Warn("reconnect attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			c.mu.Lock()
			if !c.closing {
				c.scheduleReconnectLocked()
			}
			c.mu.Unlock()
		}
	})

	c.logger.Info("reconnect scheduled",
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay))
	c.bus.Publish(EventReconnecting, map[string]interface{}{
		"attempt": attempt,
		"delay":   delay.String(),
	})
}
