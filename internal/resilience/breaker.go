package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/enginebridge/backend/internal/pubsub"
)

// ErrCircuitOpen is matched by errors.Is against *OpenError.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Event kinds published on the breaker's bus.
const (
	EventOpen     = "open"
	EventClose    = "close"
	EventHalfOpen = "half_open"
	EventSuccess  = "success"
	EventFailure  = "failure"
	EventRejected = "rejected"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// FailureThreshold is the number of failures within FailureWindow that trips the breaker
	FailureThreshold int
	// SuccessThreshold is the number of consecutive half-open probes required to close
	SuccessThreshold int
	// ResetTimeout is the period of the open state until transitioning to half-open
	ResetTimeout time.Duration
	// FailureWindow is the sliding window within which failures are counted
	FailureWindow time.Duration
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from State, to State)
}

// Stats is a read-only snapshot of breaker counters
type Stats struct {
	State            State     `json:"state"`
	WindowFailures   int       `json:"window_failures"`
	ProbeSuccesses   int       `json:"probe_successes"`
	TotalRequests    uint64    `json:"total_requests"`
	TotalSuccesses   uint64    `json:"total_successes"`
	TotalFailures    uint64    `json:"total_failures"`
	RejectedRequests uint64    `json:"rejected_requests"`
	LastFailureTime  time.Time `json:"last_failure_time"`
	LastSuccessTime  time.Time `json:"last_success_time"`
}

// OpenError is returned when the breaker refuses an attempt. It carries a
// stats snapshot so callers can distinguish "the peer failed" from "we
// refused to even ask", and report why.
type OpenError struct {
	Name  string
	Stats Stats
}

func (e *OpenError) Error() string {
	return "circuit breaker is open: " + e.Name
}

// Is reports a match against the ErrCircuitOpen sentinel.
func (e *OpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// Breaker implements the circuit breaker pattern with a sliding failure
// window. Failure counting uses a timestamp log pruned to the window on each
// check, so bursty failures separated by more than the window never
// accumulate. Open-to-half-open is evaluated lazily on the next allowance
// check; no background timer runs.
type Breaker struct {
	name     string
	settings Settings
	bus      *pubsub.Bus

	mu             sync.Mutex
	state          State
	failureLog     []time.Time
	probeSuccesses int
	openedAt       time.Time

	totalRequests    uint64
	totalSuccesses   uint64
	totalFailures    uint64
	rejectedRequests uint64
	lastFailureTime  time.Time
	lastSuccessTime  time.Time
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = 2
	}
	if settings.ResetTimeout <= 0 {
		settings.ResetTimeout = 30 * time.Second
	}
	if settings.FailureWindow <= 0 {
		settings.FailureWindow = 60 * time.Second
	}

	return &Breaker{
		name:     name,
		settings: settings,
		bus:      pubsub.New(),
		state:    StateClosed,
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// Events returns the bus carrying transition and per-call events.
func (b *Breaker) Events() *pubsub.Bus {
	return b.bus
}

// State returns the current state, evaluating a pending open-to-half-open
// transition first.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(time.Now())
	return b.state
}

// Stats returns a snapshot of the breaker counters
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.advance(now)
	b.pruneLocked(now)
	return b.statsLocked()
}

// Allows reports whether a new attempt would currently be admitted.
// True when closed or half-open; false while open and the reset timeout
// has not yet elapsed.
func (b *Breaker) Allows() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advance(time.Now())
	return b.state != StateOpen
}

// Allow admits one attempt or returns an *OpenError carrying a stats
// snapshot. Refused attempts count as rejections, never as failures.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.advance(now)

	if b.state == StateOpen {
		b.rejectedRequests++
		b.bus.Publish(EventRejected, map[string]interface{}{"name": b.name})
		return &OpenError{Name: b.name, Stats: b.statsLocked()}
	}

	b.totalRequests++
	return nil
}

// RecordSuccess records a successful attempt and may close the breaker
// when enough half-open probes have succeeded.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	now := time.Now()
	b.advance(now)

	b.totalSuccesses++
	b.lastSuccessTime = now

	switch b.state {
	case StateHalfOpen:
		b.probeSuccesses++
		if b.probeSuccesses >= b.settings.SuccessThreshold {
			b.setStateLocked(StateClosed, now)
		}
	case StateClosed:
		// Window-based counting: a success does not erase recorded failures.
	}
	b.mu.Unlock()

	b.bus.Publish(EventSuccess, map[string]interface{}{"name": b.name})
}

// RecordFailure records a failed attempt. Crossing the failure threshold
// within the window, or any failure while half-open, opens the breaker.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	now := time.Now()
	b.advance(now)

	b.totalFailures++
	b.lastFailureTime = now

	switch b.state {
	case StateClosed:
		b.failureLog = append(b.failureLog, now)
		b.pruneLocked(now)
		if len(b.failureLog) >= b.settings.FailureThreshold {
			b.setStateLocked(StateOpen, now)
		}
	case StateHalfOpen:
		// Any failure during the trial period reopens and restarts the timer.
		b.setStateLocked(StateOpen, now)
	}
	b.mu.Unlock()

	b.bus.Publish(EventFailure, map[string]interface{}{"name": b.name})
}

// Execute runs the given operation if the breaker admits it, recording the
// outcome. The operation's own result and error are returned unchanged.
func (b *Breaker) Execute(op func() (interface{}, error)) (interface{}, error) {
	if err := b.Allow(); err != nil {
		return nil, err
	}

	result, err := op()
	if err != nil {
		b.RecordFailure()
	} else {
		b.RecordSuccess()
	}
	return result, err
}

// Reset forces the breaker closed and clears the failure window. Lifetime
// totals are preserved for observability.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.setStateLocked(StateClosed, time.Now())
	b.failureLog = nil
	b.probeSuccesses = 0
	b.mu.Unlock()
}

// advance applies the lazy open-to-half-open transition. Caller holds b.mu.
func (b *Breaker) advance(now time.Time) {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.settings.ResetTimeout {
		b.setStateLocked(StateHalfOpen, now)
	}
}

// pruneLocked drops failure timestamps older than the window. Caller holds b.mu.
func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.settings.FailureWindow)
	kept := b.failureLog[:0]
	for _, ts := range b.failureLog {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.failureLog = kept
}

// setStateLocked changes state and fires notifications. Caller holds b.mu.
func (b *Breaker) setStateLocked(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state

	switch state {
	case StateOpen:
		b.openedAt = now
	case StateHalfOpen:
		b.probeSuccesses = 0
	case StateClosed:
		b.failureLog = nil
		b.probeSuccesses = 0
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}

	kind := EventClose
	switch state {
	case StateOpen:
		kind = EventOpen
	case StateHalfOpen:
		kind = EventHalfOpen
	}
	// The bus never blocks, so publishing under the lock preserves ordering.
	b.bus.Publish(kind, map[string]interface{}{
		"name": b.name,
		"from": prev.String(),
		"to":   state.String(),
	})
}

// statsLocked builds a snapshot. Caller holds b.mu.
func (b *Breaker) statsLocked() Stats {
	return Stats{
		State:            b.state,
		WindowFailures:   len(b.failureLog),
		ProbeSuccesses:   b.probeSuccesses,
		TotalRequests:    b.totalRequests,
		TotalSuccesses:   b.totalSuccesses,
		TotalFailures:    b.totalFailures,
		RejectedRequests: b.rejectedRequests,
		LastFailureTime:  b.lastFailureTime,
		LastSuccessTime:  b.lastSuccessTime,
	}
}
