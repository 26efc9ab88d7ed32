/*
Package resilience provides the circuit breaker guarding the editor bridge.

# Overview

The breaker prevents the server from hammering an unavailable editor peer:
after repeated failures it rejects new attempts outright, then periodically
admits probe calls to detect recovery.

# States

  - Closed: normal operation, attempts pass through
  - Open: peer considered unhealthy, attempts rejected immediately
  - Half-Open: trial period, limited probe attempts admitted

# Transitions

	Closed --[threshold failures in window]-> Open
	Open --[reset timeout elapsed]-> Half-Open
	Half-Open --[consecutive probe successes]-> Closed
	Half-Open --[any failure]-> Open

Failures are counted against a sliding window: a timestamped log pruned on
each check, so bursts separated by more than the window never accumulate.
The open-to-half-open transition is evaluated lazily on the next allowance
check rather than by a background timer.

# Usage

	breaker := resilience.New("bridge", resilience.Settings{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     30 * time.Second,
		FailureWindow:    60 * time.Second,
	})

	result, err := breaker.Execute(func() (interface{}, error) {
		return client.Call()
	})

Callers that classify outcomes themselves (the bridge client does not count
peer-reported errors as circuit failures) use Allow/RecordSuccess/
RecordFailure directly instead of Execute.

Every transition plus per-call success/failure/rejection is published on the
bus returned by Events().
*/
package resilience
