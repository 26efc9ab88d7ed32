package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failingOp() (interface{}, error) { return nil, errors.New("failed") }
func okOp() (interface{}, error)      { return "ok", nil }

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{
			name: "stays closed on successes",
			settings: Settings{
				FailureThreshold: 3,
				FailureWindow:    time.Minute,
				ResetTimeout:     time.Minute,
			},
			requests:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name: "stays closed below threshold",
			settings: Settings{
				FailureThreshold: 3,
				FailureWindow:    time.Minute,
				ResetTimeout:     time.Minute,
			},
			requests:      []bool{false, false},
			expectedState: StateClosed,
		},
		{
			name: "opens at threshold",
			settings: Settings{
				FailureThreshold: 3,
				FailureWindow:    time.Minute,
				ResetTimeout:     time.Minute,
			},
			requests:      []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name: "interleaved successes do not prevent opening",
			settings: Settings{
				FailureThreshold: 3,
				FailureWindow:    time.Minute,
				ResetTimeout:     time.Minute,
			},
			requests:      []bool{false, true, false, true, false},
			expectedState: StateOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := New("test", tt.settings)

			for _, success := range tt.requests {
				if success {
					_, _ = breaker.Execute(okOp)
				} else {
					_, _ = breaker.Execute(failingOp)
				}
			}

			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerOpensExactlyOnce(t *testing.T) {
	var opens int
	breaker := New("test", Settings{
		FailureThreshold: 3,
		FailureWindow:    time.Minute,
		ResetTimeout:     time.Minute,
		OnStateChange: func(name string, from, to State) {
			if to == StateOpen {
				opens++
			}
		},
	})

	// More failures than the threshold: transition fires once
	for i := 0; i < 3; i++ {
		breaker.RecordFailure()
	}
	assert.Equal(t, StateOpen, breaker.State())
	assert.Equal(t, 1, opens)
	assert.False(t, breaker.Allows())
}

func TestBreakerWindowPruning(t *testing.T) {
	breaker := New("test", Settings{
		FailureThreshold: 3,
		FailureWindow:    50 * time.Millisecond,
		ResetTimeout:     time.Minute,
	})

	// Two failures, then let them age out of the window
	breaker.RecordFailure()
	breaker.RecordFailure()
	time.Sleep(60 * time.Millisecond)

	// Two more failures: only these are inside the window, so no trip
	breaker.RecordFailure()
	breaker.RecordFailure()
	assert.Equal(t, StateClosed, breaker.State())

	// A third within the window trips it
	breaker.RecordFailure()
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerOpenRejectsWithStats(t *testing.T) {
	breaker := New("test", Settings{
		FailureThreshold: 2,
		FailureWindow:    time.Minute,
		ResetTimeout:     time.Minute,
	})

	for i := 0; i < 2; i++ {
		_, _ = breaker.Execute(failingOp)
	}
	assert.Equal(t, StateOpen, breaker.State())

	_, err := breaker.Execute(okOp)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))

	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, StateOpen, openErr.Stats.State)
	assert.Equal(t, uint64(1), openErr.Stats.RejectedRequests)

	// Rejections are not failures
	assert.Equal(t, uint64(2), breaker.Stats().TotalFailures)
}

func TestBreakerHalfOpenAfterResetTimeout(t *testing.T) {
	breaker := New("test", Settings{
		FailureThreshold: 2,
		SuccessThreshold: 2,
		FailureWindow:    time.Minute,
		ResetTimeout:     50 * time.Millisecond,
	})

	breaker.RecordFailure()
	breaker.RecordFailure()
	assert.Equal(t, StateOpen, breaker.State())
	assert.False(t, breaker.Allows())

	time.Sleep(60 * time.Millisecond)

	// Lazily evaluated on the next check
	assert.True(t, breaker.Allows())
	assert.Equal(t, StateHalfOpen, breaker.State())

	// successThreshold consecutive probe successes close it
	breaker.RecordSuccess()
	assert.Equal(t, StateHalfOpen, breaker.State())
	breaker.RecordSuccess()
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	breaker := New("test", Settings{
		FailureThreshold: 2,
		SuccessThreshold: 2,
		FailureWindow:    time.Minute,
		ResetTimeout:     50 * time.Millisecond,
	})

	breaker.RecordFailure()
	breaker.RecordFailure()
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, StateHalfOpen, breaker.State())

	// A single half-open failure restarts the open timer
	breaker.RecordFailure()
	assert.Equal(t, StateOpen, breaker.State())
	assert.False(t, breaker.Allows())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, breaker.State())
}

func TestBreakerReset(t *testing.T) {
	breaker := New("test", Settings{
		FailureThreshold: 2,
		FailureWindow:    time.Minute,
		ResetTimeout:     time.Minute,
	})

	breaker.RecordFailure()
	breaker.RecordFailure()
	require.Equal(t, StateOpen, breaker.State())

	breaker.Reset()

	assert.Equal(t, StateClosed, breaker.State())
	assert.True(t, breaker.Allows())

	stats := breaker.Stats()
	assert.Equal(t, 0, stats.WindowFailures)
	// Lifetime totals survive a reset
	assert.Equal(t, uint64(2), stats.TotalFailures)
}

func TestBreakerConcreteScenario(t *testing.T) {
	// failureThreshold 3, resetTimeout 100ms, successThreshold 2, window 1s
	breaker := New("bridge", Settings{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		ResetTimeout:     100 * time.Millisecond,
		FailureWindow:    time.Second,
	})

	for i := 0; i < 3; i++ {
		_, _ = breaker.Execute(failingOp)
	}
	require.Equal(t, StateOpen, breaker.State())

	// One attempted call while open increments rejected by exactly one
	_, err := breaker.Execute(okOp)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.Equal(t, uint64(1), breaker.Stats().RejectedRequests)

	time.Sleep(150 * time.Millisecond)
	require.Equal(t, StateHalfOpen, breaker.State())

	for i := 0; i < 2; i++ {
		_, err := breaker.Execute(okOp)
		require.NoError(t, err)
	}
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, uint64(1), breaker.Stats().RejectedRequests)
}

func TestBreakerExecutePropagatesResult(t *testing.T) {
	breaker := New("test", Settings{})

	result, err := breaker.Execute(func() (interface{}, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)

	opErr := errors.New("boom")
	_, err = breaker.Execute(func() (interface{}, error) {
		return nil, opErr
	})
	assert.Equal(t, opErr, err)
}

func TestBreakerConcurrentRecording(t *testing.T) {
	breaker := New("test", Settings{
		FailureThreshold: 1000,
		FailureWindow:    time.Minute,
		ResetTimeout:     time.Minute,
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if (n+j)%2 == 0 {
					breaker.RecordSuccess()
				} else {
					breaker.RecordFailure()
				}
			}
		}(i)
	}
	wg.Wait()

	stats := breaker.Stats()
	assert.Equal(t, uint64(200), stats.TotalSuccesses)
	assert.Equal(t, uint64(200), stats.TotalFailures)
	assert.Equal(t, StateClosed, stats.State)
}

func TestBreakerEvents(t *testing.T) {
	breaker := New("test", Settings{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		FailureWindow:    time.Minute,
		ResetTimeout:     10 * time.Millisecond,
	})

	events, cancel := breaker.Events().Subscribe("*")
	defer cancel()

	breaker.RecordFailure()
	breaker.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, breaker.State())
	breaker.RecordSuccess()

	var kinds []string
	for len(events) > 0 {
		kinds = append(kinds, (<-events).Kind)
	}

	assert.Contains(t, kinds, EventFailure)
	assert.Contains(t, kinds, EventOpen)
	assert.Contains(t, kinds, EventHalfOpen)
	assert.Contains(t, kinds, EventClose)
	assert.Contains(t, kinds, EventSuccess)
}
