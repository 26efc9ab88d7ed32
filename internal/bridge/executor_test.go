package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enginebridge/backend/internal/logging"
	"github.com/enginebridge/backend/internal/resilience"
	"github.com/enginebridge/backend/internal/shared/types"
)

func testExecutor(t *testing.T, cfg Config) (*Executor, *fakeTransport) {
	t.Helper()
	client, ft := testClient(t, cfg)
	return NewExecutor(client, logging.NewNop()), ft
}

// respondToNextCall answers the next call on the connection.
func respondToNextCall(t *testing.T, conn *fakeConn, build func(call CallEnvelope) ResultEnvelope) {
	t.Helper()
	go func() {
		call := conn.receiveCall(t)
		conn.respond(t, build(call))
	}()
}

func TestInvokeSuccessOverLiveChannel(t *testing.T) {
	exec, ft := testExecutor(t, testConfig())
	require.NoError(t, exec.Client().Connect(context.Background()))

	respondToNextCall(t, ft.latest(), func(call CallEnvelope) ResultEnvelope {
		return ResultEnvelope{ID: call.ID, Success: true, Result: map[string]interface{}{"scene": "main"}}
	})

	fallbackCalled := false
	result, err := exec.Invoke(context.Background(), "get_scene", nil, func(ctx context.Context) (*types.Result, error) {
		fallbackCalled = true
		return types.Ok(nil), nil
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "main", result.Data["scene"])
	assert.False(t, fallbackCalled)
}

func TestInvokePeerErrorNeverFallsBack(t *testing.T) {
	exec, ft := testExecutor(t, testConfig())
	require.NoError(t, exec.Client().Connect(context.Background()))

	respondToNextCall(t, ft.latest(), func(call CallEnvelope) ResultEnvelope {
		return ResultEnvelope{
			ID:      call.ID,
			Success: false,
			Error:   &PeerErrorInfo{Code: "E_NO_SCENE", Message: "no scene is open"},
		}
	})

	fallbackCalled := false
	result, err := exec.Invoke(context.Background(), "get_scene", nil, func(ctx context.Context) (*types.Result, error) {
		fallbackCalled = true
		return types.Ok(nil), nil
	})

	require.NoError(t, err)
	assert.False(t, fallbackCalled, "peer rejection is authoritative; fallback must not run")
	assert.False(t, result.Success)
	require.NotNil(t, result.Error)
	assert.Equal(t, "no scene is open", *result.Error)
	assert.Equal(t, "E_NO_SCENE", result.Data["code"])
}

func TestInvokeDisconnectedUsesFallbackWithoutSending(t *testing.T) {
	exec, ft := testExecutor(t, testConfig())

	result, err := exec.Invoke(context.Background(), "get_scene", nil, func(ctx context.Context) (*types.Result, error) {
		return types.Ok(map[string]interface{}{"source": "cli"}), nil
	})

	require.NoError(t, err)
	assert.Equal(t, "cli", result.Data["source"])
	assert.Equal(t, 0, ft.dialCount(), "no send must be attempted while disconnected")
}

func TestInvokeOpenCircuitUsesFallbackWithoutSending(t *testing.T) {
	ft := &fakeTransport{}
	breaker := resilience.New("test", resilience.Settings{
		FailureThreshold: 1,
		FailureWindow:    time.Minute,
		ResetTimeout:     time.Minute,
	})
	client := NewClient(testConfig(), ft, breaker, logging.NewNop())
	t.Cleanup(func() { _ = client.Disconnect() })
	exec := NewExecutor(client, logging.NewNop())

	require.NoError(t, client.Connect(context.Background()))
	breaker.RecordFailure()
	require.False(t, exec.IsAvailable())

	result, err := exec.Invoke(context.Background(), "get_scene", nil, func(ctx context.Context) (*types.Result, error) {
		return types.Ok(map[string]interface{}{"source": "cli"}), nil
	})

	require.NoError(t, err)
	assert.Equal(t, "cli", result.Data["source"])
	assert.Equal(t, 0, len(ft.latest().sent))
}

func TestInvokeOpenCircuitNilFallbackReturnsOpenError(t *testing.T) {
	ft := &fakeTransport{}
	breaker := resilience.New("test", resilience.Settings{
		FailureThreshold: 1,
		FailureWindow:    time.Minute,
		ResetTimeout:     time.Minute,
	})
	client := NewClient(testConfig(), ft, breaker, logging.NewNop())
	t.Cleanup(func() { _ = client.Disconnect() })
	exec := NewExecutor(client, logging.NewNop())

	require.NoError(t, client.Connect(context.Background()))
	breaker.RecordFailure()

	_, err := exec.Invoke(context.Background(), "get_scene", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)

	// The refusal carries the breaker's stats, not a generic not-connected
	var openErr *resilience.OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, resilience.StateOpen, openErr.Stats.State)
	assert.Equal(t, 0, len(ft.latest().sent))
}

func TestInvokeDisconnectedNilFallbackReturnsNotConnected(t *testing.T) {
	exec, _ := testExecutor(t, testConfig())

	_, err := exec.Invoke(context.Background(), "get_scene", nil, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestInvokeTimeoutFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.RequestTimeout = 50 * time.Millisecond
	exec, ft := testExecutor(t, cfg)
	require.NoError(t, exec.Client().Connect(context.Background()))

	// Swallow the call, never answer
	go ft.latest().receiveCall(t)

	result, err := exec.Invoke(context.Background(), "slow", nil, func(ctx context.Context) (*types.Result, error) {
		return types.Ok(map[string]interface{}{"source": "fallback"}), nil
	})

	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Data["source"])
}

func TestInvokeFallbackErrorReturnedVerbatim(t *testing.T) {
	exec, _ := testExecutor(t, testConfig())

	fallbackErr := errors.New("cli not found")
	_, err := exec.Invoke(context.Background(), "get_scene", nil, func(ctx context.Context) (*types.Result, error) {
		return nil, fallbackErr
	})

	// The fallback's own error, not a synthesized composite
	assert.Equal(t, fallbackErr, err)
}

func TestInvokeNormalization(t *testing.T) {
	tests := []struct {
		name     string
		payload  interface{}
		expected map[string]interface{}
	}{
		{
			name:     "nil result renders generic completion",
			payload:  nil,
			expected: map[string]interface{}{"message": "operation completed"},
		},
		{
			name:     "string result passes through",
			payload:  "scene saved",
			expected: map[string]interface{}{"message": "scene saved"},
		},
		{
			name:     "structured result carried as data",
			payload:  map[string]interface{}{"nodes": float64(3)},
			expected: map[string]interface{}{"nodes": float64(3)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec, ft := testExecutor(t, testConfig())
			require.NoError(t, exec.Client().Connect(context.Background()))

			respondToNextCall(t, ft.latest(), func(call CallEnvelope) ResultEnvelope {
				return ResultEnvelope{ID: call.ID, Success: true, Result: tt.payload}
			})

			result, err := exec.Invoke(context.Background(), "op", nil, nil)
			require.NoError(t, err)
			assert.True(t, result.Success)
			assert.Equal(t, tt.expected, result.Data)
		})
	}
}

func TestIsAvailable(t *testing.T) {
	exec, _ := testExecutor(t, testConfig())
	assert.False(t, exec.IsAvailable(), "disconnected channel is unavailable")

	require.NoError(t, exec.Client().Connect(context.Background()))
	assert.True(t, exec.IsAvailable())

	require.NoError(t, exec.Client().Disconnect())
	assert.False(t, exec.IsAvailable())
}
