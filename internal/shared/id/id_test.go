package id

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	g := NewGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.GenerateString()
		require.False(t, seen[id], "duplicate id generated: %s", id)
		seen[id] = true
	}
}

func TestGenerateConcurrent(t *testing.T) {
	g := NewGenerator()

	const workers = 16
	const perWorker = 100

	var mu sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id := g.GenerateString()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, len(seen), "concurrent generation must not collide")
}

func TestPrefixes(t *testing.T) {
	callID := NewCallID()
	assert.True(t, strings.HasPrefix(callID.String(), "call_"))

	reqID := NewRequestID()
	assert.True(t, strings.HasPrefix(reqID.String(), "req_"))

	// Prefixed portion after the underscore is a valid ULID
	raw := strings.TrimPrefix(callID.String(), "call_")
	assert.True(t, IsValid(raw))
}

func TestTimestamp(t *testing.T) {
	id := Default().GenerateString()

	ts, err := Timestamp(id)
	require.NoError(t, err)
	assert.False(t, ts.IsZero())
}

func TestIsValidRejectsGarbage(t *testing.T) {
	assert.False(t, IsValid("not-a-ulid"))
	assert.False(t, IsValid(""))
}
