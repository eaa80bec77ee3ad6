package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Notify(ctx context.Context, a Alert) error {
	s.calls++
	return s.err
}

func TestFallbackNotifier_PrimaryHealthy(t *testing.T) {
	primary := &stubNotifier{}
	fallback := &stubNotifier{}
	n := NewFallbackNotifier(primary, fallback, nil)

	for i := 0; i < 10; i++ {
		assert.NoError(t, n.Notify(context.Background(), Alert{ID: "a-1"}))
	}

	assert.Equal(t, 10, primary.calls)
	assert.Zero(t, fallback.calls)
}

func TestFallbackNotifier_TripsAfterConsecutiveFailures(t *testing.T) {
	primary := &stubNotifier{err: errors.New("broker unreachable")}
	fallback := &stubNotifier{}
	n := NewFallbackNotifier(primary, fallback, nil)

	// First four failures surface the primary error untripped.
	for i := 0; i < 4; i++ {
		assert.Error(t, n.Notify(context.Background(), Alert{}))
	}
	assert.Zero(t, fallback.calls)

	// Fifth failure opens the circuit and routes to the fallback.
	assert.NoError(t, n.Notify(context.Background(), Alert{}))
	assert.Equal(t, 1, fallback.calls)
}

func TestFallbackNotifier_RecoversAfterProbes(t *testing.T) {
	primary := &stubNotifier{err: errors.New("broker unreachable")}
	fallback := &stubNotifier{}
	n := NewFallbackNotifier(primary, fallback, nil)

	for i := 0; i < 5; i++ {
		n.Notify(context.Background(), Alert{})
	}
	assert.True(t, n.breaker.IsOpen())

	// While open, every call still probes the primary. Three successful
	// probes close the circuit again.
	primary.err = nil
	for i := 0; i < 3; i++ {
		assert.NoError(t, n.Notify(context.Background(), Alert{}))
	}
	assert.False(t, n.breaker.IsOpen())

	fallbackBefore := fallback.calls
	assert.NoError(t, n.Notify(context.Background(), Alert{}))
	assert.Equal(t, fallbackBefore, fallback.calls)
}
