package breaker_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skathuria/modelgw/pkg/breaker"
	"github.com/skathuria/modelgw/pkg/events"
)

// stateSink records breaker transitions.
type stateSink struct {
	events.NopSink

	mu          sync.Mutex
	transitions []string
}

func (s *stateSink) CircuitStateChange(backendID, from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, from+"->"+to)
}

func (s *stateSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.transitions...)
}

func newRegistry(t *testing.T, threshold uint32, reset time.Duration, sink events.Sink) *breaker.Registry {
	t.Helper()
	r, err := breaker.NewRegistry(breaker.Settings{
		FailureThreshold: threshold,
		ResetTimeout:     reset,
	}, sink)
	require.NoError(t, err)
	t.Cleanup(r.Stop)
	return r
}

func TestNewRegistry_Validation(t *testing.T) {
	_, err := breaker.NewRegistry(breaker.Settings{FailureThreshold: 0, ResetTimeout: time.Second}, nil)
	assert.Error(t, err)

	_, err = breaker.NewRegistry(breaker.Settings{FailureThreshold: 3, ResetTimeout: 0}, nil)
	assert.Error(t, err)
}

func TestExecute_OpensAfterConsecutiveFailures(t *testing.T) {
	sink := &stateSink{}
	r := newRegistry(t, 3, time.Minute, sink)

	boom := errors.New("upstream down")
	for i := 0; i < 3; i++ {
		_, err := r.Execute("backend-a", func() (interface{}, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.Equal(t, "open", r.State("backend-a"))

	// An open circuit rejects without invoking the function.
	invoked := false
	_, err := r.Execute("backend-a", func() (interface{}, error) {
		invoked = true
		return nil, nil
	})
	assert.ErrorIs(t, err, breaker.ErrCircuitOpen)
	assert.False(t, invoked)
	assert.Contains(t, sink.all(), "closed->open")
}

func TestExecute_SuccessesResetFailureCount(t *testing.T) {
	r := newRegistry(t, 3, time.Minute, nil)

	boom := errors.New("flaky")
	for i := 0; i < 5; i++ {
		r.Execute("backend-a", func() (interface{}, error) { return nil, boom })
		r.Execute("backend-a", func() (interface{}, error) { return "ok", nil })
	}

	// Failures were never consecutive, so the circuit stays closed.
	assert.Equal(t, "closed", r.State("backend-a"))
}

func TestExecute_ResetTimeoutAdmitsTrialCall(t *testing.T) {
	r := newRegistry(t, 2, 30*time.Millisecond, nil)

	boom := errors.New("down")
	for i := 0; i < 2; i++ {
		r.Execute("backend-a", func() (interface{}, error) { return nil, boom })
	}
	require.Equal(t, "open", r.State("backend-a"))

	time.Sleep(50 * time.Millisecond)

	res, err := r.Execute("backend-a", func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
}

func TestExecute_HalfOpenFailureReopens(t *testing.T) {
	r := newRegistry(t, 2, 30*time.Millisecond, nil)

	boom := errors.New("down")
	for i := 0; i < 2; i++ {
		r.Execute("backend-a", func() (interface{}, error) { return nil, boom })
	}
	require.Equal(t, "open", r.State("backend-a"))

	time.Sleep(50 * time.Millisecond)

	// The trial call fails: straight back to open.
	_, err := r.Execute("backend-a", func() (interface{}, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "open", r.State("backend-a"))

	invoked := false
	_, err = r.Execute("backend-a", func() (interface{}, error) {
		invoked = true
		return nil, nil
	})
	assert.ErrorIs(t, err, breaker.ErrCircuitOpen)
	assert.False(t, invoked)
}

func TestExecute_ClosesAfterConsecutiveTrialSuccesses(t *testing.T) {
	r := newRegistry(t, 2, 30*time.Millisecond, nil)

	boom := errors.New("down")
	for i := 0; i < 2; i++ {
		r.Execute("backend-a", func() (interface{}, error) { return nil, boom })
	}

	time.Sleep(50 * time.Millisecond)

	// Closing requires the same number of consecutive successes as the
	// failure threshold.
	for i := 0; i < 2; i++ {
		_, err := r.Execute("backend-a", func() (interface{}, error) { return "ok", nil })
		require.NoError(t, err)
	}
	assert.Equal(t, "closed", r.State("backend-a"))
}

func TestRegistry_BreakersAreIndependent(t *testing.T) {
	r := newRegistry(t, 2, time.Minute, nil)

	boom := errors.New("down")
	for i := 0; i < 2; i++ {
		r.Execute("backend-a", func() (interface{}, error) { return nil, boom })
	}

	assert.Equal(t, "open", r.State("backend-a"))
	assert.Equal(t, "closed", r.State("backend-b"))

	res, err := r.Execute("backend-b", func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", res)
}

func TestStates_SnapshotsSeenBackends(t *testing.T) {
	r := newRegistry(t, 2, time.Minute, nil)

	r.Execute("backend-a", func() (interface{}, error) { return "ok", nil })
	boom := errors.New("down")
	for i := 0; i < 2; i++ {
		r.Execute("backend-b", func() (interface{}, error) { return nil, boom })
	}

	states := r.States()
	assert.Equal(t, map[string]string{
		"backend-a": "closed",
		"backend-b": "open",
	}, states)
}
