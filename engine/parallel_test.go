package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentgate/task"
)

func registerEcho(t *testing.T, e *Engine, name string, delay time.Duration) {
	t.Helper()
	require.NoError(t, e.Tasks().Register(&task.Description{
		Name:    name,
		Outputs: task.Fields("from", "string"),
		Implementation: func(h task.Handle, inputs map[string]any) (map[string]any, error) {
			if delay > 0 {
				time.Sleep(delay)
			}
			return map[string]any{"from": name}, nil
		},
	}))
}

// Results come back in input order even when the second task finishes first.
func TestExecuteParallelPreservesInputOrder(t *testing.T) {
	e := newTestEngine(t)
	registerEcho(t, e, "slow_a", 50*time.Millisecond)
	registerEcho(t, e, "fast_b", 0)

	results, err := e.ExecuteParallel(context.Background(), []Call{
		{Task: "slow_a"},
		{Task: "fast_b"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "slow_a", results[0]["from"])
	assert.Equal(t, "fast_b", results[1]["from"])
}

func TestExecuteParallelPropagatesError(t *testing.T) {
	e := newTestEngine(t)
	registerEcho(t, e, "fine", 0)
	require.NoError(t, e.Tasks().Register(&task.Description{
		Name: "broken",
		Implementation: func(h task.Handle, inputs map[string]any) (map[string]any, error) {
			return nil, errors.New("nope")
		},
	}))

	_, err := e.ExecuteParallel(context.Background(), []Call{
		{Task: "fine"},
		{Task: "broken"},
		{Task: "fine"},
	})

	var xerr *task.ExecutionError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "broken", xerr.Task)
}

func TestExecuteParallelBoundsConcurrency(t *testing.T) {
	var active, peak int32

	e := New(func(o *Options) {
		cfg := fastConfig
		cfg.ParallelWorkers = 2
		o.Config = cfg
	})
	require.NoError(t, e.Tasks().Register(&task.Description{
		Name:    "gauge",
		Outputs: task.Fields("ok", "boolean"),
		Implementation: func(h task.Handle, inputs map[string]any) (map[string]any, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return map[string]any{"ok": true}, nil
		},
	}))

	calls := make([]Call, 8)
	for i := range calls {
		calls[i] = Call{Task: "gauge"}
	}
	results, err := e.ExecuteParallel(context.Background(), calls)
	require.NoError(t, err)
	assert.Len(t, results, 8)
	assert.LessOrEqual(t, peak, int32(2))
}

func TestExecuteParallelEmptyBatch(t *testing.T) {
	e := newTestEngine(t)
	results, err := e.ExecuteParallel(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, results)
}

// Parallel invocations inherit the caller's trace context so child spans
// share one trace identity.
func TestExecuteParallelInheritsTraceContext(t *testing.T) {
	tracer := &recordingTracer{}
	e := newTestEngine(t, func(o *Options) { o.Tracer = tracer })
	registerEcho(t, e, "traced", 0)

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "trace-123")

	_, err := e.ExecuteParallel(ctx, []Call{{Task: "traced"}, {Task: "traced"}})
	require.NoError(t, err)

	require.Len(t, tracer.contexts(), 2)
	for _, c := range tracer.contexts() {
		assert.Equal(t, "trace-123", c.Value(key{}))
	}
}
