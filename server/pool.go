package server

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/agentgate/engine"
)

// Executor is a reusable worker bound to the hosting agent. Pooled executors
// live for the gateway's lifetime; temporary executors are created when the
// pool is exhausted and discarded after one request.
type Executor struct {
	id        string
	engine    *engine.Engine
	temporary bool
}

func newExecutor(e *engine.Engine, temporary bool) *Executor {
	return &Executor{id: uuid.NewString(), engine: e, temporary: temporary}
}

// ID returns the executor's unique identifier.
func (ex *Executor) ID() string { return ex.id }

// Temporary reports whether the executor is a pool-exhaustion fallback.
func (ex *Executor) Temporary() bool { return ex.temporary }

// Engine returns the underlying execution engine.
func (ex *Executor) Engine() *engine.Engine { return ex.engine }

// Execute runs a registered task through the engine pipeline.
func (ex *Executor) Execute(ctx context.Context, name string, inputs map[string]any) (map[string]any, error) {
	return ex.engine.Execute(ctx, name, inputs)
}

// Pool is a fixed-size set of idle executors. Acquire never blocks: when the
// pool is exhausted it hands out a temporary executor that Release discards
// instead of returning.
type Pool struct {
	idle   chan *Executor
	engine *engine.Engine

	mu     sync.Mutex
	closed bool
}

// NewPool creates size pooled executors bound to the given engine.
func NewPool(size int, e *engine.Engine) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{idle: make(chan *Executor, size), engine: e}
	for i := 0; i < size; i++ {
		p.idle <- newExecutor(e, false)
	}
	return p
}

// Acquire borrows an idle executor, falling back to a temporary one when the
// pool is empty.
func (p *Pool) Acquire() *Executor {
	select {
	case ex := <-p.idle:
		// A nil receive means the pool is closed.
		if ex != nil {
			return ex
		}
	default:
	}
	return newExecutor(p.engine, true)
}

// Release returns a pooled executor to the pool. Temporary executors and
// returns after Close are discarded.
func (p *Pool) Release(ex *Executor) {
	if ex == nil || ex.temporary {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.idle <- ex:
	default:
	}
}

// Close tears the pool down. Executors released afterwards are discarded.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.idle)
	for range p.idle {
	}
}
