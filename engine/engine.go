package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/hupe1980/agentgate/coerce"
	"github.com/hupe1980/agentgate/logging"
	"github.com/hupe1980/agentgate/model"
	"github.com/hupe1980/agentgate/task"
	"github.com/hupe1980/agentgate/tool"
)

// Config defines tuning parameters for task execution behavior.
type Config struct {
	// Timeout is the hard per-call deadline for the dispatch step.
	// A value <= 0 means unlimited.
	Timeout time.Duration

	// MaxRetries limits retry attempts for transient failures. The total
	// number of attempts never exceeds MaxRetries + 1.
	MaxRetries int

	// RetryBaseDelay is the backoff base: delay = base * 2^(attempt-1).
	RetryBaseDelay time.Duration

	// MaxRetryDelay caps the backoff delay including jitter.
	MaxRetryDelay time.Duration

	// ParallelWorkers bounds the worker pool used by ExecuteParallel.
	ParallelWorkers int
}

// DefaultConfig provides production-ready default configuration values.
var DefaultConfig = Config{
	Timeout:         60 * time.Second,
	MaxRetries:      3,
	RetryBaseDelay:  time.Second,
	MaxRetryDelay:   30 * time.Second,
	ParallelWorkers: 8,
}

// RetryCallback observes each retry with the attempt number that failed and
// the classified error. Invoked before the backoff sleep.
type RetryCallback func(taskName string, attempt int, err error)

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Tasks is the task registry. Defaults to an empty registry.
	Tasks *task.Registry

	// Tools is the declared-tool registry available to task bodies and the
	// MCP endpoint. Defaults to an empty registry.
	Tools *tool.Registry

	// Client is the model client used for model-backed dispatch and
	// ExecuteLLM. May be nil for purely code-backed registries.
	Client model.Client

	// Coercer validates task I/O. Defaults to a fresh bounded cache.
	Coercer *coerce.Coercer

	// Logger defaults to NoOpLogger.
	Logger logging.Logger

	// Tracer receives a span per invocation. Defaults to NoOpTracer.
	Tracer Tracer

	// Emitter receives a best-effort execution event after every task
	// execution. Defaults to NoOpEmitter.
	Emitter EventEmitter

	// OnRetry observes retries. May be nil.
	OnRetry RetryCallback
}

// Engine executes registered tasks with validation, timeout enforcement,
// error classification and retry. Safe for concurrent use.
type Engine struct {
	config  Config
	tasks   *task.Registry
	tools   *tool.Registry
	client  model.Client
	coercer *coerce.Coercer
	logger  logging.Logger
	tracer  Tracer
	emitter EventEmitter
	onRetry RetryCallback
}

// New creates an Engine with sensible defaults and optional configuration.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:  DefaultConfig,
		Tasks:   task.NewRegistry(),
		Tools:   tool.NewRegistry(),
		Coercer: coerce.NewCoercer(0),
		Logger:  logging.NoOpLogger{},
		Tracer:  NoOpTracer{},
		Emitter: NoOpEmitter{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{
		config:  opts.Config,
		tasks:   opts.Tasks,
		tools:   opts.Tools,
		client:  opts.Client,
		coercer: opts.Coercer,
		logger:  opts.Logger,
		tracer:  opts.Tracer,
		emitter: opts.Emitter,
		onRetry: opts.OnRetry,
	}
}

// Tasks returns the task registry.
func (e *Engine) Tasks() *task.Registry { return e.tasks }

// Tools returns the tool registry.
func (e *Engine) Tools() *tool.Registry { return e.tools }

// Coercer returns the shared coercion cache.
func (e *Engine) Coercer() *coerce.Coercer { return e.coercer }

// CallOptions override engine defaults for a single invocation.
type CallOptions struct {
	// Timeout overrides the configured dispatch deadline; <= 0 is unlimited.
	Timeout time.Duration
	// MaxRetries overrides the configured retry limit.
	MaxRetries int
}

// WithTimeout overrides the per-call timeout for one invocation.
func WithTimeout(d time.Duration) func(o *CallOptions) {
	return func(o *CallOptions) { o.Timeout = d }
}

// WithMaxRetries overrides the retry limit for one invocation.
func WithMaxRetries(n int) func(o *CallOptions) {
	return func(o *CallOptions) { o.MaxRetries = n }
}

// Execute runs a registered task to completion.
//
// The invocation proceeds through lookup, input validation, dispatch under
// the effective timeout, output validation and classification. Network and
// execution failures are retried with exponential backoff up to the retry
// limit; validation and timeout failures are terminal.
func (e *Engine) Execute(
	ctx context.Context,
	name string,
	inputs map[string]any,
	optFns ...func(o *CallOptions),
) (map[string]any, error) {
	start := time.Now()

	desc, ok := e.tasks.Get(name)
	if !ok {
		return nil, &task.ValidationError{
			Task:    name,
			Elapsed: time.Since(start),
			Message: fmt.Sprintf("unknown task (known tasks: %s)", strings.Join(e.tasks.Names(), ", ")),
		}
	}

	opts := CallOptions{Timeout: e.config.Timeout, MaxRetries: e.config.MaxRetries}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}

	validated, err := e.validateInputs(desc, inputs, start)
	if err != nil {
		return nil, err
	}

	ctx, span := e.tracer.StartSpan(ctx, "task.execute")
	span.SetAttribute("task_name", name)
	defer span.End()

	attempts := 0
	success := false
	defer func() {
		e.emitExecutionEvent(name, success, time.Since(start), map[string]any{"attempts": attempts})
	}()

	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries+1; attempt++ {
		attempts = attempt
		span.SetAttribute("attempt", attempt)

		raw, err := e.dispatchWithTimeout(ctx, desc, validated, opts.Timeout, start)
		if err == nil {
			outputs, verr := e.validateOutputs(desc, raw, start)
			if verr == nil {
				success = true
				return outputs, nil
			}
			err = verr
		}

		lastErr = e.classify(name, start, err)
		switch task.CategoryOf(lastErr) {
		case task.CategoryTimeout, task.CategoryValidation:
			return nil, lastErr
		}
		if attempt > opts.MaxRetries {
			break
		}

		if e.onRetry != nil {
			e.onRetry(name, attempt, lastErr)
		}
		delay := e.backoffDelay(attempt)
		e.logger.Warn("engine.retry", "task", name, "attempt", attempt, "delay", delay, "error", lastErr.Error())
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, lastErr
		}
	}

	return nil, lastErr
}

// validateInputs coerces every declared input field, failing on a missing
// required field or an uncoercible value.
func (e *Engine) validateInputs(desc *task.Description, inputs map[string]any, start time.Time) (map[string]any, error) {
	validated := make(map[string]any, len(desc.Inputs))
	for _, f := range desc.Inputs {
		raw, ok := inputs[f.Name]
		if !ok {
			if f.Optional {
				continue
			}
			return nil, &task.ValidationError{
				Task:    desc.Name,
				Elapsed: time.Since(start),
				Message: fmt.Sprintf("missing required input %q", f.Name),
			}
		}
		v, err := e.coercer.Coerce(raw, f.Type)
		if err != nil {
			return nil, &task.ValidationError{
				Task:    desc.Name,
				Elapsed: time.Since(start),
				Message: fmt.Sprintf("input %q: %v", f.Name, err),
				Cause:   err,
			}
		}
		validated[f.Name] = v
	}
	return validated, nil
}

// validateOutputs coerces every declared output field and checks required
// fields are present. Runs only after dispatch completes.
func (e *Engine) validateOutputs(desc *task.Description, raw map[string]any, start time.Time) (map[string]any, error) {
	outputs := make(map[string]any, len(desc.Outputs))
	for _, f := range desc.Outputs {
		value, ok := raw[f.Name]
		if !ok {
			if f.Optional {
				continue
			}
			return nil, &task.ValidationError{
				Task:    desc.Name,
				Elapsed: time.Since(start),
				Message: fmt.Sprintf("missing required output %q", f.Name),
			}
		}
		v, err := e.coercer.Coerce(value, f.Type)
		if err != nil {
			return nil, &task.ValidationError{
				Task:    desc.Name,
				Elapsed: time.Since(start),
				Message: fmt.Sprintf("output %q: %v", f.Name, err),
				Cause:   err,
			}
		}
		outputs[f.Name] = v
	}
	return outputs, nil
}

// classify maps a raw dispatch failure onto the error taxonomy. Errors that
// already carry a category (including nested engine calls) pass through.
func (e *Engine) classify(name string, start time.Time, err error) error {
	var categorized task.Categorizer
	if errors.As(err, &categorized) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &task.TimeoutError{Task: name, Elapsed: time.Since(start)}
	}
	if isTransient(err) {
		return &task.NetworkError{Task: name, Elapsed: time.Since(start), Cause: err}
	}
	return &task.ExecutionError{Task: name, Elapsed: time.Since(start), Cause: err}
}

// isTransient reports whether err matches a known transient I/O failure class.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	for _, target := range []error{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.EPIPE,
		io.ErrUnexpectedEOF,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// backoffDelay computes base * 2^(attempt-1) with a small jitter, capped at
// the configured maximum.
func (e *Engine) backoffDelay(attempt int) time.Duration {
	base := e.config.RetryBaseDelay
	if base <= 0 {
		base = time.Second
	}
	delay := base << (attempt - 1)
	maxDelay := e.config.MaxRetryDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	delay += time.Duration(rand.Float64() * float64(delay) * 0.1)
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// emitExecutionEvent notifies the cluster-event emitter best-effort. Emitter
// failures are logged and never fail the task.
func (e *Engine) emitExecutionEvent(name string, success bool, duration time.Duration, metadata map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("engine.emit_event.panic", "task", name, "panic", fmt.Sprintf("%v", r))
		}
	}()
	event := ExecutionEvent{Success: success, DurationMS: duration.Milliseconds(), Metadata: metadata}
	if err := e.emitter.EmitExecutionEvent(name, event); err != nil {
		e.logger.Warn("engine.emit_event.failed", "task", name, "error", err.Error())
	}
}
