// Package task defines the declarative task model executed by the engine.
//
// A Description declares a named unit of work: an ordered input/output schema,
// optional natural-language Instructions (making the task model-backed) and an
// optional deterministic Implementation (making it code-backed). A task may be
// both; the implementation is preferred for execution. Descriptions are
// immutable for the process lifetime and held in a thread-safe Registry.
//
// The package also carries the error taxonomy shared by the engine and the
// gateway: ValidationError (never retried), TimeoutError (authoritative over
// any concurrent failure), NetworkError (transient, retried with backoff) and
// ExecutionError (application failure, retried up to the limit). Every error
// records the originating task, the elapsed execution time and the underlying
// cause.
package task
