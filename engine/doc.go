// Package engine implements the task execution core of agentgate.
//
// The Engine validates task inputs against their declared schema, dispatches
// the task (deterministic implementation or model round trip with structured
// output parsing), enforces a hard per-call timeout, classifies failures and
// retries transient ones with exponential backoff, then validates outputs.
//
// # Error classification
//
// Classification follows a strict precedence: timeout beats everything else,
// validation is never retried, and any remaining failure is network if it
// matches a known transient I/O class, otherwise execution. Only network and
// execution failures are retried.
//
// # Parallel dispatch
//
// ExecuteParallel runs independent task invocations concurrently on a bounded
// worker pool and returns results in input order regardless of completion
// order. The caller's trace context is inherited by every parallel invocation
// so child spans share the same trace identity.
//
// # Nested calls
//
// Code-backed implementations receive a task.Handle exposing ExecuteTask,
// ExecuteTool and ExecuteLLM so tasks can call other tasks without binding to
// an implicit receiver.
package engine
