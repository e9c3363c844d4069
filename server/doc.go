// Package server implements the HTTP gateway in front of a hosted agent. It
// serves health and readiness probes, authenticated webhook routes, an
// OpenAI-compatible chat-completions endpoint and an MCP tool-protocol
// endpoint, dispatching work through a fixed-size executor pool.
//
// Errors never escape a route: handler failures are converted into a
// structured JSON response carrying the error category and message.
package server
