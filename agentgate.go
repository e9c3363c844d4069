// Package agentgate provides a high-level façade over the task execution
// engine and the HTTP gateway for hosting an agent. Most applications
// interact with this package by:
//  1. Creating an AgentGate via New() (optionally overriding the engine and
//     gateway configuration)
//  2. Registering tasks (code-backed or model-backed) and declared tools
//  3. Executing tasks directly, or serving them over HTTP as webhooks, an
//     OpenAI-compatible chat endpoint and an MCP tool endpoint
//
// The façade delegates execution to engine.Engine and request handling to
// server.Server while keeping setup ergonomics concise. All defaults are safe
// for local development and testing; production deployments typically supply
// a real model client and a structured logger.
package agentgate

import (
	"context"

	"github.com/hupe1980/agentgate/engine"
	"github.com/hupe1980/agentgate/logging"
	"github.com/hupe1980/agentgate/model"
	"github.com/hupe1980/agentgate/server"
	"github.com/hupe1980/agentgate/task"
	"github.com/hupe1980/agentgate/tool"
)

// Options configures the AgentGate instance.
type Options struct {
	// EngineConfig tunes execution behavior (timeout, retries, parallelism).
	EngineConfig engine.Config

	// ServerConfig tunes the HTTP gateway (address, pool size, identifiers).
	ServerConfig server.Config

	// Client is the model client backing model-backed tasks and the chat
	// endpoint. May be nil for purely code-backed agents.
	Client model.Client

	// OnRetry observes retry attempts. May be nil.
	OnRetry engine.RetryCallback

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentGate is the high-level façade aggregating the engine and the gateway.
type AgentGate struct {
	opts   Options
	engine *engine.Engine
	server *server.Server
}

// New creates a new AgentGate instance with optional overrides.
func New(optFns ...func(o *Options)) *AgentGate {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		ServerConfig: server.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Client = opts.Client
		o.Logger = opts.Logger
		o.OnRetry = opts.OnRetry
	})

	srv := server.New(e, func(o *server.Options) {
		o.Config = opts.ServerConfig
		o.Logger = opts.Logger
	})

	return &AgentGate{opts: opts, engine: e, server: srv}
}

// Engine returns the underlying execution engine.
func (g *AgentGate) Engine() *engine.Engine { return g.engine }

// RegisterTask adds a task description to the underlying registry.
func (g *AgentGate) RegisterTask(desc *task.Description) error {
	return g.engine.Tasks().Register(desc)
}

// RegisterTool adds a declared tool, exposing it to task bodies and the MCP
// endpoint.
func (g *AgentGate) RegisterTool(t tool.Tool) {
	g.engine.Tools().Register(t)
}

// Execute runs a registered task through the full pipeline (validation,
// timeout, classification, retry).
func (g *AgentGate) Execute(
	ctx context.Context,
	name string,
	inputs map[string]any,
	optFns ...func(o *engine.CallOptions),
) (map[string]any, error) {
	return g.engine.Execute(ctx, name, inputs, optFns...)
}

// ExecuteParallel runs independent task invocations concurrently, returning
// results in input order.
func (g *AgentGate) ExecuteParallel(ctx context.Context, calls []engine.Call) ([]map[string]any, error) {
	return g.engine.ExecuteParallel(ctx, calls)
}

// HandleWebhook registers a custom webhook route on the gateway.
func (g *AgentGate) HandleWebhook(
	method, path string,
	handler server.HandlerFunc,
	optFns ...func(o *server.RouteOptions),
) {
	g.server.Handle(method, path, handler, optFns...)
}

// ListenAndServe starts the HTTP gateway and blocks until Shutdown or failure.
func (g *AgentGate) ListenAndServe() error {
	return g.server.ListenAndServe()
}

// Shutdown drains in-flight requests and tears down the executor pool.
func (g *AgentGate) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}
