package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hupe1980/agentgate/auth"
	"github.com/hupe1980/agentgate/engine"
	"github.com/hupe1980/agentgate/logging"
	"github.com/hupe1980/agentgate/task"
)

// Config defines the gateway's operational parameters.
type Config struct {
	// Addr is the listen address.
	Addr string

	// PoolSize is the number of pooled executors created at startup.
	PoolSize int

	// AgentName identifies the hosted agent in probe and model listings.
	AgentName string

	// ModelID is the model identifier reported by the chat-completion and
	// model-listing endpoints.
	ModelID string

	// SystemPrompt, if non-empty, is prepended to every chat conversation.
	SystemPrompt string

	// DefaultTask, if non-empty, is the task the built-in POST /webhook
	// handler executes with the request parameters as inputs. When empty the
	// default handler echoes the parameters back.
	DefaultTask string
}

// DefaultConfig provides production-ready default configuration values.
var DefaultConfig = Config{
	Addr:      ":8080",
	PoolSize:  4,
	AgentName: "agent",
	ModelID:   "agentgate",
}

// Options configures a Server instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Logger defaults to NoOpLogger.
	Logger logging.Logger

	// Ready reports whether the agent can serve traffic. Defaults to always
	// ready.
	Ready func() bool
}

// HandlerFunc is a webhook route handler. It runs after authentication and
// validation with a borrowed executor; the returned value is serialized into
// the success envelope, the returned error into a structured error response.
type HandlerFunc func(ctx context.Context, ex *Executor, req *RequestContext) (any, error)

// RouteOptions attach authentication and request-shape validation to a route.
type RouteOptions struct {
	Auth       auth.Rule
	Validators []auth.Validator
}

// WithAuth attaches an authentication rule to the route.
func WithAuth(rule auth.Rule) func(o *RouteOptions) {
	return func(o *RouteOptions) { o.Auth = rule }
}

// WithValidators attaches request-shape validators to the route.
func WithValidators(validators ...auth.Validator) func(o *RouteOptions) {
	return func(o *RouteOptions) { o.Validators = append(o.Validators, validators...) }
}

// Server is the HTTP gateway in front of a hosted agent.
type Server struct {
	config  Config
	engine  *engine.Engine
	logger  logging.Logger
	pool    *Pool
	router  *chi.Mux
	ready   func() bool
	httpSrv *http.Server
}

// New creates a Server around the given engine and registers the built-in
// routes. Custom webhook routes can be added with Handle before serving.
func New(e *engine.Engine, optFns ...func(o *Options)) *Server {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
		Ready:  func() bool { return true },
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		config: opts.Config,
		engine: e,
		logger: opts.Logger,
		pool:   NewPool(opts.Config.PoolSize, e),
		router: chi.NewRouter(),
		ready:  opts.Ready,
	}

	s.router.Use(s.recoverer)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error":   "not_found",
			"message": fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path),
		})
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{
			"error":   "not_found",
			"message": fmt.Sprintf("method %s not allowed for %s", r.Method, r.URL.Path),
		})
	})

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.Handle(http.MethodPost, "/webhook", s.defaultWebhook)
	s.router.Get("/v1/models", s.handleModels)
	s.router.Post("/v1/chat/completions", s.handleChatCompletions)
	s.router.Post("/mcp", s.handleMCP)

	return s
}

// Handle registers a custom webhook route keyed by method and path.
func (s *Server) Handle(method, path string, handler HandlerFunc, optFns ...func(o *RouteOptions)) {
	var opts RouteOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	s.router.Method(strings.ToUpper(method), path, s.webhook(handler, opts))
}

// Router exposes the underlying handler, mainly for tests.
func (s *Server) Router() http.Handler { return s.router }

// ListenAndServe starts the listener and blocks until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	s.httpSrv = &http.Server{Addr: s.config.Addr, Handler: s.router}
	s.logger.Info("server.listen", "addr", s.config.Addr, "agent", s.config.AgentName)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and tears down the executor pool.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.pool.Close()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"agent":  s.config.AgentName,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// defaultWebhook backs the built-in POST /webhook route.
func (s *Server) defaultWebhook(ctx context.Context, ex *Executor, req *RequestContext) (any, error) {
	if s.config.DefaultTask == "" {
		return req.Params(), nil
	}
	return ex.Execute(ctx, s.config.DefaultTask, req.Params())
}

// webhook wraps a HandlerFunc into the full request lifecycle: request
// capture, authentication, validation, executor borrowing and response
// serialization.
func (s *Server) webhook(handler HandlerFunc, opts RouteOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, err := NewRequestContext(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   string(task.CategoryValidation),
				"message": err.Error(),
			})
			return
		}

		if !auth.Authenticate(opts.Auth, rc) {
			s.logger.Warn("server.auth_denied", "method", rc.Method(), "path", rc.Path())
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":   "authentication_error",
				"message": "authentication failed",
			})
			return
		}

		if violations := auth.Validate(opts.Validators, rc); len(violations) > 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":      string(task.CategoryValidation),
				"message":    "request validation failed",
				"violations": violations,
			})
			return
		}

		ex := s.pool.Acquire()
		defer s.pool.Release(ex)

		result, err := handler(r.Context(), ex, rc)
		if err != nil {
			s.writeError(w, err)
			return
		}
		response := map[string]any{"status": "processed"}
		if result != nil {
			response["result"] = result
		}
		writeJSON(w, http.StatusOK, response)
	}
}

// writeError converts an engine error into a structured response with a
// status code derived from its category.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	category := task.CategoryOf(err)
	status := http.StatusInternalServerError
	switch category {
	case task.CategoryValidation:
		status = http.StatusBadRequest
	case task.CategoryTimeout:
		status = http.StatusGatewayTimeout
	case task.CategoryNetwork:
		status = http.StatusBadGateway
	}
	s.logger.Error("server.handler_failed", "category", string(category), "error", err.Error())
	writeJSON(w, status, map[string]any{
		"error":   string(category),
		"message": err.Error(),
	})
}

// recoverer converts a panicking handler into a structured 500 response so a
// single bad request can never take the listener down.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("server.panic", "method", r.Method, "path", r.URL.Path, "panic", fmt.Sprintf("%v", rec))
				writeJSON(w, http.StatusInternalServerError, map[string]any{
					"error":   string(task.CategoryExecution),
					"message": fmt.Sprintf("internal error: %v", rec),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
