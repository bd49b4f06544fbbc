package command

import (
	"context"
	"log/slog"
	"sync"
)

// NotFoundReply answers commands nobody registered.
const NotFoundReply = "Command not found"

// Handler produces the reply for a request. An empty reply sends nothing.
type Handler func(ctx context.Context, req Request) (string, error)

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Router dispatches requests to registered command handlers.
type Router struct {
	mu          sync.RWMutex
	commands    map[string]Handler
	middlewares []Middleware
	notFound    Handler
	log         *slog.Logger
}

// NewRouter builds a Router with an empty registry.
func NewRouter(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		commands: make(map[string]Handler),
		notFound: func(context.Context, Request) (string, error) {
			return NotFoundReply, nil
		},
		log: log,
	}
}

// Register registers a handler for a command name.
func (r *Router) Register(cmd string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd] = h
}

// Use appends a middleware to the chain. The first one added runs outermost.
func (r *Router) Use(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// Dispatch runs the handler for req.Command through the middleware chain and
// returns the reply text. Errors are left to the error handling middleware;
// without one they are returned as is.
func (r *Router) Dispatch(ctx context.Context, req Request) (string, error) {
	if canonical, ok := aliases[req.Command]; ok {
		req.Command = canonical
	}

	handler := r.getCommandHandler(req.Command)
	if handler == nil {
		r.log.Debug("no command handler found", slog.String("command", req.Command), slog.String("chat_id", req.ChatID))
		handler = r.notFound
	}

	return r.applyMiddlewares(handler)(ctx, req)
}

func (r *Router) getCommandHandler(cmd string) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[cmd]
}

func (r *Router) applyMiddlewares(h Handler) Handler {
	r.mu.RLock()
	middlewares := make([]Middleware, len(r.middlewares))
	copy(middlewares, r.middlewares)
	r.mu.RUnlock()

	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}
